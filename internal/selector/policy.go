package selector

import (
	"github.com/sells-group/hubble-cli/internal/model"
)

// Picker chooses one item from a non-empty candidate list.
type Picker[T any] interface {
	Pick(items []T) (T, bool)
}

// FirstMatch picks the first item in archive order.
type FirstMatch[T any] struct{}

// Pick returns items[0], or false when items is empty.
func (FirstMatch[T]) Pick(items []T) (T, bool) {
	var zero T
	if len(items) == 0 {
		return zero, false
	}
	return items[0], true
}

// PickerFunc adapts a function to Picker.
type PickerFunc[T any] func(items []T) (T, bool)

// Pick calls f.
func (f PickerFunc[T]) Pick(items []T) (T, bool) {
	return f(items)
}

// Policy is the set of choices a run makes: which observation, which
// retrieved file and which table row.
type Policy struct {
	Observation Picker[model.ObservationRecord]
	File        Picker[model.RetrievedFile]
	Row         Picker[int]
}

// DefaultPolicy picks the first candidate everywhere.
func DefaultPolicy() Policy {
	return Policy{
		Observation: FirstMatch[model.ObservationRecord]{},
		File:        FirstMatch[model.RetrievedFile]{},
		Row:         FirstMatch[int]{},
	}
}

// WithDefaults fills unset pickers with FirstMatch.
func (p Policy) WithDefaults() Policy {
	d := DefaultPolicy()
	if p.Observation == nil {
		p.Observation = d.Observation
	}
	if p.File == nil {
		p.File = d.File
	}
	if p.Row == nil {
		p.Row = d.Row
	}
	return p
}
