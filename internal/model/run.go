package model

import (
	"encoding/json"
	"math"
	"time"
)

// RunState is the position of a run in the pipeline state machine.
type RunState string

const (
	RunStateIdle       RunState = "idle"
	RunStateQuerying   RunState = "querying"
	RunStateSelecting  RunState = "selecting"
	RunStateRetrieving RunState = "retrieving"
	RunStateExtracting RunState = "extracting"
	RunStateRendering  RunState = "rendering"
	RunStateDone       RunState = "done"
	RunStateFailed     RunState = "failed"
)

// ErrorCategory classifies run errors for retry decisions made by the caller.
type ErrorCategory string

const (
	ErrorCategoryTransient ErrorCategory = "transient"
	ErrorCategoryPermanent ErrorCategory = "permanent"
)

// Run is one pipeline invocation recorded in the run ledger.
type Run struct {
	ID        string           `json:"id" yaml:"id"`
	Query     ObservationQuery `json:"query" yaml:"query"`
	State     RunState         `json:"state" yaml:"state"`
	Result    *RunResult       `json:"result,omitempty" yaml:"result,omitempty"`
	Error     *RunError        `json:"error,omitempty" yaml:"error,omitempty"`
	CreatedAt time.Time        `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time        `json:"updated_at" yaml:"updated_at"`
}

// RunError is the persisted form of a failed run's cause.
type RunError struct {
	Kind     ErrorKind       `json:"kind" yaml:"kind"`
	Stage    RunState        `json:"stage" yaml:"stage"`
	Message  string          `json:"message" yaml:"message"`
	Category ErrorCategory   `json:"category,omitempty" yaml:"category,omitempty"`
	Details  []ExtensionInfo `json:"details,omitempty" yaml:"details,omitempty"`
}

// RunResult holds what a run found, fetched and rendered.
type RunResult struct {
	ObservationCount int                `json:"observation_count" yaml:"observation_count"`
	Observation      *ObservationRecord `json:"observation,omitempty" yaml:"observation,omitempty"`
	ProductLabel     string             `json:"product_label,omitempty" yaml:"product_label,omitempty"`
	Products         []ProductRecord    `json:"products,omitempty" yaml:"products,omitempty"`
	Files            []string           `json:"files,omitempty" yaml:"files,omitempty"`
	ActiveFile       string             `json:"active_file,omitempty" yaml:"active_file,omitempty"`
	Dataset          *DatasetSummary    `json:"dataset,omitempty" yaml:"dataset,omitempty"`
	Metrics          *ImageMetrics      `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Notes            []string           `json:"notes,omitempty" yaml:"notes,omitempty"`
	Warnings         []string           `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Stages           []StageResult      `json:"stages" yaml:"stages"`
}

// DatasetSummary describes the extracted dataset without its samples.
type DatasetSummary struct {
	Kind          DataType `json:"kind" yaml:"kind"`
	Extension     int      `json:"extension" yaml:"extension"`
	ExtensionName string   `json:"extension_name,omitempty" yaml:"extension_name,omitempty"`
	Shape         []int    `json:"shape,omitempty" yaml:"shape,omitempty"`
	SourceShape   []int    `json:"source_shape,omitempty" yaml:"source_shape,omitempty"`
	Reduced       bool     `json:"reduced,omitempty" yaml:"reduced,omitempty"`
	Points        int      `json:"points,omitempty" yaml:"points,omitempty"`
}

// Summarize builds a DatasetSummary for ds.
func Summarize(ds Dataset) *DatasetSummary {
	switch d := ds.(type) {
	case *Spectrum:
		return &DatasetSummary{
			Kind:      DataTypeSpectrum,
			Extension: d.Extension,
			Shape:     []int{len(d.Wavelength)},
			Points:    len(d.Wavelength),
		}
	case *Image:
		return &DatasetSummary{
			Kind:          DataTypeImage,
			Extension:     d.ExtensionIndex,
			ExtensionName: d.ExtensionName,
			Shape:         d.Shape(),
			SourceShape:   d.SourceShape,
			Reduced:       d.Reduced,
		}
	case *TimeSeries:
		return &DatasetSummary{
			Kind:  DataTypeTimeSeries,
			Shape: d.PrimaryShape,
		}
	default:
		return nil
	}
}

// ImageMetrics are the display statistics computed for an image.
type ImageMetrics struct {
	Mean   float64 `json:"mean" yaml:"mean"`
	StdDev float64 `json:"std_dev" yaml:"std_dev"`
	Max    float64 `json:"max" yaml:"max"`
	VMin   float64 `json:"vmin" yaml:"vmin"`
	VMax   float64 `json:"vmax" yaml:"vmax"`
}

type imageMetricsJSON struct {
	Mean   *float64 `json:"mean"`
	StdDev *float64 `json:"std_dev"`
	Max    *float64 `json:"max"`
	VMin   *float64 `json:"vmin"`
	VMax   *float64 `json:"vmax"`
}

// MarshalJSON writes NaN and infinite statistics as null.
func (m ImageMetrics) MarshalJSON() ([]byte, error) {
	finite := func(v float64) *float64 {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		return &v
	}
	return json.Marshal(imageMetricsJSON{
		Mean:   finite(m.Mean),
		StdDev: finite(m.StdDev),
		Max:    finite(m.Max),
		VMin:   finite(m.VMin),
		VMax:   finite(m.VMax),
	})
}

// UnmarshalJSON reads null statistics back as NaN.
func (m *ImageMetrics) UnmarshalJSON(b []byte) error {
	var raw imageMetricsJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	value := func(p *float64) float64 {
		if p == nil {
			return math.NaN()
		}
		return *p
	}
	*m = ImageMetrics{
		Mean:   value(raw.Mean),
		StdDev: value(raw.StdDev),
		Max:    value(raw.Max),
		VMin:   value(raw.VMin),
		VMax:   value(raw.VMax),
	}
	return nil
}

// StageStatus is the outcome of a single pipeline stage.
type StageStatus string

const (
	StageStatusComplete StageStatus = "complete"
	StageStatusFailed   StageStatus = "failed"
)

// StageResult records one stage's outcome and timing.
type StageResult struct {
	Name     RunState    `json:"name" yaml:"name"`
	Status   StageStatus `json:"status" yaml:"status"`
	Duration int64       `json:"duration_ms" yaml:"duration_ms"`
	Error    string      `json:"error,omitempty" yaml:"error,omitempty"`
}
