package present

import (
	"context"
	"sync"

	"github.com/sells-group/hubble-cli/internal/render"
)

// EventKind names a recorded presentation request.
type EventKind string

const (
	EventNote       EventKind = "note"
	EventLinePlot   EventKind = "line_plot"
	EventRaster     EventKind = "raster"
	EventDiagnostic EventKind = "diagnostic"
	EventError      EventKind = "error"
)

// Event is one captured request. Exactly one payload field is set.
type Event struct {
	Kind       EventKind           `json:"kind"`
	Note       string              `json:"note,omitempty"`
	LinePlot   *LinePlotSummary    `json:"line_plot,omitempty"`
	Raster     *RasterSummary      `json:"raster,omitempty"`
	Diagnostic *render.Diagnostic  `json:"diagnostic,omitempty"`
	Error      *render.ErrorReport `json:"error,omitempty"`
}

// LinePlotSummary is a line plot request without its samples.
type LinePlotSummary struct {
	Title  string `json:"title"`
	XLabel string `json:"x_label"`
	YLabel string `json:"y_label"`
	Points int    `json:"points"`
}

// RasterSummary is a raster request without its samples.
type RasterSummary struct {
	Title         string          `json:"title"`
	ColorbarLabel string          `json:"colorbar_label"`
	Rows          int             `json:"rows"`
	Cols          int             `json:"cols"`
	VMin          float64         `json:"vmin"`
	VMax          float64         `json:"vmax"`
	Metrics       []render.Metric `json:"metrics"`
}

// Recorder keeps every request in memory. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Events returns a copy of the captured events in arrival order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Recorder) add(e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Note(_ context.Context, msg string) error {
	return r.add(Event{Kind: EventNote, Note: msg})
}

func (r *Recorder) LinePlot(_ context.Context, req render.LinePlot) error {
	return r.add(Event{Kind: EventLinePlot, LinePlot: &LinePlotSummary{
		Title:  req.Title,
		XLabel: req.XLabel,
		YLabel: req.YLabel,
		Points: len(req.X),
	}})
}

func (r *Recorder) Raster(_ context.Context, req render.Raster) error {
	s := &RasterSummary{
		Title:         req.Title,
		ColorbarLabel: req.ColorbarLabel,
		VMin:          req.VMin,
		VMax:          req.VMax,
		Metrics:       req.Metrics,
	}
	if req.Samples != nil {
		s.Rows, s.Cols = req.Samples.Dims()
	}
	return r.add(Event{Kind: EventRaster, Raster: s})
}

func (r *Recorder) Diagnostic(_ context.Context, req render.Diagnostic) error {
	return r.add(Event{Kind: EventDiagnostic, Diagnostic: &req})
}

func (r *Recorder) Error(_ context.Context, req render.ErrorReport) error {
	return r.add(Event{Kind: EventError, Error: &req})
}
