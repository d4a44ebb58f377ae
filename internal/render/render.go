// Package render turns an extracted dataset into exactly one presentation
// request: a line plot for spectra, a z-scaled raster with statistics for
// images, or a diagnostic for time series.
package render

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/sells-group/hubble-cli/internal/model"
)

// Axis and title text used by the requests.
const (
	LabelWavelength = "Wavelength (Å)"
	LabelFlux       = "Flux (erg/s/cm²/Å)"
	LabelXPixels    = "X (pixels)"
	LabelYPixels    = "Y (pixels)"
	LabelCounts     = "Counts"
)

// LinePlot requests a single line series.
type LinePlot struct {
	Title  string
	XLabel string
	YLabel string
	X      []float64
	Y      []float64
}

// Raster requests a 2-D image drawn with display limits VMin/VMax and a
// labelled colorbar. Row 0 of Samples is drawn at the bottom when
// OriginLower is set.
type Raster struct {
	Title         string
	XLabel        string
	YLabel        string
	ColorbarLabel string
	Colormap      string
	Samples       *mat.Dense
	VMin          float64
	VMax          float64
	OriginLower   bool
	Metrics       []Metric
}

// Diagnostic requests an informational text block.
type Diagnostic struct {
	Notice     string   `json:"notice"`
	Extensions []string `json:"extensions"`
	Shape      string   `json:"shape"`
}

// ErrorReport requests display of a failed run's cause.
type ErrorReport struct {
	Kind    model.ErrorKind `json:"kind,omitempty"`
	Stage   model.RunState  `json:"stage,omitempty"`
	Message string          `json:"message"`
	Details []string        `json:"details,omitempty"`
}

// NewErrorReport builds an ErrorReport from err.
func NewErrorReport(err error) ErrorReport {
	se, ok := model.AsStageError(err)
	if !ok {
		return ErrorReport{Message: err.Error()}
	}
	rep := ErrorReport{Kind: se.Kind, Stage: se.Stage, Message: se.Message}
	if se.Err != nil {
		rep.Message += ": " + se.Err.Error()
	}
	for _, ext := range se.Extensions {
		rep.Details = append(rep.Details, ext.String())
	}
	return rep
}

// Presenter displays presentation requests. Implementations hold no
// business logic.
type Presenter interface {
	Note(ctx context.Context, msg string) error
	LinePlot(ctx context.Context, req LinePlot) error
	Raster(ctx context.Context, req Raster) error
	Diagnostic(ctx context.Context, req Diagnostic) error
	Error(ctx context.Context, req ErrorReport) error
}

// Context carries the labels of the current run.
type Context struct {
	Target     string
	Instrument string
}

// RequestKind names the request a dataset produced.
type RequestKind string

const (
	KindLinePlot   RequestKind = "line_plot"
	KindRaster     RequestKind = "raster"
	KindDiagnostic RequestKind = "diagnostic"
)

// Outcome describes what Render emitted.
type Outcome struct {
	Kind     RequestKind
	Notes    []string
	Metrics  *model.ImageMetrics
	Warnings []string
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithZScale overrides the z-scale parameters.
func WithZScale(z ZScale) Option {
	return func(r *Renderer) {
		r.zscale = z
	}
}

// WithColormap sets the raster colormap name.
func WithColormap(name string) Option {
	return func(r *Renderer) {
		r.colormap = name
	}
}

// Renderer dispatches datasets to type-specific routines.
type Renderer struct {
	presenter Presenter
	zscale    ZScale
	colormap  string
}

// New creates a Renderer emitting requests to p.
func New(p Presenter, opts ...Option) *Renderer {
	r := &Renderer{presenter: p, zscale: DefaultZScale(), colormap: "viridis"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render emits the request for ds. Presenter failures are reported as
// warnings; rendering itself cannot fail.
func (r *Renderer) Render(ctx context.Context, ds model.Dataset, rc Context) Outcome {
	var out Outcome
	switch d := ds.(type) {
	case *model.Spectrum:
		out.Kind = KindLinePlot
		out.warn(r.presenter.LinePlot(ctx, LinePlot{
			Title:  fmt.Sprintf("HST Spectrum: %s (%s)", rc.Target, rc.Instrument),
			XLabel: LabelWavelength,
			YLabel: LabelFlux,
			X:      d.Wavelength,
			Y:      d.Flux,
		}))

	case *model.Image:
		out.Kind = KindRaster
		r.note(ctx, &out, fmt.Sprintf("Using data from extension %d (%s)", d.ExtensionIndex, extensionLabel(d.ExtensionName)))
		if d.Reduced {
			r.note(ctx, &out, "Using first slice of 3D data")
		}

		metrics := Statistics(d.Samples)
		metrics.VMin, metrics.VMax = r.zscale.Limits(flatten(d.Samples))
		out.Metrics = &metrics

		out.warn(r.presenter.Raster(ctx, Raster{
			Title:         fmt.Sprintf("HST Image: %s (%s)", rc.Target, rc.Instrument),
			XLabel:        LabelXPixels,
			YLabel:        LabelYPixels,
			ColorbarLabel: LabelCounts,
			Colormap:      r.colormap,
			Samples:       d.Samples,
			VMin:          metrics.VMin,
			VMax:          metrics.VMax,
			OriginLower:   true,
			Metrics:       FormatMetrics(metrics),
		}))

	case *model.TimeSeries:
		out.Kind = KindDiagnostic
		out.Notes = append(out.Notes, model.NoticeUnsupportedRender)
		out.warn(r.presenter.Diagnostic(ctx, Diagnostic{
			Notice:     model.NoticeUnsupportedRender,
			Extensions: d.ExtensionNames(),
			Shape:      model.FormatShape(d.PrimaryShape),
		}))
	}

	for _, w := range out.Warnings {
		zap.L().Warn("render: presenter failed", zap.String("kind", string(out.Kind)), zap.String("error", w))
	}
	return out
}

func (r *Renderer) note(ctx context.Context, out *Outcome, msg string) {
	out.Notes = append(out.Notes, msg)
	out.warn(r.presenter.Note(ctx, msg))
}

func (o *Outcome) warn(err error) {
	if err != nil {
		o.Warnings = append(o.Warnings, err.Error())
	}
}

func extensionLabel(name string) string {
	if name == "" {
		return "PRIMARY"
	}
	return name
}
