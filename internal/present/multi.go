package present

import (
	"context"
	"errors"

	"github.com/sells-group/hubble-cli/internal/render"
)

// Multi forwards every request to each presenter in order. All presenters
// see every request; their errors are joined.
type Multi []render.Presenter

func (m Multi) each(fn func(render.Presenter) error) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := fn(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Note(ctx context.Context, msg string) error {
	return m.each(func(p render.Presenter) error { return p.Note(ctx, msg) })
}

func (m Multi) LinePlot(ctx context.Context, req render.LinePlot) error {
	return m.each(func(p render.Presenter) error { return p.LinePlot(ctx, req) })
}

func (m Multi) Raster(ctx context.Context, req render.Raster) error {
	return m.each(func(p render.Presenter) error { return p.Raster(ctx, req) })
}

func (m Multi) Diagnostic(ctx context.Context, req render.Diagnostic) error {
	return m.each(func(p render.Presenter) error { return p.Diagnostic(ctx, req) })
}

func (m Multi) Error(ctx context.Context, req render.ErrorReport) error {
	return m.each(func(p render.Presenter) error { return p.Error(ctx, req) })
}
