// Package present implements render.Presenter for the terminal, for PNG
// files, and for in-memory capture.
package present

import (
	"context"
	"fmt"
	"io"
	"sync"
	"text/tabwriter"

	"gonum.org/v1/gonum/floats"

	"github.com/sells-group/hubble-cli/internal/render"
)

// Console writes presentation requests as text.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsole creates a Console writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

func (c *Console) Note(_ context.Context, msg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "note: %s\n", msg)
	return err
}

func (c *Console) LinePlot(_ context.Context, req render.LinePlot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "%s\n", req.Title)
	_, _ = fmt.Fprintf(w, "  points\t%d\n", len(req.X))
	if len(req.X) > 0 && len(req.Y) > 0 {
		_, _ = fmt.Fprintf(w, "  %s\t%.4g .. %.4g\n", req.XLabel, floats.Min(req.X), floats.Max(req.X))
		_, _ = fmt.Fprintf(w, "  %s\t%.4g .. %.4g\n", req.YLabel, floats.Min(req.Y), floats.Max(req.Y))
	}
	return w.Flush()
}

func (c *Console) Raster(_ context.Context, req render.Raster) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "%s\n", req.Title)
	if req.Samples != nil {
		r, cols := req.Samples.Dims()
		_, _ = fmt.Fprintf(w, "  shape\t(%d, %d)\n", r, cols)
	}
	_, _ = fmt.Fprintf(w, "  display range\t%.2f .. %.2f\n", req.VMin, req.VMax)
	for _, m := range req.Metrics {
		_, _ = fmt.Fprintf(w, "  %s\t%s\n", m.Label, m.Value)
	}
	return w.Flush()
}

func (c *Console) Diagnostic(_ context.Context, req render.Diagnostic) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, _ = fmt.Fprintln(c.out, req.Notice)
	_, _ = fmt.Fprintln(c.out, "Extensions:")
	for _, name := range req.Extensions {
		_, _ = fmt.Fprintf(c.out, "  %s\n", name)
	}
	_, err := fmt.Fprintf(c.out, "Data shape: %s\n", req.Shape)
	return err
}

func (c *Console) Error(_ context.Context, req render.ErrorReport) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := fmt.Fprintf(c.out, "error: %s\n", req.Message)
	if len(req.Details) > 0 {
		_, _ = fmt.Fprintln(c.out, "Available extensions:")
		for _, d := range req.Details {
			_, err = fmt.Fprintf(c.out, "  %s\n", d)
		}
	}
	return err
}
