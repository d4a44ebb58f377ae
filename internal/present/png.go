package present

import (
	"context"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/sells-group/hubble-cli/internal/render"
)

const paletteSize = 256

// viridisControls are evenly spaced stops of the viridis colormap.
var viridisControls = []color.Color{
	color.NRGBA{R: 0x44, G: 0x01, B: 0x54, A: 0xff},
	color.NRGBA{R: 0x48, G: 0x28, B: 0x78, A: 0xff},
	color.NRGBA{R: 0x3e, G: 0x49, B: 0x89, A: 0xff},
	color.NRGBA{R: 0x31, G: 0x68, B: 0x8e, A: 0xff},
	color.NRGBA{R: 0x26, G: 0x82, B: 0x8e, A: 0xff},
	color.NRGBA{R: 0x1f, G: 0x9e, B: 0x89, A: 0xff},
	color.NRGBA{R: 0x35, G: 0xb7, B: 0x79, A: 0xff},
	color.NRGBA{R: 0x6e, G: 0xce, B: 0x58, A: 0xff},
	color.NRGBA{R: 0xb5, G: 0xde, B: 0x2b, A: 0xff},
	color.NRGBA{R: 0xfd, G: 0xe7, B: 0x25, A: 0xff},
}

var colormaps = map[string]func() (palette.ColorMap, error){
	"viridis":            func() (palette.ColorMap, error) { return moreland.NewLuminance(viridisControls) },
	"gray":               func() (palette.ColorMap, error) { return moreland.NewLuminance([]color.Color{color.Black, color.White}) },
	"kindlmann":          func() (palette.ColorMap, error) { return moreland.Kindlmann(), nil },
	"extended_kindlmann": func() (palette.ColorMap, error) { return moreland.ExtendedKindlmann(), nil },
	"blackbody":          func() (palette.ColorMap, error) { return moreland.BlackBody(), nil },
	"extended_blackbody": func() (palette.ColorMap, error) { return moreland.ExtendedBlackBody(), nil },
	"coolwarm":           func() (palette.ColorMap, error) { return moreland.SmoothBlueRed(), nil },
}

// ColormapNames lists the colormaps PNG understands, sorted.
func ColormapNames() []string {
	names := make([]string, 0, len(colormaps))
	for name := range colormaps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// KnownColormap reports whether name is a supported colormap.
func KnownColormap(name string) bool {
	_, ok := colormaps[strings.ToLower(name)]
	return ok
}

// Colormap returns a fresh color map for name. Unknown names fall back to
// viridis.
func Colormap(name string) palette.ColorMap {
	build, ok := colormaps[strings.ToLower(name)]
	if !ok {
		zap.L().Warn("present: unknown colormap, using viridis", zap.String("colormap", name))
		build = colormaps["viridis"]
	}
	cm, err := build()
	if err != nil {
		zap.L().Warn("present: colormap construction failed, using kindlmann", zap.String("colormap", name), zap.Error(err))
		return moreland.Kindlmann()
	}
	return cm
}

// Palette samples n colors evenly across the range of cm.
func Palette(cm palette.ColorMap, n int) palette.Palette {
	lo, hi := cm.Min(), cm.Max()
	out := make(staticPalette, n)
	for i := range out {
		v := lo
		if n > 1 {
			v = math.Min(hi, lo+(hi-lo)*float64(i)/float64(n-1))
		}
		c, err := cm.At(v)
		if err != nil {
			c = color.Transparent
		}
		out[i] = c
	}
	return out
}

type staticPalette []color.Color

func (p staticPalette) Colors() []color.Color { return p }

// PNGOption configures a PNG presenter.
type PNGOption func(*PNG)

// WithSize sets the output image size.
func WithSize(width, height vg.Length) PNGOption {
	return func(p *PNG) {
		p.width = width
		p.height = height
	}
}

// PNG writes line plots and rasters as PNG files under a directory. Notes,
// diagnostics and errors produce no files.
type PNG struct {
	dir    string
	width  vg.Length
	height vg.Length

	mu    sync.Mutex
	files []string
}

// NewPNG creates a PNG presenter writing into dir.
func NewPNG(dir string, opts ...PNGOption) *PNG {
	p := &PNG{dir: dir, width: 10 * vg.Inch, height: 6 * vg.Inch}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Files returns the paths written so far.
func (p *PNG) Files() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.files))
	copy(out, p.files)
	return out
}

func (p *PNG) Note(context.Context, string) error { return nil }

func (p *PNG) Diagnostic(context.Context, render.Diagnostic) error { return nil }

func (p *PNG) Error(context.Context, render.ErrorReport) error { return nil }

func (p *PNG) LinePlot(_ context.Context, req render.LinePlot) error {
	plt := plot.New()
	plt.Title.Text = req.Title
	plt.X.Label.Text = req.XLabel
	plt.Y.Label.Text = req.YLabel
	plt.Add(plotter.NewGrid())

	n := min(len(req.X), len(req.Y))
	pts := make(plotter.XYs, 0, n)
	for i := range n {
		if isFinite(req.X[i]) && isFinite(req.Y[i]) {
			pts = append(pts, plotter.XY{X: req.X[i], Y: req.Y[i]})
		}
	}
	if len(pts) > 0 {
		line, err := plotter.NewLine(pts)
		if err != nil {
			return eris.Wrap(err, "png: line plot")
		}
		line.LineStyle.Width = vg.Points(1)
		line.LineStyle.Color = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
		plt.Add(line)
	}

	path, err := p.path(req.Title)
	if err != nil {
		return err
	}
	if err := plt.Save(p.width, p.height, path); err != nil {
		return eris.Wrapf(err, "png: save %s", path)
	}
	p.record(path)
	return nil
}

func (p *PNG) Raster(_ context.Context, req render.Raster) error {
	if req.Samples == nil {
		return eris.New("png: raster has no samples")
	}

	vmin, vmax := widen(req.VMin, req.VMax)
	cmap := Colormap(req.Colormap)
	cmap.SetMin(vmin)
	cmap.SetMax(vmax)
	pal := Palette(cmap, paletteSize)
	colors := pal.Colors()

	heat := plotter.NewHeatMap(denseGrid{m: req.Samples, lower: req.OriginLower}, pal)
	heat.Min, heat.Max = vmin, vmax
	heat.Underflow = colors[0]
	heat.Overflow = colors[len(colors)-1]
	heat.NaN = color.Transparent
	if r, c := req.Samples.Dims(); r > 1 && c > 1 {
		heat.Rasterized = true
	}

	plt := plot.New()
	plt.Title.Text = req.Title + "\n" + metricLine(req.Metrics)
	plt.X.Label.Text = req.XLabel
	plt.Y.Label.Text = req.YLabel
	plt.Add(heat)

	bar := plot.New()
	bar.HideX()
	bar.Y.Label.Text = req.ColorbarLabel
	bar.Add(&plotter.ColorBar{ColorMap: cmap, Vertical: true})

	img := vgimg.New(p.width, p.height)
	dc := draw.New(img)
	barWidth := p.width / 8
	plt.Draw(draw.Crop(dc, 0, -barWidth, 0, 0))
	bar.Draw(draw.Crop(dc, p.width-barWidth, 0, 0, -vg.Points(36)))

	path, err := p.path(req.Title)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "png: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		return eris.Wrapf(err, "png: write %s", path)
	}
	p.record(path)
	return nil
}

func (p *PNG) path(title string) (string, error) {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "png: create dir %s", p.dir)
	}
	return filepath.Join(p.dir, slug(title)+".png"), nil
}

func (p *PNG) record(path string) {
	p.mu.Lock()
	p.files = append(p.files, path)
	p.mu.Unlock()
	zap.L().Info("png: wrote chart", zap.String("path", path))
}

// denseGrid adapts a matrix to plotter.GridXYZ. Column c maps to x and row
// r to y, so row 0 sits at the bottom when lower is set.
type denseGrid struct {
	m     *mat.Dense
	lower bool
}

func (g denseGrid) Dims() (c, r int) {
	r, c = g.m.Dims()
	return c, r
}

func (g denseGrid) Z(c, r int) float64 {
	if !g.lower {
		rows, _ := g.m.Dims()
		r = rows - 1 - r
	}
	return g.m.At(r, c)
}

func (g denseGrid) X(c int) float64 { return float64(c) }

func (g denseGrid) Y(r int) float64 { return float64(r) }

// widen guarantees a non-empty display interval.
func widen(vmin, vmax float64) (float64, float64) {
	if !isFinite(vmin) || !isFinite(vmax) {
		return 0, 1
	}
	if vmax <= vmin {
		return vmin - 0.5, vmin + 0.5
	}
	return vmin, vmax
}

func metricLine(metrics []render.Metric) string {
	parts := make([]string, len(metrics))
	for i, m := range metrics {
		parts[i] = fmt.Sprintf("%s: %s", m.Label, m.Value)
	}
	return strings.Join(parts, "   ")
}

func slug(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	s := strings.TrimSuffix(b.String(), "-")
	if s == "" {
		return "chart"
	}
	return s
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
