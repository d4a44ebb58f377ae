package inspect

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/hubble-cli/internal/fitstest"
	"github.com/sells-group/hubble-cli/internal/model"
	"github.com/sells-group/hubble-cli/internal/selector"
)

func writeFITS(t *testing.T, name string, fn func(e *fitstest.Encoder) error) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, fn(fitstest.NewEncoder(&buf)))
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func ramp(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func spectrumFile(t *testing.T, points int, cols ...fitstest.TableColumn) string {
	t.Helper()
	if len(cols) == 0 {
		cols = []fitstest.TableColumn{
			{Name: "WAVELENGTH", Unit: "Angstrom", Type: 'D', Repeat: points},
			{Name: "FLUX", Unit: "erg/s/cm**2/Angstrom", Type: 'E', Repeat: points},
		}
	}
	rows := make([][][]float64, 2)
	for r := range rows {
		rows[r] = make([][]float64, len(cols))
		for c := range cols {
			rows[r][c] = ramp(points, float64(1000*(r+1)+c), 0.5)
		}
	}
	return writeFITS(t, "le4a01010_x1d.fits", func(e *fitstest.Encoder) error {
		return e.WriteTable(fitstest.TableHDU{Name: "SCI", Columns: cols, Rows: rows})
	})
}

func kindOf(t *testing.T, err error) model.ErrorKind {
	t.Helper()
	require.Error(t, err)
	return model.KindOf(err)
}

func TestExtract_Spectrum(t *testing.T) {
	path := spectrumFile(t, 1024)

	ds, err := New(nil).Extract(path, model.DataTypeSpectrum)
	require.NoError(t, err)

	spec, ok := ds.(*model.Spectrum)
	require.True(t, ok)
	assert.Len(t, spec.Wavelength, 1024)
	assert.Len(t, spec.Flux, 1024)
	assert.Equal(t, 1, spec.Extension)
	assert.Equal(t, 0, spec.Row)
	assert.Equal(t, 1000.0, spec.Wavelength[0])
	assert.Equal(t, 1001.0, spec.Flux[0])
}

func TestExtract_SpectrumRowPicker(t *testing.T) {
	path := spectrumFile(t, 8)
	last := selector.PickerFunc[int](func(rows []int) (int, bool) {
		return rows[len(rows)-1], len(rows) > 0
	})

	ds, err := New(last).Extract(path, model.DataTypeSpectrum)
	require.NoError(t, err)
	spec := ds.(*model.Spectrum)
	assert.Equal(t, 1, spec.Row)
	assert.Equal(t, 2000.0, spec.Wavelength[0])
}

func TestExtract_SpectrumMissingColumn(t *testing.T) {
	path := spectrumFile(t, 4,
		fitstest.TableColumn{Name: "WAVELENGTH", Type: 'D', Repeat: 4},
		fitstest.TableColumn{Name: "NET", Type: 'E', Repeat: 4},
	)

	_, err := New(nil).Extract(path, model.DataTypeSpectrum)
	assert.Equal(t, model.ErrKindMissingData, kindOf(t, err))
	assert.Contains(t, err.Error(), "FLUX")
}

func TestExtract_SpectrumNoTable(t *testing.T) {
	onlyPrimary := writeFITS(t, "p.fits", func(e *fitstest.Encoder) error {
		return e.WriteImage(fitstest.ImageHDU{Bitpix: 16, Axes: []int{4}, Data: ramp(4, 0, 1)})
	})
	_, err := New(nil).Extract(onlyPrimary, model.DataTypeSpectrum)
	assert.Equal(t, model.ErrKindMissingData, kindOf(t, err))

	imageExt := writeFITS(t, "i.fits", func(e *fitstest.Encoder) error {
		if err := e.WriteImage(fitstest.ImageHDU{}); err != nil {
			return err
		}
		return e.WriteImage(fitstest.ImageHDU{Name: "SCI", Axes: []int{2, 2}, Data: ramp(4, 0, 1)})
	})
	_, err = New(nil).Extract(imageExt, model.DataTypeSpectrum)
	assert.Equal(t, model.ErrKindMissingData, kindOf(t, err))
}

func TestExtract_SpectrumEmptyTable(t *testing.T) {
	path := writeFITS(t, "e.fits", func(e *fitstest.Encoder) error {
		return e.WriteTable(fitstest.TableHDU{Columns: []fitstest.TableColumn{
			{Name: "WAVELENGTH", Type: 'D', Repeat: 4},
			{Name: "FLUX", Type: 'E', Repeat: 4},
		}})
	})
	_, err := New(nil).Extract(path, model.DataTypeSpectrum)
	assert.Equal(t, model.ErrKindMissingData, kindOf(t, err))
}

func TestExtract_ContainerParseError(t *testing.T) {
	garbage := filepath.Join(t.TempDir(), "page.fits")
	require.NoError(t, os.WriteFile(garbage, []byte("<html>Service Unavailable</html>"), 0o644))

	for _, dt := range model.AllDataTypes() {
		_, err := New(nil).Extract(garbage, dt)
		assert.Equal(t, model.ErrKindContainerParse, kindOf(t, err), dt)
	}

	_, err := New(nil).Extract(filepath.Join(t.TempDir(), "missing.fits"), model.DataTypeImage)
	assert.Equal(t, model.ErrKindContainerParse, kindOf(t, err))
}

func TestExtract_Image2D(t *testing.T) {
	data := ramp(12, 0, 1)
	path := writeFITS(t, "x_flc.fits", func(e *fitstest.Encoder) error {
		if err := e.WriteImage(fitstest.ImageHDU{}); err != nil {
			return err
		}
		return e.WriteImage(fitstest.ImageHDU{Name: "SCI", Axes: []int{4, 3}, Data: data})
	})

	ds, err := New(nil).Extract(path, model.DataTypeImage)
	require.NoError(t, err)
	img := ds.(*model.Image)

	assert.Equal(t, 1, img.ExtensionIndex)
	assert.Equal(t, "SCI", img.ExtensionName)
	assert.False(t, img.Reduced)
	assert.Equal(t, []int{3, 4}, img.Shape())
	assert.Equal(t, []int{3, 4}, img.SourceShape)
	// Row y, column x is pixel (x, y) with NAXIS1 varying fastest.
	assert.Equal(t, data[2*4+1], img.Samples.At(2, 1))
}

func TestExtract_ImageFirstWithDataWins(t *testing.T) {
	path := writeFITS(t, "scan.fits", func(e *fitstest.Encoder) error {
		if err := e.WriteImage(fitstest.ImageHDU{Name: "A"}); err != nil {
			return err
		}
		if err := e.WriteImage(fitstest.ImageHDU{Name: "B", Axes: []int{2, 2}, Data: []float64{1, 1, 1, 1}}); err != nil {
			return err
		}
		return e.WriteImage(fitstest.ImageHDU{Name: "C", Axes: []int{2, 2}, Data: []float64{9, 9, 9, 9}})
	})

	ds, err := New(nil).Extract(path, model.DataTypeImage)
	require.NoError(t, err)
	img := ds.(*model.Image)
	assert.Equal(t, 1, img.ExtensionIndex)
	assert.Equal(t, "B", img.ExtensionName)
	assert.Equal(t, 1.0, img.Samples.At(0, 0))
}

func TestExtract_ImageSkipsTables(t *testing.T) {
	path := writeFITS(t, "mixed.fits", func(e *fitstest.Encoder) error {
		if err := e.WriteTable(fitstest.TableHDU{
			Name:    "ASN",
			Columns: []fitstest.TableColumn{{Name: "MEMNAME", Type: 'J'}},
			Rows:    [][][]float64{{{1}}},
		}); err != nil {
			return err
		}
		return e.WriteImage(fitstest.ImageHDU{Name: "SCI", Axes: []int{2, 2}, Data: ramp(4, 0, 1)})
	})

	ds, err := New(nil).Extract(path, model.DataTypeImage)
	require.NoError(t, err)
	assert.Equal(t, 2, ds.(*model.Image).ExtensionIndex)
}

func TestExtract_Image3DReducesToFirstPlane(t *testing.T) {
	data := ramp(4*3*2, 0, 1)
	path := writeFITS(t, "cube.fits", func(e *fitstest.Encoder) error {
		return e.WriteImage(fitstest.ImageHDU{Axes: []int{4, 3, 2}, Bitpix: -64, Data: data})
	})

	ds, err := New(nil).Extract(path, model.DataTypeImage)
	require.NoError(t, err)
	img := ds.(*model.Image)

	assert.True(t, img.Reduced)
	assert.Equal(t, "PRIMARY", img.ExtensionName)
	assert.Equal(t, []int{2, 3, 4}, img.SourceShape)
	assert.Equal(t, []int{3, 4}, img.Shape())
	for y := range 3 {
		for x := range 4 {
			assert.Equal(t, data[y*4+x], img.Samples.At(y, x))
		}
	}
}

func TestExtract_ImageUnsupportedDimensionality(t *testing.T) {
	path := writeFITS(t, "line.fits", func(e *fitstest.Encoder) error {
		return e.WriteImage(fitstest.ImageHDU{Axes: []int{16}, Data: ramp(16, 0, 1)})
	})

	_, err := New(nil).Extract(path, model.DataTypeImage)
	assert.Equal(t, model.ErrKindMissingData, kindOf(t, err))
	assert.Contains(t, err.Error(), "dimensionality")
}

func TestExtract_NoImageData(t *testing.T) {
	path := writeFITS(t, "events.fits", func(e *fitstest.Encoder) error {
		return e.WriteTable(fitstest.TableHDU{
			Name:    "EVENTS",
			Columns: []fitstest.TableColumn{{Name: "TIME", Type: 'D'}},
			Rows:    [][][]float64{{{1}}, {{2}}},
		})
	})

	_, err := New(nil).Extract(path, model.DataTypeImage)
	assert.Equal(t, model.ErrKindNoImageData, kindOf(t, err))

	se, ok := model.AsStageError(err)
	require.True(t, ok)
	assert.Equal(t, "No image data found in the FITS file.", se.Message)
	require.Len(t, se.Extensions, 2)
	assert.Equal(t, "0: PRIMARY - empty", se.Extensions[0].String())
	assert.Equal(t, "1: EVENTS - bintable", se.Extensions[1].String())
}

func TestExtract_TimeSeries(t *testing.T) {
	path := writeFITS(t, "lc.fits", func(e *fitstest.Encoder) error {
		return e.WriteTable(fitstest.TableHDU{
			Name:    "LIGHTCURVE",
			Columns: []fitstest.TableColumn{{Name: "TIME", Type: 'D'}, {Name: "FLUX", Type: 'E'}},
			Rows:    [][][]float64{{{1}, {2}}},
		})
	})

	ds, err := New(nil).Extract(path, model.DataTypeTimeSeries)
	require.NoError(t, err)
	ts := ds.(*model.TimeSeries)
	assert.Equal(t, path, ts.Path)
	assert.Equal(t, []string{"PRIMARY", "LIGHTCURVE"}, ts.ExtensionNames())
	assert.Nil(t, ts.PrimaryShape)
	assert.Equal(t, "No data", model.FormatShape(ts.PrimaryShape))
}

func TestExtract_TimeSeriesPrimaryShape(t *testing.T) {
	path := writeFITS(t, "lc.fits", func(e *fitstest.Encoder) error {
		return e.WriteImage(fitstest.ImageHDU{Axes: []int{8, 2}, Data: ramp(16, 0, 1)})
	})

	ds, err := New(nil).Extract(path, model.DataTypeTimeSeries)
	require.NoError(t, err)
	assert.Equal(t, "(2, 8)", model.FormatShape(ds.(*model.TimeSeries).PrimaryShape))
}

func TestExtract_MalformedTableIsParseError(t *testing.T) {
	raw := fitstest.Raw([]string{
		"SIMPLE  =                    T",
		"BITPIX  =                    8",
		"NAXIS   =                    0",
		"EXTEND  =                    T",
	}, nil)
	raw = append(raw, fitstest.Raw([]string{
		"XTENSION= 'BINTABLE'",
		"BITPIX  =                    0",
		"NAXIS   =                    2",
		"NAXIS1  =                   16",
		"NAXIS2  =                    1",
		"PCOUNT  =                    0",
		"GCOUNT  =                    1",
		"TFIELDS =                    2",
		"TTYPE1  = 'WAVELENGTH'",
		"TFORM1  = '1D      '",
		"TTYPE2  = 'FLUX    '",
		"TFORM2  = '1D      '",
	}, nil)...)
	path := filepath.Join(t.TempDir(), "bad_x1d.fits")
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	var err error
	assert.NotPanics(t, func() { _, err = New(nil).Extract(path, model.DataTypeSpectrum) })
	assert.Equal(t, model.ErrKindContainerParse, kindOf(t, err))
}
