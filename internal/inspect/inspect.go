// Package inspect opens retrieved FITS containers and extracts the dataset a
// data type needs.
package inspect

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/sells-group/hubble-cli/internal/fits"
	"github.com/sells-group/hubble-cli/internal/model"
	"github.com/sells-group/hubble-cli/internal/selector"
)

// Column names of calibrated spectrum tables.
const (
	ColumnWavelength = "WAVELENGTH"
	ColumnFlux       = "FLUX"
)

// spectrumExtension is the HDU holding X1D spectrum tables.
const spectrumExtension = 1

// Inspector extracts datasets from FITS files.
type Inspector struct {
	row selector.Picker[int]
}

// New creates an Inspector choosing spectrum rows with row. A nil picker
// selects the first row.
func New(row selector.Picker[int]) *Inspector {
	if row == nil {
		row = selector.FirstMatch[int]{}
	}
	return &Inspector{row: row}
}

// Extract opens path and pulls out the dataset for dt.
func (in *Inspector) Extract(path string, dt model.DataType) (model.Dataset, error) {
	f, err := fits.Open(path)
	if err != nil {
		return nil, model.NewStageError(model.ErrKindContainerParse, fmt.Sprintf("cannot read %s", path), err)
	}
	defer f.Close() //nolint:errcheck

	switch dt {
	case model.DataTypeSpectrum:
		return in.spectrum(f)
	case model.DataTypeImage:
		return image(f)
	case model.DataTypeTimeSeries:
		return &model.TimeSeries{
			Path:         path,
			Extensions:   Extensions(f),
			PrimaryShape: primaryShape(f),
		}, nil
	default:
		return nil, model.NewStageError(model.ErrKindMissingData, fmt.Sprintf("unsupported data type %q", dt), nil)
	}
}

func (in *Inspector) spectrum(f *fits.File) (*model.Spectrum, error) {
	if f.Len() <= spectrumExtension {
		return nil, missing(fmt.Sprintf("spectrum table not found: file has %d HDU(s)", f.Len()), nil)
	}
	hdu := f.HDUs()[spectrumExtension]
	tbl, err := hdu.Table()
	if errors.Is(err, fits.ErrMalformed) {
		return nil, model.NewStageError(model.ErrKindContainerParse, fmt.Sprintf("cannot read extension %d", spectrumExtension), err)
	}
	if err != nil {
		return nil, missing(fmt.Sprintf("extension %d is not a spectrum table", spectrumExtension), err)
	}
	for _, col := range []string{ColumnWavelength, ColumnFlux} {
		if _, ok := tbl.Column(col); !ok {
			return nil, missing(fmt.Sprintf("column %s not found in extension %d", col, spectrumExtension), fits.ErrNoColumn)
		}
	}

	rows := make([]int, tbl.NumRows)
	for i := range rows {
		rows[i] = i
	}
	row, ok := in.row.Pick(rows)
	if !ok {
		return nil, missing("spectrum table has no rows", nil)
	}

	wl, err := tbl.Float64s(row, ColumnWavelength)
	if err != nil {
		return nil, cellError(err)
	}
	flux, err := tbl.Float64s(row, ColumnFlux)
	if err != nil {
		return nil, cellError(err)
	}
	if len(wl) != len(flux) {
		return nil, missing(fmt.Sprintf("wavelength has %d points, flux has %d", len(wl), len(flux)), nil)
	}

	zap.L().Debug("inspect: spectrum",
		zap.Int("extension", spectrumExtension),
		zap.Int("row", row),
		zap.Int("points", len(wl)),
	)
	return &model.Spectrum{Wavelength: wl, Flux: flux, Extension: spectrumExtension, Row: row}, nil
}

func image(f *fits.File) (*model.Image, error) {
	for _, hdu := range f.HDUs() {
		if hdu.Type() != fits.TypeImage || !hdu.HasData() {
			continue
		}

		shape := hdu.Shape()
		if len(shape) != 2 && len(shape) != 3 {
			return nil, missing(fmt.Sprintf("unsupported image dimensionality %d in extension %d", len(shape), hdu.Index), nil)
		}
		data, err := hdu.ReadImage()
		if err != nil {
			return nil, model.NewStageError(model.ErrKindContainerParse, fmt.Sprintf("cannot decode extension %d", hdu.Index), err)
		}

		img := &model.Image{
			ExtensionIndex: hdu.Index,
			ExtensionName:  hdu.Name(),
			SourceShape:    shape,
		}
		rows, cols := shape[len(shape)-2], shape[len(shape)-1]
		plane := data.Data
		if len(shape) == 3 {
			plane = plane[:rows*cols]
			img.Reduced = true
		}
		img.Samples = mat.NewDense(rows, cols, plane)
		return img, nil
	}

	return nil, &model.StageError{
		Kind:       model.ErrKindNoImageData,
		Message:    "No image data found in the FITS file.",
		Extensions: Extensions(f),
	}
}

// Extensions lists every HDU of f.
func Extensions(f *fits.File) []model.ExtensionInfo {
	out := make([]model.ExtensionInfo, 0, f.Len())
	for _, hdu := range f.HDUs() {
		info := model.ExtensionInfo{
			Index: hdu.Index,
			Name:  hdu.Name(),
			Shape: hdu.Shape(),
		}
		switch {
		case !hdu.HasData():
			info.Type = model.ExtensionEmpty
		case hdu.Type() == fits.TypeBinaryTable:
			info.Type = model.ExtensionBinaryTable
		case hdu.Type() == fits.TypeASCIITable:
			info.Type = model.ExtensionASCIITable
		default:
			info.Type = model.ExtensionImage
		}
		out = append(out, info)
	}
	return out
}

func primaryShape(f *fits.File) []int {
	if f.Len() == 0 {
		return nil
	}
	return f.HDUs()[0].Shape()
}

func missing(msg string, err error) *model.StageError {
	return model.NewStageError(model.ErrKindMissingData, msg, err)
}

func cellError(err error) *model.StageError {
	if errors.Is(err, fits.ErrNoColumn) || errors.Is(err, fits.ErrUnsupported) || errors.Is(err, fits.ErrRowRange) {
		return missing("cannot read spectrum columns", err)
	}
	return model.NewStageError(model.ErrKindContainerParse, "cannot read spectrum table", err)
}
