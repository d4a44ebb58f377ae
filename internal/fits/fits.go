// Package fits reads HST calibrated products through github.com/astrogo/fitsio
// and converts image arrays and table cells to float64 in physical units.
package fits

import (
	"errors"
	"fmt"
	"math"
	"os"
	"reflect"
	"strings"

	"github.com/astrogo/fitsio"
	"github.com/rotisserie/eris"
)

// Common errors.
var (
	ErrNoData      = errors.New("HDU has no data")
	ErrNotImage    = errors.New("HDU is not an image")
	ErrNotTable    = errors.New("HDU is not a binary table")
	ErrNoColumn    = errors.New("column not found")
	ErrRowRange    = errors.New("row out of range")
	ErrUnsupported = errors.New("unsupported FITS feature")
	ErrMalformed   = errors.New("malformed FITS data")
)

// MaxRows bounds the row count accepted from a table header.
const MaxRows = 1 << 20

// HDUType is the kind of payload an HDU carries.
type HDUType int

const (
	TypeImage HDUType = iota
	TypeBinaryTable
	TypeASCIITable
)

func (t HDUType) String() string {
	switch t {
	case TypeImage:
		return "image"
	case TypeBinaryTable:
		return "bintable"
	case TypeASCIITable:
		return "table"
	default:
		return "unknown"
	}
}

// File is an open FITS container.
type File struct {
	f    *fitsio.File
	hdus []*HDU
}

// HDU is one header/data unit of a File.
type HDU struct {
	Index int

	hdu fitsio.HDU
	typ HDUType
}

// Open decodes the FITS file at path.
func Open(path string) (_ *File, err error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "fits: open %s", path)
	}
	defer r.Close() //nolint:errcheck
	defer guard(&err, "fits: decode "+path)

	f, err := fitsio.Open(r)
	if err != nil {
		return nil, eris.Wrapf(err, "fits: decode %s", path)
	}

	out := &File{f: f}
	for i, h := range f.HDUs() {
		typ := TypeImage
		switch h.Type() {
		case fitsio.BINARY_TBL:
			typ = TypeBinaryTable
		case fitsio.ASCII_TBL:
			typ = TypeASCIITable
		}
		out.hdus = append(out.hdus, &HDU{Index: i, hdu: h, typ: typ})
	}
	return out, nil
}

// Close releases the decoded HDUs.
func (f *File) Close() error {
	return f.f.Close()
}

// HDUs returns every HDU in file order.
func (f *File) HDUs() []*HDU {
	return f.hdus
}

// Len returns the number of HDUs.
func (f *File) Len() int {
	return len(f.hdus)
}

// Type returns the payload kind.
func (h *HDU) Type() HDUType {
	return h.typ
}

// Name returns EXTNAME, "PRIMARY" for an unnamed primary HDU, or "".
func (h *HDU) Name() string {
	if name := strings.TrimSpace(h.hdu.Name()); name != "" {
		return name
	}
	if c := h.hdu.Header().Get("EXTNAME"); c != nil {
		if s, ok := c.Value.(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	if h.Index == 0 {
		return "PRIMARY"
	}
	return ""
}

// Axes returns NAXIS1..NAXISn in FITS order (fastest varying first).
func (h *HDU) Axes() []int {
	return append([]int(nil), h.hdu.Header().Axes()...)
}

// HasData reports whether the HDU carries a non-empty data unit.
func (h *HDU) HasData() bool {
	_, ok := elements(h.Axes())
	return ok
}

// Shape returns the axes in row-major order (slowest varying first), or nil
// when the HDU has no data.
func (h *HDU) Shape() []int {
	if !h.HasData() {
		return nil
	}
	axes := h.Axes()
	shape := make([]int, len(axes))
	for i, a := range axes {
		shape[len(axes)-1-i] = a
	}
	return shape
}

// Bitpix returns the BITPIX keyword.
func (h *HDU) Bitpix() int {
	return h.hdu.Header().Bitpix()
}

// ImageData is a decoded image array in physical units. Data is stored in
// row-major order for Shape.
type ImageData struct {
	Shape []int
	Data  []float64
}

// ReadImage decodes the HDU's array, applying BSCALE/BZERO and mapping BLANK
// integer pixels to NaN.
func (h *HDU) ReadImage() (_ *ImageData, err error) {
	defer guard(&err, fmt.Sprintf("fits: HDU %d image", h.Index))

	img, ok := h.hdu.(fitsio.Image)
	if !ok || h.typ != TypeImage {
		return nil, eris.Wrapf(ErrNotImage, "fits: HDU %d is %s", h.Index, h.typ)
	}
	n, ok := elements(h.Axes())
	if !ok {
		return nil, eris.Wrapf(ErrNoData, "fits: HDU %d", h.Index)
	}

	var raw any
	switch bitpix := h.Bitpix(); bitpix {
	case 8:
		raw = make([]uint8, n)
	case 16:
		raw = make([]int16, n)
	case 32:
		raw = make([]int32, n)
	case 64:
		raw = make([]int64, n)
	case -32:
		raw = make([]float32, n)
	case -64:
		raw = make([]float64, n)
	default:
		return nil, eris.Wrapf(ErrUnsupported, "fits: BITPIX %d", bitpix)
	}
	ptr := reflect.New(reflect.TypeOf(raw))
	ptr.Elem().Set(reflect.ValueOf(raw))
	if err := img.Read(ptr.Interface()); err != nil {
		return nil, eris.Wrapf(err, "fits: read HDU %d", h.Index)
	}

	hdr := h.hdu.Header()
	scale, ok := cardFloat(hdr, "BSCALE")
	if !ok || scale == 0 {
		scale = 1
	}
	zero, _ := cardFloat(hdr, "BZERO")
	blank, hasBlank := cardFloat(hdr, "BLANK")
	integer := h.Bitpix() > 0

	vals := ptr.Elem()
	if vals.Len() != n {
		return nil, eris.Wrapf(ErrMalformed, "fits: HDU %d has %d values, axes need %d", h.Index, vals.Len(), n)
	}
	data := make([]float64, n)
	for i := range data {
		v, _ := number(vals.Index(i))
		if integer && hasBlank && v == blank {
			data[i] = math.NaN()
			continue
		}
		data[i] = v*scale + zero
	}
	return &ImageData{Shape: h.Shape(), Data: data}, nil
}

// Table is a binary table HDU.
type Table struct {
	NumRows int

	hdu *HDU
	tbl *fitsio.Table
}

// Table returns the HDU as a binary table.
func (h *HDU) Table() (*Table, error) {
	tbl, ok := h.hdu.(*fitsio.Table)
	if !ok || h.typ != TypeBinaryTable {
		return nil, eris.Wrapf(ErrNotTable, "fits: HDU %d is %s", h.Index, h.typ)
	}
	if bitpix := h.Bitpix(); bitpix != 8 {
		return nil, eris.Wrapf(ErrMalformed, "fits: HDU %d is a binary table with BITPIX %d", h.Index, bitpix)
	}
	rows := tbl.NumRows()
	if rows < 0 || rows > MaxRows {
		return nil, eris.Wrapf(ErrMalformed, "fits: HDU %d declares %d rows", h.Index, rows)
	}
	return &Table{NumRows: int(rows), hdu: h, tbl: tbl}, nil
}

// Column returns the column called name, ignoring case.
func (t *Table) Column(name string) (fitsio.Column, bool) {
	i := t.index(name)
	if i < 0 {
		return fitsio.Column{}, false
	}
	return t.tbl.Cols()[i], true
}

func (t *Table) index(name string) int {
	for i, c := range t.tbl.Cols() {
		if strings.EqualFold(strings.TrimSpace(c.Name), name) {
			return i
		}
	}
	return -1
}

// ColumnNames returns the column names in table order.
func (t *Table) ColumnNames() []string {
	cols := t.tbl.Cols()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// Float64s returns the cell at (row, name) as float64 values with TSCAL and
// TZERO applied. Scalar cells yield one value.
func (t *Table) Float64s(row int, name string) (_ []float64, err error) {
	defer guard(&err, fmt.Sprintf("fits: HDU %d row %d", t.hdu.Index, row))

	icol := t.index(name)
	if icol < 0 {
		return nil, eris.Wrapf(ErrNoColumn, "fits: %q", name)
	}
	if row < 0 || row >= t.NumRows {
		return nil, eris.Wrapf(ErrRowRange, "fits: row %d of %d", row, t.NumRows)
	}

	rows, err := t.tbl.Read(int64(row), int64(row+1))
	if err != nil {
		return nil, eris.Wrapf(err, "fits: read row %d", row)
	}
	defer rows.Close() //nolint:errcheck
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, eris.Wrapf(err, "fits: read row %d", row)
		}
		return nil, eris.Wrapf(ErrRowRange, "fits: row %d of %d", row, t.NumRows)
	}

	cols := t.tbl.Cols()
	cells := make([]any, len(cols))
	for i, c := range cols {
		cells[i] = reflect.New(c.Type()).Interface()
	}
	if err := rows.Scan(cells...); err != nil {
		return nil, eris.Wrapf(err, "fits: scan row %d", row)
	}

	col := cols[icol]
	scale, zero := col.Bscale, col.Bzero
	if scale == 0 {
		scale = 1
	}
	cell := reflect.ValueOf(cells[icol]).Elem()
	var out []float64
	switch cell.Kind() {
	case reflect.Array, reflect.Slice:
		out = make([]float64, cell.Len())
		for i := range out {
			v, ok := number(cell.Index(i))
			if !ok {
				return nil, eris.Wrapf(ErrUnsupported, "fits: column %q holds %s", name, cell.Type())
			}
			out[i] = v*scale + zero
		}
	default:
		v, ok := number(cell)
		if !ok {
			return nil, eris.Wrapf(ErrUnsupported, "fits: column %q holds %s", name, cell.Type())
		}
		out = []float64{v*scale + zero}
	}
	return out, nil
}

// elements returns the number of values the axes describe.
func elements(axes []int) (int, bool) {
	if len(axes) == 0 {
		return 0, false
	}
	n := 1
	for _, a := range axes {
		if a <= 0 {
			return 0, false
		}
		if n > math.MaxInt32/a {
			return 0, false
		}
		n *= a
	}
	return n, true
}

func number(v reflect.Value) (float64, bool) {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	default:
		return 0, false
	}
}

func cardFloat(hdr *fitsio.Header, key string) (float64, bool) {
	c := hdr.Get(key)
	if c == nil {
		return 0, false
	}
	return number(reflect.ValueOf(c.Value))
}

// guard turns a decoder panic on corrupt input into an ErrMalformed error.
func guard(err *error, what string) {
	if r := recover(); r != nil {
		*err = eris.Wrapf(ErrMalformed, "%s: %v", what, r)
	}
}
