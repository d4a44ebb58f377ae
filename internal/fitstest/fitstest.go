// Package fitstest writes small FITS files for tests.
package fitstest

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrUnsupported is returned for BITPIX values and column codes the encoder
// cannot write.
var ErrUnsupported = errors.New("unsupported FITS feature")

// Card is one header keyword record. A nil Value writes a commentary card.
type Card struct {
	Key     string
	Value   any
	Comment string
}

const blockSize = 2880

func padded(n int64) int64 {
	return (n + blockSize - 1) / blockSize * blockSize
}

var elemWidth = map[byte]int{
	'L': 1, 'B': 1, 'I': 2, 'J': 4, 'K': 8, 'E': 4, 'D': 8,
}

type column struct {
	Name   string
	Type   byte
	Repeat int
	Width  int
	Offset int
}

// ImageHDU is an image array to encode. Axes are in FITS order
// (NAXIS1 first); Data is laid out with NAXIS1 varying fastest.
type ImageHDU struct {
	Name   string
	Bitpix int
	Axes   []int
	Data   []float64
	Cards  []Card
}

// TableColumn describes one binary table field to encode. Type is a TFORM
// code among L, B, I, J, K, E and D.
type TableColumn struct {
	Name   string
	Unit   string
	Type   byte
	Repeat int
}

// TableHDU is a binary table to encode. Rows[r][c] holds the Repeat values of
// column c in row r.
type TableHDU struct {
	Name    string
	Columns []TableColumn
	Rows    [][][]float64
	Cards   []Card
}

// Encoder writes HDUs sequentially to a FITS stream. The first HDU written
// becomes the primary; a table written first is preceded by an empty primary.
type Encoder struct {
	w io.Writer
	n int
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// WriteImage appends an image HDU.
func (e *Encoder) WriteImage(img ImageHDU) error {
	bitpix := img.Bitpix
	if bitpix == 0 {
		bitpix = -32
		if len(img.Axes) == 0 {
			bitpix = 8
		}
	}
	width := bitpix / 8
	if width < 0 {
		width = -width
	}
	switch bitpix {
	case 8, 16, 32, 64, -32, -64:
	default:
		return eris.Wrapf(ErrUnsupported, "fits: encode BITPIX %d", bitpix)
	}

	n := 0
	if len(img.Axes) > 0 {
		n = 1
		for _, a := range img.Axes {
			n *= a
		}
	}
	if len(img.Data) != n {
		return eris.Errorf("fits: image has %d values, axes need %d", len(img.Data), n)
	}

	var cards []Card
	if e.n == 0 {
		cards = append(cards, Card{Key: "SIMPLE", Value: true})
	} else {
		cards = append(cards, Card{Key: "XTENSION", Value: "IMAGE"})
	}
	cards = append(cards,
		Card{Key: "BITPIX", Value: int64(bitpix)},
		Card{Key: "NAXIS", Value: int64(len(img.Axes))},
	)
	for i, a := range img.Axes {
		cards = append(cards, Card{Key: "NAXIS" + strconv.Itoa(i+1), Value: int64(a)})
	}
	if e.n == 0 {
		cards = append(cards, Card{Key: "EXTEND", Value: true})
	} else {
		cards = append(cards,
			Card{Key: "PCOUNT", Value: int64(0)},
			Card{Key: "GCOUNT", Value: int64(1)},
		)
	}
	if img.Name != "" {
		cards = append(cards, Card{Key: "EXTNAME", Value: img.Name})
	}
	cards = append(cards, img.Cards...)

	data := make([]byte, n*width)
	be := binary.BigEndian
	for i, v := range img.Data {
		switch bitpix {
		case 8:
			data[i] = byte(math.Round(v))
		case 16:
			be.PutUint16(data[i*2:], uint16(int16(math.Round(v))))
		case 32:
			be.PutUint32(data[i*4:], uint32(int32(math.Round(v))))
		case 64:
			be.PutUint64(data[i*8:], uint64(int64(math.Round(v))))
		case -32:
			be.PutUint32(data[i*4:], math.Float32bits(float32(v)))
		case -64:
			be.PutUint64(data[i*8:], math.Float64bits(v))
		}
	}
	return e.write(cards, data)
}

// WriteTable appends a BINTABLE HDU.
func (e *Encoder) WriteTable(tbl TableHDU) error {
	if e.n == 0 {
		if err := e.WriteImage(ImageHDU{}); err != nil {
			return err
		}
	}

	cols := make([]column, len(tbl.Columns))
	rowLen := 0
	for i, tc := range tbl.Columns {
		repeat := tc.Repeat
		if repeat <= 0 {
			repeat = 1
		}
		w, ok := elemWidth[tc.Type]
		if !ok {
			return eris.Wrapf(ErrUnsupported, "fits: encode column type %q", tc.Type)
		}
		cols[i] = column{Name: tc.Name, Type: tc.Type, Repeat: repeat, Width: w, Offset: rowLen}
		rowLen += repeat * w
	}

	cards := []Card{
		{Key: "XTENSION", Value: "BINTABLE"},
		{Key: "BITPIX", Value: int64(8)},
		{Key: "NAXIS", Value: int64(2)},
		{Key: "NAXIS1", Value: int64(rowLen)},
		{Key: "NAXIS2", Value: int64(len(tbl.Rows))},
		{Key: "PCOUNT", Value: int64(0)},
		{Key: "GCOUNT", Value: int64(1)},
		{Key: "TFIELDS", Value: int64(len(cols))},
	}
	for i, tc := range tbl.Columns {
		n := strconv.Itoa(i + 1)
		cards = append(cards,
			Card{Key: "TTYPE" + n, Value: tc.Name},
			Card{Key: "TFORM" + n, Value: strconv.Itoa(cols[i].Repeat) + string(tc.Type)},
		)
		if tc.Unit != "" {
			cards = append(cards, Card{Key: "TUNIT" + n, Value: tc.Unit})
		}
	}
	if tbl.Name != "" {
		cards = append(cards, Card{Key: "EXTNAME", Value: tbl.Name})
	}
	cards = append(cards, tbl.Cards...)

	data := make([]byte, rowLen*len(tbl.Rows))
	be := binary.BigEndian
	for r, row := range tbl.Rows {
		if len(row) != len(cols) {
			return eris.Errorf("fits: row %d has %d cells, table has %d columns", r, len(row), len(cols))
		}
		for c, cell := range row {
			col := cols[c]
			if len(cell) != col.Repeat {
				return eris.Errorf("fits: row %d column %q has %d values, want %d", r, col.Name, len(cell), col.Repeat)
			}
			base := r*rowLen + col.Offset
			for i, v := range cell {
				p := data[base+i*col.Width:]
				switch col.Type {
				case 'L':
					p[0] = 'F'
					if v != 0 {
						p[0] = 'T'
					}
				case 'B':
					p[0] = byte(math.Round(v))
				case 'I':
					be.PutUint16(p, uint16(int16(math.Round(v))))
				case 'J':
					be.PutUint32(p, uint32(int32(math.Round(v))))
				case 'K':
					be.PutUint64(p, uint64(int64(math.Round(v))))
				case 'E':
					be.PutUint32(p, math.Float32bits(float32(v)))
				case 'D':
					be.PutUint64(p, math.Float64bits(v))
				}
			}
		}
	}
	return e.write(cards, data)
}

func (e *Encoder) write(cards []Card, data []byte) error {
	var b strings.Builder
	for _, c := range cards {
		b.WriteString(formatCard(c))
	}
	fmt.Fprintf(&b, "%-80s", "END")
	hdr := []byte(b.String())
	hdr = append(hdr, []byte(strings.Repeat(" ", int(padded(int64(len(hdr)))-int64(len(hdr)))))...)

	if _, err := e.w.Write(hdr); err != nil {
		return eris.Wrap(err, "fits: write header")
	}
	if len(data) > 0 {
		data = append(data, make([]byte, padded(int64(len(data)))-int64(len(data)))...)
		if _, err := e.w.Write(data); err != nil {
			return eris.Wrap(err, "fits: write data")
		}
	}
	e.n++
	return nil
}

func formatCard(c Card) string {
	var val string
	switch v := c.Value.(type) {
	case string:
		q := "'" + fmt.Sprintf("%-8s", strings.ReplaceAll(v, "'", "''")) + "'"
		val = fmt.Sprintf("%-20s", q)
	case bool:
		val = "F"
		if v {
			val = "T"
		}
		val = fmt.Sprintf("%20s", val)
	case int64:
		val = fmt.Sprintf("%20d", v)
	case int:
		val = fmt.Sprintf("%20d", v)
	case float64:
		val = fmt.Sprintf("%20s", strconv.FormatFloat(v, 'E', -1, 64))
	case nil:
		s := fmt.Sprintf("%-8s%s", c.Key, c.Comment)
		return fmt.Sprintf("%-80.80s", s)
	}
	s := fmt.Sprintf("%-8s= %s", c.Key, val)
	if c.Comment != "" {
		s += " / " + c.Comment
	}
	return fmt.Sprintf("%-80.80s", s)
}

// Bytes encodes the HDUs written by fn into an in-memory file.
func Bytes(fn func(e *Encoder) error) ([]byte, error) {
	var buf bytes.Buffer
	if err := fn(NewEncoder(&buf)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Raw assembles one HDU from literal header cards and a data unit, with no
// checks. Tests use it for corrupt files.
func Raw(cards []string, data []byte) []byte {
	var b strings.Builder
	for _, c := range cards {
		fmt.Fprintf(&b, "%-80.80s", c)
	}
	fmt.Fprintf(&b, "%-80s", "END")
	out := []byte(b.String())
	out = append(out, bytes.Repeat([]byte(" "), int(padded(int64(len(out)))-int64(len(out))))...)
	if len(data) > 0 {
		out = append(out, data...)
		out = append(out, make([]byte, padded(int64(len(data)))-int64(len(data)))...)
	}
	return out
}
