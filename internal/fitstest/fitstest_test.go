package fitstest

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncoder_BlockAligned(t *testing.T) {
	raw, err := Bytes(func(e *Encoder) error {
		return e.WriteTable(TableHDU{
			Columns: []TableColumn{{Name: "FLUX", Type: 'E', Repeat: 3}},
			Rows:    [][][]float64{{{1, 2, 3}}},
		})
	})
	require.NoError(t, err)
	assert.Zero(t, len(raw)%blockSize)
	assert.True(t, bytes.HasPrefix(raw, []byte("SIMPLE  =")))
	assert.Contains(t, string(raw), "XTENSION= 'BINTABLE'")
	assert.Contains(t, string(raw), "TFORM1  = '3E      '")
}

func TestEncoder_Errors(t *testing.T) {
	var buf bytes.Buffer
	e := NewEncoder(&buf)

	assert.Error(t, e.WriteImage(ImageHDU{Axes: []int{2, 2}, Data: []float64{1}}))
	assert.ErrorIs(t, e.WriteImage(ImageHDU{Bitpix: 12, Axes: []int{1}, Data: []float64{1}}), ErrUnsupported)
	assert.ErrorIs(t, e.WriteTable(TableHDU{Columns: []TableColumn{{Name: "S", Type: 'A'}}}), ErrUnsupported)
	assert.Error(t, e.WriteTable(TableHDU{
		Columns: []TableColumn{{Name: "X", Type: 'E', Repeat: 2}},
		Rows:    [][][]float64{{{1}}},
	}))
}

func TestRaw(t *testing.T) {
	raw := Raw([]string{"SIMPLE  =                    T"}, []byte{1, 2, 3})
	assert.Len(t, raw, 2*blockSize)
	assert.Equal(t, "END", string(bytes.TrimSpace(raw[80:160])))
	assert.Equal(t, byte(1), raw[blockSize])
}
