package model

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Dataset is the data extracted from a retrieved container. It is a closed
// union: *Spectrum, *Image and *TimeSeries are the only implementations.
type Dataset interface {
	Kind() DataType
	dataset()
}

// Spectrum holds one row of a calibrated 1-D spectrum table.
type Spectrum struct {
	Wavelength []float64 `json:"wavelength"`
	Flux       []float64 `json:"flux"`
	Extension  int       `json:"extension"`
	Row        int       `json:"row"`
}

// Image holds a 2-D sample array taken from the first array-shaped extension.
// Samples is always 2-D: a 3-D source is reduced to its first plane along the
// leading axis and Reduced is set.
type Image struct {
	Samples        *mat.Dense `json:"-"`
	ExtensionIndex int        `json:"extension_index"`
	ExtensionName  string     `json:"extension_name"`
	Reduced        bool       `json:"reduced"`
	SourceShape    []int      `json:"source_shape"`
}

// TimeSeries is not decoded; it only describes the container layout.
type TimeSeries struct {
	Path         string          `json:"path"`
	Extensions   []ExtensionInfo `json:"extensions"`
	PrimaryShape []int           `json:"primary_shape,omitempty"`
}

func (*Spectrum) Kind() DataType   { return DataTypeSpectrum }
func (*Image) Kind() DataType      { return DataTypeImage }
func (*TimeSeries) Kind() DataType { return DataTypeTimeSeries }

func (*Spectrum) dataset()   {}
func (*Image) dataset()      {}
func (*TimeSeries) dataset() {}

// Shape returns the numpy-ordered shape of the image samples (rows, cols).
func (im *Image) Shape() []int {
	if im.Samples == nil {
		return nil
	}
	r, c := im.Samples.Dims()
	return []int{r, c}
}

// ExtensionNames lists the extension names in container order.
func (ts *TimeSeries) ExtensionNames() []string {
	names := make([]string, len(ts.Extensions))
	for i, ext := range ts.Extensions {
		names[i] = ext.Name
	}
	return names
}

// ExtensionType classifies the payload of a container extension.
type ExtensionType string

const (
	ExtensionEmpty       ExtensionType = "empty"
	ExtensionImage       ExtensionType = "image"
	ExtensionBinaryTable ExtensionType = "bintable"
	ExtensionASCIITable  ExtensionType = "table"
)

// ExtensionInfo describes one extension of a container file.
type ExtensionInfo struct {
	Index int           `json:"index" yaml:"index"`
	Name  string        `json:"name" yaml:"name"`
	Type  ExtensionType `json:"type" yaml:"type"`
	Shape []int         `json:"shape,omitempty" yaml:"shape,omitempty"`
}

func (e ExtensionInfo) String() string {
	return fmt.Sprintf("%d: %s - %s", e.Index, e.Name, e.Type)
}

// FormatShape renders a shape as a tuple, e.g. "(2, 1024, 1024)", or
// "No data" when shape is empty.
func FormatShape(shape []int) string {
	if len(shape) == 0 {
		return "No data"
	}
	parts := make([]string, len(shape))
	for i, n := range shape {
		parts[i] = fmt.Sprint(n)
	}
	if len(parts) == 1 {
		return "(" + parts[0] + ",)"
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
