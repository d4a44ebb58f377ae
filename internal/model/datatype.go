package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// DataType is the scientific kind of product a run asks for.
type DataType string

const (
	DataTypeSpectrum   DataType = "spectrum"
	DataTypeImage      DataType = "image"
	DataTypeTimeSeries DataType = "timeseries"
)

// AllDataTypes returns every supported data type in display order.
func AllDataTypes() []DataType {
	return []DataType{
		DataTypeSpectrum,
		DataTypeImage,
		DataTypeTimeSeries,
	}
}

// Valid reports whether d is one of the supported data types.
func (d DataType) Valid() bool {
	switch d {
	case DataTypeSpectrum, DataTypeImage, DataTypeTimeSeries:
		return true
	default:
		return false
	}
}

func (d DataType) String() string {
	return string(d)
}

// ParseDataType parses a user-supplied data type name. Matching is
// case-insensitive; "time-series" and "lightcurve" are accepted aliases.
func ParseDataType(s string) (DataType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "spectrum":
		return DataTypeSpectrum, nil
	case "image":
		return DataTypeImage, nil
	case "timeseries", "time-series", "lightcurve":
		return DataTypeTimeSeries, nil
	default:
		return "", eris.Errorf("unknown data type %q (want spectrum, image or timeseries)", s)
	}
}
