package model

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// DefaultCollection is the archive collection every query targets.
const DefaultCollection = "HST"

// ObservationQuery describes one catalog search. It is built per request and
// never mutated afterwards.
type ObservationQuery struct {
	Target     string   `json:"target" yaml:"target"`
	Collection string   `json:"collection" yaml:"collection"`
	Instrument string   `json:"instrument,omitempty" yaml:"instrument,omitempty"`
	DataType   DataType `json:"data_type,omitempty" yaml:"data_type,omitempty"`
	RadiusDeg  float64  `json:"radius_deg" yaml:"radius_deg"`
}

// NewObservationQuery builds a query for target in the default collection.
// Radius is parsed with ParseRadius.
func NewObservationQuery(target string, dt DataType, instrument, radius string) (ObservationQuery, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return ObservationQuery{}, eris.New("target name is required")
	}
	if dt != "" && !dt.Valid() {
		return ObservationQuery{}, eris.Errorf("unsupported data type %q", dt)
	}
	deg, err := ParseRadius(radius)
	if err != nil {
		return ObservationQuery{}, err
	}
	return ObservationQuery{
		Target:     target,
		Collection: DefaultCollection,
		Instrument: strings.TrimSpace(instrument),
		DataType:   dt,
		RadiusDeg:  deg,
	}, nil
}

// ParseRadius converts an angular radius such as "0.02 deg", "1.5 arcmin",
// "30arcsec", "2'" or "0.1" (degrees) to degrees. An empty string yields zero.
func ParseRadius(s string) (float64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, nil
	}

	units := []struct {
		suffix string
		scale  float64
	}{
		{"arcmin", 1.0 / 60},
		{"arcsec", 1.0 / 3600},
		{"degrees", 1},
		{"degree", 1},
		{"deg", 1},
		{"amin", 1.0 / 60},
		{"asec", 1.0 / 3600},
		{"d", 1},
		{"'", 1.0 / 60},
		{"\"", 1.0 / 3600},
	}

	scale := 1.0
	num := s
	for _, u := range units {
		if strings.HasSuffix(s, u.suffix) {
			scale = u.scale
			num = strings.TrimSpace(strings.TrimSuffix(s, u.suffix))
			break
		}
	}

	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, eris.Errorf("invalid search radius %q", s)
	}
	if v < 0 {
		return 0, eris.Errorf("search radius must not be negative: %q", s)
	}
	return v * scale, nil
}

// ObservationRecord is one archived acquisition returned by the catalog.
type ObservationRecord struct {
	ObsID           string `json:"obsid" yaml:"obsid"`
	ObsIDName       string `json:"obs_id,omitempty" yaml:"obs_id,omitempty"`
	Collection      string `json:"obs_collection,omitempty" yaml:"obs_collection,omitempty"`
	Target          string `json:"target_name,omitempty" yaml:"target_name,omitempty"`
	Instrument      string `json:"instrument_name" yaml:"instrument_name"`
	DataProductType string `json:"dataproduct_type" yaml:"dataproduct_type"`
}

// ProductRecord is one downloadable file attached to an observation.
type ProductRecord struct {
	ObsID       string `json:"obsid" yaml:"obsid"`
	ObsIDName   string `json:"obs_id,omitempty" yaml:"obs_id,omitempty"`
	Collection  string `json:"obs_collection,omitempty" yaml:"obs_collection,omitempty"`
	SubGroup    string `json:"product_subgroup" yaml:"product_subgroup"`
	ProductType string `json:"product_type,omitempty" yaml:"product_type,omitempty"`
	Filename    string `json:"filename" yaml:"filename"`
	DataURI     string `json:"data_uri" yaml:"data_uri"`
	Size        int64  `json:"size,omitempty" yaml:"size,omitempty"`
	LocalPath   string `json:"local_path,omitempty" yaml:"local_path,omitempty"`
}

// RetrievedFile is a product materialized on local disk for the current run.
type RetrievedFile struct {
	Path    string        `json:"path" yaml:"path"`
	Product ProductRecord `json:"product" yaml:"product"`
}
