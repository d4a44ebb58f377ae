// Package selector narrows a product list to the files worth retrieving for
// a data type, and holds the explicit first-match policies the pipeline uses
// wherever it must choose one item from many.
package selector

import (
	"github.com/sells-group/hubble-cli/internal/model"
)

// Product subgroup descriptors.
const (
	SubGroupX1D        = "X1D"
	SubGroupFLC        = "FLC"
	SubGroupFLT        = "FLT"
	SubGroupLightcurve = "LIGHTCURVE"
)

// Rule is the selection rule for one data type: products whose subgroup is
// Primary, or, only when none match, products whose subgroup is Fallback.
type Rule struct {
	Primary  string
	Fallback string
	Label    string
}

var rules = map[model.DataType]Rule{
	model.DataTypeSpectrum:   {Primary: SubGroupX1D, Label: "calibrated spectrum (X1D)"},
	model.DataTypeImage:      {Primary: SubGroupFLC, Fallback: SubGroupFLT, Label: "calibrated image (FLC/FLT)"},
	model.DataTypeTimeSeries: {Primary: SubGroupLightcurve, Label: "lightcurve data"},
}

// RuleFor returns the selection rule for dt.
func RuleFor(dt model.DataType) (Rule, bool) {
	r, ok := rules[dt]
	return r, ok
}

// Label returns the human-readable product description for dt.
func Label(dt model.DataType) string {
	return rules[dt].Label
}

// Select returns the products to retrieve for dt, in input order, and the
// label describing them. The result never mixes primary and fallback
// products. An empty result means nothing matched.
func Select(products []model.ProductRecord, dt model.DataType) ([]model.ProductRecord, string) {
	rule, ok := rules[dt]
	if !ok {
		return nil, ""
	}
	chosen := filterSubGroup(products, rule.Primary)
	if len(chosen) == 0 && rule.Fallback != "" {
		chosen = filterSubGroup(products, rule.Fallback)
	}
	return chosen, rule.Label
}

func filterSubGroup(products []model.ProductRecord, subGroup string) []model.ProductRecord {
	var out []model.ProductRecord
	for _, p := range products {
		if p.SubGroup == subGroup {
			out = append(out, p)
		}
	}
	return out
}
