// Package catalog adapts the MAST portal client to the observation and
// product records used by the pipeline.
package catalog

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hubble-cli/internal/model"
	"github.com/sells-group/hubble-cli/internal/resilience"
	"github.com/sells-group/hubble-cli/pkg/mast"
)

// FallbackInstruments is offered when the archive has nothing for a target.
var FallbackInstruments = []string{
	"COS/FUV", "COS/NUV",
	"STIS/FUV-MAMA", "STIS/NUV-MAMA", "STIS/CCD",
	"WFC3/UVIS", "WFC3/IR",
	"ACS/WFC", "ACS/HRC",
}

// Service names used for breakers.
const (
	ServiceObservations = "observations"
	ServiceProducts     = "products"
)

// Catalog queries observations and their products.
type Catalog struct {
	client   mast.Client
	breakers *resilience.Breakers
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithBreakers routes archive calls through per-service circuit breakers.
func WithBreakers(b *resilience.Breakers) Option {
	return func(c *Catalog) { c.breakers = b }
}

// New creates a Catalog backed by client.
func New(client mast.Client, opts ...Option) *Catalog {
	c := &Catalog{client: client}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Catalog) queryCriteria(ctx context.Context, crit mast.Criteria) ([]mast.Observation, error) {
	return resilience.Call(ctx, c.breakers.For(ServiceObservations), func(ctx context.Context) ([]mast.Observation, error) {
		return c.client.QueryCriteria(ctx, crit)
	})
}

// QueryObservations returns the observations matching q, in archive order.
func (c *Catalog) QueryObservations(ctx context.Context, q model.ObservationQuery) ([]model.ObservationRecord, error) {
	rows, err := c.queryCriteria(ctx, criteriaFor(q))
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: query %q", q.Target)
	}

	out := make([]model.ObservationRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.ObservationRecord{
			ObsID:           string(r.ObsID),
			ObsIDName:       r.ObsIDName,
			Collection:      r.Collection,
			Target:          r.TargetName,
			Instrument:      r.InstrumentName,
			DataProductType: r.DataProductType,
		})
	}
	zap.L().Debug("catalog: observations",
		zap.String("target", q.Target),
		zap.String("instrument", q.Instrument),
		zap.String("data_type", q.DataType.String()),
		zap.Int("count", len(out)),
	)
	return out, nil
}

// ListProducts returns every product attached to obs, in archive order.
func (c *Catalog) ListProducts(ctx context.Context, obs model.ObservationRecord) ([]model.ProductRecord, error) {
	rows, err := resilience.Call(ctx, c.breakers.For(ServiceProducts), func(ctx context.Context) ([]mast.Product, error) {
		return c.client.ProductList(ctx, obs.ObsID)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: products for %s", obs.ObsID)
	}

	out := make([]model.ProductRecord, 0, len(rows))
	for _, r := range rows {
		p := model.ProductRecord{
			ObsID:       string(r.ObsID),
			ObsIDName:   r.ObsIDName,
			Collection:  r.Collection,
			SubGroup:    r.SubGroup,
			ProductType: r.ProductType,
			Filename:    r.Filename,
			DataURI:     r.DataURI,
			Size:        r.Size,
		}
		if p.ObsID == "" {
			p.ObsID = obs.ObsID
		}
		if p.ObsIDName == "" {
			p.ObsIDName = obs.ObsIDName
		}
		if p.Collection == "" {
			p.Collection = obs.Collection
		}
		out = append(out, p)
	}
	return out, nil
}

// DownloadURL resolves a product's data URI to an HTTP URL.
func (c *Catalog) DownloadURL(p model.ProductRecord) string {
	return c.client.DownloadURL(p.DataURI)
}

// Options lists what the archive holds for a target: the data product types
// found and, for each, the instruments that produced them.
type Options struct {
	Target      string              `json:"target"`
	DataTypes   []string            `json:"data_types"`
	Instruments map[string][]string `json:"instruments"`
	// Fallback is set when the archive returned nothing and the static
	// lists were substituted.
	Fallback bool `json:"fallback"`
}

// InstrumentsFor returns the instruments for dataType, or the static list
// when none are known.
func (o *Options) InstrumentsFor(dataType string) []string {
	if ins := o.Instruments[dataType]; len(ins) > 0 {
		return ins
	}
	return FallbackInstruments
}

// Options queries every observation of target in the collection and groups
// instruments by data product type.
func (c *Catalog) Options(ctx context.Context, target string) (*Options, error) {
	if target == "" {
		return nil, eris.New("catalog: target name is required")
	}
	rows, err := c.queryCriteria(ctx, mast.Criteria{
		Collection: model.DefaultCollection,
		TargetName: target,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: options for %q", target)
	}

	opts := &Options{Target: target, Instruments: make(map[string][]string)}
	if len(rows) == 0 {
		opts.Fallback = true
		for _, dt := range model.AllDataTypes() {
			opts.DataTypes = append(opts.DataTypes, dt.String())
		}
		return opts, nil
	}

	seen := make(map[string]map[string]bool)
	for _, r := range rows {
		if seen[r.DataProductType] == nil {
			seen[r.DataProductType] = make(map[string]bool)
			opts.DataTypes = append(opts.DataTypes, r.DataProductType)
		}
		if r.InstrumentName != "" && !seen[r.DataProductType][r.InstrumentName] {
			seen[r.DataProductType][r.InstrumentName] = true
			opts.Instruments[r.DataProductType] = append(opts.Instruments[r.DataProductType], r.InstrumentName)
		}
	}
	sort.Strings(opts.DataTypes)
	for _, ins := range opts.Instruments {
		sort.Strings(ins)
	}
	return opts, nil
}

func criteriaFor(q model.ObservationQuery) mast.Criteria {
	collection := q.Collection
	if collection == "" {
		collection = model.DefaultCollection
	}
	return mast.Criteria{
		Collection:      collection,
		TargetName:      q.Target,
		InstrumentName:  q.Instrument,
		DataProductType: q.DataType.String(),
	}
}
