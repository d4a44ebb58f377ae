package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/hubble-cli/internal/model"
)

func products(subGroups ...string) []model.ProductRecord {
	out := make([]model.ProductRecord, len(subGroups))
	for i, sg := range subGroups {
		out[i] = model.ProductRecord{SubGroup: sg, Filename: sg + "_" + string(rune('a'+i)) + ".fits"}
	}
	return out
}

func subGroups(ps []model.ProductRecord) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.SubGroup
	}
	return out
}

func TestSelect(t *testing.T) {
	tests := []struct {
		name      string
		dt        model.DataType
		in        []model.ProductRecord
		want      []string
		wantLabel string
	}{
		{
			name:      "spectrum keeps only X1D",
			dt:        model.DataTypeSpectrum,
			in:        products("ASN", "X1D", "X1DSUM", "RAWACCUM", "X1D"),
			want:      []string{"X1D", "X1D"},
			wantLabel: "calibrated spectrum (X1D)",
		},
		{
			name:      "image prefers FLC",
			dt:        model.DataTypeImage,
			in:        products("FLT", "FLC", "DRZ", "FLC", "FLT"),
			want:      []string{"FLC", "FLC"},
			wantLabel: "calibrated image (FLC/FLT)",
		},
		{
			name:      "image falls back to FLT",
			dt:        model.DataTypeImage,
			in:        products("RAW", "FLT", "DRZ", "FLT"),
			want:      []string{"FLT", "FLT"},
			wantLabel: "calibrated image (FLC/FLT)",
		},
		{
			name:      "timeseries keeps LIGHTCURVE",
			dt:        model.DataTypeTimeSeries,
			in:        products("LIGHTCURVE", "TPF"),
			want:      []string{"LIGHTCURVE"},
			wantLabel: "lightcurve data",
		},
		{
			name:      "spectrum has no fallback",
			dt:        model.DataTypeSpectrum,
			in:        products("FLT", "X1DSUM"),
			want:      []string{},
			wantLabel: "calibrated spectrum (X1D)",
		},
		{
			name:      "match is case sensitive",
			dt:        model.DataTypeImage,
			in:        products("flc", "flt"),
			want:      []string{},
			wantLabel: "calibrated image (FLC/FLT)",
		},
		{
			name:      "empty input",
			dt:        model.DataTypeTimeSeries,
			in:        nil,
			want:      []string{},
			wantLabel: "lightcurve data",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, label := Select(tt.in, tt.dt)
			assert.Equal(t, tt.want, subGroups(got))
			assert.Equal(t, tt.wantLabel, label)
		})
	}
}

func TestSelect_PreservesOrder(t *testing.T) {
	in := products("FLC", "FLT", "FLC", "FLC")
	got, _ := Select(in, model.DataTypeImage)
	require.Len(t, got, 3)
	assert.Equal(t, in[0].Filename, got[0].Filename)
	assert.Equal(t, in[2].Filename, got[1].Filename)
	assert.Equal(t, in[3].Filename, got[2].Filename)
}

func TestSelect_NeverMixesFLCAndFLT(t *testing.T) {
	for _, in := range [][]model.ProductRecord{
		products("FLC", "FLT"),
		products("FLT", "FLC"),
		products("FLT", "FLT"),
		products("FLC"),
	} {
		got, _ := Select(in, model.DataTypeImage)
		seen := map[string]bool{}
		for _, p := range got {
			seen[p.SubGroup] = true
		}
		assert.False(t, seen[SubGroupFLC] && seen[SubGroupFLT], "mixed result for %v", subGroups(in))
	}
}

func TestSelect_UnknownDataType(t *testing.T) {
	got, label := Select(products("X1D"), model.DataType("cube"))
	assert.Empty(t, got)
	assert.Empty(t, label)
}

func TestRuleFor(t *testing.T) {
	for _, dt := range model.AllDataTypes() {
		r, ok := RuleFor(dt)
		assert.True(t, ok, dt)
		assert.NotEmpty(t, r.Primary)
		assert.Equal(t, r.Label, Label(dt))
	}
	r, _ := RuleFor(model.DataTypeImage)
	assert.Equal(t, SubGroupFLT, r.Fallback)
}

func TestFirstMatch(t *testing.T) {
	var p Picker[int] = FirstMatch[int]{}
	v, ok := p.Pick([]int{7, 8, 9})
	assert.True(t, ok)
	assert.Equal(t, 7, v)

	_, ok = p.Pick(nil)
	assert.False(t, ok)
}

func TestPolicy_WithDefaults(t *testing.T) {
	last := PickerFunc[model.RetrievedFile](func(items []model.RetrievedFile) (model.RetrievedFile, bool) {
		if len(items) == 0 {
			return model.RetrievedFile{}, false
		}
		return items[len(items)-1], true
	})

	p := Policy{File: last}.WithDefaults()
	require.NotNil(t, p.Observation)
	require.NotNil(t, p.Row)

	f, ok := p.File.Pick([]model.RetrievedFile{{Path: "a"}, {Path: "b"}})
	assert.True(t, ok)
	assert.Equal(t, "b", f.Path)

	obs, ok := p.Observation.Pick([]model.ObservationRecord{{ObsID: "1"}, {ObsID: "2"}})
	assert.True(t, ok)
	assert.Equal(t, "1", obs.ObsID)

	row, ok := DefaultPolicy().Row.Pick([]int{0, 1, 2})
	assert.True(t, ok)
	assert.Equal(t, 0, row)
}
