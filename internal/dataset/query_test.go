package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenderDistribution_KnownCell(t *testing.T) {
	p := loadFixture(t)

	dist, err := p.GenderDistribution("0", "3", "2024Q2")
	require.NoError(t, err)
	assert.Equal(t, GenderDistribution{
		Male:             120000,
		Female:           95000,
		Total:            215000,
		MalePercentage:   "55.8",
		FemalePercentage: "44.2",
	}, dist)
}

func TestGenderDistribution_TotalIsSum(t *testing.T) {
	p := loadFixture(t)
	for _, r := range p.Regions() {
		for _, s := range p.Sectors() {
			for _, q := range p.Quarters() {
				dist, err := p.GenderDistribution(r.Code, s.Code, q.Code)
				require.NoError(t, err)
				assert.Equal(t, dist.Male+dist.Female, dist.Total)
			}
		}
	}
}

func TestGenderDistribution_NullCountsAsZero(t *testing.T) {
	p := loadFixture(t)

	dist, err := p.GenderDistribution("1", "2", "2024Q1")
	require.NoError(t, err)
	assert.Equal(t, 2111.0, dist.Male)
	assert.Equal(t, 0.0, dist.Female)
	assert.Equal(t, "100.0", dist.MalePercentage)
	assert.Equal(t, "0.0", dist.FemalePercentage)
}

func TestGenderDistribution_ZeroTotal(t *testing.T) {
	p := loadFixture(t)

	dist, err := p.GenderDistribution("1", "2", "2024Q2")
	require.NoError(t, err)
	assert.Equal(t, 0.0, dist.Total)
	assert.Equal(t, "0.0", dist.MalePercentage)
	assert.Equal(t, "0.0", dist.FemalePercentage)
}

func TestGenderDistribution_ShortValueArray(t *testing.T) {
	raw := singleCellRaw(ptr(10), ptr(10), ptr(3), ptr(7))
	raw.Values = raw.Values[:3]
	p, err := New(raw, DefaultLayout())
	require.NoError(t, err)

	dist, err := p.GenderDistribution("0", "3", "2024Q2")
	require.NoError(t, err)
	assert.Equal(t, 3.0, dist.Male)
	assert.Equal(t, 0.0, dist.Female)
}

func TestGenderDistribution_Percentages(t *testing.T) {
	tests := []struct {
		name         string
		male, female float64
		wantMale     string
		wantFemale   string
	}{
		{"three to seven", 3, 7, "30.0", "70.0"},
		{"all male", 5, 0, "100.0", "0.0"},
		{"thirds", 1, 2, "33.3", "66.7"},
		{"half rounds away from zero", 49, 351, "12.3", "87.8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(singleCellRaw(nil, nil, ptr(tt.male), ptr(tt.female)), DefaultLayout())
			require.NoError(t, err)

			dist, err := p.GenderDistribution("0", "3", "2024Q2")
			require.NoError(t, err)
			assert.Equal(t, tt.wantMale, dist.MalePercentage)
			assert.Equal(t, tt.wantFemale, dist.FemalePercentage)
		})
	}
}

func TestGenderDistribution_UnknownCode(t *testing.T) {
	p := loadFixture(t)

	_, err := p.GenderDistribution("42", "3", "2024Q2")
	assert.ErrorIs(t, err, ErrUnknownCategory)

	_, err = p.GenderDistribution("0", "3", "2030Q1")
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestGenderTrend(t *testing.T) {
	p := loadFixture(t)

	trend, err := p.GenderTrend("0", "3")
	require.NoError(t, err)
	require.Len(t, trend, len(p.Quarters()))

	assert.Equal(t, TrendPoint{
		Quarter:          "2024Q1",
		QuarterCode:      "2024Q1",
		Male:             1211,
		Female:           1221,
		MalePercentage:   "49.8",
		FemalePercentage: "50.2",
	}, trend[0])

	last := trend[len(trend)-1]
	assert.Equal(t, p.LatestQuarter(), last.QuarterCode)
	assert.Equal(t, 120000.0, last.Male)
	assert.Equal(t, 95000.0, last.Female)
}

func TestGenderTrend_UnknownSector(t *testing.T) {
	p := loadFixture(t)
	_, err := p.GenderTrend("0", "99")
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestSectorComparison_ExcludesTotal(t *testing.T) {
	p := loadFixture(t)

	shares, err := p.SectorComparison("0", "2024Q2")
	require.NoError(t, err)
	require.Len(t, shares, len(p.Sectors())-1)

	for _, s := range shares {
		assert.NotEqual(t, "TOT", s.SectorCode)
	}
	assert.Equal(t, SectorShare{
		Sector:           "Sektor 2",
		SectorCode:       "2",
		MalePercentage:   "49.8",
		FemalePercentage: "50.2",
		Total:            2234,
	}, shares[0])
	assert.Equal(t, "3", shares[1].SectorCode)
	assert.Equal(t, "55.8", shares[1].MalePercentage)
	assert.Equal(t, 215000.0, shares[1].Total)
}

func TestSectorComparison_UnknownCodes(t *testing.T) {
	p := loadFixture(t)

	_, err := p.SectorComparison("nope", "2024Q2")
	assert.ErrorIs(t, err, ErrUnknownCategory)

	_, err = p.SectorComparison("0", "nope")
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestLatestQuarter(t *testing.T) {
	p := loadFixture(t)
	assert.Equal(t, "2024Q2", p.LatestQuarter())
}

func TestLatestQuarter_OrdersByYearAndQuarter(t *testing.T) {
	raw := syntheticRaw(1, 1, 2, 3)
	names := DefaultLayout().Dimensions
	raw.Dimensions[names.Quarter] = RawDimension{Category: RawCategory{
		Index: CategoryIndex{"2024Q4": 0, "2025Q1": 1, "2023Q3": 2},
		Label: map[string]string{},
	}}
	p, err := New(raw, DefaultLayout())
	require.NoError(t, err)

	assert.Equal(t, "2025Q1", p.LatestQuarter())
}

func TestGenderTrend_ChronologicalWhenPositionsAreNot(t *testing.T) {
	raw := syntheticRaw(1, 1, 2, 3)
	names := DefaultLayout().Dimensions
	raw.Dimensions[names.Quarter] = RawDimension{Category: RawCategory{
		Index: CategoryIndex{"2024Q4": 0, "2025Q1": 1, "2023Q3": 2},
		Label: map[string]string{},
	}}
	p, err := New(raw, DefaultLayout())
	require.NoError(t, err)

	trend, err := p.GenderTrend("r0", "s0")
	require.NoError(t, err)
	require.Len(t, trend, 3)

	codes := []string{trend[0].QuarterCode, trend[1].QuarterCode, trend[2].QuarterCode}
	assert.Equal(t, []string{"2023Q3", "2024Q4", "2025Q1"}, codes)
	assert.Equal(t, p.LatestQuarter(), trend[2].QuarterCode)

	// Values still come from each quarter's own position: male cells are 0..2.
	assert.Equal(t, 2.0, trend[0].Male)
	assert.Equal(t, 0.0, trend[1].Male)
	assert.Equal(t, 1.0, trend[2].Male)

	// Position order is kept for the category list.
	assert.Equal(t, "2024Q4", p.Quarters()[0].Code)
}

func TestLatestQuarter_FallsBackToLastPosition(t *testing.T) {
	raw := syntheticRaw(1, 1, 2, 3)
	names := DefaultLayout().Dimensions
	raw.Dimensions[names.Quarter] = RawDimension{Category: RawCategory{
		Index: CategoryIndex{"2025Q1": 0, "spring": 1, "2024Q1": 2},
		Label: map[string]string{},
	}}
	p, err := New(raw, DefaultLayout())
	require.NoError(t, err)

	assert.Equal(t, "2024Q1", p.LatestQuarter())
	trend, err := p.GenderTrend("r0", "s0")
	require.NoError(t, err)
	assert.Equal(t, p.LatestQuarter(), trend[len(trend)-1].QuarterCode)
}

func TestParseQuarter(t *testing.T) {
	tests := []struct {
		code string
		want quarterKey
		ok   bool
	}{
		{"2024Q2", quarterKey{2024, 2}, true},
		{"1999q4", quarterKey{1999, 4}, true},
		{"2024Q5", quarterKey{}, false},
		{"2024Q0", quarterKey{}, false},
		{"2024", quarterKey{}, false},
		{"Q1", quarterKey{}, false},
		{"2024Q12", quarterKey{}, false},
		{"abcdQ1", quarterKey{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got, ok := parseQuarter(tt.code)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, "0.0", percentage(0, 0))
	assert.Equal(t, "0.0", percentage(5, 0))
	assert.Equal(t, "12.3", percentage(49, 400))
	assert.Equal(t, "100.0", percentage(7, 7))
	assert.Equal(t, "66.7", percentage(2, 3))
}
