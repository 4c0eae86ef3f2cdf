package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func loadFixture(t testing.TB) *Processor {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "employment.json"))
	require.NoError(t, err)
	raw, err := Decode(data)
	require.NoError(t, err)
	p, err := New(raw, DefaultLayout())
	require.NoError(t, err)
	return p
}

func ptr(v float64) *float64 { return &v }

// syntheticCategory builds n categories coded prefix0..prefix{n-1}.
func syntheticCategory(prefix string, n int) RawCategory {
	c := RawCategory{Index: CategoryIndex{}, Label: map[string]string{}}
	for i := 0; i < n; i++ {
		code := fmt.Sprintf("%s%d", prefix, i)
		c.Index[code] = i
		c.Label[code] = fmt.Sprintf("%s label %d", prefix, i)
	}
	return c
}

// genderCategory always carries the male and female codes first.
func genderCategory(n int) RawCategory {
	c := RawCategory{
		Index: CategoryIndex{"1": 0, "2": 1},
		Label: map[string]string{"1": "Mann", "2": "Frau"},
	}
	for i := 2; i < n; i++ {
		code := fmt.Sprintf("g%d", i)
		c.Index[code] = i
		c.Label[code] = code
	}
	return c
}

// syntheticRaw builds an r×s×g×q dataset; cell i holds float64(i).
func syntheticRaw(r, s, g, q int) *RawDataset {
	layout := DefaultLayout().Dimensions
	values := make([]*float64, r*s*g*q)
	for i := range values {
		values[i] = ptr(float64(i))
	}
	return &RawDataset{
		Dimensions: map[string]RawDimension{
			layout.Region:  {Category: syntheticCategory("r", r)},
			layout.Sector:  {Category: syntheticCategory("s", s)},
			layout.Gender:  {Category: genderCategory(g)},
			layout.Quarter: {Category: syntheticCategory("q", q)},
		},
		Values: values,
	}
}

// singleCellRaw is a 1×2×2×1 dataset: sector "TOT" and "3", genders "1"
// and "2", region "0", quarter "2024Q2".
func singleCellRaw(totMale, totFemale, male, female *float64) *RawDataset {
	layout := DefaultLayout().Dimensions
	return &RawDataset{
		Dimensions: map[string]RawDimension{
			layout.Region: {Category: RawCategory{
				Index: CategoryIndex{"0": 0}, Label: map[string]string{"0": "Schweiz"},
			}},
			layout.Sector: {Category: RawCategory{
				Index: CategoryIndex{"TOT": 0, "3": 1}, Label: map[string]string{"TOT": "Total", "3": "Sektor 3"},
			}},
			layout.Gender: {Category: RawCategory{
				Index: CategoryIndex{"1": 0, "2": 1}, Label: map[string]string{"1": "Mann", "2": "Frau"},
			}},
			layout.Quarter: {Category: RawCategory{
				Index: CategoryIndex{"2024Q2": 0}, Label: map[string]string{"2024Q2": "2024Q2"},
			}},
		},
		Values: []*float64{totMale, totFemale, male, female},
	}
}
