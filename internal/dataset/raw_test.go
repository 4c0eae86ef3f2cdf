package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Fixture(t *testing.T) {
	p := loadFixture(t)
	meta := p.Metadata()
	assert.Equal(t, "2024-08-15T08:30:00Z", meta.Updated)
	assert.Contains(t, meta.Label, "Erwerbstätige")
}

func TestDecode_IndexForms(t *testing.T) {
	doc := `{"dataset": {
		"dimension": {
			"id": ["A", "B"],
			"size": [2, 2],
			"A": {"label": "a", "category": {"index": ["x", "y"], "label": {"x": "X", "y": "Y"}}},
			"B": {"label": "b", "category": {"index": {"p": "1", "q": 0.0}, "label": {}}}
		},
		"value": [1, 2, null, 4]
	}}`

	raw, err := Decode([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, raw.IDs)
	assert.Equal(t, []int{2, 2}, raw.Sizes)
	assert.Equal(t, CategoryIndex{"x": 0, "y": 1}, raw.Dimensions["A"].Category.Index)
	assert.Equal(t, CategoryIndex{"p": 1, "q": 0}, raw.Dimensions["B"].Category.Index)
	assert.NotContains(t, raw.Dimensions, "size")

	require.Len(t, raw.Values, 4)
	assert.Nil(t, raw.Values[2])
	assert.Equal(t, 4.0, *raw.Values[3])
}

func TestDecode_SparseValues(t *testing.T) {
	doc := `{"dataset": {"dimension": {}, "value": {"0": 5, "3": 7}}}`

	raw, err := Decode([]byte(doc))
	require.NoError(t, err)
	require.Len(t, raw.Values, 4)
	assert.Equal(t, 5.0, *raw.Values[0])
	assert.Nil(t, raw.Values[1])
	assert.Nil(t, raw.Values[2])
	assert.Equal(t, 7.0, *raw.Values[3])
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{`},
		{"no dataset", `{"label": "x"}`},
		{"no dimension", `{"dataset": {"value": []}}`},
		{"no value", `{"dataset": {"dimension": {}}}`},
		{"fractional position", `{"dataset": {"dimension": {"A": {"category": {"index": {"x": 0.5}}}}, "value": []}}`},
		{"non numeric position", `{"dataset": {"dimension": {"A": {"category": {"index": {"x": "first"}}}}, "value": []}}`},
		{"bad sparse key", `{"dataset": {"dimension": {}, "value": {"a": 1}}}`},
		{"non numeric value", `{"dataset": {"dimension": {}, "value": ["many"]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.doc))
			assert.ErrorIs(t, err, ErrMalformedInput)
		})
	}
}
