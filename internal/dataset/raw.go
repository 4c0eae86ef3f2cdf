package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// RawDataset is the decoded JSON-stat dataset as published by the statistics
// office. It is read-only input: the Processor keeps a reference to Values and
// never mutates it.
type RawDataset struct {
	Label   string
	Source  string
	Updated string
	// IDs is the dimension.id array (dimension nesting order), if present.
	IDs []string
	// Sizes is the dimension.size array, parallel to IDs, if present.
	Sizes      []int
	Dimensions map[string]RawDimension
	// Values holds one cell per category combination in row-major order.
	// A nil entry is a missing data point.
	Values []*float64
}

// RawDimension is one entry of the JSON-stat "dimension" object.
type RawDimension struct {
	Label    string      `json:"label"`
	Category RawCategory `json:"category"`
}

// RawCategory maps category codes to positions and human-readable labels.
type RawCategory struct {
	Index CategoryIndex     `json:"index"`
	Label map[string]string `json:"label"`
}

// CategoryIndex maps a category code to its position. JSON-stat allows the
// object form {"code": 0} (positions as numbers or numeric strings) and the
// array form ["code0", "code1"].
type CategoryIndex map[string]int

func (ci *CategoryIndex) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var codes []string
		if err := json.Unmarshal(data, &codes); err != nil {
			return fmt.Errorf("category index array: %w", err)
		}
		idx := make(CategoryIndex, len(codes))
		for pos, code := range codes {
			idx[code] = pos
		}
		*ci = idx
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("category index object: %w", err)
	}
	idx := make(CategoryIndex, len(raw))
	for code, v := range raw {
		pos, err := parsePosition(v)
		if err != nil {
			return fmt.Errorf("category %q: %w", code, err)
		}
		idx[code] = pos
	}
	*ci = idx
	return nil
}

func parsePosition(v json.RawMessage) (int, error) {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("position %q is not an integer", s)
		}
		return n, nil
	}
	var f float64
	if err := json.Unmarshal(v, &f); err != nil {
		return 0, fmt.Errorf("position %s is neither number nor string", v)
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("position %v is not an integer", f)
	}
	return int(f), nil
}

type document struct {
	Dataset *datasetJSON `json:"dataset"`
}

type datasetJSON struct {
	Label     string                     `json:"label"`
	Source    string                     `json:"source"`
	Updated   string                     `json:"updated"`
	Dimension map[string]json.RawMessage `json:"dimension"`
	Value     json.RawMessage            `json:"value"`
}

// dimension keys that are JSON-stat metadata rather than dimensions.
var reservedDimensionKeys = map[string]bool{"id": true, "size": true, "role": true}

// Decode parses a JSON-stat document of the form {"dataset": {...}}. Structural
// problems are reported as ErrMalformedInput.
func Decode(data []byte) (*RawDataset, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, malformed("decoding document: %v", err)
	}
	if doc.Dataset == nil {
		return nil, malformed("document has no dataset")
	}
	if doc.Dataset.Dimension == nil {
		return nil, malformed("dataset has no dimension object")
	}

	raw := &RawDataset{
		Label:      doc.Dataset.Label,
		Source:     doc.Dataset.Source,
		Updated:    doc.Dataset.Updated,
		Dimensions: make(map[string]RawDimension, len(doc.Dataset.Dimension)),
	}
	for key, msg := range doc.Dataset.Dimension {
		if key == "id" {
			if err := json.Unmarshal(msg, &raw.IDs); err != nil {
				return nil, malformed("dimension.id: %v", err)
			}
			continue
		}
		if key == "size" {
			if err := json.Unmarshal(msg, &raw.Sizes); err != nil {
				return nil, malformed("dimension.size: %v", err)
			}
			continue
		}
		if reservedDimensionKeys[key] {
			continue
		}
		var dim RawDimension
		if err := json.Unmarshal(msg, &dim); err != nil {
			return nil, malformed("dimension %q: %v", key, err)
		}
		raw.Dimensions[key] = dim
	}

	values, err := decodeValues(doc.Dataset.Value)
	if err != nil {
		return nil, err
	}
	raw.Values = values
	return raw, nil
}

// decodeValues accepts the dense array form and the sparse object form
// {"flatIndex": value} of the JSON-stat value property.
func decodeValues(msg json.RawMessage) ([]*float64, error) {
	msg = bytes.TrimSpace(msg)
	if len(msg) == 0 || bytes.Equal(msg, []byte("null")) {
		return nil, malformed("dataset has no value property")
	}
	if msg[0] == '[' {
		var values []*float64
		if err := json.Unmarshal(msg, &values); err != nil {
			return nil, malformed("value array: %v", err)
		}
		return values, nil
	}

	var sparse map[string]*float64
	if err := json.Unmarshal(msg, &sparse); err != nil {
		return nil, malformed("value object: %v", err)
	}
	size := 0
	indexed := make(map[int]*float64, len(sparse))
	for k, v := range sparse {
		i, err := strconv.Atoi(k)
		if err != nil || i < 0 {
			return nil, malformed("value key %q is not a flat index", k)
		}
		indexed[i] = v
		if i+1 > size {
			size = i + 1
		}
	}
	values := make([]*float64, size)
	for i, v := range indexed {
		values[i] = v
	}
	return values, nil
}
