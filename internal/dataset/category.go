package dataset

import (
	"sort"
)

// Dimension identifies one of the four axes of the employment cube. The
// declaration order is the nesting order of the value array, outermost first.
type Dimension int

const (
	Region Dimension = iota
	Sector
	Gender
	Quarter

	numDimensions = 4
)

func (d Dimension) String() string {
	switch d {
	case Region:
		return "region"
	case Sector:
		return "sector"
	case Gender:
		return "gender"
	case Quarter:
		return "quarter"
	default:
		return "unknown"
	}
}

// Category is one value of a dimension.
type Category struct {
	Code     string `json:"code"`
	Label    string `json:"label"`
	Position int    `json:"position"`
}

// NormalizeCategory turns the code-keyed index and label mappings into a
// slice ordered by position. A code without a label gets an empty label.
func NormalizeCategory(c RawCategory) []Category {
	out := make([]Category, 0, len(c.Index))
	for code, pos := range c.Index {
		out = append(out, Category{
			Code:     code,
			Label:    c.Label[code],
			Position: pos,
		})
	}
	// Codes break ties so the output is deterministic even for inputs the
	// Processor later rejects.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].Code < out[j].Code
	})
	return out
}
