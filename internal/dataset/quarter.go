package dataset

import (
	"slices"
	"strconv"
	"strings"
)

type quarterKey struct {
	year    int
	quarter int
}

func (k quarterKey) before(other quarterKey) bool {
	if k.year != other.year {
		return k.year < other.year
	}
	return k.quarter < other.quarter
}

// parseQuarter reads codes of the form "YYYYQn" with n in 1..4.
func parseQuarter(code string) (quarterKey, bool) {
	y, q, found := strings.Cut(strings.ToUpper(code), "Q")
	if !found || y == "" || len(q) != 1 {
		return quarterKey{}, false
	}
	year, err := strconv.Atoi(y)
	if err != nil || year < 0 {
		return quarterKey{}, false
	}
	quarter, err := strconv.Atoi(q)
	if err != nil || quarter < 1 || quarter > 4 {
		return quarterKey{}, false
	}
	return quarterKey{year: year, quarter: quarter}, true
}

// chronological orders quarters by year and quarter when every code parses,
// and keeps position order otherwise.
func chronological(quarters []Category) []Category {
	keys := make(map[string]quarterKey, len(quarters))
	for _, q := range quarters {
		key, ok := parseQuarter(q.Code)
		if !ok {
			return slices.Clone(quarters)
		}
		keys[q.Code] = key
	}
	ordered := slices.Clone(quarters)
	slices.SortStableFunc(ordered, func(a, b Category) int {
		ka, kb := keys[a.Code], keys[b.Code]
		switch {
		case ka.before(kb):
			return -1
		case kb.before(ka):
			return 1
		}
		return 0
	})
	return ordered
}
