// Package dataset turns a JSON-stat employment table into an addressable,
// read-only query surface. The Processor derives per-dimension category
// orderings once and answers every query by computing offsets into the flat
// value array; the four-dimensional cube is never materialized.
package dataset

import (
	"slices"
)

// DimensionNames are the keys of the four dimensions in the raw file.
type DimensionNames struct {
	Region  string
	Sector  string
	Gender  string
	Quarter string
}

// Codes are the category codes the queries rely on.
type Codes struct {
	Male        string
	Female      string
	SectorTotal string
}

// Layout tells the Processor how to find its dimensions and special codes.
type Layout struct {
	Dimensions DimensionNames
	Codes      Codes
}

// DefaultLayout matches the Swiss employment statistics file.
func DefaultLayout() Layout {
	return Layout{
		Dimensions: DimensionNames{
			Region:  "Grossregion",
			Sector:  "Wirtschaftssektor",
			Gender:  "Geschlecht",
			Quarter: "Quartal",
		},
		Codes: Codes{
			Male:        "1",
			Female:      "2",
			SectorTotal: "TOT",
		},
	}
}

func (n DimensionNames) byDimension() [numDimensions]string {
	return [numDimensions]string{n.Region, n.Sector, n.Gender, n.Quarter}
}

// Counts are the dimension cardinalities.
type Counts struct {
	Regions  int `json:"regions"`
	Sectors  int `json:"sectors"`
	Genders  int `json:"genders"`
	Quarters int `json:"quarters"`
}

// Cells is the number of addressable cells in the cube.
func (c Counts) Cells() int {
	return c.Regions * c.Sectors * c.Genders * c.Quarters
}

// Metadata describes the loaded dataset.
type Metadata struct {
	Label   string `json:"label"`
	Source  string `json:"source"`
	Updated string `json:"updated"`
	Counts  Counts `json:"counts"`
	// Values is the length of the flat value array as delivered.
	Values int `json:"values"`
}

type dimension struct {
	name       string
	categories []Category
	positions  map[string]int
}

// Processor answers dimensional queries against one RawDataset. It is
// immutable after New and safe for concurrent use.
type Processor struct {
	layout Layout
	dims   [numDimensions]dimension
	values []*float64
	meta   Metadata
	// timeline holds the quarter categories oldest first.
	timeline []Category
}

// New normalizes the four dimensions of raw. It fails with ErrMalformedInput
// when a dimension is missing or empty, when positions are not exactly
// 0..n-1, when dimension.id contradicts the Region, Sector, Gender, Quarter
// nesting, or when the gender dimension lacks the male or female code.
//
// Other dimensions may be present only with a single category, since the
// flat index does not address them. A dimension.size that disagrees with the
// category counts, or a value array longer than the cube, is also rejected.
func New(raw *RawDataset, layout Layout) (*Processor, error) {
	if raw == nil {
		return nil, malformed("nil dataset")
	}
	names := layout.Dimensions.byDimension()
	if err := checkNesting(raw.IDs, names); err != nil {
		return nil, err
	}
	if err := checkShape(raw, names); err != nil {
		return nil, err
	}

	p := &Processor{
		layout: layout,
		values: raw.Values,
	}
	for d := Region; d < numDimensions; d++ {
		dim, err := buildDimension(d, names[d], raw.Dimensions)
		if err != nil {
			return nil, err
		}
		p.dims[d] = dim
	}
	for _, code := range []string{layout.Codes.Male, layout.Codes.Female} {
		if _, ok := p.dims[Gender].positions[code]; !ok {
			return nil, malformed("gender dimension %q has no category %q", names[Gender], code)
		}
	}

	if cells := p.Counts().Cells(); len(raw.Values) > cells {
		return nil, malformed("value array has %d entries, the dimensions address %d cells", len(raw.Values), cells)
	}
	p.timeline = chronological(p.dims[Quarter].categories)

	p.meta = Metadata{
		Label:   raw.Label,
		Source:  raw.Source,
		Updated: raw.Updated,
		Counts:  p.Counts(),
		Values:  len(raw.Values),
	}
	return p, nil
}

func buildDimension(d Dimension, name string, dims map[string]RawDimension) (dimension, error) {
	raw, ok := dims[name]
	if !ok {
		return dimension{}, malformed("missing %s dimension %q", d, name)
	}
	if len(raw.Category.Index) == 0 {
		return dimension{}, malformed("%s dimension %q has no category index", d, name)
	}
	if raw.Category.Label == nil {
		return dimension{}, malformed("%s dimension %q has no category labels", d, name)
	}

	categories := NormalizeCategory(raw.Category)
	positions := make(map[string]int, len(categories))
	for i, c := range categories {
		if c.Position != i {
			return dimension{}, malformed("%s dimension %q: category %q has position %d, want %d",
				d, name, c.Code, c.Position, i)
		}
		positions[c.Code] = c.Position
	}
	return dimension{name: name, categories: categories, positions: positions}, nil
}

// checkNesting verifies that the four dimensions appear in ids in nesting
// order. Datasets without dimension.id are trusted.
func checkNesting(ids []string, names [numDimensions]string) error {
	if len(ids) == 0 {
		return nil
	}
	last := -1
	for d, name := range names {
		at := slices.Index(ids, name)
		if at < 0 {
			return malformed("dimension.id does not list %s dimension %q", Dimension(d), name)
		}
		if at < last {
			return malformed("dimension.id lists %q out of nesting order", name)
		}
		last = at
	}
	return nil
}

// checkShape verifies the dimensions outside the four addressed ones and the
// dimension.size array.
func checkShape(raw *RawDataset, names [numDimensions]string) error {
	for name, dim := range raw.Dimensions {
		if slices.Contains(names[:], name) {
			continue
		}
		if n := len(dim.Category.Index); n != 1 {
			return malformed("dimension %q has %d categories, want 1", name, n)
		}
	}
	for _, id := range raw.IDs {
		if _, ok := raw.Dimensions[id]; !ok {
			return malformed("dimension.id lists undefined dimension %q", id)
		}
	}
	if len(raw.Sizes) == 0 {
		return nil
	}
	if len(raw.Sizes) != len(raw.IDs) {
		return malformed("dimension.size has %d entries for %d ids", len(raw.Sizes), len(raw.IDs))
	}
	for i, id := range raw.IDs {
		if n := len(raw.Dimensions[id].Category.Index); raw.Sizes[i] != n {
			return malformed("dimension.size gives %q %d categories, its index has %d", id, raw.Sizes[i], n)
		}
	}
	return nil
}

// FlatIndex returns the offset of the cell addressed by the four codes:
// ((region*S + sector)*G + gender)*Q + quarter.
func (p *Processor) FlatIndex(region, sector, gender, quarter string) (int, error) {
	codes := [numDimensions]string{region, sector, gender, quarter}
	offset := 0
	for d := Region; d < numDimensions; d++ {
		pos, err := p.position(d, codes[d])
		if err != nil {
			return 0, err
		}
		offset = offset*len(p.dims[d].categories) + pos
	}
	return offset, nil
}

func (p *Processor) position(d Dimension, code string) (int, error) {
	pos, ok := p.dims[d].positions[code]
	if !ok {
		return 0, &UnknownCategoryError{Dimension: d, Code: code}
	}
	return pos, nil
}

// value reads a cell; out-of-range and null cells read as 0.
func (p *Processor) value(offset int) float64 {
	if offset < 0 || offset >= len(p.values) || p.values[offset] == nil {
		return 0
	}
	return *p.values[offset]
}

// Category looks up a single category by code.
func (p *Processor) Category(d Dimension, code string) (Category, error) {
	pos, err := p.position(d, code)
	if err != nil {
		return Category{}, err
	}
	return p.dims[d].categories[pos], nil
}

// Categories returns the categories of d in position order.
func (p *Processor) Categories(d Dimension) []Category {
	return slices.Clone(p.dims[d].categories)
}

func (p *Processor) Regions() []Category  { return p.Categories(Region) }
func (p *Processor) Sectors() []Category  { return p.Categories(Sector) }
func (p *Processor) Genders() []Category  { return p.Categories(Gender) }
func (p *Processor) Quarters() []Category { return p.Categories(Quarter) }

func (p *Processor) Counts() Counts {
	return Counts{
		Regions:  len(p.dims[Region].categories),
		Sectors:  len(p.dims[Sector].categories),
		Genders:  len(p.dims[Gender].categories),
		Quarters: len(p.dims[Quarter].categories),
	}
}

func (p *Processor) Metadata() Metadata {
	return p.meta
}
