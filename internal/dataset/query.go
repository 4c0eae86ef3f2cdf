package dataset

// GenderDistribution splits one region/sector/quarter cell pair by gender.
// Percentages are fixed-point strings with one decimal.
type GenderDistribution struct {
	Male             float64 `json:"male"`
	Female           float64 `json:"female"`
	Total            float64 `json:"total"`
	MalePercentage   string  `json:"malePercentage"`
	FemalePercentage string  `json:"femalePercentage"`
}

// TrendPoint is the distribution of one quarter in a GenderTrend.
type TrendPoint struct {
	Quarter          string  `json:"quarter"`
	QuarterCode      string  `json:"quarterCode"`
	Male             float64 `json:"male"`
	Female           float64 `json:"female"`
	MalePercentage   string  `json:"malePercentage"`
	FemalePercentage string  `json:"femalePercentage"`
}

// SectorShare is the distribution of one sector in a SectorComparison.
type SectorShare struct {
	Sector           string  `json:"sector"`
	SectorCode       string  `json:"sectorCode"`
	MalePercentage   string  `json:"malePercentage"`
	FemalePercentage string  `json:"femalePercentage"`
	Total            float64 `json:"total"`
}

func newDistribution(male, female float64) GenderDistribution {
	total := male + female
	return GenderDistribution{
		Male:             male,
		Female:           female,
		Total:            total,
		MalePercentage:   percentage(male, total),
		FemalePercentage: percentage(female, total),
	}
}

// GenderDistribution reads the male and female cells for the given codes.
// Missing cells count as 0.
func (p *Processor) GenderDistribution(region, sector, quarter string) (GenderDistribution, error) {
	codes := p.layout.Codes
	maleIdx, err := p.FlatIndex(region, sector, codes.Male, quarter)
	if err != nil {
		return GenderDistribution{}, err
	}
	femaleIdx, err := p.FlatIndex(region, sector, codes.Female, quarter)
	if err != nil {
		return GenderDistribution{}, err
	}
	return newDistribution(p.value(maleIdx), p.value(femaleIdx)), nil
}

// GenderTrend returns one point per quarter, oldest first. Its last point is
// always LatestQuarter.
func (p *Processor) GenderTrend(region, sector string) ([]TrendPoint, error) {
	trend := make([]TrendPoint, 0, len(p.timeline))
	for _, q := range p.timeline {
		dist, err := p.GenderDistribution(region, sector, q.Code)
		if err != nil {
			return nil, err
		}
		trend = append(trend, TrendPoint{
			Quarter:          q.Label,
			QuarterCode:      q.Code,
			Male:             dist.Male,
			Female:           dist.Female,
			MalePercentage:   dist.MalePercentage,
			FemalePercentage: dist.FemalePercentage,
		})
	}
	return trend, nil
}

// SectorComparison returns the distribution of every sector except the
// all-sectors total, in position order.
func (p *Processor) SectorComparison(region, quarter string) ([]SectorShare, error) {
	if _, err := p.position(Region, region); err != nil {
		return nil, err
	}
	if _, err := p.position(Quarter, quarter); err != nil {
		return nil, err
	}

	sectors := p.dims[Sector].categories
	shares := make([]SectorShare, 0, len(sectors))
	for _, s := range sectors {
		if s.Code == p.layout.Codes.SectorTotal {
			continue
		}
		dist, err := p.GenderDistribution(region, s.Code, quarter)
		if err != nil {
			return nil, err
		}
		shares = append(shares, SectorShare{
			Sector:           s.Label,
			SectorCode:       s.Code,
			MalePercentage:   dist.MalePercentage,
			FemalePercentage: dist.FemalePercentage,
			Total:            dist.Total,
		})
	}
	return shares, nil
}

// LatestQuarter returns the most recent quarter code. Codes shaped like
// "2024Q2" are compared by year and quarter; if any code is not, the last
// quarter in position order is returned.
func (p *Processor) LatestQuarter() string {
	return p.timeline[len(p.timeline)-1].Code
}
