package domain

// RevenueFigure is one reported revenue observation.
type RevenueFigure struct {
	Year     int     `json:"year"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// Intelligence is optional public information about a company.
type Intelligence struct {
	// Description is a short business description.
	Description string `json:"description,omitempty"`

	// Products are product or service names.
	Products []string `json:"products,omitempty"`

	// Markets are end markets served.
	Markets []string `json:"markets,omitempty"`

	// USPs are unique selling points.
	USPs []string `json:"usps,omitempty"`

	// Revenue is the reported revenue history.
	Revenue []RevenueFigure `json:"revenue,omitempty"`

	// Headcount is the total number of employees, zero when unknown.
	Headcount int `json:"headcount,omitempty"`

	// Certifications are compliance standards held.
	Certifications []string `json:"certifications,omitempty"`
}

// LatestRevenue returns the revenue figure with the highest year.
func (i Intelligence) LatestRevenue() (RevenueFigure, bool) {
	if len(i.Revenue) == 0 {
		return RevenueFigure{}, false
	}
	latest := i.Revenue[0]
	for _, r := range i.Revenue[1:] {
		if r.Year > latest.Year {
			latest = r
		}
	}
	return latest, latest.Amount != 0
}
