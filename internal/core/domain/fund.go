package domain

import "time"

type FundCategory string

const (
	FundCategoryFPV FundCategory = "FPV"
	FundCategoryFIC FundCategory = "FIC"
)

type Fund struct {
	ID                string
	Name              string
	MinimumInvestment Amount
	Category          FundCategory
	Active            bool
	Position          int // catalog insertion order
	CreatedAt         time.Time
}

// Valid reports whether the fund satisfies the catalog invariants.
func (f Fund) Valid() bool {
	return f.ID != "" && f.MinimumInvestment > 0
}
