package storage

import "github.com/rl1809/fund-engine/internal/core/domain"

// DefaultFunds is the launch catalog, the same rows schema.sql seeds into MySQL.
// Minimums are in minor units.
func DefaultFunds() []domain.Fund {
	return []domain.Fund{
		{ID: "1", Name: "FPV_BTG_PACTUAL_RECAUDADORA", MinimumInvestment: 7500000, Category: domain.FundCategoryFPV, Active: true},
		{ID: "2", Name: "FPV_BTG_PACTUAL_ECOPETROL", MinimumInvestment: 12500000, Category: domain.FundCategoryFPV, Active: true},
		{ID: "3", Name: "DEUDAPRIVADA", MinimumInvestment: 5000000, Category: domain.FundCategoryFIC, Active: true},
		{ID: "4", Name: "FDO-ACCIONES", MinimumInvestment: 25000000, Category: domain.FundCategoryFIC, Active: true},
		{ID: "5", Name: "FPV_BTG_PACTUAL_DINAMICA", MinimumInvestment: 10000000, Category: domain.FundCategoryFPV, Active: true},
	}
}
