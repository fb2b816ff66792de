// Package kpi rolls reconciliation summaries up into evolution and
// achievement metrics, globally and per organization, and compares matched
// invoices against a prior period and pro-rated objectives.
package kpi

import (
	"github.com/rehza97/billing-reconciler/internal/models"
	"github.com/rehza97/billing-reconciler/pkg/logger"

	"github.com/shopspring/decimal"
)

// OverallKey is the sentinel objectives entry that applies to the global
// totals rather than a single organization.
const OverallKey = "Overall"

// Objective carries the revenue and collection targets for one organization
// (or the overall sentinel).
type Objective struct {
	RevenueObjective    decimal.Decimal `json:"revenue_objective"`
	CollectionObjective decimal.Decimal `json:"collection_objective"`
}

// Objectives maps organization names (or OverallKey) to their targets.
type Objectives map[string]Objective

// ExtendedSummary is a KPI summary enriched with evolution and achievement
// rates. Rates against a missing base are zero, never null: a zero or
// absent prior-period total yields a 0% evolution rate. That understates
// genuine growth from zero but matches the agreed reporting behavior.
type ExtendedSummary struct {
	*models.KPISummary

	RevenueEvolutionRate      decimal.Decimal `json:"revenue_evolution_rate"`
	CollectionEvolutionRate   decimal.Decimal `json:"collection_evolution_rate"`
	RevenueAchievementRate    decimal.Decimal `json:"revenue_achievement_rate"`
	CollectionAchievementRate decimal.Decimal `json:"collection_achievement_rate"`
}

// Aggregate computes the extended metrics for a run. Previous and objectives
// are both optional; absent inputs leave the corresponding rates at zero and
// the per-organization optional rates unset.
func Aggregate(current *models.KPISummary, previous *models.KPISummary, objectives Objectives) *ExtendedSummary {
	extended := &ExtendedSummary{KPISummary: current}
	if current == nil {
		return extended
	}

	if previous != nil {
		extended.RevenueEvolutionRate = evolutionRate(current.TotalRevenue, previous.TotalRevenue)
		extended.CollectionEvolutionRate = evolutionRate(current.TotalCollection, previous.TotalCollection)

		for name, org := range current.Organizations {
			prevOrg, ok := previous.Organizations[name]
			if !ok {
				// No prior-period entry: same zero-base simplification.
				org.EvolutionRate = decimal.NewNullDecimal(decimal.Zero)
				continue
			}
			org.EvolutionRate = decimal.NewNullDecimal(evolutionRate(org.TotalRevenue, prevOrg.TotalRevenue))
		}
	}

	if objectives != nil {
		if overall, ok := objectives[OverallKey]; ok {
			extended.RevenueAchievementRate = achievementRate(current.TotalRevenue, overall.RevenueObjective)
			extended.CollectionAchievementRate = achievementRate(current.TotalCollection, overall.CollectionObjective)
		}

		for name, org := range current.Organizations {
			objective, ok := objectives[name]
			if !ok {
				continue
			}
			org.AchievementRate = decimal.NewNullDecimal(achievementRate(org.TotalRevenue, objective.RevenueObjective))
		}
	}

	logger.WithComponent("kpi").WithFields(logger.Fields{
		"organizations":  len(current.Organizations),
		"has_previous":   previous != nil,
		"has_objectives": objectives != nil,
	}).Debug("Aggregated extended KPIs")

	return extended
}

// InvoiceComparison is one invoice's position against the prior period and
// its pro-rated share of the organization's objective.
type InvoiceComparison struct {
	Organization  string `json:"organization"`
	InvoiceNumber string `json:"invoice_number"`

	CurrentRevenue  decimal.Decimal `json:"current_revenue"`
	PreviousRevenue decimal.Decimal `json:"previous_revenue"`
	EvolutionRate   decimal.Decimal `json:"evolution_rate"`

	ProRatedObjective decimal.NullDecimal `json:"pro_rated_objective,omitempty"`
	AchievementRate   decimal.NullDecimal `json:"achievement_rate,omitempty"`

	SignificantRevenueChange bool `json:"significant_revenue_change"`
	Underperforming          bool `json:"underperforming"`
}

var (
	significantChangeThreshold = decimal.NewFromInt(20)
	underperformanceThreshold  = decimal.NewFromInt(80)
)

// CompareInvoices matches current against previous matched pairs on
// (organization, invoice number) and flags significant revenue changes and
// underperforming invoices. An organization's objective is distributed
// across its invoices in proportion to each invoice's share of the
// organization's total revenue.
func CompareInvoices(current, previous []*models.MatchedPair, objectives Objectives) []InvoiceComparison {
	previousByKey := make(map[string]decimal.Decimal, len(previous))
	for _, pair := range previous {
		if pair.Sales == nil {
			continue
		}
		previousByKey[invoiceKey(pair.Sales)] = pair.Sales.RevenueAmount
	}

	orgRevenue := make(map[string]decimal.Decimal)
	for _, pair := range current {
		if pair.Sales == nil {
			continue
		}
		org := pair.Sales.Organization
		orgRevenue[org] = orgRevenue[org].Add(pair.Sales.RevenueAmount)
	}

	comparisons := make([]InvoiceComparison, 0, len(current))
	for _, pair := range current {
		if pair.Sales == nil {
			continue
		}
		rec := pair.Sales

		cmp := InvoiceComparison{
			Organization:   rec.Organization,
			InvoiceNumber:  rec.InvoiceNumber,
			CurrentRevenue: rec.RevenueAmount,
		}

		if prev, ok := previousByKey[invoiceKey(rec)]; ok {
			cmp.PreviousRevenue = prev
			cmp.EvolutionRate = evolutionRate(rec.RevenueAmount, prev)
			cmp.SignificantRevenueChange = cmp.EvolutionRate.Abs().GreaterThan(significantChangeThreshold)
		}

		if objective, ok := objectives[rec.Organization]; ok {
			share := models.SafeRate(rec.RevenueAmount, orgRevenue[rec.Organization])
			proRated := objective.RevenueObjective.Mul(share)

			cmp.ProRatedObjective = decimal.NewNullDecimal(proRated)
			achievement := achievementRate(rec.RevenueAmount, proRated)
			cmp.AchievementRate = decimal.NewNullDecimal(achievement)
			cmp.Underperforming = achievement.LessThan(underperformanceThreshold)
		}

		comparisons = append(comparisons, cmp)
	}

	return comparisons
}

// evolutionRate computes (current-previous)/previous*100 with a zero when
// the base is zero or negative.
func evolutionRate(current, previous decimal.Decimal) decimal.Decimal {
	if previous.IsZero() || previous.IsNegative() {
		return decimal.Zero
	}
	return current.Sub(previous).Div(previous).Mul(decimal.NewFromInt(100))
}

// achievementRate computes current/objective*100 with the same zero guard.
func achievementRate(current, objective decimal.Decimal) decimal.Decimal {
	return models.Percent(current, objective)
}

func invoiceKey(rec *models.SalesRecord) string {
	return models.BuildMatchKey(rec.Organization, rec.InvoiceNumber, "")
}
