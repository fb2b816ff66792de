// Package reconciler joins the sales journal against the collections ledger
// on a derived composite key and computes the per-pair, per-organization and
// global KPIs for one run.
//
// The engine is stateless over its inputs apart from the two derived flags
// it sets on sales records; it performs no I/O and can be invoked
// concurrently on disjoint batches.
package reconciler

import (
	"fmt"
	"time"

	"github.com/rehza97/billing-reconciler/internal/models"
	"github.com/rehza97/billing-reconciler/internal/normalizer"
	"github.com/rehza97/billing-reconciler/pkg/errors"
	"github.com/rehza97/billing-reconciler/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Config holds configuration options for the reconciliation engine.
type Config struct {
	// CurrentYear anchors the outside_fiscal_year and
	// outside_normal_operations flags. Zero means "the year of the wall
	// clock at engine construction". This is deliberately independent of
	// the classification reference year: the flags are a second evaluation
	// point against "now".
	CurrentYear int
}

// DefaultConfig returns a default engine configuration.
func DefaultConfig() *Config {
	return &Config{}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.CurrentYear < 0 {
		return fmt.Errorf("current year cannot be negative, got %d", c.CurrentYear)
	}
	return nil
}

// Engine performs the sales/collections reconciliation.
type Engine struct {
	config      *Config
	currentYear int
	logger      logger.Logger
}

// NewEngine creates a reconciliation engine.
func NewEngine(config *Config) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "reconciler", nil, err)
	}

	currentYear := config.CurrentYear
	if currentYear == 0 {
		currentYear = time.Now().Year()
	}

	return &Engine{
		config:      config,
		currentYear: currentYear,
		logger:      logger.WithComponent("reconciler"),
	}, nil
}

// Result contains the complete outcome of one reconciliation run.
type Result struct {
	RunID       string    `json:"run_id"`
	ProcessedAt time.Time `json:"processed_at"`

	Matched []*models.MatchedPair `json:"matched"`

	// MissingInCollections holds match keys of sales records with no
	// collection counterpart; MissingInSales the reverse. The two lists
	// come from independent anti-joins, not from one symmetric pass.
	MissingInCollections []string `json:"missing_in_collections"`
	MissingInSales       []string `json:"missing_in_sales"`

	Summary *models.KPISummary `json:"summary"`
}

// Reconcile joins the two datasets. One empty side is a valid run (the
// totals on that side are zero); both sides empty is an explicit
// empty-dataset error so downstream consumers can distinguish "no data
// supplied" from "supplied but fully reconciled with zero totals".
func (e *Engine) Reconcile(sales []*models.SalesRecord, collections []*models.CollectionRecord) (*Result, error) {
	if len(sales) == 0 && len(collections) == 0 {
		return nil, errors.ReconciliationError(errors.CodeEmptyDataset, "reconciliation", nil)
	}

	start := time.Now()

	// Matching is sensitive to residual formatting drift between the two
	// source systems, so organization names are re-cleaned here even though
	// normalization already ran.
	for _, rec := range sales {
		rec.Organization = normalizer.CleanOrganizationName(rec.Organization)
	}
	for _, rec := range collections {
		rec.Organization = normalizer.CleanOrganizationName(rec.Organization)
	}

	e.applyOperationalFlags(sales)

	collectionByKey := make(map[string]*models.CollectionRecord, len(collections))
	for _, rec := range collections {
		if rec.Duplicate {
			continue
		}
		key := rec.MatchKey()
		if _, exists := collectionByKey[key]; !exists {
			collectionByKey[key] = rec
		}
	}

	result := &Result{
		RunID:                uuid.NewString(),
		ProcessedAt:          start,
		MissingInCollections: []string{},
		MissingInSales:       []string{},
	}

	// Left outer join from sales to collections.
	salesKeys := make(map[string]bool, len(sales))
	for _, rec := range sales {
		key := rec.MatchKey()
		salesKeys[key] = true

		collection, ok := collectionByKey[key]
		if !ok {
			result.MissingInCollections = append(result.MissingInCollections, key)
			continue
		}

		result.Matched = append(result.Matched, &models.MatchedPair{
			MatchKey:       key,
			Sales:          rec,
			Collection:     collection,
			CollectionRate: pairCollectionRate(rec, collection),
		})
	}

	// Independent anti-join from collections to sales.
	seenMissing := make(map[string]bool)
	for _, rec := range collections {
		key := rec.MatchKey()
		if salesKeys[key] || seenMissing[key] {
			continue
		}
		seenMissing[key] = true
		result.MissingInSales = append(result.MissingInSales, key)
	}

	result.Summary = e.summarize(sales, result)

	e.logger.WithFields(logger.Fields{
		"run_id":                 result.RunID,
		"sales":                  len(sales),
		"collections":            len(collections),
		"matched":                len(result.Matched),
		"missing_in_collections": len(result.MissingInCollections),
		"missing_in_sales":       len(result.MissingInSales),
		"duration":               time.Since(start).String(),
	}).Info("Reconciliation completed")

	return result, nil
}

// applyOperationalFlags recomputes the two derived flags on every sales
// record against the engine's current year.
func (e *Engine) applyOperationalFlags(sales []*models.SalesRecord) {
	for _, rec := range sales {
		rec.OutsideFiscalYear = e.outsideFiscalYear(rec)
		rec.OutsideNormalOperations = e.outsideNormalOperations(rec)
	}
}

func (e *Engine) outsideFiscalYear(rec *models.SalesRecord) bool {
	if rec.GLDate != nil && rec.GLDate.Year() != e.currentYear {
		return true
	}
	code := rec.AccountCode
	return code != "" && code[len(code)-1] == 'A'
}

func (e *Engine) outsideNormalOperations(rec *models.SalesRecord) bool {
	if len(rec.InvoiceObject) > 0 && rec.InvoiceObject[0] == '@' {
		return true
	}
	return rec.InvoiceDate != nil && rec.InvoiceDate.Year() > e.currentYear
}

// pairCollectionRate computes collection/revenue for a joined pair, with a
// zero guard on absent or non-positive revenue.
func pairCollectionRate(sales *models.SalesRecord, collection *models.CollectionRecord) decimal.Decimal {
	if !collection.CollectionAmount.Valid {
		return decimal.Zero
	}
	return models.SafeRate(collection.CollectionAmount.Decimal, sales.RevenueAmount)
}

// summarize aggregates the run into per-organization and global KPIs. The
// revenue side aggregates every sales record; the collection side only the
// matched counterparts.
func (e *Engine) summarize(sales []*models.SalesRecord, result *Result) *models.KPISummary {
	summary := &models.KPISummary{
		InvoiceCount:              len(sales),
		MatchedCount:              len(result.Matched),
		MissingInCollectionsCount: len(result.MissingInCollections),
		MissingInSalesCount:       len(result.MissingInSales),
		Organizations:             make(map[string]*models.OrganizationKPI),
	}

	orgFor := func(name string) *models.OrganizationKPI {
		org, ok := summary.Organizations[name]
		if !ok {
			org = &models.OrganizationKPI{Organization: name}
			summary.Organizations[name] = org
		}
		return org
	}

	for _, rec := range sales {
		org := orgFor(rec.Organization)
		org.TotalRevenue = org.TotalRevenue.Add(rec.RevenueAmount)
		org.InvoiceCount++
		if rec.OutsideFiscalYear {
			org.OutsideFiscalYearCount++
		}
		if rec.OutsideNormalOperations {
			org.OutsideNormalOperationsCount++
		}

		summary.TotalRevenue = summary.TotalRevenue.Add(rec.RevenueAmount)
	}

	for _, pair := range result.Matched {
		if !pair.Collection.CollectionAmount.Valid {
			continue
		}
		collected := pair.Collection.CollectionAmount.Decimal

		org := orgFor(pair.Sales.Organization)
		org.TotalCollection = org.TotalCollection.Add(collected)
		summary.TotalCollection = summary.TotalCollection.Add(collected)
	}

	for _, org := range summary.Organizations {
		org.CollectionRate = models.SafeRate(org.TotalCollection, org.TotalRevenue)
	}
	summary.CollectionRate = models.SafeRate(summary.TotalCollection, summary.TotalRevenue)

	return summary
}
