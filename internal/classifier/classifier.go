// Package classifier buckets every sales journal record into exactly one of
// the exercise buckets for a given reference year, and separately enumerates
// the anomaly findings a record triggers.
//
// The two concerns are coupled in the business rules but conceptually
// distinct: Classify assigns the mutually exclusive bucket, Findings emits
// the anomaly stream. Conditions that mark a record anomalous (an
// @-prefixed object, a prior-year billing period) fold into the
// previous-exercise bucket for partitioning while still producing findings.
package classifier

import (
	"fmt"
	"strings"

	"github.com/rehza97/billing-reconciler/internal/models"
	"github.com/rehza97/billing-reconciler/internal/normalizer"
	"github.com/rehza97/billing-reconciler/pkg/logger"
)

// Engine classifies normalized sales journal records. It holds no per-call
// state, so one engine can serve concurrent batches.
type Engine struct {
	config *Config
	logger logger.Logger
}

// NewEngine creates a classification engine with the given configuration.
func NewEngine(config *Config) *Engine {
	if config == nil {
		config = DefaultConfig()
	}

	return &Engine{
		config: config,
		logger: logger.WithComponent("classifier"),
	}
}

// Classify assigns one bucket to a record for the reference year. Rules are
// evaluated in order and the first match wins:
//
//  1. account code ends with "A"            -> previous exercise
//  2. GL date year before the reference     -> previous exercise
//  3. invoice object starts with "@"        -> previous exercise
//  4. billing period ends in a prior year   -> previous exercise
//  5. invoice date year after the reference -> advance billing
//  6. otherwise                             -> current
//
// Classification never fails; a record with missing or unparseable fields
// defaults toward current unless a specific rule fires.
func (e *Engine) Classify(rec *models.SalesRecord, referenceYear int) models.Bucket {
	if hasPriorAccountCode(rec.AccountCode) {
		return models.BucketPreviousExercise
	}

	if rec.GLDate != nil && rec.GLDate.Year() < referenceYear {
		return models.BucketPreviousExercise
	}

	if hasFlaggedObject(rec.InvoiceObject) {
		return models.BucketPreviousExercise
	}

	if year, ok := normalizer.BillingPeriodYear(rec.BillingPeriod); ok && year < referenceYear {
		return models.BucketPreviousExercise
	}

	if rec.InvoiceDate != nil && rec.InvoiceDate.Year() > referenceYear {
		return models.BucketAdvanceBilling
	}

	return models.BucketCurrent
}

// Findings enumerates every anomaly condition the record triggers,
// independent of which bucket it lands in. A single record may produce zero,
// one or several findings.
func (e *Engine) Findings(rec *models.SalesRecord, index, referenceYear int) []models.Anomaly {
	var findings []models.Anomaly

	add := func(t models.AnomalyType, description string, fields []string) {
		findings = append(findings, models.Anomaly{
			Type:         t,
			Source:       models.SourceClassification,
			Description:  description,
			RecordIndex:  index,
			RelatedIndex: -1,
			Fields:       fields,
		})
	}

	if empty := e.emptyRequiredFields(rec); len(empty) > 0 {
		add(models.AnomalyEmptyFields,
			fmt.Sprintf("record has %d empty required fields", len(empty)), empty)
	}

	if isSiegeOrganization(rec.Organization) && !e.config.SiegeAllowed(rec.RawOrganization) {
		add(models.AnomalyInvalidSiegeOrganization,
			fmt.Sprintf("organization %q is not allowed to bill under AT Siège", rec.RawOrganization),
			[]string{"organization"})
	}

	if hasPriorAccountCode(rec.AccountCode) {
		add(models.AnomalyPreviousYearAccountCode,
			fmt.Sprintf("account code %q marks a prior-exercise posting", rec.AccountCode),
			[]string{"account_code"})
	}

	if rec.GLDate != nil && rec.GLDate.Year() < referenceYear {
		add(models.AnomalyPreviousYearGLDate,
			fmt.Sprintf("GL date %s precedes reference year %d", rec.GLDate.Format("2006-01-02"), referenceYear),
			[]string{"gl_date"})
	}

	if rec.InvoiceDate != nil && rec.InvoiceDate.Year() > referenceYear {
		add(models.AnomalyAdvanceInvoiceDate,
			fmt.Sprintf("invoice date %s is after reference year %d", rec.InvoiceDate.Format("2006-01-02"), referenceYear),
			[]string{"invoice_date"})
	}

	if hasFlaggedObject(rec.InvoiceObject) {
		add(models.AnomalyFlaggedInvoiceObject,
			"invoice object carries the @ anomaly marker", []string{"invoice_object"})
	}

	if year, ok := normalizer.BillingPeriodYear(rec.BillingPeriod); ok && year < referenceYear {
		add(models.AnomalyPriorBillingPeriod,
			fmt.Sprintf("billing period %q ends in prior year %d", rec.BillingPeriod, year),
			[]string{"billing_period"})
	}

	if rec.RevenueAmount.IsNegative() {
		add(models.AnomalyNegativeAmounts,
			fmt.Sprintf("revenue amount %s is negative", rec.RevenueAmount.String()),
			[]string{"revenue_amount"})
	}

	return findings
}

// FindingsForBatch runs the finding pass over a whole batch. A panic while
// deriving one record's findings is caught at the record boundary, logged
// with the row index and surfaced as a processing_error finding; the rest of
// the batch is unaffected.
func (e *Engine) FindingsForBatch(records []*models.SalesRecord, referenceYear int) []models.Anomaly {
	var findings []models.Anomaly

	for i, rec := range records {
		recFindings, err := e.safeFindings(rec, i, referenceYear)
		if err != nil {
			e.logger.WithFields(logger.Fields{
				"record_index": i,
				"invoice":      rec.InvoiceNumber,
			}).WithError(err).Error("Failed to derive findings for record")

			findings = append(findings, models.Anomaly{
				Type:         models.AnomalyProcessingError,
				Source:       models.SourceClassification,
				Description:  err.Error(),
				RecordIndex:  i,
				RelatedIndex: -1,
			})
			continue
		}
		findings = append(findings, recFindings...)
	}

	return findings
}

// PartitionResult holds the bucket-partitioned view of one batch. The lists
// are complete and mutually exclusive over the input; anomalous conditions
// land in PreviousExercise.
type PartitionResult struct {
	Current          []*models.SalesRecord `json:"current"`
	PreviousExercise []*models.SalesRecord `json:"previous_exercise"`
	AdvanceBilling   []*models.SalesRecord `json:"advance_billing"`
}

// Total returns the number of partitioned records.
func (p *PartitionResult) Total() int {
	return len(p.Current) + len(p.PreviousExercise) + len(p.AdvanceBilling)
}

// Partition splits a batch into the exercise buckets for the reference year.
// Records that panic during classification default to the current bucket so
// the partition stays complete.
func (e *Engine) Partition(records []*models.SalesRecord, referenceYear int) *PartitionResult {
	result := &PartitionResult{}

	for i, rec := range records {
		bucket := e.safeClassify(rec, i, referenceYear)
		switch bucket {
		case models.BucketPreviousExercise:
			result.PreviousExercise = append(result.PreviousExercise, rec)
		case models.BucketAdvanceBilling:
			result.AdvanceBilling = append(result.AdvanceBilling, rec)
		default:
			result.Current = append(result.Current, rec)
		}
	}

	return result
}

func (e *Engine) safeClassify(rec *models.SalesRecord, index, referenceYear int) (bucket models.Bucket) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.WithField("record_index", index).
				Errorf("Classification panicked: %v", r)
			bucket = models.BucketCurrent
		}
	}()
	return e.Classify(rec, referenceYear)
}

func (e *Engine) safeFindings(rec *models.SalesRecord, index, referenceYear int) (findings []models.Anomaly, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("finding derivation failed for record %d: %v", index, r)
		}
	}()
	return e.Findings(rec, index, referenceYear), nil
}

// emptyRequiredFields returns the configured critical fields that are empty
// on the record, in configuration order.
func (e *Engine) emptyRequiredFields(rec *models.SalesRecord) []string {
	var empty []string
	for _, field := range e.config.RequiredFields {
		if isFieldEmpty(rec, field) {
			empty = append(empty, field)
		}
	}
	return empty
}

func isFieldEmpty(rec *models.SalesRecord, field string) bool {
	switch field {
	case "organization":
		return strings.TrimSpace(rec.Organization) == ""
	case "origin":
		return strings.TrimSpace(rec.Origin) == ""
	case "invoice_number":
		return strings.TrimSpace(rec.InvoiceNumber) == ""
	case "invoice_type":
		return strings.TrimSpace(rec.InvoiceType) == ""
	case "invoice_date":
		return rec.InvoiceDate == nil
	case "client":
		return strings.TrimSpace(rec.Client) == ""
	case "currency":
		return strings.TrimSpace(rec.Currency) == ""
	case "invoice_object":
		return strings.TrimSpace(rec.InvoiceObject) == ""
	case "account_code":
		return strings.TrimSpace(rec.AccountCode) == ""
	case "gl_date":
		return rec.GLDate == nil
	case "billing_period":
		return strings.TrimSpace(rec.BillingPeriod) == ""
	case "revenue_amount":
		// Zero is the parse default for a blank cell.
		return rec.RevenueAmount.IsZero()
	default:
		return false
	}
}

func hasPriorAccountCode(accountCode string) bool {
	code := strings.TrimSpace(accountCode)
	return code != "" && strings.HasSuffix(code, "A")
}

func hasFlaggedObject(invoiceObject string) bool {
	return strings.HasPrefix(strings.TrimSpace(invoiceObject), "@")
}

func isSiegeOrganization(organization string) bool {
	org := strings.ToLower(strings.TrimSpace(organization))
	return org == "at siège" || org == "at siege"
}
