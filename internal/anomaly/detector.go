// Package anomaly implements the rule-driven validation pass over
// normalized records: required-field emptiness, negative amounts, category
// membership filters and duplicate detection for the collections ledger.
//
// Detection functions are pure: findings are returned per call, never
// accumulated on the detector, so concurrent batches never interfere.
package anomaly

import (
	"fmt"
	"strings"

	"github.com/rehza97/billing-reconciler/internal/models"
	"github.com/rehza97/billing-reconciler/pkg/errors"
	"github.com/rehza97/billing-reconciler/pkg/logger"

	"github.com/shopspring/decimal"
)

// Detector runs the validation rules for every record kind.
type Detector struct {
	config *Config
	logger logger.Logger
}

// NewDetector creates a detector with the given rule tables.
func NewDetector(config *Config) (*Detector, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "anomaly_rules", nil, err)
	}

	return &Detector{
		config: config,
		logger: logger.WithComponent("anomaly_detector"),
	}, nil
}

// DetectSales runs the required-field and negative-amount checks over a
// batch of sales journal records.
func (d *Detector) DetectSales(records []*models.SalesRecord) []models.Anomaly {
	critical := d.config.CriticalFields[models.KindSalesJournal]
	var findings []models.Anomaly

	for i, rec := range records {
		if empty := emptySalesFields(rec, critical); len(empty) > 0 {
			findings = append(findings, models.Anomaly{
				Type:         models.AnomalyEmptyFields,
				Source:       models.SourceRule,
				Description:  fmt.Sprintf("record has %d empty required fields", len(empty)),
				RecordIndex:  i,
				RelatedIndex: -1,
				Fields:       empty,
			})
		}

		if rec.RevenueAmount.IsNegative() {
			findings = append(findings, models.Anomaly{
				Type:         models.AnomalyNegativeAmounts,
				Source:       models.SourceRule,
				Description:  "record carries negative monetary values",
				RecordIndex:  i,
				RelatedIndex: -1,
				Fields:       []string{"revenue_amount"},
				Data: map[string]interface{}{
					"revenue_amount": rec.RevenueAmount.String(),
				},
			})
		}
	}

	return findings
}

// DetectCollections runs the required-field and negative-amount checks over
// a batch of collection records. Duplicate rows are skipped for the
// negative-amount check because their monetary fields are already nulled.
func (d *Detector) DetectCollections(records []*models.CollectionRecord) []models.Anomaly {
	critical := d.config.CriticalFields[models.KindCollections]
	var findings []models.Anomaly

	for i, rec := range records {
		if empty := emptyCollectionFields(rec, critical); len(empty) > 0 {
			findings = append(findings, models.Anomaly{
				Type:         models.AnomalyEmptyFields,
				Source:       models.SourceRule,
				Description:  fmt.Sprintf("record has %d empty required fields", len(empty)),
				RecordIndex:  i,
				RelatedIndex: -1,
				Fields:       empty,
			})
		}

		if rec.Duplicate {
			continue
		}

		if negatives := negativeMonetaryFields(rec); len(negatives) > 0 {
			fields := make([]string, 0, len(negatives))
			data := make(map[string]interface{}, len(negatives))
			for _, nf := range negatives {
				fields = append(fields, nf.name)
				data[nf.name] = nf.value.String()
			}

			findings = append(findings, models.Anomaly{
				Type:         models.AnomalyNegativeAmounts,
				Source:       models.SourceRule,
				Description:  "record carries negative monetary values",
				RecordIndex:  i,
				RelatedIndex: -1,
				Fields:       fields,
				Data:         data,
			})
		}
	}

	return findings
}

// MarkDuplicates flags every second and subsequent occurrence of a composite
// key in the collections ledger and nulls its monetary fields so totals
// never double-count. The first occurrence is left untouched. The input
// slice is mutated in place; the returned findings reference both row
// indexes.
func (d *Detector) MarkDuplicates(records []*models.CollectionRecord) []models.Anomaly {
	seen := make(map[string]int, len(records))
	var findings []models.Anomaly

	for i, rec := range records {
		key := rec.MatchKey()

		first, exists := seen[key]
		if !exists {
			seen[key] = i
			continue
		}

		rec.Duplicate = true
		rec.DuplicateOf = first
		rec.ClearMonetaryFields()

		findings = append(findings, models.Anomaly{
			Type:         models.AnomalyDuplicateRecord,
			Source:       models.SourceRule,
			Description:  fmt.Sprintf("invoice %s/%s repeats row %d", rec.InvoiceNumber, rec.InvoiceType, first),
			RecordIndex:  i,
			RelatedIndex: first,
			Data: map[string]interface{}{
				"match_key": key,
			},
		})
	}

	if len(findings) > 0 {
		d.logger.WithField("duplicates", len(findings)).
			Warn("Nulled monetary fields on duplicate collection rows")
	}

	return findings
}

// FilterResult is the outcome of a category-membership pass: the records
// that survive, the records dropped, and one finding per dropped record
// carrying every failed clause.
type FilterResult struct {
	Clean     []models.FieldRecord `json:"clean"`
	Excluded  []models.FieldRecord `json:"excluded"`
	Anomalies []models.Anomaly     `json:"anomalies"`
}

// FilterRecords applies the kind-specific category rules. Excluded records
// are dropped from the clean output and reported, one finding per record
// with every failing clause as a reason.
func (d *Detector) FilterRecords(kind models.RecordKind, records []models.FieldRecord) (*FilterResult, error) {
	var reasonsFor func(models.FieldRecord) []string

	switch kind {
	case models.KindParcCorporate:
		reasonsFor = d.parcReasons
	case models.KindCreancesNGBSS:
		reasonsFor = d.creancesReasons
	case models.KindCAPeriodique:
		reasonsFor = d.periodiqueReasons
	case models.KindCANonPeriodique:
		reasonsFor = d.siegeOnlyReasons
	case models.KindCADNT, models.KindCARFD, models.KindCACNT:
		reasonsFor = d.corporateSiegeReasons
	default:
		return nil, errors.ConfigurationError(errors.CodeUnknownRecordKind, "record_kind", kind.String(), nil)
	}

	result := &FilterResult{}
	for i, rec := range records {
		reasons := reasonsFor(rec)
		if len(reasons) == 0 {
			result.Clean = append(result.Clean, rec)
			continue
		}

		result.Excluded = append(result.Excluded, rec)
		result.Anomalies = append(result.Anomalies, models.Anomaly{
			Type:         models.AnomalyExcludedRecord,
			Source:       models.SourceRule,
			Description:  strings.Join(reasons, "; "),
			RecordIndex:  i,
			RelatedIndex: -1,
		})
	}

	d.logger.WithFields(logger.Fields{
		"kind":     kind.String(),
		"total":    len(records),
		"excluded": len(result.Excluded),
	}).Debug("Applied category filter")

	return result, nil
}

func (d *Detector) parcReasons(rec models.FieldRecord) []string {
	var reasons []string

	if code := rec.Get("customer_l3_code"); contains(d.config.ParcExcludedCustomerL3, code) {
		reasons = append(reasons, fmt.Sprintf("customer level-3 code %s is excluded", code))
	}

	offer := rec.Get("offer_name")
	for _, substr := range d.config.ParcExcludedOfferSubstrings {
		if strings.Contains(offer, substr) {
			reasons = append(reasons, fmt.Sprintf("offer %q matches excluded pattern %q", offer, substr))
		}
	}

	if status := rec.Get("subscriber_status"); contains(d.config.ParcExcludedStatuses, status) {
		reasons = append(reasons, fmt.Sprintf("subscriber status %s is excluded", status))
	}

	return reasons
}

func (d *Detector) creancesReasons(rec models.FieldRecord) []string {
	var reasons []string

	if product := rec.Get("product"); !contains(d.config.CreancesValidProducts, product) {
		reasons = append(reasons, fmt.Sprintf("product %q is not a valid product", product))
	}

	if lev1 := rec.Get("customer_lev1"); !contains(d.config.CreancesValidCustomerLev1, lev1) {
		reasons = append(reasons, fmt.Sprintf("customer level 1 %q is not allowed", lev1))
	}

	if lev2 := rec.Get("customer_lev2"); contains(d.config.CreancesExcludedCustomerLev2, lev2) {
		reasons = append(reasons, fmt.Sprintf("customer level 2 %q is excluded", lev2))
	}

	if lev3 := rec.Get("customer_lev3"); !contains(d.config.CreancesValidCustomerLev3, lev3) {
		reasons = append(reasons, fmt.Sprintf("customer level 3 %q is not allowed", lev3))
	}

	return reasons
}

func (d *Detector) periodiqueReasons(rec models.FieldRecord) []string {
	// Siège keeps every product; other DOs keep only the allowed products.
	if rec.Get("do") == d.config.SiegeDO {
		return nil
	}

	if product := rec.Get("product"); !contains(d.config.PeriodiqueSiegeProducts, product) {
		return []string{fmt.Sprintf("product %q is not allowed outside %s", product, d.config.SiegeDO)}
	}

	return nil
}

func (d *Detector) siegeOnlyReasons(rec models.FieldRecord) []string {
	if do := rec.Get("do"); do != d.config.SiegeDO {
		return []string{fmt.Sprintf("DO %q is not %s", do, d.config.SiegeDO)}
	}
	return nil
}

func (d *Detector) corporateSiegeReasons(rec models.FieldRecord) []string {
	reasons := d.siegeOnlyReasons(rec)

	if dept := rec.Get("department"); dept != d.config.CorporateDepartment {
		reasons = append(reasons, fmt.Sprintf("department %q is not %s", dept, d.config.CorporateDepartment))
	}

	return reasons
}

type negativeField struct {
	name  string
	value decimal.Decimal
}

func negativeMonetaryFields(rec *models.CollectionRecord) []negativeField {
	fields := rec.MonetaryFields()
	var negatives []negativeField

	for _, name := range models.MonetaryFieldNames() {
		field := fields[name]
		if field.Valid && field.Decimal.IsNegative() {
			negatives = append(negatives, negativeField{name: name, value: field.Decimal})
		}
	}

	return negatives
}

func emptySalesFields(rec *models.SalesRecord, critical []string) []string {
	var empty []string
	for _, field := range critical {
		switch field {
		case "organization":
			if strings.TrimSpace(rec.Organization) == "" {
				empty = append(empty, field)
			}
		case "invoice_number":
			if strings.TrimSpace(rec.InvoiceNumber) == "" {
				empty = append(empty, field)
			}
		case "invoice_type":
			if strings.TrimSpace(rec.InvoiceType) == "" {
				empty = append(empty, field)
			}
		case "invoice_date":
			if rec.InvoiceDate == nil {
				empty = append(empty, field)
			}
		case "client":
			if strings.TrimSpace(rec.Client) == "" {
				empty = append(empty, field)
			}
		case "invoice_object":
			if strings.TrimSpace(rec.InvoiceObject) == "" {
				empty = append(empty, field)
			}
		case "account_code":
			if strings.TrimSpace(rec.AccountCode) == "" {
				empty = append(empty, field)
			}
		case "gl_date":
			if rec.GLDate == nil {
				empty = append(empty, field)
			}
		case "billing_period":
			if strings.TrimSpace(rec.BillingPeriod) == "" {
				empty = append(empty, field)
			}
		case "revenue_amount":
			// Zero is the parse default for a blank cell.
			if rec.RevenueAmount.IsZero() {
				empty = append(empty, field)
			}
		}
	}
	return empty
}

func emptyCollectionFields(rec *models.CollectionRecord, critical []string) []string {
	var empty []string
	for _, field := range critical {
		switch field {
		case "organization":
			if strings.TrimSpace(rec.Organization) == "" {
				empty = append(empty, field)
			}
		case "invoice_number":
			if strings.TrimSpace(rec.InvoiceNumber) == "" {
				empty = append(empty, field)
			}
		case "invoice_type":
			if strings.TrimSpace(rec.InvoiceType) == "" {
				empty = append(empty, field)
			}
		case "invoice_date":
			if rec.InvoiceDate == nil {
				empty = append(empty, field)
			}
		case "client":
			if strings.TrimSpace(rec.Client) == "" {
				empty = append(empty, field)
			}
		case "payment_date":
			if rec.PaymentDate == nil {
				empty = append(empty, field)
			}
		}
	}
	return empty
}
