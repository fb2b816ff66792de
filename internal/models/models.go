// Package models defines the plain data structures exchanged between the
// normalization, classification, anomaly detection, reconciliation and KPI
// layers. Everything here is composed of primitive types so results can be
// serialized to JSON, database rows or report rows without translation.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RecordKind identifies which business document type a batch of rows
// represents. The ingestion layer tags every batch with one of these.
type RecordKind string

const (
	// KindSalesJournal is the per-invoice revenue journal ("Journal des Ventes").
	KindSalesJournal RecordKind = "journal_ventes"
	// KindCollections is the per-invoice billing/collection ledger ("État de Facture").
	KindCollections RecordKind = "etat_facture"
	// KindParcCorporate is the corporate subscriber park export.
	KindParcCorporate RecordKind = "parc_corporate"
	// KindCreancesNGBSS is the NGBSS receivables export.
	KindCreancesNGBSS RecordKind = "creances_ngbss"
	// KindCAPeriodique is the periodic revenue export.
	KindCAPeriodique RecordKind = "ca_periodique"
	// KindCANonPeriodique is the non-periodic revenue export.
	KindCANonPeriodique RecordKind = "ca_non_periodique"
	// KindCADNT is the DNT adjustments export.
	KindCADNT RecordKind = "ca_dnt"
	// KindCARFD is the RFD refunds export.
	KindCARFD RecordKind = "ca_rfd"
	// KindCACNT is the CNT disputes export.
	KindCACNT RecordKind = "ca_cnt"
)

// String returns the string representation of the record kind.
func (k RecordKind) String() string {
	return string(k)
}

// IsValid checks whether the record kind is one of the known document types.
func (k RecordKind) IsValid() bool {
	switch k {
	case KindSalesJournal, KindCollections, KindParcCorporate, KindCreancesNGBSS,
		KindCAPeriodique, KindCANonPeriodique, KindCADNT, KindCARFD, KindCACNT:
		return true
	}
	return false
}

// Bucket is the mutually exclusive classification assigned to every sales
// journal record for a given reference year.
type Bucket string

const (
	// BucketCurrent marks a record billed within the reference exercise.
	BucketCurrent Bucket = "current"
	// BucketPreviousExercise marks a record belonging to a prior exercise.
	BucketPreviousExercise Bucket = "previous_exercise"
	// BucketAdvanceBilling marks a record invoiced ahead of the reference exercise.
	BucketAdvanceBilling Bucket = "advance_billing"
	// BucketAnomalous exists for reporting; its triggering conditions are
	// folded into BucketPreviousExercise when partitioning, while still
	// surfacing as anomaly findings.
	BucketAnomalous Bucket = "anomalous"
)

// String returns the string representation of the bucket.
func (b Bucket) String() string {
	return string(b)
}

// AnomalySource distinguishes the two anomaly streams: findings emitted as a
// by-product of classification and findings emitted by validation rules.
type AnomalySource string

const (
	// SourceClassification marks findings produced by the classification pass.
	SourceClassification AnomalySource = "classification"
	// SourceRule marks findings produced by the anomaly detector rules.
	SourceRule AnomalySource = "rule"
)

// AnomalyType enumerates the finding types produced by the engine.
type AnomalyType string

const (
	AnomalyEmptyFields              AnomalyType = "empty_fields"
	AnomalyNegativeAmounts          AnomalyType = "negative_amounts"
	AnomalyDuplicateRecord          AnomalyType = "duplicate_record"
	AnomalyPreviousYearAccountCode  AnomalyType = "previous_year_account_code"
	AnomalyPreviousYearGLDate       AnomalyType = "previous_year_gl_date"
	AnomalyAdvanceInvoiceDate       AnomalyType = "advance_invoice_date"
	AnomalyFlaggedInvoiceObject     AnomalyType = "flagged_invoice_object"
	AnomalyPriorBillingPeriod       AnomalyType = "prior_billing_period"
	AnomalyInvalidSiegeOrganization AnomalyType = "invalid_siege_organization"
	AnomalyExcludedRecord           AnomalyType = "excluded_record"
	AnomalyProcessingError          AnomalyType = "processing_error"
)

// Anomaly is a single structured finding about one record. Findings are a
// set; their order carries no meaning.
type Anomaly struct {
	Type        AnomalyType   `json:"type"`
	Source      AnomalySource `json:"source"`
	Description string        `json:"description"`
	RecordIndex int           `json:"record_index"`
	// RelatedIndex points at the original row for duplicate findings. It is
	// -1 when there is no related record.
	RelatedIndex int                    `json:"related_index,omitempty"`
	Fields       []string               `json:"fields,omitempty"`
	Data         map[string]interface{} `json:"data,omitempty"`
}

// String returns a short human-readable form of the finding.
func (a Anomaly) String() string {
	if len(a.Fields) > 0 {
		return fmt.Sprintf("%s[%d]: %s (%s)", a.Type, a.RecordIndex, a.Description, strings.Join(a.Fields, ", "))
	}
	return fmt.Sprintf("%s[%d]: %s", a.Type, a.RecordIndex, a.Description)
}

// SalesRecord represents one invoice line from the sales journal as
// originally billed. It is immutable after normalization except for the two
// derived flags set during reconciliation.
type SalesRecord struct {
	Organization string `json:"organization"`
	// RawOrganization keeps the source value before cleaning; the AT-Siège
	// allow-list check is case-sensitive on the original string.
	RawOrganization string          `json:"raw_organization,omitempty"`
	Origin          string          `json:"origin"`
	InvoiceNumber   string          `json:"invoice_number"`
	InvoiceType     string          `json:"invoice_type"`
	InvoiceDate     *time.Time      `json:"invoice_date"`
	Client          string          `json:"client"`
	Currency        string          `json:"currency"`
	InvoiceObject   string          `json:"invoice_object"`
	AccountCode     string          `json:"account_code"`
	GLDate          *time.Time      `json:"gl_date"`
	BillingPeriod   string          `json:"billing_period"`
	RevenueAmount   decimal.Decimal `json:"revenue_amount"`

	// Derived during reconciliation, against the engine's current year.
	OutsideFiscalYear       bool `json:"outside_fiscal_year"`
	OutsideNormalOperations bool `json:"outside_normal_operations"`
}

// MatchKey returns the composite matching key for this record. The
// organization must already be cleaned; the reconciliation engine re-cleans
// it before calling this.
func (r *SalesRecord) MatchKey() string {
	return BuildMatchKey(r.Organization, r.InvoiceNumber, r.InvoiceType)
}

// String returns a string representation of the sales record.
func (r *SalesRecord) String() string {
	return fmt.Sprintf("SalesRecord{Org: %s, Invoice: %s/%s, Revenue: %s}",
		r.Organization, r.InvoiceNumber, r.InvoiceType, r.RevenueAmount.String())
}

// CollectionRecord represents one invoice's billing/collection status from
// the collections ledger. Monetary fields use NullDecimal because duplicate
// rows have them nulled to avoid double counting.
type CollectionRecord struct {
	Organization        string              `json:"organization"`
	RawOrganization     string              `json:"raw_organization,omitempty"`
	InvoiceNumber       string              `json:"invoice_number"`
	InvoiceType         string              `json:"invoice_type"`
	InvoiceDate         *time.Time          `json:"invoice_date"`
	Client              string              `json:"client"`
	AmountPreTax        decimal.NullDecimal `json:"amount_pre_tax"`
	TaxAmount           decimal.NullDecimal `json:"tax_amount"`
	TotalAmount         decimal.NullDecimal `json:"total_amount"`
	RevenueAmount       decimal.NullDecimal `json:"revenue_amount"`
	CollectionAmount    decimal.NullDecimal `json:"collection_amount"`
	InvoiceCreditAmount decimal.NullDecimal `json:"invoice_credit_amount"`
	PaymentDate         *time.Time          `json:"payment_date"`

	// Duplicate is set on the second and subsequent occurrences of a
	// composite key; DuplicateOf is the index of the first occurrence.
	Duplicate   bool `json:"duplicate,omitempty"`
	DuplicateOf int  `json:"duplicate_of,omitempty"`
}

// MatchKey returns the composite matching key for this record.
func (r *CollectionRecord) MatchKey() string {
	return BuildMatchKey(r.Organization, r.InvoiceNumber, r.InvoiceType)
}

// MonetaryFieldNames lists the six monetary fields of a collection record,
// in declaration order. Used by the anomaly detector for negative-amount
// checks and duplicate nulling.
func MonetaryFieldNames() []string {
	return []string{
		"amount_pre_tax", "tax_amount", "total_amount",
		"revenue_amount", "collection_amount", "invoice_credit_amount",
	}
}

// MonetaryFields returns pointers to the six monetary fields keyed by their
// canonical names.
func (r *CollectionRecord) MonetaryFields() map[string]*decimal.NullDecimal {
	return map[string]*decimal.NullDecimal{
		"amount_pre_tax":        &r.AmountPreTax,
		"tax_amount":            &r.TaxAmount,
		"total_amount":          &r.TotalAmount,
		"revenue_amount":        &r.RevenueAmount,
		"collection_amount":     &r.CollectionAmount,
		"invoice_credit_amount": &r.InvoiceCreditAmount,
	}
}

// ClearMonetaryFields nulls all six monetary fields. A duplicate row is
// informational about a partial payment; its totals must not count twice.
func (r *CollectionRecord) ClearMonetaryFields() {
	for _, field := range r.MonetaryFields() {
		field.Valid = false
		field.Decimal = decimal.Zero
	}
}

// String returns a string representation of the collection record.
func (r *CollectionRecord) String() string {
	return fmt.Sprintf("CollectionRecord{Org: %s, Invoice: %s/%s, Collection: %s}",
		r.Organization, r.InvoiceNumber, r.InvoiceType, r.CollectionAmount.Decimal.String())
}

// BuildMatchKey builds the lowercased composite matching key shared by both
// sides of a reconciliation.
func BuildMatchKey(organization, invoiceNumber, invoiceType string) string {
	return strings.ToLower(strings.TrimSpace(organization)) + "_" +
		strings.ToLower(strings.TrimSpace(invoiceNumber)) + "_" +
		strings.ToLower(strings.TrimSpace(invoiceType))
}

// MatchedPair joins zero-or-one sales record with zero-or-one collection
// record sharing a composite key. Owned by the reconciliation engine for the
// duration of one call; never persisted by the core.
type MatchedPair struct {
	MatchKey       string            `json:"match_key"`
	Sales          *SalesRecord      `json:"sales,omitempty"`
	Collection     *CollectionRecord `json:"collection,omitempty"`
	CollectionRate decimal.Decimal   `json:"collection_rate"`
}

// OrganizationKPI aggregates one organization's reconciled figures.
type OrganizationKPI struct {
	Organization                 string          `json:"organization"`
	TotalRevenue                 decimal.Decimal `json:"total_revenue"`
	TotalCollection              decimal.Decimal `json:"total_collection"`
	CollectionRate               decimal.Decimal `json:"collection_rate"`
	InvoiceCount                 int             `json:"invoice_count"`
	OutsideFiscalYearCount       int             `json:"outside_fiscal_year_count"`
	OutsideNormalOperationsCount int             `json:"outside_normal_operations_count"`

	// Present only when a prior period / objective was supplied.
	EvolutionRate   decimal.NullDecimal `json:"evolution_rate,omitempty"`
	AchievementRate decimal.NullDecimal `json:"achievement_rate,omitempty"`
}

// KPISummary is the aggregate outcome of one reconciliation run.
type KPISummary struct {
	TotalRevenue              decimal.Decimal             `json:"total_revenue"`
	TotalCollection           decimal.Decimal             `json:"total_collection"`
	CollectionRate            decimal.Decimal             `json:"collection_rate"`
	InvoiceCount              int                         `json:"invoice_count"`
	MatchedCount              int                         `json:"matched_count"`
	MissingInCollectionsCount int                         `json:"missing_in_collections_count"`
	MissingInSalesCount       int                         `json:"missing_in_sales_count"`
	Organizations             map[string]*OrganizationKPI `json:"organizations"`
}

// FieldRecord is a normalized generic row for the document kinds that are
// validated and filtered but never joined (parc, créances, CA exports).
// Keys are canonical field names.
type FieldRecord map[string]string

// Get returns the trimmed value of a field, or "" when absent.
func (fr FieldRecord) Get(field string) string {
	return strings.TrimSpace(fr[field])
}

// IsBlank reports whether a field is absent, empty or whitespace-only.
func (fr FieldRecord) IsBlank(field string) bool {
	return fr.Get(field) == ""
}

// SafeRate divides numerator by denominator, returning zero when the
// denominator is zero or negative. Rates must never be an error, null or NaN.
func SafeRate(numerator, denominator decimal.Decimal) decimal.Decimal {
	if denominator.IsZero() || denominator.IsNegative() {
		return decimal.Zero
	}
	return numerator.Div(denominator)
}

// Percent computes part/whole*100 with the same zero-guard as SafeRate.
func Percent(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() || whole.IsNegative() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(decimal.NewFromInt(100))
}

// MarshalJSON renders the collection rate as a string so that downstream
// consumers never lose precision to float encoding.
func (p *MatchedPair) MarshalJSON() ([]byte, error) {
	type Alias MatchedPair
	return json.Marshal(&struct {
		CollectionRate string `json:"collection_rate"`
		*Alias
	}{
		CollectionRate: p.CollectionRate.String(),
		Alias:          (*Alias)(p),
	})
}
