// Package normalizer maps raw spreadsheet rows onto the canonical record
// shapes. It is the only layer that knows about source column spellings,
// locale-formatted numbers and the date formats the exports produce.
//
// Every function here is pure and total: malformed cells degrade to zero or
// nil defaults instead of raising, so a bad cell never aborts a batch. The
// anomaly detector decides afterwards whether a defaulted field matters.
package normalizer

import (
	"strings"

	"github.com/rehza97/billing-reconciler/internal/models"
	"github.com/rehza97/billing-reconciler/pkg/errors"

	"github.com/shopspring/decimal"
)

// NormalizeSales maps one raw sales journal row onto a SalesRecord.
// Re-applying it to a row that already carries canonical headers is a no-op
// on field names and value types.
func NormalizeSales(raw map[string]string) *models.SalesRecord {
	row := salesAliases.Canonicalize(raw)

	rawOrg := strings.TrimSpace(row["organization"])
	return &models.SalesRecord{
		Organization:    CleanOrganizationName(rawOrg),
		RawOrganization: rawOrg,
		Origin:          strings.TrimSpace(row["origin"]),
		InvoiceNumber:   strings.TrimSpace(row["invoice_number"]),
		InvoiceType:     strings.TrimSpace(row["invoice_type"]),
		InvoiceDate:     ParseDate(row["invoice_date"]),
		Client:          strings.TrimSpace(row["client"]),
		Currency:        strings.TrimSpace(row["currency"]),
		InvoiceObject:   strings.TrimSpace(row["invoice_object"]),
		AccountCode:     strings.TrimSpace(row["account_code"]),
		GLDate:          ParseDate(row["gl_date"]),
		BillingPeriod:   strings.TrimSpace(row["billing_period"]),
		RevenueAmount:   ParseCurrency(row["revenue_amount"]),
	}
}

// NormalizeCollection maps one raw collections ledger row onto a
// CollectionRecord. Monetary fields are valid (with a zero default) on every
// freshly normalized record; only duplicate marking nulls them later.
func NormalizeCollection(raw map[string]string) *models.CollectionRecord {
	row := collectionAliases.Canonicalize(raw)

	rawOrg := strings.TrimSpace(row["organization"])
	return &models.CollectionRecord{
		Organization:        CleanOrganizationName(rawOrg),
		RawOrganization:     rawOrg,
		InvoiceNumber:       strings.TrimSpace(row["invoice_number"]),
		InvoiceType:         strings.TrimSpace(row["invoice_type"]),
		InvoiceDate:         ParseDate(row["invoice_date"]),
		Client:              strings.TrimSpace(row["client"]),
		AmountPreTax:        validAmount(row["amount_pre_tax"]),
		TaxAmount:           validAmount(row["tax_amount"]),
		TotalAmount:         validAmount(row["total_amount"]),
		RevenueAmount:       validAmount(row["revenue_amount"]),
		CollectionAmount:    validAmount(row["collection_amount"]),
		InvoiceCreditAmount: validAmount(row["invoice_credit_amount"]),
		PaymentDate:         ParseDate(row["payment_date"]),
	}
}

// NormalizeGeneric maps one raw row of a filter-only record kind (parc,
// créances, CA exports) onto a canonical FieldRecord. Unknown kinds are a
// configuration error, not a silent empty result.
func NormalizeGeneric(raw map[string]string, kind models.RecordKind) (models.FieldRecord, error) {
	table := TableFor(kind)
	if table == nil {
		return nil, errors.ConfigurationError(errors.CodeUnknownRecordKind, "record_kind", kind.String(), nil)
	}
	return models.FieldRecord(table.Canonicalize(raw)), nil
}

// NormalizeSalesBatch normalizes a whole batch of raw sales rows, preserving
// input order so anomaly findings can reference row indexes.
func NormalizeSalesBatch(rows []map[string]string) []*models.SalesRecord {
	records := make([]*models.SalesRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, NormalizeSales(row))
	}
	return records
}

// NormalizeCollectionBatch normalizes a whole batch of raw collection rows.
func NormalizeCollectionBatch(rows []map[string]string) []*models.CollectionRecord {
	records := make([]*models.CollectionRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, NormalizeCollection(row))
	}
	return records
}

func validAmount(value string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: ParseCurrency(value), Valid: true}
}
