package anomaly

import (
	"strings"
	"testing"
	"time"

	"github.com/rehza97/billing-reconciler/internal/models"
	"github.com/rehza97/billing-reconciler/pkg/errors"

	"github.com/shopspring/decimal"
)

func date(year, month, day int) *time.Time {
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return &t
}

func newTestDetector(t *testing.T) *Detector {
	t.Helper()
	detector, err := NewDetector(nil)
	if err != nil {
		t.Fatalf("NewDetector() error = %v", err)
	}
	return detector
}

func completeSales() *models.SalesRecord {
	return &models.SalesRecord{
		Organization:  "Alger Centre",
		InvoiceNumber: "INV-1",
		InvoiceType:   "Standard",
		InvoiceDate:   date(2024, 2, 20),
		Client:        "Entreprise A",
		InvoiceObject: "Abonnement",
		AccountCode:   "70611",
		GLDate:        date(2024, 2, 21),
		BillingPeriod: "Février 2024",
		RevenueAmount: decimal.NewFromInt(1000),
	}
}

func completeCollection(invoice string) *models.CollectionRecord {
	return &models.CollectionRecord{
		Organization:     "Alger Centre",
		InvoiceNumber:    invoice,
		InvoiceType:      "Standard",
		InvoiceDate:      date(2024, 2, 20),
		Client:           "Entreprise A",
		TotalAmount:      decimal.NewNullDecimal(decimal.NewFromInt(1190)),
		CollectionAmount: decimal.NewNullDecimal(decimal.NewFromInt(800)),
	}
}

func TestDetectSales(t *testing.T) {
	detector := newTestDetector(t)

	t.Run("clean batch has no findings", func(t *testing.T) {
		findings := detector.DetectSales([]*models.SalesRecord{completeSales()})
		if len(findings) != 0 {
			t.Errorf("got %d findings, want 0: %v", len(findings), findings)
		}
	})

	t.Run("empty fields batch into one finding per record", func(t *testing.T) {
		rec := completeSales()
		rec.Client = ""
		rec.GLDate = nil

		findings := detector.DetectSales([]*models.SalesRecord{completeSales(), rec})
		if len(findings) != 1 {
			t.Fatalf("got %d findings, want 1", len(findings))
		}
		f := findings[0]
		if f.Type != models.AnomalyEmptyFields || f.Source != models.SourceRule {
			t.Errorf("finding = %+v, want rule empty_fields", f)
		}
		if f.RecordIndex != 1 {
			t.Errorf("record index = %d, want 1", f.RecordIndex)
		}
		if len(f.Fields) != 2 {
			t.Errorf("fields = %v, want [client gl_date]", f.Fields)
		}
	})

	t.Run("negative revenue", func(t *testing.T) {
		rec := completeSales()
		rec.RevenueAmount = decimal.NewFromInt(-250)

		findings := detector.DetectSales([]*models.SalesRecord{rec})
		if len(findings) != 1 || findings[0].Type != models.AnomalyNegativeAmounts {
			t.Fatalf("findings = %v, want one negative_amounts", findings)
		}
		if findings[0].Data["revenue_amount"] != "-250" {
			t.Errorf("data = %v, want revenue_amount -250", findings[0].Data)
		}
	})
}

func TestDetectCollections(t *testing.T) {
	detector := newTestDetector(t)

	t.Run("negative monetary fields reported together", func(t *testing.T) {
		rec := completeCollection("INV-1")
		rec.TotalAmount = decimal.NewNullDecimal(decimal.NewFromInt(-100))
		rec.CollectionAmount = decimal.NewNullDecimal(decimal.NewFromInt(-50))

		findings := detector.DetectCollections([]*models.CollectionRecord{rec})
		if len(findings) != 1 {
			t.Fatalf("got %d findings, want 1", len(findings))
		}
		if len(findings[0].Fields) != 2 {
			t.Errorf("fields = %v, want total_amount and collection_amount", findings[0].Fields)
		}
	})

	t.Run("duplicates skip the negative check", func(t *testing.T) {
		first := completeCollection("INV-1")
		second := completeCollection("INV-1")
		second.CollectionAmount = decimal.NewNullDecimal(decimal.NewFromInt(-50))

		detector.MarkDuplicates([]*models.CollectionRecord{first, second})

		findings := detector.DetectCollections([]*models.CollectionRecord{first, second})
		for _, f := range findings {
			if f.Type == models.AnomalyNegativeAmounts {
				t.Errorf("negative_amounts reported on a nulled duplicate: %+v", f)
			}
		}
	})

	t.Run("missing critical fields", func(t *testing.T) {
		rec := completeCollection("INV-1")
		rec.Client = ""

		findings := detector.DetectCollections([]*models.CollectionRecord{rec})
		if len(findings) != 1 || findings[0].Type != models.AnomalyEmptyFields {
			t.Fatalf("findings = %v, want one empty_fields", findings)
		}
	})
}

func TestMarkDuplicates(t *testing.T) {
	detector := newTestDetector(t)

	first := completeCollection("INV-1")
	other := completeCollection("INV-2")
	repeat := completeCollection("INV-1")

	findings := detector.MarkDuplicates([]*models.CollectionRecord{first, other, repeat})

	if len(findings) != 1 {
		t.Fatalf("got %d findings, want 1", len(findings))
	}
	f := findings[0]
	if f.Type != models.AnomalyDuplicateRecord {
		t.Errorf("type = %s, want duplicate_record", f.Type)
	}
	if f.RecordIndex != 2 || f.RelatedIndex != 0 {
		t.Errorf("indexes = (%d, %d), want (2, 0)", f.RecordIndex, f.RelatedIndex)
	}

	// The first occurrence keeps its totals.
	if !first.CollectionAmount.Valid {
		t.Error("first occurrence must keep its monetary fields")
	}
	if first.Duplicate {
		t.Error("first occurrence must not be marked duplicate")
	}

	// The repeat is marked and nulled so totals never double-count.
	if !repeat.Duplicate || repeat.DuplicateOf != 0 {
		t.Errorf("repeat marking = (%v, %d), want (true, 0)", repeat.Duplicate, repeat.DuplicateOf)
	}
	for name, field := range repeat.MonetaryFields() {
		if field.Valid {
			t.Errorf("repeat field %s still valid", name)
		}
	}

	if other.Duplicate {
		t.Error("unrelated record must be untouched")
	}
}

func TestMarkDuplicatesThreeOccurrences(t *testing.T) {
	detector := newTestDetector(t)

	records := []*models.CollectionRecord{
		completeCollection("INV-1"),
		completeCollection("INV-1"),
		completeCollection("INV-1"),
	}

	findings := detector.MarkDuplicates(records)

	if len(findings) != 2 {
		t.Fatalf("got %d findings, want 2", len(findings))
	}
	// Every repeat points at the first occurrence, not the previous one.
	for _, f := range findings {
		if f.RelatedIndex != 0 {
			t.Errorf("related index = %d, want 0", f.RelatedIndex)
		}
	}
}

func TestFilterRecordsParcCorporate(t *testing.T) {
	detector := newTestDetector(t)

	records := []models.FieldRecord{
		{"customer_l3_code": "10", "offer_name": "Pro Fibre", "subscriber_status": "Active"},
		{"customer_l3_code": "5", "offer_name": "Pro Fibre", "subscriber_status": "Active"},
		{"customer_l3_code": "10", "offer_name": "Pack Moohtarif Plus", "subscriber_status": "Active"},
		{"customer_l3_code": "10", "offer_name": "Pro Fibre", "subscriber_status": "Predeactivated"},
	}

	result, err := detector.FilterRecords(models.KindParcCorporate, records)
	if err != nil {
		t.Fatalf("FilterRecords() error = %v", err)
	}

	if len(result.Clean) != 1 {
		t.Errorf("clean = %d, want 1", len(result.Clean))
	}
	if len(result.Excluded) != 3 {
		t.Errorf("excluded = %d, want 3", len(result.Excluded))
	}
	if len(result.Anomalies) != 3 {
		t.Errorf("anomalies = %d, want 3", len(result.Anomalies))
	}
	for _, a := range result.Anomalies {
		if a.Type != models.AnomalyExcludedRecord {
			t.Errorf("type = %s, want excluded_record", a.Type)
		}
	}
}

func TestFilterRecordsCreances(t *testing.T) {
	detector := newTestDetector(t)

	valid := models.FieldRecord{
		"product":       "LTE",
		"customer_lev1": "Corporate",
		"customer_lev2": "Entreprise",
		"customer_lev3": "Ligne d'exploitation AP",
	}
	invalid := models.FieldRecord{
		"product":       "Mobile",
		"customer_lev1": "Residential",
		"customer_lev2": "Client professionnelConventionné",
		"customer_lev3": "Autre",
	}

	result, err := detector.FilterRecords(models.KindCreancesNGBSS, []models.FieldRecord{valid, invalid})
	if err != nil {
		t.Fatalf("FilterRecords() error = %v", err)
	}

	if len(result.Clean) != 1 {
		t.Errorf("clean = %d, want 1", len(result.Clean))
	}
	if len(result.Anomalies) != 1 {
		t.Fatalf("anomalies = %d, want 1", len(result.Anomalies))
	}

	// All four clauses fail; the single finding carries every reason.
	description := result.Anomalies[0].Description
	for _, fragment := range []string{"product", "level 1", "level 2", "level 3"} {
		if !strings.Contains(description, fragment) {
			t.Errorf("description %q missing clause %q", description, fragment)
		}
	}
}

func TestFilterRecordsPeriodique(t *testing.T) {
	detector := newTestDetector(t)

	records := []models.FieldRecord{
		{"do": "Siège", "product": "Anything At All"},
		{"do": "Alger", "product": "LTE"},
		{"do": "Alger", "product": "Mobile"},
	}

	result, err := detector.FilterRecords(models.KindCAPeriodique, records)
	if err != nil {
		t.Fatalf("FilterRecords() error = %v", err)
	}

	if len(result.Clean) != 2 {
		t.Errorf("clean = %d, want 2 (Siège keeps every product)", len(result.Clean))
	}
	if len(result.Excluded) != 1 {
		t.Errorf("excluded = %d, want 1", len(result.Excluded))
	}
}

func TestFilterRecordsCorporateSiege(t *testing.T) {
	detector := newTestDetector(t)

	records := []models.FieldRecord{
		{"do": "Siège", "department": "Direction Commerciale Corporate"},
		{"do": "Siège", "department": "Autre Direction"},
		{"do": "Alger", "department": "Direction Commerciale Corporate"},
	}

	for _, kind := range []models.RecordKind{models.KindCADNT, models.KindCARFD, models.KindCACNT} {
		t.Run(kind.String(), func(t *testing.T) {
			result, err := detector.FilterRecords(kind, records)
			if err != nil {
				t.Fatalf("FilterRecords() error = %v", err)
			}
			if len(result.Clean) != 1 {
				t.Errorf("clean = %d, want 1", len(result.Clean))
			}
		})
	}
}

func TestFilterRecordsUnknownKind(t *testing.T) {
	detector := newTestDetector(t)

	_, err := detector.FilterRecords(models.KindSalesJournal, nil)
	if err == nil {
		t.Fatal("expected error for a non-filterable kind")
	}
	if !errors.IsCode(err, errors.CodeUnknownRecordKind) {
		t.Errorf("error = %v, want unknown_record_kind", err)
	}
}

func TestNewDetectorInvalidConfig(t *testing.T) {
	_, err := NewDetector(&Config{})
	if err == nil {
		t.Fatal("expected error for empty rule tables")
	}
	if !errors.IsCode(err, errors.CodeInvalidConfig) {
		t.Errorf("error = %v, want invalid_config", err)
	}
}
