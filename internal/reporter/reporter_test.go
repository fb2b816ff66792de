package reporter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rehza97/billing-reconciler/internal/models"
	"github.com/rehza97/billing-reconciler/internal/reconciler"

	"github.com/shopspring/decimal"
)

func sampleReport() *Report {
	summary := &models.KPISummary{
		TotalRevenue:    decimal.NewFromInt(3500),
		TotalCollection: decimal.NewFromInt(1900),
		CollectionRate:  decimal.RequireFromString("0.542857"),
		InvoiceCount:    3,
		MatchedCount:    2,
		Organizations: map[string]*models.OrganizationKPI{
			"Oran": {
				Organization:    "Oran",
				TotalRevenue:    decimal.NewFromInt(2000),
				TotalCollection: decimal.NewFromInt(1000),
				CollectionRate:  decimal.RequireFromString("0.5"),
				InvoiceCount:    1,
			},
			"Alger Centre": {
				Organization:    "Alger Centre",
				TotalRevenue:    decimal.NewFromInt(1500),
				TotalCollection: decimal.NewFromInt(900),
				CollectionRate:  decimal.RequireFromString("0.6"),
				InvoiceCount:    2,
			},
		},
	}

	return &Report{
		Result: &reconciler.Result{
			RunID:       "run-1",
			ProcessedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
			Matched: []*models.MatchedPair{
				{MatchKey: "oran_inv-3_standard", CollectionRate: decimal.RequireFromString("0.5")},
			},
			MissingInCollections: []string{"alger centre_inv-2_standard"},
			MissingInSales:       []string{},
			Summary:              summary,
		},
		Anomalies: []models.Anomaly{
			{
				Type:        models.AnomalyDuplicateRecord,
				Source:      models.SourceRule,
				Description: "invoice INV-1/Standard repeats row 0",
				RecordIndex: 2,
			},
		},
	}
}

func TestReportConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  ReportConfig
		wantErr bool
	}{
		{name: "default config", config: *DefaultReportConfig(), wantErr: false},
		{name: "invalid format", config: ReportConfig{Format: "xml"}, wantErr: true},
		{name: "negative anomaly cap", config: ReportConfig{Format: FormatJSON, MaxAnomalies: -1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWriteConsole(t *testing.T) {
	generator, err := NewReportGenerator(DefaultReportConfig())
	if err != nil {
		t.Fatalf("NewReportGenerator() error = %v", err)
	}

	var buf bytes.Buffer
	if err := generator.Write(&buf, sampleReport()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	out := buf.String()

	for _, fragment := range []string{
		"run-1",
		"Invoices:                3",
		"Matched:                 2",
		"54.29%",
		"Alger Centre",
		"alger centre_inv-2_standard",
		"duplicate_record",
	} {
		if !strings.Contains(out, fragment) {
			t.Errorf("console output missing %q:\n%s", fragment, out)
		}
	}
}

func TestWriteConsoleAnomalyCap(t *testing.T) {
	config := DefaultReportConfig()
	config.MaxAnomalies = 1

	generator, err := NewReportGenerator(config)
	if err != nil {
		t.Fatalf("NewReportGenerator() error = %v", err)
	}

	report := sampleReport()
	report.Anomalies = append(report.Anomalies, models.Anomaly{
		Type: models.AnomalyNegativeAmounts, Source: models.SourceRule, RecordIndex: 5,
	})

	var buf bytes.Buffer
	if err := generator.Write(&buf, report); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if !strings.Contains(buf.String(), "and 1 more") {
		t.Errorf("digest cap not applied:\n%s", buf.String())
	}
}

func TestWriteJSON(t *testing.T) {
	config := DefaultReportConfig()
	config.Format = FormatJSON
	config.IncludeMatchedPairs = true

	generator, err := NewReportGenerator(config)
	if err != nil {
		t.Fatalf("NewReportGenerator() error = %v", err)
	}

	var buf bytes.Buffer
	if err := generator.Write(&buf, sampleReport()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	var decoded Report
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Result.RunID != "run-1" {
		t.Errorf("run ID = %q", decoded.Result.RunID)
	}
	if len(decoded.Result.Matched) != 1 {
		t.Errorf("matched pairs = %d, want 1", len(decoded.Result.Matched))
	}
}

func TestWriteJSONTrimsPerConfig(t *testing.T) {
	config := DefaultReportConfig()
	config.Format = FormatJSON
	config.IncludeMatchedPairs = false
	config.IncludeAnomalies = false

	generator, err := NewReportGenerator(config)
	if err != nil {
		t.Fatalf("NewReportGenerator() error = %v", err)
	}

	report := sampleReport()
	var buf bytes.Buffer
	if err := generator.Write(&buf, report); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	var decoded Report
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(decoded.Result.Matched) != 0 {
		t.Error("matched pairs should be trimmed")
	}
	if len(decoded.Anomalies) != 0 {
		t.Error("anomalies should be trimmed")
	}

	// Trimming must not mutate the caller's report.
	if len(report.Result.Matched) != 1 || len(report.Anomalies) != 1 {
		t.Error("caller's report was mutated by trimming")
	}
}

func TestWriteCSV(t *testing.T) {
	config := DefaultReportConfig()
	config.Format = FormatCSV

	generator, err := NewReportGenerator(config)
	if err != nil {
		t.Fatalf("NewReportGenerator() error = %v", err)
	}

	var buf bytes.Buffer
	if err := generator.Write(&buf, sampleReport()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}

	// Header plus one row per organization, sorted by name.
	if len(records) != 3 {
		t.Fatalf("got %d CSV records, want 3", len(records))
	}
	if records[0][0] != "organization" {
		t.Errorf("header = %v", records[0])
	}
	if records[1][0] != "Alger Centre" || records[2][0] != "Oran" {
		t.Errorf("rows not sorted by organization: %v / %v", records[1], records[2])
	}
}

func TestNewReportGeneratorInvalidConfig(t *testing.T) {
	if _, err := NewReportGenerator(&ReportConfig{Format: "xml"}); err == nil {
		t.Error("expected error for invalid format")
	}
}
