// Package reporter renders reconciliation runs for people and programs.
//
// Supported output formats:
//   - Console: human-readable summary for terminal display
//   - JSON: structured output for programmatic consumption
//   - CSV: per-organization breakdown for spreadsheet applications
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/rehza97/billing-reconciler/internal/kpi"
	"github.com/rehza97/billing-reconciler/internal/models"
	"github.com/rehza97/billing-reconciler/internal/reconciler"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// OutputFormat represents the supported report output formats.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported.
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// ReportConfig holds configuration options for report generation.
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	IncludeMatchedPairs bool `json:"include_matched_pairs"`
	IncludeMissingKeys  bool `json:"include_missing_keys"`
	IncludeAnomalies    bool `json:"include_anomalies"`

	// MaxAnomalies caps the anomaly digest on console output; zero means
	// no cap.
	MaxAnomalies int `json:"max_anomalies"`
}

// DefaultReportConfig returns a default report configuration.
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:              FormatConsole,
		IncludeMatchedPairs: false,
		IncludeMissingKeys:  true,
		IncludeAnomalies:    true,
		MaxAnomalies:        20,
	}
}

// Validate validates the report configuration.
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	if c.MaxAnomalies < 0 {
		return fmt.Errorf("max anomalies cannot be negative, got %d", c.MaxAnomalies)
	}
	return nil
}

// Report bundles everything one run produced: the reconciliation result,
// the merged anomaly stream and the optional extended KPIs. The two anomaly
// sources stay distinguishable through each finding's Source field.
type Report struct {
	Result    *reconciler.Result   `json:"result"`
	Anomalies []models.Anomaly     `json:"anomalies,omitempty"`
	Extended  *kpi.ExtendedSummary `json:"extended,omitempty"`
}

// ReportGenerator renders reports in the configured format.
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a report generator.
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	return &ReportGenerator{config: config}, nil
}

// Write renders the report to the writer in the configured format.
func (g *ReportGenerator) Write(w io.Writer, report *Report) error {
	switch g.config.Format {
	case FormatJSON:
		return g.writeJSON(w, report)
	case FormatCSV:
		return g.writeCSV(w, report)
	default:
		return g.writeConsole(w, report)
	}
}

func (g *ReportGenerator) writeJSON(w io.Writer, report *Report) error {
	out := *report
	if !g.config.IncludeMatchedPairs && out.Result != nil {
		trimmed := *out.Result
		trimmed.Matched = nil
		out.Result = &trimmed
	}
	if !g.config.IncludeAnomalies {
		out.Anomalies = nil
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(&out)
}

func (g *ReportGenerator) writeConsole(w io.Writer, report *Report) error {
	result := report.Result
	if result == nil || result.Summary == nil {
		_, err := fmt.Fprintln(w, "no reconciliation data")
		return err
	}
	summary := result.Summary

	fmt.Fprintf(w, "Reconciliation %s (%s)\n", result.RunID, result.ProcessedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintln(w, strings.Repeat("=", 64))
	fmt.Fprintf(w, "Invoices:                %d\n", summary.InvoiceCount)
	fmt.Fprintf(w, "Matched:                 %d\n", summary.MatchedCount)
	fmt.Fprintf(w, "Missing in collections:  %d\n", summary.MissingInCollectionsCount)
	fmt.Fprintf(w, "Missing in sales:        %d\n", summary.MissingInSalesCount)
	fmt.Fprintf(w, "Total revenue:           %s\n", summary.TotalRevenue.StringFixed(2))
	fmt.Fprintf(w, "Total collection:        %s\n", summary.TotalCollection.StringFixed(2))
	fmt.Fprintf(w, "Collection rate:         %s%%\n", summary.CollectionRate.Mul(hundred).StringFixed(2))

	if report.Extended != nil {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Revenue evolution:       %s%%\n", report.Extended.RevenueEvolutionRate.StringFixed(2))
		fmt.Fprintf(w, "Collection evolution:    %s%%\n", report.Extended.CollectionEvolutionRate.StringFixed(2))
		fmt.Fprintf(w, "Revenue achievement:     %s%%\n", report.Extended.RevenueAchievementRate.StringFixed(2))
		fmt.Fprintf(w, "Collection achievement:  %s%%\n", report.Extended.CollectionAchievementRate.StringFixed(2))
	}

	if len(summary.Organizations) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Per organization:")
		for _, org := range sortedOrganizations(summary) {
			fmt.Fprintf(w, "  %-28s revenue %14s  collection %14s  rate %6s%%  invoices %d\n",
				org.Organization,
				org.TotalRevenue.StringFixed(2),
				org.TotalCollection.StringFixed(2),
				org.CollectionRate.Mul(hundred).StringFixed(2),
				org.InvoiceCount)
		}
	}

	if g.config.IncludeMissingKeys {
		writeKeyList(w, "Missing in collections", result.MissingInCollections)
		writeKeyList(w, "Missing in sales", result.MissingInSales)
	}

	if g.config.IncludeAnomalies && len(report.Anomalies) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Anomalies (%d):\n", len(report.Anomalies))
		limit := len(report.Anomalies)
		if g.config.MaxAnomalies > 0 && limit > g.config.MaxAnomalies {
			limit = g.config.MaxAnomalies
		}
		for _, anomaly := range report.Anomalies[:limit] {
			fmt.Fprintf(w, "  [%s/%s] %s\n", anomaly.Source, anomaly.Type, anomaly.String())
		}
		if limit < len(report.Anomalies) {
			fmt.Fprintf(w, "  ... and %d more\n", len(report.Anomalies)-limit)
		}
	}

	return nil
}

func (g *ReportGenerator) writeCSV(w io.Writer, report *Report) error {
	if report.Result == nil || report.Result.Summary == nil {
		return fmt.Errorf("no reconciliation data to render")
	}

	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := []string{
		"organization", "total_revenue", "total_collection", "collection_rate",
		"invoice_count", "outside_fiscal_year", "outside_normal_operations",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, org := range sortedOrganizations(report.Result.Summary) {
		row := []string{
			org.Organization,
			org.TotalRevenue.StringFixed(2),
			org.TotalCollection.StringFixed(2),
			org.CollectionRate.StringFixed(4),
			fmt.Sprintf("%d", org.InvoiceCount),
			fmt.Sprintf("%d", org.OutsideFiscalYearCount),
			fmt.Sprintf("%d", org.OutsideNormalOperationsCount),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeKeyList(w io.Writer, title string, keys []string) {
	if len(keys) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s (%d):\n", title, len(keys))
	for _, key := range keys {
		fmt.Fprintf(w, "  %s\n", key)
	}
}

func sortedOrganizations(summary *models.KPISummary) []*models.OrganizationKPI {
	orgs := make([]*models.OrganizationKPI, 0, len(summary.Organizations))
	for _, org := range summary.Organizations {
		orgs = append(orgs, org)
	}
	sort.Slice(orgs, func(i, j int) bool {
		return orgs[i].Organization < orgs[j].Organization
	})
	return orgs
}
