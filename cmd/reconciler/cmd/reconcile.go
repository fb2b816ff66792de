package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rehza97/billing-reconciler/cmd/reconciler/config"
	"github.com/rehza97/billing-reconciler/internal/anomaly"
	"github.com/rehza97/billing-reconciler/internal/classifier"
	"github.com/rehza97/billing-reconciler/internal/kpi"
	"github.com/rehza97/billing-reconciler/internal/loader"
	"github.com/rehza97/billing-reconciler/internal/models"
	"github.com/rehza97/billing-reconciler/internal/normalizer"
	"github.com/rehza97/billing-reconciler/internal/reconciler"
	"github.com/rehza97/billing-reconciler/internal/reporter"
	"github.com/rehza97/billing-reconciler/pkg/errors"
	"github.com/rehza97/billing-reconciler/pkg/logger"
)

var (
	salesFile       string
	collectionsFile string
	referenceYear   int
	objectivesFile  string
	previousFile    string
	outputFormat    string
	outputFile      string
)

// reconcileCmd represents the reconcile command.
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile a sales journal against a collections ledger",
	Long: `Reconcile matches invoices from the sales journal against payment rows
from the collections ledger and reports matched pairs, one-sided keys,
anomalies and per-organization KPIs.

Examples:
  reconciler reconcile --sales-file ventes.csv --collections-file etat.csv
  reconciler reconcile -s ventes.xlsx -c etat.xlsx --reference-year 2024
  reconciler reconcile -s ventes.csv -c etat.csv --objectives-file objectives.json --output-format json`,
	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().StringVarP(&salesFile, "sales-file", "s", "", "path to the sales journal export (CSV or XLSX) (required)")
	reconcileCmd.Flags().StringVarP(&collectionsFile, "collections-file", "c", "", "path to the collections ledger export (CSV or XLSX) (required)")
	reconcileCmd.Flags().IntVarP(&referenceYear, "reference-year", "y", 0, "reference year for classification (default: current year)")
	reconcileCmd.Flags().StringVar(&objectivesFile, "objectives-file", "", "path to a JSON objectives file for achievement rates")
	reconcileCmd.Flags().StringVar(&previousFile, "previous-file", "", "path to a prior-period JSON summary for evolution rates")
	reconcileCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "", "output format: console, json, csv")
	reconcileCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "write the report to a file instead of stdout")

	reconcileCmd.MarkFlagRequired("sales-file")
	reconcileCmd.MarkFlagRequired("collections-file")

	viper.BindPFlag("reconcile.sales_file", reconcileCmd.Flags().Lookup("sales-file"))
	viper.BindPFlag("reconcile.collections_file", reconcileCmd.Flags().Lookup("collections-file"))
	viper.BindPFlag("classification.reference_year", reconcileCmd.Flags().Lookup("reference-year"))
	viper.BindPFlag("reconcile.objectives_file", reconcileCmd.Flags().Lookup("objectives-file"))
	viper.BindPFlag("reconcile.previous_file", reconcileCmd.Flags().Lookup("previous-file"))
	viper.BindPFlag("output.format", reconcileCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("output.file", reconcileCmd.Flags().Lookup("output-file"))
}

// validateReconcileFlags validates the reconcile command flags.
func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	sales := viper.GetString("reconcile.sales_file")
	collections := viper.GetString("reconcile.collections_file")

	if sales == "" {
		return errors.ValidationError(errors.CodeMissingField, "sales-file", "", nil).
			WithSuggestion("pass --sales-file with the path to the sales journal export")
	}
	if collections == "" {
		return errors.ValidationError(errors.CodeMissingField, "collections-file", "", nil).
			WithSuggestion("pass --collections-file with the path to the collections ledger export")
	}

	if year := viper.GetInt("classification.reference_year"); year < 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "reference-year", year, nil).
			WithSuggestion("use a four-digit year, e.g. --reference-year 2024")
	}

	return nil
}

// runReconcile executes the reconciliation pipeline.
func runReconcile(cmd *cobra.Command, args []string) error {
	handler := NewCLIErrorHandler(verbose)

	cfg, err := config.LoadConfig()
	if err != nil {
		os.Exit(handler.HandleError(err))
	}

	logCfg := cfg.LoggerConfig()
	if verbose {
		logCfg.Level = logger.DebugLevel
	}
	if log, err := logger.NewLogger(logCfg); err == nil {
		logger.SetGlobalLogger(log)
	}

	log := logger.WithComponent("cli")

	result, report, err := executeReconciliation(cfg, log)
	if err != nil {
		os.Exit(handler.HandleError(err))
	}

	if err := writeReport(cfg, report); err != nil {
		os.Exit(handler.HandleError(err))
	}

	log.WithFields(logger.Fields{
		"run_id":  result.RunID,
		"matched": len(result.Matched),
	}).Debug("Reconcile command completed")

	return nil
}

func executeReconciliation(cfg *config.Config, log logger.Logger) (*reconciler.Result, *reporter.Report, error) {
	salesPath := viper.GetString("reconcile.sales_file")
	collectionsPath := viper.GetString("reconcile.collections_file")

	salesRows, err := loader.LoadRows(salesPath)
	if err != nil {
		return nil, nil, err
	}
	collectionRows, err := loader.LoadRows(collectionsPath)
	if err != nil {
		return nil, nil, err
	}

	sales := normalizer.NormalizeSalesBatch(salesRows)
	collections := normalizer.NormalizeCollectionBatch(collectionRows)

	log.WithFields(logger.Fields{
		"sales":       len(sales),
		"collections": len(collections),
	}).Info("Loaded and normalized input files")

	detector, err := anomaly.NewDetector(cfg.AnomalyConfig())
	if err != nil {
		return nil, nil, err
	}

	anomalies := detector.MarkDuplicates(collections)
	anomalies = append(anomalies, detector.DetectSales(sales)...)
	anomalies = append(anomalies, detector.DetectCollections(collections)...)

	refYear := effectiveReferenceYear(cfg)
	engine := classifier.NewEngine(cfg.ClassifierConfig())
	anomalies = append(anomalies, engine.FindingsForBatch(sales, refYear)...)

	partition := engine.Partition(sales, refYear)
	log.WithFields(logger.Fields{
		"reference_year":    refYear,
		"current":           len(partition.Current),
		"previous_exercise": len(partition.PreviousExercise),
		"advance_billing":   len(partition.AdvanceBilling),
	}).Info("Classified sales records")

	recEngine, err := reconciler.NewEngine(cfg.ReconcilerConfig())
	if err != nil {
		return nil, nil, err
	}

	result, err := recEngine.Reconcile(sales, collections)
	if err != nil {
		return nil, nil, err
	}

	extended, err := extendSummary(cfg, result.Summary)
	if err != nil {
		return nil, nil, err
	}

	return result, &reporter.Report{
		Result:    result,
		Anomalies: anomalies,
		Extended:  extended,
	}, nil
}

// effectiveReferenceYear resolves the classification anchor: explicit
// reference year first, then the reconciliation current year, then the wall
// clock.
func effectiveReferenceYear(cfg *config.Config) int {
	if year := cfg.Classification.ReferenceYear; year > 0 {
		return year
	}
	if year := cfg.Reconciliation.CurrentYear; year > 0 {
		return year
	}
	return time.Now().Year()
}

// extendSummary loads the optional prior-period summary and objectives and
// aggregates the extended KPIs. Without either input the extended section is
// omitted from the report.
func extendSummary(cfg *config.Config, summary *models.KPISummary) (*kpi.ExtendedSummary, error) {
	previousPath := viper.GetString("reconcile.previous_file")
	objectivesPath := viper.GetString("reconcile.objectives_file")

	if previousPath == "" && objectivesPath == "" {
		return nil, nil
	}

	var previous *models.KPISummary
	if previousPath != "" {
		loaded, err := config.LoadPreviousSummary(previousPath)
		if err != nil {
			return nil, err
		}
		previous = loaded
	}

	var objectives kpi.Objectives
	if objectivesPath != "" {
		loaded, err := config.LoadObjectives(objectivesPath)
		if err != nil {
			return nil, err
		}
		objectives = loaded
	}

	return kpi.Aggregate(summary, previous, objectives), nil
}

func writeReport(cfg *config.Config, report *reporter.Report) error {
	generator, err := reporter.NewReportGenerator(cfg.ReportConfig())
	if err != nil {
		return err
	}

	out := os.Stdout
	if path := viper.GetString("output.file"); path != "" {
		file, err := os.Create(path)
		if err != nil {
			return errors.FileError(errors.CodeFilePermission, path, err)
		}
		defer file.Close()
		out = file
	}

	if err := generator.Write(out, report); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return nil
}
