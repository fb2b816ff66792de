package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/rehza97/billing-reconciler/pkg/errors"
	"github.com/rehza97/billing-reconciler/pkg/logger"
)

// CLIErrorHandler provides user-friendly error handling for the CLI.
type CLIErrorHandler struct {
	verbose bool
	logger  logger.Logger
}

// NewCLIErrorHandler creates a new CLI error handler.
func NewCLIErrorHandler(verbose bool) *CLIErrorHandler {
	return &CLIErrorHandler{
		verbose: verbose,
		logger:  logger.WithComponent("cli"),
	}
}

// HandleError processes an error and returns the appropriate exit code.
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	if recErr, ok := errors.AsReconcilerError(err); ok {
		return h.handleReconcilerError(recErr)
	}

	return h.handleGenericError(err)
}

// handleReconcilerError handles structured application errors.
func (h *CLIErrorHandler) handleReconcilerError(err *errors.ReconcilerError) int {
	fmt.Fprintf(os.Stderr, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		var parts []string
		for key, value := range err.Context {
			parts = append(parts, fmt.Sprintf("%s=%v", key, value))
		}
		fmt.Fprintf(os.Stderr, "Details: %s\n", strings.Join(parts, ", "))
	}

	if err.Suggestion != "" {
		fmt.Fprintf(os.Stderr, "Suggestion: %s\n", err.Suggestion)
	}

	if help := categoryHelp(err.Category); help != "" {
		fmt.Fprintf(os.Stderr, "\n%s\n", help)
	}

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(os.Stderr, "\nUnderlying error: %v\n", err.Cause)
	}

	h.logger.WithFields(logger.Fields{
		"category": err.Category,
		"code":     err.Code,
	}).Debug("Command failed with structured error")

	return err.GetExitCode()
}

// handleGenericError handles errors that are not structured application
// errors.
func (h *CLIErrorHandler) handleGenericError(err error) int {
	message := err.Error()
	fmt.Fprintf(os.Stderr, "Error: %s\n", message)

	switch {
	case strings.Contains(message, "no such file"):
		fmt.Fprintln(os.Stderr, "Suggestion: check that the file path is correct and the file exists")
	case strings.Contains(message, "permission denied"):
		fmt.Fprintln(os.Stderr, "Suggestion: check the file permissions or run with appropriate privileges")
	case strings.Contains(message, "required flag"):
		fmt.Fprintln(os.Stderr, "Suggestion: run with --help to see the required flags")
	}

	return 1
}

// categoryHelp returns a short orientation message per error category.
func categoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryFile:
		return "File errors usually mean a wrong path, missing file or unreadable export.\nBoth .csv and .xlsx exports are supported."
	case errors.CategoryParse:
		return "Parse errors mean the export's structure could not be read.\nRe-export the file from the source system, or check for manual edits."
	case errors.CategoryValidation:
		return "Validation errors mean a required value is missing or malformed."
	case errors.CategoryConfiguration:
		return "Configuration errors mean a flag, environment variable or config\nfile value is invalid. Run with --help to see accepted values."
	case errors.CategoryReconciliation:
		return "Reconciliation errors mean the run could not produce a result.\nAn empty-dataset error means neither input contained any data rows."
	default:
		return ""
	}
}
