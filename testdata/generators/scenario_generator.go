package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
)

// ScenarioGenerator creates paired sales journal / collections ledger CSV
// files exercising specific reconciliation scenarios.
type ScenarioGenerator struct {
	Seed      int64
	OutputDir string
	rng       *rand.Rand
}

var organizations = []string{
	"DOT_Alger_Centre", "DOT_Oran", "DOT_Constantine", "DOT_Annaba", "AT Siège",
}

var salesHeader = []string{
	"Organisation", "Origine", "N Fact", "Typ Fact", "Date Fact", "Nom Client",
	"Devise", "Obj Fact", "Cpt Comptable", "Date GL", "Periode Facturation",
	"Chiffre Aff Exe DZD",
}

var collectionsHeader = []string{
	"Organisation", "N Fact", "Typ Fact", "Date Fact", "Nom Client",
	"Montant HT", "Montant Taxe", "Montant TTC", "Encaissement", "Date Rglt",
}

func main() {
	var (
		outputDir = flag.String("output-dir", "generated", "Output directory for scenario files")
		seed      = flag.Int64("seed", time.Now().UnixNano(), "Random seed for reproducible generation")
		scenario  = flag.String("scenario", "all", "Scenario to generate: all, matched, naming-drift, duplicates, one-sided, anomalies")
	)
	flag.Parse()

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	generator := &ScenarioGenerator{
		Seed:      *seed,
		OutputDir: *outputDir,
		rng:       rand.New(rand.NewSource(*seed)),
	}

	switch *scenario {
	case "matched":
		generator.GenerateMatchedScenario()
	case "naming-drift":
		generator.GenerateNamingDriftScenario()
	case "duplicates":
		generator.GenerateDuplicateScenario()
	case "one-sided":
		generator.GenerateOneSidedScenario()
	case "anomalies":
		generator.GenerateAnomalyScenario()
	case "all":
		generator.GenerateAllScenarios()
	default:
		log.Fatalf("Unknown scenario: %s", *scenario)
	}

	fmt.Printf("Generated scenarios in %s\n", *outputDir)
	fmt.Printf("Seed used: %d\n", *seed)
}

// GenerateAllScenarios generates all predefined scenarios.
func (sg *ScenarioGenerator) GenerateAllScenarios() {
	fmt.Println("Generating all scenarios...")
	sg.GenerateMatchedScenario()
	sg.GenerateNamingDriftScenario()
	sg.GenerateDuplicateScenario()
	sg.GenerateOneSidedScenario()
	sg.GenerateAnomalyScenario()
}

// GenerateMatchedScenario produces a pair of files where every invoice has a
// collection counterpart with a partial payment.
func (sg *ScenarioGenerator) GenerateMatchedScenario() {
	var sales, collections [][]string

	for i := 0; i < 50; i++ {
		org := organizations[sg.rng.Intn(len(organizations)-1)]
		invoice := fmt.Sprintf("INV-2024-%04d", i+1)
		revenue := sg.randomAmount(10000, 500000)
		collected := revenue.Mul(decimal.NewFromFloat(0.5 + sg.rng.Float64()*0.5)).Round(2)

		sales = append(sales, sg.salesRow(org, invoice, "2024", revenue))
		collections = append(collections, sg.collectionRow(org, invoice, revenue, collected))
	}

	sg.writeCSV("matched_sales.csv", salesHeader, sales)
	sg.writeCSV("matched_collections.csv", collectionsHeader, collections)
}

// GenerateNamingDriftScenario produces pairs whose organization spellings
// differ between the two systems but clean to the same name.
func (sg *ScenarioGenerator) GenerateNamingDriftScenario() {
	var sales, collections [][]string

	drifts := [][2]string{
		{"DOT_Alger_Centre", "Alger Centre"},
		{"DOT_Oran", "Oran"},
		{"DOT_Constantine", "Constantine"},
	}

	for i, pair := range drifts {
		invoice := fmt.Sprintf("INV-2024-D%03d", i+1)
		revenue := sg.randomAmount(50000, 200000)
		collected := revenue.Mul(decimal.NewFromFloat(0.8)).Round(2)

		sales = append(sales, sg.salesRow(pair[0], invoice, "2024", revenue))
		collections = append(collections, sg.collectionRow(pair[1], invoice, revenue, collected))
	}

	sg.writeCSV("drift_sales.csv", salesHeader, sales)
	sg.writeCSV("drift_collections.csv", collectionsHeader, collections)
}

// GenerateDuplicateScenario produces a collections ledger where some
// invoices appear twice, as partial-payment repeats.
func (sg *ScenarioGenerator) GenerateDuplicateScenario() {
	var sales, collections [][]string

	for i := 0; i < 20; i++ {
		org := organizations[sg.rng.Intn(len(organizations)-1)]
		invoice := fmt.Sprintf("INV-2024-DUP%03d", i+1)
		revenue := sg.randomAmount(20000, 100000)

		sales = append(sales, sg.salesRow(org, invoice, "2024", revenue))
		collections = append(collections, sg.collectionRow(org, invoice, revenue, revenue.Mul(decimal.NewFromFloat(0.6)).Round(2)))

		// Every fourth invoice gets a repeated ledger row.
		if i%4 == 0 {
			collections = append(collections, sg.collectionRow(org, invoice, revenue, revenue.Mul(decimal.NewFromFloat(0.2)).Round(2)))
		}
	}

	sg.writeCSV("duplicate_sales.csv", salesHeader, sales)
	sg.writeCSV("duplicate_collections.csv", collectionsHeader, collections)
}

// GenerateOneSidedScenario produces files with invoices present on only one
// side of the reconciliation.
func (sg *ScenarioGenerator) GenerateOneSidedScenario() {
	var sales, collections [][]string

	for i := 0; i < 30; i++ {
		org := organizations[sg.rng.Intn(len(organizations)-1)]
		invoice := fmt.Sprintf("INV-2024-S%03d", i+1)
		revenue := sg.randomAmount(10000, 80000)

		switch i % 3 {
		case 0: // both sides
			sales = append(sales, sg.salesRow(org, invoice, "2024", revenue))
			collections = append(collections, sg.collectionRow(org, invoice, revenue, revenue))
		case 1: // sales only
			sales = append(sales, sg.salesRow(org, invoice, "2024", revenue))
		case 2: // collections only
			collections = append(collections, sg.collectionRow(org, invoice, revenue, revenue))
		}
	}

	sg.writeCSV("one_sided_sales.csv", salesHeader, sales)
	sg.writeCSV("one_sided_collections.csv", collectionsHeader, collections)
}

// GenerateAnomalyScenario produces a sales journal exercising the
// classification and anomaly rules: prior-year account codes, @-flagged
// objects, advance invoice dates, negative and missing amounts.
func (sg *ScenarioGenerator) GenerateAnomalyScenario() {
	var sales [][]string

	type variant struct {
		accountCode string
		object      string
		invoiceDate string
		glDate      string
		period      string
		amount      string
	}

	variants := []variant{
		{accountCode: "70611", object: "Abonnement mensuel", invoiceDate: "20/02/2024", glDate: "21/02/2024", period: "Février 2024", amount: "125.000,00"},
		{accountCode: "70611A", object: "Abonnement mensuel", invoiceDate: "20/02/2024", glDate: "21/02/2024", period: "Février 2024", amount: "98.500,00"},
		{accountCode: "70611", object: "@Régularisation 2023", invoiceDate: "20/02/2024", glDate: "21/02/2024", period: "Février 2024", amount: "45.000,00"},
		{accountCode: "70611", object: "Abonnement annuel", invoiceDate: "10/01/2025", glDate: "21/02/2024", period: "Janvier 2025", amount: "310.000,00"},
		{accountCode: "70611", object: "Abonnement mensuel", invoiceDate: "20/02/2024", glDate: "15/12/2023", period: "Décembre 2023", amount: "77.250,00"},
		{accountCode: "70611", object: "Avoir annulation", invoiceDate: "20/02/2024", glDate: "21/02/2024", period: "Février 2024", amount: "-12.500,00"},
		{accountCode: "70611", object: "Abonnement mensuel", invoiceDate: "20/02/2024", glDate: "21/02/2024", period: "Février 2024", amount: ""},
	}

	for i, v := range variants {
		org := organizations[sg.rng.Intn(len(organizations)-1)]
		sales = append(sales, []string{
			org, "NGBSS", fmt.Sprintf("INV-2024-A%03d", i+1), "Standard",
			v.invoiceDate, fmt.Sprintf("Client %d", i+1), "DZD", v.object,
			v.accountCode, v.glDate, v.period, v.amount,
		})
	}

	sg.writeCSV("anomaly_sales.csv", salesHeader, sales)
}

func (sg *ScenarioGenerator) salesRow(org, invoice, year string, revenue decimal.Decimal) []string {
	return []string{
		org, "NGBSS", invoice, "Standard",
		fmt.Sprintf("%02d/%02d/%s", 1+sg.rng.Intn(28), 1+sg.rng.Intn(12), year),
		fmt.Sprintf("Entreprise %03d", sg.rng.Intn(500)),
		"DZD", "Abonnement mensuel", "70611",
		fmt.Sprintf("%02d/%02d/%s", 1+sg.rng.Intn(28), 1+sg.rng.Intn(12), year),
		"Février " + year,
		formatAmount(revenue),
	}
}

func (sg *ScenarioGenerator) collectionRow(org, invoice string, revenue, collected decimal.Decimal) []string {
	tax := revenue.Mul(decimal.NewFromFloat(0.19)).Round(2)
	return []string{
		org, invoice, "Standard",
		fmt.Sprintf("%02d/%02d/2024", 1+sg.rng.Intn(28), 1+sg.rng.Intn(12)),
		fmt.Sprintf("Entreprise %03d", sg.rng.Intn(500)),
		formatAmount(revenue), formatAmount(tax), formatAmount(revenue.Add(tax)),
		formatAmount(collected),
		fmt.Sprintf("%02d/%02d/2024", 1+sg.rng.Intn(28), 1+sg.rng.Intn(12)),
	}
}

func (sg *ScenarioGenerator) randomAmount(min, max int) decimal.Decimal {
	cents := min*100 + sg.rng.Intn((max-min)*100)
	return decimal.New(int64(cents), -2)
}

// formatAmount renders an amount in the source systems' locale: dot
// thousands separators and a comma decimal point.
func formatAmount(amount decimal.Decimal) string {
	s := amount.StringFixed(2)

	negative := false
	if s[0] == '-' {
		negative = true
		s = s[1:]
	}

	intPart := s[:len(s)-3]
	fracPart := s[len(s)-2:]

	var groups []string
	for len(intPart) > 3 {
		groups = append([]string{intPart[len(intPart)-3:]}, groups...)
		intPart = intPart[:len(intPart)-3]
	}
	groups = append([]string{intPart}, groups...)

	out := ""
	for i, g := range groups {
		if i > 0 {
			out += "."
		}
		out += g
	}
	out += "," + fracPart
	if negative {
		out = "-" + out
	}
	return out
}

func (sg *ScenarioGenerator) writeCSV(name string, header []string, rows [][]string) {
	path := filepath.Join(sg.OutputDir, name)
	file, err := os.Create(path)
	if err != nil {
		log.Fatalf("Failed to create %s: %v", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(header); err != nil {
		log.Fatalf("Failed to write header: %v", err)
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			log.Fatalf("Failed to write row: %v", err)
		}
	}

	fmt.Printf("  %s: %d rows\n", name, len(rows))
}
