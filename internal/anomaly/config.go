package anomaly

import (
	"fmt"

	"github.com/rehza97/billing-reconciler/internal/models"
)

// Config holds the injectable rule tables the detector consults. Category
// memberships are hand-maintained business data and may drift; they are
// configuration, never hard-coded into rule logic.
type Config struct {
	// CriticalFields lists, per record kind, the fields whose emptiness
	// yields one batched empty_fields finding per record.
	CriticalFields map[models.RecordKind][]string

	// Parc-Corporate exclusion rules.
	ParcExcludedCustomerL3      []string
	ParcExcludedOfferSubstrings []string
	ParcExcludedStatuses        []string

	// Créances-NGBSS membership rules. A record is kept only when all four
	// clauses hold; each failing clause contributes its own reason.
	CreancesValidProducts        []string
	CreancesValidCustomerLev1    []string
	CreancesExcludedCustomerLev2 []string
	CreancesValidCustomerLev3    []string

	// CA export rules.
	SiegeDO                 string
	PeriodiqueSiegeProducts []string
	CorporateDepartment     string
}

// DefaultConfig returns the rule tables currently agreed with the business
// owner.
func DefaultConfig() *Config {
	return &Config{
		CriticalFields: map[models.RecordKind][]string{
			models.KindSalesJournal: {
				"organization", "invoice_number", "invoice_date", "client",
				"invoice_object", "account_code", "gl_date", "revenue_amount",
			},
			models.KindCollections: {
				"organization", "invoice_number", "invoice_type", "client",
			},
		},

		ParcExcludedCustomerL3:      []string{"5", "57"},
		ParcExcludedOfferSubstrings: []string{"Moohtarif", "Solutions Hebergements"},
		ParcExcludedStatuses:        []string{"Predeactivated"},

		CreancesValidProducts:        []string{"Specialized Line", "LTE"},
		CreancesValidCustomerLev1:    []string{"Corporate", "Corporate Group"},
		CreancesExcludedCustomerLev2: []string{"Client professionnelConventionné"},
		CreancesValidCustomerLev3: []string{
			"Ligne d'exploitation AP",
			"Ligne d'exploitation ATMobilis",
			"Ligne d'exploitation ATS",
		},

		SiegeDO:                 "Siège",
		PeriodiqueSiegeProducts: []string{"Specialized Line", "LTE"},
		CorporateDepartment:     "Direction Commerciale Corporate",
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if len(c.CriticalFields) == 0 {
		return fmt.Errorf("critical fields table cannot be empty")
	}
	if c.SiegeDO == "" {
		return fmt.Errorf("siege DO value cannot be empty")
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
