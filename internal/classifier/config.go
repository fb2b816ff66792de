package classifier

import "fmt"

// Config holds the injectable business tables the classification engine
// consults. The AT-Siège allow-list in particular is hand-maintained by the
// business owner and must never be hard-wired into rule code.
type Config struct {
	// SiegeAllowList lists the original, case-sensitive organization codes
	// that may legitimately bill under "AT Siège".
	SiegeAllowList []string

	// RequiredFields are the critical sales journal fields; an empty value
	// on any of them yields one batched empty_fields finding.
	RequiredFields []string
}

// DefaultConfig returns the classification configuration currently agreed
// with the business owner.
func DefaultConfig() *Config {
	return &Config{
		SiegeAllowList: []string{"DCC", "DCGC"},
		RequiredFields: []string{
			"organization", "invoice_number", "invoice_date", "client",
			"invoice_object", "account_code", "gl_date", "revenue_amount",
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if len(c.RequiredFields) == 0 {
		return fmt.Errorf("required fields list cannot be empty")
	}
	return nil
}

// SiegeAllowed reports whether the original organization string is on the
// AT-Siège allow-list. The comparison is case-sensitive on purpose.
func (c *Config) SiegeAllowed(rawOrganization string) bool {
	for _, allowed := range c.SiegeAllowList {
		if rawOrganization == allowed {
			return true
		}
	}
	return false
}
