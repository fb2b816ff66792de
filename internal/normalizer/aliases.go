package normalizer

import (
	"strings"

	"github.com/rehza97/billing-reconciler/internal/models"
)

// FieldAlias maps one canonical field name to the source spellings that may
// carry it. Resolution order follows declaration order, so more specific
// spellings must be listed before looser ones.
type FieldAlias struct {
	Canonical string
	Aliases   []string
}

// AliasTable is the ordered alias table for one record kind. The table is
// data, not code: adding a new source spelling is a one-line change.
type AliasTable []FieldAlias

// normalizeHeader lowercases a source header and collapses its internal
// whitespace so that casing and spacing drift never break resolution.
func normalizeHeader(header string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(header)))
	return strings.Join(fields, " ")
}

// Resolve maps one source header to its canonical field name. A canonical
// name always resolves to itself, which makes normalization idempotent.
func (t AliasTable) Resolve(header string) (string, bool) {
	h := normalizeHeader(header)
	if h == "" {
		return "", false
	}
	for _, entry := range t {
		if h == entry.Canonical {
			return entry.Canonical, true
		}
		for _, alias := range entry.Aliases {
			if h == alias {
				return entry.Canonical, true
			}
		}
	}
	return "", false
}

// Canonicalize rewrites a raw row's keys to canonical field names. The first
// source column that resolves to a canonical name wins; unresolvable columns
// are dropped. The input row is never mutated.
func (t AliasTable) Canonicalize(raw map[string]string) map[string]string {
	out := make(map[string]string, len(t))
	for _, entry := range t {
		if _, ok := out[entry.Canonical]; ok {
			continue
		}
		if value, ok := lookup(raw, entry.Canonical); ok {
			out[entry.Canonical] = value
			continue
		}
		for _, alias := range entry.Aliases {
			if value, ok := lookup(raw, alias); ok {
				out[entry.Canonical] = value
				break
			}
		}
	}
	return out
}

func lookup(raw map[string]string, name string) (string, bool) {
	for key, value := range raw {
		if normalizeHeader(key) == name {
			return value, true
		}
	}
	return "", false
}

// salesAliases covers the "Journal des Ventes" export headers seen across
// source systems, including the French NGBSS spellings.
var salesAliases = AliasTable{
	{Canonical: "organization", Aliases: []string{"organisation", "do", "dot", "direction", "org name"}},
	{Canonical: "origin", Aliases: []string{"origine", "source"}},
	{Canonical: "invoice_number", Aliases: []string{"n fact", "n° fact", "num fact", "numero facture", "invoice number"}},
	{Canonical: "invoice_type", Aliases: []string{"typ fact", "type fact", "type facture"}},
	{Canonical: "invoice_date", Aliases: []string{"date fact", "date facture", "invoice date"}},
	{Canonical: "client", Aliases: []string{"nom client", "customer", "client name"}},
	{Canonical: "currency", Aliases: []string{"devise"}},
	{Canonical: "invoice_object", Aliases: []string{"obj fact", "objet fact", "objet facture"}},
	{Canonical: "account_code", Aliases: []string{"cpt comptable", "compte comptable", "account"}},
	{Canonical: "gl_date", Aliases: []string{"date gl", "date comptable"}},
	{Canonical: "billing_period", Aliases: []string{"periode de facturation", "période de facturation", "periode facturation"}},
	{Canonical: "revenue_amount", Aliases: []string{"chiffre aff exe dzd", "chiffre aff exe", "montant ht", "ca dzd"}},
}

// collectionAliases covers the "État de Facture" export headers.
var collectionAliases = AliasTable{
	{Canonical: "organization", Aliases: []string{"organisation", "do", "dot", "direction"}},
	{Canonical: "invoice_number", Aliases: []string{"n fact", "n° fact", "num fact", "numero facture", "invoice number"}},
	{Canonical: "invoice_type", Aliases: []string{"typ fact", "type fact", "type facture"}},
	{Canonical: "invoice_date", Aliases: []string{"date fact", "date facture", "invoice date"}},
	{Canonical: "client", Aliases: []string{"nom client", "customer", "client name"}},
	{Canonical: "amount_pre_tax", Aliases: []string{"montant ht", "ht"}},
	{Canonical: "tax_amount", Aliases: []string{"montant taxe", "taxe", "tva"}},
	{Canonical: "total_amount", Aliases: []string{"montant ttc", "ttc"}},
	{Canonical: "revenue_amount", Aliases: []string{"chiffre aff exe", "chiffre aff exe dzd", "ca dzd"}},
	{Canonical: "collection_amount", Aliases: []string{"encaissement", "montant encaisse", "montant encaissé"}},
	{Canonical: "invoice_credit_amount", Aliases: []string{"facture avoir", "facture avoir annulation", "avoir"}},
	{Canonical: "payment_date", Aliases: []string{"date rglt", "date reglement", "date règlement"}},
}

// parcCorporateAliases covers the corporate subscriber park export.
var parcCorporateAliases = AliasTable{
	{Canonical: "organization", Aliases: []string{"organisation", "do", "dot"}},
	{Canonical: "customer_l1_code", Aliases: []string{"customer level 1", "cust lev1", "customer_lev1"}},
	{Canonical: "customer_l2_code", Aliases: []string{"customer level 2", "cust lev2", "customer_lev2"}},
	{Canonical: "customer_l3_code", Aliases: []string{"customer level 3", "cust lev3", "customer_lev3"}},
	{Canonical: "offer_name", Aliases: []string{"offre", "offer", "nom offre"}},
	{Canonical: "subscriber_status", Aliases: []string{"statut", "status", "etat abonne", "état abonné"}},
	{Canonical: "telecom_type", Aliases: []string{"type telecom", "techno"}},
}

// creancesAliases covers the NGBSS receivables export.
var creancesAliases = AliasTable{
	{Canonical: "organization", Aliases: []string{"organisation", "do", "dot"}},
	{Canonical: "product", Aliases: []string{"produit", "prod"}},
	{Canonical: "customer_lev1", Aliases: []string{"cust lev1", "customer level 1"}},
	{Canonical: "customer_lev2", Aliases: []string{"cust lev2", "customer level 2"}},
	{Canonical: "customer_lev3", Aliases: []string{"cust lev3", "customer level 3"}},
	{Canonical: "invoice_amount", Aliases: []string{"montant facture", "invoice amt"}},
	{Canonical: "open_amount", Aliases: []string{"montant ouvert", "creance", "créance"}},
}

// caAliases covers the periodic and non-periodic revenue exports plus the
// DNT/RFD/CNT adjustment files, which share a header family.
var caAliases = AliasTable{
	{Canonical: "do", Aliases: []string{"organization", "organisation", "dot", "direction"}},
	{Canonical: "product", Aliases: []string{"produit", "prod"}},
	{Canonical: "department", Aliases: []string{"departement", "département", "dpt"}},
	{Canonical: "amount_pre_tax", Aliases: []string{"montant ht", "ht"}},
	{Canonical: "tax_amount", Aliases: []string{"montant taxe", "tva"}},
	{Canonical: "total_amount", Aliases: []string{"montant ttc", "ttc"}},
}

// TableFor returns the alias table for a record kind, or nil for unknown
// kinds. Callers must treat a nil table as "kind not supported".
func TableFor(kind models.RecordKind) AliasTable {
	switch kind {
	case models.KindSalesJournal:
		return salesAliases
	case models.KindCollections:
		return collectionAliases
	case models.KindParcCorporate:
		return parcCorporateAliases
	case models.KindCreancesNGBSS:
		return creancesAliases
	case models.KindCAPeriodique, models.KindCANonPeriodique,
		models.KindCADNT, models.KindCARFD, models.KindCACNT:
		return caAliases
	default:
		return nil
	}
}
