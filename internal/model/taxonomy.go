package model

import "strings"

// Fingerprint is a hex-encoded content digest used for duplicate detection.
// Two files with identical bytes always produce identical fingerprints.
type Fingerprint string

// Category is one entry of the classification plan: an uppercase name and
// its subcategories in insertion order.
type Category struct {
	Name          string   `json:"name" yaml:"name"`
	Subcategories []string `json:"subcategories" yaml:"subcategories"`
}

// Taxonomy is the full category → subcategories classification plan,
// ordered for display. Lookups are by normalized (uppercase) name.
type Taxonomy []Category

// NormalizeCategory converts a raw category name to its canonical form:
// trimmed and uppercased. All comparisons and inserts go through this.
func NormalizeCategory(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// Has reports whether the taxonomy contains the category (normalized compare).
func (t Taxonomy) Has(category string) bool {
	_, ok := t.find(category)
	return ok
}

// Subcategories returns the subcategory list for a category, or nil if the
// category is absent.
func (t Taxonomy) Subcategories(category string) []string {
	c, ok := t.find(category)
	if !ok {
		return nil
	}
	return c.Subcategories
}

// HasSubcategory reports whether sub exists under category. Subcategories
// compare case-sensitively, as stored.
func (t Taxonomy) HasSubcategory(category, sub string) bool {
	for _, s := range t.Subcategories(category) {
		if s == sub {
			return true
		}
	}
	return false
}

// CategoryCount returns the number of categories.
func (t Taxonomy) CategoryCount() int {
	return len(t)
}

// SubcategoryCount returns the total number of subcategories across all
// categories.
func (t Taxonomy) SubcategoryCount() int {
	n := 0
	for _, c := range t {
		n += len(c.Subcategories)
	}
	return n
}

func (t Taxonomy) find(category string) (Category, bool) {
	name := NormalizeCategory(category)
	for _, c := range t {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}

// DefaultTaxonomy returns the classification plan seeded on first run.
func DefaultTaxonomy() Taxonomy {
	return Taxonomy{
		{Name: "JURIDIQUE", Subcategories: []string{"Baux", "Actes"}},
		{Name: "TECHNIQUE", Subcategories: []string{"Diagnostics", "Visites_Video"}},
		{Name: "COMPTABILITE", Subcategories: []string{"Factures", "Audios_Etats_Lieux"}},
		{Name: "ADMINISTRATIF", Subcategories: []string{"Assurances", "Courriers", "Identite"}},
	}
}
