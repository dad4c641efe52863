// Package classify decides the category and subcategory of a document,
// preferring deterministic keyword rules and falling back to an assisted
// proposal from the Anthropic API before settling on GENERAL/Divers.
package classify

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/gedworks/archive-cli/internal/model"
)

// minContentChars is the minimum extracted-text length before content
// keyword rules are consulted. Shorter excerpts carry too little signal.
const minContentChars = 50

// nameRule maps filename keywords to a category. Rules are evaluated in
// order and the first match wins.
type nameRule struct {
	category string
	keywords []string
}

var nameRules = []nameRule{
	{"JURIDIQUE", []string{"bail", "acte", "contrat", "legal", "juridique"}},
	{"TECHNIQUE", []string{"diagnostic", "technique", "plan", "devis", "video", "photo"}},
	{"COMPTABILITE", []string{"facture", "compte", "bancaire", "impot", "fiscal"}},
	{"ADMINISTRATIF", []string{"assurance", "courrier", "identite", "administratif"}},
}

// contentRule maps a content keyword to a subcategory within one category.
type contentRule struct {
	keyword     string
	subcategory string
}

var contentRules = map[string][]contentRule{
	"JURIDIQUE": {
		{"bail", "Baux"},
		{"contrat", "Contrats"},
		{"acte", "Actes"},
		{"proces", "Contentieux"},
		{"tribunal", "Contentieux"},
	},
	"TECHNIQUE": {
		{"diagnostic", "Diagnostics"},
		{"devis", "Devis"},
		{"plan", "Plans"},
		{"photo", "Photos"},
		{"video", "Videos"},
		{"visite", "Visites"},
	},
	"COMPTABILITE": {
		{"facture", "Factures"},
		{"releve", "Releves"},
		{"impot", "Impots"},
		{"taxe", "Impots"},
		{"bancaire", "Releves_Bancaires"},
	},
	"ADMINISTRATIF": {
		{"assurance", "Assurances"},
		{"courrier", "Courriers"},
		{"identite", "Identite"},
		{"permis", "Permis"},
		{"autorisation", "Autorisations"},
	},
}

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// fold lowercases s and strips diacritics so "Impôt" matches "impot".
func fold(s string) string {
	out, _, err := transform.String(foldTransformer, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

// RuleClassifier matches filenames and content excerpts against the fixed
// keyword tables. It holds no state and is safe for concurrent use.
type RuleClassifier struct{}

// ClassifyByName returns the category whose keyword table matches the
// filename, or "" when no keyword matches. Matching is case and accent
// insensitive.
func (RuleClassifier) ClassifyByName(filename string) string {
	folded := fold(filename)
	for _, rule := range nameRules {
		for _, kw := range rule.keywords {
			if strings.Contains(folded, kw) {
				return rule.category
			}
		}
	}
	return ""
}

// SuggestSubcategory returns a subcategory for category derived from the
// extracted text, or "" when the excerpt is too short, the category has no
// rule table, or no keyword matches.
func (RuleClassifier) SuggestSubcategory(text, category string, _ model.Taxonomy) string {
	if len(text) < minContentChars {
		return ""
	}
	rules, ok := contentRules[model.NormalizeCategory(category)]
	if !ok {
		return ""
	}
	folded := fold(text)
	for _, rule := range rules {
		if strings.Contains(folded, rule.keyword) {
			return rule.subcategory
		}
	}
	return ""
}
