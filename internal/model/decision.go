package model

// DecisionSource identifies which stage of the classification engine
// produced a decision.
type DecisionSource string

const (
	// DecisionByRule means a filename keyword rule resolved the category.
	DecisionByRule DecisionSource = "rule"
	// DecisionByAssist means the external text-analysis service proposed
	// the category.
	DecisionByAssist DecisionSource = "assist"
	// DecisionByFallback means neither rules nor the assist service
	// resolved the file; the GENERAL/Divers default applies.
	DecisionByFallback DecisionSource = "fallback"
)

// ClassificationDecision is the immutable result of classifying one file.
// Its effects (taxonomy mutation, archived file, index entry) are the
// persisted artifacts; the decision itself is not stored.
type ClassificationDecision struct {
	Category         string         `json:"category"`
	Subcategory      string         `json:"subcategory"`
	IsNewCategory    bool           `json:"is_new_category"`
	Rationale        string         `json:"rationale,omitempty"`
	ArchivalFileName string         `json:"archival_file_name"`
	Source           DecisionSource `json:"source"`
}
