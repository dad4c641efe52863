package model

import "time"

// OutcomeKind is the terminal state of a single file's archival attempt.
type OutcomeKind string

const (
	// OutcomeArchived means the file was copied, verified and indexed.
	OutcomeArchived OutcomeKind = "archived"
	// OutcomeDuplicate means the content fingerprint was already indexed.
	// This is a successful outcome, not an error.
	OutcomeDuplicate OutcomeKind = "duplicate"
	// OutcomeIntegrityError means the post-copy hash did not match the
	// source. The destination file is kept for inspection.
	OutcomeIntegrityError OutcomeKind = "integrity_error"
	// OutcomeExtractionError means the source became unreadable during
	// content extraction.
	OutcomeExtractionError OutcomeKind = "extraction_error"
	// OutcomeOtherError covers all remaining per-file failures.
	OutcomeOtherError OutcomeKind = "other_error"
)

// ArchivalOutcome records what happened to one processed file.
type ArchivalOutcome struct {
	SourcePath      string      `json:"source_path"`
	DestinationPath string      `json:"destination_path,omitempty"`
	Category        string      `json:"category,omitempty"`
	Subcategory     string      `json:"subcategory,omitempty"`
	Kind            OutcomeKind `json:"kind"`
	IsNewCategory   bool        `json:"is_new_category,omitempty"`
	Rationale       string      `json:"rationale,omitempty"`

	// DuplicateOf carries the previously archived path when Kind is
	// OutcomeDuplicate, for operator context.
	DuplicateOf string `json:"duplicate_of,omitempty"`

	// Warnings collects non-fatal problems (failed source delete, failed
	// media tagging, extraction diagnostics). They never change Kind.
	Warnings []string `json:"warnings,omitempty"`

	// Error holds the failure message for error kinds.
	Error string `json:"error,omitempty"`
}

// BatchReport aggregates the outcomes of one archival batch.
type BatchReport struct {
	RunID         string              `json:"run_id"`
	DestRoot      string              `json:"dest_root"`
	Outcomes      []ArchivalOutcome   `json:"outcomes"`
	Counts        map[OutcomeKind]int `json:"counts"`
	NewCategories []ArchivalOutcome   `json:"new_categories,omitempty"`
	Taxonomy      Taxonomy            `json:"taxonomy"`
	StartedAt     time.Time           `json:"started_at"`
	FinishedAt    time.Time           `json:"finished_at"`
}

// Tally recomputes Counts and NewCategories from Outcomes.
func (r *BatchReport) Tally() {
	r.Counts = make(map[OutcomeKind]int)
	r.NewCategories = nil
	for _, o := range r.Outcomes {
		r.Counts[o.Kind]++
		if o.IsNewCategory && o.Kind == OutcomeArchived {
			r.NewCategories = append(r.NewCategories, o)
		}
	}
}

// Archived returns the number of successfully archived files.
func (r *BatchReport) Archived() int { return r.Counts[OutcomeArchived] }

// Duplicates returns the number of duplicate-skipped files.
func (r *BatchReport) Duplicates() int { return r.Counts[OutcomeDuplicate] }

// Errors returns the number of files that ended in an error kind.
func (r *BatchReport) Errors() int {
	return r.Counts[OutcomeIntegrityError] + r.Counts[OutcomeExtractionError] + r.Counts[OutcomeOtherError]
}
