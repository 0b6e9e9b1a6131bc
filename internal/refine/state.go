// Package refine implements the bounded iterative refinement loop: it
// accumulates evidence round by round, asks an external sufficiency
// oracle whether enough exists to plan, and always terminates — either
// on a sufficient verdict or when the round cap is exhausted.
package refine

import "time"

// ─── Oracle verdict types ────────────────────────────────────────────────────

// Assessment is the sufficiency oracle's verdict over the accumulated
// evidence.
type Assessment struct {
	IsSufficient bool     `json:"is_sufficient"`
	MissingData  []string `json:"missing_data,omitempty"`
	Reason       string   `json:"reason,omitempty"`
	Confidence   float64  `json:"confidence"`
}

// DataRequest is the most recent ask for more evidence, derived from an
// insufficient verdict and cleared once the requested items have been
// fetched.
type DataRequest struct {
	NeedsMoreData bool     `json:"needs_more_data"`
	MissingData   []string `json:"missing_data,omitempty"`
	Reason        string   `json:"reason,omitempty"`
	Confidence    float64  `json:"confidence"`
}

// HistoryEntry records one completed round for the audit trail.
type HistoryEntry struct {
	Round           int          `json:"round"`
	Request         *DataRequest `json:"request,omitempty"` // pending request going into the round
	Timestamp       time.Time    `json:"timestamp"`
	EvidenceQueries int          `json:"evidence_queries_executed"`
	Success         bool         `json:"success"` // false when any evidence query or the oracle failed
}

// ─── State ───────────────────────────────────────────────────────────────────

// State is the mutable record threaded through one planning session.
// The controller owns it exclusively for the session's duration; it is
// never shared across sessions.
//
// Invariant: len(History) == Round after each completed iteration.
type State struct {
	Round      int
	Evidence   map[string]any
	Pending    *DataRequest
	Assessment *Assessment
	History    []HistoryEntry
}

// NewState returns the initial state: round 0, empty evidence.
func NewState() *State {
	return &State{Evidence: map[string]any{}}
}

// ─── Reducers ────────────────────────────────────────────────────────────────
//
// State mutation goes through explicit merge functions rather than ad
// hoc per-field updates, so the invariants (overlay-merge evidence,
// append-only history) stay centrally testable.

// EvidenceReducer merges a round's new evidence into the accumulated
// map and returns the result. Implementations must not mutate old.
type EvidenceReducer func(old, delta map[string]any) map[string]any

// OverlayEvidence is the default reducer: a shallow overlay where new
// keys win on conflict and existing keys are never removed.
func OverlayEvidence(old, delta map[string]any) map[string]any {
	merged := make(map[string]any, len(old)+len(delta))
	for k, v := range old {
		merged[k] = v
	}
	for k, v := range delta {
		merged[k] = v
	}
	return merged
}

// AppendHistory is the history reducer: strictly append-only, never
// truncating within a session.
func AppendHistory(history []HistoryEntry, entry HistoryEntry) []HistoryEntry {
	out := make([]HistoryEntry, len(history), len(history)+1)
	copy(out, history)
	return append(out, entry)
}

// ApplyEvidence merges delta into the accumulated evidence.
func (s *State) ApplyEvidence(reduce EvidenceReducer, delta map[string]any) {
	if reduce == nil {
		reduce = OverlayEvidence
	}
	s.Evidence = reduce(s.Evidence, delta)
}

// RecordRound appends the round's history entry and advances the round
// counter, upholding len(History) == Round.
func (s *State) RecordRound(entry HistoryEntry) {
	s.History = AppendHistory(s.History, entry)
	s.Round++
}
