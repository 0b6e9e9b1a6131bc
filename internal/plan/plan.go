// Package plan defines the terminal artifacts a refinement session
// produces: named, ordered batches of executable tasks.
//
// Batches are emitted by an external plan generator once the refinement
// loop finalizes; this package only carries the data model and its
// invariants.
package plan

import (
	"encoding/json"
	"fmt"
)

// ─── Complexity enum ─────────────────────────────────────────────────────────

// Complexity grades how involved a task is expected to be.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// validComplexities is the set of allowed complexity levels.
var validComplexities = map[Complexity]bool{
	ComplexityLow:    true,
	ComplexityMedium: true,
	ComplexityHigh:   true,
}

// ValidateComplexity returns an error if the level is not recognized.
func ValidateComplexity(c Complexity) error {
	if !validComplexities[c] {
		return fmt.Errorf("invalid complexity %q: must be one of: low, medium, high", c)
	}
	return nil
}

// ─── Params variant ──────────────────────────────────────────────────────────

// Params is a tagged variant: tool parameters are either a structured
// map or a free-form string, never inspected reflectively downstream.
type Params struct {
	structured map[string]any
	raw        string
	isRaw      bool
	set        bool
}

// StructuredParams wraps a parameter map.
func StructuredParams(m map[string]any) Params {
	return Params{structured: m, set: true}
}

// RawParams wraps free-form parameter text.
func RawParams(s string) Params {
	return Params{raw: s, isRaw: true, set: true}
}

// Map returns the structured parameters, or false for raw/unset params.
func (p Params) Map() (map[string]any, bool) {
	if !p.set || p.isRaw {
		return nil, false
	}
	return p.structured, true
}

// Text returns the raw parameters, or false for structured/unset params.
func (p Params) Text() (string, bool) {
	if !p.set || !p.isRaw {
		return "", false
	}
	return p.raw, true
}

// MarshalJSON encodes structured params as an object, raw params as a
// string, and unset params as null.
func (p Params) MarshalJSON() ([]byte, error) {
	switch {
	case !p.set:
		return []byte("null"), nil
	case p.isRaw:
		return json.Marshal(p.raw)
	default:
		if p.structured == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(p.structured)
	}
}

// UnmarshalJSON accepts an object, a string, or null.
func (p *Params) UnmarshalJSON(data []byte) error {
	var probe any
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	switch v := probe.(type) {
	case nil:
		*p = Params{}
		return nil
	case map[string]any:
		*p = StructuredParams(v)
		return nil
	case string:
		*p = RawParams(v)
		return nil
	default:
		return fmt.Errorf("plan: params must be object or string (got %T)", probe)
	}
}

// ─── Core data structures ────────────────────────────────────────────────────

// Task is one executable step within a batch.
type Task struct {
	ID                   string     `json:"id"`
	Tool                 string     `json:"tool"`
	Description          string     `json:"description"`
	Params               Params     `json:"params"`
	Complexity           Complexity `json:"complexity"`
	RequiresDBValidation bool       `json:"requires_db_validation"`
	BatchIndex           int        `json:"batch_index"`
}

// Batch is a named, ordered group of tasks.
type Batch struct {
	Name  string `json:"name"`
	Index int    `json:"index"`
	Tasks []Task `json:"tasks"`
}

// Validate checks the batch invariants: task ids are unique within the
// batch, every task's batch index equals the batch's own index, and
// complexity levels are recognized.
func (b Batch) Validate() error {
	if b.Name == "" {
		return fmt.Errorf("batch %d has no name", b.Index)
	}
	if b.Index < 0 {
		return fmt.Errorf("batch %q has negative index %d", b.Name, b.Index)
	}

	seen := make(map[string]bool, len(b.Tasks))
	for _, task := range b.Tasks {
		if task.ID == "" {
			return fmt.Errorf("batch %q contains a task with no id", b.Name)
		}
		if seen[task.ID] {
			return fmt.Errorf("batch %q contains duplicate task id %q", b.Name, task.ID)
		}
		seen[task.ID] = true

		if task.BatchIndex != b.Index {
			return fmt.Errorf("task %q records batch index %d but belongs to batch %d", task.ID, task.BatchIndex, b.Index)
		}
		if err := ValidateComplexity(task.Complexity); err != nil {
			return fmt.Errorf("task %q: %w", task.ID, err)
		}
	}
	return nil
}

// ValidateBatches validates each batch and rejects duplicate batch
// indexes across the plan.
func ValidateBatches(batches []Batch) error {
	seen := make(map[int]string, len(batches))
	for _, b := range batches {
		if err := b.Validate(); err != nil {
			return err
		}
		if prev, ok := seen[b.Index]; ok {
			return fmt.Errorf("batches %q and %q share index %d", prev, b.Name, b.Index)
		}
		seen[b.Index] = b.Name
	}
	return nil
}
