package refine

import (
	"time"

	"github.com/planloop/planloop/internal/store"
)

// memoryValueForEntry flattens a history entry into the structured
// shape persisted per round.
func memoryValueForEntry(e HistoryEntry) store.Value {
	v := map[string]any{
		"round":                     e.Round,
		"timestamp":                 e.Timestamp.Format(time.RFC3339Nano),
		"evidence_queries_executed": e.EvidenceQueries,
		"success":                   e.Success,
	}
	if e.Request != nil {
		v["request"] = map[string]any{
			"needs_more_data": e.Request.NeedsMoreData,
			"missing_data":    e.Request.MissingData,
			"reason":          e.Request.Reason,
			"confidence":      e.Request.Confidence,
		}
	}
	return store.Structured(v)
}

func historyPutOptions(e HistoryEntry) store.PutOptions {
	return store.PutOptions{
		DataType: "refinement_history",
		Tags: map[string]any{
			"round":   e.Round,
			"success": e.Success,
		},
	}
}
