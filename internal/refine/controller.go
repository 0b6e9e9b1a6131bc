package refine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/planloop/planloop/internal/memory"
	"github.com/planloop/planloop/internal/plan"
)

// ErrSessionAborted is returned when a session is aborted between
// rounds (or its context is cancelled). Any in-flight oracle result is
// discarded.
var ErrSessionAborted = errors.New("refine: session aborted")

// ─── External collaborators ──────────────────────────────────────────────────

// Oracle is the external sufficiency decision function, typically an
// LLM call. The controller treats it as opaque and potentially fallible.
type Oracle interface {
	Assess(ctx context.Context, evidence map[string]any) (Assessment, error)
}

// EvidenceSource fetches one requested missing-data item, returning
// evidence to merge or a failure. Implemented externally by tool/query
// execution.
type EvidenceSource interface {
	Fetch(ctx context.Context, item string) (map[string]any, error)
}

// Planner receives the session's final evidence, assessment, and
// history once the loop finalizes, and emits the plan batches.
type Planner interface {
	Generate(ctx context.Context, evidence map[string]any, final *Assessment, history []HistoryEntry) ([]plan.Batch, error)
}

// ─── Configuration ───────────────────────────────────────────────────────────

// Config holds per-session controller settings.
type Config struct {
	// SessionID identifies the planning session; generated when empty.
	SessionID string
	// RoundCap is the sole upper bound on oracle invocations for the
	// session. Must be positive.
	RoundCap int
	// EvidenceParallelism bounds concurrent missing-data fetches within
	// a round. Defaults to 4.
	EvidenceParallelism int
}

// Deps holds the controller's collaborators. Oracle and Source are
// required; Planner, Memory, and Logger are optional.
type Deps struct {
	Oracle  Oracle
	Source  EvidenceSource
	Planner Planner
	// Memory, when set, receives one persisted history record per round.
	Memory *memory.Memory
	Logger *zap.Logger
}

// Reason says why a session finalized. Downstream consumers use it to
// distinguish a confirmed-sufficient plan from a degraded-but-bounded
// completion.
type Reason string

const (
	ReasonSufficient        Reason = "sufficient"
	ReasonRoundCapExhausted Reason = "round_cap_exhausted"
	ReasonOracleFailure     Reason = "oracle_failure"
)

// Result is handed to callers when the session reaches Finalizing.
type Result struct {
	SessionID  string
	Reason     Reason
	Evidence   map[string]any
	Assessment *Assessment
	History    []HistoryEntry
	Batches    []plan.Batch
}

// ─── Controller ──────────────────────────────────────────────────────────────

// Controller drives one planning session through the refinement state
// machine: Collecting → Assessing → (NeedsMoreData → Collecting) |
// Finalizing. Rounds execute strictly sequentially; the controller owns
// its State exclusively and must not be shared across sessions.
type Controller struct {
	cfg     Config
	oracle  Oracle
	source  EvidenceSource
	planner Planner
	mem     *memory.Memory
	log     *zap.Logger
	reduce  EvidenceReducer
	aborted atomic.Bool
}

// NewController validates the configuration and wires the session.
func NewController(cfg Config, deps Deps) (*Controller, error) {
	if cfg.RoundCap < 1 {
		return nil, fmt.Errorf("refine: round cap must be positive (got %d)", cfg.RoundCap)
	}
	if deps.Oracle == nil {
		return nil, fmt.Errorf("refine: oracle is required")
	}
	if deps.Source == nil {
		return nil, fmt.Errorf("refine: evidence source is required")
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	if cfg.EvidenceParallelism <= 0 {
		cfg.EvidenceParallelism = 4
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		cfg:     cfg,
		oracle:  deps.Oracle,
		source:  deps.Source,
		planner: deps.Planner,
		mem:     deps.Memory,
		log:     log.With(zap.String("session_id", cfg.SessionID)),
		reduce:  OverlayEvidence,
	}, nil
}

// Abort marks the session aborted. The flag is checked at the top of
// each Collecting step; a round already assessing runs its oracle call
// to completion but the result is discarded.
func (c *Controller) Abort() {
	c.aborted.Store(true)
}

// Run executes the session until Finalizing and returns the result.
// The loop always terminates: the round cap bounds oracle invocations
// even when the oracle never reports sufficiency.
func (c *Controller) Run(ctx context.Context, initial map[string]any) (*Result, error) {
	st := NewState()
	delta := initial

	for {
		// Collecting: abort checkpoint, then gather the pending items.
		if err := c.checkAborted(ctx); err != nil {
			return nil, err
		}

		queries := 0
		fetchOK := true
		if st.Pending != nil {
			delta, queries, fetchOK = c.collect(ctx, st.Pending)
		}
		request := st.Pending
		st.Pending = nil
		st.ApplyEvidence(c.reduce, delta)
		delta = nil

		// Assessing: the round boundary is a barrier — every evidence
		// query above has completed or failed before this call.
		verdict, oracleErr := c.assess(ctx, st.Evidence)
		if err := c.checkAborted(ctx); err != nil {
			return nil, err
		}

		entry := HistoryEntry{
			Round:           st.Round + 1,
			Request:         request,
			Timestamp:       timeNow().UTC(),
			EvidenceQueries: queries,
			Success:         fetchOK && oracleErr == nil,
		}
		st.RecordRound(entry)
		c.persistHistory(ctx, entry)

		if oracleErr != nil {
			c.log.Warn("oracle failed after retry, forcing finalization",
				zap.Int("round", st.Round), zap.Error(oracleErr))
			return c.finalize(ctx, st, ReasonOracleFailure)
		}
		st.Assessment = &verdict

		if verdict.IsSufficient {
			return c.finalize(ctx, st, ReasonSufficient)
		}
		if st.Round >= c.cfg.RoundCap {
			c.log.Info("round cap exhausted, finalizing with accumulated evidence",
				zap.Int("round_cap", c.cfg.RoundCap))
			return c.finalize(ctx, st, ReasonRoundCapExhausted)
		}

		st.Pending = &DataRequest{
			NeedsMoreData: true,
			MissingData:   verdict.MissingData,
			Reason:        verdict.Reason,
			Confidence:    verdict.Confidence,
		}
	}
}

// collect fetches the requested missing-data items with bounded
// parallelism and overlays the results. Per-item failures are logged
// and reported via ok=false but never abort the round.
func (c *Controller) collect(ctx context.Context, req *DataRequest) (merged map[string]any, queries int, ok bool) {
	merged = map[string]any{}
	ok = true

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(c.cfg.EvidenceParallelism)

	for _, item := range req.MissingData {
		g.Go(func() error {
			ev, err := c.source.Fetch(ctx, item)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				ok = false
				c.log.Warn("evidence query failed", zap.String("item", item), zap.Error(err))
				return nil
			}
			merged = OverlayEvidence(merged, ev)
			return nil
		})
	}
	_ = g.Wait() // barrier; the goroutines themselves never error

	return merged, len(req.MissingData), ok
}

// assess invokes the oracle, retrying once with the same evidence on
// failure to avoid deadlocking a session on a transient error.
func (c *Controller) assess(ctx context.Context, evidence map[string]any) (Assessment, error) {
	verdict, err := c.oracle.Assess(ctx, evidence)
	if err == nil {
		return verdict, nil
	}
	c.log.Warn("oracle call failed, retrying once", zap.Error(err))

	verdict, retryErr := c.oracle.Assess(ctx, evidence)
	if retryErr != nil {
		return Assessment{}, fmt.Errorf("oracle failed after retry: %w", retryErr)
	}
	return verdict, nil
}

// persistHistory writes the round's audit record through the facade.
// Best-effort: persistence failures never fail the round.
func (c *Controller) persistHistory(ctx context.Context, entry HistoryEntry) {
	if c.mem == nil {
		return
	}
	key := fmt.Sprintf("history/round-%03d", entry.Round)
	value := memoryValueForEntry(entry)
	err := c.mem.Save(ctx, key, value, historyPutOptions(entry))
	if err != nil {
		c.log.Warn("failed to persist round history", zap.String("key", key), zap.Error(err))
	}
}

// finalize builds the result and, when a planner is wired, hands the
// session's evidence, final assessment, and history to it.
func (c *Controller) finalize(ctx context.Context, st *State, reason Reason) (*Result, error) {
	res := &Result{
		SessionID:  c.cfg.SessionID,
		Reason:     reason,
		Evidence:   st.Evidence,
		Assessment: st.Assessment,
		History:    st.History,
	}
	c.log.Info("session finalized",
		zap.String("reason", string(reason)),
		zap.Int("rounds", st.Round))

	if c.planner == nil {
		return res, nil
	}
	batches, err := c.planner.Generate(ctx, st.Evidence, st.Assessment, st.History)
	if err != nil {
		return nil, fmt.Errorf("refine: plan generation: %w", err)
	}
	if err := plan.ValidateBatches(batches); err != nil {
		return nil, fmt.Errorf("refine: generated plan invalid: %w", err)
	}
	res.Batches = batches
	return res, nil
}

func (c *Controller) checkAborted(ctx context.Context) error {
	if c.aborted.Load() {
		return ErrSessionAborted
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrSessionAborted, err)
	}
	return nil
}
