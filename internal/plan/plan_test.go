package plan_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planloop/planloop/internal/plan"
)

func validBatch() plan.Batch {
	return plan.Batch{
		Name:  "migrations",
		Index: 0,
		Tasks: []plan.Task{
			{
				ID:          "t1",
				Tool:        "sql_execute",
				Description: "create records table",
				Params:      plan.RawParams("CREATE TABLE records (...)"),
				Complexity:  plan.ComplexityLow,
				BatchIndex:  0,

				RequiresDBValidation: true,
			},
			{
				ID:          "t2",
				Tool:        "http_call",
				Description: "warm cache",
				Params:      plan.StructuredParams(map[string]any{"path": "/warm"}),
				Complexity:  plan.ComplexityMedium,
				BatchIndex:  0,
			},
		},
	}
}

func TestBatch_ValidateAccepts(t *testing.T) {
	assert.NoError(t, validBatch().Validate())
}

func TestBatch_RejectsDuplicateTaskIDs(t *testing.T) {
	b := validBatch()
	b.Tasks[1].ID = "t1"
	assert.Error(t, b.Validate())
}

func TestBatch_RejectsMismatchedBatchIndex(t *testing.T) {
	b := validBatch()
	b.Tasks[0].BatchIndex = 3
	assert.Error(t, b.Validate())
}

func TestBatch_RejectsUnknownComplexity(t *testing.T) {
	b := validBatch()
	b.Tasks[0].Complexity = "extreme"
	assert.Error(t, b.Validate())
}

func TestValidateBatches_RejectsSharedIndex(t *testing.T) {
	a := validBatch()
	b := validBatch()
	b.Name = "verification"
	assert.Error(t, plan.ValidateBatches([]plan.Batch{a, b}))

	for i := range b.Tasks {
		b.Tasks[i].BatchIndex = 1
	}
	b.Index = 1
	assert.NoError(t, plan.ValidateBatches([]plan.Batch{a, b}))
}

func TestParams_VariantJSON(t *testing.T) {
	raw := plan.RawParams("free-form")
	b, err := json.Marshal(raw)
	require.NoError(t, err)
	assert.JSONEq(t, `"free-form"`, string(b))

	structured := plan.StructuredParams(map[string]any{"limit": float64(5)})
	b, err = json.Marshal(structured)
	require.NoError(t, err)
	assert.JSONEq(t, `{"limit":5}`, string(b))

	var decoded plan.Params
	require.NoError(t, json.Unmarshal([]byte(`{"limit":5}`), &decoded))
	m, ok := decoded.Map()
	require.True(t, ok)
	assert.Equal(t, float64(5), m["limit"])

	require.NoError(t, json.Unmarshal([]byte(`"verbatim"`), &decoded))
	text, ok := decoded.Text()
	require.True(t, ok)
	assert.Equal(t, "verbatim", text)

	assert.Error(t, json.Unmarshal([]byte(`[1]`), &decoded))
}
