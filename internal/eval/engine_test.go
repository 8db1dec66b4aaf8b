package eval

import (
	"context"
	"fmt"
	"testing"

	"evalqueue/internal/db"
	"evalqueue/internal/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func singleEntryPlan() *Plan {
	sub := testSubmission("s1", "queue-1", "q1")
	return &Plan{
		QueueID: "queue-1",
		Entries: []PlanEntry{{Submission: sub, QuestionID: "q1", Judge: testJudge("j1", "grader")}},
	}
}

func TestExecuteSingleEntrySuccess(t *testing.T) {
	store := newFakeStore()
	engine := &Engine{
		Store:    store,
		LLM:      staticCompleter("Verdict: pass\nReasoning: solid answer"),
		Resolver: noopResolver,
	}

	completed, failed := engine.Execute(context.Background(), "run-1", singleEntryPlan(), nil)
	assert.Equal(t, 1, completed)
	assert.Equal(t, 0, failed)

	require.Len(t, store.evaluations, 1)
	ev := store.evaluations[0]
	assert.Equal(t, "run-1", ev.RunID)
	assert.Equal(t, "s1", ev.SubmissionID)
	assert.Equal(t, "q1", ev.QuestionID)
	assert.Equal(t, "j1", ev.JudgeID)
	assert.Equal(t, "grader", ev.JudgeName)
	assert.Equal(t, VerdictPass, ev.Verdict)
	assert.Equal(t, "solid answer", ev.Reasoning)
}

func TestExecuteTimeoutBecomesInconclusiveFallback(t *testing.T) {
	store := newFakeStore()
	engine := &Engine{
		Store: store,
		LLM: completerFunc(func(context.Context, llm.Request) (*llm.Response, error) {
			return nil, &llm.Error{Kind: llm.KindTimeout, Message: "call exceeded 60s budget"}
		}),
		Resolver: noopResolver,
	}

	completed, failed := engine.Execute(context.Background(), "run-1", singleEntryPlan(), nil)
	assert.Equal(t, 0, completed)
	assert.Equal(t, 1, failed)

	require.Len(t, store.evaluations, 1)
	ev := store.evaluations[0]
	assert.Equal(t, VerdictInconclusive, ev.Verdict)
	assert.Contains(t, ev.Reasoning, "Request timed out")
	assert.Equal(t, "run-1", ev.RunID)
}

func TestExecuteMessageBuildFailureIsRecorded(t *testing.T) {
	store := newFakeStore()
	sub := testSubmission("s1", "queue-1", "q1")
	plan := &Plan{
		QueueID: "queue-1",
		Entries: []PlanEntry{
			// q9 is not in the submission: message building fails.
			{Submission: sub, QuestionID: "q9", Judge: testJudge("j1", "grader")},
			{Submission: sub, QuestionID: "q1", Judge: testJudge("j1", "grader")},
		},
	}
	engine := &Engine{Store: store, LLM: staticCompleter("Verdict: pass"), Resolver: noopResolver}

	completed, failed := engine.Execute(context.Background(), "run-1", plan, nil)
	// The sibling still completes.
	assert.Equal(t, 1, completed)
	assert.Equal(t, 1, failed)
	require.Len(t, store.evaluations, 2)

	byQuestion := map[string]db.Evaluation{}
	for _, e := range store.evaluations {
		byQuestion[e.QuestionID] = e
	}
	assert.Equal(t, VerdictInconclusive, byQuestion["q9"].Verdict)
	assert.Contains(t, byQuestion["q9"].Reasoning, "Evaluation failed")
	assert.Equal(t, VerdictPass, byQuestion["q1"].Verdict)
}

func TestExecuteStorageFailureAbsorbed(t *testing.T) {
	store := newFakeStore()
	store.failEvaluationInsert = true
	engine := &Engine{Store: store, LLM: staticCompleter("Verdict: pass"), Resolver: noopResolver}

	completed, failed := engine.Execute(context.Background(), "run-1", singleEntryPlan(), nil)
	assert.Equal(t, 0, completed)
	assert.Equal(t, 1, failed)
}

func TestExecuteProgressSingleBatch(t *testing.T) {
	store := newFakeStore()
	plan := &Plan{QueueID: "queue-1"}
	for i := 0; i < 25; i++ {
		sub := testSubmission(fmt.Sprintf("s%d", i), "queue-1", "q1")
		plan.Entries = append(plan.Entries, PlanEntry{Submission: sub, QuestionID: "q1", Judge: testJudge("j1", "grader")})
	}
	engine := &Engine{Store: store, LLM: staticCompleter("Verdict: pass"), Resolver: noopResolver}

	var calls []Progress
	completed, failed := engine.Execute(context.Background(), "run-1", plan, func(p Progress) {
		calls = append(calls, p)
	})
	assert.Equal(t, 25, completed)
	assert.Equal(t, 0, failed)

	// One start call with zeros, then exactly one call for the single batch.
	require.Len(t, calls, 2)
	assert.Equal(t, Progress{Total: 25}, calls[0])
	assert.Equal(t, 25, calls[1].Completed+calls[1].Failed)
	assert.Equal(t, 25, calls[1].Total)
	assert.NotEmpty(t, calls[1].CurrentSubmission)
	assert.Equal(t, "q1", calls[1].CurrentQuestion)
}

func TestExecuteBatchesAreSequentialAndCumulative(t *testing.T) {
	store := newFakeStore()
	plan := &Plan{QueueID: "queue-1"}
	for i := 0; i < 120; i++ {
		sub := testSubmission(fmt.Sprintf("s%d", i), "queue-1", "q1")
		plan.Entries = append(plan.Entries, PlanEntry{Submission: sub, QuestionID: "q1", Judge: testJudge("j1", "grader")})
	}
	engine := &Engine{Store: store, LLM: staticCompleter("Verdict: fail"), Resolver: noopResolver}

	var calls []Progress
	completed, failed := engine.Execute(context.Background(), "run-1", plan, func(p Progress) {
		calls = append(calls, p)
	})
	assert.Equal(t, 120, completed)
	assert.Equal(t, 0, failed)

	// Start + three batches (50, 50, 20).
	require.Len(t, calls, 4)
	prev := 0
	for _, p := range calls[1:] {
		done := p.Completed + p.Failed
		assert.Greater(t, done, prev)
		prev = done
	}
	assert.Equal(t, 120, prev)
	assert.Len(t, store.evaluations, 120)
}

func TestExecuteFailuresIsolatedWithinBatch(t *testing.T) {
	store := newFakeStore()
	plan := &Plan{QueueID: "queue-1"}
	for i := 0; i < 10; i++ {
		sub := testSubmission(fmt.Sprintf("s%d", i), "queue-1", "q1")
		plan.Entries = append(plan.Entries, PlanEntry{Submission: sub, QuestionID: "q1", Judge: testJudge("j1", "grader")})
	}
	engine := &Engine{
		Store: store,
		LLM: completerFunc(func(context.Context, llm.Request) (*llm.Response, error) {
			return nil, &llm.Error{Kind: llm.KindRateLimit, Message: "slow down"}
		}),
		Resolver: noopResolver,
	}

	completed, failed := engine.Execute(context.Background(), "run-1", plan, nil)
	assert.Equal(t, 0, completed)
	assert.Equal(t, 10, failed)
	// Every entry is still represented exactly once.
	assert.Len(t, store.evaluations, 10)
	for _, e := range store.evaluations {
		assert.Equal(t, VerdictInconclusive, e.Verdict)
		assert.Contains(t, e.Reasoning, "Rate limit exceeded")
	}
}
