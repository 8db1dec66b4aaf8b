package eval

import (
	"context"
	"testing"
	"time"

	"evalqueue/internal/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insertedEvaluation(t *testing.T, store *fakeStore, verdict string) db.Evaluation {
	t.Helper()
	ev, err := store.InsertEvaluation(context.Background(), db.Evaluation{
		RunID:        "run-1",
		SubmissionID: "s1",
		QuestionID:   "q1",
		JudgeID:      "j1",
		JudgeName:    "grader",
		Verdict:      verdict,
		Reasoning:    "model reasoning",
	})
	require.NoError(t, err)
	return ev
}

func TestSubmitReviewDisagreement(t *testing.T) {
	cases := []struct {
		name         string
		aiVerdict    string
		humanVerdict string
		disagreement bool
	}{
		{"human pass over ai fail", VerdictFail, HumanPass, true},
		{"human fail over ai pass", VerdictPass, HumanFail, true},
		{"human agrees pass", VerdictPass, HumanPass, false},
		{"human agrees fail", VerdictFail, HumanFail, false},
		{"human pass over ai inconclusive", VerdictInconclusive, HumanPass, true},
		{"bad data never disagrees", VerdictPass, HumanBadData, false},
		{"ambiguous question never disagrees", VerdictFail, HumanAmbiguousQuestion, false},
		{"insufficient context never disagrees", VerdictInconclusive, HumanInsufficientContext, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeStore()
			ev := insertedEvaluation(t, store, tc.aiVerdict)

			out, err := SubmitReview(context.Background(), store, ev.ID, tc.humanVerdict, "checked by hand", "reviewer@example.com")
			require.NoError(t, err)
			assert.Equal(t, tc.disagreement, out.Disagreement)
			require.NotNil(t, out.HumanVerdict)
			assert.Equal(t, tc.humanVerdict, *out.HumanVerdict)
			assert.Equal(t, ReviewCompleted, out.ReviewStatus)

			stored, err := store.GetEvaluation(context.Background(), ev.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.disagreement, stored.Disagreement)
		})
	}
}

func TestSubmitReviewPopulatesReviewFields(t *testing.T) {
	store := newFakeStore()
	ev := insertedEvaluation(t, store, VerdictPass)

	before := time.Now().UTC()
	out, err := SubmitReview(context.Background(), store, ev.ID, HumanFail, "the cited source does not exist", "reviewer@example.com")
	require.NoError(t, err)

	require.NotNil(t, out.HumanReason)
	assert.Equal(t, "the cited source does not exist", *out.HumanReason)
	require.NotNil(t, out.ReviewedBy)
	assert.Equal(t, "reviewer@example.com", *out.ReviewedBy)
	require.NotNil(t, out.ReviewedAt)
	assert.False(t, out.ReviewedAt.Before(before))
	// The AI verdict is preserved alongside the override.
	assert.Equal(t, VerdictPass, out.Verdict)
	assert.Equal(t, "model reasoning", out.Reasoning)
}

func TestSubmitReviewInvalidVerdict(t *testing.T) {
	store := newFakeStore()
	ev := insertedEvaluation(t, store, VerdictPass)

	_, err := SubmitReview(context.Background(), store, ev.ID, "maybe", "hmm", "reviewer@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid human verdict")

	// Nothing was written.
	stored, err := store.GetEvaluation(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.HumanVerdict)
	assert.Equal(t, ReviewPending, stored.ReviewStatus)
}

func TestSubmitReviewNotFound(t *testing.T) {
	store := newFakeStore()
	_, err := SubmitReview(context.Background(), store, "missing-id", HumanPass, "looks fine", "reviewer@example.com")
	assert.ErrorIs(t, err, ErrEvaluationNotFound)
}

func TestSubmitReviewOverwritesPriorReview(t *testing.T) {
	store := newFakeStore()
	ev := insertedEvaluation(t, store, VerdictFail)

	_, err := SubmitReview(context.Background(), store, ev.ID, HumanPass, "first look", "reviewer@example.com")
	require.NoError(t, err)

	out, err := SubmitReview(context.Background(), store, ev.ID, HumanBadData, "submission is corrupted", "lead@example.com")
	require.NoError(t, err)
	assert.Equal(t, HumanBadData, *out.HumanVerdict)
	assert.Equal(t, "submission is corrupted", *out.HumanReason)
	assert.Equal(t, "lead@example.com", *out.ReviewedBy)
	assert.False(t, out.Disagreement)

	stored, err := store.GetEvaluation(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.Equal(t, HumanBadData, *stored.HumanVerdict)
	assert.False(t, stored.Disagreement)
}
