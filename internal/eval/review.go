package eval

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"evalqueue/internal/db"
)

var ErrEvaluationNotFound = errors.New("evaluation not found")

// SubmitReview records a human verdict for an existing evaluation. A
// human verdict of pass or fail that differs from the AI verdict is a
// disagreement; the data-quality verdicts never are. Re-invoking simply
// overwrites the prior override.
func SubmitReview(ctx context.Context, store Store, evaluationID, humanVerdict, reasoning, reviewer string) (db.Evaluation, error) {
	if !ValidHumanVerdict(humanVerdict) {
		return db.Evaluation{}, fmt.Errorf("invalid human verdict %q", humanVerdict)
	}

	ev, err := store.GetEvaluation(ctx, evaluationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return db.Evaluation{}, ErrEvaluationNotFound
		}
		return db.Evaluation{}, fmt.Errorf("load evaluation %s: %w", evaluationID, err)
	}

	disagreement := (humanVerdict == HumanPass || humanVerdict == HumanFail) && humanVerdict != ev.Verdict
	now := time.Now().UTC()
	if err := store.UpdateEvaluationReview(ctx, evaluationID, humanVerdict, reasoning, reviewer, now, disagreement); err != nil {
		return db.Evaluation{}, fmt.Errorf("write review for %s: %w", evaluationID, err)
	}

	ev.HumanVerdict = &humanVerdict
	ev.HumanReason = &reasoning
	ev.ReviewedBy = &reviewer
	ev.ReviewedAt = &now
	ev.ReviewStatus = ReviewCompleted
	ev.Disagreement = disagreement
	return ev, nil
}
