package eval

import (
	"context"
	"fmt"
	"log"

	"evalqueue/internal/db"
)

// Runner owns the run lifecycle: plan → run record → batch execution →
// aggregate write-back.
type Runner struct {
	Store    Store
	LLM      ChatCompleter
	Resolver URLResolver
}

// RunQueueEvaluations executes a full evaluation run for a queue. Plan
// errors are returned before any run record exists; once the run row is
// created the run proceeds to completion, absorbing per-entry failures.
func (r *Runner) RunQueueEvaluations(ctx context.Context, queueID string, progress ProgressFunc) (db.EvaluationRun, error) {
	plan, err := BuildPlan(ctx, r.Store, queueID)
	if err != nil {
		return db.EvaluationRun{}, err
	}

	run, err := r.Store.InsertRun(ctx, db.EvaluationRun{
		QueueID:        queueID,
		JudgeSummaries: plan.JudgeSummaries,
	})
	if err != nil {
		return db.EvaluationRun{}, fmt.Errorf("create run: %w", err)
	}

	engine := &Engine{Store: r.Store, LLM: r.LLM, Resolver: r.Resolver}
	completed, failed := engine.Execute(ctx, run.ID, plan, progress)
	log.Printf("run %s for queue %s: %d completed, %d failed of %d",
		run.ID, queueID, completed, failed, len(plan.Entries))

	// Aggregates come from one re-aggregation query over the persisted
	// rows, not from in-flight counters.
	counts, err := r.Store.CountVerdictsByRun(ctx, run.ID)
	if err != nil {
		return run, fmt.Errorf("aggregate run %s: %w", run.ID, err)
	}
	run.PassCount = counts[VerdictPass]
	run.FailCount = counts[VerdictFail]
	run.InconclusiveCount = counts[VerdictInconclusive]
	run.TotalEvaluations = run.PassCount + run.FailCount + run.InconclusiveCount
	if err := r.Store.UpdateRunCounts(ctx, run.ID,
		run.TotalEvaluations, run.PassCount, run.FailCount, run.InconclusiveCount); err != nil {
		return run, fmt.Errorf("finalize run %s: %w", run.ID, err)
	}
	return run, nil
}
