package eval

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"evalqueue/internal/db"
	"evalqueue/internal/llm"
)

const (
	// batchSize bounds how many evaluations run concurrently. Batches
	// execute strictly one after another.
	batchSize = 50

	maxOutputTokens = 1024
	temperature     = 0.3
)

// Progress is reported once at start (zeros), after every completed
// batch, and its final invocation carries the terminal totals.
type Progress struct {
	Total             int
	Completed         int
	Failed            int
	CurrentSubmission string
	CurrentQuestion   string
}

type ProgressFunc func(Progress)

// Engine drives a plan through the message builder and LLM client in
// bounded-concurrency batches, persisting one evaluation per entry.
type Engine struct {
	Store    Store
	LLM      ChatCompleter
	Resolver URLResolver
}

// Execute runs every plan entry tagged with runID. An entry's failure
// never aborts its siblings: failures become persisted inconclusive
// fallback records and count toward failed.
func (e *Engine) Execute(ctx context.Context, runID string, plan *Plan, progress ProgressFunc) (completed, failed int) {
	total := len(plan.Entries)
	report := func(p Progress) {
		if progress != nil {
			progress(p)
		}
	}
	report(Progress{Total: total})

	for start := 0; start < total; start += batchSize {
		end := min(start+batchSize, total)
		batch := plan.Entries[start:end]

		results := make([]bool, len(batch))
		var wg sync.WaitGroup
		for i := range batch {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = e.evaluateEntry(ctx, runID, batch[i])
			}(i)
		}
		wg.Wait()

		for _, ok := range results {
			if ok {
				completed++
			} else {
				failed++
			}
		}
		last := batch[len(batch)-1]
		report(Progress{
			Total:             total,
			Completed:         completed,
			Failed:            failed,
			CurrentSubmission: last.Submission.ID,
			CurrentQuestion:   last.QuestionID,
		})
	}
	return completed, failed
}

// evaluateEntry processes one (submission, question, judge) triple and
// reports whether it completed. Every outcome, success or failure,
// leaves exactly one evaluation row for the entry.
func (e *Engine) evaluateEntry(ctx context.Context, runID string, entry PlanEntry) bool {
	messages, err := BuildMessages(ctx, e.Resolver, entry.Judge, entry.Submission, entry.QuestionID)
	if err != nil {
		e.recordFailure(ctx, runID, entry, err)
		return false
	}

	resp, err := e.LLM.Complete(ctx, llm.Request{
		Messages:    messages,
		MaxTokens:   maxOutputTokens,
		Temperature: temperature,
	})
	if err != nil {
		e.recordFailure(ctx, runID, entry, err)
		return false
	}

	verdict, reasoning := ParseVerdict(resp.Content)
	if _, err := e.Store.InsertEvaluation(ctx, db.Evaluation{
		RunID:        runID,
		SubmissionID: entry.Submission.ID,
		QuestionID:   entry.QuestionID,
		JudgeID:      entry.Judge.ID,
		JudgeName:    entry.Judge.Name,
		Verdict:      verdict,
		Reasoning:    reasoning,
	}); err != nil {
		e.recordFailure(ctx, runID, entry, err)
		return false
	}
	return true
}

// recordFailure persists the fallback inconclusive evaluation so the
// entry's triple is still represented in the run. Best effort: a write
// failure here is logged, not retried.
func (e *Engine) recordFailure(ctx context.Context, runID string, entry PlanEntry, cause error) {
	if _, err := e.Store.InsertEvaluation(ctx, db.Evaluation{
		RunID:        runID,
		SubmissionID: entry.Submission.ID,
		QuestionID:   entry.QuestionID,
		JudgeID:      entry.Judge.ID,
		JudgeName:    entry.Judge.Name,
		Verdict:      VerdictInconclusive,
		Reasoning:    fmt.Sprintf("Evaluation failed: %s", failureMessage(cause)),
	}); err != nil {
		log.Printf("warn: record fallback evaluation for submission %s question %s judge %s: %v",
			entry.Submission.ID, entry.QuestionID, entry.Judge.ID, err)
	}
}

// failureMessage turns a classified failure into business terms for the
// persisted reasoning text.
func failureMessage(err error) string {
	var apiErr *llm.Error
	if errors.As(err, &apiErr) {
		return apiErr.Describe()
	}
	return err.Error()
}
