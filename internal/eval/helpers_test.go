package eval

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"evalqueue/internal/db"
	"evalqueue/internal/llm"

	"github.com/google/uuid"
)

// fakeStore is an in-memory Store for engine/plan/review tests.
type fakeStore struct {
	mu          sync.Mutex
	submissions map[string][]db.Submission
	assignments map[string][]db.JudgeAssignment
	judges      []db.Judge
	runs        map[string]db.EvaluationRun
	evaluations []db.Evaluation

	failEvaluationInsert bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		submissions: map[string][]db.Submission{},
		assignments: map[string][]db.JudgeAssignment{},
		runs:        map[string]db.EvaluationRun{},
	}
}

func (f *fakeStore) SubmissionsByQueue(_ context.Context, queueID string) ([]db.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submissions[queueID], nil
}

func (f *fakeStore) AssignmentsByQueue(_ context.Context, queueID string) ([]db.JudgeAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.assignments[queueID], nil
}

func (f *fakeStore) ListJudges(_ context.Context) ([]db.Judge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.judges, nil
}

func (f *fakeStore) InsertRun(_ context.Context, run db.EvaluationRun) (db.EvaluationRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	run.CreatedAt = time.Now().UTC()
	f.runs[run.ID] = run
	return run, nil
}

func (f *fakeStore) UpdateRunCounts(_ context.Context, runID string, total, pass, fail, inconclusive int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[runID]
	if !ok {
		return fmt.Errorf("run %s not found", runID)
	}
	run.TotalEvaluations = total
	run.PassCount = pass
	run.FailCount = fail
	run.InconclusiveCount = inconclusive
	f.runs[runID] = run
	return nil
}

func (f *fakeStore) CountVerdictsByRun(_ context.Context, runID string) (map[string]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[string]int{}
	for _, e := range f.evaluations {
		if e.RunID == runID {
			counts[e.Verdict]++
		}
	}
	return counts, nil
}

func (f *fakeStore) InsertEvaluation(_ context.Context, e db.Evaluation) (db.Evaluation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failEvaluationInsert {
		return e, errors.New("insert refused")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = time.Now().UTC()
	e.ReviewStatus = ReviewPending
	f.evaluations = append(f.evaluations, e)
	return e, nil
}

func (f *fakeStore) GetEvaluation(_ context.Context, id string) (db.Evaluation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.evaluations {
		if e.ID == id {
			return e, nil
		}
	}
	return db.Evaluation{}, sql.ErrNoRows
}

func (f *fakeStore) EvaluationsByRun(_ context.Context, runID string) ([]db.Evaluation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.Evaluation
	for _, e := range f.evaluations {
		if e.RunID == runID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateEvaluationReview(_ context.Context, id, humanVerdict, humanReasoning, reviewedBy string, reviewedAt time.Time, disagreement bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.evaluations {
		if f.evaluations[i].ID == id {
			f.evaluations[i].HumanVerdict = &humanVerdict
			f.evaluations[i].HumanReason = &humanReasoning
			f.evaluations[i].ReviewedBy = &reviewedBy
			at := reviewedAt
			f.evaluations[i].ReviewedAt = &at
			f.evaluations[i].ReviewStatus = ReviewCompleted
			f.evaluations[i].Disagreement = disagreement
			return nil
		}
	}
	return sql.ErrNoRows
}

// completerFunc adapts a function to ChatCompleter.
type completerFunc func(ctx context.Context, req llm.Request) (*llm.Response, error)

func (f completerFunc) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	return f(ctx, req)
}

func staticCompleter(content string) ChatCompleter {
	return completerFunc(func(context.Context, llm.Request) (*llm.Response, error) {
		return &llm.Response{Content: content}, nil
	})
}

// sequenceCompleter hands out the replies in call order, repeating the
// last one once exhausted. Safe for concurrent entries within a batch.
func sequenceCompleter(replies []string) ChatCompleter {
	var mu sync.Mutex
	var n int
	return completerFunc(func(context.Context, llm.Request) (*llm.Response, error) {
		mu.Lock()
		defer mu.Unlock()
		i := n
		if i >= len(replies) {
			i = len(replies) - 1
		}
		n++
		return &llm.Response{Content: replies[i]}, nil
	})
}

// resolverFunc adapts a function to URLResolver.
type resolverFunc func(ctx context.Context, storagePath string) (string, error)

func (f resolverFunc) ResolveTemporaryURL(ctx context.Context, storagePath string) (string, error) {
	return f(ctx, storagePath)
}

var noopResolver = resolverFunc(func(_ context.Context, path string) (string, error) {
	return "https://files.example.com/" + path, nil
})

// --- fixture builders ---

func testJudge(id, name string) db.Judge {
	return db.Judge{
		ID:           id,
		Name:         name,
		SystemPrompt: "You are a strict grader.",
		Model:        "test-model",
		Active:       true,
		PromptConfig: db.DefaultPromptConfig(),
	}
}

func testSubmission(id, queueID string, questionIDs ...string) db.Submission {
	sub := db.Submission{
		ID:             id,
		QueueID:        queueID,
		SubmitterName:  "Ada",
		SubmitterEmail: "ada@example.com",
		CreatedAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Answers:        map[string]db.Answer{},
	}
	for _, qid := range questionIDs {
		sub.Questions = append(sub.Questions, db.Question{ID: qid, Type: db.QuestionFreeText, Text: "Q " + qid})
		sub.Answers[qid] = db.Answer{Text: "answer to " + qid}
	}
	return sub
}
