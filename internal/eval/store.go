package eval

import (
	"context"
	"time"

	"evalqueue/internal/db"
	"evalqueue/internal/llm"
)

// Store is the slice of the persistence layer the run engine consumes.
// *db.Store satisfies it; tests use an in-memory fake.
type Store interface {
	SubmissionsByQueue(ctx context.Context, queueID string) ([]db.Submission, error)
	AssignmentsByQueue(ctx context.Context, queueID string) ([]db.JudgeAssignment, error)
	ListJudges(ctx context.Context) ([]db.Judge, error)

	InsertRun(ctx context.Context, run db.EvaluationRun) (db.EvaluationRun, error)
	UpdateRunCounts(ctx context.Context, runID string, total, pass, fail, inconclusive int) error
	CountVerdictsByRun(ctx context.Context, runID string) (map[string]int, error)

	InsertEvaluation(ctx context.Context, e db.Evaluation) (db.Evaluation, error)
	GetEvaluation(ctx context.Context, id string) (db.Evaluation, error)
	EvaluationsByRun(ctx context.Context, runID string) ([]db.Evaluation, error)
	UpdateEvaluationReview(ctx context.Context, id, humanVerdict, humanReasoning, reviewedBy string, reviewedAt time.Time, disagreement bool) error
}

// URLResolver resolves a stored attachment path to a time-limited
// access URL. *storage.Client satisfies it.
type URLResolver interface {
	ResolveTemporaryURL(ctx context.Context, storagePath string) (string, error)
}

// ChatCompleter is the outbound LLM call. *llm.Client satisfies it.
type ChatCompleter interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}
