package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Store wraps the sqlx connection with the queries the rest of the
// service consumes. Loosely structured sub-documents (questions,
// answers, prompt config, judge summaries) live in jsonb columns and
// are decoded here, at the data boundary.
type Store struct {
	DB *sqlx.DB
}

func NewStore(dbx *sqlx.DB) *Store {
	return &Store{DB: dbx}
}

// --- row types (jsonb columns as raw bytes) ---

type submissionRow struct {
	ID             string    `db:"id"`
	QueueID        string    `db:"queue_id"`
	SubmitterName  string    `db:"submitter_name"`
	SubmitterEmail string    `db:"submitter_email"`
	CreatedAt      time.Time `db:"created_at"`
	Questions      []byte    `db:"questions"`
	Answers        []byte    `db:"answers"`
	Attachments    []byte    `db:"attachments"`
}

func (r submissionRow) decode() (Submission, error) {
	s := Submission{
		ID:             r.ID,
		QueueID:        r.QueueID,
		SubmitterName:  r.SubmitterName,
		SubmitterEmail: r.SubmitterEmail,
		CreatedAt:      r.CreatedAt,
		Answers:        map[string]Answer{},
	}
	if err := json.Unmarshal(r.Questions, &s.Questions); err != nil {
		return s, fmt.Errorf("decode questions for submission %s: %w", r.ID, err)
	}
	if len(r.Answers) > 0 {
		if err := json.Unmarshal(r.Answers, &s.Answers); err != nil {
			return s, fmt.Errorf("decode answers for submission %s: %w", r.ID, err)
		}
	}
	if len(r.Attachments) > 0 {
		if err := json.Unmarshal(r.Attachments, &s.Attachments); err != nil {
			return s, fmt.Errorf("decode attachments for submission %s: %w", r.ID, err)
		}
	}
	return s, nil
}

type judgeRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	SystemPrompt string    `db:"system_prompt"`
	Model        string    `db:"model"`
	Active       bool      `db:"active"`
	PromptConfig []byte    `db:"prompt_config"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r judgeRow) decode() (Judge, error) {
	j := Judge{
		ID:           r.ID,
		Name:         r.Name,
		SystemPrompt: r.SystemPrompt,
		Model:        r.Model,
		Active:       r.Active,
		PromptConfig: DefaultPromptConfig(),
		CreatedAt:    r.CreatedAt,
	}
	if len(r.PromptConfig) > 0 && string(r.PromptConfig) != "null" {
		if err := json.Unmarshal(r.PromptConfig, &j.PromptConfig); err != nil {
			return j, fmt.Errorf("decode prompt config for judge %s: %w", r.ID, err)
		}
	}
	return j, nil
}

type runRow struct {
	ID                string    `db:"id"`
	QueueID           string    `db:"queue_id"`
	CreatedAt         time.Time `db:"created_at"`
	JudgeSummaries    []byte    `db:"judge_summaries"`
	TotalEvaluations  int       `db:"total_evaluations"`
	PassCount         int       `db:"pass_count"`
	FailCount         int       `db:"fail_count"`
	InconclusiveCount int       `db:"inconclusive_count"`
}

func (r runRow) decode() (EvaluationRun, error) {
	run := EvaluationRun{
		ID:                r.ID,
		QueueID:           r.QueueID,
		CreatedAt:         r.CreatedAt,
		TotalEvaluations:  r.TotalEvaluations,
		PassCount:         r.PassCount,
		FailCount:         r.FailCount,
		InconclusiveCount: r.InconclusiveCount,
	}
	if len(r.JudgeSummaries) > 0 {
		if err := json.Unmarshal(r.JudgeSummaries, &run.JudgeSummaries); err != nil {
			return run, fmt.Errorf("decode judge summaries for run %s: %w", r.ID, err)
		}
	}
	return run, nil
}

// --- queues ---

func (s *Store) InsertQueue(ctx context.Context, name string) (Queue, error) {
	q := Queue{ID: uuid.NewString(), Name: name}
	err := s.DB.GetContext(ctx, &q.CreatedAt,
		`insert into queues(id, name) values($1,$2) returning created_at`, q.ID, q.Name)
	return q, err
}

func (s *Store) GetQueue(ctx context.Context, id string) (Queue, error) {
	var q Queue
	err := s.DB.GetContext(ctx, &q, `select * from queues where id=$1`, id)
	return q, err
}

// --- submissions ---

func (s *Store) InsertSubmission(ctx context.Context, sub Submission) (Submission, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	questions, err := json.Marshal(sub.Questions)
	if err != nil {
		return sub, err
	}
	answers, err := json.Marshal(sub.Answers)
	if err != nil {
		return sub, err
	}
	attachments, err := json.Marshal(sub.Attachments)
	if err != nil {
		return sub, err
	}
	err = s.DB.GetContext(ctx, &sub.CreatedAt,
		`insert into submissions(id, queue_id, submitter_name, submitter_email, questions, answers, attachments)
		 values($1,$2,$3,$4,$5,$6,$7) returning created_at`,
		sub.ID, sub.QueueID, sub.SubmitterName, sub.SubmitterEmail, questions, answers, attachments)
	return sub, err
}

func (s *Store) SubmissionsByQueue(ctx context.Context, queueID string) ([]Submission, error) {
	var rows []submissionRow
	if err := s.DB.SelectContext(ctx, &rows,
		`select * from submissions where queue_id=$1 order by created_at`, queueID); err != nil {
		return nil, err
	}
	out := make([]Submission, 0, len(rows))
	for _, r := range rows {
		sub, err := r.decode()
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, nil
}

// --- judges ---

func (s *Store) InsertJudge(ctx context.Context, j Judge) (Judge, error) {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	cfg, err := json.Marshal(j.PromptConfig)
	if err != nil {
		return j, err
	}
	err = s.DB.GetContext(ctx, &j.CreatedAt,
		`insert into judges(id, name, system_prompt, model, active, prompt_config)
		 values($1,$2,$3,$4,$5,$6) returning created_at`,
		j.ID, j.Name, j.SystemPrompt, j.Model, j.Active, cfg)
	return j, err
}

func (s *Store) UpdateJudge(ctx context.Context, j Judge) error {
	cfg, err := json.Marshal(j.PromptConfig)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx,
		`update judges set name=$2, system_prompt=$3, model=$4, active=$5, prompt_config=$6 where id=$1`,
		j.ID, j.Name, j.SystemPrompt, j.Model, j.Active, cfg)
	return err
}

func (s *Store) GetJudge(ctx context.Context, id string) (Judge, error) {
	var r judgeRow
	if err := s.DB.GetContext(ctx, &r, `select * from judges where id=$1`, id); err != nil {
		return Judge{}, err
	}
	return r.decode()
}

// ListJudges returns every judge, active or not. Plan construction
// filters on the active flag itself.
func (s *Store) ListJudges(ctx context.Context) ([]Judge, error) {
	var rows []judgeRow
	if err := s.DB.SelectContext(ctx, &rows, `select * from judges order by created_at`); err != nil {
		return nil, err
	}
	out := make([]Judge, 0, len(rows))
	for _, r := range rows {
		j, err := r.decode()
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, nil
}

// --- assignments ---

// UpsertAssignment is idempotent on the (queue, question, judge)
// triple: re-assigning returns the existing row.
func (s *Store) UpsertAssignment(ctx context.Context, queueID, questionID, judgeID string) (JudgeAssignment, error) {
	var a JudgeAssignment
	err := s.DB.GetContext(ctx, &a,
		`insert into judge_assignments(id, queue_id, question_id, judge_id)
		 values($1,$2,$3,$4)
		 on conflict (queue_id, question_id, judge_id)
		 do update set queue_id = excluded.queue_id
		 returning *`,
		uuid.NewString(), queueID, questionID, judgeID)
	return a, err
}

func (s *Store) AssignmentsByQueue(ctx context.Context, queueID string) ([]JudgeAssignment, error) {
	var out []JudgeAssignment
	err := s.DB.SelectContext(ctx, &out,
		`select * from judge_assignments where queue_id=$1 order by created_at`, queueID)
	return out, err
}

// --- evaluation runs ---

func (s *Store) InsertRun(ctx context.Context, run EvaluationRun) (EvaluationRun, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	summaries, err := json.Marshal(run.JudgeSummaries)
	if err != nil {
		return run, err
	}
	err = s.DB.GetContext(ctx, &run.CreatedAt,
		`insert into evaluation_runs(id, queue_id, judge_summaries)
		 values($1,$2,$3) returning created_at`,
		run.ID, run.QueueID, summaries)
	return run, err
}

func (s *Store) UpdateRunCounts(ctx context.Context, runID string, total, pass, fail, inconclusive int) error {
	_, err := s.DB.ExecContext(ctx,
		`update evaluation_runs
		 set total_evaluations=$2, pass_count=$3, fail_count=$4, inconclusive_count=$5
		 where id=$1`,
		runID, total, pass, fail, inconclusive)
	return err
}

func (s *Store) RunsByQueue(ctx context.Context, queueID string) ([]EvaluationRun, error) {
	var rows []runRow
	if err := s.DB.SelectContext(ctx, &rows,
		`select * from evaluation_runs where queue_id=$1 order by created_at desc`, queueID); err != nil {
		return nil, err
	}
	out := make([]EvaluationRun, 0, len(rows))
	for _, r := range rows {
		run, err := r.decode()
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, nil
}

func (s *Store) LatestRun(ctx context.Context, queueID string) (EvaluationRun, error) {
	var r runRow
	if err := s.DB.GetContext(ctx, &r,
		`select * from evaluation_runs where queue_id=$1 order by created_at desc limit 1`, queueID); err != nil {
		return EvaluationRun{}, err
	}
	return r.decode()
}

// --- evaluations ---

func (s *Store) InsertEvaluation(ctx context.Context, e Evaluation) (Evaluation, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	err := s.DB.GetContext(ctx, &e.CreatedAt,
		`insert into evaluations(id, run_id, submission_id, question_id, judge_id, judge_name, verdict, reasoning)
		 values($1,$2,$3,$4,$5,$6,$7,$8) returning created_at`,
		e.ID, e.RunID, e.SubmissionID, e.QuestionID, e.JudgeID, e.JudgeName, e.Verdict, e.Reasoning)
	return e, err
}

func (s *Store) GetEvaluation(ctx context.Context, id string) (Evaluation, error) {
	var e Evaluation
	err := s.DB.GetContext(ctx, &e, `select * from evaluations where id=$1`, id)
	return e, err
}

func (s *Store) EvaluationsByRun(ctx context.Context, runID string) ([]Evaluation, error) {
	var out []Evaluation
	err := s.DB.SelectContext(ctx, &out,
		`select * from evaluations where run_id=$1 order by created_at`, runID)
	return out, err
}

// CountVerdictsByRun recomputes the run aggregates from the persisted
// evaluations, partitioned by verdict.
func (s *Store) CountVerdictsByRun(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := s.DB.QueryxContext(ctx,
		`select verdict, count(1) from evaluations where run_id=$1 group by verdict`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var verdict string
		var n int
		if err := rows.Scan(&verdict, &n); err != nil {
			return nil, err
		}
		counts[verdict] = n
	}
	return counts, rows.Err()
}

// UpdateEvaluationReview overwrites the human-review overlay. These are
// the only evaluation fields ever mutated post-creation.
func (s *Store) UpdateEvaluationReview(ctx context.Context, id, humanVerdict, humanReasoning, reviewedBy string, reviewedAt time.Time, disagreement bool) error {
	_, err := s.DB.ExecContext(ctx,
		`update evaluations
		 set human_verdict=$2, human_reasoning=$3, reviewed_by=$4, reviewed_at=$5,
		     review_status='completed', is_disagreement=$6
		 where id=$1`,
		id, humanVerdict, humanReasoning, reviewedBy, reviewedAt, disagreement)
	return err
}
