package schemas

import (
	"time"

	"evalqueue/internal/db"
)

type CreateQueueRequest struct {
	Name string `json:"name"`
}

type QueueOut struct {
	QueueID   string    `json:"queue_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type JudgeRequest struct {
	Name         string           `json:"name"`
	SystemPrompt string           `json:"system_prompt"`
	Model        string           `json:"model,omitempty"`
	Active       *bool            `json:"active,omitempty"`
	PromptConfig *db.PromptConfig `json:"prompt_config,omitempty"`
}

type JudgeOut struct {
	JudgeID      string          `json:"judge_id"`
	Name         string          `json:"name"`
	SystemPrompt string          `json:"system_prompt"`
	Model        string          `json:"model"`
	Active       bool            `json:"active"`
	PromptConfig db.PromptConfig `json:"prompt_config"`
	CreatedAt    time.Time       `json:"created_at"`
}

type AssignRequest struct {
	QuestionID string `json:"question_id"`
	JudgeID    string `json:"judge_id"`
}

type AssignmentOut struct {
	AssignmentID string    `json:"assignment_id"`
	QueueID      string    `json:"queue_id"`
	QuestionID   string    `json:"question_id"`
	JudgeID      string    `json:"judge_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// AttachmentIn carries raw attachment bytes at ingestion; the API
// stores them and records the storage path on the submission.
type AttachmentIn struct {
	FileName   string `json:"file_name"`
	MIMEType   string `json:"mime_type"`
	DataBase64 string `json:"data_base64"`
}

type CreateSubmissionRequest struct {
	SubmitterName  string               `json:"submitter_name"`
	SubmitterEmail string               `json:"submitter_email"`
	Questions      []db.Question        `json:"questions"`
	Answers        map[string]db.Answer `json:"answers"`
	Attachments    []AttachmentIn       `json:"attachments,omitempty"`
}

type SubmissionOut struct {
	SubmissionID string          `json:"submission_id"`
	QueueID      string          `json:"queue_id"`
	CreatedAt    time.Time       `json:"created_at"`
	Attachments  []db.Attachment `json:"attachments,omitempty"`
}

type RunOut struct {
	RunID             string            `json:"run_id"`
	QueueID           string            `json:"queue_id"`
	CreatedAt         time.Time         `json:"created_at"`
	JudgeSummaries    []db.JudgeSummary `json:"judge_summaries"`
	TotalEvaluations  int               `json:"total_evaluations"`
	PassCount         int               `json:"pass_count"`
	FailCount         int               `json:"fail_count"`
	InconclusiveCount int               `json:"inconclusive_count"`
}

type EvaluationOut struct {
	EvaluationID   string     `json:"evaluation_id"`
	RunID          string     `json:"run_id"`
	SubmissionID   string     `json:"submission_id"`
	QuestionID     string     `json:"question_id"`
	JudgeID        string     `json:"judge_id"`
	JudgeName      string     `json:"judge_name"`
	Verdict        string     `json:"verdict"`
	Reasoning      string     `json:"reasoning"`
	CreatedAt      time.Time  `json:"created_at"`
	HumanVerdict   *string    `json:"human_verdict,omitempty"`
	HumanReasoning *string    `json:"human_reasoning,omitempty"`
	ReviewedBy     *string    `json:"reviewed_by,omitempty"`
	ReviewedAt     *time.Time `json:"reviewed_at,omitempty"`
	ReviewStatus   string     `json:"review_status"`
	IsDisagreement bool       `json:"is_disagreement"`
}

type ReviewRequest struct {
	HumanVerdict string `json:"human_verdict"`
	Reasoning    string `json:"reasoning"`
	Reviewer     string `json:"reviewer"`
}
