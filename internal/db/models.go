package db

import "time"

// Question type tags accepted at ingestion.
const (
	QuestionMultipleChoice = "multiple_choice"
	QuestionCheckbox       = "checkbox"
	QuestionFreeText       = "free_text"
	QuestionRating         = "rating"
)

type Queue struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}

type Question struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text"`
}

// Answer is loosely structured: any of the fields may be absent
// depending on the question type.
type Answer struct {
	Choice    string   `json:"choice,omitempty"`
	Choices   []string `json:"choices,omitempty"`
	Text      string   `json:"text,omitempty"`
	Reasoning string   `json:"reasoning,omitempty"`
}

type Attachment struct {
	FileName    string `json:"file_name"`
	StoragePath string `json:"storage_path"`
	MIMEType    string `json:"mime_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

type Submission struct {
	ID             string
	QueueID        string
	SubmitterName  string
	SubmitterEmail string
	CreatedAt      time.Time
	Questions      []Question
	Answers        map[string]Answer
	Attachments    []Attachment
}

// PromptConfig controls which submission fields are projected into the
// evaluation message. IncludeSubmissionMetadata is a master switch: when
// true the three specific metadata fields are included regardless of
// their own flags.
type PromptConfig struct {
	IncludeQuestionText       bool `json:"include_question_text"`
	IncludeQuestionType       bool `json:"include_question_type"`
	IncludeAnswer             bool `json:"include_answer"`
	IncludeSubmissionMetadata bool `json:"include_submission_metadata"`
	IncludeSubmitter          bool `json:"include_submitter"`
	IncludeSubmittedAt        bool `json:"include_submitted_at"`
	IncludeAttachmentInfo     bool `json:"include_attachment_info"`
}

// DefaultPromptConfig is merged in at the data-access boundary whenever a
// judge row carries no stored configuration: include everything.
func DefaultPromptConfig() PromptConfig {
	return PromptConfig{
		IncludeQuestionText:       true,
		IncludeQuestionType:       true,
		IncludeAnswer:             true,
		IncludeSubmissionMetadata: true,
		IncludeSubmitter:          true,
		IncludeSubmittedAt:        true,
		IncludeAttachmentInfo:     true,
	}
}

type Judge struct {
	ID           string
	Name         string
	SystemPrompt string
	Model        string
	Active       bool
	PromptConfig PromptConfig
	CreatedAt    time.Time
}

type JudgeAssignment struct {
	ID         string    `db:"id"`
	QueueID    string    `db:"queue_id"`
	QuestionID string    `db:"question_id"`
	JudgeID    string    `db:"judge_id"`
	CreatedAt  time.Time `db:"created_at"`
}

type JudgeSummary struct {
	JudgeID     string   `json:"judge_id"`
	JudgeName   string   `json:"judge_name"`
	Model       string   `json:"model"`
	QuestionIDs []string `json:"question_ids"`
}

type EvaluationRun struct {
	ID                string
	QueueID           string
	CreatedAt         time.Time
	JudgeSummaries    []JudgeSummary
	TotalEvaluations  int
	PassCount         int
	FailCount         int
	InconclusiveCount int
}

type Evaluation struct {
	ID           string     `db:"id"`
	RunID        string     `db:"run_id"`
	SubmissionID string     `db:"submission_id"`
	QuestionID   string     `db:"question_id"`
	JudgeID      string     `db:"judge_id"`
	JudgeName    string     `db:"judge_name"`
	Verdict      string     `db:"verdict"`
	Reasoning    string     `db:"reasoning"`
	CreatedAt    time.Time  `db:"created_at"`
	HumanVerdict *string    `db:"human_verdict"`
	HumanReason  *string    `db:"human_reasoning"`
	ReviewedBy   *string    `db:"reviewed_by"`
	ReviewedAt   *time.Time `db:"reviewed_at"`
	ReviewStatus string     `db:"review_status"`
	Disagreement bool       `db:"is_disagreement"`
}
