package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"evalqueue/internal/db"
	"evalqueue/internal/llm"
)

// formatInstructions tell the judge how to shape its answer so the
// verdict parser can read it back.
const formatInstructions = `Respond in exactly this format:
Verdict: pass, fail, or inconclusive
Reasoning: <explain your verdict>`

// BuildMessages assembles the system/user message pair for one plan
// entry. The system message is the judge's rubric verbatim; the user
// message projects the submission fields selected by the judge's prompt
// configuration. Image attachments turn the user message multimodal,
// with one resolved time-limited URL per image.
func BuildMessages(ctx context.Context, resolver URLResolver, judge db.Judge, sub db.Submission, questionID string) ([]llm.Message, error) {
	var question *db.Question
	for i := range sub.Questions {
		if sub.Questions[i].ID == questionID {
			question = &sub.Questions[i]
			break
		}
	}
	if question == nil {
		return nil, fmt.Errorf("question %q not found in submission %s", questionID, sub.ID)
	}

	cfg := judge.PromptConfig
	var b strings.Builder
	fmt.Fprintf(&b, "Question ID: %s\n", question.ID)
	if cfg.IncludeQuestionType {
		fmt.Fprintf(&b, "Question Type: %s\n", question.Type)
	}
	if cfg.IncludeQuestionText {
		fmt.Fprintf(&b, "Question: %s\n", question.Text)
	}
	if cfg.IncludeAnswer {
		b.WriteString(renderAnswer(sub.Answers, questionID))
	}
	b.WriteString(renderMetadata(cfg, sub))
	b.WriteString("\n")
	b.WriteString(formatInstructions)

	var imageURLs []string
	for _, att := range sub.Attachments {
		if !strings.HasPrefix(att.MIMEType, "image/") {
			continue
		}
		url, err := resolver.ResolveTemporaryURL(ctx, att.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("resolve attachment %s: %w", att.FileName, err)
		}
		imageURLs = append(imageURLs, url)
	}

	return []llm.Message{
		{Role: llm.RoleSystem, Text: judge.SystemPrompt},
		{Role: llm.RoleUser, Text: b.String(), ImageURLs: imageURLs},
	}, nil
}

func renderAnswer(answers map[string]db.Answer, questionID string) string {
	ans, ok := answers[questionID]
	if !ok {
		return "Answer: (no answer provided)\n"
	}
	raw, err := json.Marshal(ans)
	if err != nil {
		return "Answer: (no answer provided)\n"
	}
	return fmt.Sprintf("Answer: %s\n", raw)
}

// renderMetadata emits the metadata block when any of its four
// controlling flags is set. The master flag forces all three specific
// fields; the specific flags OR with it.
func renderMetadata(cfg db.PromptConfig, sub db.Submission) string {
	master := cfg.IncludeSubmissionMetadata
	submitter := master || cfg.IncludeSubmitter
	submittedAt := master || cfg.IncludeSubmittedAt
	attachmentInfo := master || cfg.IncludeAttachmentInfo
	if !submitter && !submittedAt && !attachmentInfo {
		return ""
	}

	var b strings.Builder
	b.WriteString("Submission Metadata:\n")
	if submitter {
		fmt.Fprintf(&b, "  Submitter: %s <%s>\n", sub.SubmitterName, sub.SubmitterEmail)
	}
	if submittedAt {
		fmt.Fprintf(&b, "  Submitted At: %s\n", sub.CreatedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	}
	if attachmentInfo {
		fmt.Fprintf(&b, "  Attachments: %d\n", len(sub.Attachments))
		for _, att := range sub.Attachments {
			fmt.Fprintf(&b, "    - %s (%s, %d bytes)\n", att.FileName, att.MIMEType, att.SizeBytes)
		}
	}
	return b.String()
}
