package eval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"evalqueue/internal/db"
)

// Plan-level errors. All are fatal to the run attempt: no run record is
// created and nothing executes.
var (
	ErrNoSubmissions = errors.New("queue has no submissions")
	ErrNoAssignments = errors.New("queue has no judge assignments")
	ErrNoEvaluations = errors.New("no evaluations to execute")
)

// UnassignedQuestionsError names the question ids that would receive no
// evaluation: every question appearing in a submission must be covered
// by at least one active assigned judge.
type UnassignedQuestionsError struct {
	QuestionIDs []string
}

func (e *UnassignedQuestionsError) Error() string {
	return fmt.Sprintf("questions without an active assigned judge: %s", strings.Join(e.QuestionIDs, ", "))
}

// PlanEntry is one (submission, question, judge) triple to evaluate.
type PlanEntry struct {
	Submission db.Submission
	QuestionID string
	Judge      db.Judge
}

type Plan struct {
	QueueID        string
	Entries        []PlanEntry
	JudgeSummaries []db.JudgeSummary
}

// BuildPlan loads the queue's submissions, assignments and all judges,
// and computes the full cross-product of (submission × question ×
// active assigned judge). Assignments referencing a missing or inactive
// judge are skipped without diagnostic; coverage is enforced afterwards.
func BuildPlan(ctx context.Context, store Store, queueID string) (*Plan, error) {
	submissions, err := store.SubmissionsByQueue(ctx, queueID)
	if err != nil {
		return nil, fmt.Errorf("load submissions: %w", err)
	}
	assignments, err := store.AssignmentsByQueue(ctx, queueID)
	if err != nil {
		return nil, fmt.Errorf("load assignments: %w", err)
	}
	judges, err := store.ListJudges(ctx)
	if err != nil {
		return nil, fmt.Errorf("load judges: %w", err)
	}

	if len(submissions) == 0 {
		return nil, ErrNoSubmissions
	}
	if len(assignments) == 0 {
		return nil, ErrNoAssignments
	}

	judgeByID := make(map[string]db.Judge, len(judges))
	for _, j := range judges {
		judgeByID[j.ID] = j
	}
	assignmentsByQuestion := map[string][]db.JudgeAssignment{}
	for _, a := range assignments {
		assignmentsByQuestion[a.QuestionID] = append(assignmentsByQuestion[a.QuestionID], a)
	}

	plan := &Plan{QueueID: queueID}
	entriesPerQuestion := map[string]int{}
	var questionOrder []string
	for _, sub := range submissions {
		for _, q := range sub.Questions {
			if _, seen := entriesPerQuestion[q.ID]; !seen {
				questionOrder = append(questionOrder, q.ID)
				entriesPerQuestion[q.ID] = 0
			}
			for _, a := range assignmentsByQuestion[q.ID] {
				judge, ok := judgeByID[a.JudgeID]
				if !ok || !judge.Active {
					continue
				}
				plan.Entries = append(plan.Entries, PlanEntry{
					Submission: sub,
					QuestionID: q.ID,
					Judge:      judge,
				})
				entriesPerQuestion[q.ID]++
			}
		}
	}

	var unassigned []string
	for _, qid := range questionOrder {
		if entriesPerQuestion[qid] == 0 {
			unassigned = append(unassigned, qid)
		}
	}
	if len(unassigned) > 0 {
		return nil, &UnassignedQuestionsError{QuestionIDs: unassigned}
	}
	if len(plan.Entries) == 0 {
		return nil, ErrNoEvaluations
	}

	plan.JudgeSummaries = summarizeJudges(plan.Entries)
	return plan, nil
}

// summarizeJudges lists, per judge appearing in the plan, the distinct
// question ids it covers, in plan order.
func summarizeJudges(entries []PlanEntry) []db.JudgeSummary {
	index := map[string]int{}
	covered := map[string]map[string]bool{}
	var summaries []db.JudgeSummary
	for _, e := range entries {
		i, ok := index[e.Judge.ID]
		if !ok {
			i = len(summaries)
			index[e.Judge.ID] = i
			covered[e.Judge.ID] = map[string]bool{}
			summaries = append(summaries, db.JudgeSummary{
				JudgeID:   e.Judge.ID,
				JudgeName: e.Judge.Name,
				Model:     e.Judge.Model,
			})
		}
		if !covered[e.Judge.ID][e.QuestionID] {
			covered[e.Judge.ID][e.QuestionID] = true
			summaries[i].QuestionIDs = append(summaries[i].QuestionIDs, e.QuestionID)
		}
	}
	return summaries
}
