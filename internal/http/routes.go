package http

import (
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	m "github.com/go-chi/chi/v5/middleware"
	"github.com/hibiken/asynq"

	"evalqueue/internal/db"
	"evalqueue/internal/eval"
	"evalqueue/internal/schemas"
	"evalqueue/internal/storage"
)

// TaskRunEvaluations is the asynq task type consumed by the worker; the
// payload is the queue id.
const TaskRunEvaluations = "run_evaluations"

type Server struct {
	Store *db.Store
	S3    *storage.Client
	Asynq *asynq.Client
}

func NewServer(store *db.Store, s3c *storage.Client, asq *asynq.Client) *http.Server {
	s := &Server{Store: store, S3: s3c, Asynq: asq}
	r := chi.NewRouter()
	r.Use(m.RequestID, m.RealIP, m.Logger, m.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(RequireAPIToken)
		r.Post("/queues", s.createQueue)
		r.Get("/queues/{id}", s.getQueue)

		r.Post("/judges", s.createJudge)
		r.Get("/judges", s.listJudges)
		r.Get("/judges/{id}", s.getJudge)
		r.Put("/judges/{id}", s.updateJudge)

		r.Put("/queues/{id}/assignments", s.assignJudge)
		r.Get("/queues/{id}/assignments", s.listAssignments)

		r.Post("/queues/{id}/submissions", s.createSubmission)

		r.Post("/queues/{id}/runs", s.startRun)
		r.Get("/queues/{id}/runs", s.listRuns)
		r.Get("/queues/{id}/runs/latest", s.latestRun)
		r.Get("/runs/{id}/evaluations", s.listEvaluations)

		r.Post("/evaluations/{id}/review", s.reviewEvaluation)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := store.DB.Ping(); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"status":"db error"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	return &http.Server{Addr: ":8000", Handler: r}
}

type errResp struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// --- queues ---

func (s *Server) createQueue(w http.ResponseWriter, r *http.Request) {
	var req schemas.CreateQueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, 400, errResp{err.Error()})
		return
	}
	if req.Name == "" {
		writeJSON(w, 400, errResp{"name is required"})
		return
	}
	q, err := s.Store.InsertQueue(r.Context(), req.Name)
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, schemas.QueueOut{QueueID: q.ID, Name: q.Name, CreatedAt: q.CreatedAt})
}

func (s *Server) getQueue(w http.ResponseWriter, r *http.Request) {
	q, err := s.Store.GetQueue(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, 404, errResp{"not found"})
		return
	}
	writeJSON(w, 200, schemas.QueueOut{QueueID: q.ID, Name: q.Name, CreatedAt: q.CreatedAt})
}

// --- judges ---

func judgeOut(j db.Judge) schemas.JudgeOut {
	return schemas.JudgeOut{
		JudgeID:      j.ID,
		Name:         j.Name,
		SystemPrompt: j.SystemPrompt,
		Model:        j.Model,
		Active:       j.Active,
		PromptConfig: j.PromptConfig,
		CreatedAt:    j.CreatedAt,
	}
}

func (s *Server) createJudge(w http.ResponseWriter, r *http.Request) {
	var req schemas.JudgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, 400, errResp{err.Error()})
		return
	}
	if req.Name == "" || req.SystemPrompt == "" {
		writeJSON(w, 400, errResp{"name and system_prompt are required"})
		return
	}
	j := db.Judge{
		Name:         req.Name,
		SystemPrompt: req.SystemPrompt,
		Model:        req.Model,
		Active:       true,
		PromptConfig: db.DefaultPromptConfig(),
	}
	if req.Active != nil {
		j.Active = *req.Active
	}
	if req.PromptConfig != nil {
		j.PromptConfig = *req.PromptConfig
	}
	j, err := s.Store.InsertJudge(r.Context(), j)
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, judgeOut(j))
}

func (s *Server) getJudge(w http.ResponseWriter, r *http.Request) {
	j, err := s.Store.GetJudge(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, 404, errResp{"not found"})
		return
	}
	writeJSON(w, 200, judgeOut(j))
}

func (s *Server) listJudges(w http.ResponseWriter, r *http.Request) {
	judges, err := s.Store.ListJudges(r.Context())
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	out := make([]schemas.JudgeOut, 0, len(judges))
	for _, j := range judges {
		out = append(out, judgeOut(j))
	}
	writeJSON(w, 200, out)
}

func (s *Server) updateJudge(w http.ResponseWriter, r *http.Request) {
	j, err := s.Store.GetJudge(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, 404, errResp{"not found"})
		return
	}
	var req schemas.JudgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, 400, errResp{err.Error()})
		return
	}
	if req.Name != "" {
		j.Name = req.Name
	}
	if req.SystemPrompt != "" {
		j.SystemPrompt = req.SystemPrompt
	}
	if req.Model != "" {
		j.Model = req.Model
	}
	if req.Active != nil {
		j.Active = *req.Active
	}
	if req.PromptConfig != nil {
		j.PromptConfig = *req.PromptConfig
	}
	if err := s.Store.UpdateJudge(r.Context(), j); err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, judgeOut(j))
}

// --- assignments ---

func (s *Server) assignJudge(w http.ResponseWriter, r *http.Request) {
	queueID := chi.URLParam(r, "id")
	var req schemas.AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, 400, errResp{err.Error()})
		return
	}
	if req.QuestionID == "" || req.JudgeID == "" {
		writeJSON(w, 400, errResp{"question_id and judge_id are required"})
		return
	}
	a, err := s.Store.UpsertAssignment(r.Context(), queueID, req.QuestionID, req.JudgeID)
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, schemas.AssignmentOut{
		AssignmentID: a.ID,
		QueueID:      a.QueueID,
		QuestionID:   a.QuestionID,
		JudgeID:      a.JudgeID,
		CreatedAt:    a.CreatedAt,
	})
}

func (s *Server) listAssignments(w http.ResponseWriter, r *http.Request) {
	assignments, err := s.Store.AssignmentsByQueue(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	out := make([]schemas.AssignmentOut, 0, len(assignments))
	for _, a := range assignments {
		out = append(out, schemas.AssignmentOut{
			AssignmentID: a.ID,
			QueueID:      a.QueueID,
			QuestionID:   a.QuestionID,
			JudgeID:      a.JudgeID,
			CreatedAt:    a.CreatedAt,
		})
	}
	writeJSON(w, 200, out)
}

// --- submissions ---

func (s *Server) createSubmission(w http.ResponseWriter, r *http.Request) {
	queueID := chi.URLParam(r, "id")
	if _, err := s.Store.GetQueue(r.Context(), queueID); err != nil {
		writeJSON(w, 404, errResp{"queue not found"})
		return
	}
	var req schemas.CreateSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, 400, errResp{err.Error()})
		return
	}
	if len(req.Questions) == 0 {
		writeJSON(w, 400, errResp{"questions are required"})
		return
	}

	sub := db.Submission{
		QueueID:        queueID,
		SubmitterName:  req.SubmitterName,
		SubmitterEmail: req.SubmitterEmail,
		Questions:      req.Questions,
		Answers:        req.Answers,
	}
	for _, att := range req.Attachments {
		data, err := base64.StdEncoding.DecodeString(att.DataBase64)
		if err != nil {
			writeJSON(w, 400, errResp{"bad attachment data: " + err.Error()})
			return
		}
		path, err := s.S3.PutAttachment(r.Context(), att.FileName, att.MIMEType, data)
		if err != nil {
			writeJSON(w, 500, errResp{err.Error()})
			return
		}
		sub.Attachments = append(sub.Attachments, db.Attachment{
			FileName:    att.FileName,
			StoragePath: path,
			MIMEType:    att.MIMEType,
			SizeBytes:   int64(len(data)),
		})
	}

	sub, err := s.Store.InsertSubmission(r.Context(), sub)
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, schemas.SubmissionOut{
		SubmissionID: sub.ID,
		QueueID:      sub.QueueID,
		CreatedAt:    sub.CreatedAt,
		Attachments:  sub.Attachments,
	})
}

// --- runs ---

func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	queueID := chi.URLParam(r, "id")
	if _, err := s.Store.GetQueue(r.Context(), queueID); err != nil {
		writeJSON(w, 404, errResp{"queue not found"})
		return
	}
	task := asynq.NewTask(TaskRunEvaluations, []byte(queueID))
	if _, err := s.Asynq.Enqueue(task, asynq.MaxRetry(0)); err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, map[string]string{"enqueued": "ok"})
}

func runOut(run db.EvaluationRun) schemas.RunOut {
	return schemas.RunOut{
		RunID:             run.ID,
		QueueID:           run.QueueID,
		CreatedAt:         run.CreatedAt,
		JudgeSummaries:    run.JudgeSummaries,
		TotalEvaluations:  run.TotalEvaluations,
		PassCount:         run.PassCount,
		FailCount:         run.FailCount,
		InconclusiveCount: run.InconclusiveCount,
	}
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.Store.RunsByQueue(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	out := make([]schemas.RunOut, 0, len(runs))
	for _, run := range runs {
		out = append(out, runOut(run))
	}
	writeJSON(w, 200, out)
}

func (s *Server) latestRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.Store.LatestRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeJSON(w, 404, errResp{"no runs for queue"})
			return
		}
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	writeJSON(w, 200, runOut(run))
}

func evaluationOut(e db.Evaluation) schemas.EvaluationOut {
	return schemas.EvaluationOut{
		EvaluationID:   e.ID,
		RunID:          e.RunID,
		SubmissionID:   e.SubmissionID,
		QuestionID:     e.QuestionID,
		JudgeID:        e.JudgeID,
		JudgeName:      e.JudgeName,
		Verdict:        e.Verdict,
		Reasoning:      e.Reasoning,
		CreatedAt:      e.CreatedAt,
		HumanVerdict:   e.HumanVerdict,
		HumanReasoning: e.HumanReason,
		ReviewedBy:     e.ReviewedBy,
		ReviewedAt:     e.ReviewedAt,
		ReviewStatus:   e.ReviewStatus,
		IsDisagreement: e.Disagreement,
	}
}

func (s *Server) listEvaluations(w http.ResponseWriter, r *http.Request) {
	evals, err := s.Store.EvaluationsByRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, 500, errResp{err.Error()})
		return
	}
	out := make([]schemas.EvaluationOut, 0, len(evals))
	for _, e := range evals {
		out = append(out, evaluationOut(e))
	}
	writeJSON(w, 200, out)
}

// --- review ---

func (s *Server) reviewEvaluation(w http.ResponseWriter, r *http.Request) {
	var req schemas.ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, 400, errResp{err.Error()})
		return
	}
	ev, err := eval.SubmitReview(r.Context(), s.Store, chi.URLParam(r, "id"), req.HumanVerdict, req.Reasoning, req.Reviewer)
	if err != nil {
		switch {
		case errors.Is(err, eval.ErrEvaluationNotFound):
			writeJSON(w, 404, errResp{"evaluation not found"})
		case !eval.ValidHumanVerdict(req.HumanVerdict):
			writeJSON(w, 400, errResp{err.Error()})
		default:
			writeJSON(w, 500, errResp{err.Error()})
		}
		return
	}
	writeJSON(w, 200, evaluationOut(ev))
}
