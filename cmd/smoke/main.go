package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

type queueResp struct {
	QueueID string `json:"queue_id"`
	Name    string `json:"name"`
}

type judgeResp struct {
	JudgeID string `json:"judge_id"`
	Name    string `json:"name"`
}

type submissionResp struct {
	SubmissionID string `json:"submission_id"`
}

type runResp struct {
	RunID             string `json:"run_id"`
	TotalEvaluations  int    `json:"total_evaluations"`
	PassCount         int    `json:"pass_count"`
	FailCount         int    `json:"fail_count"`
	InconclusiveCount int    `json:"inconclusive_count"`
}

type evaluationResp struct {
	EvaluationID   string `json:"evaluation_id"`
	Verdict        string `json:"verdict"`
	Reasoning      string `json:"reasoning"`
	IsDisagreement bool   `json:"is_disagreement"`
}

func main() {
	base := envOr("API_BASE_URL", "http://localhost:8000")
	token := envOr("API_TOKEN", "dev-secret-token")

	baseFlag := flag.String("base", base, "API base URL (e.g., http://localhost:8000)")
	tokenFlag := flag.String("token", token, "API token")
	waitRun := flag.Duration("wait-run", 90*time.Second, "How long to poll for the run to finish")
	flag.Parse()

	httpc := &http.Client{Timeout: 12 * time.Second}

	// 1) Create queue
	var queue queueResp
	if err := postJSON(httpc, *baseFlag+"/queues", *tokenFlag, map[string]any{"name": "smoke-queue"}, &queue); err != nil {
		fatalf("create queue: %v", err)
	}
	fmt.Printf("created queue: id=%s\n", queue.QueueID)

	// 2) Create judge
	var judge judgeResp
	judgeBody := map[string]any{
		"name":          "accuracy-judge",
		"system_prompt": "You are a strict grader. Judge whether the answer is factually correct.",
		"model":         "openai/gpt-4o-mini",
	}
	if err := postJSON(httpc, *baseFlag+"/judges", *tokenFlag, judgeBody, &judge); err != nil {
		fatalf("create judge: %v", err)
	}
	fmt.Printf("created judge: id=%s\n", judge.JudgeID)

	// 3) Assign judge to the question
	assignBody := map[string]any{"question_id": "q1", "judge_id": judge.JudgeID}
	if err := putJSON(httpc, fmt.Sprintf("%s/queues/%s/assignments", *baseFlag, queue.QueueID), *tokenFlag, assignBody, &map[string]any{}); err != nil {
		fatalf("assign judge: %v", err)
	}
	fmt.Println("assigned judge to q1")

	// 4) Create submission
	var sub submissionResp
	subBody := map[string]any{
		"submitter_name":  "Smoke Tester",
		"submitter_email": "smoke@example.com",
		"questions": []map[string]any{
			{"id": "q1", "type": "free_text", "text": "What is the capital of France?"},
		},
		"answers": map[string]any{
			"q1": map[string]any{"text": "Paris", "reasoning": "common knowledge"},
		},
	}
	if err := postJSON(httpc, fmt.Sprintf("%s/queues/%s/submissions", *baseFlag, queue.QueueID), *tokenFlag, subBody, &sub); err != nil {
		fatalf("create submission: %v", err)
	}
	fmt.Printf("created submission: id=%s\n", sub.SubmissionID)

	// 5) Start run
	if err := postJSON(httpc, fmt.Sprintf("%s/queues/%s/runs", *baseFlag, queue.QueueID), *tokenFlag, nil, &map[string]any{}); err != nil {
		fatalf("start run: %v", err)
	}
	fmt.Println("enqueued evaluation run")

	// 6) Poll for the finished run
	deadline := time.Now().Add(*waitRun)
	var run runResp
	for {
		err := getJSON(httpc, fmt.Sprintf("%s/queues/%s/runs/latest", *baseFlag, queue.QueueID), *tokenFlag, &run)
		if err == nil && run.TotalEvaluations > 0 {
			break
		}
		if time.Now().After(deadline) {
			fatalf("run did not finish within %s", *waitRun)
		}
		time.Sleep(3 * time.Second)
	}
	fmt.Printf("run %s finished: total=%d pass=%d fail=%d inconclusive=%d\n",
		run.RunID, run.TotalEvaluations, run.PassCount, run.FailCount, run.InconclusiveCount)

	// 7) Fetch evaluations and override the first one
	var evals []evaluationResp
	if err := getJSON(httpc, fmt.Sprintf("%s/runs/%s/evaluations", *baseFlag, run.RunID), *tokenFlag, &evals); err != nil {
		fatalf("list evaluations: %v", err)
	}
	if len(evals) == 0 {
		fatalf("no evaluations for run %s", run.RunID)
	}
	fmt.Printf("evaluation verdict=%s reasoning=%q\n", evals[0].Verdict, evals[0].Reasoning)

	reviewBody := map[string]any{
		"human_verdict": "pass",
		"reasoning":     "verified by hand",
		"reviewer":      "smoke@example.com",
	}
	var reviewed evaluationResp
	if err := postJSON(httpc, fmt.Sprintf("%s/evaluations/%s/review", *baseFlag, evals[0].EvaluationID), *tokenFlag, reviewBody, &reviewed); err != nil {
		fatalf("review evaluation: %v", err)
	}
	fmt.Printf("review recorded: disagreement=%t\n", reviewed.IsDisagreement)

	fmt.Printf("smoke run OK. RunID=%s\n", run.RunID)
}

// --- helpers ---

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func doJSON(c *http.Client, method, url, bearer string, body any, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, method, url, r)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	res, err := c.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		b, _ := io.ReadAll(res.Body)
		return fmt.Errorf("%s %s -> %d: %s", method, url, res.StatusCode, string(b))
	}
	if out != nil {
		return json.NewDecoder(res.Body).Decode(out)
	}
	return nil
}

func postJSON(c *http.Client, url, bearer string, body any, out any) error {
	return doJSON(c, http.MethodPost, url, bearer, body, out)
}

func putJSON(c *http.Client, url, bearer string, body any, out any) error {
	return doJSON(c, http.MethodPut, url, bearer, body, out)
}

func getJSON(c *http.Client, url, bearer string, out any) error {
	return doJSON(c, http.MethodGet, url, bearer, nil, out)
}

func fatalf(format string, args ...any) {
	fmt.Printf(format+"\n", args...)
	os.Exit(1)
}
