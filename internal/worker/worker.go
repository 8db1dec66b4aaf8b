package worker

import (
	"context"
	"errors"
	"log"

	"github.com/hibiken/asynq"

	"evalqueue/internal/db"
	"evalqueue/internal/eval"
	httpSrv "evalqueue/internal/http"
	"evalqueue/internal/llm"
	"evalqueue/internal/storage"
)

type Server struct {
	Store *db.Store
	S3    *storage.Client
	LLM   *llm.Client
}

func (s *Server) mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(httpSrv.TaskRunEvaluations, s.handleRun)
	return mux
}

func (s *Server) handleRun(ctx context.Context, t *asynq.Task) error {
	queueID := string(t.Payload())
	log.Printf("starting evaluation run for queue %s", queueID)

	runner := &eval.Runner{Store: s.Store, LLM: s.LLM, Resolver: s.S3}
	run, err := runner.RunQueueEvaluations(ctx, queueID, func(p eval.Progress) {
		log.Printf("queue %s: %d/%d evaluated (%d failed)", queueID, p.Completed+p.Failed, p.Total, p.Failed)
	})
	if err != nil {
		if isPlanError(err) {
			// Permanent: retrying won't fix an empty or uncovered queue.
			log.Printf("run rejected for queue %s: %v", queueID, err)
			return nil
		}
		log.Printf("run failed for queue %s: %v", queueID, err)
		return err
	}

	log.Printf("run %s finished for queue %s: total=%d pass=%d fail=%d inconclusive=%d",
		run.ID, queueID, run.TotalEvaluations, run.PassCount, run.FailCount, run.InconclusiveCount)
	return nil
}

func isPlanError(err error) bool {
	var unassigned *eval.UnassignedQuestionsError
	return errors.Is(err, eval.ErrNoSubmissions) ||
		errors.Is(err, eval.ErrNoAssignments) ||
		errors.Is(err, eval.ErrNoEvaluations) ||
		errors.As(err, &unassigned)
}

func Run(addr string, store *db.Store, s3c *storage.Client, client *llm.Client) error {
	srv := asynq.NewServer(asynq.RedisClientOpt{Addr: addr}, asynq.Config{Concurrency: 5})
	w := &Server{Store: store, S3: s3c, LLM: client}
	return srv.Run(w.mux())
}
