package camunda

import (
	"shift-notify/internal/common/config"
	"shift-notify/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// JobHandler completes or fails the job itself; a returned error is only logged.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job) error
}

type Worker struct {
	worker  worker.JobWorker
	logger  logger.Logger
	jobType string
}

func NewWorker(client zbc.Client, cfg config.CamundaConfig, handler JobHandler, log logger.Logger) *Worker {
	log = log.WithFields(map[string]interface{}{"jobType": cfg.JobType})

	jobWorker := client.NewJobWorker().
		JobType(cfg.JobType).
		Handler(func(client worker.JobClient, job entities.Job) {
			if err := handler.Handle(client, job); err != nil {
				log.Error("Handler returned error", map[string]interface{}{
					"jobKey": job.Key,
					"error":  err.Error(),
				})
			}
		}).
		MaxJobsActive(cfg.MaxJobsActive).
		Timeout(config.GetDuration(cfg.Timeout)).
		RequestTimeout(config.GetDuration(cfg.RequestTimeout)).
		Open()

	log.Info("Worker started", map[string]interface{}{"maxJobsActive": cfg.MaxJobsActive})
	return &Worker{worker: jobWorker, logger: log, jobType: cfg.JobType}
}

// Stop stops polling and waits for active jobs to finish.
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker", nil)
	w.worker.Close()
	w.worker.AwaitClose()
}
