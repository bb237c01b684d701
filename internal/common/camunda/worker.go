// internal/common/camunda/worker.go
package camunda

import (
	"sync"
	"time"

	"settlement-engine/internal/common/config"
	"settlement-engine/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// Workers opens and tracks job workers so they can be closed together on shutdown.
type Workers struct {
	client *Client
	logger logger.Logger

	mu      sync.Mutex
	workers map[string]worker.JobWorker
}

func NewWorkers(client *Client, log logger.Logger) *Workers {
	return &Workers{
		client:  client,
		logger:  log,
		workers: make(map[string]worker.JobWorker),
	}
}

// Start opens a job worker for taskType unless the worker is disabled.
func (w *Workers) Start(taskType string, wcfg config.WorkerConfig, handler worker.JobHandler) {
	if !wcfg.Enabled {
		w.logger.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return
	}

	jobWorker := w.client.GetClient().NewJobWorker().
		JobType(taskType).
		Handler(handler).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(config.GetDuration(wcfg.Timeout)).
		PollInterval(100 * time.Millisecond).
		Open()

	w.mu.Lock()
	w.workers[taskType] = jobWorker
	w.mu.Unlock()

	w.logger.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeout_ms":    wcfg.Timeout,
	})
}

// Count returns the number of open workers.
func (w *Workers) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.workers)
}

// Close stops every worker and waits for in-flight jobs to finish.
func (w *Workers) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for taskType, jobWorker := range w.workers {
		jobWorker.Close()
		jobWorker.AwaitClose()
		w.logger.Info("worker stopped", map[string]interface{}{"taskType": taskType})
	}
	w.workers = make(map[string]worker.JobWorker)
}
