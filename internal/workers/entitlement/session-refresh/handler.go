// internal/workers/entitlement/session-refresh/handler.go
package sessionrefresh

import (
	"context"
	"time"

	"settlement-engine/internal/common/errors"
	"settlement-engine/internal/common/logger"
	"settlement-engine/internal/common/metrics"
	"settlement-engine/internal/common/validation"
	"settlement-engine/internal/entitlement/events"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "session.refresh"

// Invalidator drops cached role data; *entitlement.Engine satisfies it.
type Invalidator interface {
	Invalidate(ctx context.Context, accountID string) error
}

// Handler runs after a role or billing change. It clears the shared role
// cache and broadcasts a refresh so live sessions re-fetch.
type Handler struct {
	config      *Config
	invalidator Invalidator
	publisher   events.Publisher
	errors      *errors.ErrorHandler
	logger      logger.Logger
}

func NewHandler(cfg *Config, invalidator Invalidator, publisher events.Publisher, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:      cfg,
		invalidator: invalidator,
		publisher:   publisher,
		errors:      errors.NewErrorHandler(log),
		logger:      log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := h.parseInput(job)
	if err == nil {
		var output *Output
		if output, err = h.Execute(ctx, input); err == nil {
			h.completeJob(ctx, client, job, output)
			metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
			metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
			return
		}
	}

	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.Normalize(err).Code)).Inc()
	h.errors.HandleJobError(ctx, client, job, err)
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInputParsingFailedError(err)
	}
	if result := validation.ValidateInput(variables, GetInputSchema()); !result.Valid {
		return nil, errors.NewValidationFailedError(result.Error())
	}

	var input Input
	if err := job.GetVariablesAs(&input); err != nil {
		return nil, errors.NewInputParsingFailedError(err)
	}
	return &input, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if err := h.invalidator.Invalidate(ctx, input.AccountID); err != nil {
		return nil, errors.NewQueryExecutionFailedError("invalidate role cache", err)
	}

	if h.publisher != nil {
		ev := events.Event{Type: events.SessionRefresh, AccountID: input.AccountID}
		if err := h.publisher.Publish(ctx, ev); err != nil {
			// the cache is already clear; live sessions pick the change up on their next refresh
			h.logger.Warn("refresh broadcast failed", map[string]interface{}{
				"accountId": input.AccountID,
				"error":     err.Error(),
			})
		}
	}

	h.logger.Info("session refreshed", map[string]interface{}{
		"accountId": input.AccountID,
		"reason":    input.Reason,
	})
	return &Output{SessionRefreshed: true, AccountID: input.AccountID}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{"error": err.Error()})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{"error": err.Error()})
	}
}
