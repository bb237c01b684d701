// internal/workers/entitlement/check-feature-access/handler.go
package checkfeatureaccess

import (
	"context"
	"time"

	"settlement-engine/internal/common/errors"
	"settlement-engine/internal/common/logger"
	"settlement-engine/internal/common/metrics"
	"settlement-engine/internal/common/validation"
	"settlement-engine/internal/entitlement"
	"settlement-engine/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "entitlement.access.check"

// AccessChecker is satisfied by *entitlement.Engine.
type AccessChecker interface {
	CheckAccess(ctx context.Context, auth models.AuthState, feature models.Feature) (bool, entitlement.Decision)
}

type Handler struct {
	config  *Config
	checker AccessChecker
	errors  *errors.ErrorHandler
	logger  logger.Logger
}

func NewHandler(cfg *Config, checker AccessChecker, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:  cfg,
		checker: checker,
		errors:  errors.NewErrorHandler(log),
		logger:  log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := h.parseInput(job)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.Normalize(err).Code)).Inc()
		h.errors.HandleJobError(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.Normalize(err).Code)).Inc()
		h.errors.HandleJobError(ctx, client, job, err)
		return
	}

	cmd, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{"error": err.Error()})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{"error": err.Error()})
		return
	}

	h.logger.Info("access checked", map[string]interface{}{
		"jobKey":    job.GetKey(),
		"accountId": input.AccountID,
		"feature":   output.Feature,
		"allowed":   output.Allowed,
	})
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
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
	allowed, d := h.checker.CheckAccess(ctx, input.AuthState, input.Feature)

	out := &Output{
		Feature: input.Feature,
		Allowed: allowed,
		Decided: d.Entitlement != nil,
	}
	if d.Entitlement != nil {
		out.Plan = d.Entitlement.Plan
		out.IsAdmin = d.Entitlement.IsAdmin
	}
	return out, nil
}
