// internal/workers/entitlement/resolve-entitlement/handler.go
package resolveentitlement

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

const TaskType = "entitlement.resolve"

// Resolver is satisfied by *entitlement.Engine.
type Resolver interface {
	Resolve(ctx context.Context, auth models.AuthState) entitlement.Decision
}

type Handler struct {
	config   *Config
	resolver Resolver
	errors   *errors.ErrorHandler
	logger   logger.Logger
}

func NewHandler(cfg *Config, resolver Resolver, log logger.Logger) *Handler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   cfg,
		resolver: resolver,
		errors:   errors.NewErrorHandler(log),
		logger:   log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

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

	h.completeJob(ctx, client, job, output)
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

// Execute resolves the decision. A nil entitlement is reported as
// entitlementReady=false so the process model routes to its deny path.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	d := h.resolver.Resolve(ctx, *input)

	out := &Output{
		EntitlementReady: d.Entitlement != nil,
		RolePending:      d.Role.Pending,
		Entitlement:      d.Entitlement,
	}
	if !d.Role.Pending {
		out.Role = d.Role.Role
		out.RoleSource = d.Role.Source
	}
	if d.Entitlement != nil {
		out.Plan = d.Entitlement.Plan
	}
	if d.Subscription != nil {
		out.SubscriptionStatus = d.Subscription.Status
	}
	return out, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.GetKey()).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}

	h.logger.Info("entitlement resolved", map[string]interface{}{
		"jobKey":    job.GetKey(),
		"accountId": output.entitlementAccount(),
		"ready":     output.EntitlementReady,
		"plan":      output.Plan,
	})
}

func (o *Output) entitlementAccount() string {
	if o.Entitlement == nil {
		return ""
	}
	return o.Entitlement.AccountID
}
