// internal/workers/payout/transition-payout/handler.go
package transitionpayout

import (
	"context"
	stderrors "errors"
	"time"

	"settlement-engine/internal/common/errors"
	"settlement-engine/internal/common/logger"
	"settlement-engine/internal/common/metrics"
	"settlement-engine/internal/common/validation"
	"settlement-engine/internal/models"
	"settlement-engine/internal/payout"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "payout.request.transition"

// Transitioner is satisfied by *payout.Manager.
type Transitioner interface {
	Transition(ctx context.Context, payoutID string, to models.PayoutStatus, opts payout.TransitionOptions) (*models.PayoutRequest, error)
	GetRequest(ctx context.Context, payoutID string) (*models.PayoutRequest, error)
}

type Handler struct {
	config  *Config
	payouts Transitioner
	errors  *errors.ErrorHandler
	logger  logger.Logger
}

func NewHandler(cfg *Config, payouts Transitioner, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:  cfg,
		payouts: payouts,
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
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey":          job.GetKey(),
			"payoutRequestId": input.PayoutRequestID,
			"error":           err.Error(),
		})
		return
	}

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
	if input.Actor == "" {
		input.Actor = h.config.DefaultActor
	}
	return &input, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	req, err := h.payouts.Transition(ctx, input.PayoutRequestID, input.TargetStatus, payout.TransitionOptions{
		Reason:     input.Reason,
		TransferID: input.TransferID,
		Actor:      input.Actor,
	})
	if stderrors.Is(err, errors.ErrInvalidTransition) {
		current, getErr := h.payouts.GetRequest(ctx, input.PayoutRequestID)
		if getErr == nil && current.Status == input.TargetStatus {
			h.logger.Info("transition already applied", map[string]interface{}{
				"payoutRequestId": input.PayoutRequestID,
				"status":          current.Status,
			})
			out := outputFrom(current)
			out.Replayed = true
			return out, nil
		}
	}
	if err != nil {
		return nil, err
	}
	return outputFrom(req), nil
}

func outputFrom(req *models.PayoutRequest) *Output {
	out := &Output{
		PayoutRequestID: req.ID,
		PayoutStatus:    req.Status,
		AmountNet:       req.AmountNet.String(),
		ProcessedAt:     req.ProcessedAt,
	}
	if req.FailureReason != nil {
		out.FailureReason = *req.FailureReason
	}
	if req.TransferID != nil {
		out.TransferID = *req.TransferID
	}
	return out
}
