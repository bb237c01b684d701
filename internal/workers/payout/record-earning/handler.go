// internal/workers/payout/record-earning/handler.go
package recordearning

import (
	"context"
	"fmt"
	"time"

	"settlement-engine/internal/common/database"
	"settlement-engine/internal/common/errors"
	"settlement-engine/internal/common/logger"
	"settlement-engine/internal/common/metrics"
	"settlement-engine/internal/common/validation"
	"settlement-engine/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const TaskType = "earnings.record"

// earningNamespace scopes the ids derived from job element instances.
var earningNamespace = uuid.MustParse("6f1c2a52-93f4-4d0e-9b8e-5a0c3e1d7b21")

// Recorder is satisfied by *ledger.Ledger.
type Recorder interface {
	RecordEarning(ctx context.Context, ev models.EarningsEvent) (*models.EarningsEvent, error)
}

type Handler struct {
	config   *Config
	recorder Recorder
	errors   *errors.ErrorHandler
	logger   logger.Logger
}

func NewHandler(cfg *Config, recorder Recorder, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   cfg,
		recorder: recorder,
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
	if input.EarningID == "" {
		input.EarningID = EarningIDForJob(job)
	}
	return &input, nil
}

// EarningIDForJob derives a stable id from the job's element instance, so a
// redelivered job re-inserts the same event instead of crediting twice.
func EarningIDForJob(job entities.Job) string {
	name := fmt.Sprintf("%d/%d", job.GetProcessInstanceKey(), job.GetElementInstanceKey())
	return uuid.NewSHA1(earningNamespace, []byte(name)).String()
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	amount, err := models.ParseAmount(input.Amount)
	if err != nil {
		return nil, errors.NewEarningInvalidError(err.Error())
	}

	ev := models.EarningsEvent{
		ID:                input.EarningID,
		ReferrerID:        input.ReferrerID,
		ReferredAccountID: input.ReferredAccountID,
		Amount:            amount,
	}
	if input.OccurredAt != nil {
		ev.OccurredAt = input.OccurredAt.UTC()
	}

	recorded, err := h.recorder.RecordEarning(ctx, ev)
	if database.IsConflict(err) {
		return nil, errors.NewLedgerConflictError(err)
	}
	if err != nil {
		return nil, err
	}

	h.logger.Info("earning recorded", map[string]interface{}{
		"earningId":  recorded.ID,
		"referrerId": recorded.ReferrerID,
		"amount":     recorded.Amount.String(),
	})
	return &Output{EarningID: recorded.ID, EarningRecorded: true, Amount: recorded.Amount.String()}, nil
}
