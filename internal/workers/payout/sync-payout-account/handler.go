// internal/workers/payout/sync-payout-account/handler.go
package syncpayoutaccount

import (
	"context"
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

const TaskType = "payout.account.sync"

// Accounts is satisfied by *payout.Manager.
type Accounts interface {
	EnsureAccountDetails(ctx context.Context, accountID string) (*models.PayoutAccountDetails, error)
	UpdateAccountStatus(ctx context.Context, st payout.AccountStatus) (*models.PayoutAccountDetails, error)
}

// Balances is satisfied by *ledger.Ledger.
type Balances interface {
	Summary(ctx context.Context, accountID string) (*models.EarningsSummary, error)
}

type Handler struct {
	config   *Config
	accounts Accounts
	balances Balances
	errors   *errors.ErrorHandler
	logger   logger.Logger
}

func NewHandler(cfg *Config, accounts Accounts, balances Balances, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   cfg,
		accounts: accounts,
		balances: balances,
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

// Execute creates the details row on first setup and applies a status
// check result when one is present.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	details, err := h.accounts.EnsureAccountDetails(ctx, input.AccountID)
	if err != nil {
		return nil, err
	}

	if input.PayoutEnabled != nil {
		details, err = h.accounts.UpdateAccountStatus(ctx, payout.AccountStatus{
			AccountID:          input.AccountID,
			PayoutEnabled:      *input.PayoutEnabled,
			BankAccountLast4:   input.BankAccountLast4,
			BankAccountCountry: input.BankAccountCountry,
		})
		if err != nil {
			return nil, err
		}
	}

	out := &Output{
		AccountID:           details.AccountID,
		PayoutEnabled:       details.PayoutEnabled,
		BankAccountLast4:    details.BankAccountLast4,
		BankAccountCountry:  details.BankAccountCountry,
		MinimumPayoutAmount: details.MinimumPayoutAmount.String(),
		AvailableBalance:    models.Cents(0).String(),
	}
	if h.balances != nil {
		summary, err := h.balances.Summary(ctx, input.AccountID)
		if err != nil {
			return nil, err
		}
		out.AvailableBalance = summary.Available.String()
	}
	return out, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{"error": err.Error()})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{"error": err.Error()})
		return
	}
	h.logger.Info("payout account synced", map[string]interface{}{
		"accountId":     output.AccountID,
		"payoutEnabled": output.PayoutEnabled,
	})
}
