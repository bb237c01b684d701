// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Payout validation and lifecycle errors
const (
	ErrCodePayoutAmountInvalid     ErrorCode = "PAYOUT_AMOUNT_INVALID"
	ErrCodePayoutBelowMinimum      ErrorCode = "PAYOUT_BELOW_MINIMUM"
	ErrCodePayoutNotAboveFee       ErrorCode = "PAYOUT_NOT_ABOVE_FEE"
	ErrCodePayoutInsufficientFunds ErrorCode = "PAYOUT_INSUFFICIENT_FUNDS"
	ErrCodePayoutInProgress        ErrorCode = "PAYOUT_IN_PROGRESS"
	ErrCodePayoutInvalidTransition ErrorCode = "PAYOUT_INVALID_TRANSITION"
	ErrCodePayoutNotFound          ErrorCode = "PAYOUT_NOT_FOUND"
	ErrCodePayoutAccountNotFound   ErrorCode = "PAYOUT_ACCOUNT_NOT_FOUND"
	ErrCodeLedgerConflict          ErrorCode = "LEDGER_CONFLICT"

	ErrCodeEarningInvalid ErrorCode = "EARNING_INVALID"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"

	ErrCodeInputParsingFailed ErrorCode = "INPUT_PARSING_FAILED"
	ErrCodeValidationFailed   ErrorCode = "VALIDATION_FAILED"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// Sentinels wrapped by the StandardError constructors so callers can use errors.Is.
var (
	ErrAmountInvalid     = stderrors.New("payout amount is not a positive amount with at most two decimals")
	ErrBelowMinimum      = stderrors.New("payout amount is below the minimum")
	ErrNotAboveFee       = stderrors.New("payout amount does not exceed the transfer fee")
	ErrInsufficientFunds = stderrors.New("payout amount exceeds available earnings")
	ErrPayoutInProgress  = stderrors.New("a payout request is already pending or processing")
	ErrInvalidTransition = stderrors.New("payout status transition not allowed")
	ErrPayoutNotFound    = stderrors.New("payout request not found")
	ErrAccountNotFound   = stderrors.New("payout account details not found")
	ErrLedgerConflict    = stderrors.New("ledger write conflict")
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// AsStandardError extracts a *StandardError from an error chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newValidation(code ErrorCode, cause error, message, details string) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewPayoutAmountInvalidError reports an amount that does not parse as a positive money value.
func NewPayoutAmountInvalidError(raw string) *StandardError {
	return newValidation(ErrCodePayoutAmountInvalid, ErrAmountInvalid,
		"Payout amount is invalid", fmt.Sprintf("amount: %q", raw))
}

// NewPayoutBelowMinimumError reports an amount below the configured minimum.
func NewPayoutBelowMinimumError(amount, minimum string) *StandardError {
	return newValidation(ErrCodePayoutBelowMinimum, ErrBelowMinimum,
		"Payout amount is below the minimum",
		fmt.Sprintf("amount: %s, minimum: %s", amount, minimum))
}

// NewPayoutNotAboveFeeError reports an amount that would leave a non-positive net payout.
func NewPayoutNotAboveFeeError(amount, fee string) *StandardError {
	return newValidation(ErrCodePayoutNotAboveFee, ErrNotAboveFee,
		"Payout amount must exceed the transfer fee",
		fmt.Sprintf("amount: %s, fee: %s", amount, fee))
}

func NewPayoutInsufficientFundsError(amount, available string) *StandardError {
	return newValidation(ErrCodePayoutInsufficientFunds, ErrInsufficientFunds,
		"Insufficient available earnings",
		fmt.Sprintf("amount: %s, available: %s", amount, available))
}

func NewPayoutInProgressError(accountID string) *StandardError {
	return newValidation(ErrCodePayoutInProgress, ErrPayoutInProgress,
		"A payout request is already in progress",
		fmt.Sprintf("accountId: %s", accountID))
}

// NewPayoutInvalidTransitionError reports a transition outside the payout state machine.
func NewPayoutInvalidTransitionError(payoutID, from, to string) *StandardError {
	return newValidation(ErrCodePayoutInvalidTransition, ErrInvalidTransition,
		"Payout status transition not allowed",
		fmt.Sprintf("payoutId: %s, from: %s, to: %s", payoutID, from, to))
}

func NewPayoutNotFoundError(payoutID string) *StandardError {
	return newValidation(ErrCodePayoutNotFound, ErrPayoutNotFound,
		"Payout request not found", fmt.Sprintf("payoutId: %s", payoutID))
}

func NewPayoutAccountNotFoundError(accountID string) *StandardError {
	return newValidation(ErrCodePayoutAccountNotFound, ErrAccountNotFound,
		"Payout account details not found", fmt.Sprintf("accountId: %s", accountID))
}

// NewLedgerConflictError is returned after the single conflict retry is used up.
func NewLedgerConflictError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeLedgerConflict,
		Message:   "Ledger write conflict, please retry the request",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     fmt.Errorf("%w: %v", ErrLedgerConflict, err),
	}
}

func NewEarningInvalidError(details string) *StandardError {
	return newValidation(ErrCodeEarningInvalid, nil, "Earnings event is invalid", details)
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewQueryTimeoutError creates a retryable query timeout error.
func NewQueryTimeoutError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryTimeout,
		Message:   "Database query timeout",
		Details:   fmt.Sprintf("operation: %s", operation),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewInputParsingFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInputParsingFailed,
		Message:   "Failed to parse job variables",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewValidationFailedError(details string) *StandardError {
	return newValidation(ErrCodeValidationFailed, nil, "Input validation failed", details)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes. Codes not
// listed are thrown as-is.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodePayoutAmountInvalid:      "PAYOUT_AMOUNT_INVALID",
	ErrCodePayoutBelowMinimum:       "PAYOUT_BELOW_MINIMUM",
	ErrCodePayoutNotAboveFee:        "PAYOUT_NOT_ABOVE_FEE",
	ErrCodePayoutInsufficientFunds:  "PAYOUT_INSUFFICIENT_FUNDS",
	ErrCodePayoutInProgress:         "PAYOUT_IN_PROGRESS",
	ErrCodePayoutInvalidTransition:  "PAYOUT_INVALID_TRANSITION",
	ErrCodePayoutNotFound:           "PAYOUT_NOT_FOUND",
	ErrCodePayoutAccountNotFound:    "PAYOUT_ACCOUNT_NOT_FOUND",
	ErrCodeLedgerConflict:           "LEDGER_CONFLICT",
	ErrCodeEarningInvalid:           "EARNING_INVALID",
	ErrCodeDatabaseConnectionFailed: "DATABASE_CONNECTION_FAILED",
	ErrCodeQueryExecutionFailed:     "QUERY_EXECUTION_FAILED",
	ErrCodeQueryTimeout:             "QUERY_TIMEOUT",
	ErrCodeInputParsingFailed:       "INPUT_PARSING_FAILED",
	ErrCodeValidationFailed:         "VALIDATION_FAILED",
}

// GetRetryCount returns the recommended job retry count for an error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed:
		return 3

	case ErrCodeQueryTimeout:
		return 2

	case ErrCodeLedgerConflict:
		return 1 // the manager already retried once in-process

	default:
		return 0 // business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "PAYOUT"):
		return "PAYOUT"
	case strings.HasPrefix(codeStr, "LEDGER") || strings.HasPrefix(codeStr, "EARNING"):
		return "LEDGER"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "PARSING"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
