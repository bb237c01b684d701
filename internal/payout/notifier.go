package payout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"settlement-engine/internal/models"
)

// EmailSender is satisfied by the SES client wrapper.
type EmailSender interface {
	SendText(ctx context.Context, from, to, subject, body string) (string, error)
}

// TopicPublisher is satisfied by the SNS client wrapper.
type TopicPublisher interface {
	PublishToTopic(ctx context.Context, topicARN, subject, message string, attrs map[string]string) (string, error)
}

type NotifierConfig struct {
	TopicARN  string
	FromEmail string
	OpsEmail  string
	Currency  string
}

// StatusNotifier announces completed and failed payouts on an SNS topic and
// by email to the operations address. Either channel may be nil.
type StatusNotifier struct {
	topic TopicPublisher
	email EmailSender
	cfg   NotifierConfig
}

func NewStatusNotifier(topic TopicPublisher, email EmailSender, cfg NotifierConfig) *StatusNotifier {
	return &StatusNotifier{topic: topic, email: email, cfg: cfg}
}

type statusMessage struct {
	PayoutID      string              `json:"payoutId"`
	AccountID     string              `json:"accountId"`
	Status        models.PayoutStatus `json:"status"`
	AmountNet     string              `json:"amountNet"`
	Currency      string              `json:"currency,omitempty"`
	TransferID    string              `json:"transferId,omitempty"`
	FailureReason string              `json:"failureReason,omitempty"`
}

func (n *StatusNotifier) PayoutChanged(ctx context.Context, req *models.PayoutRequest, ev models.PayoutEvent) error {
	if req == nil || (ev.ToStatus != models.PayoutCompleted && ev.ToStatus != models.PayoutFailed) {
		return nil
	}

	msg := statusMessage{
		PayoutID:  req.ID,
		AccountID: req.AccountID,
		Status:    ev.ToStatus,
		AmountNet: req.AmountNet.String(),
		Currency:  n.cfg.Currency,
	}
	if req.TransferID != nil {
		msg.TransferID = *req.TransferID
	}
	if req.FailureReason != nil {
		msg.FailureReason = *req.FailureReason
	}
	subject := fmt.Sprintf("Payout %s %s", req.ID, ev.ToStatus)

	var errs []error
	if n.topic != nil && n.cfg.TopicARN != "" {
		payload, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("marshal payout notification: %w", err)
		}
		if _, err := n.topic.PublishToTopic(ctx, n.cfg.TopicARN, subject, string(payload), map[string]string{
			"eventType": "payout." + string(ev.ToStatus),
			"accountId": req.AccountID,
		}); err != nil {
			errs = append(errs, fmt.Errorf("sns publish: %w", err))
		}
	}

	if n.email != nil && n.cfg.FromEmail != "" && n.cfg.OpsEmail != "" {
		if _, err := n.email.SendText(ctx, n.cfg.FromEmail, n.cfg.OpsEmail, subject, emailBody(msg)); err != nil {
			errs = append(errs, fmt.Errorf("ses send: %w", err))
		}
	}
	return errors.Join(errs...)
}

func emailBody(m statusMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Payout: %s\n", m.PayoutID)
	fmt.Fprintf(&b, "Account: %s\n", m.AccountID)
	fmt.Fprintf(&b, "Status: %s\n", m.Status)
	fmt.Fprintf(&b, "Net amount: %s %s\n", m.AmountNet, m.Currency)
	if m.TransferID != "" {
		fmt.Fprintf(&b, "Transfer: %s\n", m.TransferID)
	}
	if m.FailureReason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", m.FailureReason)
	}
	return b.String()
}
