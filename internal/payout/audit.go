package payout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"settlement-engine/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
)

// auditDocument is what lands in the payout audit index, one per event.
type auditDocument struct {
	EventID         string              `json:"eventId"`
	PayoutID        string              `json:"payoutId"`
	AccountID       string              `json:"accountId"`
	FromStatus      models.PayoutStatus `json:"fromStatus,omitempty"`
	ToStatus        models.PayoutStatus `json:"toStatus"`
	Reason          string              `json:"reason,omitempty"`
	Actor           string              `json:"actor,omitempty"`
	AmountRequested string              `json:"amountRequested"`
	FeeAmount       string              `json:"feeAmount"`
	AmountNet       string              `json:"amountNet"`
	TransferID      string              `json:"transferId,omitempty"`
	OccurredAt      string              `json:"occurredAt"`
}

// ElasticAuditSink mirrors the relational audit trail into Elasticsearch
// for search. The database row stays the source of truth.
type ElasticAuditSink struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticAuditSink(client *elasticsearch.Client, index string) *ElasticAuditSink {
	if index == "" {
		index = "payout-audit"
	}
	return &ElasticAuditSink{client: client, index: index}
}

func (s *ElasticAuditSink) IndexEvent(ctx context.Context, ev models.PayoutEvent, req *models.PayoutRequest) error {
	doc := auditDocument{
		EventID:    ev.ID,
		PayoutID:   ev.PayoutID,
		AccountID:  ev.AccountID,
		FromStatus: ev.FromStatus,
		ToStatus:   ev.ToStatus,
		Reason:     ev.Reason,
		Actor:      ev.Actor,
		OccurredAt: ev.OccurredAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
	if req != nil {
		doc.AmountRequested = req.AmountRequested.String()
		doc.FeeAmount = req.FeeAmount.String()
		doc.AmountNet = req.AmountNet.String()
		if req.TransferID != nil {
			doc.TransferID = *req.TransferID
		}
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal audit document: %w", err)
	}

	res, err := s.client.Index(
		s.index,
		bytes.NewReader(body),
		s.client.Index.WithDocumentID(ev.ID),
		s.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("index audit document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return fmt.Errorf("index audit document: %s: %s", res.Status(), string(msg))
	}
	return nil
}
