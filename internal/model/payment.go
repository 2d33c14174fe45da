package model

import (
	"encoding/json"
	"time"
)

// TransactionStatus is the gateway outcome of a payment attempt.
type TransactionStatus string

const (
	TxnInitiated TransactionStatus = "initiated"
	TxnSuccess   TransactionStatus = "success"
	TxnFailure   TransactionStatus = "failure"
)

// Final reports whether the gateway has already settled the transaction.
func (s TransactionStatus) Final() bool {
	return s == TxnSuccess || s == TxnFailure
}

// PaymentTransaction records one gateway payment attempt for a service purchase.
type PaymentTransaction struct {
	ID           string            `json:"id"`
	TxnID        string            `json:"txn_id"`
	UserID       string            `json:"user_id"`
	ServiceID    string            `json:"service_id"`
	SubmissionID string            `json:"submission_id,omitempty"`
	Amount       int64             `json:"amount"`
	Status       TransactionStatus `json:"status"`
	GatewayRef   string            `json:"gateway_ref,omitempty"`
	RawResponse  json.RawMessage   `json:"-"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}
