package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"taxportal/internal/metrics"
	"taxportal/internal/model"
	"taxportal/internal/notify"
	"taxportal/internal/payment"
	"taxportal/internal/repository"
)

// InitiatePaymentInput starts a checkout for a service, optionally tied to a submission.
type InitiatePaymentInput struct {
	ServiceID    string `json:"service_id"`
	SubmissionID string `json:"submission_id,omitempty"`
}

// InitiatePaymentResult is the stored transaction and the form the browser posts to the gateway.
type InitiatePaymentResult struct {
	Transaction *model.PaymentTransaction `json:"transaction"`
	Form        payment.Form              `json:"form"`
}

// PaymentService drives the hosted checkout.
type PaymentService interface {
	Initiate(ctx context.Context, actor Actor, in InitiatePaymentInput) (*InitiatePaymentResult, error)
	// HandleCallback verifies and applies a gateway post-back. Replays of a settled
	// transaction return it unchanged.
	HandleCallback(ctx context.Context, fields map[string]string) (*model.PaymentTransaction, error)
	ListMine(ctx context.Context, actor Actor, limit, offset int) (*ListResult[model.PaymentTransaction], error)
	List(ctx context.Context, limit, offset int) (*ListResult[model.PaymentTransaction], error)
}

// PaymentDeps groups the collaborators of the payment service.
type PaymentDeps struct {
	Payments    repository.PaymentRepository
	Submissions repository.SubmissionRepository
	Catalog     repository.CatalogRepository
	Users       repository.UserRepository
	Gateway     payment.Gateway
	Notifier    notify.Notifier
	Metrics     *metrics.Metrics
	Log         *slog.Logger
}

type paymentService struct {
	payments repository.PaymentRepository
	subs     repository.SubmissionRepository
	catalog  repository.CatalogRepository
	users    repository.UserRepository
	gateway  payment.Gateway
	notifier ownerNotifier
	metrics  *metrics.Metrics
	log      *slog.Logger
	now      func() time.Time
}

func NewPaymentService(d PaymentDeps) PaymentService {
	log := loggerOrDefault(d.Log)
	return &paymentService{
		payments: d.Payments,
		subs:     d.Submissions,
		catalog:  d.Catalog,
		users:    d.Users,
		gateway:  d.Gateway,
		notifier: ownerNotifier{users: d.Users, notifier: d.Notifier, log: log},
		metrics:  d.Metrics,
		log:      log,
		now:      time.Now,
	}
}

// newTxnID returns a 22 character id; gateways cap txnid at 25.
func newTxnID() string {
	return "TP" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:20])
}

func (s *paymentService) Initiate(ctx context.Context, actor Actor, in InitiatePaymentInput) (res *InitiatePaymentResult, err error) {
	ctx, span := startSpan(ctx, "payment.Initiate")
	defer func() { endSpan(span, err) }()

	if actor.UserID == "" {
		return nil, ErrForbidden
	}
	if in.ServiceID == "" {
		return nil, validationf("service_id is required")
	}
	if err := checkID("service_id", in.ServiceID); err != nil {
		return nil, err
	}
	if in.SubmissionID != "" {
		if err := checkID("submission_id", in.SubmissionID); err != nil {
			return nil, err
		}
	}
	svc, err := s.catalog.FindByID(ctx, in.ServiceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, validationf("unknown service")
		}
		return nil, fmt.Errorf("find service: %w", err)
	}
	if !svc.Active {
		return nil, validationf("service %s is not available", svc.Code)
	}

	amount := svc.Price
	if in.SubmissionID != "" {
		sub, err := s.subs.FindByID(ctx, in.SubmissionID)
		if err != nil {
			return nil, notFound("find submission", err)
		}
		if sub.UserID != actor.UserID {
			return nil, ErrForbidden
		}
		if sub.ServiceID != svc.ID {
			return nil, validationf("submission belongs to a different service")
		}
		if sub.PaymentStatus == model.PaymentPaid {
			return nil, fmt.Errorf("submission already paid: %w", ErrConflict)
		}
		amount = sub.Amount
	}
	if amount <= 0 {
		return nil, validationf("service %s has no price", svc.Code)
	}

	u, err := s.users.FindByID(ctx, actor.UserID)
	if err != nil {
		return nil, notFound("find user", err)
	}

	txn, err := s.payments.Create(ctx, &model.PaymentTransaction{
		ID:           uuid.New().String(),
		TxnID:        newTxnID(),
		UserID:       u.ID,
		ServiceID:    svc.ID,
		SubmissionID: in.SubmissionID,
		Amount:       amount,
		Status:       model.TxnInitiated,
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}
	span.SetAttributes(attribute.String("payment.txn_id", txn.TxnID))

	form := s.gateway.BuildForm(payment.Checkout{
		TxnID:       txn.TxnID,
		Amount:      txn.Amount,
		ProductInfo: svc.Name,
		FirstName:   firstName(u.Name),
		Email:       u.Email,
		Phone:       u.Phone,
		UDF1:        u.ID,
		UDF2:        in.SubmissionID,
	})
	s.log.Info("payment initiated", "txn_id", txn.TxnID, "user_id", u.ID, "amount", txn.Amount)
	return &InitiatePaymentResult{Transaction: txn, Form: form}, nil
}

func firstName(name string) string {
	if f := strings.Fields(name); len(f) > 0 {
		return f[0]
	}
	return name
}

// parsePaise accepts "1499", "1499.0" or "1499.00".
func parsePaise(amount string) (int64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(amount), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(math.Round(f * 100)), true
}

func (s *paymentService) HandleCallback(ctx context.Context, fields map[string]string) (txn *model.PaymentTransaction, err error) {
	ctx, span := startSpan(ctx, "payment.HandleCallback")
	defer func() { endSpan(span, err) }()

	cb := payment.CallbackFromFields(fields)
	if cb.TxnID == "" {
		return nil, validationf("txnid is required")
	}
	span.SetAttributes(attribute.String("payment.txn_id", cb.TxnID))

	txn, err = s.payments.FindByTxnID(ctx, cb.TxnID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("find transaction: %w", err)
	}
	if !s.gateway.Verify(cb) {
		s.log.Warn("payment callback signature mismatch", "txn_id", cb.TxnID)
		return nil, ErrInvalidSignature
	}
	if txn.Status.Final() {
		return txn, nil
	}
	if paise, ok := parsePaise(cb.Amount); !ok || paise != txn.Amount {
		s.log.Warn("payment callback amount mismatch", "txn_id", cb.TxnID, "expected", txn.Amount, "got", cb.Amount)
		return nil, ErrAmountMismatch
	}

	status := model.TxnFailure
	if strings.EqualFold(cb.Status, "success") {
		status = model.TxnSuccess
	}
	raw, err := json.Marshal(cb.Raw)
	if err != nil {
		return nil, fmt.Errorf("encode callback: %w", err)
	}

	now := s.now().UTC()
	if err := s.payments.Settle(ctx, txn.TxnID, status, cb.GatewayRef, raw, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// settled concurrently by a duplicate callback
			return s.reload(ctx, txn.TxnID)
		}
		return nil, fmt.Errorf("settle transaction: %w", err)
	}

	txn.Status = status
	txn.GatewayRef = cb.GatewayRef
	txn.RawResponse = raw
	txn.UpdatedAt = now
	s.metrics.PaymentCallback(string(status))
	s.log.Info("payment settled", "txn_id", txn.TxnID, "status", status, "gateway_ref", cb.GatewayRef)
	subject, body := paymentSettled(txn)
	s.notifier.send(ctx, txn.UserID, subject, body)
	return txn, nil
}

func (s *paymentService) reload(ctx context.Context, txnID string) (*model.PaymentTransaction, error) {
	txn, err := s.payments.FindByTxnID(ctx, txnID)
	if err != nil {
		return nil, fmt.Errorf("reload transaction: %w", err)
	}
	return txn, nil
}

func (s *paymentService) ListMine(ctx context.Context, actor Actor, limit, offset int) (*ListResult[model.PaymentTransaction], error) {
	if actor.UserID == "" {
		return nil, ErrForbidden
	}
	res, err := s.payments.List(ctx, actor.UserID, pageQuery(limit, offset))
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return toList(res), nil
}

func (s *paymentService) List(ctx context.Context, limit, offset int) (*ListResult[model.PaymentTransaction], error) {
	res, err := s.payments.List(ctx, "", pageQuery(limit, offset))
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return toList(res), nil
}
