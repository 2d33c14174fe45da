package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"taxportal/internal/model"
	"taxportal/internal/notify"
	notifyMocks "taxportal/internal/notify/mocks"
	"taxportal/internal/payment"
	repoMocks "taxportal/internal/repository/mocks"
)

const paySubID = "3f2b7c1d-9e4a-4b6c-8d5e-2a1f0c9b8e7d"

var testGateway = payment.Gateway{
	Key:        "merchant",
	Salt:       "salt",
	ActionURL:  "https://gateway.test/_payment",
	SuccessURL: "https://portal.test/payments/callback",
	FailureURL: "https://portal.test/payments/callback",
}

type paymentMocks struct {
	payments *repoMocks.MockPaymentRepository
	subs     *repoMocks.MockSubmissionRepository
	catalog  *repoMocks.MockCatalogRepository
	users    *repoMocks.MockUserRepository
	notifier *notifyMocks.MockNotifier
}

func newTestPaymentService() (*paymentService, *paymentMocks) {
	m := &paymentMocks{
		payments: new(repoMocks.MockPaymentRepository),
		subs:     new(repoMocks.MockSubmissionRepository),
		catalog:  new(repoMocks.MockCatalogRepository),
		users:    new(repoMocks.MockUserRepository),
		notifier: new(notifyMocks.MockNotifier),
	}
	svc := NewPaymentService(PaymentDeps{
		Payments:    m.payments,
		Submissions: m.subs,
		Catalog:     m.catalog,
		Users:       m.users,
		Gateway:     testGateway,
		Notifier:    m.notifier,
	}).(*paymentService)
	svc.now = func() time.Time { return fixedNow }
	return svc, m
}

func signedCallback(status, txnID, amount, udf1, udf2 string) map[string]string {
	f := map[string]string{
		"status":      status,
		"txnid":       txnID,
		"amount":      amount,
		"productinfo": "GST Registration",
		"firstname":   "Asha",
		"email":       "asha@example.com",
		"udf1":        udf1,
		"udf2":        udf2,
		"mihpayid":    "403993715521",
	}
	f["hash"] = testGateway.ResponseHash(payment.CallbackFromFields(f))
	return f
}

func TestPaymentService_Initiate(t *testing.T) {
	ctx := context.Background()
	actor := Actor{UserID: "u-1", Role: model.RoleUser}

	t.Run("for a submission", func(t *testing.T) {
		svc, m := newTestPaymentService()
		m.catalog.On("FindByID", mock.Anything, gstServiceID).Return(gstService, nil)
		m.subs.On("FindByID", mock.Anything, paySubID).
			Return(&model.Submission{ID: paySubID, UserID: "u-1", ServiceID: gstServiceID, Amount: 99900, PaymentStatus: model.PaymentUnpaid}, nil)
		m.users.On("FindByID", mock.Anything, "u-1").
			Return(&model.User{ID: "u-1", Name: "Asha Rao", Email: "asha@example.com", Phone: "9800000000"}, nil)
		m.payments.On("Create", mock.Anything, mock.MatchedBy(func(txn *model.PaymentTransaction) bool {
			return len(txn.TxnID) == 22 && txn.Amount == 99900 && txn.Status == model.TxnInitiated && txn.SubmissionID == paySubID
		})).Return(func(_ context.Context, txn *model.PaymentTransaction) *model.PaymentTransaction { return txn }, nil)

		res, err := svc.Initiate(ctx, actor, InitiatePaymentInput{ServiceID: gstServiceID, SubmissionID: paySubID})
		require.NoError(t, err)
		assert.Equal(t, testGateway.ActionURL, res.Form.Action)
		assert.Equal(t, "999.00", res.Form.Fields["amount"])
		assert.Equal(t, "Asha", res.Form.Fields["firstname"])
		assert.Equal(t, "u-1", res.Form.Fields["udf1"])
		assert.Equal(t, paySubID, res.Form.Fields["udf2"])
		assert.Equal(t, testGateway.RequestHash(payment.Checkout{
			TxnID: res.Transaction.TxnID, Amount: 99900, ProductInfo: "GST Registration",
			FirstName: "Asha", Email: "asha@example.com", UDF1: "u-1", UDF2: paySubID,
		}), res.Form.Fields["hash"])
		m.payments.AssertExpectations(t)
	})

	t.Run("someone else's submission", func(t *testing.T) {
		svc, m := newTestPaymentService()
		m.catalog.On("FindByID", mock.Anything, gstServiceID).Return(gstService, nil)
		m.subs.On("FindByID", mock.Anything, paySubID).Return(&model.Submission{ID: paySubID, UserID: "u-2", ServiceID: gstServiceID}, nil)
		_, err := svc.Initiate(ctx, actor, InitiatePaymentInput{ServiceID: gstServiceID, SubmissionID: paySubID})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("already paid", func(t *testing.T) {
		svc, m := newTestPaymentService()
		m.catalog.On("FindByID", mock.Anything, gstServiceID).Return(gstService, nil)
		m.subs.On("FindByID", mock.Anything, paySubID).
			Return(&model.Submission{ID: paySubID, UserID: "u-1", ServiceID: gstServiceID, PaymentStatus: model.PaymentPaid}, nil)
		_, err := svc.Initiate(ctx, actor, InitiatePaymentInput{ServiceID: gstServiceID, SubmissionID: paySubID})
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("unknown service", func(t *testing.T) {
		svc, m := newTestPaymentService()
		m.catalog.On("FindByID", mock.Anything, gstServiceID).Return(nil, sql.ErrNoRows)
		_, err := svc.Initiate(ctx, actor, InitiatePaymentInput{ServiceID: gstServiceID})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("malformed ids never reach the database", func(t *testing.T) {
		for _, in := range []InitiatePaymentInput{
			{ServiceID: "abc"},
			{ServiceID: gstServiceID, SubmissionID: "s-1"},
		} {
			svc, m := newTestPaymentService()
			_, err := svc.Initiate(ctx, actor, in)
			assert.ErrorIs(t, err, ErrValidation)
			m.catalog.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
			m.subs.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
		}
	})
}

func TestPaymentService_HandleCallback(t *testing.T) {
	ctx := context.Background()
	initiated := func() *model.PaymentTransaction {
		return &model.PaymentTransaction{TxnID: "TP1", UserID: "u-1", SubmissionID: paySubID, Amount: 149900, Status: model.TxnInitiated}
	}

	t.Run("success marks submission paid and notifies", func(t *testing.T) {
		svc, m := newTestPaymentService()
		m.payments.On("FindByTxnID", mock.Anything, "TP1").Return(initiated(), nil)
		m.payments.On("Settle", mock.Anything, "TP1", model.TxnSuccess, "403993715521", mock.MatchedBy(func(raw json.RawMessage) bool {
			var f map[string]string
			return json.Unmarshal(raw, &f) == nil && f["txnid"] == "TP1"
		}), fixedNow).Return(nil)
		m.users.On("FindByID", mock.Anything, "u-1").Return(&model.User{ID: "u-1", Email: "asha@example.com"}, nil)
		m.notifier.On("Notify", mock.Anything, mock.MatchedBy(func(msg notify.Message) bool {
			return msg.Subject == "Payment received"
		})).Return()

		txn, err := svc.HandleCallback(ctx, signedCallback("success", "TP1", "1499.00", "u-1", paySubID))
		require.NoError(t, err)
		assert.Equal(t, model.TxnSuccess, txn.Status)
		assert.Equal(t, "403993715521", txn.GatewayRef)
		m.payments.AssertExpectations(t)
		m.notifier.AssertExpectations(t)
	})

	t.Run("gateway failure settles as failure", func(t *testing.T) {
		svc, m := newTestPaymentService()
		m.payments.On("FindByTxnID", mock.Anything, "TP1").Return(initiated(), nil)
		m.payments.On("Settle", mock.Anything, "TP1", model.TxnFailure, "403993715521", mock.Anything, fixedNow).Return(nil)
		m.users.On("FindByID", mock.Anything, "u-1").Return(&model.User{ID: "u-1"}, nil)
		m.notifier.On("Notify", mock.Anything, mock.Anything).Return()

		txn, err := svc.HandleCallback(ctx, signedCallback("failure", "TP1", "1499.00", "u-1", paySubID))
		require.NoError(t, err)
		assert.Equal(t, model.TxnFailure, txn.Status)
		m.payments.AssertExpectations(t)
	})

	t.Run("tampered hash", func(t *testing.T) {
		svc, m := newTestPaymentService()
		m.payments.On("FindByTxnID", mock.Anything, "TP1").Return(initiated(), nil)
		f := signedCallback("success", "TP1", "1499.00", "u-1", paySubID)
		f["status"] = "success"
		f["amount"] = "1.00"
		_, err := svc.HandleCallback(ctx, f)
		assert.ErrorIs(t, err, ErrInvalidSignature)
		m.payments.AssertNotCalled(t, "Settle", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("correctly signed but wrong amount", func(t *testing.T) {
		svc, m := newTestPaymentService()
		m.payments.On("FindByTxnID", mock.Anything, "TP1").Return(initiated(), nil)
		_, err := svc.HandleCallback(ctx, signedCallback("success", "TP1", "1.00", "u-1", paySubID))
		assert.ErrorIs(t, err, ErrAmountMismatch)
	})

	t.Run("unknown transaction", func(t *testing.T) {
		svc, m := newTestPaymentService()
		m.payments.On("FindByTxnID", mock.Anything, "TP404").Return(nil, sql.ErrNoRows)
		_, err := svc.HandleCallback(ctx, signedCallback("success", "TP404", "1.00", "", ""))
		assert.ErrorIs(t, err, ErrTransactionNotFound)
	})

	t.Run("replay is idempotent", func(t *testing.T) {
		svc, m := newTestPaymentService()
		settled := initiated()
		settled.Status = model.TxnSuccess
		m.payments.On("FindByTxnID", mock.Anything, "TP1").Return(settled, nil)

		txn, err := svc.HandleCallback(ctx, signedCallback("success", "TP1", "1499.00", "u-1", paySubID))
		require.NoError(t, err)
		assert.Equal(t, model.TxnSuccess, txn.Status)
		m.payments.AssertNotCalled(t, "Settle", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("concurrent settle returns stored row", func(t *testing.T) {
		svc, m := newTestPaymentService()
		settled := initiated()
		settled.Status = model.TxnSuccess
		m.payments.On("FindByTxnID", mock.Anything, "TP1").Return(initiated(), nil).Once()
		m.payments.On("Settle", mock.Anything, "TP1", model.TxnSuccess, mock.Anything, mock.Anything, fixedNow).Return(sql.ErrNoRows)
		m.payments.On("FindByTxnID", mock.Anything, "TP1").Return(settled, nil).Once()

		txn, err := svc.HandleCallback(ctx, signedCallback("success", "TP1", "1499.00", "u-1", paySubID))
		require.NoError(t, err)
		assert.Equal(t, model.TxnSuccess, txn.Status)
	})

	t.Run("failed settle is retried by the gateway", func(t *testing.T) {
		svc, m := newTestPaymentService()
		// the failed settle rolled back, so the retry still finds the row initiated
		m.payments.On("FindByTxnID", mock.Anything, "TP1").Return(initiated(), nil).Twice()
		m.payments.On("Settle", mock.Anything, "TP1", model.TxnSuccess, "403993715521", mock.Anything, fixedNow).
			Return(errors.New("conn reset")).Once()
		m.payments.On("Settle", mock.Anything, "TP1", model.TxnSuccess, "403993715521", mock.Anything, fixedNow).
			Return(nil).Once()
		m.users.On("FindByID", mock.Anything, "u-1").Return(&model.User{ID: "u-1", Email: "asha@example.com"}, nil)
		m.notifier.On("Notify", mock.Anything, mock.Anything).Return()

		cb := signedCallback("success", "TP1", "1499.00", "u-1", paySubID)
		_, err := svc.HandleCallback(ctx, cb)
		require.EqualError(t, err, "settle transaction: conn reset")
		m.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)

		txn, err := svc.HandleCallback(ctx, cb)
		require.NoError(t, err)
		assert.Equal(t, model.TxnSuccess, txn.Status)
		m.payments.AssertNumberOfCalls(t, "Settle", 2)
		m.notifier.AssertNumberOfCalls(t, "Notify", 1)
	})

	t.Run("missing txnid", func(t *testing.T) {
		svc, _ := newTestPaymentService()
		_, err := svc.HandleCallback(ctx, map[string]string{"status": "success"})
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestParsePaise(t *testing.T) {
	for in, want := range map[string]int64{"1499.00": 149900, "1499": 149900, "0.1": 10, " 10.50 ": 1050} {
		got, ok := parsePaise(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := parsePaise("abc")
	assert.False(t, ok)
}
