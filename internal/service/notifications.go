package service

import (
	"context"
	"fmt"
	"log/slog"

	"taxportal/internal/model"
	"taxportal/internal/notify"
	"taxportal/internal/payment"
	"taxportal/internal/repository"
)

// ownerNotifier resolves a user's contact details and hands the message to the dispatcher.
type ownerNotifier struct {
	users    repository.UserRepository
	notifier notify.Notifier
	log      *slog.Logger
}

func (n ownerNotifier) send(ctx context.Context, userID, subject, body string) {
	if n.notifier == nil {
		return
	}
	u, err := n.users.FindByID(ctx, userID)
	if err != nil {
		n.log.Warn("notification skipped", "user_id", userID, "error", err)
		return
	}
	n.notifier.Notify(ctx, notify.Message{
		To:      u.Email,
		Phone:   u.Phone,
		Subject: subject,
		Body:    fmt.Sprintf("Hello %s,\n\n%s\n\nTax Portal", u.Name, body),
	})
}

func submissionReceived(sub *model.Submission, svc *model.Service) (string, string) {
	return "Submission received: " + svc.Name,
		fmt.Sprintf("We have received your %s application (reference %s). Our team will review it shortly.", svc.Name, sub.ID)
}

func submissionStatusChanged(sub *model.Submission, status model.SubmissionStatus, note string) (string, string) {
	label := map[model.SubmissionStatus]string{
		model.StatusUnderReview: "is under review",
		model.StatusApproved:    "has been approved",
		model.StatusRejected:    "has been rejected",
	}[status]
	body := fmt.Sprintf("Your submission %s %s.", sub.ID, label)
	if note != "" {
		body += "\n\nNote from our team: " + note
	}
	return "Submission update: " + string(status), body
}

func paymentSettled(txn *model.PaymentTransaction) (string, string) {
	if txn.Status == model.TxnSuccess {
		return "Payment received",
			fmt.Sprintf("We received your payment of Rs. %s (transaction %s).", payment.FormatAmount(txn.Amount), txn.TxnID)
	}
	return "Payment failed",
		fmt.Sprintf("Your payment of Rs. %s (transaction %s) did not go through. You can retry from your dashboard.", payment.FormatAmount(txn.Amount), txn.TxnID)
}
