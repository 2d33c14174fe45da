package model

import "time"

// SubmissionStatus is the review state of a submission.
type SubmissionStatus string

const (
	StatusPending     SubmissionStatus = "pending"
	StatusUnderReview SubmissionStatus = "under_review"
	StatusApproved    SubmissionStatus = "approved"
	StatusRejected    SubmissionStatus = "rejected"
)

var transitions = map[SubmissionStatus][]SubmissionStatus{
	StatusPending:     {StatusUnderReview, StatusApproved, StatusRejected},
	StatusUnderReview: {StatusApproved, StatusRejected},
}

// Valid reports whether s is a known status.
func (s SubmissionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusUnderReview, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal statuses accept no further transitions.
func (s SubmissionStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// CanTransition reports whether a submission may move from s to next.
func (s SubmissionStatus) CanTransition(next SubmissionStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PaymentState tracks whether the service fee for a submission was collected.
type PaymentState string

const (
	PaymentUnpaid PaymentState = "unpaid"
	PaymentPaid   PaymentState = "paid"
)

// Submission is a user's filed service application.
type Submission struct {
	ID            string           `json:"id"`
	UserID        string           `json:"user_id"`
	ServiceID     string           `json:"service_id"`
	FormData      map[string]any   `json:"form_data"`
	State         string           `json:"state"`
	City          string           `json:"city"`
	Pincode       string           `json:"pincode"`
	Status        SubmissionStatus `json:"status"`
	PaymentStatus PaymentState     `json:"payment_status"`
	Amount        int64            `json:"amount"`
	Attachments   []Attachment     `json:"attachments,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// Attachment is a file uploaded with a submission and stored in object storage.
type Attachment struct {
	ID           string    `json:"id"`
	SubmissionID string    `json:"submission_id"`
	FieldName    string    `json:"field_name"`
	Filename     string    `json:"filename"`
	StoragePath  string    `json:"-"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type"`
	CreatedAt    time.Time `json:"created_at"`
}

// Note is a staff annotation on a submission.
type Note struct {
	ID           string    `json:"id"`
	SubmissionID string    `json:"submission_id"`
	AuthorID     string    `json:"author_id"`
	Body         string    `json:"body"`
	CreatedAt    time.Time `json:"created_at"`
}
