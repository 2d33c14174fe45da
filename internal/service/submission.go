package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"taxportal/internal/filecheck"
	"taxportal/internal/metrics"
	"taxportal/internal/model"
	"taxportal/internal/notify"
	"taxportal/internal/repository"
	"taxportal/internal/storage"
)

// UploadPolicy bounds attachments per submission.
type UploadPolicy struct {
	MaxFileSize int64
	MaxFiles    int
	PresignTTL  time.Duration
}

// UploadFile is one multipart file of a submission. FieldName ties it to a form field.
type UploadFile struct {
	FieldName string
	Filename  string
	Size      int64
	Reader    io.Reader
}

// CreateSubmissionInput is a user's filing.
type CreateSubmissionInput struct {
	ServiceID string
	FormData  map[string]any
	Files     []UploadFile
}

// StaffFilter narrows the staff queue.
type StaffFilter struct {
	Status    model.SubmissionStatus
	ServiceID string
}

// SubmissionService implements filing, review and attachment access.
type SubmissionService interface {
	// Create validates the form and files, uploads the files and stores the submission.
	// Uploaded objects are removed again if the database write fails.
	Create(ctx context.Context, actor Actor, in CreateSubmissionInput) (*model.Submission, error)
	ListMine(ctx context.Context, actor Actor, limit, offset int) (*ListResult[model.Submission], error)
	Get(ctx context.Context, actor Actor, id string) (*model.Submission, error)
	// ListForStaff returns everything to admins and only region matches to region admins.
	ListForStaff(ctx context.Context, actor Actor, f StaffFilter, limit, offset int) (*ListResult[model.Submission], error)
	UpdateStatus(ctx context.Context, actor Actor, id string, status model.SubmissionStatus, note string) (*model.Submission, error)
	AddNote(ctx context.Context, actor Actor, id, body string) (*model.Note, error)
	ListNotes(ctx context.Context, actor Actor, id string) ([]model.Note, error)
	// AttachmentURL returns a presigned download URL for one attachment.
	AttachmentURL(ctx context.Context, actor Actor, submissionID, attachmentID string) (string, error)
}

type submissionService struct {
	subs     repository.SubmissionRepository
	catalog  repository.CatalogRepository
	regions  repository.RegionRepository
	store    storage.Storage
	notifier ownerNotifier
	metrics  *metrics.Metrics
	policy   UploadPolicy
	log      *slog.Logger
	now      func() time.Time
}

// SubmissionDeps groups the collaborators of the submission service.
type SubmissionDeps struct {
	Submissions repository.SubmissionRepository
	Catalog     repository.CatalogRepository
	Regions     repository.RegionRepository
	Users       repository.UserRepository
	Store       storage.Storage
	Notifier    notify.Notifier
	Metrics     *metrics.Metrics
	Log         *slog.Logger
}

func NewSubmissionService(d SubmissionDeps, policy UploadPolicy) SubmissionService {
	if policy.MaxFileSize <= 0 {
		policy.MaxFileSize = filecheck.DefaultMaxSize
	}
	if policy.MaxFiles <= 0 {
		policy.MaxFiles = 10
	}
	if policy.PresignTTL <= 0 {
		policy.PresignTTL = 15 * time.Minute
	}
	log := loggerOrDefault(d.Log)
	return &submissionService{
		subs:     d.Submissions,
		catalog:  d.Catalog,
		regions:  d.Regions,
		store:    d.Store,
		notifier: ownerNotifier{users: d.Users, notifier: d.Notifier, log: log},
		metrics:  d.Metrics,
		policy:   policy,
		log:      log,
		now:      time.Now,
	}
}

type checkedFile struct {
	UploadFile
	result filecheck.Result
	body   io.Reader
}

func formString(data map[string]any, key string) string {
	v, ok := data[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func (s *submissionService) validateForm(svc *model.Service, in CreateSubmissionInput) error {
	provided := make(map[string]bool, len(in.Files))
	for _, f := range in.Files {
		provided[f.FieldName] = true
	}
	var missing []string
	for _, field := range svc.FormFields {
		if !field.Required {
			continue
		}
		if field.Type == "file" {
			if !provided[field.Name] {
				missing = append(missing, field.Name)
			}
			continue
		}
		if formString(in.FormData, field.Name) == "" {
			missing = append(missing, field.Name)
		}
	}
	if len(missing) > 0 {
		return validationf("missing required fields: %s", strings.Join(missing, ", "))
	}
	if pin := formString(in.FormData, "pincode"); pin != "" && !pincodePattern.MatchString(pin) {
		return validationf("pincode must be 6 digits")
	}
	if len(in.Files) > s.policy.MaxFiles {
		return validationf("at most %d files may be attached", s.policy.MaxFiles)
	}
	return nil
}

func (s *submissionService) checkFiles(files []UploadFile) ([]checkedFile, error) {
	out := make([]checkedFile, 0, len(files))
	for _, f := range files {
		if f.Reader == nil {
			return nil, fmt.Errorf("attachment %q: %w", f.Filename, filecheck.ErrEmptyFile)
		}
		header, body, err := filecheck.Sniff(f.Reader)
		if err != nil {
			return nil, fmt.Errorf("read attachment %q: %w", f.Filename, err)
		}
		res, err := filecheck.Validate(f.Filename, header, f.Size, s.policy.MaxFileSize)
		if err != nil {
			return nil, fmt.Errorf("attachment %q: %w", f.Filename, err)
		}
		out = append(out, checkedFile{UploadFile: f, result: res, body: body})
	}
	return out, nil
}

func (s *submissionService) rollback(keys []string) {
	// the request context may already be cancelled
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, k := range keys {
		if err := s.store.Delete(ctx, k); err != nil {
			s.log.Error("rollback delete failed", "key", k, "error", err)
		}
	}
}

func (s *submissionService) Create(ctx context.Context, actor Actor, in CreateSubmissionInput) (sub *model.Submission, err error) {
	ctx, span := startSpan(ctx, "submission.Create")
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
	if in.FormData == nil {
		in.FormData = map[string]any{}
	}
	svc, err := s.catalog.FindByID(ctx, in.ServiceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, validationf("unknown service")
		}
		return nil, fmt.Errorf("find service: %w", err)
	}
	if !svc.Active {
		return nil, validationf("service %s is not accepting submissions", svc.Code)
	}
	if err := s.validateForm(svc, in); err != nil {
		return nil, err
	}
	files, err := s.checkFiles(in.Files)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	subID := uuid.New().String()
	span.SetAttributes(attribute.String("submission.id", subID), attribute.Int("submission.files", len(files)))

	uploaded := make([]string, 0, len(files))
	attachments := make([]model.Attachment, 0, len(files))
	for _, f := range files {
		key := path.Join("submissions", subID, uuid.New().String()+f.result.Extension)
		info, err := s.store.Put(ctx, key, f.body, storage.PutObjectOptions{
			Size:        f.Size,
			ContentType: f.result.ContentType,
			Metadata: map[string]string{
				"original-filename": f.Filename,
				"field-name":        f.FieldName,
			},
		})
		if err != nil {
			s.rollback(uploaded)
			return nil, fmt.Errorf("upload to storage: %w", err)
		}
		uploaded = append(uploaded, key)
		size := info.Size
		if size <= 0 {
			size = f.Size
		}
		attachments = append(attachments, model.Attachment{
			ID:           uuid.New().String(),
			SubmissionID: subID,
			FieldName:    f.FieldName,
			Filename:     path.Base(strings.ReplaceAll(f.Filename, "\\", "/")),
			StoragePath:  key,
			Size:         size,
			ContentType:  f.result.ContentType,
			CreatedAt:    now,
		})
	}

	stored, err := s.subs.Create(ctx, &model.Submission{
		ID:            subID,
		UserID:        actor.UserID,
		ServiceID:     svc.ID,
		FormData:      in.FormData,
		State:         formString(in.FormData, "state"),
		City:          formString(in.FormData, "city"),
		Pincode:       formString(in.FormData, "pincode"),
		Status:        model.StatusPending,
		PaymentStatus: model.PaymentUnpaid,
		Amount:        svc.Price,
		Attachments:   attachments,
		CreatedAt:     now,
	})
	if err != nil {
		s.rollback(uploaded)
		return nil, fmt.Errorf("db save failed: %w", err)
	}

	s.metrics.SubmissionStatus(string(model.StatusPending))
	s.log.Info("submission created", "submission_id", stored.ID, "service", svc.Code, "files", len(attachments))
	subject, body := submissionReceived(stored, svc)
	s.notifier.send(ctx, actor.UserID, subject, body)
	return stored, nil
}

func (s *submissionService) ListMine(ctx context.Context, actor Actor, limit, offset int) (*ListResult[model.Submission], error) {
	if actor.UserID == "" {
		return nil, ErrForbidden
	}
	res, err := s.subs.List(ctx, repository.SubmissionFilter{UserID: actor.UserID}, pageQuery(limit, offset))
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return toList(res), nil
}

// canView allows the owner, admins, and region admins whose regions match the address.
func (s *submissionService) canView(ctx context.Context, actor Actor, sub *model.Submission) (bool, error) {
	switch {
	case actor.UserID != "" && sub.UserID == actor.UserID:
		return true, nil
	case actor.Role == model.RoleAdmin:
		return true, nil
	case actor.Role == model.RoleRegionAdmin:
		return s.inRegion(ctx, actor, sub)
	}
	return false, nil
}

func (s *submissionService) inRegion(ctx context.Context, actor Actor, sub *model.Submission) (bool, error) {
	regions, err := s.regions.ListForUser(ctx, actor.UserID)
	if err != nil {
		return false, fmt.Errorf("list regions: %w", err)
	}
	for _, r := range regions {
		if r.Matches(sub.State, sub.City, sub.Pincode) {
			return true, nil
		}
	}
	return false, nil
}

// canReview is canView restricted to staff.
func (s *submissionService) canReview(ctx context.Context, actor Actor, sub *model.Submission) (bool, error) {
	switch actor.Role {
	case model.RoleAdmin:
		return true, nil
	case model.RoleRegionAdmin:
		return s.inRegion(ctx, actor, sub)
	}
	return false, nil
}

func (s *submissionService) load(ctx context.Context, id string) (*model.Submission, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	sub, err := s.subs.FindByID(ctx, id)
	if err != nil {
		return nil, notFound("find submission", err)
	}
	return sub, nil
}

func (s *submissionService) loadVisible(ctx context.Context, actor Actor, id string) (*model.Submission, error) {
	sub, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.canView(ctx, actor, sub)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}
	return sub, nil
}

func (s *submissionService) Get(ctx context.Context, actor Actor, id string) (*model.Submission, error) {
	return s.loadVisible(ctx, actor, id)
}

func (s *submissionService) ListForStaff(ctx context.Context, actor Actor, f StaffFilter, limit, offset int) (*ListResult[model.Submission], error) {
	if !actor.Role.IsStaff() {
		return nil, ErrForbidden
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, validationf("unknown status %q", f.Status)
	}
	if f.ServiceID != "" {
		if err := checkID("service_id", f.ServiceID); err != nil {
			return nil, err
		}
	}
	filter := repository.SubmissionFilter{ServiceID: f.ServiceID, Status: f.Status}
	if actor.Role == model.RoleRegionAdmin {
		filter.RegionAdminID = actor.UserID
	}
	res, err := s.subs.List(ctx, filter, pageQuery(limit, offset))
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return toList(res), nil
}

func (s *submissionService) UpdateStatus(ctx context.Context, actor Actor, id string, status model.SubmissionStatus, note string) (sub *model.Submission, err error) {
	ctx, span := startSpan(ctx, "submission.UpdateStatus")
	defer func() { endSpan(span, err) }()

	if !actor.Role.IsStaff() {
		return nil, ErrForbidden
	}
	if !status.Valid() {
		return nil, validationf("unknown status %q", status)
	}
	sub, err = s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.canReview(ctx, actor, sub)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}
	if !sub.Status.CanTransition(status) {
		return nil, fmt.Errorf("%s -> %s: %w", sub.Status, status, ErrInvalidTransition)
	}

	now := s.now().UTC()
	if err := s.subs.UpdateStatus(ctx, sub.ID, sub.Status, status, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// another reviewer changed the status after we loaded it
			return nil, fmt.Errorf("%s changed concurrently: %w", sub.ID, ErrInvalidTransition)
		}
		return nil, fmt.Errorf("update status: %w", err)
	}
	note = strings.TrimSpace(note)
	if note != "" {
		if _, err := s.subs.AddNote(ctx, &model.Note{
			ID:           uuid.New().String(),
			SubmissionID: sub.ID,
			AuthorID:     actor.UserID,
			Body:         note,
			CreatedAt:    now,
		}); err != nil {
			return nil, fmt.Errorf("add note: %w", err)
		}
	}

	from := sub.Status
	sub.Status = status
	sub.UpdatedAt = now
	s.metrics.SubmissionStatus(string(status))
	s.log.Info("submission status changed", "submission_id", sub.ID, "from", from, "to", status, "by", actor.UserID)
	subject, body := submissionStatusChanged(sub, status, note)
	s.notifier.send(ctx, sub.UserID, subject, body)
	return sub, nil
}

func (s *submissionService) AddNote(ctx context.Context, actor Actor, id, body string) (*model.Note, error) {
	if !actor.Role.IsStaff() {
		return nil, ErrForbidden
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, validationf("note body is required")
	}
	sub, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.canReview(ctx, actor, sub)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}
	n, err := s.subs.AddNote(ctx, &model.Note{
		ID:           uuid.New().String(),
		SubmissionID: sub.ID,
		AuthorID:     actor.UserID,
		Body:         body,
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("add note: %w", err)
	}
	return n, nil
}

func (s *submissionService) ListNotes(ctx context.Context, actor Actor, id string) ([]model.Note, error) {
	sub, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	notes, err := s.subs.ListNotes(ctx, sub.ID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	if notes == nil {
		notes = []model.Note{}
	}
	return notes, nil
}

func (s *submissionService) AttachmentURL(ctx context.Context, actor Actor, submissionID, attachmentID string) (string, error) {
	if attachmentID == "" {
		return "", ErrIDRequired
	}
	sub, err := s.loadVisible(ctx, actor, submissionID)
	if err != nil {
		return "", err
	}
	att, err := s.subs.FindAttachment(ctx, sub.ID, attachmentID)
	if err != nil {
		return "", notFound("find attachment", err)
	}
	url, err := s.store.PresignGet(ctx, att.StoragePath, s.policy.PresignTTL, att.Filename)
	if err != nil {
		return "", fmt.Errorf("presign attachment: %w", err)
	}
	return url, nil
}
