package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"taxportal/internal/model"
	"taxportal/internal/repository"
)

var codePattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

var fieldTypes = map[string]bool{
	"text": true, "textarea": true, "number": true, "date": true,
	"email": true, "tel": true, "select": true, "file": true,
}

// ServiceInput creates or replaces a catalog entry.
type ServiceInput struct {
	Code              string            `json:"code"`
	Name              string            `json:"name"`
	Category          model.Category    `json:"category"`
	Description       string            `json:"description"`
	Price             int64             `json:"price"`
	RequiredDocuments []string          `json:"required_documents"`
	FormFields        []model.FormField `json:"form_fields"`
	Active            *bool             `json:"active,omitempty"`
}

// CatalogService manages the purchasable GST/ITR/ROC services.
type CatalogService interface {
	List(ctx context.Context, includeInactive bool) ([]model.Service, error)
	// Get resolves ref as an ID when it parses as a UUID, otherwise as a code.
	Get(ctx context.Context, ref string, includeInactive bool) (*model.Service, error)
	Create(ctx context.Context, in ServiceInput) (*model.Service, error)
	Update(ctx context.Context, id string, in ServiceInput) (*model.Service, error)
	Deactivate(ctx context.Context, id string) error
}

type catalogService struct {
	repo repository.CatalogRepository
	now  func() time.Time
}

func NewCatalogService(repo repository.CatalogRepository) CatalogService {
	return &catalogService{repo: repo, now: time.Now}
}

func (s *catalogService) List(ctx context.Context, includeInactive bool) ([]model.Service, error) {
	items, err := s.repo.List(ctx, !includeInactive)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	if items == nil {
		items = []model.Service{}
	}
	return items, nil
}

func (s *catalogService) Get(ctx context.Context, ref string, includeInactive bool) (*model.Service, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ErrIDRequired
	}
	var (
		svc *model.Service
		err error
	)
	if _, perr := uuid.Parse(ref); perr == nil {
		svc, err = s.repo.FindByID(ctx, ref)
	} else {
		svc, err = s.repo.FindByCode(ctx, strings.ToLower(ref))
	}
	if err != nil {
		return nil, notFound("find service", err)
	}
	if !svc.Active && !includeInactive {
		return nil, fmt.Errorf("service %s inactive: %w", svc.Code, ErrNotFound)
	}
	return svc, nil
}

func normalizeServiceInput(in *ServiceInput) error {
	in.Code = strings.ToLower(strings.TrimSpace(in.Code))
	in.Name = strings.TrimSpace(in.Name)
	in.Category = model.Category(strings.ToLower(string(in.Category)))

	if !codePattern.MatchString(in.Code) {
		return validationf("code must be a lower-case slug (letters, digits, dashes)")
	}
	if in.Name == "" {
		return validationf("name is required")
	}
	if !in.Category.Valid() {
		return validationf("category must be one of gst, itr, roc")
	}
	if in.Price < 0 {
		return validationf("price must not be negative")
	}

	seen := make(map[string]bool, len(in.FormFields))
	for i := range in.FormFields {
		f := &in.FormFields[i]
		f.Name = strings.TrimSpace(f.Name)
		if f.Name == "" {
			return validationf("form_fields[%d].name is required", i)
		}
		if seen[f.Name] {
			return validationf("form field %q is declared twice", f.Name)
		}
		seen[f.Name] = true
		if f.Type == "" {
			f.Type = "text"
		}
		if !fieldTypes[f.Type] {
			return validationf("form field %q has unknown type %q", f.Name, f.Type)
		}
		if f.Label == "" {
			f.Label = f.Name
		}
	}
	return nil
}

func (s *catalogService) Create(ctx context.Context, in ServiceInput) (svc *model.Service, err error) {
	ctx, span := startSpan(ctx, "catalog.Create")
	defer func() { endSpan(span, err) }()

	if err := normalizeServiceInput(&in); err != nil {
		return nil, err
	}
	active := true
	if in.Active != nil {
		active = *in.Active
	}
	now := s.now().UTC()
	stored, err := s.repo.Create(ctx, &model.Service{
		ID:                uuid.New().String(),
		Code:              in.Code,
		Name:              in.Name,
		Category:          in.Category,
		Description:       in.Description,
		Price:             in.Price,
		RequiredDocuments: in.RequiredDocuments,
		FormFields:        in.FormFields,
		Active:            active,
		CreatedAt:         now,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("service code %q: %w", in.Code, ErrConflict)
		}
		return nil, fmt.Errorf("create service: %w", err)
	}
	return stored, nil
}

func (s *catalogService) Update(ctx context.Context, id string, in ServiceInput) (svc *model.Service, err error) {
	ctx, span := startSpan(ctx, "catalog.Update")
	defer func() { endSpan(span, err) }()

	if id == "" {
		return nil, ErrIDRequired
	}
	if err := normalizeServiceInput(&in); err != nil {
		return nil, err
	}
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound("find service", err)
	}
	current.Code = in.Code
	current.Name = in.Name
	current.Category = in.Category
	current.Description = in.Description
	current.Price = in.Price
	current.RequiredDocuments = in.RequiredDocuments
	current.FormFields = in.FormFields
	if in.Active != nil {
		current.Active = *in.Active
	}
	current.UpdatedAt = s.now().UTC()

	stored, err := s.repo.Update(ctx, current)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("service code %q: %w", in.Code, ErrConflict)
		}
		return nil, notFound("update service", err)
	}
	return stored, nil
}

// Deactivate hides a service from the public catalog. Existing submissions keep their reference.
func (s *catalogService) Deactivate(ctx context.Context, id string) error {
	if id == "" {
		return ErrIDRequired
	}
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return notFound("deactivate service", err)
	}
	return nil
}
