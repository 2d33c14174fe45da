package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"taxportal/internal/model"
	"taxportal/internal/repository"
)

var pincodePattern = regexp.MustCompile(`^[0-9]{6}$`)

// RegionInput creates or replaces a region.
type RegionInput struct {
	Name     string   `json:"name"`
	States   []string `json:"states"`
	Cities   []string `json:"cities"`
	Pincodes []string `json:"pincodes"`
}

// RegionService manages regions and region-admin assignments.
type RegionService interface {
	List(ctx context.Context) ([]model.Region, error)
	Get(ctx context.Context, id string) (*model.Region, error)
	Create(ctx context.Context, in RegionInput) (*model.Region, error)
	Update(ctx context.Context, id string, in RegionInput) (*model.Region, error)
	Delete(ctx context.Context, id string) error
	// AssignRegions replaces the region set of a region admin.
	AssignRegions(ctx context.Context, userID string, regionIDs []string) ([]model.Region, error)
	ListForUser(ctx context.Context, userID string) ([]model.Region, error)
}

type regionService struct {
	regions repository.RegionRepository
	users   repository.UserRepository
	now     func() time.Time
}

func NewRegionService(regions repository.RegionRepository, users repository.UserRepository) RegionService {
	return &regionService{regions: regions, users: users, now: time.Now}
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

func normalizeRegionInput(in *RegionInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.States = cleanList(in.States)
	in.Cities = cleanList(in.Cities)
	in.Pincodes = cleanList(in.Pincodes)
	if in.Name == "" {
		return validationf("name is required")
	}
	if len(in.States)+len(in.Cities)+len(in.Pincodes) == 0 {
		return validationf("a region needs at least one state, city or pincode")
	}
	for _, p := range in.Pincodes {
		if !pincodePattern.MatchString(p) {
			return validationf("pincode %q must be 6 digits", p)
		}
	}
	return nil
}

func (s *regionService) List(ctx context.Context) ([]model.Region, error) {
	items, err := s.regions.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list regions: %w", err)
	}
	if items == nil {
		items = []model.Region{}
	}
	return items, nil
}

func (s *regionService) Get(ctx context.Context, id string) (*model.Region, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	r, err := s.regions.FindByID(ctx, id)
	if err != nil {
		return nil, notFound("find region", err)
	}
	return r, nil
}

func (s *regionService) Create(ctx context.Context, in RegionInput) (*model.Region, error) {
	if err := normalizeRegionInput(&in); err != nil {
		return nil, err
	}
	stored, err := s.regions.Create(ctx, &model.Region{
		ID:        uuid.New().String(),
		Name:      in.Name,
		States:    in.States,
		Cities:    in.Cities,
		Pincodes:  in.Pincodes,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("region %q: %w", in.Name, ErrConflict)
		}
		return nil, fmt.Errorf("create region: %w", err)
	}
	return stored, nil
}

func (s *regionService) Update(ctx context.Context, id string, in RegionInput) (*model.Region, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	if err := normalizeRegionInput(&in); err != nil {
		return nil, err
	}
	stored, err := s.regions.Update(ctx, &model.Region{
		ID:        id,
		Name:      in.Name,
		States:    in.States,
		Cities:    in.Cities,
		Pincodes:  in.Pincodes,
		UpdatedAt: s.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("region %q: %w", in.Name, ErrConflict)
		}
		return nil, notFound("update region", err)
	}
	return stored, nil
}

func (s *regionService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrIDRequired
	}
	if err := s.regions.Delete(ctx, id); err != nil {
		return notFound("delete region", err)
	}
	return nil
}

func (s *regionService) AssignRegions(ctx context.Context, userID string, regionIDs []string) (regions []model.Region, err error) {
	ctx, span := startSpan(ctx, "region.AssignRegions")
	defer func() { endSpan(span, err) }()

	if userID == "" {
		return nil, ErrIDRequired
	}
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, notFound("find user", err)
	}
	if u.Role != model.RoleRegionAdmin {
		return nil, validationf("regions can only be assigned to region admins")
	}

	ids := cleanList(regionIDs)
	for _, id := range ids {
		if err := checkID("region id", id); err != nil {
			return nil, err
		}
		if _, err := s.regions.FindByID(ctx, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, validationf("region %s does not exist", id)
			}
			return nil, fmt.Errorf("find region: %w", err)
		}
	}
	if err := s.regions.ReplaceAssignments(ctx, userID, ids); err != nil {
		return nil, fmt.Errorf("assign regions: %w", err)
	}
	return s.ListForUser(ctx, userID)
}

func (s *regionService) ListForUser(ctx context.Context, userID string) ([]model.Region, error) {
	items, err := s.regions.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user regions: %w", err)
	}
	if items == nil {
		items = []model.Region{}
	}
	return items, nil
}
