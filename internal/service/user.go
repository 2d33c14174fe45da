package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"taxportal/internal/model"
	"taxportal/internal/repository"
)

// StaffInput creates an admin or region admin account.
type StaffInput struct {
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Phone    string     `json:"phone"`
	Password string     `json:"password"`
	Role     model.Role `json:"role"`
}

// UserService is the admin view of portal accounts.
type UserService interface {
	List(ctx context.Context, role model.Role, limit, offset int) (*ListResult[model.User], error)
	Get(ctx context.Context, id string) (*model.User, error)
	CreateStaff(ctx context.Context, in StaffInput) (*model.User, error)
	ChangeRole(ctx context.Context, actor Actor, id string, role model.Role) (*model.User, error)
	Unlock(ctx context.Context, id string) error
	// SeedAdmin creates the first admin. It reports false when the email already exists.
	SeedAdmin(ctx context.Context, name, email, password string) (*model.User, bool, error)
}

type userService struct {
	users   repository.UserRepository
	regions repository.RegionRepository
	log     *slog.Logger
	now     func() time.Time
}

func NewUserService(users repository.UserRepository, regions repository.RegionRepository, log *slog.Logger) UserService {
	return &userService{users: users, regions: regions, log: loggerOrDefault(log), now: time.Now}
}

func (s *userService) List(ctx context.Context, role model.Role, limit, offset int) (*ListResult[model.User], error) {
	if role != "" && !role.Valid() {
		return nil, validationf("unknown role %q", role)
	}
	res, err := s.users.List(ctx, role, pageQuery(limit, offset))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return toList(res), nil
}

func (s *userService) Get(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, notFound("find user", err)
	}
	return u, nil
}

func (s *userService) CreateStaff(ctx context.Context, in StaffInput) (*model.User, error) {
	if !in.Role.IsStaff() {
		return nil, validationf("role must be admin or region_admin")
	}
	nu, err := newUser(in.Name, in.Email, in.Phone, in.Password, in.Role, s.now().UTC())
	if err != nil {
		return nil, err
	}
	stored, err := s.users.Create(ctx, nu)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create staff: %w", err)
	}
	s.log.Info("staff account created", "user_id", stored.ID, "role", stored.Role)
	return stored, nil
}

func (s *userService) ChangeRole(ctx context.Context, actor Actor, id string, role model.Role) (*model.User, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	if !role.Valid() {
		return nil, validationf("unknown role %q", role)
	}
	if id == actor.UserID {
		return nil, validationf("admins cannot change their own role")
	}
	current, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, notFound("find user", err)
	}
	if current.Role == role {
		return current, nil
	}
	if err := s.users.UpdateRole(ctx, id, role); err != nil {
		return nil, notFound("update role", err)
	}
	if current.Role == model.RoleRegionAdmin {
		if err := s.regions.ReplaceAssignments(ctx, id, nil); err != nil {
			return nil, fmt.Errorf("clear region assignments: %w", err)
		}
	}
	s.log.Info("role changed", "user_id", id, "from", current.Role, "to", role, "by", actor.UserID)
	current.Role = role
	return current, nil
}

func (s *userService) Unlock(ctx context.Context, id string) error {
	if id == "" {
		return ErrIDRequired
	}
	if err := s.users.Unlock(ctx, id); err != nil {
		return notFound("unlock user", err)
	}
	s.log.Info("account unlocked", "user_id", id)
	return nil
}

func (s *userService) SeedAdmin(ctx context.Context, name, email, password string) (*model.User, bool, error) {
	existing, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("find user: %w", err)
	}
	u, err := s.CreateStaff(ctx, StaffInput{Name: name, Email: email, Password: password, Role: model.RoleAdmin})
	if err != nil {
		return nil, false, err
	}
	return u, true, nil
}
