package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"taxportal/internal/metrics"
	"taxportal/internal/model"
	"taxportal/internal/ratelimit"
	"taxportal/internal/repository"
	"taxportal/internal/security"
)

// RegisterInput is a self-service signup.
type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// LoginResult carries the session token to set as a cookie.
type LoginResult struct {
	User      *model.User `json:"user"`
	Token     string      `json:"-"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// LoginPolicy bounds login attempts per client IP and per email.
type LoginPolicy struct {
	IPLimit    int
	EmailLimit int
	Window     time.Duration
}

// AuthService handles registration, login and session lookups.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*model.User, error)
	// Login checks the rate limiter, then the lockout, then the password.
	Login(ctx context.Context, email, password, clientIP string) (*LoginResult, error)
	Me(ctx context.Context, userID string) (*model.User, error)
}

type authService struct {
	users    repository.UserRepository
	limiter  ratelimit.Limiter
	sessions *security.SessionManager
	policy   LoginPolicy
	metrics  *metrics.Metrics
	log      *slog.Logger
	now      func() time.Time
}

func NewAuthService(users repository.UserRepository, limiter ratelimit.Limiter, sessions *security.SessionManager, policy LoginPolicy, m *metrics.Metrics, log *slog.Logger) AuthService {
	return &authService{
		users:    users,
		limiter:  limiter,
		sessions: sessions,
		policy:   policy,
		metrics:  m,
		log:      loggerOrDefault(log),
		now:      time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateAccount(name, email string) error {
	if strings.TrimSpace(name) == "" {
		return validationf("name is required")
	}
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return validationf("email is invalid")
	}
	return nil
}

func newUser(name, email, phone, password string, role model.Role, now time.Time) (*model.User, error) {
	email = normalizeEmail(email)
	if err := validateAccount(name, email); err != nil {
		return nil, err
	}
	hash, err := security.HashPassword(password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooShort) {
			return nil, validationf("password must be at least %d characters", security.MinPasswordLength)
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return &model.User{
		ID:           uuid.New().String(),
		Name:         strings.TrimSpace(name),
		Email:        email,
		Phone:        strings.TrimSpace(phone),
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
	}, nil
}

func (s *authService) Register(ctx context.Context, in RegisterInput) (u *model.User, err error) {
	ctx, span := startSpan(ctx, "auth.Register")
	defer func() { endSpan(span, err) }()

	nu, err := newUser(in.Name, in.Email, in.Phone, in.Password, model.RoleUser, s.now().UTC())
	if err != nil {
		return nil, err
	}
	stored, err := s.users.Create(ctx, nu)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.log.Info("user registered", "user_id", stored.ID)
	return stored, nil
}

func (s *authService) Login(ctx context.Context, email, password, clientIP string) (res *LoginResult, err error) {
	ctx, span := startSpan(ctx, "auth.Login")
	defer func() { endSpan(span, err) }()

	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, validationf("email and password are required")
	}

	if err := s.throttle(ctx, "ip", clientIP, s.policy.IPLimit); err != nil {
		return nil, err
	}
	if err := s.throttle(ctx, "user", email, s.policy.EmailLimit); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			security.BurnCompare(password)
			s.metrics.Login(metrics.LoginInvalid)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	span.SetAttributes(attribute.String("user.id", u.ID))

	if u.IsLocked(now) {
		s.metrics.Login(metrics.LoginLocked)
		return nil, &LockedError{Until: *u.LockedUntil}
	}

	if !security.ComparePassword(u.PasswordHash, password) {
		if err := s.recordFailure(ctx, u, now); err != nil {
			return nil, err
		}
		s.metrics.Login(metrics.LoginInvalid)
		return nil, ErrInvalidCredentials
	}

	if err := s.users.RecordLoginSuccess(ctx, u.ID, now); err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}
	token, exp, err := s.sessions.Issue(u.ID, u.Email, string(u.Role))
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	u.LastLoginAt = &now
	s.metrics.Login(metrics.LoginSuccess)
	return &LoginResult{User: u, Token: token, ExpiresAt: exp}, nil
}

func (s *authService) throttle(ctx context.Context, scope, value string, limit int) error {
	if s.limiter == nil || value == "" {
		return nil
	}
	d := s.limiter.Allow(ctx, scope+":"+value, limit, s.policy.Window)
	if d.Allowed {
		return nil
	}
	s.metrics.RateLimited(scope)
	s.metrics.Login(metrics.LoginRateLimited)
	return &RateLimitedError{RetryAfter: d.RetryAfter(s.now())}
}

func (s *authService) recordFailure(ctx context.Context, u *model.User, now time.Time) error {
	attempts, err := s.users.RecordLoginFailure(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("record login failure: %w", err)
	}
	lock := security.LockoutDuration(attempts)
	if lock == 0 {
		return nil
	}
	until := now.Add(lock)
	if err := s.users.SetLockedUntil(ctx, u.ID, until); err != nil {
		return fmt.Errorf("lock account: %w", err)
	}
	s.log.Warn("account locked", "user_id", u.ID, "failed_attempts", attempts, "locked_until", until)
	return nil
}

func (s *authService) Me(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, ErrIDRequired
	}
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, notFound("find user", err)
	}
	return u, nil
}
