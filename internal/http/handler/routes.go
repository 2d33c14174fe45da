package handler

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"taxportal/internal/http/middleware"
	"taxportal/internal/model"
	"taxportal/internal/security"
	"taxportal/internal/service"
)

// CookieConfig controls the session cookie written on login.
type CookieConfig struct {
	Name   string
	Secure bool
}

// Deps carries everything RegisterRoutes wires into handlers.
type Deps struct {
	DB          *sql.DB
	Auth        service.AuthService
	Catalog     service.CatalogService
	Regions     service.RegionService
	Users       service.UserService
	Submissions service.SubmissionService
	Payments    service.PaymentService
	Sessions    *security.SessionManager
	// Roles resolves the caller's current role. Defaults to a lookup through Users.
	Roles  middleware.RoleSource
	Cookie CookieConfig
	// PaymentReturnURL, when set, receives the browser after a successful gateway callback.
	PaymentReturnURL string
	Log              *slog.Logger
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
func RegisterRoutes(app *fiber.App, d Deps) {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.Cookie.Name == "" {
		d.Cookie.Name = "session"
	}
	log := d.Log

	if d.Roles == nil {
		d.Roles = storedRole(d.Users)
	}
	authed := middleware.RequireAuth(d.Sessions, d.Cookie.Name, d.Roles, deny)
	userOnly := middleware.RequireRole(deny, model.RoleUser)
	staff := middleware.RequireRole(deny, model.RoleAdmin, model.RoleRegionAdmin)
	admin := middleware.RequireRole(deny, model.RoleAdmin)

	app.Get("/health", HealthCheck(d.DB))
	app.Get("/healthz", LivenessProbe())

	app.Post("/auth/register", Register(d.Auth, log))
	app.Post("/auth/login", Login(d.Auth, d.Cookie, log))
	app.Post("/auth/logout", authed, Logout(d.Cookie))
	app.Get("/auth/me", authed, Me(d.Auth, log))

	app.Get("/services", ListServices(d.Catalog, log))
	app.Get("/services/:id", GetService(d.Catalog, log))

	app.Post("/submissions", authed, userOnly, CreateSubmission(d.Submissions, log))
	app.Get("/submissions", authed, ListMySubmissions(d.Submissions, log))
	app.Get("/submissions/:id", authed, GetSubmission(d.Submissions, log))
	app.Get("/submissions/:id/attachments/:attachmentId", authed, AttachmentURL(d.Submissions, log))
	app.Get("/submissions/:id/notes", authed, ListNotes(d.Submissions, log))
	app.Post("/submissions/:id/notes", authed, staff, AddNote(d.Submissions, log))

	app.Get("/staff/submissions", authed, staff, ListStaffSubmissions(d.Submissions, log))
	app.Put("/staff/submissions/:id/status", authed, staff, UpdateSubmissionStatus(d.Submissions, log))
	app.Get("/staff/regions", authed, staff, MyRegions(d.Regions, log))

	app.Post("/payments/callback", PaymentCallback(d.Payments, d.PaymentReturnURL, log))
	app.Post("/payments", authed, userOnly, InitiatePayment(d.Payments, log))
	app.Get("/payments", authed, ListMyPayments(d.Payments, log))

	adm := app.Group("/admin", authed, admin)
	adm.Get("/services", ListAllServices(d.Catalog, log))
	adm.Post("/services", CreateService(d.Catalog, log))
	adm.Put("/services/:id", UpdateService(d.Catalog, log))
	adm.Delete("/services/:id", DeactivateService(d.Catalog, log))

	adm.Get("/regions", ListRegions(d.Regions, log))
	adm.Get("/regions/:id", GetRegion(d.Regions, log))
	adm.Post("/regions", CreateRegion(d.Regions, log))
	adm.Put("/regions/:id", UpdateRegion(d.Regions, log))
	adm.Delete("/regions/:id", DeleteRegion(d.Regions, log))

	adm.Get("/users", ListUsers(d.Users, log))
	adm.Post("/users", CreateStaff(d.Users, log))
	adm.Get("/users/:id", GetUser(d.Users, log))
	adm.Put("/users/:id/role", ChangeRole(d.Users, log))
	adm.Post("/users/:id/unlock", UnlockUser(d.Users, log))
	adm.Get("/users/:id/regions", UserRegions(d.Regions, log))
	adm.Put("/users/:id/regions", AssignRegions(d.Regions, log))

	adm.Get("/payments", ListAllPayments(d.Payments, log))
}

func storedRole(users service.UserService) middleware.RoleSource {
	return func(ctx context.Context, id string) (model.Role, error) {
		u, err := users.Get(ctx, id)
		if errors.Is(err, service.ErrNotFound) {
			return "", nil
		}
		if err != nil {
			return "", err
		}
		return u.Role, nil
	}
}

// actorFromCtx reads the caller stored by middleware.RequireAuth.
func actorFromCtx(c *fiber.Ctx) service.Actor {
	uid, _ := c.Locals(middleware.UserIDLocalKey).(string)
	role, _ := c.Locals(middleware.RoleLocalKey).(model.Role)
	return service.Actor{UserID: uid, Role: role}
}

// pageParams parses limit & offset query values. ok is false when a response was already written.
func pageParams(c *fiber.Ctx) (limit, offset int, ok bool, err error) {
	limit, perr := strconv.Atoi(c.Query("limit", "10"))
	if perr != nil {
		return 0, 0, false, writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
	}
	offset, perr = strconv.Atoi(c.Query("offset", "0"))
	if perr != nil {
		return 0, 0, false, writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
	}
	return limit, offset, true, nil
}

// uuidParam validates a path parameter. ok is false when a response was already written.
func uuidParam(c *fiber.Ctx, name string) (id string, ok bool, err error) {
	id = c.Params(name)
	if _, perr := uuid.Parse(id); perr != nil {
		return "", false, writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
	}
	return id, true, nil
}

func invalidBody(c *fiber.Ctx) error {
	return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "request body is not valid JSON")
}
