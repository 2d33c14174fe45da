package handler

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"taxportal/internal/model"
	"taxportal/internal/service"
)

type changeRoleRequest struct {
	Role model.Role `json:"role"`
}

// ListUsers supports ?role=admin|region_admin|user.
func ListUsers(svc service.UserService, log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, offset, ok, err := pageParams(c)
		if !ok {
			return err
		}
		res, err := svc.List(c.UserContext(), model.Role(c.Query("role")), limit, offset)
		if err != nil {
			return serviceError(c, log, err)
		}
		return c.JSON(res)
	}
}

func GetUser(svc service.UserService, log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok, err := uuidParam(c, "id")
		if !ok {
			return err
		}
		u, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return serviceError(c, log, err)
		}
		return c.JSON(u)
	}
}

func CreateStaff(svc service.UserService, log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in service.StaffInput
		if err := c.BodyParser(&in); err != nil {
			return invalidBody(c)
		}
		u, err := svc.CreateStaff(c.UserContext(), in)
		if err != nil {
			return serviceError(c, log, err)
		}
		return c.Status(fiber.StatusCreated).JSON(u)
	}
}

func ChangeRole(svc service.UserService, log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok, err := uuidParam(c, "id")
		if !ok {
			return err
		}
		var req changeRoleRequest
		if err := c.BodyParser(&req); err != nil {
			return invalidBody(c)
		}
		u, err := svc.ChangeRole(c.UserContext(), actorFromCtx(c), id, req.Role)
		if err != nil {
			return serviceError(c, log, err)
		}
		return c.JSON(u)
	}
}

func UnlockUser(svc service.UserService, log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok, err := uuidParam(c, "id")
		if !ok {
			return err
		}
		if err := svc.Unlock(c.UserContext(), id); err != nil {
			return serviceError(c, log, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
