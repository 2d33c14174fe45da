package handler

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"taxportal/internal/service"
)

// ListServices returns the active catalog.
//
//	@Summary	List services
//	@Tags		services
//	@Produce	json
//	@Success	200	{array}	model.Service
//	@Router		/services [get]
func ListServices(svc service.CatalogService, log *slog.Logger) fiber.Handler {
	return listServices(svc, false, log)
}

// ListAllServices includes deactivated entries.
func ListAllServices(svc service.CatalogService, log *slog.Logger) fiber.Handler {
	return listServices(svc, true, log)
}

func listServices(svc service.CatalogService, includeInactive bool, log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		items, err := svc.List(c.UserContext(), includeInactive)
		if err != nil {
			return serviceError(c, log, err)
		}
		return c.JSON(fiber.Map{"data": items})
	}
}

// GetService accepts either the service UUID or its code.
//
//	@Summary	Get a service
//	@Tags		services
//	@Produce	json
//	@Param		id	path		string	true	"service id or code"
//	@Success	200	{object}	model.Service
//	@Failure	404	{object}	errorPayload
//	@Router		/services/{id} [get]
func GetService(svc service.CatalogService, log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := svc.Get(c.UserContext(), c.Params("id"), false)
		if err != nil {
			return serviceError(c, log, err)
		}
		return c.JSON(s)
	}
}

func CreateService(svc service.CatalogService, log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in service.ServiceInput
		if err := c.BodyParser(&in); err != nil {
			return invalidBody(c)
		}
		s, err := svc.Create(c.UserContext(), in)
		if err != nil {
			return serviceError(c, log, err)
		}
		return c.Status(fiber.StatusCreated).JSON(s)
	}
}

func UpdateService(svc service.CatalogService, log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok, err := uuidParam(c, "id")
		if !ok {
			return err
		}
		var in service.ServiceInput
		if err := c.BodyParser(&in); err != nil {
			return invalidBody(c)
		}
		s, err := svc.Update(c.UserContext(), id, in)
		if err != nil {
			return serviceError(c, log, err)
		}
		return c.JSON(s)
	}
}

func DeactivateService(svc service.CatalogService, log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok, err := uuidParam(c, "id")
		if !ok {
			return err
		}
		if err := svc.Deactivate(c.UserContext(), id); err != nil {
			return serviceError(c, log, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
