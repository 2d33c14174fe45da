package handler

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"taxportal/internal/service"
)

type assignRegionsRequest struct {
	RegionIDs []string `json:"region_ids"`
}

func ListRegions(svc service.RegionService, log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		items, err := svc.List(c.UserContext())
		if err != nil {
			return serviceError(c, log, err)
		}
		return c.JSON(fiber.Map{"data": items})
	}
}

func GetRegion(svc service.RegionService, log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok, err := uuidParam(c, "id")
		if !ok {
			return err
		}
		r, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return serviceError(c, log, err)
		}
		return c.JSON(r)
	}
}

func CreateRegion(svc service.RegionService, log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in service.RegionInput
		if err := c.BodyParser(&in); err != nil {
			return invalidBody(c)
		}
		r, err := svc.Create(c.UserContext(), in)
		if err != nil {
			return serviceError(c, log, err)
		}
		return c.Status(fiber.StatusCreated).JSON(r)
	}
}

func UpdateRegion(svc service.RegionService, log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok, err := uuidParam(c, "id")
		if !ok {
			return err
		}
		var in service.RegionInput
		if err := c.BodyParser(&in); err != nil {
			return invalidBody(c)
		}
		r, err := svc.Update(c.UserContext(), id, in)
		if err != nil {
			return serviceError(c, log, err)
		}
		return c.JSON(r)
	}
}

func DeleteRegion(svc service.RegionService, log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok, err := uuidParam(c, "id")
		if !ok {
			return err
		}
		if err := svc.Delete(c.UserContext(), id); err != nil {
			return serviceError(c, log, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// AssignRegions replaces the region set of a region admin.
//
//	@Summary	Assign regions to a region admin
//	@Tags		admin
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string					true	"user id"
//	@Param		body	body		assignRegionsRequest	true	"regions"
//	@Success	200		{array}		model.Region
//	@Failure	400		{object}	errorPayload
//	@Router		/admin/users/{id}/regions [put]
func AssignRegions(svc service.RegionService, log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok, err := uuidParam(c, "id")
		if !ok {
			return err
		}
		var req assignRegionsRequest
		if err := c.BodyParser(&req); err != nil {
			return invalidBody(c)
		}
		items, err := svc.AssignRegions(c.UserContext(), id, req.RegionIDs)
		if err != nil {
			return serviceError(c, log, err)
		}
		return c.JSON(fiber.Map{"data": items})
	}
}

func UserRegions(svc service.RegionService, log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok, err := uuidParam(c, "id")
		if !ok {
			return err
		}
		items, err := svc.ListForUser(c.UserContext(), id)
		if err != nil {
			return serviceError(c, log, err)
		}
		return c.JSON(fiber.Map{"data": items})
	}
}

// MyRegions lists the caller's own assignments. Admins get an empty list.
func MyRegions(svc service.RegionService, log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		items, err := svc.ListForUser(c.UserContext(), actorFromCtx(c).UserID)
		if err != nil {
			return serviceError(c, log, err)
		}
		return c.JSON(fiber.Map{"data": items})
	}
}
