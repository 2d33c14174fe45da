package handler

import (
	"log/slog"
	"net/url"

	"github.com/gofiber/fiber/v2"

	"taxportal/internal/service"
)

// InitiatePayment creates a transaction and returns the hosted checkout form
// the browser must POST to the gateway.
//
//	@Summary	Start a payment
//	@Tags		payments
//	@Accept		json
//	@Produce	json
//	@Param		body	body		service.InitiatePaymentInput	true	"what to pay for"
//	@Success	201		{object}	service.InitiatePaymentResult
//	@Failure	404		{object}	errorPayload
//	@Router		/payments [post]
func InitiatePayment(svc service.PaymentService, log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in service.InitiatePaymentInput
		if err := c.BodyParser(&in); err != nil {
			return invalidBody(c)
		}
		res, err := svc.Initiate(c.UserContext(), actorFromCtx(c), in)
		if err != nil {
			return serviceError(c, log, err)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

// PaymentCallback receives the gateway's form-encoded post-back. The hash in
// the body is the only authentication.
//
//	@Summary	Gateway callback
//	@Tags		payments
//	@Accept		x-www-form-urlencoded
//	@Produce	json
//	@Success	200	{object}	model.PaymentTransaction
//	@Success	303
//	@Failure	400	{object}	errorPayload
//	@Failure	404	{object}	errorPayload
//	@Router		/payments/callback [post]
func PaymentCallback(svc service.PaymentService, returnURL string, log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fields := make(map[string]string)
		c.Request().PostArgs().VisitAll(func(k, v []byte) {
			fields[string(k)] = string(v)
		})
		if len(fields) == 0 {
			if form, err := c.MultipartForm(); err == nil {
				for k, v := range form.Value {
					if len(v) > 0 {
						fields[k] = v[0]
					}
				}
			}
		}
		if fields["txnid"] == "" {
			return writeError(c, fiber.StatusBadRequest, "INVALID_CALLBACK", "txnid is required")
		}

		txn, err := svc.HandleCallback(c.UserContext(), fields)
		if err != nil {
			log.WarnContext(c.UserContext(), "payment callback rejected",
				"request_id", requestIDFromCtx(c), "txnid", fields["txnid"], "error", err)
			return serviceError(c, log, err)
		}
		if returnURL != "" {
			q := url.Values{}
			q.Set("txnid", txn.TxnID)
			q.Set("status", string(txn.Status))
			return c.Redirect(returnURL+"?"+q.Encode(), fiber.StatusSeeOther)
		}
		return c.JSON(txn)
	}
}

func ListMyPayments(svc service.PaymentService, log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, offset, ok, err := pageParams(c)
		if !ok {
			return err
		}
		res, err := svc.ListMine(c.UserContext(), actorFromCtx(c), limit, offset)
		if err != nil {
			return serviceError(c, log, err)
		}
		return c.JSON(res)
	}
}

func ListAllPayments(svc service.PaymentService, log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, offset, ok, err := pageParams(c)
		if !ok {
			return err
		}
		res, err := svc.List(c.UserContext(), limit, offset)
		if err != nil {
			return serviceError(c, log, err)
		}
		return c.JSON(res)
	}
}
