package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"sort"

	"github.com/gofiber/fiber/v2"

	"taxportal/internal/model"
	"taxportal/internal/service"
)

type updateStatusRequest struct {
	Status model.SubmissionStatus `json:"status"`
	Note   string                 `json:"note"`
}

type noteRequest struct {
	Body string `json:"body"`
}

// CreateSubmission accepts multipart/form-data with service_id, form_data (a
// JSON object) and files keyed by the form field they satisfy.
//
//	@Summary	File a submission
//	@Tags		submissions
//	@Accept		multipart/form-data
//	@Produce	json
//	@Param		service_id	formData	string	true	"service id"
//	@Param		form_data	formData	string	true	"JSON object of form answers"
//	@Success	201			{object}	model.Submission
//	@Failure	400			{object}	errorPayload
//	@Failure	413			{object}	errorPayload
//	@Failure	415			{object}	errorPayload
//	@Router		/submissions [post]
func CreateSubmission(svc service.SubmissionService, log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		form, err := c.MultipartForm()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "MULTIPART_REQUIRED", "multipart/form-data body is required")
		}

		in := service.CreateSubmissionInput{ServiceID: firstValue(form, "service_id")}
		if raw := firstValue(form, "form_data"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &in.FormData); err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_FORM_DATA", "form_data must be a JSON object")
			}
		}

		files, closeAll, err := openFiles(form)
		defer closeAll()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		in.Files = files

		sub, err := svc.Create(c.UserContext(), actorFromCtx(c), in)
		if err != nil {
			return serviceError(c, log, err)
		}
		return c.Status(fiber.StatusCreated).JSON(sub)
	}
}

func firstValue(form *multipart.Form, key string) string {
	if v := form.Value[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// openFiles opens every uploaded part in field-name order.
func openFiles(form *multipart.Form) ([]service.UploadFile, func(), error) {
	var closers []io.Closer
	closeAll := func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}

	fields := make([]string, 0, len(form.File))
	for k := range form.File {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	var out []service.UploadFile
	for _, field := range fields {
		for _, fh := range form.File[field] {
			f, err := fh.Open()
			if err != nil {
				return nil, closeAll, fmt.Errorf("open %s: %w", fh.Filename, err)
			}
			closers = append(closers, f)
			out = append(out, service.UploadFile{
				FieldName: field,
				Filename:  fh.Filename,
				Size:      fh.Size,
				Reader:    f,
			})
		}
	}
	return out, closeAll, nil
}

func ListMySubmissions(svc service.SubmissionService, log *slog.Logger) fiber.Handler {
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

func GetSubmission(svc service.SubmissionService, log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok, err := uuidParam(c, "id")
		if !ok {
			return err
		}
		sub, err := svc.Get(c.UserContext(), actorFromCtx(c), id)
		if err != nil {
			return serviceError(c, log, err)
		}
		return c.JSON(sub)
	}
}

// ListStaffSubmissions supports ?status= and ?service_id= filters.
//
//	@Summary	Staff submission queue
//	@Tags		staff
//	@Produce	json
//	@Param		status		query		string	false	"pending, under_review, approved, rejected"
//	@Param		service_id	query		string	false	"service id"
//	@Param		limit		query		int		false	"page size"
//	@Param		offset		query		int		false	"page offset"
//	@Success	200			{object}	service.ListResult[model.Submission]
//	@Router		/staff/submissions [get]
func ListStaffSubmissions(svc service.SubmissionService, log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, offset, ok, err := pageParams(c)
		if !ok {
			return err
		}
		f := service.StaffFilter{
			Status:    model.SubmissionStatus(c.Query("status")),
			ServiceID: c.Query("service_id"),
		}
		res, err := svc.ListForStaff(c.UserContext(), actorFromCtx(c), f, limit, offset)
		if err != nil {
			return serviceError(c, log, err)
		}
		return c.JSON(res)
	}
}

func UpdateSubmissionStatus(svc service.SubmissionService, log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok, err := uuidParam(c, "id")
		if !ok {
			return err
		}
		var req updateStatusRequest
		if err := c.BodyParser(&req); err != nil {
			return invalidBody(c)
		}
		sub, err := svc.UpdateStatus(c.UserContext(), actorFromCtx(c), id, req.Status, req.Note)
		if err != nil {
			return serviceError(c, log, err)
		}
		return c.JSON(sub)
	}
}

func AddNote(svc service.SubmissionService, log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok, err := uuidParam(c, "id")
		if !ok {
			return err
		}
		var req noteRequest
		if err := c.BodyParser(&req); err != nil {
			return invalidBody(c)
		}
		n, err := svc.AddNote(c.UserContext(), actorFromCtx(c), id, req.Body)
		if err != nil {
			return serviceError(c, log, err)
		}
		return c.Status(fiber.StatusCreated).JSON(n)
	}
}

func ListNotes(svc service.SubmissionService, log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok, err := uuidParam(c, "id")
		if !ok {
			return err
		}
		notes, err := svc.ListNotes(c.UserContext(), actorFromCtx(c), id)
		if err != nil {
			return serviceError(c, log, err)
		}
		return c.JSON(fiber.Map{"data": notes})
	}
}

// AttachmentURL returns a short-lived presigned link. ?redirect=true answers
// with a 302 instead of JSON.
func AttachmentURL(svc service.SubmissionService, log *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok, err := uuidParam(c, "id")
		if !ok {
			return err
		}
		attID, ok, err := uuidParam(c, "attachmentId")
		if !ok {
			return err
		}
		url, err := svc.AttachmentURL(c.UserContext(), actorFromCtx(c), id, attID)
		if err != nil {
			return serviceError(c, log, err)
		}
		if c.QueryBool("redirect") {
			return c.Redirect(url, fiber.StatusFound)
		}
		return c.JSON(fiber.Map{"url": url})
	}
}
