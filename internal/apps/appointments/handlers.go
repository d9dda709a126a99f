package appointments

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"

	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/scheduling"
	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/workflow"
	"github.com/gofiber/fiber/v2"
)

type AppointmentHandler struct {
	service      *Service
	orchestrator *Orchestrator
	logger       *slog.Logger
}

func NewAppointmentHandler(service *Service, orchestrator *Orchestrator, logger *slog.Logger) *AppointmentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AppointmentHandler{service: service, orchestrator: orchestrator, logger: logger}
}

type ConflictResponse struct {
	Error         bool              `json:"error"`
	Message       string            `json:"message"`
	AppointmentID uint              `json:"appointment_id"`
	Alternatives  []scheduling.Slot `json:"alternatives"`
	Result        *BookResult       `json:"result"`
}

// CreateAppointmentRequest takes appointment_date as text so zone-less
// timestamps are read in the clinic location, as on book-with-ai.
type CreateAppointmentRequest struct {
	DoctorID        uint    `json:"doctor_id"`
	AppointmentDate string  `json:"appointment_date"`
	Reason          *string `json:"reason"`
}

type UpdateAppointmentRequest struct {
	Status *string `json:"status"`
	Notes  *string `json:"notes"`
}

// BatchConfirmRequest is the wrapped batch body. A bare JSON array of
// confirmations is accepted as well.
type BatchConfirmRequest struct {
	Confirmations []ConfirmRequest `json:"confirmations"`
}

func parseBatch(c *fiber.Ctx) ([]ConfirmRequest, error) {
	if bytes.HasPrefix(bytes.TrimSpace(c.Body()), []byte("[")) {
		var items []ConfirmRequest
		if err := c.BodyParser(&items); err != nil {
			return nil, err
		}
		return items, nil
	}
	var req BatchConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, err
	}
	return req.Confirmations, nil
}

func actorFrom(c *fiber.Ctx) (Actor, error) {
	id, role, err := middleware.CurrentUser(c)
	if err != nil {
		return Actor{}, err
	}
	return Actor{ID: id, Role: role}, nil
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
		Error: true, Message: "Unauthorized",
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error: true, Message: msg,
	})
}

func appointmentID(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, errors.New("invalid appointment ID")
	}
	return uint(id), nil
}

// statusFor maps domain errors to HTTP statuses. ok is false for errors that
// are not part of the domain taxonomy.
func statusFor(err error) (status int, ok bool) {
	switch {
	case errors.Is(err, ErrAppointmentNotFound),
		errors.Is(err, ErrDoctorNotFound),
		errors.Is(err, ErrPatientNotFound),
		errors.Is(err, ErrUserNotFound):
		return fiber.StatusNotFound, true
	case errors.Is(err, ErrNotAppointmentDoctor),
		errors.Is(err, ErrNotOwner),
		errors.Is(err, ErrForbiddenRole):
		return fiber.StatusForbidden, true
	case errors.Is(err, ErrInvalidAction),
		errors.Is(err, ErrInvalidDate),
		errors.Is(err, ErrPastDate),
		errors.Is(err, ErrInvalidStatus),
		errors.Is(err, scheduling.ErrOutsideBusinessHours),
		errors.Is(err, scheduling.ErrClosedDay):
		return fiber.StatusBadRequest, true
	case errors.Is(err, ErrAlreadyDecided),
		errors.Is(err, workflow.ErrInvalidTransition):
		return fiber.StatusConflict, true
	}
	return fiber.StatusInternalServerError, false
}

// fail writes err. Unexpected errors are logged and reported with prefix,
// or as a generic message when prefix is empty.
func (h *AppointmentHandler) fail(c *fiber.Ctx, err error, action, prefix string) error {
	status, ok := statusFor(err)
	if ok {
		return c.Status(status).JSON(dto.ErrorResponse{Error: true, Message: err.Error()})
	}

	h.logger.Error("appointment request failed",
		"action", action,
		"error", err,
		"request_id", c.GetRespHeader(fiber.HeaderXRequestID),
	)
	msg := "Internal server error"
	if prefix != "" {
		msg = prefix + err.Error()
	}
	return c.Status(status).JSON(dto.ErrorResponse{Error: true, Message: msg})
}

func (h *AppointmentHandler) bookResponse(c *fiber.Ctx, result *BookResult, created bool) error {
	if result.Conflict {
		return c.Status(fiber.StatusConflict).JSON(ConflictResponse{
			Error:         true,
			Message:       result.Message,
			AppointmentID: result.AppointmentID,
			Alternatives:  result.Alternatives,
			Result:        result,
		})
	}
	if created {
		return c.Status(fiber.StatusCreated).JSON(result)
	}
	return c.JSON(result)
}

func (h *AppointmentHandler) BookWithAI(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return unauthorized(c)
	}

	var req BookRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.DoctorID == 0 {
		return badRequest(c, "doctor_id is required")
	}

	result, err := h.orchestrator.Book(c.UserContext(), actor, req)
	if err != nil {
		return h.fail(c, err, "book", "Booking workflow failed: ")
	}
	return h.bookResponse(c, result, true)
}

func (h *AppointmentHandler) Reschedule(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := appointmentID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	var req RescheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	result, err := h.orchestrator.Reschedule(c.UserContext(), actor, id, req)
	if err != nil {
		return h.fail(c, err, "reschedule", "Booking workflow failed: ")
	}
	return h.bookResponse(c, result, false)
}

func (h *AppointmentHandler) ConfirmWithAI(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return unauthorized(c)
	}

	var req ConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.AppointmentID == 0 {
		return badRequest(c, "appointment_id is required")
	}

	result, err := h.orchestrator.Confirm(c.UserContext(), actor, req)
	if err != nil {
		return h.fail(c, err, "confirm", "Confirmation workflow failed: ")
	}
	return c.JSON(result)
}

func (h *AppointmentHandler) BatchConfirm(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return unauthorized(c)
	}

	items, err := parseBatch(c)
	if err != nil {
		return badRequest(c, "Invalid request body")
	}

	result, err := h.orchestrator.BatchConfirm(c.UserContext(), actor, items)
	if err != nil {
		return h.fail(c, err, "batch_confirm", "Confirmation workflow failed: ")
	}
	return c.JSON(result)
}

func (h *AppointmentHandler) PendingConfirmations(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return unauthorized(c)
	}

	pending, err := h.service.PendingConfirmations(c.UserContext(), actor)
	if err != nil {
		return h.fail(c, err, "pending_confirmations", "")
	}
	return c.JSON(fiber.Map{
		"doctor_id":             actor.ID,
		"pending_confirmations": pending,
		"count":                 len(pending),
	})
}

func (h *AppointmentHandler) WorkflowStatus(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := appointmentID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	view, err := h.service.WorkflowStatus(c.UserContext(), actor, id)
	if err != nil {
		return h.fail(c, err, "workflow_status", "")
	}
	return c.JSON(view)
}

func (h *AppointmentHandler) DashboardSummary(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return unauthorized(c)
	}

	summary, err := h.service.DashboardSummary(c.UserContext(), actor)
	if err != nil {
		return h.fail(c, err, "dashboard_summary", "")
	}
	return c.JSON(summary)
}

func (h *AppointmentHandler) Create(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return unauthorized(c)
	}

	var req CreateAppointmentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	if strings.TrimSpace(req.AppointmentDate) == "" {
		return badRequest(c, "appointment_date is required")
	}
	date, err := ParseProposed(req.AppointmentDate, h.service.policy.Location)
	if err != nil {
		return badRequest(c, err.Error())
	}

	appt, err := h.service.Create(c.UserContext(), actor, CreateInput{
		DoctorID:        req.DoctorID,
		AppointmentDate: date,
		Reason:          req.Reason,
	})
	if err != nil {
		return h.fail(c, err, "create", "")
	}
	return c.Status(fiber.StatusCreated).JSON(appt)
}

func (h *AppointmentHandler) List(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return unauthorized(c)
	}

	appts, err := h.service.List(c.UserContext(), actor)
	if err != nil {
		return h.fail(c, err, "list", "")
	}
	return c.JSON(appts)
}

func (h *AppointmentHandler) Update(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := appointmentID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	var req UpdateAppointmentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	appt, err := h.service.Update(c.UserContext(), actor, id, UpdateInput(req))
	if err != nil {
		return h.fail(c, err, "update", "")
	}
	return c.JSON(appt)
}

func (h *AppointmentHandler) Complete(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := appointmentID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	appt, err := h.service.Complete(c.UserContext(), actor, id)
	if err != nil {
		return h.fail(c, err, "complete", "")
	}
	return c.JSON(appt)
}
