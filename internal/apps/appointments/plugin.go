package appointments

import (
	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/apps"
	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/scheduling"
	"github.com/gofiber/fiber/v2"
)

type AppointmentsPlugin struct{}

func New() *AppointmentsPlugin {
	return &AppointmentsPlugin{}
}

func (p *AppointmentsPlugin) ID() string { return "appointments" }

func (p *AppointmentsPlugin) Models() []interface{} {
	return []interface{}{
		&Appointment{},
	}
}

// PolicyFromConfig builds the clinic calendar from configuration.
func PolicyFromConfig(cfg *config.Config) scheduling.Policy {
	policy := scheduling.DefaultPolicy()
	if cfg == nil {
		return policy
	}
	policy.Location = cfg.Location()
	policy.OpenHour = cfg.ClinicOpenHour
	policy.CloseHour = cfg.ClinicCloseHour
	policy.ClosedDay = cfg.ClinicClosedDay
	if cfg.SlotSuggestions > 0 {
		policy.Suggestions = cfg.SlotSuggestions
	}
	return policy
}

func (p *AppointmentsPlugin) RegisterRoutes(router fiber.Router, deps apps.Deps) {
	policy := PolicyFromConfig(deps.Config)
	store := NewGormStore(deps.DB)
	svc := NewService(store, policy)
	orch := NewOrchestrator(store, scheduling.NewChecker(policy), deps.Notifier, deps.Narrator, deps.Metrics, deps.Logger)
	Mount(router, NewAppointmentHandler(svc, orch, deps.Logger))
}

// Mount registers the appointment routes on router. Static paths are
// registered before the :id routes.
func Mount(router fiber.Router, handler *AppointmentHandler) {
	patientOnly := middleware.RequireRole(models.RolePatient)
	doctorOnly := middleware.RequireRole(models.RoleDoctor)

	// Workflow routes
	router.Post("/book-with-ai", patientOnly, handler.BookWithAI)
	router.Post("/confirm-with-ai", doctorOnly, handler.ConfirmWithAI)
	router.Post("/batch-confirm", doctorOnly, handler.BatchConfirm)
	router.Get("/pending-confirmations", doctorOnly, handler.PendingConfirmations)
	router.Get("/workflow-status/:id", handler.WorkflowStatus)
	router.Get("/doctor/dashboard-summary", doctorOnly, handler.DashboardSummary)

	// CRUD routes
	router.Post("/", patientOnly, handler.Create)
	router.Get("/", handler.List)
	router.Put("/:id", handler.Update)
	router.Post("/:id/reschedule", patientOnly, handler.Reschedule)
	router.Post("/:id/complete", doctorOnly, handler.Complete)
}
