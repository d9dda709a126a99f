package apps

import (
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/narrator"
	"github.com/ahmetcoskunkizilkaya/clinic-backend/internal/notify"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Deps carries the shared collaborators a plugin may wire into its routes.
type Deps struct {
	DB       *gorm.DB
	Config   *config.Config
	Notifier *notify.Notifier
	Narrator *narrator.Narrator
	Metrics  *metrics.WorkflowMetrics
	Logger   *slog.Logger
}

// Plugin defines the interface every feature module must implement.
type Plugin interface {
	// ID returns the unique module identifier.
	ID() string

	// Models returns the list of GORM model pointers for AutoMigrate.
	Models() []interface{}

	// RegisterRoutes mounts module routes on the given Fiber group.
	// The group already has JWT middleware applied.
	RegisterRoutes(router fiber.Router, deps Deps)
}
