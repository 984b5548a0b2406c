// Package httpapi exposes the lending engine's operations over HTTP.
// It is a thin facade: every handler parses input, calls exactly one
// component operation, and maps the error taxonomy to status codes.
package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/openshelf/lending-engine-go/docstore"
	"github.com/openshelf/lending-engine-go/lending/fines"
	"github.com/openshelf/lending-engine-go/lending/inventory"
	"github.com/openshelf/lending-engine-go/lending/ledger"
	"github.com/openshelf/lending-engine-go/lending/requests"
	"github.com/openshelf/lending-engine-go/lending/settings"
)

// ErrMissingComponent is returned when a Server is built without one of its
// required components.
var ErrMissingComponent = errors.New("all components must be provided")

// Server bundles the five lending components behind a fiber app.
type Server struct {
	app       *fiber.App
	inventory *inventory.Store
	requests  *requests.Processor
	ledger    *ledger.Ledger
	fines     *fines.Engine
	settings  *settings.Provider
	logger    docstore.Logger
}

// Components carries the wired lending components into BuildServer.
type Components struct {
	Inventory *inventory.Store
	Requests  *requests.Processor
	Ledger    *ledger.Ledger
	Fines     *fines.Engine
	Settings  *settings.Provider
}

// Option configures a Server using the functional options pattern.
type Option func(*Server) error

// WithLogger enables logging.
func WithLogger(logger docstore.Logger) Option {
	return func(s *Server) error {
		s.logger = logger

		return nil
	}
}

// BuildServer wires the components into a fiber app with all routes attached.
func BuildServer(components Components, options ...Option) (*Server, error) {
	if components.Inventory == nil || components.Requests == nil || components.Ledger == nil ||
		components.Fines == nil || components.Settings == nil {
		return nil, ErrMissingComponent
	}

	server := &Server{
		inventory: components.Inventory,
		requests:  components.Requests,
		ledger:    components.Ledger,
		fines:     components.Fines,
		settings:  components.Settings,
	}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, err
		}
	}

	app := fiber.New(fiber.Config{
		AppName:               "lending-engine",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())

	server.app = app
	server.registerRoutes()

	return server, nil
}

// App exposes the underlying fiber app for serving and testing.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves the API on the given address until shutdown.
func (s *Server) Listen(address string) error {
	return s.app.Listen(address)
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) registerRoutes() {
	s.app.Get("/health", s.health)

	api := s.app.Group("/api/v1")

	books := api.Group("/books")
	books.Post("/", s.addBook)
	books.Get("/", s.listCatalog)
	books.Get("/:isbn", s.bookByISBN)
	books.Post("/:isbn/unavailable", s.markUnavailable)
	books.Post("/:isbn/available", s.markAvailable)

	reqs := api.Group("/requests")
	reqs.Post("/", s.submitRequest)
	reqs.Get("/pending", s.pendingRequests)
	reqs.Get("/:id", s.requestByID)
	reqs.Post("/:id/accept", s.acceptRequest)
	reqs.Post("/:id/reject", s.rejectRequest)
	reqs.Post("/:id/issue", s.issueLoan)

	loans := api.Group("/loans")
	loans.Get("/counts", s.loanCounts)
	loans.Get("/:id", s.transactionByID)
	loans.Post("/:id/return", s.returnLoan)
	loans.Post("/:id/damaged", s.markDamaged)
	loans.Post("/:id/lost", s.markLost)

	fineRoutes := api.Group("/fines")
	fineRoutes.Post("/", s.recordFine)
	fineRoutes.Get("/pending/count", s.pendingFinesCount)
	fineRoutes.Get("/member/:memberID", s.finesForMember)
	fineRoutes.Get("/:id", s.fineByID)
	fineRoutes.Post("/:id/toggle", s.toggleFineStatus)

	settingsRoutes := api.Group("/settings")
	settingsRoutes.Get("/", s.currentSettings)
	settingsRoutes.Put("/", s.updateSettings)
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "healthy"})
}
