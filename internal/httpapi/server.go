// Package httpapi exposes jobs over HTTP with fiber: start and poll
// endpoints for translations, workflow tests and workflow executions, plus
// the loopback endpoint background launchers call.
package httpapi

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"

	"github.com/valpere/polytran/internal/app"
	"github.com/valpere/polytran/internal/errs"
)

// Server owns the fiber application.
type Server struct {
	app   *app.App
	fiber *fiber.App
	log   *logrus.Entry

	// jobCtx is the parent of jobs started through the loopback endpoint;
	// it outlives individual requests.
	jobCtx context.Context
}

func New(a *app.App, log *logrus.Entry) *Server {
	s := &Server{app: a, log: log, jobCtx: context.Background()}
	s.fiber = fiber.New(fiber.Config{
		AppName:               "polytran",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.fiber.Use(recover.New(recover.Config{EnableStackTrace: true}), requestid.New())
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.fiber.Group("/api/v1")
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "launchers": s.app.Dispatcher.Launchers()})
	})

	tr := api.Group("/translations")
	tr.Post("", s.startTranslation)
	tr.Get("/:token", s.pollTranslation)

	wf := api.Group("/workflows")
	wf.Post("/:id/test", s.startWorkflowTest)
	wf.Get("/tests/:token", s.pollWorkflowTest)
	wf.Post("/:id/execute", s.startWorkflowExecution)
	wf.Get("/executions/:id", s.pollWorkflowExecution)

	s.fiber.Post("/internal/jobs/:token", s.runJob)
}

// App returns the fiber application, for tests and embedding.
func (s *Server) App() *fiber.App { return s.fiber }

// WithJobContext sets the parent context of loopback-launched jobs.
func (s *Server) WithJobContext(ctx context.Context) *Server {
	s.jobCtx = ctx
	return s
}

func (s *Server) Listen(addr string) error {
	s.log.WithField("address", addr).Info("http server listening")
	return s.fiber.Listen(addr)
}

func (s *Server) Shutdown() error {
	return s.fiber.Shutdown()
}

// errorBody is the structured error every endpoint returns.
type errorBody struct {
	Status    string    `json:"status"`
	Error     string    `json:"error"`
	ErrorKind errs.Kind `json:"error_kind,omitempty"`
}

func statusFor(kind errs.Kind) int {
	switch kind {
	case errs.KindValidation:
		return fiber.StatusBadRequest
	case errs.KindConfiguration, errs.KindRouting:
		return fiber.StatusUnprocessableEntity
	case errs.KindTransport:
		return fiber.StatusBadGateway
	case errs.KindTimeout:
		return fiber.StatusGatewayTimeout
	}
	return fiber.StatusInternalServerError
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(errorBody{Status: "error", Error: fe.Message})
	}

	kind := errs.KindOf(err)
	code := statusFor(kind)
	if code >= fiber.StatusInternalServerError {
		s.log.WithFields(logrus.Fields{
			"path":       c.Path(),
			"request_id": c.Locals("requestid"),
		}).Errorf("request failed: %v", err)
	}
	return c.Status(code).JSON(errorBody{Status: "error", Error: err.Error(), ErrorKind: kind})
}
