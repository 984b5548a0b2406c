package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/openshelf/lending-engine-go/docstore"
	"github.com/openshelf/lending-engine-go/lending/core"
	"github.com/openshelf/lending-engine-go/lending/fines"
)

type errorBody struct {
	Error string `json:"error"`
}

// respondError maps the lending error taxonomy to HTTP status codes.
// Unmapped errors become 500 without leaking internals.
func (s *Server) respondError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, docstore.ErrNotFound):
		status, message = fiber.StatusNotFound, "not found"
	case errors.Is(err, docstore.ErrDuplicateDocument):
		status, message = fiber.StatusConflict, "already exists"
	case errors.Is(err, docstore.ErrConcurrencyConflict):
		status, message = fiber.StatusConflict, "concurrent modification, retry"
	case errors.Is(err, core.ErrInvalidStateTransition):
		status, message = fiber.StatusConflict, err.Error()
	case errors.Is(err, core.ErrInventoryExhausted):
		status, message = fiber.StatusConflict, err.Error()
	case errors.Is(err, core.ErrReservationExpired):
		status, message = fiber.StatusGone, err.Error()
	case errors.Is(err, core.ErrInvalidCount), errors.Is(err, core.ErrNegativeCopies),
		errors.Is(err, core.ErrNegativeCost), errors.Is(err, core.ErrInvalidFineReason),
		errors.Is(err, fines.ErrNegativeAmount):
		status, message = fiber.StatusBadRequest, err.Error()
	case errors.Is(err, docstore.ErrStoreUnavailable):
		status, message = fiber.StatusServiceUnavailable, "store unavailable"
	}

	if status == fiber.StatusInternalServerError && s.logger != nil {
		s.logger.Error("request failed", "path", c.Path(), "error", err)
	}

	return c.Status(status).JSON(errorBody{Error: message})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(errorBody{Error: message})
}
