package api

import (
	"errors"

	"github.com/labstack/echo/v4"

	"chartfeed/internal/domain/models"
	domrepo "chartfeed/internal/domain/repository"
	"chartfeed/internal/usecase"
	xhttp "chartfeed/pkg/http"
	xlogger "chartfeed/pkg/logger"
)

// ShapesEchoHandler exposes CRUD for chart annotations.
type ShapesEchoHandler struct {
	logger *xlogger.Logger
	shapes *usecase.ShapeService
}

func NewShapesEchoHandler(logger *xlogger.Logger, shapes *usecase.ShapeService) *ShapesEchoHandler {
	return &ShapesEchoHandler{logger: logger, shapes: shapes}
}

func (h *ShapesEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/shapes")
	g.POST("", h.Create)
	g.GET("", h.List)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}

func (h *ShapesEchoHandler) Create(c echo.Context) error {
	req := &models.ShapeCreateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.ValidationErrorResponse(c, verr)
	}

	shape, err := h.shapes.Create(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "create", err)
	}
	return xhttp.JSONResponse(c, shape)
}

func (h *ShapesEchoHandler) List(c echo.Context) error {
	req := &models.ShapeListRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.ValidationErrorResponse(c, verr)
	}

	list, err := h.shapes.List(c.Request().Context(), req.Symbol)
	if err != nil {
		return h.fail(c, "list", err)
	}
	return xhttp.JSONResponse(c, list)
}

func (h *ShapesEchoHandler) Update(c echo.Context) error {
	req := &models.ShapeUpdateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.ValidationErrorResponse(c, verr)
	}

	shape, err := h.shapes.Update(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "update", err)
	}
	return xhttp.JSONResponse(c, shape)
}

type shapeIDRequest struct {
	ID int64 `param:"id" validate:"gt=0"`
}

func (h *ShapesEchoHandler) Delete(c echo.Context) error {
	req := &shapeIDRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.ValidationErrorResponse(c, verr)
	}

	if err := h.shapes.Delete(c.Request().Context(), req.ID); err != nil {
		return h.fail(c, "delete", err)
	}
	return xhttp.OKResponse(c)
}

// fail maps usecase errors to statuses: missing shapes are 404, invalid
// points 400, the rest 500.
func (h *ShapesEchoHandler) fail(c echo.Context, op string, err error) error {
	var invalid *usecase.InvalidShapeError
	switch {
	case errors.Is(err, domrepo.ErrShapeNotFound):
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("shape not found").WithError(err))
	case errors.As(err, &invalid):
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("%s", invalid.Error()).WithError(err))
	}
	h.logger.Error("shapes usecase error", xlogger.String("op", op), xlogger.Error(err))
	return xhttp.AppErrorResponse(c, xhttp.InternalErrorf("%s shape failed", op).WithError(err))
}
