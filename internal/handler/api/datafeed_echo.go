package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"chartfeed/internal/domain/models"
	domrepo "chartfeed/internal/domain/repository"
	"chartfeed/internal/usecase"
	xhttp "chartfeed/pkg/http"
	xlogger "chartfeed/pkg/logger"
)

// DatafeedEchoHandler serves the charting widget's datafeed endpoints.
type DatafeedEchoHandler struct {
	logger   *xlogger.Logger
	datafeed *usecase.DatafeedService
	history  *usecase.HistoryService
	mw       []echo.MiddlewareFunc
}

func NewDatafeedEchoHandler(logger *xlogger.Logger, datafeed *usecase.DatafeedService, history *usecase.HistoryService, mw ...echo.MiddlewareFunc) *DatafeedEchoHandler {
	return &DatafeedEchoHandler{logger: logger, datafeed: datafeed, history: history, mw: mw}
}

func (h *DatafeedEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("", h.mw...)
	g.GET("/config", h.Config)
	g.GET("/time", h.Time)
	g.GET("/symbols", h.Symbols)
	g.GET("/search", h.Search)
	g.GET("/history", h.History)
}

func (h *DatafeedEchoHandler) Config(c echo.Context) error {
	cfg, err := h.datafeed.Config(c.Request().Context())
	if err != nil {
		h.logger.Error("config usecase error", xlogger.Error(err))
		return xhttp.ErrorResponse(c, http.StatusInternalServerError, err.Error())
	}
	return xhttp.JSONResponse(c, cfg)
}

type timeRequest struct {
	Symbol string `query:"symbol"`
}

func (h *DatafeedEchoHandler) Time(c echo.Context) error {
	req := &timeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.ValidationErrorResponse(c, verr)
	}

	ts, err := h.datafeed.ServerTime(c.Request().Context(), req.Symbol)
	if err != nil {
		h.logger.Warn("time usecase error", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.ErrorResponse(c, http.StatusInternalServerError, err.Error())
	}
	return xhttp.JSONResponse(c, ts)
}

type symbolRequest struct {
	Symbol string `query:"symbol" validate:"required"`
}

// Symbols returns the stored metadata object verbatim. Unknown symbols get
// the error envelope with 200, which the widget expects.
func (h *DatafeedEchoHandler) Symbols(c echo.Context) error {
	req := &symbolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.ValidationErrorResponse(c, verr)
	}

	meta, err := h.datafeed.Symbol(c.Request().Context(), req.Symbol)
	if errors.Is(err, domrepo.ErrSymbolNotFound) {
		return xhttp.ErrorResponse(c, http.StatusOK, err.Error())
	}
	if err != nil {
		h.logger.Error("symbols usecase error", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.ErrorResponse(c, http.StatusOK, err.Error())
	}
	return xhttp.JSONResponse(c, meta)
}

func (h *DatafeedEchoHandler) Search(c echo.Context) error {
	req := &models.SearchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.ValidationErrorResponse(c, verr)
	}

	res, err := h.datafeed.Search(c.Request().Context(), *req)
	if err != nil {
		h.logger.Error("search usecase error", xlogger.Error(err))
		return xhttp.ErrorResponse(c, http.StatusInternalServerError, err.Error())
	}
	return xhttp.JSONResponse(c, res)
}

// History always answers with a history envelope; only unparseable query
// parameters produce a 400.
func (h *DatafeedEchoHandler) History(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.ValidationErrorResponse(c, verr)
	}
	q, err := req.ToQuery()
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse(err.Error()))
	}

	return xhttp.JSONResponse(c, h.history.History(c.Request().Context(), q))
}
