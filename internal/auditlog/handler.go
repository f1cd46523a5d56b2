package auditlog

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/JaimeStill/tawarruq/pkg/handlers"
	"github.com/JaimeStill/tawarruq/pkg/openapi"
	"github.com/JaimeStill/tawarruq/pkg/pagination"
	"github.com/JaimeStill/tawarruq/pkg/routes"
)

// Handler provides HTTP endpoints for the audit log.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

// NewHandler creates a Handler with the given system, logger, and pagination config.
func NewHandler(sys System, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "auditlog"),
		pagination: pagination,
	}
}

// Routes returns the route group definition for log endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix:  "/logs",
		Tags:    []string{"Audit Log"},
		Schemas: Schemas(),
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List, OpenAPI: listOp},
			{Method: "GET", Pattern: "/recent", Handler: h.Recent, OpenAPI: recentOp},
		},
	}
}

// List returns a paginated, filtered page of log entries.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := FiltersFromQuery(r.URL.Query())

	result, err := h.sys.List(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Recent returns the latest entries. The optional limit query parameter caps the count.
func (h *Handler) Recent(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.sys.Recent(r.Context(), limit)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, entries)
}

var listOp = &openapi.Operation{
	Summary: "List audit log entries",
	Parameters: []*openapi.Parameter{
		openapi.QueryParam("page", "integer", "Page number", false),
		openapi.QueryParam("pageSize", "integer", "Results per page", false),
		openapi.QueryParam("search", "string", "Search message and event type", false),
		openapi.QueryParam("transactionId", "string", "Filter by transaction", false),
		openapi.QueryParam("severity", "string", "INFO, WARNING, ERROR, or CRITICAL", false),
		openapi.QueryParam("eventType", "string", "Filter by event type", false),
	},
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Page of log entries", "LogEntryPage"),
		400: openapi.ResponseRef("BadRequest"),
	},
}

var recentOp = &openapi.Operation{
	Summary:    "Latest audit log entries",
	Parameters: []*openapi.Parameter{openapi.QueryParam("limit", "integer", "Maximum entries (default 20, max 100)", false)},
	Responses: map[int]*openapi.Response{
		200: {
			Description: "Newest entries first",
			Content: map[string]*openapi.MediaType{
				"application/json": {Schema: &openapi.Schema{Type: "array", Items: openapi.SchemaRef("LogEntry")}},
			},
		},
	},
}

// Schemas returns the OpenAPI component schemas for log entries.
func Schemas() map[string]*openapi.Schema {
	return map[string]*openapi.Schema{
		"LogEntry": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":            {Type: "string", Format: "uuid"},
				"transactionId": {Type: "string", Format: "uuid"},
				"eventType":     {Type: "string", Example: "T1_COMPLETED"},
				"message":       {Type: "string"},
				"severity":      {Type: "string", Enum: []any{"INFO", "WARNING", "ERROR", "CRITICAL"}},
				"timestamp":     {Type: "string", Format: "date-time"},
				"metadata":      {Type: "object"},
			},
		},
		"LogEntryPage": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"data":       {Type: "array", Items: openapi.SchemaRef("LogEntry")},
				"total":      {Type: "integer"},
				"page":       {Type: "integer"},
				"pageSize":   {Type: "integer"},
				"totalPages": {Type: "integer"},
			},
		},
	}
}
