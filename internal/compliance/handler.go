package compliance

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/JaimeStill/tawarruq/pkg/handlers"
	"github.com/JaimeStill/tawarruq/pkg/openapi"
	"github.com/JaimeStill/tawarruq/pkg/routes"
)

// Handler provides HTTP endpoints for stage transitions and violation handling.
type Handler struct {
	sys    System
	logger *slog.Logger
}

func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "compliance"),
	}
}

// Routes returns the compliance endpoints, nested under transactions.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix:  "/transactions",
		Tags:    []string{"Compliance"},
		Schemas: Schemas(),
		Routes: []routes.Route{
			{Method: "POST", Pattern: "/{id}/stages", Handler: h.AdvanceStage, OpenAPI: advanceOp},
			{Method: "GET", Pattern: "/{id}/order", Handler: h.OrderValidity, OpenAPI: orderOp},
			{Method: "POST", Pattern: "/{id}/resolve", Handler: h.Resolve, OpenAPI: resolveOp},
			{Method: "GET", Pattern: "/{id}/resolutions", Handler: h.Resolutions, OpenAPI: resolutionsOp},
			{Method: "GET", Pattern: "/{id}/score", Handler: h.Score, OpenAPI: scoreOp},
			{Method: "GET", Pattern: "/{id}/audit", Handler: h.Timeline, OpenAPI: timelineOp},
		},
	}
}

func (h *Handler) AdvanceStage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var cmd AdvanceCommand
	if err := handlers.ReadJSON(r, &cmd); err != nil {
		handlers.RespondError(w, h.logger, handlers.BodyStatus(err), fmt.Errorf("%w: %v", ErrValidation, err))
		return
	}

	record, err := h.sys.AdvanceStage(r.Context(), id, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, record)
}

func (h *Handler) OrderValidity(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	order, err := h.sys.OrderValidity(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, order)
}

func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var cmd ResolveCommand
	if err := handlers.ReadJSON(r, &cmd); err != nil {
		handlers.RespondError(w, h.logger, handlers.BodyStatus(err), fmt.Errorf("%w: %v", ErrValidation, err))
		return
	}

	result, err := h.sys.Resolve(r.Context(), id, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) Resolutions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	history, err := h.sys.Resolutions(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, history)
}

// Score returns the compliance report. ?advisor=true asks the configured advisor.
func (h *Handler) Score(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	useAdvisor, _ := strconv.ParseBool(r.URL.Query().Get("advisor"))

	report, err := h.sys.Score(r.Context(), id, useAdvisor)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, report)
}

func (h *Handler) Timeline(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	timeline, err := h.sys.Timeline(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, timeline)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

var idParam = openapi.PathParam("id", "Transaction ID")

var advanceOp = &openapi.Operation{
	Summary:     "Advance a stage",
	Description: "Moves a stage to IN_PROGRESS, COMPLETED, or FAILED. Completion issues a certificate.",
	Parameters:  []*openapi.Parameter{idParam},
	RequestBody: openapi.RequestBodyJSON("AdvanceStage", true),
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Updated stage record", "StageRecord"),
		400: openapi.ResponseRef("BadRequest"),
		404: openapi.ResponseRef("NotFound"),
		409: openapi.ResponseRef("Conflict"),
	},
}

var orderOp = &openapi.Operation{
	Summary:    "Validate stage order",
	Parameters: []*openapi.Parameter{idParam},
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Order validity", "OrderResult"),
		400: openapi.ResponseRef("BadRequest"),
		404: openapi.ResponseRef("NotFound"),
	},
}

var resolveOp = &openapi.Operation{
	Summary:     "Resolve a violation",
	Description: "Resets failed or out-of-order stages and returns the transaction to PROCESSING.",
	Parameters:  []*openapi.Parameter{idParam},
	RequestBody: openapi.RequestBodyJSON("ResolveViolation", true),
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Resolution result", "ResolveResult"),
		400: openapi.ResponseRef("BadRequest"),
		404: openapi.ResponseRef("NotFound"),
		409: openapi.ResponseRef("Conflict"),
	},
}

var resolutionsOp = &openapi.Operation{
	Summary:    "Violation history",
	Parameters: []*openapi.Parameter{idParam},
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Resolutions, newest first", "ResolutionList"),
		400: openapi.ResponseRef("BadRequest"),
		404: openapi.ResponseRef("NotFound"),
	},
}

var scoreOp = &openapi.Operation{
	Summary: "Compliance score",
	Parameters: []*openapi.Parameter{
		idParam,
		openapi.QueryParam("advisor", "boolean", "Use the configured advisor instead of the rule-based scorer", false),
	},
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Compliance report", "ComplianceReport"),
		400: openapi.ResponseRef("BadRequest"),
		404: openapi.ResponseRef("NotFound"),
	},
}

var timelineOp = &openapi.Operation{
	Summary:    "Audit timeline",
	Parameters: []*openapi.Parameter{idParam},
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Stages with certificate numbers, order validity, and log entries", "Timeline"),
		400: openapi.ResponseRef("BadRequest"),
		404: openapi.ResponseRef("NotFound"),
	},
}

var (
	stageEnum    = []any{"T0", "T1", "T2"}
	severityEnum = []any{"low", "medium", "high", "critical"}
)

// Schemas returns the OpenAPI component schemas for compliance operations.
func Schemas() map[string]*openapi.Schema {
	reanalysis := &openapi.Schema{
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"originalIssue":    {Type: "string", Example: "stage T2 failed"},
			"resolutionNotes":  {Type: "string"},
			"stageOrderValid":  {Type: "boolean"},
			"outOfOrderStages": {Type: "array", Items: &openapi.Schema{Type: "string", Enum: stageEnum}},
			"recommendation":   {Type: "string"},
			"complianceScore":  {Type: "integer"},
			"generatedBy":      {Type: "string", Enum: []any{"rules", "gemini"}},
		},
	}

	return map[string]*openapi.Schema{
		"AdvanceStage": {
			Type:     "object",
			Required: []string{"stage", "status"},
			Properties: map[string]*openapi.Schema{
				"stage":  {Type: "string", Enum: stageEnum},
				"status": {Type: "string", Enum: []any{"IN_PROGRESS", "COMPLETED", "FAILED"}},
			},
		},
		"OrderResult": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"isValid":    {Type: "boolean"},
				"outOfOrder": {Type: "array", Items: &openapi.Schema{Type: "string", Enum: stageEnum}},
			},
		},
		"ResolveViolation": {
			Type:     "object",
			Required: []string{"notes"},
			Properties: map[string]*openapi.Schema{
				"notes":      {Type: "string"},
				"resolvedBy": {Type: "string", Example: "auditor@example.com"},
			},
		},
		"Resolution": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":              {Type: "string", Format: "uuid"},
				"transactionId":   {Type: "string", Format: "uuid"},
				"originalStage":   {Type: "string", Enum: stageEnum},
				"resolutionNotes": {Type: "string"},
				"resolvedBy":      {Type: "string"},
				"resolvedAt":      {Type: "string", Format: "date-time"},
				"reprocessed":     {Type: "boolean"},
				"aiReanalysis":    reanalysis,
			},
		},
		"ResolutionList": {
			Type:  "array",
			Items: openapi.SchemaRef("Resolution"),
		},
		"ResolveResult": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"resolution":   openapi.SchemaRef("Resolution"),
				"stagesReset":  {Type: "array", Items: &openapi.Schema{Type: "string", Enum: stageEnum}},
				"aiReanalysis": reanalysis,
			},
		},
		"ComplianceReport": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"summary":         {Type: "string"},
				"complianceScore": {Type: "integer"},
				"findings": {Type: "array", Items: &openapi.Schema{
					Type: "object",
					Properties: map[string]*openapi.Schema{
						"stage":          {Type: "string", Enum: stageEnum},
						"issue":          {Type: "string"},
						"severity":       {Type: "string", Enum: severityEnum},
						"recommendation": {Type: "string"},
					},
				}},
				"recommendations": {Type: "array", Items: &openapi.Schema{Type: "string"}},
				"generatedBy":     {Type: "string", Enum: []any{"rules", "gemini"}},
			},
		},
		"Timeline": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"transactionId": {Type: "string", Format: "uuid"},
				"reference":     {Type: "string"},
				"stages":        {Type: "array", Items: openapi.SchemaRef("StageRecord")},
				"order":         openapi.SchemaRef("OrderResult"),
				"logs":          {Type: "array", Items: openapi.SchemaRef("LogEntry")},
			},
		},
	}
}
