package transactions

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/tawarruq/pkg/handlers"
	"github.com/JaimeStill/tawarruq/pkg/openapi"
	"github.com/JaimeStill/tawarruq/pkg/pagination"
	"github.com/JaimeStill/tawarruq/pkg/routes"
)

// Handler provides HTTP endpoints for transaction operations.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

// NewHandler creates a Handler with the given system, logger, and pagination config.
func NewHandler(sys System, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "transactions"),
		pagination: pagination,
	}
}

// Routes returns the route group definition for transaction endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix:  "/transactions",
		Tags:    []string{"Transactions"},
		Schemas: Schemas(),
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List, OpenAPI: listOp},
			{Method: "POST", Pattern: "", Handler: h.Create, OpenAPI: createOp},
			{Method: "GET", Pattern: "/stats", Handler: h.Stats, OpenAPI: statsOp},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find, OpenAPI: findOp},
			{Method: "GET", Pattern: "/{id}/detail", Handler: h.Detail, OpenAPI: detailOp},
			{Method: "PUT", Pattern: "/{id}/status", Handler: h.UpdateStatus, OpenAPI: statusOp},
		},
	}
}

// List returns a paginated list of transactions with optional query parameter filters.
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

// Find returns a single transaction by its UUID path parameter.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	t, err := h.sys.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, t)
}

// Detail returns a transaction with its stage records and recent log entries.
func (h *Handler) Detail(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	d, err := h.sys.Detail(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, d)
}

// Create registers a new transaction and its three PENDING stage records.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var cmd CreateCommand
	if err := handlers.ReadJSON(r, &cmd); err != nil {
		handlers.RespondError(w, h.logger, handlers.BodyStatus(err), fmt.Errorf("%w: %v", ErrInvalidCommand, err))
		return
	}

	d, err := h.sys.Create(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, d)
}

// UpdateStatus applies an administrative status override.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var cmd StatusCommand
	if err := handlers.ReadJSON(r, &cmd); err != nil {
		handlers.RespondError(w, h.logger, handlers.BodyStatus(err), fmt.Errorf("%w: %v", ErrInvalidStatus, err))
		return
	}

	t, err := h.sys.UpdateStatus(r.Context(), id, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, t)
}

// Stats returns dashboard counts and the most recent transactions.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	s, err := h.sys.Stats(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, s)
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

var listOp = &openapi.Operation{
	Summary: "List transactions",
	Parameters: []*openapi.Parameter{
		openapi.QueryParam("page", "integer", "Page number", false),
		openapi.QueryParam("pageSize", "integer", "Results per page", false),
		openapi.QueryParam("search", "string", "Search customer name, customer id, and reference", false),
		openapi.QueryParam("sort", "string", "Comma-separated sort fields, prefix with - for descending", false),
		openapi.QueryParam("status", "string", "Filter by transaction status", false),
		openapi.QueryParam("shariahStatus", "string", "Filter by shariah status", false),
		openapi.QueryParam("commodityType", "string", "Filter by commodity", false),
	},
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Page of transactions", "TransactionPage"),
		400: openapi.ResponseRef("BadRequest"),
	},
}

var createOp = &openapi.Operation{
	Summary:     "Create a transaction",
	Description: "Creates the transaction with T0, T1, and T2 stage records in PENDING.",
	RequestBody: openapi.RequestBodyJSON("CreateTransaction", true),
	Responses: map[int]*openapi.Response{
		201: openapi.ResponseJSON("Created transaction with stages", "TransactionDetail"),
		400: openapi.ResponseRef("BadRequest"),
		409: openapi.ResponseRef("Conflict"),
	},
}

var statsOp = &openapi.Operation{
	Summary: "Dashboard statistics",
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Transaction counts and recent transactions", "TransactionStats"),
	},
}

var findOp = &openapi.Operation{
	Summary:    "Find a transaction",
	Parameters: []*openapi.Parameter{idParam},
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Transaction", "Transaction"),
		400: openapi.ResponseRef("BadRequest"),
		404: openapi.ResponseRef("NotFound"),
	},
}

var detailOp = &openapi.Operation{
	Summary:    "Transaction detail",
	Parameters: []*openapi.Parameter{idParam},
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Transaction with stages and log entries", "TransactionDetail"),
		400: openapi.ResponseRef("BadRequest"),
		404: openapi.ResponseRef("NotFound"),
	},
}

var statusOp = &openapi.Operation{
	Summary:     "Override transaction status",
	Parameters:  []*openapi.Parameter{idParam},
	RequestBody: openapi.RequestBodyJSON("UpdateTransactionStatus", true),
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Updated transaction", "Transaction"),
		400: openapi.ResponseRef("BadRequest"),
		404: openapi.ResponseRef("NotFound"),
	},
}

var (
	transactionStatusEnum = []any{"PENDING", "PROCESSING", "COMPLETED", "VIOLATION", "CANCELLED"}
	shariahStatusEnum     = []any{"COMPLIANT", "NON_COMPLIANT", "PENDING_REVIEW", "UNDER_INVESTIGATION"}
	commodityEnum         = []any{"CPO", "FPOL", "FUPO", "FGLD", "OTHER"}
)

// Schemas returns the OpenAPI component schemas for transactions.
func Schemas() map[string]*openapi.Schema {
	return map[string]*openapi.Schema{
		"Transaction": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":             {Type: "string", Format: "uuid"},
				"reference":      {Type: "string", Example: "TXN-20250115-A1B2C3"},
				"customerName":   {Type: "string"},
				"customerId":     {Type: "string"},
				"commodityType":  {Type: "string", Enum: commodityEnum},
				"amount":         {Type: "string", Example: "150000"},
				"currency":       {Type: "string", Example: "MYR"},
				"status":         {Type: "string", Enum: transactionStatusEnum},
				"shariahStatus":  {Type: "string", Enum: shariahStatusEnum},
				"violationCount": {Type: "integer"},
				"createdAt":      {Type: "string", Format: "date-time"},
				"updatedAt":      {Type: "string", Format: "date-time"},
			},
		},
		"StageRecord": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":            {Type: "string", Format: "uuid"},
				"transactionId": {Type: "string", Format: "uuid"},
				"stage":         {Type: "string", Enum: []any{"T0", "T1", "T2"}},
				"stageName":     {Type: "string", Example: "WAKALAH_AGREEMENT"},
				"status":        {Type: "string", Enum: []any{"PENDING", "IN_PROGRESS", "COMPLETED", "FAILED"}},
				"startedAt":     {Type: "string", Format: "date-time"},
				"completedAt":   {Type: "string", Format: "date-time"},
				"certificateId": {Type: "string", Format: "uuid"},
			},
		},
		"TransactionDetail": {
			Type:        "object",
			Description: "Transaction fields plus stages and logs",
			Properties: map[string]*openapi.Schema{
				"stages": {Type: "array", Items: openapi.SchemaRef("StageRecord")},
				"logs":   {Type: "array", Items: openapi.SchemaRef("LogEntry")},
			},
		},
		"TransactionPage": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"data":       {Type: "array", Items: openapi.SchemaRef("Transaction")},
				"total":      {Type: "integer"},
				"page":       {Type: "integer"},
				"pageSize":   {Type: "integer"},
				"totalPages": {Type: "integer"},
			},
		},
		"TransactionStats": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"total":      {Type: "integer"},
				"pending":    {Type: "integer"},
				"processing": {Type: "integer"},
				"completed":  {Type: "integer"},
				"violations": {Type: "integer"},
				"recent":     {Type: "array", Items: openapi.SchemaRef("TransactionDetail")},
			},
		},
		"CreateTransaction": {
			Type:     "object",
			Required: []string{"customerName", "customerId", "commodityType", "amount"},
			Properties: map[string]*openapi.Schema{
				"customerName":  {Type: "string"},
				"customerId":    {Type: "string"},
				"commodityType": {Type: "string", Enum: commodityEnum},
				"amount":        {Type: "number", Example: 150000},
				"currency":      {Type: "string", Example: "MYR"},
			},
		},
		"UpdateTransactionStatus": {
			Type:     "object",
			Required: []string{"status"},
			Properties: map[string]*openapi.Schema{
				"status":        {Type: "string", Enum: transactionStatusEnum},
				"shariahStatus": {Type: "string", Enum: shariahStatusEnum},
			},
		},
	}
}
