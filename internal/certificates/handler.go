package certificates

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/tawarruq/pkg/handlers"
	"github.com/JaimeStill/tawarruq/pkg/openapi"
	"github.com/JaimeStill/tawarruq/pkg/pagination"
	"github.com/JaimeStill/tawarruq/pkg/routes"
)

// Handler provides HTTP endpoints for certificate operations.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

// NewHandler creates a Handler with the given system, logger, and pagination config.
func NewHandler(sys System, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "certificates"),
		pagination: pagination,
	}
}

// Routes returns the route group definition for certificate endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix:  "/certificates",
		Tags:    []string{"Certificates"},
		Schemas: Schemas(),
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List, OpenAPI: listOp},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find, OpenAPI: findOp},
			{Method: "GET", Pattern: "/{id}/download", Handler: h.Download, OpenAPI: downloadOp},
		},
	}
}

// TransactionRoutes returns the certificate endpoints nested under a transaction.
func (h *Handler) TransactionRoutes() routes.Group {
	return routes.Group{
		Prefix: "/transactions",
		Tags:   []string{"Certificates"},
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/{id}/certificates", Handler: h.ForTransaction, OpenAPI: forTransactionOp},
		},
	}
}

// List returns a paginated list of certificates.
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

// Find returns a certificate by UUID or certificate number.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	v, err := h.sys.Find(r.Context(), r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, v)
}

// Download streams the certificate document as a JSON attachment.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	v, rc, err := h.sys.Download(r.Context(), r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", documentContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", v.Number+".json"))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("certificate download interrupted", "number", v.Number, "error", err)
	}
}

// ForTransaction returns the certificates currently held by a transaction's stages.
func (h *Handler) ForTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidID)
		return
	}

	views, err := h.sys.ForTransaction(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, views)
}

var refParam = &openapi.Parameter{
	Name:        "id",
	In:          "path",
	Required:    true,
	Description: "Certificate UUID or number",
	Schema:      &openapi.Schema{Type: "string", Example: "CERT-QAB-20250115-7K2M9X"},
}

var listOp = &openapi.Operation{
	Summary: "List certificates",
	Parameters: []*openapi.Parameter{
		openapi.QueryParam("page", "integer", "Page number", false),
		openapi.QueryParam("pageSize", "integer", "Results per page", false),
		openapi.QueryParam("search", "string", "Search number and transaction reference", false),
		openapi.QueryParam("type", "string", "WAKALAH_AGREEMENT, QABD_CONFIRMATION, or LIQUIDATION_CERTIFICATE", false),
		openapi.QueryParam("transactionId", "string", "Filter by transaction", false),
	},
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Page of certificates", "CertificatePage"),
		400: openapi.ResponseRef("BadRequest"),
	},
}

var findOp = &openapi.Operation{
	Summary:    "Find a certificate",
	Parameters: []*openapi.Parameter{refParam},
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Certificate", "Certificate"),
		404: openapi.ResponseRef("NotFound"),
	},
}

var downloadOp = &openapi.Operation{
	Summary:    "Download a certificate document",
	Parameters: []*openapi.Parameter{refParam},
	Responses: map[int]*openapi.Response{
		200: openapi.ResponseJSON("Certificate document", "Certificate"),
		404: openapi.ResponseRef("NotFound"),
	},
}

var forTransactionOp = &openapi.Operation{
	Summary:    "Certificates held by a transaction",
	Parameters: []*openapi.Parameter{openapi.PathParam("id", "Transaction ID")},
	Responses: map[int]*openapi.Response{
		200: {
			Description: "Certificates linked from the transaction's stage records",
			Content: map[string]*openapi.MediaType{
				"application/json": {Schema: &openapi.Schema{Type: "array", Items: openapi.SchemaRef("Certificate")}},
			},
		},
		400: openapi.ResponseRef("BadRequest"),
	},
}

// Schemas returns the OpenAPI component schemas for certificates.
func Schemas() map[string]*openapi.Schema {
	return map[string]*openapi.Schema{
		"Certificate": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":             {Type: "string", Format: "uuid"},
				"number":         {Type: "string", Example: "CERT-WAK-20250115-A1B2C3"},
				"type":           {Type: "string", Enum: []any{"WAKALAH_AGREEMENT", "QABD_CONFIRMATION", "LIQUIDATION_CERTIFICATE"}},
				"stageRecordId":  {Type: "string", Format: "uuid"},
				"transactionId":  {Type: "string", Format: "uuid"},
				"issuer":         {Type: "string", Example: Issuer},
				"issuedAt":       {Type: "string", Format: "date-time"},
				"data":           {Type: "object"},
				"stage":          {Type: "string", Enum: []any{"T0", "T1", "T2"}},
				"transactionRef": {Type: "string"},
				"formattedType":  {Type: "string", Example: "Wakalah Agreement"},
				"details":        {Type: "array", Items: &openapi.Schema{Type: "string"}},
			},
		},
		"CertificatePage": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"data":       {Type: "array", Items: openapi.SchemaRef("Certificate")},
				"total":      {Type: "integer"},
				"page":       {Type: "integer"},
				"pageSize":   {Type: "integer"},
				"totalPages": {Type: "integer"},
			},
		},
	}
}
