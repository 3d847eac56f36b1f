package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"underwriting-engine/internal/models"
	"underwriting-engine/internal/services/catalog"
	"underwriting-engine/internal/services/underwriting"
)

// MaxBatchSize caps the number of deals accepted in one batch request.
const MaxBatchSize = 100

// Underwriter is the service surface the API needs.
type Underwriter interface {
	Underwrite(ctx context.Context, in *models.CalculationInputs) (*models.UnderwritingRun, error)
	UnderwriteBatch(ctx context.Context, inputs []*models.CalculationInputs) ([]*underwriting.BatchItem, error)
	GetRun(ctx context.Context, id uuid.UUID) (*models.UnderwritingRun, error)
	ListRuns(ctx context.Context, limit int) ([]*models.UnderwritingRun, error)
	Catalog() *catalog.Catalog
}

// UnderwriteHandler serves deal underwriting, stored runs and the product catalog.
type UnderwriteHandler struct {
	service Underwriter
	logger  *zap.Logger
}

// NewUnderwriteHandler creates a new underwrite handler.
func NewUnderwriteHandler(service Underwriter, logger *zap.Logger) *UnderwriteHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UnderwriteHandler{service: service, logger: logger}
}

// BatchRequest is the body of a batch underwriting request.
type BatchRequest struct {
	Deals []*models.CalculationInputs `json:"deals"`
}

// BatchResponse reports each deal of a batch in request order.
type BatchResponse struct {
	Total     int                       `json:"total"`
	Succeeded int                       `json:"succeeded"`
	Failed    int                       `json:"failed"`
	Items     []*underwriting.BatchItem `json:"items"`
}

// RunsResponse lists stored runs, newest first.
type RunsResponse struct {
	Count int                       `json:"count"`
	Runs  []*models.UnderwritingRun `json:"runs"`
}

// ProductsResponse lists the product profiles of the active catalog.
type ProductsResponse struct {
	CatalogVersion string                  `json:"catalog_version"`
	Products       []models.ProductProfile `json:"products"`
}

// Underwrite processes POST requests carrying one deal.
func (h *UnderwriteHandler) Underwrite(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	headers := corsHeaders("POST")
	if resp, ok := preflight(request, headers); ok {
		return resp, nil
	}
	if request.HTTPMethod != http.MethodPost {
		return errorResponse(headers, http.StatusMethodNotAllowed, "method not allowed")
	}

	var in models.CalculationInputs
	if err := json.Unmarshal([]byte(request.Body), &in); err != nil {
		return errorResponse(headers, http.StatusBadRequest, fmt.Sprintf("invalid JSON in request body: %v", err))
	}

	run, err := h.service.Underwrite(ctx, &in)
	if err != nil {
		status := StatusForError(err)
		h.logFailure("Underwriting failed", status, err, zap.String("deal", in.DealName))
		return errorResponse(headers, status, err.Error())
	}

	return jsonResponse(headers, http.StatusOK, Response{Success: true, Data: run})
}

// Batch processes POST requests carrying up to MaxBatchSize deals.
func (h *UnderwriteHandler) Batch(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	headers := corsHeaders("POST")
	if resp, ok := preflight(request, headers); ok {
		return resp, nil
	}
	if request.HTTPMethod != http.MethodPost {
		return errorResponse(headers, http.StatusMethodNotAllowed, "method not allowed")
	}

	var req BatchRequest
	if err := json.Unmarshal([]byte(request.Body), &req); err != nil {
		return errorResponse(headers, http.StatusBadRequest, fmt.Sprintf("invalid JSON in request body: %v", err))
	}
	if len(req.Deals) == 0 {
		return errorResponse(headers, http.StatusBadRequest, "missing required field: deals")
	}
	if len(req.Deals) > MaxBatchSize {
		return errorResponse(headers, http.StatusBadRequest, fmt.Sprintf("batch of %d deals exceeds limit of %d", len(req.Deals), MaxBatchSize))
	}

	items, err := h.service.UnderwriteBatch(ctx, req.Deals)
	if err != nil {
		status := StatusForError(err)
		h.logFailure("Batch underwriting failed", status, err, zap.Int("deals", len(req.Deals)))
		return errorResponse(headers, status, err.Error())
	}

	resp := BatchResponse{Total: len(items), Items: items}
	for _, item := range items {
		if item.Run != nil {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}
	return jsonResponse(headers, http.StatusOK, Response{
		Success: resp.Failed == 0,
		Message: fmt.Sprintf("%d of %d deals underwritten", resp.Succeeded, resp.Total),
		Data:    resp,
	})
}

// Run processes GET requests for a stored run by ?id=. Without an id it
// lists the most recent runs, up to ?limit=.
func (h *UnderwriteHandler) Run(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	headers := corsHeaders("GET")
	if resp, ok := preflight(request, headers); ok {
		return resp, nil
	}
	if request.HTTPMethod != http.MethodGet {
		return errorResponse(headers, http.StatusMethodNotAllowed, "method not allowed")
	}

	rawID := request.QueryStringParameters["id"]
	if rawID == "" {
		rawID = request.PathParameters["id"]
	}
	if rawID == "" {
		return h.listRuns(ctx, request, headers)
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return errorResponse(headers, http.StatusBadRequest, "missing or invalid run id")
	}

	run, err := h.service.GetRun(ctx, id)
	if err != nil {
		status := StatusForError(err)
		h.logFailure("Run lookup failed", status, err, zap.String("run_id", id.String()))
		return errorResponse(headers, status, err.Error())
	}
	return jsonResponse(headers, http.StatusOK, Response{Success: true, Data: run})
}

func (h *UnderwriteHandler) listRuns(ctx context.Context, request events.APIGatewayProxyRequest, headers map[string]string) (events.APIGatewayProxyResponse, error) {
	limit := underwriting.DefaultRunListLimit
	if raw := request.QueryStringParameters["limit"]; raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return errorResponse(headers, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", raw))
		}
		limit = n
	}

	runs, err := h.service.ListRuns(ctx, limit)
	if err != nil {
		status := StatusForError(err)
		h.logFailure("Run listing failed", status, err, zap.Int("limit", limit))
		return errorResponse(headers, status, err.Error())
	}
	return jsonResponse(headers, http.StatusOK, Response{Success: true, Data: RunsResponse{Count: len(runs), Runs: runs}})
}

// Products processes GET requests listing catalog products, optionally
// filtered by ?agency=.
func (h *UnderwriteHandler) Products(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	headers := corsHeaders("GET")
	if resp, ok := preflight(request, headers); ok {
		return resp, nil
	}
	if request.HTTPMethod != http.MethodGet {
		return errorResponse(headers, http.StatusMethodNotAllowed, "method not allowed")
	}

	agencies := models.ValidAgencies()
	if raw := strings.ToLower(strings.TrimSpace(request.QueryStringParameters["agency"])); raw != "" {
		agency := models.Agency(raw)
		if !agency.IsValid() {
			return errorResponse(headers, http.StatusBadRequest, fmt.Sprintf("unknown agency %q", raw))
		}
		agencies = []models.Agency{agency}
	}

	c := h.service.Catalog()
	resp := ProductsResponse{CatalogVersion: c.Version()}
	for _, agency := range agencies {
		resp.Products = append(resp.Products, c.Profiles(agency)...)
	}
	return jsonResponse(headers, http.StatusOK, Response{Success: true, Data: resp})
}

func (h *UnderwriteHandler) logFailure(msg string, status int, err error, fields ...zap.Field) {
	fields = append(fields, zap.Int("status", status), zap.Error(err))
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, fields...)
		return
	}
	h.logger.Info(msg, fields...)
}
