// Package handlers exposes the underwriting engine over API Gateway and
// plain net/http.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"underwriting-engine/internal/models"
	"underwriting-engine/internal/services/catalog"
	"underwriting-engine/internal/services/compliance"
	"underwriting-engine/internal/services/projection"
)

// maxBodyBytes bounds request bodies accepted by the net/http adapter.
const maxBodyBytes = 4 << 20

// LambdaFunc is the API Gateway handler signature shared by every endpoint.
type LambdaFunc func(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

// Response is the envelope for every JSON body the API returns.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func corsHeaders(methods string) map[string]string {
	return map[string]string{
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Headers": "Content-Type,Authorization",
		"Access-Control-Allow-Methods": methods + ",OPTIONS",
		"Content-Type":                 "application/json",
	}
}

func jsonResponse(headers map[string]string, statusCode int, resp Response) (events.APIGatewayProxyResponse, error) {
	body, err := json.Marshal(resp)
	if err != nil {
		return errorResponse(headers, http.StatusInternalServerError, "failed to encode response")
	}
	return events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Headers:    headers,
		Body:       string(body),
	}, nil
}

func errorResponse(headers map[string]string, statusCode int, message string) (events.APIGatewayProxyResponse, error) {
	body, _ := json.Marshal(Response{Success: false, Error: message})
	return events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Headers:    headers,
		Body:       string(body),
	}, nil
}

func preflight(request events.APIGatewayProxyRequest, headers map[string]string) (events.APIGatewayProxyResponse, bool) {
	if request.HTTPMethod != http.MethodOptions {
		return events.APIGatewayProxyResponse{}, false
	}
	return events.APIGatewayProxyResponse{StatusCode: http.StatusOK, Headers: headers}, true
}

// StatusForError maps engine errors to HTTP status codes.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, models.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrProfileNotFound),
		errors.Is(err, compliance.ErrUnmappedProduct),
		errors.Is(err, compliance.ErrProfileMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrInvalidInputs),
		errors.Is(err, models.ErrInvalidLTV),
		errors.Is(err, models.ErrInvalidRate),
		errors.Is(err, models.ErrInvalidAmortization),
		errors.Is(err, models.ErrInvalidTerm),
		errors.Is(err, models.ErrInvalidLoanAmount),
		errors.Is(err, models.ErrInvalidProductSelection),
		errors.Is(err, projection.ErrInvalidProjection):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// HTTP adapts an API Gateway handler to net/http so the local server and
// the Lambda functions share one implementation.
func HTTP(fn LambdaFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeAPIGatewayResponse(w, events.APIGatewayProxyResponse{StatusCode: http.StatusRequestEntityTooLarge})
			return
		}

		query := make(map[string]string, len(r.URL.Query()))
		for key, values := range r.URL.Query() {
			if len(values) > 0 {
				query[key] = values[0]
			}
		}
		headers := make(map[string]string, len(r.Header))
		for key := range r.Header {
			headers[strings.ToLower(key)] = r.Header.Get(key)
		}

		resp, err := fn(r.Context(), events.APIGatewayProxyRequest{
			HTTPMethod:            r.Method,
			Path:                  r.URL.Path,
			Headers:               headers,
			QueryStringParameters: query,
			Body:                  string(body),
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeAPIGatewayResponse(w, resp)
	}
}

func writeAPIGatewayResponse(w http.ResponseWriter, resp events.APIGatewayProxyResponse) {
	for key, value := range resp.Headers {
		// CORS is handled by the server middleware.
		if strings.HasPrefix(key, "Access-Control-") {
			continue
		}
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.WriteString(w, resp.Body)
}
