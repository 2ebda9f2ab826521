package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shoplens-ai/shoplens/engine/domain"
	"github.com/shoplens-ai/shoplens/engine/geo"
	"github.com/shoplens-ai/shoplens/pkg/metrics"
)

const maxQueryBody = 1 << 20

// querier runs the product query pipeline.
type querier interface {
	Query(ctx context.Context, req domain.QueryRequest) (*domain.QueryResult, error)
}

// vendorRanker runs the nearby vendor search.
type vendorRanker interface {
	Rank(ctx context.Context, q domain.VendorQuery) ([]domain.VendorRecord, error)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// queryRequest is the JSON body for POST /api/query.
type queryRequest struct {
	Query     string            `json:"query"`
	SourceURL string            `json:"source_url,omitempty"`
	ExtraData map[string]string `json:"extra_data,omitempty"`
}

// queryResponse is the JSON response for POST /api/query.
type queryResponse struct {
	Answer   string                 `json:"answer"`
	Metadata []domain.ProductRecord `json:"metadata"`
	Outcome  domain.Outcome         `json:"outcome"`
}

func handleQuery(svc querier, reg *metrics.Registry, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req queryRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQueryBody)).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}

		result, err := svc.Query(r.Context(), domain.QueryRequest{
			Query:     req.Query,
			SourceURL: req.SourceURL,
			ExtraData: req.ExtraData,
		})
		if err != nil {
			status, msg := queryErrorStatus(err)
			if status >= http.StatusInternalServerError {
				logger.Error("query failed", "err", err)
			}
			writeJSON(w, status, errorResponse{Error: msg})
			return
		}

		reg.Counter(
			metrics.WithLabels("queries_total", "outcome", string(result.Outcome)),
			"queries by pipeline outcome",
		).Inc()

		metadata := result.Records
		if metadata == nil {
			metadata = []domain.ProductRecord{}
		}
		writeJSON(w, http.StatusOK, queryResponse{
			Answer:   result.Answer,
			Metadata: metadata,
			Outcome:  result.Outcome,
		})
	}
}

// queryErrorStatus maps pipeline errors to HTTP status and a stable error
// code. Synthesis failure is retryable, enrichment partial failure is not.
func queryErrorStatus(err error) (int, string) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Error()
	case errors.Is(err, domain.ErrSynthesisUnavailable):
		return http.StatusServiceUnavailable, "synthesis_unavailable"
	case errors.Is(err, domain.ErrPartialEnrichment):
		return http.StatusInternalServerError, "partial_enrichment_failure"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// vendorsResponse is the JSON response for GET /api/vendors.
type vendorsResponse struct {
	Vendors []domain.VendorRecord `json:"vendors"`
	Count   int                   `json:"count"`
}

func handleVendors(ranker vendorRanker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := r.URL.Query()
		q, err := domain.ParseVendorQuery(
			params.Get("lat"),
			params.Get("lon"),
			params.Get("radius"),
			params.Get("query"),
		)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}

		vendors, err := ranker.Rank(r.Context(), q)
		if err != nil {
			var upstream *geo.UpstreamError
			if errors.As(err, &upstream) {
				logger.Warn("overpass upstream error", "status", upstream.StatusCode)
				writeJSON(w, upstream.StatusCode, errorResponse{Error: "overpass upstream error"})
				return
			}
			logger.Error("vendor search failed", "err", err)
			writeJSON(w, http.StatusBadGateway, errorResponse{Error: "vendor search failed"})
			return
		}

		if vendors == nil {
			vendors = []domain.VendorRecord{}
		}
		writeJSON(w, http.StatusOK, vendorsResponse{Vendors: vendors, Count: len(vendors)})
	}
}
