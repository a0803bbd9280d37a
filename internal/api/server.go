package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/voyagerhq/voyager/internal/config"
	"github.com/voyagerhq/voyager/internal/observability"
	"github.com/voyagerhq/voyager/internal/store"
	"github.com/voyagerhq/voyager/internal/types"
)

// ScrapeService is the part of the scraper the API depends on.
type ScrapeService interface {
	ScrapeURL(ctx context.Context, url string) ([]types.ProductRecord, error)
}

// Catalog is the part of the repository the API depends on.
type Catalog interface {
	SaveBatch(ctx context.Context, records []types.ProductRecord, sourceURL, categorySlug string) (int, int, error)
	ListRecent(ctx context.Context, limit int) ([]store.ProductSummary, error)
	Search(ctx context.Context, query string, limit int) ([]store.ProductSummary, error)
	GetProduct(ctx context.Context, id uint) (*store.ProductDetail, error)
	PriceHistory(ctx context.Context, productID uint, limit int) ([]store.Price, error)
	ListStores(ctx context.Context) ([]store.Store, error)
	GetStore(ctx context.Context, id uint) (*store.Store, error)
	Stats(ctx context.Context) (store.Stats, error)
}

// Server exposes the catalog and the scraper over REST.
type Server struct {
	mux     *http.ServeMux
	srv     *http.Server
	port    int
	scraper ScrapeService
	catalog Catalog
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewServer creates the API server and registers its routes.
func NewServer(port int, scraper ScrapeService, catalog Catalog, metrics *observability.Metrics, logger *slog.Logger) *Server {
	s := &Server{
		mux:     http.NewServeMux(),
		port:    port,
		scraper: scraper,
		catalog: catalog,
		metrics: metrics,
		logger:  logger.With("component", "api_server"),
	}
	s.registerRoutes()
	return s
}

// Handler returns the route mux, mainly for tests.
func (s *Server) Handler() http.Handler { return s.mux }

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("API server starting", "addr", addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	s.mux.HandleFunc("POST /api/v1/scrape", s.handleScrape)

	s.mux.HandleFunc("GET /api/v1/products", s.handleListProducts)
	s.mux.HandleFunc("GET /api/v1/products/search", s.handleSearch)
	s.mux.HandleFunc("GET /api/v1/products/{id}", s.handleGetProduct)
	s.mux.HandleFunc("GET /api/v1/products/{id}/history", s.handleHistory)

	s.mux.HandleFunc("GET /api/v1/stores", s.handleListStores)
	s.mux.HandleFunc("GET /api/v1/stores/{id}", s.handleGetStore)

	s.mux.HandleFunc("GET /api/v1/stats", s.handleStats)

	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": config.Version,
	})
}

// handleScrape scrapes one URL synchronously and saves the batch.
// Zero extracted products is a client-visible failure, not a success
// with an empty body.
func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL      string `json:"url"`
		Category string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if err := config.ValidateURL(body.URL); err != nil {
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	records, err := s.scraper.ScrapeURL(r.Context(), body.URL)
	if err != nil {
		s.logger.Warn("scrape request failed", "url", body.URL, "error", err)
		s.jsonResponse(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	if len(records) == 0 {
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": types.ErrNoProducts.Error()})
		return
	}

	created, appended, err := s.catalog.SaveBatch(r.Context(), records, body.URL, body.Category)
	if err != nil {
		s.logger.Error("scrape save failed", "url", body.URL, "error", err)
		s.jsonResponse(w, http.StatusInternalServerError, map[string]string{"error": "failed to save products"})
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"url":      body.URL,
		"products": len(records),
		"created":  created,
		"appended": appended,
	})
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.catalog.ListRecent(r.Context(), queryLimit(r, 50))
	if err != nil {
		s.serverError(w, "list products", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, products)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "missing query parameter q"})
		return
	}
	products, err := s.catalog.Search(r.Context(), query, queryLimit(r, 50))
	if err != nil {
		s.serverError(w, "search products", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, products)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	product, err := s.catalog.GetProduct(r.Context(), id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.jsonResponse(w, http.StatusNotFound, map[string]string{"error": "product not found"})
		return
	}
	if err != nil {
		s.serverError(w, "get product", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, product)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if _, err := s.catalog.GetProduct(r.Context(), id); errors.Is(err, gorm.ErrRecordNotFound) {
		s.jsonResponse(w, http.StatusNotFound, map[string]string{"error": "product not found"})
		return
	} else if err != nil {
		s.serverError(w, "get product", err)
		return
	}

	history, err := s.catalog.PriceHistory(r.Context(), id, queryLimit(r, 100))
	if err != nil {
		s.serverError(w, "price history", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, history)
}

func (s *Server) handleListStores(w http.ResponseWriter, r *http.Request) {
	stores, err := s.catalog.ListStores(r.Context())
	if err != nil {
		s.serverError(w, "list stores", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, stores)
}

func (s *Server) handleGetStore(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	st, err := s.catalog.GetStore(r.Context(), id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.jsonResponse(w, http.StatusNotFound, map[string]string{"error": "store not found"})
		return
	}
	if err != nil {
		s.serverError(w, "get store", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, st)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.catalog.Stats(r.Context())
	if err != nil {
		s.serverError(w, "stats", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, stats)
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil {
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

func queryLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return fallback
	}
	return limit
}

func (s *Server) serverError(w http.ResponseWriter, op string, err error) {
	s.logger.Error(op+" failed", "error", err)
	s.jsonResponse(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
