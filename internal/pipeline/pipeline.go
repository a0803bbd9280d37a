package pipeline

import (
	"log/slog"
	"strings"

	"github.com/voyagerhq/voyager/internal/types"
)

// Middleware processes a record and returns the (possibly modified)
// record. Return nil to drop the record from the pipeline.
type Middleware interface {
	// Name returns the middleware's identifier.
	Name() string

	// Process transforms a record. Return nil to drop the record.
	Process(rec *types.ProductRecord) (*types.ProductRecord, error)
}

// Pipeline chains record middleware together. Every scraped record runs
// through the chain before it reaches the caller.
type Pipeline struct {
	middlewares []Middleware
	logger      *slog.Logger
}

// New creates a new Pipeline.
func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With("component", "pipeline"),
	}
}

// Use adds a middleware to the pipeline chain.
func (p *Pipeline) Use(mw Middleware) {
	p.middlewares = append(p.middlewares, mw)
	p.logger.Debug("middleware added", "name", mw.Name(), "position", len(p.middlewares))
}

// Process runs the record through all middleware in order. A nil result
// with nil error means the record was dropped.
func (p *Pipeline) Process(rec *types.ProductRecord) (*types.ProductRecord, error) {
	current := rec

	for _, mw := range p.middlewares {
		result, err := mw.Process(current)
		if err != nil {
			return nil, err
		}
		if result == nil {
			p.logger.Debug("record dropped", "stage", mw.Name(), "url", rec.URL)
			return nil, nil
		}
		current = result
	}

	return current, nil
}

// ProcessAll runs a batch of records through the chain, keeping survivors
// in order. Middleware errors drop the record, never the batch.
func (p *Pipeline) ProcessAll(recs []types.ProductRecord) []types.ProductRecord {
	out := make([]types.ProductRecord, 0, len(recs))
	for i := range recs {
		rec, err := p.Process(&recs[i])
		if err != nil {
			p.logger.Warn("record rejected", "url", recs[i].URL, "error", err)
			continue
		}
		if rec != nil {
			out = append(out, *rec)
		}
	}
	return out
}

// Len returns the number of middleware in the chain.
func (p *Pipeline) Len() int {
	return len(p.middlewares)
}

// --- Built-in Middleware ---

// TrimMiddleware trims whitespace from all string fields.
type TrimMiddleware struct{}

func (m *TrimMiddleware) Name() string { return "trim" }

func (m *TrimMiddleware) Process(rec *types.ProductRecord) (*types.ProductRecord, error) {
	rec.Name = strings.TrimSpace(rec.Name)
	rec.URL = strings.TrimSpace(rec.URL)
	rec.Image = strings.TrimSpace(rec.Image)
	rec.Category = strings.TrimSpace(rec.Category)
	rec.Currency = strings.TrimSpace(rec.Currency)
	return rec, nil
}

// RequiredFieldsMiddleware drops records that fail the extraction
// contract (empty name or non-positive price).
type RequiredFieldsMiddleware struct{}

func (m *RequiredFieldsMiddleware) Name() string { return "required_fields" }

func (m *RequiredFieldsMiddleware) Process(rec *types.ProductRecord) (*types.ProductRecord, error) {
	if !rec.Valid() {
		return nil, nil // Drop record
	}
	return rec, nil
}

// DedupMiddleware drops records whose URL was already seen in this batch.
type DedupMiddleware struct {
	seen map[string]struct{}
}

func NewDedupMiddleware() *DedupMiddleware {
	return &DedupMiddleware{seen: make(map[string]struct{})}
}

func (m *DedupMiddleware) Name() string { return "dedup" }

func (m *DedupMiddleware) Process(rec *types.ProductRecord) (*types.ProductRecord, error) {
	key := rec.URL
	if key == "" {
		key = rec.Name
	}
	if _, exists := m.seen[key]; exists {
		return nil, nil // Drop duplicate
	}
	m.seen[key] = struct{}{}
	return rec, nil
}

// DefaultCurrencyMiddleware fills in the configured currency code for
// records whose scraper did not set one.
type DefaultCurrencyMiddleware struct {
	Code string
}

func (m *DefaultCurrencyMiddleware) Name() string { return "default_currency" }

func (m *DefaultCurrencyMiddleware) Process(rec *types.ProductRecord) (*types.ProductRecord, error) {
	if rec.Currency == "" {
		rec.Currency = m.Code
	}
	return rec, nil
}
