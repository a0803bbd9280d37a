package store

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/voyagerhq/voyager/internal/observability"
	"github.com/voyagerhq/voyager/internal/types"
)

// Repository owns all reads and writes against the price database.
// Writes go through SaveBatch, which is idempotent on product identity
// and append-only on prices.
type Repository struct {
	db              *gorm.DB
	defaultCurrency string
	metrics         *observability.Metrics
	logger          *slog.Logger
}

// NewRepository wires a repository over an open gorm handle.
func NewRepository(db *gorm.DB, defaultCurrency string, metrics *observability.Metrics, logger *slog.Logger) *Repository {
	return &Repository{
		db:              db,
		defaultCurrency: defaultCurrency,
		metrics:         metrics,
		logger:          logger.With("component", "repository"),
	}
}

// NormalizeStoreName derives the canonical store identity from a source
// URL: the lowercased hostname with any leading "www." stripped.
func NormalizeStoreName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", types.ErrInvalidURL
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	if host == "" {
		return "", types.ErrInvalidURL
	}
	return host, nil
}

// ResolveStore finds or creates the store for a source URL. Two
// concurrent saves for the same new domain both succeed: the loser of
// the insert race re-reads the winner's row.
func (r *Repository) ResolveStore(ctx context.Context, sourceURL string) (*Store, error) {
	return r.resolveStore(r.db.WithContext(ctx), sourceURL)
}

func (r *Repository) resolveStore(tx *gorm.DB, sourceURL string) (*Store, error) {
	name, err := NormalizeStoreName(sourceURL)
	if err != nil {
		return nil, err
	}

	var st Store
	err = tx.Where("name = ?", name).First(&st).Error
	if err == nil {
		return &st, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	st = Store{Name: name, URL: sourceURL}
	if err := tx.Create(&st).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			err = tx.Where("name = ?", name).First(&st).Error
		}
		if err != nil {
			return nil, err
		}
	}
	r.logger.Info("store registered", "store", name)
	return &st, nil
}

// ResolveCategory maps a slug to a category id. Unknown slugs resolve
// to nil rather than an error; the scraping path never creates
// categories.
func (r *Repository) ResolveCategory(ctx context.Context, slug string) (*uint, error) {
	return r.resolveCategory(r.db.WithContext(ctx), slug)
}

func (r *Repository) resolveCategory(tx *gorm.DB, slug string) (*uint, error) {
	if slug == "" {
		return nil, nil
	}
	var cat Category
	err := tx.Where("slug = ?", strings.ToLower(slug)).First(&cat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cat.ID, nil
}

// UpsertProduct finds the product identified by (storeID, url) or
// creates it, then refreshes its mutable fields. It reports whether a
// new product was created. Name is fixed at creation; later scrapes
// only touch image, category, and the scrape timestamp.
func (r *Repository) UpsertProduct(ctx context.Context, storeID uint, rec *types.ProductRecord, categoryID *uint, scrapedAt time.Time) (*Product, bool, error) {
	return r.upsertProduct(r.db.WithContext(ctx), storeID, rec, categoryID, scrapedAt)
}

func (r *Repository) upsertProduct(tx *gorm.DB, storeID uint, rec *types.ProductRecord, categoryID *uint, scrapedAt time.Time) (*Product, bool, error) {
	var product Product
	err := tx.Where("store_id = ? AND url = ?", storeID, rec.URL).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		product = Product{
			StoreID:       storeID,
			URL:           rec.URL,
			Name:          rec.Name,
			CategoryID:    categoryID,
			LastScrapedAt: scrapedAt,
		}
		if rec.Image != "" {
			product.Image = &rec.Image
		}
		if err := tx.Create(&product).Error; err != nil {
			return nil, false, err
		}
		return &product, true, nil
	}
	if err != nil {
		return nil, false, err
	}

	updates := map[string]any{"last_scraped_at": scrapedAt}
	if rec.Image != "" {
		updates["image"] = rec.Image
	}
	if categoryID != nil {
		updates["category_id"] = *categoryID
	}
	if err := tx.Model(&product).Updates(updates).Error; err != nil {
		return nil, false, err
	}
	return &product, false, nil
}

// AppendPrice records one immutable price observation for a product.
func (r *Repository) AppendPrice(ctx context.Context, productID uint, price decimal.Decimal, currency string, scrapedAt time.Time) error {
	return r.appendPrice(r.db.WithContext(ctx), productID, price, currency, scrapedAt)
}

func (r *Repository) appendPrice(tx *gorm.DB, productID uint, price decimal.Decimal, currency string, scrapedAt time.Time) error {
	if currency == "" {
		currency = r.defaultCurrency
	}
	return tx.Create(&Price{
		ProductID: productID,
		Price:     price,
		Currency:  currency,
		ScrapedAt: scrapedAt,
	}).Error
}

// SaveBatch persists one scrape's records in a single transaction and
// returns how many products were created and how many price rows were
// appended. Records that fail validation are skipped with a warning;
// any infrastructure error rolls back the whole batch. A record's own
// category slug takes precedence over the batch-level one, even when
// it resolves to no known category.
func (r *Repository) SaveBatch(ctx context.Context, records []types.ProductRecord, sourceURL, categorySlug string) (int, int, error) {
	if len(records) == 0 {
		return 0, 0, nil
	}

	var created, appended, skipped int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st, err := r.resolveStore(tx, sourceURL)
		if err != nil {
			return err
		}
		batchCategoryID, err := r.resolveCategory(tx, categorySlug)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		for i := range records {
			rec := records[i]
			if verr := validateRecord(&rec); verr != nil {
				r.logger.Warn("skipping invalid record",
					"source", sourceURL,
					"name", rec.Name,
					"error", verr,
				)
				skipped++
				continue
			}
			if rec.URL == "" {
				rec.URL = sourceURL
			}

			// A record's own slug wins outright: even an unknown slug
			// leaves the product uncategorized rather than falling back
			// to the batch category.
			categoryID := batchCategoryID
			if rec.Category != "" {
				categoryID, err = r.resolveCategory(tx, rec.Category)
				if err != nil {
					return err
				}
			}

			product, isNew, err := r.upsertProduct(tx, st.ID, &rec, categoryID, now)
			if err != nil {
				return err
			}
			if isNew {
				created++
			}

			if err := r.appendPrice(tx, product.ID, rec.Price, rec.Currency, now); err != nil {
				return err
			}
			appended++
		}
		return nil
	})
	if err != nil {
		if r.metrics != nil {
			r.metrics.BatchesFailed.Add(1)
		}
		return 0, 0, err
	}

	if r.metrics != nil {
		r.metrics.BatchesSaved.Add(1)
		r.metrics.ProductsCreated.Add(int64(created))
		r.metrics.PricesAppended.Add(int64(appended))
	}
	r.logger.Info("batch saved",
		"source", sourceURL,
		"created", created,
		"appended", appended,
		"skipped", skipped,
	)
	return created, appended, nil
}

func validateRecord(rec *types.ProductRecord) error {
	if strings.TrimSpace(rec.Name) == "" {
		return &types.ValidationError{Field: "name", Reason: "is empty"}
	}
	if !rec.Price.IsPositive() {
		return &types.ValidationError{Field: "price", Reason: "is not positive"}
	}
	return nil
}

// ProductSummary is one row of a product listing with its latest
// observed price. Price fields are nil for products with no price rows
// yet.
type ProductSummary struct {
	ID        uint             `json:"id"`
	Name      string           `json:"name"`
	URL       string           `json:"url"`
	Store     string           `json:"store"`
	Category  string           `json:"category,omitempty"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	Currency  string           `json:"currency,omitempty"`
	ScrapedAt *time.Time       `json:"scraped_at,omitempty"`
}

type summaryRow struct {
	ID        uint
	Name      string
	URL       string
	Store     string
	Category  sql.NullString
	Price     decimal.NullDecimal
	Currency  sql.NullString
	ScrapedAt sql.NullTime
}

func (row *summaryRow) toSummary() ProductSummary {
	s := ProductSummary{
		ID:       row.ID,
		Name:     row.Name,
		URL:      row.URL,
		Store:    row.Store,
		Category: row.Category.String,
		Currency: row.Currency.String,
	}
	if row.Price.Valid {
		p := row.Price.Decimal
		s.Price = &p
	}
	if row.ScrapedAt.Valid {
		t := row.ScrapedAt.Time
		s.ScrapedAt = &t
	}
	return s
}

const summarySelect = `
SELECT p.id, p.name, p.url,
       s.name AS store, c.name AS category,
       pr.price, pr.currency, pr.scraped_at
FROM products p
JOIN stores s ON s.id = p.store_id
LEFT JOIN categories c ON c.id = p.category_id
LEFT JOIN prices pr ON pr.id = (
    SELECT MAX(id) FROM prices WHERE product_id = p.id
)`

// ListRecent returns the most recently scraped products, newest first,
// each with its latest price.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]ProductSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []summaryRow
	err := r.db.WithContext(ctx).
		Raw(summarySelect+" ORDER BY p.last_scraped_at DESC, p.id DESC LIMIT ?", limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return toSummaries(rows), nil
}

// Search returns products whose name matches the query,
// case-insensitively, each with its latest price.
func (r *Repository) Search(ctx context.Context, query string, limit int) ([]ProductSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []summaryRow
	err := r.db.WithContext(ctx).
		Raw(summarySelect+" WHERE LOWER(p.name) LIKE LOWER(?) ORDER BY p.last_scraped_at DESC, p.id DESC LIMIT ?",
			"%"+query+"%", limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return toSummaries(rows), nil
}

func toSummaries(rows []summaryRow) []ProductSummary {
	out := make([]ProductSummary, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toSummary())
	}
	return out
}

// ProductDetail is the full view of one product.
type ProductDetail struct {
	ID            uint             `json:"id"`
	Name          string           `json:"name"`
	URL           string           `json:"url"`
	Image         *string          `json:"image,omitempty"`
	Store         string           `json:"store"`
	Category      string           `json:"category,omitempty"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	Currency      string           `json:"currency,omitempty"`
	LastScrapedAt time.Time        `json:"last_scraped_at"`
	CreatedAt     time.Time        `json:"created_at"`
}

// GetProduct returns one product with its store, category, and latest
// price. Returns gorm.ErrRecordNotFound when the id is unknown.
func (r *Repository) GetProduct(ctx context.Context, id uint) (*ProductDetail, error) {
	tx := r.db.WithContext(ctx)

	var product Product
	if err := tx.First(&product, id).Error; err != nil {
		return nil, err
	}

	detail := &ProductDetail{
		ID:            product.ID,
		Name:          product.Name,
		URL:           product.URL,
		Image:         product.Image,
		LastScrapedAt: product.LastScrapedAt,
		CreatedAt:     product.CreatedAt,
	}

	var st Store
	if err := tx.First(&st, product.StoreID).Error; err != nil {
		return nil, err
	}
	detail.Store = st.Name

	if product.CategoryID != nil {
		var cat Category
		if err := tx.First(&cat, *product.CategoryID).Error; err == nil {
			detail.Category = cat.Name
		}
	}

	latest, err := r.LatestPrice(ctx, product.ID)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		detail.Price = &latest.Price
		detail.Currency = latest.Currency
	}
	return detail, nil
}

// PriceHistory returns a product's price rows, newest first.
func (r *Repository) PriceHistory(ctx context.Context, productID uint, limit int) ([]Price, error) {
	if limit <= 0 {
		limit = 100
	}
	var prices []Price
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("scraped_at DESC, id DESC").
		Limit(limit).
		Find(&prices).Error
	return prices, err
}

// LatestPrice returns a product's most recent price row, or nil when
// the product has no prices yet.
func (r *Repository) LatestPrice(ctx context.Context, productID uint) (*Price, error) {
	var price Price
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("id DESC").
		First(&price).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &price, nil
}

// ListStores returns all stores ordered by name.
func (r *Repository) ListStores(ctx context.Context) ([]Store, error) {
	var stores []Store
	err := r.db.WithContext(ctx).Order("name").Find(&stores).Error
	return stores, err
}

// GetStore returns one store by id. Returns gorm.ErrRecordNotFound
// when the id is unknown.
func (r *Repository) GetStore(ctx context.Context, id uint) (*Store, error) {
	var st Store
	if err := r.db.WithContext(ctx).First(&st, id).Error; err != nil {
		return nil, err
	}
	return &st, nil
}

// Stats holds row counts for the whole database.
type Stats struct {
	Stores   int64 `json:"stores"`
	Products int64 `json:"products"`
	Prices   int64 `json:"prices"`
}

// Stats counts stores, products, and price rows.
func (r *Repository) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	tx := r.db.WithContext(ctx)
	if err := tx.Model(&Store{}).Count(&s.Stores).Error; err != nil {
		return s, err
	}
	if err := tx.Model(&Product{}).Count(&s.Products).Error; err != nil {
		return s, err
	}
	if err := tx.Model(&Price{}).Count(&s.Prices).Error; err != nil {
		return s, err
	}
	return s, nil
}
