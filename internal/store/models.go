package store

import (
	"time"

	"github.com/shopspring/decimal"
)

// Store is a source website, identified by its normalized domain. Created
// lazily the first time a product from that domain is saved; never
// deleted.
type Store struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"uniqueIndex;not null"`
	URL       string `gorm:"not null"`
	CreatedAt time.Time
}

func (s *Store) TableName() string { return "stores" }

// Category is a static reference entity resolved by slug. The scraping
// path never creates categories; unknown slugs simply leave products
// uncategorized.
type Category struct {
	ID   uint   `gorm:"primaryKey"`
	Slug string `gorm:"uniqueIndex;not null"`
	Name string `gorm:"not null"`
}

func (c *Category) TableName() string { return "categories" }

// Product is a distinct listing page, identified by (store_id, url).
// Name, image and category may change between scrapes; the URL never
// does. The scraping path never deletes products.
type Product struct {
	ID            uint   `gorm:"primaryKey"`
	StoreID       uint   `gorm:"not null;uniqueIndex:idx_products_store_url"`
	URL           string `gorm:"not null;uniqueIndex:idx_products_store_url"`
	Name          string `gorm:"not null"`
	Image         *string
	CategoryID    *uint
	LastScrapedAt time.Time
	CreatedAt     time.Time
}

func (p *Product) TableName() string { return "products" }

// Price is one immutable observed price. Rows are append-only; the
// current price of a product is the row with the highest scraped_at
// (equivalently the highest id).
type Price struct {
	ID        uint            `gorm:"primaryKey"`
	ProductID uint            `gorm:"not null;index"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Currency  string          `gorm:"size:8;not null"`
	ScrapedAt time.Time       `gorm:"index;not null"`
}

func (p *Price) TableName() string { return "prices" }
