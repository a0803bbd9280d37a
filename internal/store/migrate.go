package store

import (
	"log/slog"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// defaultCategories is the static category set. Slugs are the lookup
// keys used by scrape targets and records; they never change once
// published.
var defaultCategories = []Category{
	{Slug: "cpu", Name: "Processors"},
	{Slug: "gpu", Name: "Graphics Cards"},
	{Slug: "motherboard", Name: "Motherboards"},
	{Slug: "ram", Name: "Memory"},
	{Slug: "storage", Name: "Storage"},
	{Slug: "psu", Name: "Power Supplies"},
	{Slug: "case", Name: "Cases"},
	{Slug: "cooling", Name: "Cooling"},
	{Slug: "monitor", Name: "Monitors"},
	{Slug: "laptop", Name: "Laptops"},
	{Slug: "peripherals", Name: "Peripherals"},
}

// Migrate creates or updates the schema and seeds the category set.
// Safe to run repeatedly.
func Migrate(db *gorm.DB, logger *slog.Logger) error {
	if err := db.AutoMigrate(&Store{}, &Category{}, &Product{}, &Price{}); err != nil {
		return err
	}

	cats := make([]Category, len(defaultCategories))
	copy(cats, defaultCategories)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		DoNothing: true,
	}).Create(&cats).Error
	if err != nil {
		return err
	}

	logger.Info("migrations applied", "categories", len(defaultCategories))
	return nil
}
