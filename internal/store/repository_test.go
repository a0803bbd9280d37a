package store

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/voyagerhq/voyager/internal/types"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	logger := slog.New(slog.DiscardHandler)
	require.NoError(t, Migrate(db, logger))

	return NewRepository(db, "MKD", nil, logger)
}

func mkd(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestNormalizeStoreName(t *testing.T) {
	tests := []struct {
		rawURL  string
		want    string
		wantErr bool
	}{
		{"https://www.neptun.mk/kategorii/laptopi", "neptun.mk", false},
		{"https://Example.com/products", "example.com", false},
		{"http://shop.test:8080/page", "shop.test", false},
		{"https://WWW.ANHOCH.COM/", "anhoch.com", false},
		{"not a url at all\x7f", "", true},
		{"/relative/path", "", true},
	}

	for _, tt := range tests {
		got, err := NormalizeStoreName(tt.rawURL)
		if tt.wantErr {
			assert.Error(t, err, tt.rawURL)
			continue
		}
		require.NoError(t, err, tt.rawURL)
		assert.Equal(t, tt.want, got, tt.rawURL)
	}
}

func TestResolveStoreReusesExisting(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first, err := repo.ResolveStore(ctx, "https://www.example.com/page-1")
	require.NoError(t, err)

	second, err := repo.ResolveStore(ctx, "https://example.com/page-2")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "example.com", second.Name)

	stores, err := repo.ListStores(ctx)
	require.NoError(t, err)
	assert.Len(t, stores, 1)
}

func TestResolveCategoryUnknownIsNil(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	id, err := repo.ResolveCategory(ctx, "gpu")
	require.NoError(t, err)
	require.NotNil(t, id)

	id, err = repo.ResolveCategory(ctx, "definitely-not-a-category")
	require.NoError(t, err)
	assert.Nil(t, id)
}

func TestSaveBatchCreatesProductsAndPrices(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	records := []types.ProductRecord{
		{Name: "Widget A", Price: mkd("1299"), URL: "https://shop.test/widget-a", Currency: "MKD"},
		{Name: "Widget B", Price: mkd("899"), URL: "https://shop.test/widget-b", Currency: "MKD"},
	}

	created, appended, err := repo.SaveBatch(ctx, records, "https://shop.test/catalog", "")
	require.NoError(t, err)
	assert.Equal(t, 2, created)
	assert.Equal(t, 2, appended)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Stores)
	assert.Equal(t, int64(2), stats.Products)
	assert.Equal(t, int64(2), stats.Prices)

	stores, err := repo.ListStores(ctx)
	require.NoError(t, err)
	require.Len(t, stores, 1)
	assert.Equal(t, "shop.test", stores[0].Name)
}

func TestSaveBatchIsIdempotentOnProducts(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	records := []types.ProductRecord{
		{Name: "Widget A", Price: mkd("1299"), URL: "https://shop.test/widget-a"},
	}

	created, appended, err := repo.SaveBatch(ctx, records, "https://shop.test/catalog", "")
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, appended)

	records[0].Price = mkd("1199")
	created, appended, err = repo.SaveBatch(ctx, records, "https://shop.test/catalog", "")
	require.NoError(t, err)
	assert.Equal(t, 0, created, "re-scrape must not create a second product")
	assert.Equal(t, 1, appended)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Products)
	assert.Equal(t, int64(2), stats.Prices)
}

func TestPriceHistoryNewestFirst(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rec := []types.ProductRecord{{Name: "Widget", Price: mkd("100"), URL: "https://shop.test/w"}}
	for _, p := range []string{"100", "90", "110"} {
		rec[0].Price = mkd(p)
		_, _, err := repo.SaveBatch(ctx, rec, "https://shop.test/catalog", "")
		require.NoError(t, err)
	}

	products, err := repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, products, 1)

	history, err := repo.PriceHistory(ctx, products[0].ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.True(t, history[0].Price.Equal(mkd("110")))
	assert.True(t, history[1].Price.Equal(mkd("90")))
	assert.True(t, history[2].Price.Equal(mkd("100")))

	latest, err := repo.LatestPrice(ctx, products[0].ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, latest.Price.Equal(mkd("110")))
}

func TestSaveBatchCategoryPrecedence(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	records := []types.ProductRecord{
		{Name: "Ryzen 7", Price: mkd("18999"), URL: "https://shop.test/ryzen", Category: "cpu"},
		{Name: "Some Box", Price: mkd("2999"), URL: "https://shop.test/box"},
		{Name: "Mystery Item", Price: mkd("999"), URL: "https://shop.test/mystery", Category: "not-a-slug"},
	}

	_, _, err := repo.SaveBatch(ctx, records, "https://shop.test/catalog", "case")
	require.NoError(t, err)

	cpuID, err := repo.ResolveCategory(ctx, "cpu")
	require.NoError(t, err)
	caseID, err := repo.ResolveCategory(ctx, "case")
	require.NoError(t, err)

	var ryzen, box, mystery Product
	require.NoError(t, repo.db.Where("url = ?", "https://shop.test/ryzen").First(&ryzen).Error)
	require.NoError(t, repo.db.Where("url = ?", "https://shop.test/box").First(&box).Error)
	require.NoError(t, repo.db.Where("url = ?", "https://shop.test/mystery").First(&mystery).Error)

	require.NotNil(t, ryzen.CategoryID)
	assert.Equal(t, *cpuID, *ryzen.CategoryID, "record category overrides batch category")
	require.NotNil(t, box.CategoryID)
	assert.Equal(t, *caseID, *box.CategoryID, "batch category applies when record has none")
	assert.Nil(t, mystery.CategoryID,
		"an unknown record slug wins over the batch category and leaves the product uncategorized")
}

func TestSaveBatchRollsBackOnInfrastructureError(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// Losing the prices table makes the final insert of every record
	// fail the way a dropped connection would.
	require.NoError(t, repo.db.Migrator().DropTable(&Price{}))

	records := []types.ProductRecord{
		{Name: "Widget A", Price: mkd("100"), URL: "https://shop.test/a"},
		{Name: "Widget B", Price: mkd("200"), URL: "https://shop.test/b"},
	}
	created, appended, err := repo.SaveBatch(ctx, records, "https://shop.test/catalog", "")
	require.Error(t, err)
	assert.Zero(t, created)
	assert.Zero(t, appended)

	var stores, products int64
	require.NoError(t, repo.db.Model(&Store{}).Count(&stores).Error)
	require.NoError(t, repo.db.Model(&Product{}).Count(&products).Error)
	assert.Zero(t, stores, "store insert must roll back with the failed batch")
	assert.Zero(t, products, "product inserts must roll back with the failed batch")
}

func TestSaveBatchRefreshesLastScrapedAt(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rec := []types.ProductRecord{{Name: "Widget", Price: mkd("100"), URL: "https://shop.test/w"}}
	_, _, err := repo.SaveBatch(ctx, rec, "https://shop.test/catalog", "")
	require.NoError(t, err)

	var first Product
	require.NoError(t, repo.db.First(&first).Error)

	time.Sleep(25 * time.Millisecond)
	_, _, err = repo.SaveBatch(ctx, rec, "https://shop.test/catalog", "")
	require.NoError(t, err)

	var second Product
	require.NoError(t, repo.db.First(&second).Error)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.LastScrapedAt.After(first.LastScrapedAt),
		"re-scrape must refresh last_scraped_at to the later scrape")
}

func TestSaveBatchSkipsInvalidRecords(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	records := []types.ProductRecord{
		{Name: "Good One", Price: mkd("500"), URL: "https://shop.test/good-1"},
		{Name: "", Price: mkd("500"), URL: "https://shop.test/nameless"},
		{Name: "Free Lunch", Price: decimal.Zero, URL: "https://shop.test/free"},
		{Name: "Good Two", Price: mkd("750"), URL: "https://shop.test/good-2"},
	}

	created, appended, err := repo.SaveBatch(ctx, records, "https://shop.test/catalog", "")
	require.NoError(t, err)
	assert.Equal(t, 2, created)
	assert.Equal(t, 2, appended)
}

func TestSaveBatchDefaultsURLAndCurrency(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	records := []types.ProductRecord{
		{Name: "Linkless Widget", Price: mkd("42")},
	}

	created, appended, err := repo.SaveBatch(ctx, records, "https://shop.test/catalog", "")
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, appended)

	var product Product
	require.NoError(t, repo.db.First(&product).Error)
	assert.Equal(t, "https://shop.test/catalog", product.URL)

	latest, err := repo.LatestPrice(ctx, product.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "MKD", latest.Currency)
}

func TestSaveBatchEmptyIsNoop(t *testing.T) {
	repo := newTestRepo(t)

	created, appended, err := repo.SaveBatch(context.Background(), nil, "https://shop.test/catalog", "")
	require.NoError(t, err)
	assert.Zero(t, created)
	assert.Zero(t, appended)

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Stores, "empty batch must not register a store")
}

func TestSearchMatchesCaseInsensitively(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	records := []types.ProductRecord{
		{Name: "Lenovo ThinkPad X1", Price: mkd("89999"), URL: "https://shop.test/x1"},
		{Name: "Dell XPS 13", Price: mkd("74999"), URL: "https://shop.test/xps"},
	}
	_, _, err := repo.SaveBatch(ctx, records, "https://shop.test/laptops", "laptop")
	require.NoError(t, err)

	results, err := repo.Search(ctx, "thinkpad", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Lenovo ThinkPad X1", results[0].Name)
	require.NotNil(t, results[0].Price)
	assert.True(t, results[0].Price.Equal(mkd("89999")))
	assert.Equal(t, "Laptops", results[0].Category)

	results, err = repo.Search(ctx, "no such product", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestListRecentReportsLatestPrice(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rec := []types.ProductRecord{{Name: "Widget", Price: mkd("100"), URL: "https://shop.test/w"}}
	_, _, err := repo.SaveBatch(ctx, rec, "https://shop.test/catalog", "")
	require.NoError(t, err)

	rec[0].Price = mkd("80")
	_, _, err = repo.SaveBatch(ctx, rec, "https://shop.test/catalog", "")
	require.NoError(t, err)

	products, err := repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.NotNil(t, products[0].Price)
	assert.True(t, products[0].Price.Equal(mkd("80")))
	assert.Equal(t, "shop.test", products[0].Store)
}

func TestGetProductDetail(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	records := []types.ProductRecord{
		{
			Name:     "Ryzen 7 7800X3D",
			Price:    mkd("24999"),
			URL:      "https://shop.test/ryzen",
			Image:    "https://shop.test/img/ryzen.jpg",
			Category: "cpu",
		},
	}
	_, _, err := repo.SaveBatch(ctx, records, "https://shop.test/cpus", "")
	require.NoError(t, err)

	products, err := repo.ListRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, products, 1)

	detail, err := repo.GetProduct(ctx, products[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Ryzen 7 7800X3D", detail.Name)
	assert.Equal(t, "shop.test", detail.Store)
	assert.Equal(t, "Processors", detail.Category)
	require.NotNil(t, detail.Image)
	assert.Equal(t, "https://shop.test/img/ryzen.jpg", *detail.Image)
	require.NotNil(t, detail.Price)
	assert.True(t, detail.Price.Equal(mkd("24999")))

	_, err = repo.GetProduct(ctx, 99999)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUpsertKeepsNameUpdatesImage(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rec := []types.ProductRecord{{
		Name:  "Original Name",
		Price: mkd("100"),
		URL:   "https://shop.test/w",
	}}
	_, _, err := repo.SaveBatch(ctx, rec, "https://shop.test/catalog", "")
	require.NoError(t, err)

	rec[0].Name = "Renamed Listing"
	rec[0].Image = "https://shop.test/img/w.jpg"
	_, _, err = repo.SaveBatch(ctx, rec, "https://shop.test/catalog", "")
	require.NoError(t, err)

	var product Product
	require.NoError(t, repo.db.First(&product).Error)
	assert.Equal(t, "Original Name", product.Name, "name is fixed at creation")
	require.NotNil(t, product.Image)
	assert.Equal(t, "https://shop.test/img/w.jpg", *product.Image)
}
