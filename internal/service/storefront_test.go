package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/pizzashop/internal/catalog"
	"github.com/utafrali/pizzashop/internal/domain"
	"github.com/utafrali/pizzashop/internal/event"
	"github.com/utafrali/pizzashop/internal/repository/memory"
	"github.com/utafrali/pizzashop/internal/view"
	apperrors "github.com/utafrali/pizzashop/pkg/errors"
	pkgkafka "github.com/utafrali/pizzashop/pkg/kafka"
	"github.com/utafrali/pizzashop/pkg/logger"
)

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testOptions() Options {
	return Options{
		Categories: []domain.Category{
			{ID: "all", Name: "All"},
			{ID: "meat", Name: "Meat"},
			{ID: "veg", Name: "Vegetarian"},
		},
		SortKeys:         []domain.SortKey{domain.SortPopularity, domain.SortPrice, domain.SortAlphabet},
		DefaultFilter:    domain.FilterState{Category: "all", SortBy: domain.SortPopularity},
		PlaceholderCount: 4,
		FetchTimeout:     time.Second,
	}
}

func pizza(id, name, category string, rating int, price int64) domain.Product {
	return domain.Product{
		ID:       id,
		Name:     name,
		Category: category,
		Rating:   rating,
		Types:    []string{"thin", "traditional"},
		Sizes:    []int{26, 30},
		Prices: []domain.Price{
			{Type: "thin", Size: 26, Amount: price},
			{Type: "thin", Size: 30, Amount: price + 200},
			{Type: "traditional", Size: 26, Amount: price + 100},
		},
	}
}

func testMenu() []domain.Product {
	return []domain.Product{
		pizza("1", "Pepperoni", "meat", 4, 800),
		pizza("2", "Margherita", "veg", 9, 500),
		pizza("3", "Four Cheese", "veg", 6, 700),
	}
}

// countingFetcher serves testMenu filtered by category and counts calls.
type countingFetcher struct {
	calls atomic.Int32
	inner catalog.Fetcher
}

func newCountingFetcher() *countingFetcher {
	return &countingFetcher{inner: catalog.NewMemory(testMenu(), "all")}
}

func (f *countingFetcher) Fetch(ctx context.Context, category string, sortBy domain.SortKey) ([]domain.Product, error) {
	f.calls.Add(1)
	return f.inner.Fetch(ctx, category, sortBy)
}

type fetchResult struct {
	products []domain.Product
	err      error
}

type fetchCall struct {
	category string
	reply    chan fetchResult
}

// gatedFetcher blocks every fetch until the test replies to it. It ignores
// cancellation so that stale completions can be delivered.
type gatedFetcher struct {
	calls chan fetchCall
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{calls: make(chan fetchCall, 16)}
}

func (g *gatedFetcher) Fetch(_ context.Context, category string, _ domain.SortKey) ([]domain.Product, error) {
	c := fetchCall{category: category, reply: make(chan fetchResult, 1)}
	g.calls <- c
	r := <-c.reply
	return r.products, r.err
}

func (g *gatedFetcher) next(t *testing.T) fetchCall {
	t.Helper()
	select {
	case c := <-g.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a catalog fetch")
		return fetchCall{}
	}
}

func newTestService(t *testing.T, fetcher catalog.Fetcher) (*StorefrontService, *memory.SessionRepository) {
	t.Helper()
	repo := memory.NewSessionRepository(time.Hour)
	producer := event.NewProducer(event.NopPublisher{}, newTestLogger())
	svc := NewStorefrontService(fetcher, repo, producer, newTestLogger(), testOptions())
	t.Cleanup(svc.Close)
	return svc, repo
}

func waitLoaded(t *testing.T, svc *StorefrontService, sessionID string) {
	t.Helper()
	sess, err := svc.Session(context.Background(), sessionID)
	require.NoError(t, err)
	require.Eventually(t, sess.Catalog.IsLoaded, 2*time.Second, 5*time.Millisecond)
}

// --- Session Tests ---

func TestSession_RequiresID(t *testing.T) {
	svc, _ := newTestService(t, newCountingFetcher())

	_, err := svc.Session(context.Background(), "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestSession_ReusedAcrossCalls(t *testing.T) {
	fetcher := newCountingFetcher()
	svc, _ := newTestService(t, fetcher)
	ctx := context.Background()

	a, err := svc.Session(ctx, "s1")
	require.NoError(t, err)
	b, err := svc.Session(ctx, "s1")
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, 1, svc.Len())
	require.Eventually(t, a.Catalog.IsLoaded, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestSession_RestoredFromRepository(t *testing.T) {
	svc, repo := newTestService(t, newCountingFetcher())
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &domain.SessionSnapshot{
		ID:     "s1",
		Filter: domain.FilterState{Category: "veg", SortBy: domain.SortPrice},
		Cart: []domain.CartEntry{{
			ProductID: "2",
			Lines:     []domain.CartLineSelection{{Type: "thin", Size: 26, Quantity: 3, UnitPrice: 500}},
		}},
	}))

	sess, err := svc.Session(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.FilterState{Category: "veg", SortBy: domain.SortPrice}, sess.Filter.State())
	assert.Equal(t, 3, sess.Cart.Count("2"))
}

func TestSession_RestoreIgnoresUnknownFilterValues(t *testing.T) {
	svc, repo := newTestService(t, newCountingFetcher())
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &domain.SessionSnapshot{
		ID:     "s1",
		Filter: domain.FilterState{Category: "dessert", SortBy: "rating"},
	}))

	sess, err := svc.Session(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, testOptions().DefaultFilter, sess.Filter.State())
}

// --- Catalog View Tests ---

func TestCatalogView_PlaceholdersUntilLoaded(t *testing.T) {
	fetcher := newGatedFetcher()
	svc, _ := newTestService(t, fetcher)
	ctx := context.Background()

	v, err := svc.CatalogView(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "loading", v.State)
	assert.Equal(t, 4, v.Placeholders)
	assert.Empty(t, v.Items)

	call := fetcher.next(t)
	assert.Equal(t, "all", call.category)
	call.reply <- fetchResult{products: testMenu()}
	waitLoaded(t, svc, "s1")

	v, err = svc.CatalogView(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "loaded", v.State)
	assert.Zero(t, v.Placeholders)
	require.Len(t, v.Items, 3)
	// popularity: rating descending
	assert.Equal(t, "2", v.Items[0].ID)
	assert.Equal(t, "3", v.Items[1].ID)
	assert.Equal(t, "1", v.Items[2].ID)
}

func TestCatalogView_FailedFetchIsReported(t *testing.T) {
	fetcher := catalog.FetcherFunc(func(context.Context, string, domain.SortKey) ([]domain.Product, error) {
		return nil, errors.New("connection refused")
	})
	svc, _ := newTestService(t, fetcher)
	ctx := context.Background()

	sess, err := svc.Session(ctx, "s1")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return sess.Catalog.State().IsFailed() }, time.Second, 5*time.Millisecond)

	v, err := svc.CatalogView(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "failed", v.State)
	assert.Equal(t, "catalog could not be loaded", v.Error)
	assert.Equal(t, 4, v.Placeholders)
}

func TestCatalogView_TimeoutIsReported(t *testing.T) {
	fetcher := catalog.FetcherFunc(func(ctx context.Context, _ string, _ domain.SortKey) ([]domain.Product, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	repo := memory.NewSessionRepository(time.Hour)
	opts := testOptions()
	opts.FetchTimeout = 20 * time.Millisecond
	svc := NewStorefrontService(fetcher, repo, event.NewProducer(event.NopPublisher{}, newTestLogger()), newTestLogger(), opts)
	t.Cleanup(svc.Close)

	sess, err := svc.Session(context.Background(), "s1")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return sess.Catalog.State().IsFailed() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "catalog request timed out", sess.Catalog.State().Reason)
}

// --- Filter Tests ---

func TestSetCategory_RefetchesAndFilters(t *testing.T) {
	fetcher := newCountingFetcher()
	svc, _ := newTestService(t, fetcher)
	ctx := context.Background()
	waitLoaded(t, svc, "s1")

	f, err := svc.SetCategory(ctx, "s1", "veg")
	require.NoError(t, err)
	assert.Equal(t, domain.FilterState{Category: "veg", SortBy: domain.SortPopularity}, f)
	waitLoaded(t, svc, "s1")
	assert.Equal(t, int32(2), fetcher.calls.Load())

	v, err := svc.CatalogView(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, v.Items, 2)
	for _, it := range v.Items {
		assert.Equal(t, "veg", it.Category)
	}
}

func TestSetCategory_IdempotentDoesNotRefetch(t *testing.T) {
	fetcher := newCountingFetcher()
	svc, _ := newTestService(t, fetcher)
	ctx := context.Background()
	waitLoaded(t, svc, "s1")

	_, err := svc.SetCategory(ctx, "s1", "all")
	require.NoError(t, err)

	sess, err := svc.Session(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, sess.Catalog.IsLoaded())
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestSetCategory_RetriesAfterFailure(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	inner := catalog.NewMemory(testMenu(), "all")
	fetcher := catalog.FetcherFunc(func(ctx context.Context, c string, s domain.SortKey) ([]domain.Product, error) {
		if fail.Load() {
			return nil, errors.New("boom")
		}
		return inner.Fetch(ctx, c, s)
	})
	svc, _ := newTestService(t, fetcher)
	ctx := context.Background()

	sess, err := svc.Session(ctx, "s1")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return sess.Catalog.State().IsFailed() }, time.Second, 5*time.Millisecond)

	fail.Store(false)
	_, err = svc.SetCategory(ctx, "s1", "all")
	require.NoError(t, err)
	require.Eventually(t, sess.Catalog.IsLoaded, time.Second, 5*time.Millisecond)
}

func TestSetCategory_Unknown(t *testing.T) {
	svc, _ := newTestService(t, newCountingFetcher())

	_, err := svc.SetCategory(context.Background(), "s1", "dessert")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Zero(t, svc.Len(), "rejected input must not create a session")
}

func TestSetSortBy(t *testing.T) {
	svc, repo := newTestService(t, newCountingFetcher())
	ctx := context.Background()
	waitLoaded(t, svc, "s1")

	f, err := svc.SetSortBy(ctx, "s1", domain.SortPrice)
	require.NoError(t, err)
	assert.Equal(t, domain.FilterState{Category: "all", SortBy: domain.SortPrice}, f)
	waitLoaded(t, svc, "s1")

	v, err := svc.CatalogView(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, v.Items, 3)
	assert.Equal(t, []int64{500, 700, 800}, []int64{v.Items[0].BasePrice, v.Items[1].BasePrice, v.Items[2].BasePrice})

	snap, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.SortPrice, snap.Filter.SortBy)

	_, err = svc.SetSortBy(ctx, "s1", "rating")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestRefresh_StaleCompletionDiscarded(t *testing.T) {
	fetcher := newGatedFetcher()
	svc, _ := newTestService(t, fetcher)
	ctx := context.Background()

	sess, err := svc.Session(ctx, "s1")
	require.NoError(t, err)
	first := fetcher.next(t)

	_, err = svc.SetCategory(ctx, "s1", "veg")
	require.NoError(t, err)
	second := fetcher.next(t)
	assert.Equal(t, "veg", second.category)

	veg := []domain.Product{testMenu()[1]}
	second.reply <- fetchResult{products: veg}
	require.Eventually(t, sess.Catalog.IsLoaded, time.Second, 5*time.Millisecond)

	first.reply <- fetchResult{products: testMenu()}
	svc.Close()

	assert.True(t, sess.Catalog.IsLoaded())
	assert.Equal(t, veg, sess.Catalog.Products())
}

func TestReload(t *testing.T) {
	fetcher := newCountingFetcher()
	svc, _ := newTestService(t, fetcher)
	waitLoaded(t, svc, "s1")

	require.NoError(t, svc.Reload(context.Background(), "s1"))
	waitLoaded(t, svc, "s1")
	assert.Equal(t, int32(2), fetcher.calls.Load())
}

// --- Cart Tests ---

func TestAddToCart(t *testing.T) {
	svc, repo := newTestService(t, newCountingFetcher())
	ctx := context.Background()
	waitLoaded(t, svc, "s1")

	line, err := svc.AddToCart(ctx, "s1", AddItemInput{ProductID: "1", Type: "thin", Size: 30})
	require.NoError(t, err)
	assert.Equal(t, domain.CartLineSelection{Type: "thin", Size: 30, Quantity: 1, UnitPrice: 1000}, line)

	line, err = svc.AddToCart(ctx, "s1", AddItemInput{ProductID: "1", Type: "thin", Size: 30})
	require.NoError(t, err)
	assert.Equal(t, 2, line.Quantity)

	v, err := svc.CatalogView(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, view.CartBadge{Count: 2, Total: 2000}, v.Cart)

	snap, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, snap.Cart, 1)
	assert.Equal(t, 2, snap.Cart[0].Count())
}

func TestAddToCart_Rejections(t *testing.T) {
	svc, _ := newTestService(t, newCountingFetcher())
	ctx := context.Background()
	waitLoaded(t, svc, "s1")

	_, err := svc.AddToCart(ctx, "s1", AddItemInput{ProductID: "99", Type: "thin", Size: 26})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = svc.AddToCart(ctx, "s1", AddItemInput{ProductID: "1", Type: "traditional", Size: 30})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = svc.AddToCart(ctx, "s1", AddItemInput{ProductID: "1", Type: "thin", Size: 40})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, ev *pkgkafka.Event) error {
	return m.Called(ctx, topic, ev).Error(0)
}

func TestAddToCart_PublishFailureIsNotReturned(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, event.TopicCartUpdated, mock.Anything).Return(errors.New("broker down")).Once()

	svc := NewStorefrontService(newCountingFetcher(), memory.NewSessionRepository(time.Hour),
		event.NewProducer(pub, newTestLogger()), newTestLogger(), testOptions())
	t.Cleanup(svc.Close)
	waitLoaded(t, svc, "s1")

	_, err := svc.AddToCart(context.Background(), "s1", AddItemInput{ProductID: "2", Type: "thin", Size: 26})
	require.NoError(t, err)
	pub.AssertExpectations(t)
}

func TestAddToCart_WarningUsesRequestLogger(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, event.TopicCartUpdated, mock.Anything).Return(errors.New("broker down")).Once()

	svc := NewStorefrontService(newCountingFetcher(), memory.NewSessionRepository(time.Hour),
		event.NewProducer(pub, newTestLogger()), newTestLogger(), testOptions())
	t.Cleanup(svc.Close)
	waitLoaded(t, svc, "s1")

	var buf bytes.Buffer
	ctx := logger.WithSessionID(context.Background(), "s1")
	ctx = logger.NewContext(ctx, logger.WithContext(ctx, logger.NewWithWriter("test", "warn", &buf)))

	_, err := svc.AddToCart(ctx, "s1", AddItemInput{ProductID: "2", Type: "thin", Size: 26})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "failed to publish cart.updated event")
	assert.Equal(t, 1, strings.Count(out, `"session_id"`))
}

func TestCartMaintenance(t *testing.T) {
	svc, _ := newTestService(t, newCountingFetcher())
	ctx := context.Background()
	waitLoaded(t, svc, "s1")

	for range 3 {
		_, err := svc.AddToCart(ctx, "s1", AddItemInput{ProductID: "1", Type: "thin", Size: 26})
		require.NoError(t, err)
	}
	_, err := svc.AddToCart(ctx, "s1", AddItemInput{ProductID: "2", Type: "thin", Size: 30})
	require.NoError(t, err)

	require.NoError(t, svc.RemoveFromCart(ctx, "s1", "1", "thin", 26))
	cv, err := svc.CartView(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 3, cv.TotalCount)
	assert.Equal(t, int64(2*800+700), cv.TotalPrice)

	require.NoError(t, svc.RemoveLine(ctx, "s1", "1", "thin", 26))
	cv, err = svc.CartView(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, cv.Lines, 1)
	assert.Equal(t, "2", cv.Lines[0].ProductID)

	err = svc.RemoveLine(ctx, "s1", "1", "thin", 26)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	err = svc.RemoveFromCart(ctx, "s1", "1", "thin", 26)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, svc.ClearCart(ctx, "s1"))
	cv, err = svc.CartView(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, cv.Lines)
	assert.Zero(t, cv.TotalPrice)
}

// --- Registry Tests ---

func TestMenu(t *testing.T) {
	svc, _ := newTestService(t, newCountingFetcher())

	m := svc.Menu()
	assert.Equal(t, testOptions().Categories, m.Categories)
	assert.Equal(t, testOptions().SortKeys, m.SortKeys)
}

func TestEvictIdle(t *testing.T) {
	svc, repo := newTestService(t, newCountingFetcher())
	ctx := context.Background()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	waitLoaded(t, svc, "old")
	_, err := svc.AddToCart(ctx, "old", AddItemInput{ProductID: "1", Type: "thin", Size: 26})
	require.NoError(t, err)

	now = now.Add(time.Hour)
	waitLoaded(t, svc, "fresh")

	assert.Equal(t, 1, svc.EvictIdle(30*time.Minute))
	assert.Equal(t, 1, svc.Len())

	_, err = repo.Get(ctx, "old")
	require.NoError(t, err, "eviction keeps the persisted snapshot")

	sess, err := svc.Session(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, 1, sess.Cart.Count("1"))
}

func TestClose_RejectsNewSessions(t *testing.T) {
	svc, _ := newTestService(t, newCountingFetcher())
	_, err := svc.Session(context.Background(), "s1")
	require.NoError(t, err)

	svc.Close()

	_, err = svc.Session(context.Background(), "s2")
	assert.ErrorIs(t, err, apperrors.ErrUnavailable)
}

func TestClose_CancelledFetchIsNotAFailure(t *testing.T) {
	started := make(chan struct{}, 1)
	fetcher := catalog.FetcherFunc(func(ctx context.Context, _ string, _ domain.SortKey) ([]domain.Product, error) {
		started <- struct{}{}
		<-ctx.Done()
		return nil, ctx.Err()
	})
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	repo := memory.NewSessionRepository(time.Hour)
	svc := NewStorefrontService(fetcher, repo, event.NewProducer(event.NopPublisher{}, log), log, testOptions())

	sess, err := svc.Session(context.Background(), "s1")
	require.NoError(t, err)
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("fetch never started")
	}

	svc.Close()

	assert.False(t, sess.Catalog.State().IsFailed())
	assert.Contains(t, buf.String(), "catalog fetch cancelled")
	assert.NotContains(t, buf.String(), "level=ERROR")
}
