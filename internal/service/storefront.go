package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/utafrali/pizzashop/internal/catalog"
	"github.com/utafrali/pizzashop/internal/domain"
	"github.com/utafrali/pizzashop/internal/event"
	"github.com/utafrali/pizzashop/internal/repository"
	"github.com/utafrali/pizzashop/internal/view"
	apperrors "github.com/utafrali/pizzashop/pkg/errors"
	"github.com/utafrali/pizzashop/pkg/logger"
)

// Options configure a StorefrontService.
type Options struct {
	// Categories is the category bar; the first entry is the all-products
	// category.
	Categories       []domain.Category
	SortKeys         []domain.SortKey
	DefaultFilter    domain.FilterState
	PlaceholderCount int
	FetchTimeout     time.Duration
}

// AddItemInput selects one unit of a product variant.
type AddItemInput struct {
	ProductID string
	Type      string
	Size      int
}

// Menu lists what a client may pick from.
type Menu struct {
	Categories []domain.Category `json:"categories"`
	SortKeys   []domain.SortKey  `json:"sort_keys"`
}

// StorefrontService owns the browsing sessions and drives their stores.
// Catalog fetches run in the background; every filter change or reload
// supersedes the fetch in flight.
type StorefrontService struct {
	fetcher  catalog.Fetcher
	repo     repository.SessionRepository
	producer *event.Producer
	logger   *slog.Logger
	opts     Options
	sorters  view.Sorters
	now      func() time.Time

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// NewStorefrontService creates the service. Close must be called to stop
// background fetches.
func NewStorefrontService(
	fetcher catalog.Fetcher,
	repo repository.SessionRepository,
	producer *event.Producer,
	logger *slog.Logger,
	opts Options,
) *StorefrontService {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 5 * time.Second
	}
	ctx, stop := context.WithCancel(context.Background())
	return &StorefrontService{
		fetcher:  fetcher,
		repo:     repo,
		producer: producer,
		logger:   logger,
		opts:     opts,
		sorters:  view.DefaultSorters().Only(opts.SortKeys),
		now:      time.Now,
		baseCtx:  ctx,
		stop:     stop,
		sessions: make(map[string]*Session),
	}
}

// Session returns the session for id, restoring it from the repository or
// creating it on first use. A new session starts fetching immediately.
func (s *StorefrontService) Session(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("session id is required")
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, apperrors.Unavailable("storefront", errors.New("service is shutting down"))
	}
	if sess, ok := s.sessions[id]; ok {
		s.mu.Unlock()
		sess.touch(s.now())
		return sess, nil
	}
	s.mu.Unlock()

	sess := s.restore(ctx, id)

	s.mu.Lock()
	if existing, ok := s.sessions[id]; ok {
		s.mu.Unlock()
		existing.touch(s.now())
		return existing, nil
	}
	s.sessions[id] = sess
	s.mu.Unlock()

	s.refresh(ctx, sess)
	return sess, nil
}

func (s *StorefrontService) restore(ctx context.Context, id string) *Session {
	sess := newSession(id, s.opts.DefaultFilter, s.now())

	snap, err := s.repo.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.log(ctx).WarnContext(ctx, "failed to restore session, starting fresh",
				slog.String("error", err.Error()),
			)
		}
		return sess
	}

	if s.validCategory(snap.Filter.Category) {
		sess.Filter.SetCategory(snap.Filter.Category)
	}
	if s.validSortKey(snap.Filter.SortBy) {
		sess.Filter.SetSortBy(snap.Filter.SortBy)
	}
	sess.Cart.Restore(snap.Cart)
	s.log(ctx).DebugContext(ctx, "session restored",
		slog.Int("cart_count", sess.Cart.TotalCount()),
	)
	return sess
}

// SetCategory selects category and refetches when it changed or when the
// previous fetch failed.
func (s *StorefrontService) SetCategory(ctx context.Context, sessionID, category string) (domain.FilterState, error) {
	if !s.validCategory(category) {
		return domain.FilterState{}, apperrors.InvalidInput(fmt.Sprintf("unknown category %q", category))
	}
	sess, err := s.Session(ctx, sessionID)
	if err != nil {
		return domain.FilterState{}, err
	}

	changed := sess.Filter.SetCategory(category)
	s.afterFilterChange(ctx, sess, changed)
	return sess.Filter.State(), nil
}

// SetSortBy selects the sort key and refetches when it changed or when the
// previous fetch failed.
func (s *StorefrontService) SetSortBy(ctx context.Context, sessionID string, key domain.SortKey) (domain.FilterState, error) {
	if !s.validSortKey(key) {
		return domain.FilterState{}, apperrors.InvalidInput(fmt.Sprintf("unknown sort key %q", key))
	}
	sess, err := s.Session(ctx, sessionID)
	if err != nil {
		return domain.FilterState{}, err
	}

	changed := sess.Filter.SetSortBy(key)
	s.afterFilterChange(ctx, sess, changed)
	return sess.Filter.State(), nil
}

func (s *StorefrontService) afterFilterChange(ctx context.Context, sess *Session, changed bool) {
	if changed || sess.Catalog.State().IsFailed() {
		s.refresh(ctx, sess)
	}
	if !changed {
		return
	}
	s.persist(ctx, sess)
	if err := s.producer.PublishFilterChanged(ctx, sess.ID, sess.Filter.State()); err != nil {
		s.log(ctx).WarnContext(ctx, "failed to publish filter.changed event",
			slog.String("error", err.Error()),
		)
	}
}

// Reload re-issues the catalog fetch for the current filter.
func (s *StorefrontService) Reload(ctx context.Context, sessionID string) error {
	sess, err := s.Session(ctx, sessionID)
	if err != nil {
		return err
	}
	s.refresh(ctx, sess)
	return nil
}

// refresh starts a fetch for the session's current filter. The result is
// applied only if no later fetch has been started in the meantime.
func (s *StorefrontService) refresh(ctx context.Context, sess *Session) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	gen, filter, fetchCtx, cancel := sess.beginFetch(context.WithoutCancel(ctx), s.opts.FetchTimeout)
	stopOnClose := context.AfterFunc(s.baseCtx, cancel)

	log := s.log(ctx)
	go func() {
		defer s.wg.Done()
		defer stopOnClose()
		defer cancel()

		products, err := s.fetcher.Fetch(fetchCtx, filter.Category, filter.SortBy)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.DebugContext(fetchCtx, "catalog fetch cancelled", slog.Uint64("generation", gen))
				return
			}
			if !sess.Catalog.FailLoad(gen, catalog.Reason(err)) {
				log.DebugContext(fetchCtx, "superseded catalog fetch failed", slog.Uint64("generation", gen))
				return
			}
			log.ErrorContext(fetchCtx, "catalog fetch failed",
				slog.String("category", filter.Category),
				slog.String("sort_by", string(filter.SortBy)),
				slog.String("error", err.Error()),
			)
			return
		}

		if !sess.Catalog.CompleteLoad(gen, products) {
			log.DebugContext(fetchCtx, "discarded superseded catalog fetch", slog.Uint64("generation", gen))
			return
		}
		log.DebugContext(fetchCtx, "catalog loaded", slog.Int("products", len(products)))
	}()
}

// AddToCart adds one unit of the selected variant. The product must be in
// the session's catalog and offer the type and size.
func (s *StorefrontService) AddToCart(ctx context.Context, sessionID string, input AddItemInput) (domain.CartLineSelection, error) {
	sess, err := s.Session(ctx, sessionID)
	if err != nil {
		return domain.CartLineSelection{}, err
	}

	product, ok := sess.Catalog.Lookup(input.ProductID)
	if !ok {
		return domain.CartLineSelection{}, apperrors.NotFound("pizza", input.ProductID)
	}
	if !product.Offers(input.Type, input.Size) {
		return domain.CartLineSelection{}, apperrors.InvalidInput(
			fmt.Sprintf("pizza %s is not available as %s %d cm", product.ID, input.Type, input.Size))
	}

	line := sess.Cart.AddSelection(product, input.Type, input.Size)
	s.cartChanged(ctx, sess)

	s.log(ctx).InfoContext(ctx, "pizza added to cart",
		slog.String("product_id", product.ID),
		slog.String("type", input.Type),
		slog.Int("size", input.Size),
		slog.Int("quantity", line.Quantity),
	)
	return line, nil
}

// RemoveFromCart takes one unit off a cart line.
func (s *StorefrontService) RemoveFromCart(ctx context.Context, sessionID, productID, typ string, size int) error {
	sess, err := s.Session(ctx, sessionID)
	if err != nil {
		return err
	}
	if !sess.Cart.RemoveSelection(productID, typ, size) {
		return apperrors.NotFound("cart line", lineID(productID, typ, size))
	}
	s.cartChanged(ctx, sess)
	return nil
}

// RemoveLine drops a cart line whatever its quantity.
func (s *StorefrontService) RemoveLine(ctx context.Context, sessionID, productID, typ string, size int) error {
	sess, err := s.Session(ctx, sessionID)
	if err != nil {
		return err
	}
	if !sess.Cart.RemoveLine(productID, typ, size) {
		return apperrors.NotFound("cart line", lineID(productID, typ, size))
	}
	s.cartChanged(ctx, sess)
	return nil
}

// ClearCart empties the cart.
func (s *StorefrontService) ClearCart(ctx context.Context, sessionID string) error {
	sess, err := s.Session(ctx, sessionID)
	if err != nil {
		return err
	}
	sess.Cart.Clear()
	s.persist(ctx, sess)
	if err := s.producer.PublishCartCleared(ctx, sess.ID); err != nil {
		s.log(ctx).WarnContext(ctx, "failed to publish cart.cleared event",
			slog.String("error", err.Error()),
		)
	}
	return nil
}

func (s *StorefrontService) cartChanged(ctx context.Context, sess *Session) {
	s.persist(ctx, sess)
	if err := s.producer.PublishCartUpdated(ctx, sess.ID, sess.Cart.Entries()); err != nil {
		s.log(ctx).WarnContext(ctx, "failed to publish cart.updated event",
			slog.String("error", err.Error()),
		)
	}
}

// CatalogView composes the home page for the session.
func (s *StorefrontService) CatalogView(ctx context.Context, sessionID string) (view.CatalogView, error) {
	sess, err := s.Session(ctx, sessionID)
	if err != nil {
		return view.CatalogView{}, err
	}
	return view.Compose(sess.Catalog, sess.Filter, sess.Cart, view.Options{
		AllCategory:      s.allCategory(),
		PlaceholderCount: s.opts.PlaceholderCount,
		Sorters:          s.sorters,
	}), nil
}

// CartView composes the cart page for the session.
func (s *StorefrontService) CartView(ctx context.Context, sessionID string) (view.CartView, error) {
	sess, err := s.Session(ctx, sessionID)
	if err != nil {
		return view.CartView{}, err
	}
	return view.ComposeCart(sess.Cart), nil
}

func (s *StorefrontService) Menu() Menu {
	return Menu{
		Categories: slices.Clone(s.opts.Categories),
		SortKeys:   slices.Clone(s.opts.SortKeys),
	}
}

// EvictIdle drops sessions not used within idle, cancelling their fetches.
// Persisted snapshots are kept, so an evicted session is restored on its
// next request.
func (s *StorefrontService) EvictIdle(idle time.Duration) int {
	cutoff := s.now().Add(-idle)

	s.mu.Lock()
	var evicted []*Session
	for id, sess := range s.sessions {
		if sess.idleSince().Before(cutoff) {
			delete(s.sessions, id)
			evicted = append(evicted, sess)
		}
	}
	s.mu.Unlock()

	for _, sess := range evicted {
		sess.cancelFetch()
	}
	return len(evicted)
}

// Len reports how many sessions are held in memory.
func (s *StorefrontService) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close cancels in-flight fetches and waits for them to return.
func (s *StorefrontService) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.stop()
	s.wg.Wait()
}

func (s *StorefrontService) persist(ctx context.Context, sess *Session) {
	if err := s.repo.Save(ctx, sess.snapshot(s.now())); err != nil {
		s.log(ctx).WarnContext(ctx, "failed to persist session",
			slog.String("error", err.Error()),
		)
	}
}

func (s *StorefrontService) allCategory() string {
	if len(s.opts.Categories) == 0 {
		return domain.DefaultCategory
	}
	return s.opts.Categories[0].ID
}

func (s *StorefrontService) validCategory(id string) bool {
	return slices.ContainsFunc(s.opts.Categories, func(c domain.Category) bool { return c.ID == id })
}

func (s *StorefrontService) validSortKey(key domain.SortKey) bool {
	return slices.Contains(s.opts.SortKeys, key)
}

// log prefers the request-scoped logger installed by the HTTP middleware.
func (s *StorefrontService) log(ctx context.Context) *slog.Logger {
	if l := logger.FromContext(ctx); l != slog.Default() {
		return l
	}
	return s.logger
}

func lineID(productID, typ string, size int) string {
	return fmt.Sprintf("%s/%s/%d", productID, typ, size)
}
