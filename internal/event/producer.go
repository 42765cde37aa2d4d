package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/pizzashop/internal/domain"
	pkgkafka "github.com/utafrali/pizzashop/pkg/kafka"
	"github.com/utafrali/pizzashop/pkg/logger"
)

// Kafka topics for storefront events.
var (
	TopicCartUpdated   = pkgkafka.Topic("cart", "updated")
	TopicCartCleared   = pkgkafka.Topic("cart", "cleared")
	TopicFilterChanged = pkgkafka.Topic("filter", "changed")
)

// Publisher is satisfied by *pkgkafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// NopPublisher drops every event. It is used when events are disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, *pkgkafka.Event) error { return nil }

// CartUpdatedData is the payload of storefront.cart.updated.
type CartUpdatedData struct {
	SessionID  string         `json:"session_id"`
	Items      []CartItemData `json:"items"`
	ItemCount  int            `json:"item_count"`
	TotalPrice int64          `json:"total_price"`
}

// CartItemData is one cart line within CartUpdatedData.
type CartItemData struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Size      int    `json:"size"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

// CartClearedData is the payload of storefront.cart.cleared.
type CartClearedData struct {
	SessionID string `json:"session_id"`
}

// FilterChangedData is the payload of storefront.filter.changed.
type FilterChangedData struct {
	SessionID string         `json:"session_id"`
	Category  string         `json:"category"`
	SortBy    domain.SortKey `json:"sort_by"`
}

// NewCartUpdated builds a storefront.cart.updated event from the cart's
// current entries.
func NewCartUpdated(sessionID string, entries []domain.CartEntry) (*pkgkafka.Event, error) {
	data := CartUpdatedData{SessionID: sessionID, Items: []CartItemData{}}
	for _, e := range entries {
		for _, l := range e.Lines {
			data.Items = append(data.Items, CartItemData{
				ProductID: e.ProductID,
				Name:      e.Name,
				Type:      l.Type,
				Size:      l.Size,
				Quantity:  l.Quantity,
				UnitPrice: l.UnitPrice,
			})
		}
		data.ItemCount += e.Count()
		data.TotalPrice += e.Total()
	}
	return pkgkafka.NewSessionEvent(TopicCartUpdated, sessionID, data)
}

func NewCartCleared(sessionID string) (*pkgkafka.Event, error) {
	return pkgkafka.NewSessionEvent(TopicCartCleared, sessionID, CartClearedData{SessionID: sessionID})
}

func NewFilterChanged(sessionID string, f domain.FilterState) (*pkgkafka.Event, error) {
	return pkgkafka.NewSessionEvent(TopicFilterChanged, sessionID, FilterChangedData{
		SessionID: sessionID,
		Category:  f.Category,
		SortBy:    f.SortBy,
	})
}

// Producer publishes storefront events keyed by session id.
type Producer struct {
	publisher Publisher
	logger    *slog.Logger
}

func NewProducer(publisher Publisher, logger *slog.Logger) *Producer {
	return &Producer{publisher: publisher, logger: logger}
}

func (p *Producer) PublishCartUpdated(ctx context.Context, sessionID string, entries []domain.CartEntry) error {
	ev, err := NewCartUpdated(sessionID, entries)
	if err != nil {
		return fmt.Errorf("create %s event: %w", TopicCartUpdated, err)
	}
	if err := p.publish(ctx, ev); err != nil {
		return err
	}
	p.logger.DebugContext(ctx, "published cart.updated event", slog.Int("lines", len(entries)))
	return nil
}

func (p *Producer) PublishCartCleared(ctx context.Context, sessionID string) error {
	ev, err := NewCartCleared(sessionID)
	if err != nil {
		return fmt.Errorf("create %s event: %w", TopicCartCleared, err)
	}
	return p.publish(ctx, ev)
}

func (p *Producer) PublishFilterChanged(ctx context.Context, sessionID string, f domain.FilterState) error {
	ev, err := NewFilterChanged(sessionID, f)
	if err != nil {
		return fmt.Errorf("create %s event: %w", TopicFilterChanged, err)
	}
	return p.publish(ctx, ev)
}

// publish sends ev to the topic named by its type.
func (p *Producer) publish(ctx context.Context, ev *pkgkafka.Event) error {
	ev.CorrelationID = logger.CorrelationIDFromContext(ctx)
	if err := p.publisher.Publish(ctx, ev.Type, ev); err != nil {
		return fmt.Errorf("publish %s event: %w", ev.Type, err)
	}
	return nil
}
