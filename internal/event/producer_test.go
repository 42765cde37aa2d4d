package event

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/pizzashop/internal/domain"
	pkgkafka "github.com/utafrali/pizzashop/pkg/kafka"
	"github.com/utafrali/pizzashop/pkg/logger"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, ev *pkgkafka.Event) error {
	return m.Called(ctx, topic, ev).Error(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestProducer_PublishCartUpdated(t *testing.T) {
	pub := &mockPublisher{}
	var captured *pkgkafka.Event
	pub.On("Publish", mock.Anything, "storefront.cart.updated", mock.AnythingOfType("*kafka.Event")).
		Run(func(args mock.Arguments) { captured = args.Get(2).(*pkgkafka.Event) }).
		Return(nil)

	p := NewProducer(pub, testLogger())
	ctx := logger.WithCorrelationID(context.Background(), "corr-1")
	entries := []domain.CartEntry{{
		ProductID: "7",
		Name:      "Pepperoni",
		Lines: []domain.CartLineSelection{
			{Type: "thin", Size: 26, Quantity: 2, UnitPrice: 500},
			{Type: "thin", Size: 30, Quantity: 1, UnitPrice: 600},
		},
	}}

	require.NoError(t, p.PublishCartUpdated(ctx, "sess-1", entries))
	pub.AssertExpectations(t)

	require.NotNil(t, captured)
	assert.Equal(t, "sess-1", captured.SessionID)
	assert.Equal(t, TopicCartUpdated, captured.Type)
	assert.Equal(t, "corr-1", captured.CorrelationID)

	var data CartUpdatedData
	require.NoError(t, json.Unmarshal(captured.Payload, &data))
	assert.Equal(t, 3, data.ItemCount)
	assert.Equal(t, int64(1600), data.TotalPrice)
	assert.Len(t, data.Items, 2)
}

func TestProducer_PublishFilterChanged(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, "storefront.filter.changed", mock.Anything).Return(nil)

	p := NewProducer(pub, testLogger())
	require.NoError(t, p.PublishFilterChanged(context.Background(), "sess-1",
		domain.FilterState{Category: "meat", SortBy: domain.SortPrice}))
	pub.AssertExpectations(t)
}

func TestProducer_PublishErrorWrapped(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

	err := NewProducer(pub, testLogger()).PublishCartCleared(context.Background(), "sess-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish storefront.cart.cleared event")
}

func TestNopPublisher(t *testing.T) {
	p := NewProducer(NopPublisher{}, testLogger())
	assert.NoError(t, p.PublishCartCleared(context.Background(), "sess-1"))
}

func TestNewFilterChanged(t *testing.T) {
	ev, err := NewFilterChanged("sess-9", domain.FilterState{Category: "meat", SortBy: domain.SortPrice})
	require.NoError(t, err)

	assert.Equal(t, TopicFilterChanged, ev.Type)
	assert.Equal(t, "sess-9", ev.SessionID)
	assert.JSONEq(t, `{"session_id":"sess-9","category":"meat","sort_by":"price"}`, string(ev.Payload))
}

func TestNewCartCleared(t *testing.T) {
	ev, err := NewCartCleared("sess-9")
	require.NoError(t, err)
	assert.Equal(t, TopicCartCleared, ev.Type)
	assert.JSONEq(t, `{"session_id":"sess-9"}`, string(ev.Payload))
}
