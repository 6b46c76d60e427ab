// Package events reacts to corpus change notifications published by the
// ingestion side. A change to texts or visibility drops cached results; a
// catalog change also reloads the in-memory reading catalog.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/translit-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/translit-search/pkg/metrics"
)

type Type string

const (
	TextIngested      Type = "text.ingested"
	TextDeleted       Type = "text.deleted"
	CatalogUpdated    Type = "catalog.updated"
	VisibilityChanged Type = "visibility.changed"
)

// Event is the payload of a corpus-events message.
type Event struct {
	Type      Type      `json:"type"`
	TextID    int64     `json:"text_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Invalidator drops cached search results.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Reloader refreshes the resident reading catalog.
type Reloader interface {
	Reload(ctx context.Context) error
	Len() int
}

// Handler applies corpus events. Cache and Catalog may be nil when the
// service runs without a result cache or a resident catalog.
type Handler struct {
	cache   Invalidator
	catalog Reloader
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewHandler(cache Invalidator, catalog Reloader, m *metrics.Metrics) *Handler {
	return &Handler{
		cache:   cache,
		catalog: catalog,
		metrics: m,
		logger:  slog.Default().With("component", "corpus-events"),
	}
}

// Handle applies one event. Unknown event types are ignored.
func (h *Handler) Handle(ctx context.Context, event Event) error {
	switch event.Type {
	case TextIngested, TextDeleted, VisibilityChanged:
		h.count(string(event.Type))
		if err := h.invalidate(ctx); err != nil {
			return err
		}
	case CatalogUpdated:
		h.count(string(event.Type))
		if err := h.reload(ctx); err != nil {
			return err
		}
		if err := h.invalidate(ctx); err != nil {
			return err
		}
	default:
		h.count("unknown")
		h.logger.Warn("ignoring corpus event", "type", event.Type)
		return nil
	}
	h.logger.Info("corpus event applied", "type", event.Type, "text_id", event.TextID)
	return nil
}

// MessageHandler adapts h to a Kafka consumer. Undecodable messages are
// skipped; a failed invalidation or reload is returned so the message is not
// committed.
func (h *Handler) MessageHandler() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[Event](value)
		if err != nil {
			h.logger.Error("failed to decode corpus event", "key", string(key), "error", err)
			return nil
		}
		return h.Handle(ctx, event)
	}
}

func (h *Handler) invalidate(ctx context.Context) error {
	if h.cache == nil {
		return nil
	}
	if err := h.cache.Invalidate(ctx); err != nil {
		return fmt.Errorf("invalidating result cache: %w", err)
	}
	return nil
}

func (h *Handler) reload(ctx context.Context) error {
	if h.catalog == nil {
		return nil
	}
	if err := h.catalog.Reload(ctx); err != nil {
		if h.metrics != nil {
			h.metrics.CatalogReloadsTotal.WithLabelValues("error").Inc()
		}
		return err
	}
	if h.metrics != nil {
		h.metrics.CatalogReloadsTotal.WithLabelValues("ok").Inc()
		h.metrics.CatalogEntries.Set(float64(h.catalog.Len()))
	}
	return nil
}

func (h *Handler) count(label string) {
	if h.metrics != nil {
		h.metrics.CorpusEventsTotal.WithLabelValues(label).Inc()
	}
}
