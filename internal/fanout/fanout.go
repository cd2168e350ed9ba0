// Package fanout turns committed events into role-scoped notifications,
// records them in bounded per-subscriber histories and pushes fresh ones to
// live subscriptions.
package fanout

import (
	"context"
	"fmt"
	"time"

	"storefront-core/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DisplayResolver looks up what a notification shows besides the event itself.
type DisplayResolver interface {
	GetDisplayInfo(ctx context.Context, orderID uuid.UUID) (*model.DisplayInfo, error)
}

var adminAudience = model.Subscriber{Role: model.RoleAdmin}

// Fanout is the events.Handler behind notifications.
type Fanout struct {
	resolver DisplayResolver
	store    HistoryStore
	hub      *Hub
	ttl      time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// New creates a fan-out. Entries older than ttl are purged by RunPruner.
func New(resolver DisplayResolver, store HistoryStore, hub *Hub, ttl time.Duration, logger zerolog.Logger) *Fanout {
	return &Fanout{
		resolver: resolver,
		store:    store,
		hub:      hub,
		ttl:      ttl,
		logger:   logger.With().Str("component", "fanout").Logger(),
		now:      time.Now,
	}
}

// Handle records ev for every subscriber it targets and pushes it to this
// instance's live subscriptions. The shared history keeps one entry per key;
// live pushes are deduplicated by the hub, so every instance delivers to its
// own subscribers once even when another instance stored the entry first.
func (f *Fanout) Handle(ctx context.Context, ev model.Event) error {
	n, targets, err := f.build(ctx, ev)
	if err != nil {
		return err
	}

	for _, sub := range targets {
		inserted, err := f.store.Insert(ctx, sub, n)
		if err != nil {
			f.logger.Error().Err(err).Str("key", n.Key).Str("subscriber", sub.Key()).Msg("failed to store notification")
			return fmt.Errorf("failed to store notification: %w", err)
		}
		pushed := f.hub.Publish(sub, n)
		f.logger.Debug().
			Str("key", n.Key).
			Str("subscriber", sub.Key()).
			Bool("stored", inserted).
			Int("pushed", pushed).
			Msg("notification fanned out")
	}

	return nil
}

// History returns the caller's notification history, newest first.
func (f *Fanout) History(ctx context.Context, actor model.Actor) ([]model.Notification, error) {
	return f.store.List(ctx, model.SubscriberFor(actor))
}

// Subscribe opens a live stream for the caller.
func (f *Fanout) Subscribe(actor model.Actor) *Subscription {
	return f.hub.Subscribe(model.SubscriberFor(actor))
}

// RunPruner purges expired entries every interval until ctx is cancelled.
func (f *Fanout) RunPruner(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			removed, err := f.store.Prune(ctx, f.now().Add(-f.ttl))
			if err != nil {
				f.logger.Error().Err(err).Msg("failed to prune notification history")
				continue
			}
			if removed > 0 {
				f.logger.Info().Int("removed", removed).Msg("pruned notification history")
			}
		}
	}
}

func (f *Fanout) build(ctx context.Context, ev model.Event) (model.Notification, []model.Subscriber, error) {
	var orderID uuid.UUID
	switch p := ev.Payload.(type) {
	case model.OrderCreated:
		orderID = p.OrderID
	case model.OrderStatusChanged:
		orderID = p.OrderID
	case model.PaymentProofSubmitted:
		orderID = p.OrderID
	default:
		return model.Notification{}, nil, fmt.Errorf("%w: %q", model.ErrUnknownEventKind, ev.Kind())
	}

	info, err := f.resolver.GetDisplayInfo(ctx, orderID)
	if err != nil {
		return model.Notification{}, nil, fmt.Errorf("failed to resolve display info: %w", err)
	}
	if info == nil {
		info = &model.DisplayInfo{}
	}

	n := model.Notification{
		EventID:     ev.ID,
		Kind:        ev.Kind(),
		OrderID:     orderID,
		BuyerName:   info.BuyerName,
		ProductName: info.ProductName,
		PhotoURL:    info.PhotoURL,
		CreatedAt:   ev.OccurredAt,
	}

	var targets []model.Subscriber
	switch p := ev.Payload.(type) {
	case model.OrderCreated:
		n.EntityType = "order"
		n.EntityID = p.OrderID.String()
		n.OrderNumber = p.OrderNumber
		n.Status = &p.Status
		n.Title = "Pesanan baru"
		n.Message = fmt.Sprintf("Pesanan %s dari %s", p.OrderNumber, displayName(info.BuyerName))
		targets = []model.Subscriber{adminAudience}

	case model.OrderStatusChanged:
		n.EntityType = "order_status"
		n.EntityID = p.OrderID.String() + "-" + string(p.NewStatus)
		if p.CourierChanged() {
			n.EntityID += "-" + p.NewCourierID.String()
		}
		n.OrderNumber = p.OrderNumber
		n.OldStatus = &p.OldStatus
		n.Status = &p.NewStatus
		n.Title = "Status pesanan diperbarui"
		n.Message = fmt.Sprintf("Pesanan %s berubah dari %s ke %s", p.OrderNumber, p.OldStatus, p.NewStatus)
		targets = []model.Subscriber{adminAudience, {Role: model.RoleBuyer, ScopeID: p.BuyerID}}
		if p.CourierChanged() {
			n.Title = "Pesanan baru untuk diantar"
			targets = append(targets, model.Subscriber{Role: model.RoleCourier, ScopeID: *p.NewCourierID})
		}

	case model.PaymentProofSubmitted:
		n.EntityType = "payment"
		n.EntityID = p.ConfirmationID.String()
		n.OrderNumber = p.OrderNumber
		n.Title = "Bukti pembayaran diterima"
		n.Message = fmt.Sprintf("Pesanan %s: transfer Rp%s dari %s", p.OrderNumber, p.Amount.StringFixed(0), displayName(info.BuyerName))
		targets = []model.Subscriber{adminAudience, {Role: model.RoleBuyer, ScopeID: p.BuyerID}}
	}

	n.Key = n.EntityType + "-" + n.EntityID
	return n, targets, nil
}

func displayName(name string) string {
	if name == "" {
		return "pembeli"
	}
	return name
}
