package service

import (
	"context"
	"time"

	"storefront-core/internal/model"
	"storefront-core/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// appendTransition writes the history row and the order_status_changed event
// for a change from before to after, inside the caller's transaction. Both
// the order service and the courier service go through here.
func appendTransition(
	ctx context.Context,
	tx pgx.Tx,
	orders repository.OrderRepository,
	outbox repository.OutboxRepository,
	actor model.Actor,
	before, after *model.Order,
	note *string,
	at time.Time,
) error {
	err := orders.AppendHistory(ctx, tx, &model.StatusHistory{
		ID:        uuid.New(),
		OrderID:   after.ID,
		Status:    after.Status,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Note:      trimmedOrNil(note),
		CreatedAt: at,
	})
	if err != nil {
		return err
	}

	return outbox.Insert(ctx, tx, model.NewEvent(after.ID, model.OrderStatusChanged{
		OrderID:      after.ID,
		OrderNumber:  after.OrderNumber,
		BuyerID:      after.BuyerID,
		OldStatus:    before.Status,
		NewStatus:    after.Status,
		OldCourierID: before.CourierID,
		NewCourierID: after.CourierID,
		ActorID:      actor.ID,
		ActorRole:    actor.Role,
	}, at))
}
