package usecase

import (
	"context"

	"github.com/vasapolrittideah/vaadi-booking-api/services/auth-service/internal/model"
)

// NotificationDispatcher hands a notification off for delivery without waiting for it.
// Delivery failures never propagate back into the flow that dispatched.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, notification model.Notification)
}
