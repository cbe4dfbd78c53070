package notify

import (
	"context"
	"errors"
	"fmt"

	"fichador/models"

	"go.uber.org/zap"
)

// ErrNoTarget signals a gateway has nothing to deliver to for this user
// (no active subscription, no email address). It is not a delivery failure.
var ErrNoTarget = errors.New("no delivery target for user")

// ErrNoDelivery signals a gateway attempted delivery and nothing got through.
var ErrNoDelivery = errors.New("no delivery attempt succeeded")

// Gateway delivers one rendered message to one user over one transport.
type Gateway interface {
	Send(ctx context.Context, user *models.User, msg Message) error
}

// Dispatcher fans a message out to every configured gateway. It reports an
// error only when at least one gateway attempted delivery and all attempts
// failed; a user with no delivery targets counts as delivered so the jobs do
// not retry forever.
type Dispatcher struct {
	gateways []Gateway
	log      *zap.Logger
}

func NewDispatcher(log *zap.Logger, gateways ...Gateway) *Dispatcher {
	return &Dispatcher{gateways: gateways, log: log}
}

func (d *Dispatcher) Send(ctx context.Context, user *models.User, msg Message) error {
	attempted, failed := 0, 0
	for _, gw := range d.gateways {
		err := gw.Send(ctx, user, msg)
		if errors.Is(err, ErrNoTarget) {
			continue
		}
		attempted++
		if err != nil {
			failed++
			d.log.Warn("notification delivery failed",
				zap.Uint("user_id", user.ID),
				zap.String("kind", string(msg.Kind)),
				zap.Error(err))
		}
	}
	if attempted > 0 && failed == attempted {
		return fmt.Errorf("all %d delivery attempts failed for user %d", attempted, user.ID)
	}
	return nil
}
