// Package push delivers notifications to registered browser endpoints via
// Web Push with VAPID keys.
package push

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"fichador/models"
	"fichador/notify"
)

// Sender implements notify.Gateway over all of a user's active
// subscriptions. A short client timeout bounds each endpoint so one
// unreachable push service cannot stall a whole job run.
type Sender struct {
	db         *gorm.DB
	log        *zap.Logger
	publicKey  string
	privateKey string
	subject    string
	client     *http.Client
}

func NewSender(db *gorm.DB, log *zap.Logger, publicKey, privateKey, subject string) *Sender {
	return &Sender{
		db:         db,
		log:        log,
		publicKey:  publicKey,
		privateKey: privateKey,
		subject:    subject,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *Sender) Send(ctx context.Context, user *models.User, msg notify.Message) error {
	if s.publicKey == "" || s.privateKey == "" {
		return notify.ErrNoTarget
	}

	var subs []models.PushSubscription
	if err := s.db.Where("user_id = ? AND is_active = ?", user.ID, true).Find(&subs).Error; err != nil {
		return err
	}
	if len(subs) == 0 {
		return notify.ErrNoTarget
	}

	payload, err := json.Marshal(map[string]interface{}{
		"title": msg.Title,
		"body":  msg.Body,
		"data":  map[string]string{"url": msg.URL},
	})
	if err != nil {
		return err
	}

	delivered := 0
	for i := range subs {
		sub := &subs[i]
		resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpush.Keys{
				P256dh: sub.P256dh,
				Auth:   sub.Auth,
			},
		}, &webpush.Options{
			HTTPClient:      s.client,
			Subscriber:      s.subject,
			VAPIDPublicKey:  s.publicKey,
			VAPIDPrivateKey: s.privateKey,
			TTL:             3600,
		})
		if err != nil {
			// Transient (network/timeout): the subscription stays active.
			s.log.Warn("push delivery failed", zap.Uint("subscription_id", sub.ID), zap.Error(err))
			continue
		}

		switch {
		case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
			// Endpoint is permanently gone; deactivate just this one.
			s.log.Info("deactivating expired push subscription",
				zap.Uint("subscription_id", sub.ID), zap.Int("status", resp.StatusCode))
			if err := s.db.Model(sub).Update("is_active", false).Error; err != nil {
				s.log.Error("deactivate subscription", zap.Uint("subscription_id", sub.ID), zap.Error(err))
			}
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			delivered++
		default:
			s.log.Warn("unexpected push status",
				zap.Uint("subscription_id", sub.ID), zap.Int("status", resp.StatusCode))
		}
		resp.Body.Close()
	}

	if delivered == 0 {
		return notify.ErrNoDelivery
	}
	return nil
}
