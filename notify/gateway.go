// Package notify delivers price-drop alerts to subscribers over chat and email.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"pricehound/models"
	"pricehound/utils"
)

// Channel names a delivery transport.
type Channel string

const (
	ChannelChat  Channel = "chat"
	ChannelEmail Channel = "email"
)

var (
	// ErrChannelDisabled is returned for a channel with no configured transport.
	ErrChannelDisabled = errors.New("notification channel not configured")
	// ErrNoRecipient means the subscriber has no usable address on any enabled channel.
	ErrNoRecipient = errors.New("no deliverable recipient")
)

// Sender delivers one alert to one recipient address.
type Sender interface {
	Send(ctx context.Context, recipient string, a *models.PriceAlert) error
}

// Gateway sends an alert through a named channel.
type Gateway interface {
	SendAlert(ctx context.Context, channel Channel, recipient string, a *models.PriceAlert) error
}

// Transports is a Gateway backed by one Sender per channel. Nil senders disable their channel.
type Transports struct {
	Chat  Sender
	Email Sender
}

// SendAlert implements Gateway.
func (t *Transports) SendAlert(ctx context.Context, channel Channel, recipient string, a *models.PriceAlert) error {
	var s Sender
	switch channel {
	case ChannelChat:
		s = t.Chat
	case ChannelEmail:
		s = t.Email
	}
	if s == nil {
		return fmt.Errorf("%s: %w", channel, ErrChannelDisabled)
	}
	return s.Send(ctx, recipient, a)
}

// Enabled reports whether channel has a transport.
func (t *Transports) Enabled(channel Channel) bool {
	switch channel {
	case ChannelChat:
		return t.Chat != nil
	case ChannelEmail:
		return t.Email != nil
	}
	return false
}

// Dispatcher validates an alert and fans it out to every channel the subscriber can receive on.
type Dispatcher struct {
	gateway   *Transports
	validator *Validator
	logger    *utils.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(gateway *Transports, validator *Validator, logger *utils.Logger) *Dispatcher {
	return &Dispatcher{gateway: gateway, validator: validator, logger: logger}
}

// Notify sends a to item's subscriber. An image that fails the probe is dropped rather than
// failing the alert. Channels are delivered concurrently and independently.
func (d *Dispatcher) Notify(ctx context.Context, item *models.TrackedItem, a *models.PriceAlert) error {
	if err := d.validator.ValidateAlert(a); err != nil {
		return err
	}

	alert := *a
	if alert.ImageURL != "" {
		if err := d.validator.ProbeImage(ctx, alert.ImageURL); err != nil {
			d.logger.Warn("[notify] dropping image %s: %v", alert.ImageURL, err)
			alert.ImageURL = ""
		}
	}

	type delivery struct {
		channel   Channel
		recipient string
	}
	var targets []delivery
	if item.ChatID != "" && d.gateway.Enabled(ChannelChat) {
		targets = append(targets, delivery{ChannelChat, item.ChatID})
	}
	if item.Email != "" && d.gateway.Enabled(ChannelEmail) {
		if d.validator.ValidEmail(item.Email) {
			targets = append(targets, delivery{ChannelEmail, item.Email})
		} else {
			d.logger.Warn("[notify] skipping invalid email %q for %s", item.Email, item.SubscriberID)
		}
	}
	if len(targets) == 0 {
		return fmt.Errorf("%s: %w", item.SubscriberID, ErrNoRecipient)
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for _, t := range targets {
		g.Go(func() error {
			if err := d.gateway.SendAlert(ctx, t.channel, t.recipient, &alert); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", t.channel, err))
				mu.Unlock()
				return nil
			}
			d.logger.Info("[notify] %s alert sent to %s (%.2f → %.2f)", t.channel, item.SubscriberID, alert.OldPrice, alert.NewPrice)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
