package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sahajverma/storeping/internal/config"
	"github.com/sahajverma/storeping/internal/debounce"
	"github.com/sahajverma/storeping/internal/ledger"
	"github.com/sahajverma/storeping/internal/notify"
	"github.com/sahajverma/storeping/internal/scheduler"
)

// Message templates sent through the provider.
const (
	templateOrderConfirmation = "order_confirmation"
	templateReviewRequest     = "review_request"
	templateCheckoutRecovery  = "checkout_recovery"
	templateStoreCreditRefund = "store_credit_refund"
)

// routeCheckout records the latest checkout snapshot; verification happens
// after the quiet period.
func (d *Dispatcher) routeCheckout(ctx context.Context, topic string, body []byte) error {
	var ev CheckoutEvent
	if err := decodeEvent(d.validate, body, &ev); err != nil {
		return err
	}
	d.deps.Audit.Append(topic, ev.Token, config.StrategyDebounce)
	return d.queue.RecordUpdate(ctx, ev.Token, json.RawMessage(body))
}

// routeFulfillment starts the review countdown when a fulfillment reaches
// delivered. The first delivered timestamp wins; later deliveries for the
// same order never push the review out.
func (d *Dispatcher) routeFulfillment(ctx context.Context, topic string, body []byte) error {
	var ev FulfillmentEvent
	if err := decodeEvent(d.validate, body, &ev); err != nil {
		return err
	}
	if ev.ShipmentStatus != ShipmentStatusDelivered {
		return nil
	}

	deliveredAt := ev.UpdatedAt
	if deliveredAt.IsZero() {
		deliveredAt = d.nowFunc()
	}
	key := orderKey(ev.OrderID)
	d.deps.Audit.Append(topic, key, config.StrategySchedule)
	return d.reviews.Schedule(ctx, key, deliveredAt.Add(d.deps.ReviewDelay))
}

// routeDirect performs the idempotent send for order and refund events.
func (d *Dispatcher) routeDirect(ctx context.Context, topic string, body []byte) error {
	switch {
	case strings.HasPrefix(topic, "orders/"):
		var ev OrderEvent
		if err := decodeEvent(d.validate, body, &ev); err != nil {
			return err
		}
		key := orderKey(ev.ID)
		d.deps.Audit.Append(topic, key, config.StrategyDirect)
		return d.dispatchDirect(ctx, ledger.CategoryOrderConfirmation, key, func(ctx context.Context) error {
			phone := contactPhone(ev.Phone, ev.Customer)
			if phone == "" {
				return errMissingRecipient(key)
			}
			_, err := d.deps.Sender.Send(ctx, notify.SendRequest{
				Recipient:    phone,
				TemplateID:   templateOrderConfirmation,
				Language:     contactLocale(ev.Customer),
				Placeholders: []string{contactName(ev.Customer), fmt.Sprintf("#%d", ev.OrderNumber), ev.TotalPrice + " " + ev.Currency},
			})
			return err
		})
	case strings.HasPrefix(topic, "refunds/"):
		var ev RefundEvent
		if err := decodeEvent(d.validate, body, &ev); err != nil {
			return err
		}
		key := orderKey(ev.ID)
		d.deps.Audit.Append(topic, key, config.StrategyDirect)
		return d.dispatchDirect(ctx, ledger.CategoryStoreCreditRefund, key, func(ctx context.Context) error {
			phone := contactPhone("", ev.Customer)
			if phone == "" {
				return errMissingRecipient(key)
			}
			_, err := d.deps.Sender.Send(ctx, notify.SendRequest{
				Recipient:    phone,
				TemplateID:   templateStoreCreditRefund,
				Language:     contactLocale(ev.Customer),
				Placeholders: []string{contactName(ev.Customer), ev.Amount + " " + ev.Currency},
			})
			return err
		})
	default:
		return fmt.Errorf("no direct handler for topic %s", topic)
	}
}

type missingRecipientError struct{ key string }

func (e missingRecipientError) Error() string {
	return "entity " + e.key + " has no reachable recipient"
}

func errMissingRecipient(key string) error {
	return missingRecipientError{key: key}
}

// dispatchDirect runs send behind the entity lock with a ledger check before
// and a ledger commit after. Send failures are not retried here: the
// triggering event will not recur, which the design accepts.
func (d *Dispatcher) dispatchDirect(ctx context.Context, category, key string, send func(ctx context.Context) error) error {
	held, err := d.deps.Locks.TryAcquire(ctx, key)
	if err != nil {
		return fmt.Errorf("lock %s: %w", key, err)
	}
	if !held {
		// a concurrent delivery of the same event owns the critical section
		log.Printf("[dispatch] %s/%s already in flight, skipping duplicate", category, key)
		return nil
	}
	defer func() {
		if err := d.deps.Locks.Release(ctx, key); err != nil {
			log.Printf("[dispatch] release %s: %v", key, err)
		}
	}()

	done, err := d.deps.Ledger.HasProcessed(ctx, category, key)
	if err != nil {
		return fmt.Errorf("ledger check %s/%s: %w", category, key, err)
	}
	if done {
		return nil
	}

	if err := send(ctx); err != nil {
		var missing missingRecipientError
		if errors.As(err, &missing) {
			// precondition failure: nothing to send, nothing to mark
			log.Printf("[dispatch] %s/%s skipped: %v", category, key, err)
			return nil
		}
		return fmt.Errorf("send %s/%s: %w", category, key, err)
	}
	return d.deps.Ledger.MarkProcessed(ctx, category, key)
}

// verifyCheckout is the debounce callback: once a checkout has been quiet
// for the configured delay, send a recovery nudge unless it converted.
func (d *Dispatcher) verifyCheckout(ctx context.Context, token string, payload json.RawMessage) error {
	var ev CheckoutEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("decode checkout snapshot %s: %v", token, err)
	}

	held, err := d.deps.Locks.TryAcquire(ctx, token)
	if err != nil {
		return fmt.Errorf("lock %s: %w", token, err)
	}
	if !held {
		return fmt.Errorf("checkout %s locked elsewhere: %w", token, debounce.ErrTransient)
	}
	defer func() {
		if err := d.deps.Locks.Release(ctx, token); err != nil {
			log.Printf("[dispatch] release %s: %v", token, err)
		}
	}()

	converted, err := d.deps.Shop.CheckoutConverted(ctx, token)
	if err != nil {
		return fmt.Errorf("conversion check %s: %v: %w", token, err, debounce.ErrTransient)
	}
	if converted {
		// the cart became an order; no recovery nudge, no ledger record
		return nil
	}

	done, err := d.deps.Ledger.HasProcessed(ctx, ledger.CategoryAbandonedCheckout, token)
	if err != nil {
		return fmt.Errorf("ledger check %s: %v: %w", token, err, debounce.ErrTransient)
	}
	if done {
		return nil
	}

	phone := contactPhone(ev.Phone, ev.Customer)
	if phone == "" {
		return errMissingRecipient(token)
	}

	_, err = d.deps.Sender.Send(ctx, notify.SendRequest{
		Recipient:    phone,
		TemplateID:   templateCheckoutRecovery,
		Language:     contactLocale(ev.Customer),
		Placeholders: []string{contactName(ev.Customer), ev.TotalPrice + " " + ev.Currency},
		MediaURL:     ev.RecoveryURL,
	})
	if err != nil {
		return fmt.Errorf("send recovery %s: %v: %w", token, err, debounce.ErrTransient)
	}
	return d.deps.Ledger.MarkProcessed(ctx, ledger.CategoryAbandonedCheckout, token)
}

// sendReviewRequest is the scheduler action. The scheduler already holds the
// entity lock and has re-checked the fired flag; this adds the ledger
// discipline and recipient resolution.
func (d *Dispatcher) sendReviewRequest(ctx context.Context, orderID string) error {
	done, err := d.deps.Ledger.HasProcessed(ctx, ledger.CategoryDeliveryReview, orderID)
	if err != nil {
		return fmt.Errorf("ledger check %s: %w", orderID, err)
	}
	if done {
		return nil
	}

	contact, err := d.deps.Shop.OrderContact(ctx, orderID)
	if err != nil {
		return fmt.Errorf("resolve contact %s: %w", orderID, err)
	}
	if contact.Phone == "" {
		return fmt.Errorf("order %s has no reachable contact: %w", orderID, scheduler.ErrPermanent)
	}

	locale := contact.Locale
	if locale == "" {
		locale = "en"
	}
	_, err = d.deps.Sender.Send(ctx, notify.SendRequest{
		Recipient:    contact.Phone,
		TemplateID:   templateReviewRequest,
		Language:     locale,
		Placeholders: []string{contact.FirstName},
	})
	if err != nil {
		return fmt.Errorf("send review request %s: %w", orderID, err)
	}
	return d.deps.Ledger.MarkProcessed(ctx, ledger.CategoryDeliveryReview, orderID)
}

// QualifyNow marks an entity as qualifying immediately, the manual
// counterpart of a delivered fulfillment. It reuses Schedule so the
// earliest-wins and fired-once rules apply unchanged.
func (d *Dispatcher) QualifyNow(ctx context.Context, entityKey string, dueAt time.Time) error {
	return d.reviews.Schedule(ctx, entityKey, dueAt)
}
