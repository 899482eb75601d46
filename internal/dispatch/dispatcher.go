// Package dispatch is the inbound boundary: it authenticates webhook
// deliveries, classifies them by topic, acknowledges the sender, and routes
// each event to the debounce queue, the scheduler, or a direct idempotent
// send.
package dispatch

import (
	"context"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/sahajverma/storeping/internal/config"
	"github.com/sahajverma/storeping/internal/debounce"
	"github.com/sahajverma/storeping/internal/ledger"
	"github.com/sahajverma/storeping/internal/locks"
	"github.com/sahajverma/storeping/internal/notify"
	"github.com/sahajverma/storeping/internal/scheduler"
	"github.com/sahajverma/storeping/internal/shop"
	"github.com/sahajverma/storeping/internal/storage"
)

// reviewDataset persists the delivered-order review schedule.
const reviewDataset = "scheduled-reviews"

// Deps bundles everything the dispatcher needs.
type Deps struct {
	Backend storage.Backend
	Locks   *locks.Table
	Ledger  *ledger.Ledger
	Sender  notify.Sender
	Shop    shop.Client
	Audit   *storage.AuditLog

	Secret        []byte
	Routing       config.Routing
	DebounceDelay time.Duration
	ReviewDelay   time.Duration
}

// Dispatcher routes authenticated events. It owns the debounce queue and the
// review scheduler so their callbacks share the lock/ledger discipline with
// the direct path.
type Dispatcher struct {
	deps     Deps
	validate *validatorv10.Validate
	queue    *debounce.Queue
	reviews  *scheduler.Scheduler
	nowFunc  func() time.Time
}

// New wires the dispatcher, its debounce queue and its review scheduler.
func New(deps Deps) *Dispatcher {
	d := &Dispatcher{
		deps:     deps,
		validate: newValidator(),
		nowFunc:  time.Now,
	}
	d.queue = debounce.NewQueue(deps.Backend, deps.DebounceDelay, d.verifyCheckout)
	d.reviews = scheduler.New(deps.Backend, reviewDataset, deps.Locks, d.sendReviewRequest)
	return d
}

// Queue exposes the debounce queue for the evaluator loop.
func (d *Dispatcher) Queue() *debounce.Queue { return d.queue }

// Reviews exposes the scheduler for the sweep loop and the operational
// triggers; manual invocations go through the same code paths as timers.
func (d *Dispatcher) Reviews() *scheduler.Scheduler { return d.reviews }

// RegisterWebhookRoutes mounts one POST endpoint per topic family.
func RegisterWebhookRoutes(r *gin.Engine, d *Dispatcher) {
	r.POST("/webhooks/checkouts", d.webhookHandler("checkouts/"))
	r.POST("/webhooks/orders", d.webhookHandler("orders/"))
	r.POST("/webhooks/fulfillments", d.webhookHandler("fulfillments/"))
	r.POST("/webhooks/refunds", d.webhookHandler("refunds/"))
}

// webhookHandler authenticates, classifies and acks a delivery, then routes
// it asynchronously. declaredPrefix is the topic family this endpoint
// accepts; anything else is acked without routing so a probing sender learns
// nothing.
func (d *Dispatcher) webhookHandler(declaredPrefix string) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable_body"})
			return
		}

		if !ValidSignature(d.deps.Secret, body, c.GetHeader(HeaderSignature)) {
			log.Printf("[dispatch] rejected delivery on %s: signature mismatch", c.FullPath())
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_signature"})
			return
		}

		topic := c.GetHeader(HeaderTopic)
		if !strings.HasPrefix(topic, declaredPrefix) {
			log.Printf("[dispatch] acked off-topic delivery on %s: topic=%q", c.FullPath(), topic)
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}

		strategy, ok := d.deps.Routing[topic]
		if !ok {
			log.Printf("[dispatch] acked unrouted topic %q", topic)
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}

		// ack before processing so the sender's retry policy never fires
		// for slow handling
		c.JSON(http.StatusOK, gin.H{"status": "ok"})

		go d.route(topic, strategy, body)
	}
}

// route runs one event's handling. Errors and panics are confined to this
// event; nothing propagates to other deliveries or the server.
func (d *Dispatcher) route(topic, strategy string, body []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[dispatch] topic=%s handler panic: %v", topic, r)
		}
	}()

	ctx := context.Background()
	var err error
	switch strategy {
	case config.StrategyDebounce:
		err = d.routeCheckout(ctx, topic, body)
	case config.StrategySchedule:
		err = d.routeFulfillment(ctx, topic, body)
	case config.StrategyDirect:
		err = d.routeDirect(ctx, topic, body)
	default:
		log.Printf("[dispatch] topic=%s unknown strategy %q", topic, strategy)
		return
	}
	if err != nil {
		log.Printf("[dispatch] topic=%s handling failed: %v", topic, err)
	}
}
