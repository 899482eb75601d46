package dispatch

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"
)

// Inbound request headers.
const (
	HeaderTopic     = "X-Shopify-Topic"
	HeaderSignature = "X-Shopify-Hmac-Sha256"
)

// Customer is the contact block embedded in several event payloads.
type Customer struct {
	Phone     string `json:"phone"`
	FirstName string `json:"first_name"`
	Locale    string `json:"locale"`
}

// CheckoutEvent is a checkouts/create or checkouts/update delivery.
type CheckoutEvent struct {
	Token       string    `json:"token" validate:"required"`
	Phone       string    `json:"phone"`
	Email       string    `json:"email"`
	RecoveryURL string    `json:"abandoned_checkout_url"`
	TotalPrice  string    `json:"total_price"`
	Currency    string    `json:"currency"`
	Customer    *Customer `json:"customer"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// OrderEvent is an orders/create delivery.
type OrderEvent struct {
	ID          int64     `json:"id" validate:"required"`
	OrderNumber int       `json:"order_number"`
	Phone       string    `json:"phone"`
	TotalPrice  string    `json:"total_price"`
	Currency    string    `json:"currency"`
	Customer    *Customer `json:"customer"`
}

// FulfillmentEvent is a fulfillments/update delivery.
type FulfillmentEvent struct {
	ID             int64     `json:"id" validate:"required"`
	OrderID        int64     `json:"order_id"`
	ShipmentStatus string    `json:"shipment_status"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// RefundEvent is a refunds/create delivery.
type RefundEvent struct {
	ID       int64     `json:"id" validate:"required"`
	OrderID  int64     `json:"order_id" validate:"required"`
	Note     string    `json:"note"`
	Amount   string    `json:"amount"`
	Currency string    `json:"currency"`
	Customer *Customer `json:"customer"`
}

// ShipmentStatusDelivered is the fulfillment state that starts the review
// countdown.
const ShipmentStatusDelivered = "delivered"

// newValidator returns the configured payload validator.
func newValidator() *validatorv10.Validate {
	v := validatorv10.New()

	// a delivered fulfillment must reference its order, or there is no
	// entity to schedule against
	v.RegisterStructValidation(func(sl validatorv10.StructLevel) {
		ev := sl.Current().Interface().(FulfillmentEvent)
		if ev.ShipmentStatus == ShipmentStatusDelivered && ev.OrderID == 0 {
			sl.ReportError(ev.OrderID, "order_id", "OrderID", "required_when_delivered", "")
		}
	}, FulfillmentEvent{})

	return v
}

// decodeEvent unmarshals and validates body into out.
func decodeEvent(v *validatorv10.Validate, body []byte, out interface{}) error {
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if err := v.Struct(out); err != nil {
		return fmt.Errorf("validate payload: %w", err)
	}
	return nil
}

// contactPhone picks the first reachable phone from the event-level and
// customer-level fields.
func contactPhone(eventPhone string, customer *Customer) string {
	if eventPhone != "" {
		return eventPhone
	}
	if customer != nil {
		return customer.Phone
	}
	return ""
}

func contactLocale(customer *Customer) string {
	if customer != nil && customer.Locale != "" {
		return customer.Locale
	}
	return "en"
}

func contactName(customer *Customer) string {
	if customer != nil {
		return customer.FirstName
	}
	return ""
}

func orderKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
