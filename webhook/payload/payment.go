package payload

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

/* PaymentData is the data object of a payment provider event
 * Amounts are decoded with decimal so "49.90" and 49.9 both survive intact
 */
type PaymentData struct {
	OrderID         string            `json:"order_id"`
	PaymentID       string            `json:"payment_id"`
	Amount          decimal.Decimal   `json:"amount"`
	Currency        string            `json:"currency"`
	Customer        Customer          `json:"customer"`
	LineItems       []LineItem        `json:"line_items"`
	ShippingAddress *Address          `json:"shipping_address,omitempty"`
	BillingAddress  *Address          `json:"billing_address,omitempty"`
	TrackingNumber  string            `json:"tracking_number,omitempty"`
	FailureReason   string            `json:"failure_reason,omitempty"`
	Metadata        map[string]any    `json:"metadata,omitempty"`
}

// Customer is the buyer as reported by the payment provider
type Customer struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

// LineItem is one purchased item
type LineItem struct {
	ProductID string           `json:"product_id"`
	VariantID string           `json:"variant_id"`
	SKU       string           `json:"sku"`
	Title     string           `json:"title"`
	Quantity  int              `json:"quantity"`
	Price     *decimal.Decimal `json:"price,omitempty"`
}

// Address is a postal address in the payment provider's field naming
type Address struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone"`
}

// OrderID reads only data.order_id, as a string or a number; other fields
// may have any shape
func (e Envelope) OrderID() (string, error) {
	var ref struct {
		OrderID json.RawMessage `json:"order_id"`
	}
	if err := json.Unmarshal(e.Data, &ref); err != nil {
		return "", fmt.Errorf("decoding payment data: %w", err)
	}
	if len(ref.OrderID) == 0 || string(ref.OrderID) == "null" {
		return "", nil
	}

	var s string
	if err := json.Unmarshal(ref.OrderID, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(ref.OrderID, &n); err != nil {
		return "", fmt.Errorf("order_id must be a string or a number")
	}
	return n.String(), nil
}

// Payment decodes the envelope data as PaymentData
func (e Envelope) Payment() (PaymentData, error) {
	var data PaymentData
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return PaymentData{}, fmt.Errorf("decoding payment data: %w", err)
	}
	return data, nil
}
