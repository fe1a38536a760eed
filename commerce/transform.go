package commerce

import (
	"encoding/json"
	"fmt"

	"github.com/marcelsud/storesync/syncqueue"
	"github.com/marcelsud/storesync/webhook/payload"
)

// OrderFromEvent builds the Order a queued payment event stands for
func OrderFromEvent(ev syncqueue.Event) (Order, error) {
	var data payload.PaymentData
	if len(ev.Data) > 0 && string(ev.Data) != "null" {
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			return Order{}, fmt.Errorf("decoding event %s data: %w", ev.ID, err)
		}
	}

	o := Order{
		ID:              ev.OrderID,
		Email:           data.Customer.Email,
		Total:           data.Amount,
		Currency:        data.Currency,
		ShippingAddress: fromPaymentAddress(data.ShippingAddress),
		BillingAddress:  fromPaymentAddress(data.BillingAddress),
		TrackingNumber:  data.TrackingNumber,
		CreatedAt:       ev.ReceivedAt,
		Tags:            []string{"event-" + string(ev.Type)},
	}
	if o.ID == "" {
		o.ID = data.OrderID
	}
	if data.Customer != (payload.Customer{}) {
		o.Customer = &Customer{
			Email:     data.Customer.Email,
			FirstName: data.Customer.FirstName,
			LastName:  data.Customer.LastName,
			Phone:     data.Customer.Phone,
		}
	}
	for _, li := range data.LineItems {
		o.LineItems = append(o.LineItems, LineItem{
			ProductID: li.ProductID,
			VariantID: li.VariantID,
			SKU:       li.SKU,
			Title:     li.Title,
			Quantity:  li.Quantity,
			Price:     li.Price,
		})
	}

	switch ev.Type {
	case syncqueue.OrderCreated:
		o.FinancialStatus = "pending"
	case syncqueue.PaymentSucceeded:
		o.FinancialStatus = "paid"
	case syncqueue.OrderFulfilled:
		o.FinancialStatus = "paid"
		o.FulfillmentStatus = "fulfilled"
	}
	if data.PaymentID != "" {
		o.Note = "payment " + data.PaymentID
	}
	if o.ID == "" {
		return Order{}, fmt.Errorf("event %s carries no order id", ev.ID)
	}
	return o, nil
}

func fromPaymentAddress(a *payload.Address) *Address {
	if a == nil {
		return nil
	}
	return &Address{
		Name:       a.Name,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		Phone:      a.Phone,
	}
}
