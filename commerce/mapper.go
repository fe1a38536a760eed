package commerce

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// SourceTag is added to every order and product created by this service
const SourceTag = "storesync"

// WireAddress is the platform address shape
type WireAddress struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Address1  string `json:"address1,omitempty"`
	Address2  string `json:"address2,omitempty"`
	City      string `json:"city,omitempty"`
	Province  string `json:"province,omitempty"`
	Zip       string `json:"zip,omitempty"`
	Country   string `json:"country,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// WireCustomer is the platform customer shape
type WireCustomer struct {
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// WireLineItem is the platform line item shape
type WireLineItem struct {
	Title     string `json:"title"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
	SKU       string `json:"sku,omitempty"`
	VariantID string `json:"variant_id,omitempty"`
	ProductID string `json:"product_id,omitempty"`
}

// WireOrder is the body of POST /orders.json
type WireOrder struct {
	Email             string         `json:"email,omitempty"`
	Customer          *WireCustomer  `json:"customer,omitempty"`
	LineItems         []WireLineItem `json:"line_items"`
	TotalPrice        string         `json:"total_price"`
	Currency          string         `json:"currency,omitempty"`
	FinancialStatus   string         `json:"financial_status,omitempty"`
	FulfillmentStatus string         `json:"fulfillment_status,omitempty"`
	ShippingAddress   *WireAddress   `json:"shipping_address,omitempty"`
	BillingAddress    *WireAddress   `json:"billing_address,omitempty"`
	Note              string         `json:"note,omitempty"`
	Tags              string         `json:"tags,omitempty"`
	SourceName        string         `json:"source_name"`
	SourceIdentifier  string         `json:"source_identifier,omitempty"`
}

// WireVariant is one variant of a WireProduct
type WireVariant struct {
	Price               string `json:"price"`
	SKU                 string `json:"sku,omitempty"`
	InventoryQuantity   int    `json:"inventory_quantity"`
	InventoryManagement string `json:"inventory_management,omitempty"`
}

// WireProduct is the body of POST /products.json
type WireProduct struct {
	Title       string        `json:"title"`
	BodyHTML    string        `json:"body_html,omitempty"`
	Vendor      string        `json:"vendor,omitempty"`
	ProductType string        `json:"product_type,omitempty"`
	Tags        string        `json:"tags,omitempty"`
	Variants    []WireVariant `json:"variants"`
}

// FormatPrice renders a two-decimal price string. nil is 0.00.
func FormatPrice(p *decimal.Decimal) string {
	if p == nil {
		return decimal.Zero.StringFixed(2)
	}
	return p.StringFixed(2)
}

// MapOrder converts an Order to the platform shape.
// An order without line items gets one default line built from the total.
func MapOrder(o Order) WireOrder {
	w := WireOrder{
		Email:             o.Email,
		TotalPrice:        o.Total.StringFixed(2),
		Currency:          strings.ToUpper(o.Currency),
		FinancialStatus:   o.FinancialStatus,
		FulfillmentStatus: o.FulfillmentStatus,
		ShippingAddress:   mapAddress(o.ShippingAddress),
		BillingAddress:    mapAddress(o.BillingAddress),
		Note:              o.Note,
		Tags:              orderTags(o),
		SourceName:        SourceTag,
		SourceIdentifier:  o.ID,
	}

	if o.Customer != nil {
		w.Customer = &WireCustomer{
			Email:     o.Customer.Email,
			FirstName: o.Customer.FirstName,
			LastName:  o.Customer.LastName,
			Phone:     o.Customer.Phone,
		}
		if w.Email == "" {
			w.Email = o.Customer.Email
		}
	}

	for _, li := range o.LineItems {
		qty := li.Quantity
		if qty <= 0 {
			qty = 1
		}
		w.LineItems = append(w.LineItems, WireLineItem{
			Title:     li.Title,
			Quantity:  qty,
			Price:     FormatPrice(li.Price),
			SKU:       li.SKU,
			VariantID: li.VariantID,
			ProductID: li.ProductID,
		})
	}
	if len(w.LineItems) == 0 {
		w.LineItems = []WireLineItem{{
			Title:    fmt.Sprintf("Order %s", o.ID),
			Quantity: 1,
			Price:    o.Total.StringFixed(2),
		}}
	}
	return w
}

// MapProduct converts a Product to the platform shape
func MapProduct(p Product) WireProduct {
	tags := append([]string{SourceTag}, p.Tags...)
	return WireProduct{
		Title:       p.Title,
		BodyHTML:    p.Description,
		Vendor:      p.Vendor,
		ProductType: p.ProductType,
		Tags:        joinTags(tags),
		Variants: []WireVariant{{
			Price:               FormatPrice(p.Price),
			SKU:                 p.SKU,
			InventoryQuantity:   p.Inventory,
			InventoryManagement: "shopify",
		}},
	}
}

// mapAddress returns nil for a missing or empty address
func mapAddress(a *Address) *WireAddress {
	if a == nil || *a == (Address{}) {
		return nil
	}
	first, last, _ := strings.Cut(strings.TrimSpace(a.Name), " ")
	return &WireAddress{
		FirstName: first,
		LastName:  strings.TrimSpace(last),
		Address1:  a.Line1,
		Address2:  a.Line2,
		City:      a.City,
		Province:  a.State,
		Zip:       a.PostalCode,
		Country:   a.Country,
		Phone:     a.Phone,
	}
}

func orderTags(o Order) string {
	tags := []string{SourceTag}
	if o.FinancialStatus != "" {
		tags = append(tags, "payment-"+o.FinancialStatus)
	}
	if o.FulfillmentStatus != "" {
		tags = append(tags, "fulfillment-"+o.FulfillmentStatus)
	}
	return joinTags(append(tags, o.Tags...))
}

// joinTags drops blanks and duplicates, keeping first-seen order
func joinTags(tags []string) string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return strings.Join(out, ", ")
}
