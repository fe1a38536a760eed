package commerce

import (
	"time"

	"github.com/shopspring/decimal"
)

// Address is a postal address in the local model
type Address struct {
	Name       string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
	Phone      string
}

// Customer is the buyer of an order
type Customer struct {
	Email     string
	FirstName string
	LastName  string
	Phone     string
}

// LineItem is one product line of an order. A nil Price is sent as 0.00.
type LineItem struct {
	ProductID string
	VariantID string
	SKU       string
	Title     string
	Quantity  int
	Price     *decimal.Decimal
}

// Order is the local representation of an order to be synced
type Order struct {
	ID                string
	Email             string
	Customer          *Customer
	LineItems         []LineItem
	Total             decimal.Decimal
	Currency          string
	ShippingAddress   *Address
	BillingAddress    *Address
	FinancialStatus   string
	FulfillmentStatus string
	TrackingNumber    string
	Tags              []string
	Note              string
	CreatedAt         time.Time
}

// Product is the local representation of a catalog product
type Product struct {
	ID          string
	Title       string
	Description string
	Vendor      string
	ProductType string
	SKU         string
	Price       *decimal.Decimal
	Inventory   int
	Tags        []string
}
