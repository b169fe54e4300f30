package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/andreyxaxa/order-relay/pkg/types/errs"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderSnapshot is the flattened view of an order taken when the order was
// created. It is passed by value between the queue, the broker and the
// notification step and never changed afterwards.
type OrderSnapshot struct {
	ID            uuid.UUID       `json:"id"`
	OrderNumber   string          `json:"orderNumber"`
	OrderDate     time.Time       `json:"orderDate"`
	Status        OrderStatus     `json:"status,omitempty"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	CustomerEmail *string         `json:"customerEmail,omitempty"`
	LineItems     []LineItem      `json:"lineItems"`
}

// LineItem -. LineTotal is filled by the producer; consumers never recompute it.
type LineItem struct {
	ProductName string          `json:"productName"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Quantity    int             `json:"quantity"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
}

// NewLineItem computes LineTotal as UnitPrice * Quantity.
func NewLineItem(productName string, unitPrice decimal.Decimal, quantity int) LineItem {
	return LineItem{
		ProductName: productName,
		UnitPrice:   unitPrice,
		Quantity:    quantity,
		LineTotal:   unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

// Recipient returns the notification address, or "" when there is none.
func (s OrderSnapshot) Recipient() string {
	if s.CustomerEmail == nil {
		return ""
	}

	return *s.CustomerEmail
}

func (s OrderSnapshot) Marshal() ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("OrderSnapshot - Marshal - json.Marshal: %w", err)
	}

	return b, nil
}

// UnmarshalSnapshot decodes a snapshot from its wire form. Empty input, JSON
// null, non-objects and snapshots without an id are rejected with
// errs.ErrInvalidSnapshot.
func UnmarshalSnapshot(data []byte) (OrderSnapshot, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return OrderSnapshot{}, fmt.Errorf("UnmarshalSnapshot: %w", errs.ErrInvalidSnapshot)
	}

	var s OrderSnapshot
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return OrderSnapshot{}, fmt.Errorf("UnmarshalSnapshot - json.Unmarshal: %w: %w", errs.ErrInvalidSnapshot, err)
	}

	if s.ID == uuid.Nil {
		return OrderSnapshot{}, fmt.Errorf("UnmarshalSnapshot - missing id: %w", errs.ErrInvalidSnapshot)
	}

	return s, nil
}
