package entity

import (
	"testing"
	"time"

	"github.com/andreyxaxa/order-relay/pkg/types/errs"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLineItem_ComputesTotal(t *testing.T) {
	item := NewLineItem("Mug", decimal.RequireFromString("10.00"), 2)

	assert.True(t, item.LineTotal.Equal(decimal.RequireFromString("20.00")))
}

func TestUnmarshalSnapshot_WireFormat(t *testing.T) {
	body := `{
		"id": "6f1c1f7e-8a39-4d4b-9a55-0b7b9f0f4a11",
		"orderNumber": "ORD-1001",
		"orderDate": "2026-10-01T12:00:00Z",
		"status": "Pending",
		"totalAmount": "20.00",
		"customerEmail": "jane@example.com",
		"lineItems": [{"productName": "Mug", "unitPrice": 10.00, "quantity": 2, "lineTotal": "20.00"}]
	}`

	s, err := UnmarshalSnapshot([]byte(body))
	require.NoError(t, err)

	assert.Equal(t, uuid.MustParse("6f1c1f7e-8a39-4d4b-9a55-0b7b9f0f4a11"), s.ID)
	assert.Equal(t, "ORD-1001", s.OrderNumber)
	assert.Equal(t, Pending, s.Status)
	assert.Equal(t, time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC), s.OrderDate.UTC())
	assert.Equal(t, "jane@example.com", s.Recipient())
	require.Len(t, s.LineItems, 1)
	assert.Equal(t, 2, s.LineItems[0].Quantity)
	assert.True(t, s.LineItems[0].LineTotal.Equal(decimal.NewFromInt(20)))
}

func TestUnmarshalSnapshot_Rejects(t *testing.T) {
	inputs := map[string]string{
		"empty":      "",
		"null":       "null",
		"array":      "[]",
		"garbage":    "not json",
		"no id":      `{"orderNumber":"X"}`,
		"bad status": `{"id":"6f1c1f7e-8a39-4d4b-9a55-0b7b9f0f4a11","status":"Lost"}`,
	}

	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := UnmarshalSnapshot([]byte(in))
			assert.ErrorIs(t, err, errs.ErrInvalidSnapshot)
		})
	}
}

func TestRecipient_Missing(t *testing.T) {
	assert.Empty(t, OrderSnapshot{}.Recipient())
}

func TestSnapshot_RoundTrip(t *testing.T) {
	email := "jane@example.com"

	tests := []struct {
		name     string
		snapshot OrderSnapshot
	}{
		{
			name: "full",
			snapshot: OrderSnapshot{
				ID:            uuid.New(),
				OrderNumber:   "ORD-1001",
				OrderDate:     time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
				Status:        Shipped,
				TotalAmount:   decimal.RequireFromString("20.00"),
				CustomerEmail: &email,
				LineItems: []LineItem{
					NewLineItem("Mug", decimal.RequireFromString("10.00"), 2),
				},
			},
		},
		{
			name: "optional fields missing",
			snapshot: OrderSnapshot{
				ID:          uuid.New(),
				OrderNumber: "A1",
				LineItems: []LineItem{
					NewLineItem("Pen", decimal.RequireFromString("1.50"), 4),
				},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			body, err := tc.snapshot.Marshal()
			require.NoError(t, err)

			got, err := UnmarshalSnapshot(body)
			require.NoError(t, err)

			assert.Equal(t, tc.snapshot.ID, got.ID)
			assert.Equal(t, tc.snapshot.OrderNumber, got.OrderNumber)
			assert.Equal(t, tc.snapshot.Status, got.Status)
			assert.True(t, tc.snapshot.OrderDate.Equal(got.OrderDate))
			assert.True(t, tc.snapshot.TotalAmount.Equal(got.TotalAmount))
			assert.Equal(t, tc.snapshot.Recipient(), got.Recipient())
			require.Len(t, got.LineItems, len(tc.snapshot.LineItems))
			assert.True(t, tc.snapshot.LineItems[0].LineTotal.Equal(got.LineItems[0].LineTotal))
		})
	}
}

func TestUnmarshalSnapshot_WithoutStatusRoundTrips(t *testing.T) {
	body := `{"id":"6f1c1f7e-8a39-4d4b-9a55-0b7b9f0f4a11","orderNumber":"A1","lineItems":[{"productName":"Pen","unitPrice":"1.50","quantity":4,"lineTotal":"6.00"}]}`

	s, err := UnmarshalSnapshot([]byte(body))
	require.NoError(t, err)
	assert.Empty(t, s.Status)

	again, err := s.Marshal()
	require.NoError(t, err)

	decoded, err := UnmarshalSnapshot(again)
	require.NoError(t, err)
	assert.Equal(t, s.ID, decoded.ID)
}
