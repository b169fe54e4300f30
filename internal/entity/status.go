package entity

import "fmt"

type OrderStatus string

const (
	Pending    OrderStatus = "Pending"
	Processing OrderStatus = "Processing"
	Shipped    OrderStatus = "Shipped"
	Delivered  OrderStatus = "Delivered"
	Cancelled  OrderStatus = "Cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case Pending, Processing, Shipped, Delivered, Cancelled:
		return true
	default:
		return false
	}
}

// UnmarshalText accepts the known statuses and the empty string, which is
// what a snapshot sent without a status encodes to.
func (s *OrderStatus) UnmarshalText(text []byte) error {
	v := OrderStatus(text)
	if v == "" {
		*s = ""

		return nil
	}

	if !v.Valid() {
		return fmt.Errorf("unknown order status %q", text)
	}

	*s = v

	return nil
}
