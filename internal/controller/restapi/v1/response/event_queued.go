package response

type EventQueued struct {
	ID          string `json:"id"`
	OrderNumber string `json:"order_number"`
	Queued      bool   `json:"queued"`
}
