package entity

import "time"

type IdempotencyRecord struct {
	Key             string            `json:"key" dynamodbav:"idempotency_key"`
	CreatedAt       time.Time         `json:"created_at" dynamodbav:"created_at"`
	RequestHash     string            `json:"request_hash" dynamodbav:"request_hash"`
	ResponsePayload []byte            `json:"response_payload,omitempty" dynamodbav:"response_payload,omitempty"`
	ResponseStatus  int               `json:"response_status" dynamodbav:"response_status"`
	ResponseHeaders map[string]string `json:"response_headers,omitempty" dynamodbav:"response_headers,omitempty"`
}

// HasResponse reports whether the first execution got as far as persisting
// its response.
func (r *IdempotencyRecord) HasResponse() bool {
	return r != nil && r.ResponseStatus != 0
}

// CommandResponse is what a guarded command produces and what gets replayed.
type CommandResponse struct {
	Status  int
	Payload []byte
	Headers map[string]string
}
