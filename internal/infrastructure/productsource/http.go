package productsource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/andreyxaxa/order-relay/internal/entity"
	"github.com/andreyxaxa/order-relay/pkg/types/errs"
	"github.com/sony/gobreaker"
)

const _maxBodySize = 32 << 20

// HTTPSource reads the product catalogue from an upstream JSON endpoint.
// Calls go through a circuit breaker; an open breaker and connection-level
// failures are reported as errs.ErrUnavailable.
type HTTPSource struct {
	client      *http.Client
	productsURL string
	healthURL   string
	cb          *gobreaker.CircuitBreaker
}

func New(productsURL, healthURL string, timeout time.Duration, tripAfter uint32, openFor time.Duration) *HTTPSource {
	return &HTTPSource{
		client:      &http.Client{Timeout: timeout},
		productsURL: productsURL,
		healthURL:   healthURL,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "product-source",
			Timeout: openFor,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= tripAfter
			},
		}),
	}
}

func (s *HTTPSource) FetchProducts(ctx context.Context) ([]entity.Product, error) {
	res, err := s.cb.Execute(func() (interface{}, error) {
		return s.fetch(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("HTTPSource - FetchProducts - %s: %w", err, errs.ErrUnavailable)
		}

		return nil, fmt.Errorf("HTTPSource - FetchProducts: %w", err)
	}

	return res.([]entity.Product), nil
}

func (s *HTTPSource) fetch(ctx context.Context) ([]entity.Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.productsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch - http.NewRequestWithContext: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("fetch - status %d: %w", resp.StatusCode, errs.ErrUnavailable)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch - unexpected status %d", resp.StatusCode)
	}

	var products []entity.Product

	err = json.NewDecoder(io.LimitReader(resp.Body, _maxBodySize)).Decode(&products)
	if err != nil {
		return nil, fmt.Errorf("fetch - json.Decode: %w", err)
	}

	return products, nil
}

// Available probes the health URL with a HEAD request.
func (s *HTTPSource) Available(ctx context.Context) bool {
	if s.cb.State() == gobreaker.StateOpen {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.healthURL, nil)
	if err != nil {
		return false
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()

	return resp.StatusCode < http.StatusBadRequest
}

// classify marks transport failures (refused, reset, timeouts) as
// unavailability using the error types rather than their text.
func classify(err error) error {
	var (
		opErr  *net.OpError
		netErr net.Error
	)

	if errors.As(err, &opErr) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("fetch - s.client.Do: %w: %w", errs.ErrUnavailable, err)
	}

	return fmt.Errorf("fetch - s.client.Do: %w", err)
}
