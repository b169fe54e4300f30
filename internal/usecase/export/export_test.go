package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/andreyxaxa/order-relay/internal/entity"
	"github.com/andreyxaxa/order-relay/pkg/logger"
	"github.com/andreyxaxa/order-relay/pkg/types/errs"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	products  []entity.Product
	err       error
	available bool
}

func (s stubSource) FetchProducts(context.Context) ([]entity.Product, error) {
	return s.products, s.err
}

func (s stubSource) Available(context.Context) bool {
	return s.available
}

type memoryStorage struct {
	objects map[string][]byte
	err     error
}

func (m *memoryStorage) Upload(_ context.Context, key string, data io.Reader, _ string, size int64) error {
	if m.err != nil {
		return m.err
	}

	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}

	if int64(len(b)) != size {
		return fmt.Errorf("size mismatch: %d != %d", len(b), size)
	}

	m.objects[key] = b

	return nil
}

func newExport(src stubSource, st *memoryStorage) *ProductExport {
	e := NewProductExport(src, st, "exports/", logger.NewNop())
	e.now = func() time.Time { return time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC) }

	return e
}

func TestRun_Success(t *testing.T) {
	st := &memoryStorage{objects: map[string][]byte{}}
	src := stubSource{products: []entity.Product{{ID: "p1", Name: "Mug", Price: decimal.NewFromInt(10), Stock: 3}}}

	result := newExport(src, st).Run(context.Background())

	require.Equal(t, entity.Success, result)
	body, ok := st.objects["exports/products-20261015T080000Z.json"]
	require.True(t, ok)
	assert.JSONEq(t, `[{"id":"p1","name":"Mug","price":"10","stock":3}]`, string(body))
}

func TestRun_UnavailableSource(t *testing.T) {
	st := &memoryStorage{objects: map[string][]byte{}}
	src := stubSource{err: fmt.Errorf("fetch: %w", errs.ErrUnavailable)}

	assert.Equal(t, entity.Unavailable, newExport(src, st).Run(context.Background()))
	assert.Empty(t, st.objects)
}

func TestRun_Failures(t *testing.T) {
	assert.Equal(t, entity.Failed,
		newExport(stubSource{err: errors.New("bad json")}, &memoryStorage{objects: map[string][]byte{}}).Run(context.Background()))

	assert.Equal(t, entity.Failed,
		newExport(stubSource{}, &memoryStorage{err: errors.New("s3 down")}).Run(context.Background()))
}

func TestAvailable_DelegatesToSource(t *testing.T) {
	assert.True(t, newExport(stubSource{available: true}, nil).Available(context.Background()))
	assert.Equal(t, "product-export", newExport(stubSource{}, nil).Name())
}
