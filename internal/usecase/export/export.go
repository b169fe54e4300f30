package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/andreyxaxa/order-relay/internal/entity"
	"github.com/andreyxaxa/order-relay/internal/infrastructure"
	"github.com/andreyxaxa/order-relay/internal/repo"
	"github.com/andreyxaxa/order-relay/pkg/logger"
	"github.com/andreyxaxa/order-relay/pkg/types/errs"
)

const (
	_jobName     = "product-export"
	_contentType = "application/json"
)

// ProductExport copies the upstream product catalogue into a timestamped
// object in export storage.
type ProductExport struct {
	source  infrastructure.ProductSource
	storage repo.ExportStorage
	prefix  string
	logger  logger.Interface
	now     func() time.Time
}

func NewProductExport(
	source infrastructure.ProductSource,
	storage repo.ExportStorage,
	prefix string,
	l logger.Interface,
) *ProductExport {
	return &ProductExport{
		source:  source,
		storage: storage,
		prefix:  prefix,
		logger:  l,
		now:     time.Now,
	}
}

func (e *ProductExport) Name() string {
	return _jobName
}

func (e *ProductExport) Available(ctx context.Context) bool {
	return e.source.Available(ctx)
}

func (e *ProductExport) Run(ctx context.Context) entity.RunResult {
	products, err := e.source.FetchProducts(ctx)
	if err != nil {
		if errors.Is(err, errs.ErrUnavailable) {
			e.logger.Info("ProductExport - Run - source unavailable: %v", err)

			return entity.Unavailable
		}

		e.logger.Error(err, "ProductExport - Run - e.source.FetchProducts")

		return entity.Failed
	}

	data, err := json.Marshal(products)
	if err != nil {
		e.logger.Error(err, "ProductExport - Run - json.Marshal")

		return entity.Failed
	}

	key := e.Key(e.now())

	err = e.storage.Upload(ctx, key, bytes.NewReader(data), _contentType, int64(len(data)))
	if err != nil {
		e.logger.Error(err, "ProductExport - Run - e.storage.Upload")

		return entity.Failed
	}

	e.logger.Info("ProductExport - Run - exported %d products to %s", len(products), key)

	return entity.Success
}

// Key names the export object written at t.
func (e *ProductExport) Key(t time.Time) string {
	return fmt.Sprintf("%sproducts-%s.json", e.prefix, t.UTC().Format("20060102T150405Z"))
}
