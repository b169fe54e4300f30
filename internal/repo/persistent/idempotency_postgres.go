package persistent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/andreyxaxa/order-relay/internal/entity"
	"github.com/andreyxaxa/order-relay/pkg/postgres"
	"github.com/andreyxaxa/order-relay/pkg/types/errs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	// Table
	idempotencyTable = "idempotency_keys"

	// Columns
	idemKeyColumn             = "key"
	idemCreatedAtColumn       = "created_at"
	idemRequestHashColumn     = "request_hash"
	idemResponsePayloadColumn = "response_payload"
	idemResponseStatusColumn  = "response_status"
	idemResponseHeadersColumn = "response_headers"

	uniqueViolationCode = "23505"
)

type IdempotencyPostgresRepo struct {
	*postgres.Postgres
}

func NewIdempotencyPostgresRepo(pg *postgres.Postgres) *IdempotencyPostgresRepo {
	return &IdempotencyPostgresRepo{pg}
}

// Get returns (nil, nil) when the key is unknown.
func (r *IdempotencyPostgresRepo) Get(ctx context.Context, key string) (*entity.IdempotencyRecord, error) {
	sql, args, err := r.Builder.
		Select(
			idemKeyColumn,
			idemCreatedAtColumn,
			idemRequestHashColumn,
			idemResponsePayloadColumn,
			idemResponseStatusColumn,
			idemResponseHeadersColumn,
		).
		From(idempotencyTable).
		Where(idemKeyColumn+" = ?", key).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("IdempotencyPostgresRepo - Get - r.Builder.ToSql: %w", err)
	}

	var (
		rec     entity.IdempotencyRecord
		status  *int
		headers []byte
	)

	err = r.GetExecutor(ctx).QueryRow(ctx, sql, args...).Scan(
		&rec.Key,
		&rec.CreatedAt,
		&rec.RequestHash,
		&rec.ResponsePayload,
		&status,
		&headers,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("IdempotencyPostgresRepo - Get - row.Scan: %w", err)
	}

	if status != nil {
		rec.ResponseStatus = *status
	}

	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &rec.ResponseHeaders); err != nil {
			return nil, fmt.Errorf("IdempotencyPostgresRepo - Get - json.Unmarshal: %w", err)
		}
	}

	return &rec, nil
}

// Create inserts a new record. A second insert of the same key fails with
// errs.ErrDuplicateKey.
func (r *IdempotencyPostgresRepo) Create(ctx context.Context, record *entity.IdempotencyRecord) error {
	headers, err := marshalHeaders(record.ResponseHeaders)
	if err != nil {
		return fmt.Errorf("IdempotencyPostgresRepo - Create: %w", err)
	}

	sql, args, err := r.Builder.
		Insert(idempotencyTable).
		Columns(
			idemKeyColumn,
			idemCreatedAtColumn,
			idemRequestHashColumn,
			idemResponsePayloadColumn,
			idemResponseStatusColumn,
			idemResponseHeadersColumn,
		).
		Values(
			record.Key,
			record.CreatedAt,
			record.RequestHash,
			record.ResponsePayload,
			record.ResponseStatus,
			headers,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("IdempotencyPostgresRepo - Create - r.Builder.ToSql: %w", err)
	}

	_, err = r.GetExecutor(ctx).Exec(ctx, sql, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return fmt.Errorf("IdempotencyPostgresRepo - Create: %w", errs.ErrDuplicateKey)
		}

		return fmt.Errorf("IdempotencyPostgresRepo - Create - executor.Exec: %w", err)
	}

	return nil
}

// UpdateResponse fills the response of a record whose first execution never
// stored one.
func (r *IdempotencyPostgresRepo) UpdateResponse(ctx context.Context, record *entity.IdempotencyRecord) error {
	headers, err := marshalHeaders(record.ResponseHeaders)
	if err != nil {
		return fmt.Errorf("IdempotencyPostgresRepo - UpdateResponse: %w", err)
	}

	sql, args, err := r.Builder.
		Update(idempotencyTable).
		Set(idemResponsePayloadColumn, record.ResponsePayload).
		Set(idemResponseStatusColumn, record.ResponseStatus).
		Set(idemResponseHeadersColumn, headers).
		Where(idemKeyColumn+" = ?", record.Key).
		ToSql()
	if err != nil {
		return fmt.Errorf("IdempotencyPostgresRepo - UpdateResponse - r.Builder.ToSql: %w", err)
	}

	tag, err := r.GetExecutor(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("IdempotencyPostgresRepo - UpdateResponse - executor.Exec: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("IdempotencyPostgresRepo - UpdateResponse: %w", errs.ErrRecordNotFound)
	}

	return nil
}

func marshalHeaders(headers map[string]string) ([]byte, error) {
	if len(headers) == 0 {
		return nil, nil
	}

	b, err := json.Marshal(headers)
	if err != nil {
		return nil, fmt.Errorf("marshalHeaders - json.Marshal: %w", err)
	}

	return b, nil
}
