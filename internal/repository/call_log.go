package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/click2call/relay-server-go/internal/model"
)

// CallLogRepository is append-only: rows are never updated or deleted here.
type CallLogRepository interface {
	Create(ctx context.Context, params model.CreateCallLogParams) (*model.CallLog, error)
}

type callLogRepo struct {
	db *sqlx.DB
}

func NewCallLogRepository(db *sqlx.DB) CallLogRepository {
	return &callLogRepo{db: db}
}

func (r *callLogRepo) Create(ctx context.Context, params model.CreateCallLogParams) (*model.CallLog, error) {
	var entry model.CallLog
	err := r.db.GetContext(ctx, &entry, `
		INSERT INTO call_logs (id, device_id, phone_number, status)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, uuid.NewString(), params.DeviceID, params.PhoneNumber, params.Status)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
