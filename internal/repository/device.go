package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/click2call/relay-server-go/internal/model"
)

type DeviceRepository interface {
	FindByPairingCode(ctx context.Context, code string) (*model.Device, error)
	Upsert(ctx context.Context, params model.UpsertDeviceParams) (*model.Device, error)
	MarkPaired(ctx context.Context, id string) (*model.Device, error)
	MarkUnpaired(ctx context.Context, id string) error
}

type deviceRepo struct {
	db *sqlx.DB
}

func NewDeviceRepository(db *sqlx.DB) DeviceRepository {
	return &deviceRepo{db: db}
}

func (r *deviceRepo) FindByPairingCode(ctx context.Context, code string) (*model.Device, error) {
	var device model.Device
	err := r.db.GetContext(ctx, &device, `
		SELECT * FROM devices WHERE pairing_code = $1
	`, code)
	return HandleNotFound(&device, err)
}

// Upsert creates the device for a pairing code or refreshes its token and
// name. The id and pairing state of an existing row are left untouched.
func (r *deviceRepo) Upsert(ctx context.Context, params model.UpsertDeviceParams) (*model.Device, error) {
	var device model.Device
	err := r.db.GetContext(ctx, &device, `
		INSERT INTO devices (id, pairing_code, fcm_token, device_name, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (pairing_code) DO UPDATE SET
			fcm_token = EXCLUDED.fcm_token,
			device_name = EXCLUDED.device_name,
			updated_at = NOW()
		RETURNING *
	`, uuid.NewString(), params.PairingCode, params.FCMToken, params.DeviceName)
	if err != nil {
		return nil, err
	}
	return &device, nil
}

func (r *deviceRepo) MarkPaired(ctx context.Context, id string) (*model.Device, error) {
	var device model.Device
	err := r.db.GetContext(ctx, &device, `
		UPDATE devices SET
			is_paired = TRUE,
			paired_at = NOW()
		WHERE id = $1
		RETURNING *
	`, id)
	return HandleNotFound(&device, err)
}

func (r *deviceRepo) MarkUnpaired(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE devices SET
			is_paired = FALSE,
			paired_at = NULL
		WHERE id = $1
	`, id)
	return err
}
