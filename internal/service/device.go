package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/click2call/relay-server-go/internal/audit"
	apperrors "github.com/click2call/relay-server-go/internal/errors"
	"github.com/click2call/relay-server-go/internal/model"
	"github.com/click2call/relay-server-go/internal/repository"
	"github.com/click2call/relay-server-go/internal/util"
)

type RegisterParams struct {
	PairingCode string
	PushToken   string
	DeviceName  string
}

// DeviceService binds pairing codes to push tokens.
type DeviceService struct {
	devices repository.DeviceRepository
	cipher  *TokenCipher
}

func NewDeviceService(devices repository.DeviceRepository, cipher *TokenCipher) *DeviceService {
	return &DeviceService{devices: devices, cipher: cipher}
}

// Register creates the device for a pairing code or replaces its token and
// name. Pairing state is never changed here.
func (s *DeviceService) Register(ctx context.Context, params RegisterParams) (*model.Device, error) {
	if params.PairingCode == "" || params.PushToken == "" {
		return nil, apperrors.New(apperrors.ErrCodeMissingRequired, "pairingCode and fcmToken are required")
	}
	if !util.IsValidPairingCode(params.PairingCode) {
		return nil, apperrors.InvalidPairingCode("Pairing code must be 6 digits")
	}

	name := strings.TrimSpace(params.DeviceName)
	if name == "" {
		name = model.DefaultDeviceName
	}

	token, err := s.cipher.Seal(params.PushToken)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "Internal server error", err)
	}

	device, err := s.devices.Upsert(ctx, model.UpsertDeviceParams{
		PairingCode: params.PairingCode,
		FCMToken:    token,
		DeviceName:  name,
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}

	log.Info().
		Str("deviceId", device.ID).
		Str("pairingCode", util.MaskCode(params.PairingCode)).
		Str("deviceName", device.DeviceName).
		Msg("device registered")

	audit.Log(ctx, audit.Event{
		Type:        audit.EventDeviceRegister,
		DeviceID:    device.ID,
		PairingCode: params.PairingCode,
	})

	return device, nil
}
