package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/click2call/relay-server-go/internal/audit"
	apperrors "github.com/click2call/relay-server-go/internal/errors"
	"github.com/click2call/relay-server-go/internal/repository"
	"github.com/click2call/relay-server-go/internal/util"
)

type PairResult struct {
	DeviceID   string
	DeviceName string
}

type UnpairResult struct {
	DeviceID        string
	AlreadyUnpaired bool
}

type StatusResult struct {
	IsPaired bool
	DeviceID string
}

// PairingService moves devices between the paired and unpaired states.
// Concurrent calls for one code are last-writer-wins.
type PairingService struct {
	devices repository.DeviceRepository
}

func NewPairingService(devices repository.DeviceRepository) *PairingService {
	return &PairingService{devices: devices}
}

func (s *PairingService) Pair(ctx context.Context, code string) (*PairResult, error) {
	if code == "" {
		return nil, apperrors.MissingRequired("pairingCode")
	}
	if !util.IsValidPairingCode(code) {
		return nil, apperrors.InvalidPairingCode("Invalid pairing code format")
	}

	device, err := s.devices.FindByPairingCode(ctx, code)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if device == nil {
		log.Warn().Str("pairingCode", util.MaskCode(code)).Msg("pair: no device for code")
		return nil, apperrors.NotFound("Invalid pairing code. No device found.")
	}
	if !device.HasPushToken() {
		return nil, apperrors.NotRegistered("Device not yet registered. Please open the app on your phone first.")
	}

	paired, err := s.devices.MarkPaired(ctx, device.ID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if paired == nil {
		return nil, apperrors.NotFound("Invalid pairing code. No device found.")
	}

	log.Info().
		Str("deviceId", paired.ID).
		Str("pairingCode", util.MaskCode(code)).
		Msg("device paired")

	audit.Log(ctx, audit.Event{
		Type:        audit.EventDevicePair,
		DeviceID:    paired.ID,
		PairingCode: code,
	})

	return &PairResult{DeviceID: paired.ID, DeviceName: paired.DeviceName}, nil
}

// Unpair is best effort: an unknown code is reported as already unpaired.
func (s *PairingService) Unpair(ctx context.Context, code string) (*UnpairResult, error) {
	if code == "" {
		return nil, apperrors.MissingRequired("pairingCode")
	}

	device, err := s.devices.FindByPairingCode(ctx, code)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if device == nil {
		return &UnpairResult{AlreadyUnpaired: true}, nil
	}

	if err := s.devices.MarkUnpaired(ctx, device.ID); err != nil {
		return nil, apperrors.Database(err)
	}

	log.Info().
		Str("deviceId", device.ID).
		Str("pairingCode", util.MaskCode(code)).
		Msg("device unpaired")

	audit.Log(ctx, audit.Event{
		Type:        audit.EventDeviceUnpair,
		DeviceID:    device.ID,
		PairingCode: code,
	})

	return &UnpairResult{DeviceID: device.ID}, nil
}

func (s *PairingService) CheckStatus(ctx context.Context, code string) (*StatusResult, error) {
	if code == "" {
		return nil, apperrors.MissingRequired("pairingCode")
	}

	device, err := s.devices.FindByPairingCode(ctx, code)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if device == nil {
		return &StatusResult{IsPaired: false}, nil
	}

	return &StatusResult{IsPaired: device.IsPaired, DeviceID: device.ID}, nil
}
