package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/click2call/relay-server-go/internal/audit"
	apperrors "github.com/click2call/relay-server-go/internal/errors"
	"github.com/click2call/relay-server-go/internal/model"
	"github.com/click2call/relay-server-go/internal/push"
	"github.com/click2call/relay-server-go/internal/repository"
	"github.com/click2call/relay-server-go/internal/util"
)

// Sender dispatches one push message and returns the transport's message id.
type Sender interface {
	Send(ctx context.Context, msg push.Message) (string, error)
}

// SendResult describes an accepted dispatch. CallLog is nil when the push
// went out but the log row could not be written.
type SendResult struct {
	DeviceID    string
	MessageName string
	CallLog     *model.CallLog
}

// RelayService forwards call requests to paired devices. Each call makes a
// single dispatch attempt.
type RelayService struct {
	devices  repository.DeviceRepository
	callLogs repository.CallLogRepository
	sender   Sender
	cipher   *TokenCipher
	now      func() time.Time
}

// NewRelayService accepts a nil sender; requests then fail until push
// credentials are configured.
func NewRelayService(
	devices repository.DeviceRepository,
	callLogs repository.CallLogRepository,
	sender Sender,
	cipher *TokenCipher,
) *RelayService {
	return &RelayService{
		devices:  devices,
		callLogs: callLogs,
		sender:   sender,
		cipher:   cipher,
		now:      time.Now,
	}
}

func (s *RelayService) SendCallRequest(ctx context.Context, code, phoneNumber string) (*SendResult, error) {
	if code == "" || phoneNumber == "" {
		return nil, apperrors.New(apperrors.ErrCodeMissingRequired, "phoneNumber and pairingCode are required")
	}

	device, err := s.devices.FindByPairingCode(ctx, code)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if device == nil {
		return nil, apperrors.NotFound("Device not found. Please check pairing code.")
	}
	if !device.HasPushToken() {
		return nil, apperrors.NotRegistered("Device FCM token not registered")
	}

	if s.sender == nil {
		return nil, apperrors.Internal("FCM_SERVICE_ACCOUNT secret not configured")
	}

	token, err := s.cipher.Open(device.FCMToken)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "Internal server error", err)
	}

	msg := BuildCallRequestMessage(token, phoneNumber, s.now())

	name, err := s.sender.Send(ctx, msg)
	if err != nil {
		appErr := mapSendError(err)
		log.Error().
			Err(err).
			Str("deviceId", device.ID).
			Str("phoneNumber", util.MaskPhone(phoneNumber)).
			Msg("call request dispatch failed")
		audit.Log(ctx, audit.Event{
			Type:        audit.EventCallRequestFailed,
			DeviceID:    device.ID,
			PairingCode: code,
			Details:     map[string]interface{}{"code": string(appErr.Code), "reason": err},
		})
		return nil, appErr
	}

	details := map[string]interface{}{"messageName": name}

	// The push is already accepted; a failed log write is not reported to
	// the caller so that a retry cannot dial twice.
	entry, err := s.callLogs.Create(ctx, model.CreateCallLogParams{
		DeviceID:    device.ID,
		PhoneNumber: phoneNumber,
		Status:      model.CallLogStatusSent,
	})
	if err != nil {
		log.Error().Err(err).Str("deviceId", device.ID).Str("messageName", name).Msg("call request sent but call log insert failed")
		details["callLogWritten"] = false
		details["callLogError"] = err
	} else {
		details["callLogId"] = entry.ID
	}

	log.Info().
		Str("deviceId", device.ID).
		Str("phoneNumber", util.MaskPhone(phoneNumber)).
		Str("messageName", name).
		Msg("call request sent")

	audit.Log(ctx, audit.Event{
		Type:        audit.EventCallRequestSent,
		DeviceID:    device.ID,
		PairingCode: code,
		Details:     details,
	})

	return &SendResult{DeviceID: device.ID, MessageName: name, CallLog: entry}, nil
}

// BuildCallRequestMessage returns the data-only payload the mobile client
// turns into a dial action.
func BuildCallRequestMessage(token, phoneNumber string, at time.Time) push.Message {
	return push.Message{
		Token: token,
		Data: map[string]string{
			"type":        string(model.PushMessageCallRequest),
			"phoneNumber": phoneNumber,
			"timestamp":   strconv.FormatInt(at.UnixMilli(), 10),
		},
		Android: &push.AndroidConfig{Priority: push.PriorityHigh},
	}
}

func mapSendError(err error) *apperrors.AppError {
	var authErr *push.AuthError
	if errors.As(err, &authErr) {
		return apperrors.PushAuthFailed(authErr.Err)
	}

	var deliveryErr *push.DeliveryError
	if errors.As(err, &deliveryErr) {
		return apperrors.DeliveryFailed(deliveryErr.Message, err)
	}

	return apperrors.DeliveryFailed(err.Error(), err)
}
