package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/click2call/relay-server-go/internal/middleware"
	"github.com/click2call/relay-server-go/internal/model"
	"github.com/click2call/relay-server-go/internal/push"
	"github.com/click2call/relay-server-go/internal/service"
)

type mockDeviceRepo struct {
	mock.Mock
}

func (m *mockDeviceRepo) FindByPairingCode(ctx context.Context, code string) (*model.Device, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Device), args.Error(1)
}

func (m *mockDeviceRepo) Upsert(ctx context.Context, params model.UpsertDeviceParams) (*model.Device, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Device), args.Error(1)
}

func (m *mockDeviceRepo) MarkPaired(ctx context.Context, id string) (*model.Device, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Device), args.Error(1)
}

func (m *mockDeviceRepo) MarkUnpaired(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockCallLogRepo struct {
	mock.Mock
}

func (m *mockCallLogRepo) Create(ctx context.Context, params model.CreateCallLogParams) (*model.CallLog, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CallLog), args.Error(1)
}

// fakeSender records dispatched messages.
type fakeSender struct {
	sent []push.Message
	err  error
}

func (f *fakeSender) Send(_ context.Context, msg push.Message) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, msg)
	return "projects/p/messages/1", nil
}

const (
	testAPIKey = "test-api-key-0123456789abcdef0123"
	testOrigin = "chrome-extension://abcdefghijklmnop"
)

type testEnv struct {
	devices *mockDeviceRepo
	logs    *mockCallLogRepo
	sender  *fakeSender
	router  http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		devices: new(mockDeviceRepo),
		logs:    new(mockCallLogRepo),
		sender:  &fakeSender{},
	}

	cipher := service.NewTokenCipher(nil)
	h := NewFunctionsHandler(
		service.NewDeviceService(env.devices, cipher),
		service.NewPairingService(env.devices),
		service.NewRelayService(env.devices, env.logs, env.sender, cipher),
	)

	r := chi.NewRouter()
	r.Mount("/functions/v1", h.Group(GroupMiddleware{
		CORS:      middleware.NewCORSMiddleware().Handler,
		BodyLimit: middleware.NewBodyLimitMiddleware(0).Handler,
		APIKey:    middleware.NewAPIKeyMiddleware(testAPIKey).Handler,
	}))
	env.router = r
	return env
}

func (env *testEnv) post(t *testing.T, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(http.MethodPost, "/functions/v1/"+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	req.Header.Set("Origin", testOrigin)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	var decoded map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestRegisterDevice(t *testing.T) {
	t.Run("registers with fcmToken", func(t *testing.T) {
		env := newTestEnv(t)
		env.devices.On("Upsert", mock.Anything, model.UpsertDeviceParams{
			PairingCode: "123456", FCMToken: "tokA", DeviceName: "Android Device",
		}).Return(&model.Device{ID: "d1"}, nil)

		rec, body := env.post(t, "register-device", map[string]string{"pairingCode": "123456", "fcmToken": "tokA"})

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "d1", body["deviceId"])
		assert.Equal(t, "Device registered successfully", body["message"])
	})

	t.Run("accepts pushToken alias", func(t *testing.T) {
		env := newTestEnv(t)
		env.devices.On("Upsert", mock.Anything, mock.MatchedBy(func(p model.UpsertDeviceParams) bool {
			return p.FCMToken == "tokB" && p.DeviceName == "Pixel"
		})).Return(&model.Device{ID: "d1"}, nil)

		rec, _ := env.post(t, "register-device", map[string]string{"pairingCode": "123456", "pushToken": "tokB", "deviceName": "Pixel"})

		assert.Equal(t, http.StatusOK, rec.Code)
		env.devices.AssertExpectations(t)
	})

	t.Run("rejects bad code", func(t *testing.T) {
		env := newTestEnv(t)

		rec, body := env.post(t, "register-device", map[string]string{"pairingCode": "12345", "fcmToken": "tok"})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Pairing code must be 6 digits", body["error"])
		assert.Equal(t, "INVALID_PAIRING_CODE", body["code"])
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		env := newTestEnv(t)

		rec, body := env.post(t, "register-device", "{not json")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "VALIDATION_ERROR", body["code"])
	})

	t.Run("hides storage detail", func(t *testing.T) {
		env := newTestEnv(t)
		env.devices.On("Upsert", mock.Anything, mock.Anything).Return(nil, errors.New("pq: relation devices does not exist"))

		rec, body := env.post(t, "register-device", map[string]string{"pairingCode": "123456", "fcmToken": "tok"})

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "DATABASE_ERROR", body["code"])
		assert.NotContains(t, rec.Body.String(), "pq:")
	})
}

func TestPairDevice(t *testing.T) {
	t.Run("pairs registered device", func(t *testing.T) {
		env := newTestEnv(t)
		env.devices.On("FindByPairingCode", mock.Anything, "123456").Return(&model.Device{ID: "d1", FCMToken: "tokA"}, nil)
		env.devices.On("MarkPaired", mock.Anything, "d1").Return(&model.Device{ID: "d1", DeviceName: "Android Device", IsPaired: true}, nil)

		rec, body := env.post(t, "pair-device", map[string]string{"pairingCode": "123456"})

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "d1", body["deviceId"])
		assert.Equal(t, "Android Device", body["deviceName"])
		assert.Equal(t, "Device paired successfully", body["message"])
	})

	t.Run("unknown code is 404", func(t *testing.T) {
		env := newTestEnv(t)
		env.devices.On("FindByPairingCode", mock.Anything, "999999").Return(nil, nil)

		rec, body := env.post(t, "pair-device", map[string]string{"pairingCode": "999999"})

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Invalid pairing code. No device found.", body["error"])
	})

	t.Run("missing code is 400", func(t *testing.T) {
		env := newTestEnv(t)

		rec, body := env.post(t, "pair-device", map[string]string{})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "pairingCode is required", body["error"])
	})
}

func TestUnpairDevice(t *testing.T) {
	t.Run("disconnects known device", func(t *testing.T) {
		env := newTestEnv(t)
		env.devices.On("FindByPairingCode", mock.Anything, "123456").Return(&model.Device{ID: "d1", IsPaired: true}, nil)
		env.devices.On("MarkUnpaired", mock.Anything, "d1").Return(nil)

		rec, body := env.post(t, "unpair-device", map[string]string{"pairingCode": "123456"})

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Device disconnected successfully", body["message"])
	})

	t.Run("unknown code still succeeds", func(t *testing.T) {
		env := newTestEnv(t)
		env.devices.On("FindByPairingCode", mock.Anything, "000000").Return(nil, nil)

		rec, body := env.post(t, "unpair-device", map[string]string{"pairingCode": "000000"})

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "Device already disconnected", body["message"])
	})
}

func TestCheckPairingStatus(t *testing.T) {
	t.Run("reports paired device", func(t *testing.T) {
		env := newTestEnv(t)
		env.devices.On("FindByPairingCode", mock.Anything, "123456").Return(&model.Device{ID: "d1", IsPaired: true}, nil)

		rec, body := env.post(t, "check-pairing-status", map[string]string{"pairingCode": "123456"})

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, body["isPaired"])
		assert.Equal(t, "d1", body["deviceId"])
	})

	t.Run("unknown code omits device id", func(t *testing.T) {
		env := newTestEnv(t)
		env.devices.On("FindByPairingCode", mock.Anything, "999999").Return(nil, nil)

		rec, body := env.post(t, "check-pairing-status", map[string]string{"pairingCode": "999999"})

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, false, body["isPaired"])
		assert.NotContains(t, body, "deviceId")
	})

	t.Run("lookup failure reports not paired", func(t *testing.T) {
		env := newTestEnv(t)
		env.devices.On("FindByPairingCode", mock.Anything, "123456").Return(nil, errors.New("connection refused"))

		rec, body := env.post(t, "check-pairing-status", map[string]string{"pairingCode": "123456"})

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "DATABASE_ERROR", body["code"])
		assert.Equal(t, false, body["isPaired"])
	})

	t.Run("invalid input reports not paired", func(t *testing.T) {
		env := newTestEnv(t)

		rec, body := env.post(t, "check-pairing-status", map[string]string{})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, body, "isPaired")
		assert.Equal(t, false, body["isPaired"])
		assert.NotEmpty(t, body["error"])
	})

	t.Run("malformed body reports not paired", func(t *testing.T) {
		env := newTestEnv(t)

		rec, body := env.post(t, "check-pairing-status", "{not json")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid request body", body["error"])
		assert.Equal(t, false, body["isPaired"])
	})
}

func TestSendCallRequest(t *testing.T) {
	t.Run("relays the number", func(t *testing.T) {
		env := newTestEnv(t)
		env.devices.On("FindByPairingCode", mock.Anything, "123456").Return(&model.Device{ID: "d1", FCMToken: "tokA", IsPaired: true}, nil)
		env.logs.On("Create", mock.Anything, mock.MatchedBy(func(p model.CreateCallLogParams) bool {
			return p.DeviceID == "d1" && p.PhoneNumber == "+15551234567" && p.Status == model.CallLogStatusSent
		})).Return(&model.CallLog{ID: "c1"}, nil)

		rec, body := env.post(t, "send-call-request", map[string]string{"pairingCode": "123456", "phoneNumber": "+15551234567"})

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "Call request sent to your phone", body["message"])
		require.Len(t, env.sender.sent, 1)
		assert.Equal(t, "tokA", env.sender.sent[0].Token)
		assert.Equal(t, "+15551234567", env.sender.sent[0].Data["phoneNumber"])
		env.logs.AssertNumberOfCalls(t, "Create", 1)
	})

	t.Run("log write failure after dispatch still reports success", func(t *testing.T) {
		env := newTestEnv(t)
		env.devices.On("FindByPairingCode", mock.Anything, "123456").Return(&model.Device{ID: "d1", FCMToken: "tokA", IsPaired: true}, nil)
		env.logs.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset"))

		rec, body := env.post(t, "send-call-request", map[string]string{"pairingCode": "123456", "phoneNumber": "+15551234567"})

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, body["success"])
		require.Len(t, env.sender.sent, 1)
	})

	t.Run("transport rejection carries details", func(t *testing.T) {
		env := newTestEnv(t)
		env.sender.err = &push.DeliveryError{StatusCode: 404, Message: "Requested entity was not found."}
		env.devices.On("FindByPairingCode", mock.Anything, "123456").Return(&model.Device{ID: "d1", FCMToken: "stale"}, nil)

		rec, body := env.post(t, "send-call-request", map[string]string{"pairingCode": "123456", "phoneNumber": "+1"})

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Failed to send push notification", body["error"])
		assert.Equal(t, "DELIVERY_FAILED", body["code"])
		assert.Equal(t, "Requested entity was not found.", body["details"])
		env.logs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("missing phone is 400", func(t *testing.T) {
		env := newTestEnv(t)

		rec, body := env.post(t, "send-call-request", map[string]string{"pairingCode": "123456"})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "phoneNumber and pairingCode are required", body["error"])
	})
}

func TestFunctionsGroup(t *testing.T) {
	t.Run("preflight succeeds without credentials", func(t *testing.T) {
		env := newTestEnv(t)

		for _, path := range []string{"register-device", "pair-device", "unpair-device", "check-pairing-status", "send-call-request"} {
			req := httptest.NewRequest(http.MethodOptions, "/functions/v1/"+path, nil)
			req.Header.Set("Origin", testOrigin)
			req.Header.Set("Access-Control-Request-Method", "POST")
			rec := httptest.NewRecorder()
			env.router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code, path)
			assert.Equal(t, "ok", rec.Body.String(), path)
			assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"), path)
			assert.Equal(t, "POST", rec.Header().Get("Access-Control-Allow-Methods"), path)
		}
	})

	t.Run("rejects missing api key with cors headers", func(t *testing.T) {
		env := newTestEnv(t)

		req := httptest.NewRequest(http.MethodPost, "/functions/v1/pair-device", strings.NewReader(`{"pairingCode":"123456"}`))
		req.Header.Set("Origin", testOrigin)
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		env.devices.AssertNotCalled(t, "FindByPairingCode", mock.Anything, mock.Anything)
	})

	t.Run("accepts apikey header", func(t *testing.T) {
		env := newTestEnv(t)
		env.devices.On("FindByPairingCode", mock.Anything, "123456").Return(nil, nil)

		req := httptest.NewRequest(http.MethodPost, "/functions/v1/check-pairing-status", strings.NewReader(`{"pairingCode":"123456"}`))
		req.Header.Set("apikey", testAPIKey)
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("error responses carry cors headers", func(t *testing.T) {
		env := newTestEnv(t)

		rec, _ := env.post(t, "pair-device", map[string]string{"pairingCode": "abc"})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("oversized body is rejected with cors headers", func(t *testing.T) {
		env := newTestEnv(t)

		body := `{"pairingCode":"123456","fcmToken":"` + strings.Repeat("x", 70<<10) + `"}`
		req := httptest.NewRequest(http.MethodPost, "/functions/v1/register-device", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+testAPIKey)
		req.Header.Set("Origin", testOrigin)
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		env.devices.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})
}

// The register → pair → status → relay → unpair walk from the mobile app's
// and extension's point of view, against one in-memory device row.
func TestPairingLifecycle(t *testing.T) {
	env := newTestEnv(t)
	device := &model.Device{ID: "d1", PairingCode: "123456"}

	env.devices.On("Upsert", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		p := args.Get(1).(model.UpsertDeviceParams)
		device.FCMToken = p.FCMToken
		device.DeviceName = p.DeviceName
	}).Return(device, nil)
	env.devices.On("FindByPairingCode", mock.Anything, "123456").Return(device, nil)
	env.devices.On("MarkPaired", mock.Anything, "d1").Run(func(mock.Arguments) {
		device.IsPaired = true
	}).Return(device, nil)
	env.devices.On("MarkUnpaired", mock.Anything, "d1").Run(func(mock.Arguments) {
		device.IsPaired = false
	}).Return(nil)
	env.logs.On("Create", mock.Anything, mock.Anything).Return(&model.CallLog{ID: "c1"}, nil)

	rec, _ := env.post(t, "register-device", map[string]string{"pairingCode": "123456", "fcmToken": "tokA"})
	require.Equal(t, http.StatusOK, rec.Code)

	_, status := env.post(t, "check-pairing-status", map[string]string{"pairingCode": "123456"})
	assert.Equal(t, false, status["isPaired"])

	rec, _ = env.post(t, "pair-device", map[string]string{"pairingCode": "123456"})
	require.Equal(t, http.StatusOK, rec.Code)

	_, status = env.post(t, "check-pairing-status", map[string]string{"pairingCode": "123456"})
	assert.Equal(t, true, status["isPaired"])
	assert.Equal(t, "d1", status["deviceId"])

	rec, _ = env.post(t, "send-call-request", map[string]string{"pairingCode": "123456", "phoneNumber": "+15551234567"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, env.sender.sent, 1)
	assert.Equal(t, "CALL_REQUEST", env.sender.sent[0].Data["type"])

	rec, _ = env.post(t, "unpair-device", map[string]string{"pairingCode": "123456"})
	require.Equal(t, http.StatusOK, rec.Code)

	_, status = env.post(t, "check-pairing-status", map[string]string{"pairingCode": "123456"})
	assert.Equal(t, false, status["isPaired"])
}
