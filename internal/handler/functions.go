package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/click2call/relay-server-go/internal/httputil"
	"github.com/click2call/relay-server-go/internal/service"
)

// FunctionsHandler serves the device and extension endpoints. Paths keep
// the names the mobile app and extension already call.
type FunctionsHandler struct {
	deviceService  *service.DeviceService
	pairingService *service.PairingService
	relayService   *service.RelayService
}

func NewFunctionsHandler(
	deviceService *service.DeviceService,
	pairingService *service.PairingService,
	relayService *service.RelayService,
) *FunctionsHandler {
	return &FunctionsHandler{
		deviceService:  deviceService,
		pairingService: pairingService,
		relayService:   relayService,
	}
}

// GroupMiddleware is the per-group chain. CORS runs first so every response
// of the group, including body-limit and auth rejections, carries the
// cross-origin headers. Nil entries are skipped.
type GroupMiddleware struct {
	CORS      func(http.Handler) http.Handler
	BodyLimit func(http.Handler) http.Handler
	RateLimit func(http.Handler) http.Handler
	APIKey    func(http.Handler) http.Handler
}

// Group returns the routes wrapped in mw, ready to mount at /functions/v1.
func (h *FunctionsHandler) Group(mw GroupMiddleware) chi.Router {
	r := chi.NewRouter()
	for _, m := range []func(http.Handler) http.Handler{mw.CORS, mw.BodyLimit, mw.RateLimit, mw.APIKey} {
		if m != nil {
			r.Use(m)
		}
	}
	r.Mount("/", h.Routes())
	return r
}

func (h *FunctionsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/register-device", h.RegisterDevice)
	r.Post("/pair-device", h.PairDevice)
	r.Post("/unpair-device", h.UnpairDevice)
	r.Post("/check-pairing-status", h.CheckPairingStatus)
	r.Post("/send-call-request", h.SendCallRequest)

	return r
}

// POST /functions/v1/register-device
// Called by the mobile app on startup and whenever its push token rotates.
func (h *FunctionsHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PairingCode string `json:"pairingCode"`
		FCMToken    string `json:"fcmToken"`
		PushToken   string `json:"pushToken"`
		DeviceName  string `json:"deviceName"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	token := req.FCMToken
	if token == "" {
		token = req.PushToken
	}

	device, err := h.deviceService.Register(r.Context(), service.RegisterParams{
		PairingCode: req.PairingCode,
		PushToken:   token,
		DeviceName:  req.DeviceName,
	})
	if err != nil {
		writeError(w, r, "register-device", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"deviceId": device.ID,
		"message":  "Device registered successfully",
	})
}

// POST /functions/v1/pair-device
func (h *FunctionsHandler) PairDevice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PairingCode string `json:"pairingCode"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.pairingService.Pair(r.Context(), req.PairingCode)
	if err != nil {
		writeError(w, r, "pair-device", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"deviceId":   result.DeviceID,
		"deviceName": result.DeviceName,
		"message":    "Device paired successfully",
	})
}

// POST /functions/v1/unpair-device
func (h *FunctionsHandler) UnpairDevice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PairingCode string `json:"pairingCode"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.pairingService.Unpair(r.Context(), req.PairingCode)
	if err != nil {
		writeError(w, r, "unpair-device", err)
		return
	}

	message := "Device disconnected successfully"
	if result.AlreadyUnpaired {
		message = "Device already disconnected"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": message,
	})
}

// POST /functions/v1/check-pairing-status
// Polled by the mobile app while it shows the pairing code.
// Error bodies also carry isPaired:false; the mobile app reads that field
// regardless of status.
func (h *FunctionsHandler) CheckPairingStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PairingCode string `json:"pairingCode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		status, appErr := decodeError(err)
		writeJSON(w, status, pairingStatusError{ErrorResponse: httputil.NewErrorResponse(appErr)})
		return
	}

	result, err := h.pairingService.CheckStatus(r.Context(), req.PairingCode)
	if err != nil {
		logFailure(r, "check-pairing-status", err)
		appErr := httputil.ToAppError(err)
		writeJSON(w, httputil.StatusFromCode(appErr.Code), pairingStatusError{ErrorResponse: httputil.NewErrorResponse(appErr)})
		return
	}

	resp := map[string]any{"isPaired": result.IsPaired}
	if result.DeviceID != "" {
		resp["deviceId"] = result.DeviceID
	}
	writeJSON(w, http.StatusOK, resp)
}

type pairingStatusError struct {
	httputil.ErrorResponse
	IsPaired bool `json:"isPaired"`
}

// POST /functions/v1/send-call-request
func (h *FunctionsHandler) SendCallRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PairingCode string `json:"pairingCode"`
		PhoneNumber string `json:"phoneNumber"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if _, err := h.relayService.SendCallRequest(r.Context(), req.PairingCode, req.PhoneNumber); err != nil {
		writeError(w, r, "send-call-request", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Call request sent to your phone",
	})
}
