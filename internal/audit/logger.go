package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/click2call/relay-server-go/internal/util"
)

type EventType string

const (
	EventDeviceRegister    EventType = "device_register"
	EventDevicePair        EventType = "device_pair"
	EventDeviceUnpair      EventType = "device_unpair"
	EventCallRequestSent   EventType = "call_request_sent"
	EventCallRequestFailed EventType = "call_request_failed"
	EventAuthFailure       EventType = "auth_failure"
	EventRateLimitExceed   EventType = "rate_limit_exceeded"
)

// Category returns the audit stream an event belongs to.
func (t EventType) Category() string {
	switch t {
	case EventAuthFailure, EventRateLimitExceed:
		return "security"
	default:
		return "relay"
	}
}

// Event is a single audit record. PairingCode is masked before it is written.
type Event struct {
	Type        EventType
	DeviceID    string
	PairingCode string
	IP          string
	UserAgent   string
	Details     map[string]interface{}
}

func Log(ctx context.Context, event Event) {
	ctxLogger := log.With().
		Str("audit", event.Type.Category()).
		Str("event_type", string(event.Type)).
		Time("timestamp", time.Now())

	if reqID := middleware.GetReqID(ctx); reqID != "" {
		ctxLogger = ctxLogger.Str("request_id", reqID)
	}
	if event.DeviceID != "" {
		ctxLogger = ctxLogger.Str("device_id", event.DeviceID)
	}
	if event.PairingCode != "" {
		ctxLogger = ctxLogger.Str("pairing_code", util.MaskCode(event.PairingCode))
	}
	if event.IP != "" {
		ctxLogger = ctxLogger.Str("ip", event.IP)
	}
	if event.UserAgent != "" {
		ctxLogger = ctxLogger.Str("user_agent", event.UserAgent)
	}
	logger := ctxLogger.Logger()

	logEvent := logger.Info()
	if event.Type == EventCallRequestFailed || event.Type.Category() == "security" {
		logEvent = logger.Warn()
	}
	for k, v := range event.Details {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg("audit event")
}

func addField(e *zerolog.Event, key string, value interface{}) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	case error:
		return e.AnErr(key, v)
	default:
		return e.Interface(key, v)
	}
}

// LogFromRequest fills in the caller's address and user agent. RealIP
// middleware has already normalised RemoteAddr by the time this runs.
func LogFromRequest(r *http.Request, event Event) {
	event.IP = ClientIP(r)
	event.UserAgent = r.UserAgent()
	Log(r.Context(), event)
}

func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}
