package model

type CallLogStatus string

const (
	CallLogStatusSent CallLogStatus = "sent"
)

// PushMessageType is the "type" field of data-only push payloads. The mobile
// client acts on CALL_REQUEST only.
type PushMessageType string

const (
	PushMessageCallRequest PushMessageType = "CALL_REQUEST"
)
