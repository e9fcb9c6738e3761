package model

import (
	"time"
)

type CallLog struct {
	ID          string        `db:"id" json:"id"`
	DeviceID    string        `db:"device_id" json:"deviceId"`
	PhoneNumber string        `db:"phone_number" json:"phoneNumber"`
	Status      CallLogStatus `db:"status" json:"status"`
	CreatedAt   time.Time     `db:"created_at" json:"createdAt"`
}

type CreateCallLogParams struct {
	DeviceID    string
	PhoneNumber string
	Status      CallLogStatus
}
