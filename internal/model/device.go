package model

import (
	"time"
)

const DefaultDeviceName = "Android Device"

type Device struct {
	ID          string     `db:"id" json:"id"`
	PairingCode string     `db:"pairing_code" json:"pairingCode"`
	FCMToken    string     `db:"fcm_token" json:"-"`
	DeviceName  string     `db:"device_name" json:"deviceName"`
	IsPaired    bool       `db:"is_paired" json:"isPaired"`
	PairedAt    *time.Time `db:"paired_at" json:"pairedAt,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
}

// HasPushToken reports whether the device can be addressed by the push transport.
func (d *Device) HasPushToken() bool {
	return d.FCMToken != ""
}

type UpsertDeviceParams struct {
	PairingCode string
	FCMToken    string
	DeviceName  string
}
