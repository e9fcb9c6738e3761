package repository

import (
	"database/sql"
	"errors"
)

// HandleNotFound turns sql.ErrNoRows into a nil result. Callers treat a nil
// device as an unknown pairing code rather than a storage failure.
//
//	var device model.Device
//	err := r.db.GetContext(ctx, &device, query, code)
//	return HandleNotFound(&device, err)
func HandleNotFound[T any](result *T, err error) (*T, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}
