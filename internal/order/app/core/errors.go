package core

import "errors"

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrOutletNotFound       = errors.New("outlet not found")
	ErrStoreConflict        = errors.New("order was modified concurrently, reload and retry")
	ErrTransportUnavailable = errors.New("event transport unavailable")

	ErrDBConn  = errors.New("db connection failure")
	ErrRMQConn = errors.New("rabbitmq connection failure")
)
