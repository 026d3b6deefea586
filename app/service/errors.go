package service

import "errors"

var (
	ErrValidation                  = errors.New("validation failed")
	ErrPaymentRequestNotFound      = errors.New("payment request not found")
	ErrPaymentRequestAlreadyExists = errors.New("payment request already exists")
	ErrGatewayUnsupported          = errors.New("gateway is not supported")
	ErrCallbackRejected            = errors.New("callback rejected")

	// ErrPersistence marks a local storage failure after the gateway already
	// did its part. It must never be conflated with a payment failure and
	// must never cause a callback acknowledgement to fail.
	ErrPersistence = errors.New("persistence failed")
)
