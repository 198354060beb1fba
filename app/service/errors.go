package service

import "errors"

var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrTabRequired         = errors.New("tab id is required")
	ErrOperationInFlight   = errors.New("operation already in progress")
	ErrInvalidTransition   = errors.New("invalid checkout transition")
	ErrCardNotCaptured     = errors.New("card details have not been captured")
	ErrMissingClientSecret = errors.New("no active payment intent")
	ErrFlowClosed          = errors.New("checkout flow was closed")
	ErrLedgerUnavailable   = errors.New("mismatch ledger is not configured")
)
