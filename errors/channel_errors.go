package errors

import (
	stderrors "errors"

	"paychan/jsonx"
)

// ChannelErrorCode represents standardized error codes for channel operations
type ChannelErrorCode string

const (
	// General errors
	ErrCodeInternal ChannelErrorCode = "internal_error"

	// Lookup errors
	ErrCodeChannelNotFound  ChannelErrorCode = "channel_not_found"
	ErrCodeDuplicateChannel ChannelErrorCode = "duplicate_channel"

	// Protocol errors
	ErrCodeInvalidState                ChannelErrorCode = "invalid_state"
	ErrCodeChannelExpired              ChannelErrorCode = "channel_expired"
	ErrCodeInsufficientChannelBalance  ChannelErrorCode = "insufficient_channel_balance"
	ErrCodeEmptyBatch                  ChannelErrorCode = "empty_batch"
	ErrCodeInvalidAmount               ChannelErrorCode = "invalid_amount"
	ErrCodeSignatureVerificationFailed ChannelErrorCode = "signature_verification_failed"
	ErrCodeStalePayment                ChannelErrorCode = "stale_payment"

	// Ledger errors
	ErrCodeLedgerCallFailed     ChannelErrorCode = "ledger_call_failed"
	ErrCodeSettlementUnresolved ChannelErrorCode = "settlement_unresolved"
)

// ChannelError represents a standardized channel engine error
type ChannelError struct {
	Code    ChannelErrorCode `json:"code"`
	Message string           `json:"message"`
}

// Error implements the error interface
func (e *ChannelError) Error() string {
	err, _ := jsonx.Marshal(ChannelError{
		Code:    e.Code,
		Message: e.Message,
	})
	return string(err)
}

// Error message constants - user-friendly and concise
const (
	ErrMsgChannelNotFound              = "Channel could not be found"
	ErrMsgDuplicateChannel             = "A channel with this id already exists"
	ErrMsgInvalidState                 = "Operation is not valid in the channel's current state"
	ErrMsgAlreadyClosed                = "Channel is already closed"
	ErrMsgChannelExpired               = "Channel has expired"
	ErrMsgInsufficientChannelBalance   = "Not enough remaining balance in the channel"
	ErrMsgEmptyBatch                   = "Batch contains no payments"
	ErrMsgInvalidAmount                = "Amount must be larger than zero"
	ErrMsgSignatureVerificationFailed  = "Payment signature could not be verified"
	ErrMsgStalePayment                 = "Payment nonce has already been acknowledged"
	ErrMsgLedgerCallFailed             = "On-chain ledger call failed"
	ErrMsgSettlementUnresolved         = "Channel closed locally but on-chain settlement is unresolved"
	ErrMsgInternal                     = "Internal error, please try again"
)

// NewError creates a new ChannelError and returns it as error interface
func NewError(code ChannelErrorCode, message string) error {
	return &ChannelError{
		Code:    code,
		Message: message,
	}
}

// CodeOf extracts the ChannelErrorCode from an error, or ErrCodeInternal
// when the error is not a ChannelError.
func CodeOf(err error) ChannelErrorCode {
	var ce *ChannelError
	if stderrors.As(err, &ce) {
		return ce.Code
	}
	return ErrCodeInternal
}

// Is reports whether err carries the given channel error code.
func Is(err error, code ChannelErrorCode) bool {
	var ce *ChannelError
	if stderrors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}
