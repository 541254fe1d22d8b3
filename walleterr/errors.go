// Package walleterr defines the structured error kinds raised across the
// wallet library. Callers recover the concrete kind with errors.As rather
// than matching on message text, except where the JSON-RPC contract itself
// only ever gives us a message to match against.
package walleterr

import "fmt"

// InvalidHexError reports malformed hexadecimal input.
type InvalidHexError struct {
	Name  string
	Value string
}

func (e *InvalidHexError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("invalid hex for %s: %q", e.Name, e.Value)
	}
	return fmt.Sprintf("invalid hex: %q", e.Value)
}

// InvalidAddressError carries the offending address value.
type InvalidAddressError struct {
	Value string
}

func (e *InvalidAddressError) Error() string {
	return fmt.Sprintf("invalid address: %q", e.Value)
}

// InvalidDecimalError reports a malformed or negative decimal string.
type InvalidDecimalError struct {
	Value string
}

func (e *InvalidDecimalError) Error() string {
	return fmt.Sprintf("invalid decimal string: %q", e.Value)
}

// OverflowError reports a numeric result exceeding its declared width or
// the platform safe-integer bound.
type OverflowError struct {
	Detail string
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("overflow: %s", e.Detail)
}

// InvalidParameterError reports a violated builder constraint: a range,
// a mutual-exclusion rule, or a malformed field value.
type InvalidParameterError struct {
	Field  string
	Detail string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Field, e.Detail)
}

// InvalidPhraseError reports a recovery phrase that failed mnemonic
// parsing or checksum validation.
type InvalidPhraseError struct {
	Detail string
}

func (e *InvalidPhraseError) Error() string {
	return fmt.Sprintf("invalid recovery phrase: %s", e.Detail)
}

// AbiWidthExceededError reports an encoded or decoded value that exceeds
// its declared ABI width.
type AbiWidthExceededError struct {
	Type   string
	Detail string
}

func (e *AbiWidthExceededError) Error() string {
	return fmt.Sprintf("abi width exceeded for %s: %s", e.Type, e.Detail)
}

// UnsupportedChainError reports a chain identifier with no known USDC
// contract address and no configured override.
type UnsupportedChainError struct {
	ChainID uint64
}

func (e *UnsupportedChainError) Error() string {
	return fmt.Sprintf("unsupported chain id %d", e.ChainID)
}

// RpcError carries the JSON-RPC error envelope plus the HTTP status the
// response arrived with.
type RpcError struct {
	Message    string
	Code       int
	Data       any
	HTTPStatus int
}

func (e *RpcError) Error() string {
	return fmt.Sprintf("rpc error (code %d, http %d): %s", e.Code, e.HTTPStatus, e.Message)
}

// TimeoutError reports that receipt polling exceeded its configured
// timeout.
type TimeoutError struct {
	TxHash string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for receipt of %s", e.TxHash)
}
