package registry

import "errors"

var (
	ErrLandNotFound       = errors.New("registry: land not found")
	ErrUnauthorized       = errors.New("registry: unauthorized")
	ErrLandAlreadyExists  = errors.New("registry: land already exists")
	ErrInvalidCoordinates = errors.New("registry: invalid coordinates")
	ErrInvalidDimensions  = errors.New("registry: invalid dimensions")
	// ErrInsufficientFunds is reserved for payment enforcement; nothing raises it yet.
	ErrInsufficientFunds = errors.New("registry: insufficient funds")
	ErrLandNotForSale    = errors.New("registry: land not for sale")
	// ErrOwnershipError is reserved; nothing raises it yet.
	ErrOwnershipError = errors.New("registry: ownership error")
	ErrInvalidInput   = errors.New("registry: invalid input")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrLandNotFound, "LandNotFound"},
	{ErrUnauthorized, "Unauthorized"},
	{ErrLandAlreadyExists, "LandAlreadyExists"},
	{ErrInvalidCoordinates, "InvalidCoordinates"},
	{ErrInvalidDimensions, "InvalidDimensions"},
	{ErrInsufficientFunds, "InsufficientFunds"},
	{ErrLandNotForSale, "LandNotForSale"},
	{ErrOwnershipError, "OwnershipError"},
	{ErrInvalidInput, "InvalidInput"},
}

// Code returns the stable taxonomy name for err, or "" when err is nil or
// does not wrap a registry error.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, entry := range errorCodes {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	return ""
}
