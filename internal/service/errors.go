package service

import "errors"

// Business-rule failures callers are expected to recover from. Anything
// else coming out of this package is an unexpected store or transport
// failure and should be treated as retry-later.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrProductNotFound = errors.New("product not found")
	ErrCartNotFound    = errors.New("cart not found")
	ErrItemNotFound    = errors.New("item not found in cart")
	ErrCartOrdered     = errors.New("cart is already ordered")
	ErrEmptyCart       = errors.New("cart is empty, nothing to order")
	ErrRateLimited     = errors.New("otp requested too soon")
	ErrInvalidOtp      = errors.New("invalid otp")
	ErrOtpExpired      = errors.New("otp expired")
	ErrDeliveryFailed  = errors.New("failed to send otp")
	ErrOrderNotFound   = errors.New("order not found")
	ErrForbidden       = errors.New("insufficient role")
)
