package repository

import "errors"

var (
	ErrCartNotFound    = errors.New("cart not found")
	ErrCartOrdered     = errors.New("cart is already ordered")
	ErrItemNotFound    = errors.New("item not found in cart")
	ErrOwnerHasCart    = errors.New("owner already has an active cart")
	ErrOtpNotFound     = errors.New("otp record not found")
	ErrOrderNotFound   = errors.New("order not found")
	ErrProductNotFound = errors.New("product not found")
)
