package service

import "errors"

// 业务错误
var (
	ErrInvalidProduct        = errors.New("invalid product")
	ErrInvalidQuantity       = errors.New("invalid quantity")
	ErrCatalogUnavailable    = errors.New("product catalog unavailable")
	ErrNotAuthenticated      = errors.New("not authenticated")
	ErrCartEmpty             = errors.New("cart is empty")
	ErrCartNotLinked         = errors.New("cart is not linked to a backend cart")
	ErrAddressInvalid        = errors.New("delivery address invalid")
	ErrAddressRequired       = errors.New("delivery address required")
	ErrAddressSaveFailed     = errors.New("delivery address save failed")
	ErrDeliveryMethodInvalid = errors.New("delivery method invalid")
	ErrCheckoutFailed        = errors.New("checkout failed")
	ErrPaymentNotConfigured  = errors.New("payment provider not configured")
	ErrPaymentVerifyFailed   = errors.New("payment verification failed")
	ErrPaymentNotSettled     = errors.New("payment not settled")
	ErrPaymentOrderMismatch  = errors.New("payment does not belong to the subject")
	ErrOrderNotFound         = errors.New("order not found")
	ErrOrderStatusInvalid    = errors.New("order status invalid")
	ErrOrderFetchFailed      = errors.New("order fetch failed")
	ErrOrderUpdateFailed     = errors.New("order update failed")
	ErrForbidden             = errors.New("forbidden")
	ErrUserSyncFailed        = errors.New("backend user sync failed")
	ErrCartSyncFailed        = errors.New("cart sync failed")
)
