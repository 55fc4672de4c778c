package public

import (
	"errors"

	"github.com/musicfy-storefront/internal/cart"
	"github.com/musicfy-storefront/internal/catalog"
	"github.com/musicfy-storefront/internal/http/response"
	"github.com/musicfy-storefront/internal/i18n"
	"github.com/musicfy-storefront/internal/identity"
	"github.com/musicfy-storefront/internal/postal"
	"github.com/musicfy-storefront/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	key    string
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackKey string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.key, nil)
			return
		}
	}
	respondError(c, fallbackCode, fallbackKey, err)
}

func concatMappedHandlerErrors(groups ...[]mappedHandlerError) []mappedHandlerError {
	total := 0
	for _, group := range groups {
		total += len(group)
	}
	result := make([]mappedHandlerError, 0, total)
	for _, group := range groups {
		result = append(result, group...)
	}
	return result
}

var cartWriteErrorRules = []mappedHandlerError{
	{target: service.ErrInvalidProduct, code: response.CodeBadRequest, key: "cart.invalid_item"},
	{target: service.ErrInvalidQuantity, code: response.CodeBadRequest, key: "cart.invalid_quantity"},
	{target: cart.ErrInvalidProduct, code: response.CodeBadRequest, key: "cart.invalid_item"},
	{target: cart.ErrInvalidQuantity, code: response.CodeBadRequest, key: "cart.invalid_quantity"},
	{target: cart.ErrRemoteFailed, code: response.CodeBadGateway, key: "cart.remote_failed"},
	{target: cart.ErrPersist, code: response.CodeInternal, key: "cart.persist_failed"},
	{target: service.ErrCatalogUnavailable, code: response.CodeBadGateway, key: "catalog.unavailable"},
}

var catalogErrorRules = []mappedHandlerError{
	{target: catalog.ErrNotFound, code: response.CodeNotFound, key: "catalog.not_found"},
	{target: catalog.ErrUnavailable, code: response.CodeBadGateway, key: "catalog.unavailable"},
	{target: catalog.ErrSchema, code: response.CodeBadGateway, key: "catalog.unavailable"},
}

var authErrorRules = []mappedHandlerError{
	{target: identity.ErrInvalidInput, code: response.CodeBadRequest, key: "error.bad_request"},
	{target: service.ErrUserSyncFailed, code: response.CodeBadGateway, key: "auth.backend_failed"},
	{target: service.ErrCartSyncFailed, code: response.CodeBadGateway, key: "cart.sync_failed"},
}

var postalErrorRules = []mappedHandlerError{
	{target: postal.ErrInvalidPostalCode, code: response.CodeBadRequest, key: "postal.invalid_code"},
	{target: postal.ErrNotFound, code: response.CodeNotFound, key: "postal.not_found"},
	{target: postal.ErrUnavailable, code: response.CodeBadGateway, key: "postal.unavailable"},
}

var checkoutCommonErrorRules = []mappedHandlerError{
	{target: service.ErrNotAuthenticated, code: response.CodeUnauthorized, key: "auth.login_required"},
	{target: service.ErrCartEmpty, code: response.CodeBadRequest, key: "cart.empty"},
	{target: service.ErrPaymentNotConfigured, code: response.CodeUnavailable, key: "checkout.payment_unconfigured"},
}

var checkoutAddressErrorRules = []mappedHandlerError{
	{target: service.ErrAddressInvalid, code: response.CodeBadRequest, key: "checkout.address_invalid"},
	{target: service.ErrDeliveryMethodInvalid, code: response.CodeBadRequest, key: "checkout.delivery_invalid"},
	{target: postal.ErrInvalidPostalCode, code: response.CodeBadRequest, key: "postal.invalid_code"},
}

var checkoutStartErrorRules = []mappedHandlerError{
	{target: service.ErrCartNotLinked, code: response.CodeBadRequest, key: "checkout.cart_required"},
	{target: service.ErrAddressRequired, code: response.CodeBadRequest, key: "checkout.address_required"},
	{target: service.ErrDeliveryMethodInvalid, code: response.CodeBadRequest, key: "checkout.delivery_invalid"},
	{target: service.ErrInvalidProduct, code: response.CodeConflict, key: "checkout.product_unavailable"},
	{target: service.ErrCatalogUnavailable, code: response.CodeBadGateway, key: "catalog.unavailable"},
}

var checkoutCompleteErrorRules = []mappedHandlerError{
	{target: service.ErrPaymentOrderMismatch, code: response.CodeForbidden, key: "error.forbidden"},
	{target: service.ErrPaymentNotSettled, code: response.CodeConflict, key: "checkout.payment_not_confirmed"},
	{target: service.ErrPaymentVerifyFailed, code: response.CodeBadRequest, key: "checkout.session_invalid"},
}

var orderErrorRules = []mappedHandlerError{
	{target: service.ErrNotAuthenticated, code: response.CodeUnauthorized, key: "auth.login_required"},
	{target: service.ErrOrderNotFound, code: response.CodeNotFound, key: "error.not_found"},
	{target: service.ErrOrderStatusInvalid, code: response.CodeBadRequest, key: "order.status_invalid"},
	{target: service.ErrForbidden, code: response.CodeForbidden, key: "error.forbidden"},
}

func respondCartWriteError(c *gin.Context, err error) {
	respondWithMappedError(c, err, cartWriteErrorRules, response.CodeInternal, "error.internal")
}

// respondAuthError 身份提供方错误统一映射为固定提示，原始错误只进日志
func (h *Handler) respondAuthError(c *gin.Context, err error) {
	for _, rule := range authErrorRules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.key, err)
			return
		}
	}
	key := identity.MessageKey(err)
	code := response.CodeUnauthorized
	switch {
	case errors.Is(err, identity.ErrEmailInUse):
		code = response.CodeConflict
	case errors.Is(err, identity.ErrWeakPassword):
		msg := i18n.Sprintf(i18n.ResolveLocale(c), key, h.minPasswordLength())
		respondErrorWithMsg(c, response.CodeBadRequest, msg, nil)
		return
	case errors.Is(err, identity.ErrProviderUnavailable):
		code = response.CodeUnavailable
	}
	requestLog(c).Warnw("auth_failed", "provider", h.AuthService.ProviderName(), "message_key", key, "error", err)
	respondError(c, code, key, nil)
}

func (h *Handler) minPasswordLength() int {
	if h.Config != nil && h.Config.Identity.Local.MinPasswordLength > 0 {
		return h.Config.Identity.Local.MinPasswordLength
	}
	return 6
}

func respondCatalogError(c *gin.Context, err error) {
	respondWithMappedError(c, err, catalogErrorRules, response.CodeBadGateway, "catalog.unavailable")
}

func respondPostalError(c *gin.Context, err error) {
	respondWithMappedError(c, err, postalErrorRules, response.CodeInternal, "postal.unavailable")
}

func respondCheckoutAddressError(c *gin.Context, err error) {
	respondWithMappedError(c, err, concatMappedHandlerErrors(checkoutCommonErrorRules, checkoutAddressErrorRules), response.CodeBadGateway, "checkout.address_failed")
}

func respondCheckoutStartError(c *gin.Context, err error) {
	respondWithMappedError(c, err, concatMappedHandlerErrors(checkoutCommonErrorRules, checkoutStartErrorRules), response.CodeBadGateway, "checkout.payment_failed")
}

func respondCheckoutCompleteError(c *gin.Context, err error) {
	respondWithMappedError(c, err, concatMappedHandlerErrors(checkoutCommonErrorRules, checkoutCompleteErrorRules), response.CodeBadGateway, "checkout.session_invalid")
}

func respondOrderError(c *gin.Context, err error, fallbackKey string) {
	respondWithMappedError(c, err, orderErrorRules, response.CodeBadGateway, fallbackKey)
}
