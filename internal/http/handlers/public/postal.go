package public

import (
	"github.com/musicfy-storefront/internal/http/response"

	"github.com/gin-gonic/gin"
)

// LookupPostalCode 按 CEP 查询地址
func (h *Handler) LookupPostalCode(c *gin.Context) {
	address, err := h.Postal.Lookup(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondPostalError(c, err)
		return
	}
	response.Success(c, address)
}
