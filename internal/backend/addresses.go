package backend

import (
	"context"
	"net/http"
)

// CreateAddress 保存收货地址，返回地址 ID
func (c *Client) CreateAddress(ctx context.Context, input AddressInput) (uint64, error) {
	var address Address
	if err := c.do(ctx, call{
		resource:  "addresses",
		operation: "create",
		method:    http.MethodPost,
		path:      "/enderecos",
		body:      input,
	}, &address); err != nil {
		return 0, err
	}
	return address.ID, nil
}
