package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const resourceUsers = "users"

// CreateUser 在后端注册用户；已存在（409）时返回现有用户
func (c *Client) CreateUser(ctx context.Context, subjectID, fullName, email string) (*User, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return nil, fmt.Errorf("%w: subject id is required", ErrInvalidInput)
	}
	payload := map[string]string{
		"firebaseUid": subjectID,
		"fullName":    strings.TrimSpace(fullName),
		"email":       strings.TrimSpace(email),
	}
	var user User
	err := c.do(ctx, call{
		resource:  resourceUsers,
		operation: "create",
		method:    http.MethodPost,
		path:      "/api/usuario/criar",
		body:      payload,
	}, &user)
	if errors.Is(err, ErrConflict) {
		return c.GetUserBySubjectID(ctx, subjectID)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserBySubjectID 按身份主体查询用户，不存在时返回 ErrNotFound
func (c *Client) GetUserBySubjectID(ctx context.Context, subjectID string) (*User, error) {
	var user User
	err := c.do(ctx, call{
		resource:  resourceUsers,
		operation: "get_by_subject",
		method:    http.MethodGet,
		path:      "/api/usuario/firebase/" + url.PathEscape(strings.TrimSpace(subjectID)),
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// EnsureUser 查询用户，不存在则创建
func (c *Client) EnsureUser(ctx context.Context, subjectID, fullName, email string) (*User, error) {
	user, err := c.GetUserBySubjectID(ctx, subjectID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return c.CreateUser(ctx, subjectID, fullName, email)
}
