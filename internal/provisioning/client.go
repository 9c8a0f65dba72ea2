// Package provisioning клиент панели, которая выдаёт и отзывает VPN-доступ пользователей.
//
// Панель авторизует администратора по логину и паролю и выдаёт bearer-токен,
// который клиент кэширует и перевыпускает при ответе 401.
package provisioning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/outcastsdev-svg/outlivion-api/internal/config"
)

// Статусы пользователя в панели.
const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

var (
	// ErrUserNotFound пользователя нет в панели.
	ErrUserNotFound = errors.New("panel user not found")
	// ErrUnauthorized панель отвергла учётные данные администратора.
	ErrUnauthorized = errors.New("panel rejected credentials")
)

// PanelUser пользователь панели.
type PanelUser struct {
	Username  string `json:"username"`
	Status    string `json:"status"`
	Expire    int64  `json:"expire"`
	DataLimit int64  `json:"data_limit"`
	Proxies   struct {
		Vless struct {
			ID string `json:"id"`
		} `json:"vless"`
	} `json:"proxies"`
}

// UserPatch изменяемые поля пользователя; nil поля не отправляются.
type UserPatch struct {
	Status *string `json:"status,omitempty"`
	Expire *int64  `json:"expire,omitempty"`
}

// Client клиент HTTP API панели.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client

	mu    sync.Mutex
	token string
}

// NewClient создаёт клиент по настройкам панели.
func NewClient(cfg config.Provisioning) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GetOrCreateUser возвращает пользователя панели, создавая его при отсутствии.
// created == true, если пользователь был создан этим вызовом.
func (c *Client) GetOrCreateUser(ctx context.Context, username string, dataLimit int64, expiry time.Time) (*PanelUser, bool, error) {
	const op = "provisioning.GetOrCreateUser"

	user, err := c.GetUser(ctx, username)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	body := map[string]any{
		"username":   username,
		"status":     StatusActive,
		"expire":     expiry.Unix(),
		"data_limit": dataLimit,
		"proxies":    map[string]any{"vless": map[string]any{}},
	}
	var created PanelUser
	if err := c.do(ctx, http.MethodPost, "/api/user", body, &created); err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	return &created, true, nil
}

// GetUser возвращает пользователя панели или ErrUserNotFound.
func (c *Client) GetUser(ctx context.Context, username string) (*PanelUser, error) {
	const op = "provisioning.GetUser"
	var user PanelUser
	if err := c.do(ctx, http.MethodGet, "/api/user/"+url.PathEscape(username), nil, &user); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &user, nil
}

// UpdateUser применяет patch к пользователю панели.
func (c *Client) UpdateUser(ctx context.Context, username string, patch UserPatch) error {
	const op = "provisioning.UpdateUser"
	if err := c.do(ctx, http.MethodPut, "/api/user/"+url.PathEscape(username), patch, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ExtendSubscription активирует пользователя и переносит срок доступа на expiry.
func (c *Client) ExtendSubscription(ctx context.Context, username string, expiry time.Time) error {
	status := StatusActive
	expire := expiry.Unix()
	return c.UpdateUser(ctx, username, UserPatch{Status: &status, Expire: &expire})
}

// DisableUser отключает доступ пользователя.
func (c *Client) DisableUser(ctx context.Context, username string) error {
	status := StatusDisabled
	return c.UpdateUser(ctx, username, UserPatch{Status: &status})
}

// GetVlessConfig собирает VLESS-ссылку пользователя для указанного сервера.
func (c *Client) GetVlessConfig(ctx context.Context, username, host string, port int) (string, error) {
	const op = "provisioning.GetVlessConfig"
	user, err := c.GetUser(ctx, username)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if user.Proxies.Vless.ID == "" {
		return "", fmt.Errorf("%s: user %s has no vless proxy", op, username)
	}
	return fmt.Sprintf("vless://%s@%s:%d?type=tcp&security=reality#%s",
		user.Proxies.Vless.ID, host, port, url.PathEscape(username)), nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	token, err := c.accessToken(ctx, false)
	if err != nil {
		return err
	}
	status, err := c.send(ctx, method, path, token, in, out)
	if status == http.StatusUnauthorized {
		// токен мог истечь, перевыпускаем один раз
		if token, err = c.accessToken(ctx, true); err != nil {
			return err
		}
		status, err = c.send(ctx, method, path, token, in, out)
	}
	if err != nil {
		return err
	}
	switch {
	case status == http.StatusNotFound:
		return ErrUserNotFound
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status >= 400:
		return fmt.Errorf("unexpected status %d", status)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path, token string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 || out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, err
	}
	return resp.StatusCode, nil
}

func (c *Client) accessToken(ctx context.Context, refresh bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && !refresh {
		return c.token, nil
	}

	form := url.Values{"username": {c.username}, "password": {c.password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/admin/token",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", ErrUnauthorized
	}
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", ErrUnauthorized
	}
	c.token = out.AccessToken
	return c.token, nil
}
