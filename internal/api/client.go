package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/dreamsneakers/storeclient/internal/config"
)

// TokenSource supplies the bearer token attached to every request. An empty
// token means the request goes out unauthenticated.
type TokenSource interface {
	Token() string
}

// StaticToken is a TokenSource for a fixed, pre-issued token.
type StaticToken string

func (t StaticToken) Token() string { return string(t) }

type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a client for the storefront backend API.
func NewClient(cfg config.APIConfig, tokens TokenSource, logger *zap.Logger) *Client {
	// Normalize base URL - default the scheme, strip trailing slashes
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}

	if tokens == nil {
		tokens = StaticToken(cfg.Token)
	}

	return &Client{
		baseURL: baseURL,
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		logger: logger,
	}
}

// GetCart fetches the current cart wholesale.
func (c *Client) GetCart(ctx context.Context) (*CartSnapshot, error) {
	data, err := c.do(ctx, http.MethodGet, "/cart", nil)
	if err != nil {
		return nil, err
	}
	return decodeCartSnapshot(data)
}

// AddCartItem creates a new cart line. The response body is ignored; callers
// refetch the cart for the resulting state.
func (c *Client) AddCartItem(ctx context.Context, productID int64, quantity int) error {
	body := map[string]any{
		"productId": productID,
		"quantity":  quantity,
	}
	_, err := c.do(ctx, http.MethodPost, "/cart", body)
	return err
}

// UpdateCartItem sets the quantity of an existing cart line, addressed by
// its line ID.
func (c *Client) UpdateCartItem(ctx context.Context, itemID int64, quantity int) error {
	body := map[string]any{
		"quantity": quantity,
	}
	_, err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/cart/item/%d", itemID), body)
	return err
}

// RemoveCartItem deletes a cart line, addressed by its line ID.
func (c *Client) RemoveCartItem(ctx context.Context, itemID int64) error {
	_, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/cart/item/%d", itemID), nil)
	return err
}

// CreateOrder converts the current cart into an order.
func (c *Client) CreateOrder(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/orders", nil)
	return err
}

// GetOrders fetches the user's order history wholesale.
func (c *Client) GetOrders(ctx context.Context) ([]OrderSnapshot, error) {
	data, err := c.do(ctx, http.MethodGet, "/orders", nil)
	if err != nil {
		return nil, err
	}
	return decodeOrders(data)
}

// GetProducts fetches the product catalog.
func (c *Client) GetProducts(ctx context.Context) ([]Product, error) {
	data, err := c.do(ctx, http.MethodGet, "/products", nil)
	if err != nil {
		return nil, err
	}
	return decodeProducts(data)
}

// Register creates a new user account.
func (c *Client) Register(ctx context.Context, email, password string) error {
	body := map[string]any{
		"email":    email,
		"password": password,
	}
	_, err := c.do(ctx, http.MethodPost, "/auth/register", body)
	return err
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
	}
	data, err := c.do(ctx, http.MethodPost, "/auth/login", body)
	if err != nil {
		return "", err
	}

	var resp struct {
		Token       string `json:"token"`
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", &DecodeError{Resource: "login", Field: "body"}
	}
	token := resp.Token
	if token == "" {
		token = resp.AccessToken
	}
	if token == "" {
		return "", &DecodeError{Resource: "login", Field: "token"}
	}
	return token, nil
}

// GetMe fetches the authenticated user's identity.
func (c *Client) GetMe(ctx context.Context) (*Me, error) {
	data, err := c.do(ctx, http.MethodGet, "/user/me", nil)
	if err != nil {
		return nil, err
	}
	var me Me
	if err := json.Unmarshal(data, &me); err != nil {
		return nil, &DecodeError{Resource: "me", Field: "body"}
	}
	return &me, nil
}

// do issues one request and returns the raw success body. Non-2xx responses
// come back as *Error with the message extracted from the body.
func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	url := c.baseURL + path

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{
			Status:  resp.StatusCode,
			Message: errorMessageFromBody(respBody),
		}
		c.logger.Debug("API request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", apiErr.Message),
		)
		return nil, apiErr
	}

	return respBody, nil
}
