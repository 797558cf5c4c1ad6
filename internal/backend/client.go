// internal/backend/client.go
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/avpratap/riqueza-cart-sync/internal/identity"
)

// Sentinel errors for the failure classes callers branch on. Everything else
// comes back as a wrapped transport or backend error.
var (
	ErrUnauthorized = errors.New("backend rejected credentials")
	ErrNotFound     = errors.New("backend record not found")
)

const defaultTimeout = 30 * time.Second

// IdentityResolver supplies the identity for each outgoing call.
type IdentityResolver interface {
	Resolve() (identity.Identity, error)
}

// Client is a typed REST client for the remote Cart Backend. Endpoint family
// (/cart vs /guest-cart) and auth header are chosen per call from the resolved
// identity; exactly one of Authorization or X-Guest-Session-Id is sent.
type Client struct {
	baseURL    string
	httpClient *http.Client
	resolver   IdentityResolver
	logger     *logrus.Logger
}

func NewClient(baseURL string, resolver IdentityResolver, logger *logrus.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		resolver:   resolver,
		logger:     logger,
	}
}

// SetTimeout overrides the default per-request timeout.
func (c *Client) SetTimeout(d time.Duration) {
	c.httpClient.Timeout = d
}

// envelope is the {success, data} wrapper every backend response uses.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message,omitempty"`
}

// GetCart fetches the full remote cart for the current identity.
func (c *Client) GetCart(ctx context.Context) ([]RemoteCartItem, error) {
	id, err := c.resolver.Resolve()
	if err != nil {
		return nil, err
	}
	var data cartData
	if err := c.do(ctx, id, http.MethodGet, c.cartPath(id, ""), nil, &data); err != nil {
		return nil, err
	}
	return data.Items, nil
}

// AddItem creates or increments a remote line item and returns the persisted
// record, including the backend-assigned id.
func (c *Client) AddItem(ctx context.Context, req AddItemRequest) (*RemoteCartItem, error) {
	id, err := c.resolver.Resolve()
	if err != nil {
		return nil, err
	}
	var data addItemData
	if err := c.do(ctx, id, http.MethodPost, c.cartPath(id, "/add"), req, &data); err != nil {
		return nil, err
	}
	return &data.Item, nil
}

func (c *Client) UpdateQuantity(ctx context.Context, itemID string, quantity int) error {
	id, err := c.resolver.Resolve()
	if err != nil {
		return err
	}
	body := map[string]int{"quantity": quantity}
	path := c.cartPath(id, "/items/"+itemID+"/quantity")
	return c.do(ctx, id, http.MethodPut, path, body, nil)
}

func (c *Client) IncrementItem(ctx context.Context, itemID string) error {
	id, err := c.resolver.Resolve()
	if err != nil {
		return err
	}
	return c.do(ctx, id, http.MethodPut, c.cartPath(id, "/items/"+itemID+"/increment"), nil, nil)
}

func (c *Client) DecrementItem(ctx context.Context, itemID string) error {
	id, err := c.resolver.Resolve()
	if err != nil {
		return err
	}
	return c.do(ctx, id, http.MethodPut, c.cartPath(id, "/items/"+itemID+"/decrement"), nil, nil)
}

func (c *Client) RemoveItem(ctx context.Context, itemID string) error {
	id, err := c.resolver.Resolve()
	if err != nil {
		return err
	}
	return c.do(ctx, id, http.MethodDelete, c.cartPath(id, "/items/"+itemID), nil, nil)
}

func (c *Client) ClearCart(ctx context.Context) error {
	id, err := c.resolver.Resolve()
	if err != nil {
		return err
	}
	return c.do(ctx, id, http.MethodDelete, c.cartPath(id, "/clear"), nil, nil)
}

func (c *Client) GetSummary(ctx context.Context) (*CartSummary, error) {
	id, err := c.resolver.Resolve()
	if err != nil {
		return nil, err
	}
	var summary CartSummary
	if err := c.do(ctx, id, http.MethodGet, c.cartPath(id, "/summary"), nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (c *Client) CheckEmpty(ctx context.Context) (bool, error) {
	id, err := c.resolver.Resolve()
	if err != nil {
		return false, err
	}
	var data checkEmptyData
	if err := c.do(ctx, id, http.MethodGet, c.cartPath(id, "/check-empty"), nil, &data); err != nil {
		return false, err
	}
	return data.Empty, nil
}

// TransferGuestCart asks the backend to merge the guest cart identified by
// guestSessionID into the authenticated caller's cart. This is the one call
// that carries both the bearer token and the guest session header.
func (c *Client) TransferGuestCart(ctx context.Context, guestSessionID string) (*TransferResult, error) {
	id, err := c.resolver.Resolve()
	if err != nil {
		return nil, err
	}
	if !id.IsAuthenticated() {
		return nil, fmt.Errorf("cart transfer requires an authenticated identity: %w", ErrUnauthorized)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/cart-transfer/transfer", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+id.Token)
	req.Header.Set("X-Guest-Session-Id", guestSessionID)

	var result TransferResult
	if err := c.send(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// cartPath maps an identity onto its endpoint family.
func (c *Client) cartPath(id identity.Identity, suffix string) string {
	if id.IsAuthenticated() {
		return "/cart" + suffix
	}
	return "/guest-cart" + suffix
}

func (c *Client) do(ctx context.Context, id identity.Identity, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id.IsAuthenticated() {
		req.Header.Set("Authorization", "Bearer "+id.Token)
	} else {
		req.Header.Set("X-Guest-Session-Id", id.SessionID)
	}

	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cart backend unreachable: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read backend response: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"component": "backend",
		"method":    req.Method,
		"path":      req.URL.Path,
		"status":    resp.StatusCode,
	}).Debug("backend call completed")

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, ErrUnauthorized)
	case http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, ErrNotFound)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s %s: backend returned status %d", req.Method, req.URL.Path, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("failed to decode backend response: %w", err)
	}
	if !env.Success {
		return fmt.Errorf("%s %s: backend reported failure: %s", req.Method, req.URL.Path, env.Message)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode backend payload: %w", err)
		}
	}
	return nil
}
