package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/weiawesome/seedling-live/internal/domain"
)

// HTTPBackend talks to the storefront REST API.
type HTTPBackend struct {
	baseURL    string
	httpClient *http.Client
	token      func() string
}

// wireItem is the storefront's cart line.
type wireItem struct {
	ProductID   productID   `json:"productId"`
	ProductName string      `json:"productName"`
	Quantity    int         `json:"quantity"`
	Price       int64       `json:"price"`
}

// productID accepts both numeric and string ids.
type productID string

func (p *productID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = productID(s)
		return nil
	}
	*p = productID(bytes.TrimSpace(b))
	return nil
}

// cartResponse is the storefront envelope. Some deployments return the bare
// array instead; decodeItems accepts both.
type cartResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error,omitempty"`
}

// NewHTTPBackend creates a backend for the storefront at baseURL.
func NewHTTPBackend(baseURL string, timeout time.Duration) *HTTPBackend {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPBackend{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		token:      func() string { return "" },
	}
}

// SetTokenSource sets where the bearer token forwarded upstream comes from.
func (b *HTTPBackend) SetTokenSource(fn func() string) {
	if fn != nil {
		b.token = fn
	}
}

// GetCart fetches GET {base}/api/v1/carts/{userID}.
func (b *HTTPBackend) GetCart(ctx context.Context, userID string) ([]domain.CartItem, error) {
	endpoint := fmt.Sprintf("%s/api/v1/carts/%s", b.baseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	b.authorize(req)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cart: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		// no cart yet
		return []domain.CartItem{}, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("cart service returned status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return decodeItems(body)
}

func decodeItems(body []byte) ([]domain.CartItem, error) {
	raw := bytes.TrimSpace(body)
	if len(raw) > 0 && raw[0] == '{' {
		var env cartResponse
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		if !env.Success {
			return nil, fmt.Errorf("cart service error: %s", env.Error)
		}
		raw = env.Data
	}

	var wire []wireItem
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, fmt.Errorf("failed to decode cart items: %w", err)
		}
	}

	items := make([]domain.CartItem, 0, len(wire))
	for _, w := range wire {
		items = append(items, domain.CartItem{
			ProductID:   string(w.ProductID),
			ProductName: w.ProductName,
			Quantity:    w.Quantity,
			UnitPrice:   w.Price,
		})
	}
	return items, nil
}

// Logout calls POST {base}/api/v1/auth/logout. The response body is ignored.
func (b *HTTPBackend) Logout(ctx context.Context, userID string) error {
	payload, _ := json.Marshal(map[string]string{"userId": userID})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/v1/auth/logout", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	b.authorize(req)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("logout returned status: %d", resp.StatusCode)
	}
	return nil
}

func (b *HTTPBackend) authorize(req *http.Request) {
	if tok := b.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
}
