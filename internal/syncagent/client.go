package syncagent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"orderhub/internal/order/domain/models"
)

// APIError is a non-2xx answer from the order API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("order api: %d %s", e.Status, e.Message)
}

// APIClient talks to the order service over HTTP. It implements Fetcher
// and Submitter.
type APIClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewAPIClient(baseURL, token string, client *http.Client) *APIClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    client,
	}
}

func (c *APIClient) Fetch(ctx context.Context, scope Scope) ([]models.Order, error) {
	path := "/users/me/orders"
	if scope.Kind == ScopeOutlet {
		path = "/outlets/" + url.PathEscape(scope.ID) + "/orders"
	}
	var orders []models.Order
	if err := c.do(ctx, http.MethodGet, path, nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *APIClient) Submit(ctx context.Context, a Action) (models.Order, error) {
	base := "/orders/" + url.PathEscape(a.OrderID)
	switch a.Kind {
	case ActionTransition:
		var order models.Order
		err := c.do(ctx, http.MethodPost, base+"/status", map[string]string{"status": string(a.Status)}, &order)
		return order, err
	case ActionAddItems:
		var order models.Order
		err := c.do(ctx, http.MethodPost, base+"/items", map[string]any{"items": a.Items}, &order)
		return order, err
	case ActionGenerateTicket:
		var res struct {
			Order  *models.Order `json:"order"`
			Notice string        `json:"notice"`
		}
		if err := c.do(ctx, http.MethodPost, base+"/kot", map[string]any{"itemIds": a.ItemIDs}, &res); err != nil {
			return models.Order{}, err
		}
		if res.Order != nil {
			return *res.Order, nil
		}
		// nothing new was printed, the stored order is unchanged
		var order models.Order
		err := c.do(ctx, http.MethodGet, base, nil, &order)
		return order, err
	default:
		return models.Order{}, fmt.Errorf("unknown action %q", a.Kind)
	}
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
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
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return &APIError{Status: resp.StatusCode, Message: apiErr.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
