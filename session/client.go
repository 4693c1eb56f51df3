package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/tableside/dinein/models"
)

// APIClient implements Store over the server's HTTP API. Diner devices
// construct one per restaurant.
type APIClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type sessionEnvelope struct {
	Status  bool                 `json:"status"`
	Message string               `json:"message"`
	Data    *models.TableSession `json:"data"`
}

func (c *APIClient) GetSessionByToken(ctx context.Context, token string) (*models.TableSession, error) {
	endpoint := fmt.Sprintf("%s/sessions/%s", c.BaseURL, url.PathEscape(token))
	return c.fetchSession(ctx, http.MethodGet, endpoint)
}

func (c *APIClient) CreateSession(ctx context.Context, restaurantID uint, tableNumber string) (*models.TableSession, error) {
	endpoint := fmt.Sprintf("%s/restaurants/%d/tables/%s/session",
		c.BaseURL, restaurantID, url.PathEscape(tableNumber))
	return c.fetchSession(ctx, http.MethodPost, endpoint)
}

func (c *APIClient) fetchSession(ctx context.Context, method, endpoint string) (*models.TableSession, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var envelope sessionEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || envelope.Data == nil {
		return nil, fmt.Errorf("session request failed: %s", envelope.Message)
	}
	return envelope.Data, nil
}

// StoreAdapter exposes the gorm-backed store through the resolver's Store
// interface for in-process callers and tests.
type StoreAdapter struct {
	Sessions interface {
		GetByToken(token string) (*models.TableSession, error)
		Create(restaurantID uint, tableNumber string) (*models.TableSession, bool, error)
	}
}

func (a StoreAdapter) GetSessionByToken(_ context.Context, token string) (*models.TableSession, error) {
	return a.Sessions.GetByToken(token)
}

func (a StoreAdapter) CreateSession(_ context.Context, restaurantID uint, tableNumber string) (*models.TableSession, error) {
	sess, _, err := a.Sessions.Create(restaurantID, tableNumber)
	return sess, err
}
