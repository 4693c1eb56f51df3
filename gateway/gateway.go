package gateway

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"
)

// Config holds payment gateway credentials.
type Config struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	BaseURL       string
}

// Service talks to the hosted payment gateway: charge creation with a
// receipt reference, order lookup for webhook reconciliation, and webhook
// signature verification.
type Service struct {
	config     *Config
	httpClient *http.Client
}

var (
	gatewayService *Service
	gatewayOnce    sync.Once
)

// GetService returns the singleton gateway client configured from the
// environment.
func GetService() *Service {
	gatewayOnce.Do(func() {
		baseURL := os.Getenv("GATEWAY_BASE_URL")
		if baseURL == "" {
			baseURL = "https://api.gateway.test"
		}
		gatewayService = &Service{
			config: &Config{
				KeyID:         os.Getenv("GATEWAY_KEY_ID"),
				KeySecret:     os.Getenv("GATEWAY_KEY_SECRET"),
				WebhookSecret: os.Getenv("GATEWAY_WEBHOOK_SECRET"),
				BaseURL:       baseURL,
			},
			httpClient: &http.Client{
				Timeout: 30 * time.Second,
			},
		}
	})
	return gatewayService
}

// NewService creates a gateway client with explicit config (tests).
func NewService(config *Config) *Service {
	return &Service{
		config: config,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ValidateConfig checks the required credentials are present.
func (s *Service) ValidateConfig() error {
	if s.config.KeyID == "" {
		return fmt.Errorf("GATEWAY_KEY_ID is not set")
	}
	if s.config.KeySecret == "" {
		return fmt.Errorf("GATEWAY_KEY_SECRET is not set")
	}
	if s.config.WebhookSecret == "" {
		return fmt.Errorf("GATEWAY_WEBHOOK_SECRET is not set")
	}
	return nil
}

// Order is the gateway-side payment order. Receipt carries the session id
// embedded at creation time, which is how webhooks resolve back to a
// session.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// CreateCharge opens a payment order at the gateway. Amount is in minor
// units.
func (s *Service) CreateCharge(amount int64, currency, receipt string) (*Order, error) {
	payload := map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %v", err)
	}

	req, err := http.NewRequest("POST", s.config.BaseURL+"/v1/orders", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", s.basicAuth())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making request: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway API error: %s", string(body))
	}

	var order Order
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, fmt.Errorf("error unmarshaling response: %v", err)
	}
	return &order, nil
}

// FetchOrder retrieves a gateway order by id; the webhook handler uses
// the returned receipt to resolve the session.
func (s *Service) FetchOrder(gatewayOrderID string) (*Order, error) {
	req, err := http.NewRequest("GET", s.config.BaseURL+"/v1/orders/"+gatewayOrderID, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", s.basicAuth())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making request: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway API error: %s", string(body))
	}

	var order Order
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, fmt.Errorf("error unmarshaling response: %v", err)
	}
	return &order, nil
}

// VerifyWebhookSignature checks the HMAC-SHA256 of the raw webhook body
// against the shared webhook secret.
func (s *Service) VerifyWebhookSignature(payload []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(s.config.WebhookSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (s *Service) basicAuth() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(s.config.KeyID+":"+s.config.KeySecret))
}
