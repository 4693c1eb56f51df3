package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name: "valid config",
			config: &Config{
				KeyID:         "key-id",
				KeySecret:     "key-secret",
				WebhookSecret: "hook-secret",
				BaseURL:       "https://api.gateway.test",
			},
			wantErr: false,
		},
		{
			name: "missing key id",
			config: &Config{
				KeySecret:     "key-secret",
				WebhookSecret: "hook-secret",
			},
			wantErr: true,
		},
		{
			name: "missing webhook secret",
			config: &Config{
				KeyID:     "key-id",
				KeySecret: "key-secret",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewService(tt.config)
			err := s.ValidateConfig()
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateChargeCarriesReceipt(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/orders" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(Order{
			ID:      "order_1",
			Amount:  int64(got["amount"].(float64)),
			Receipt: got["receipt"].(string),
			Status:  "created",
		})
	}))
	defer srv.Close()

	s := NewService(&Config{KeyID: "k", KeySecret: "s", WebhookSecret: "w", BaseURL: srv.URL})
	order, err := s.CreateCharge(7000000, "IDR", "17")
	if err != nil {
		t.Fatalf("CreateCharge() error = %v", err)
	}
	if order.Receipt != "17" {
		t.Errorf("receipt = %q, want %q", order.Receipt, "17")
	}
	if got["currency"] != "IDR" {
		t.Errorf("currency = %v, want IDR", got["currency"])
	}
}

func TestFetchOrderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"no such order"}`))
	}))
	defer srv.Close()

	s := NewService(&Config{KeyID: "k", KeySecret: "s", WebhookSecret: "w", BaseURL: srv.URL})
	if _, err := s.FetchOrder("order_missing"); err == nil {
		t.Fatal("expected error for missing order")
	}
}

func TestVerifyWebhookSignature(t *testing.T) {
	s := NewService(&Config{WebhookSecret: "hook-secret"})
	payload := []byte(`{"order_id":"order_1","status":"paid"}`)

	mac := hmac.New(sha256.New, []byte("hook-secret"))
	mac.Write(payload)
	valid := hex.EncodeToString(mac.Sum(nil))

	if !s.VerifyWebhookSignature(payload, valid) {
		t.Error("valid signature rejected")
	}
	if s.VerifyWebhookSignature(payload, "deadbeef") {
		t.Error("invalid signature accepted")
	}
	if s.VerifyWebhookSignature([]byte(`tampered`), valid) {
		t.Error("tampered payload accepted")
	}
}
