package paystack

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/zenofund/companion/internal/payment"
)

func TestInitializeSendsSplit(t *testing.T) {
	var got initializeRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transaction/initialize" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk_test_x" {
			t.Errorf("authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": true,
			"data": map[string]any{
				"authorization_url": "https://checkout.paystack.com/abc",
				"reference":         got.Reference,
			},
		})
	}))
	defer server.Close()

	client := NewClient("sk_test_x", server.URL, 5*time.Second)
	auth, err := client.Initialize(context.Background(), payment.Charge{
		Reference:      "ref-1",
		Amount:         10000,
		Currency:       "NGN",
		Email:          "client@example.com",
		SubaccountCode: "ACCT_abc",
		PlatformFee:    2000,
	})
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if auth.URL != "https://checkout.paystack.com/abc" {
		t.Errorf("url = %s", auth.URL)
	}
	if got.Subaccount != "ACCT_abc" || got.TransactionCharge != 2000 || got.Bearer != "subaccount" {
		t.Errorf("split fields = %+v", got)
	}
}

func TestVerify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transaction/verify/ref-1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": true,
			"data": map[string]any{
				"status":   "success",
				"amount":   10000,
				"currency": "NGN",
				"paid_at":  "2026-08-28T10:00:00Z",
			},
		})
	}))
	defer server.Close()

	client := NewClient("sk_test_x", server.URL, 5*time.Second)
	result, err := client.Verify(context.Background(), "ref-1")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !result.Paid || result.Amount != 10000 {
		t.Errorf("result = %+v", result)
	}
	if result.PaidAt.IsZero() {
		t.Error("expected PaidAt")
	}
}

func TestVerifyFailedTransaction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": true,
			"data":   map[string]any{"status": "failed", "amount": 10000, "currency": "NGN"},
		})
	}))
	defer server.Close()

	client := NewClient("sk_test_x", server.URL, 5*time.Second)
	result, err := client.Verify(context.Background(), "ref-1")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.Paid {
		t.Error("failed transaction reported as paid")
	}
}

func TestAPIErrorSurfacesMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  false,
			"message": "Invalid key",
		})
	}))
	defer server.Close()

	client := NewClient("sk_bad", server.URL, 5*time.Second)
	if _, err := client.Verify(context.Background(), "ref-1"); err == nil {
		t.Fatal("expected error")
	}
}

func TestValidSignature(t *testing.T) {
	body := []byte(`{"event":"charge.success"}`)
	mac := hmac.New(sha512.New, []byte("secret"))
	mac.Write(body)
	signature := hex.EncodeToString(mac.Sum(nil))

	if !ValidSignature("secret", body, signature) {
		t.Error("valid signature rejected")
	}
	if ValidSignature("secret", body, "deadbeef") {
		t.Error("bad signature accepted")
	}
	if ValidSignature("wrong", body, signature) {
		t.Error("signature under wrong key accepted")
	}
}

func TestParseWebhook(t *testing.T) {
	event, err := ParseWebhook([]byte(`{"event":"charge.success","data":{"reference":"ref-1","status":"success","amount":10000}}`))
	if err != nil {
		t.Fatalf("ParseWebhook: %v", err)
	}
	if event.Event != "charge.success" || event.Data.Reference != "ref-1" {
		t.Errorf("event = %+v", event)
	}
}
