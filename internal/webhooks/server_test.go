package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/onboardia/onboardia/internal/config"
)

func TestSettingsFromConfigHonorsEnv(t *testing.T) {
	t.Setenv("ONBOARDIA_WEBHOOK_PORT", "9001")
	t.Setenv("ONBOARDIA_WEBHOOK_HOST", "0.0.0.0")
	t.Setenv("ONBOARDIA_WEBHOOK_ENABLED", "true")
	cfg := &config.Config{}
	settings := SettingsFromConfig(cfg)
	if settings.Port != 9001 {
		t.Fatalf("expected port 9001, got %d", settings.Port)
	}
	if settings.Host != "0.0.0.0" {
		t.Fatalf("expected host override, got %s", settings.Host)
	}
	if !settings.Enabled {
		t.Fatalf("expected enabled=true from env override")
	}
}

func TestSettingsDefaultDisabled(t *testing.T) {
	settings := SettingsFromConfig(&config.Config{})
	if settings.Enabled {
		t.Fatalf("receiver must be opt-in")
	}
	if settings.Address() == "" {
		t.Fatalf("expected a default bind address")
	}
}

func TestEventValidateAndKey(t *testing.T) {
	evt := Event{
		Action:    " Changed ",
		Resource:  Resource{GID: " 12001 ", ResourceType: "task"},
		CreatedAt: time.Unix(1730000000, 0).UTC(),
	}
	evt.Normalize()
	if err := evt.Validate(); err != nil {
		t.Fatalf("expected valid event, got %v", err)
	}
	if evt.Action != "changed" || evt.Resource.GID != "12001" {
		t.Fatalf("normalize did not canonicalize fields: %+v", evt)
	}
	if evt.Key() != (Event{Action: "changed", Resource: Resource{GID: "12001"}, CreatedAt: evt.CreatedAt}).Key() {
		t.Fatalf("key should depend only on action, gid, created_at")
	}
	evt.Resource.GID = ""
	if err := evt.Validate(); err == nil {
		t.Fatalf("expected missing gid error")
	}
}

func testSettings() Settings {
	return Settings{
		Enabled:      true,
		Host:         "127.0.0.1",
		Port:         0,
		MaxBodyBytes: 4096,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		IdleTimeout:  time.Second,
	}
}

func startTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	srv := NewServer(testSettings(), opts...)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
	})
	return srv
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestServerHandshakeStoresAndEchoesSecret(t *testing.T) {
	store := NewFileSecretStore(filepath.Join(t.TempDir(), "webhook-secret"))
	srv := startTestServer(t, WithSecretStore(store))
	req, err := http.NewRequest(http.MethodPost, srv.BaseURL()+"/webhooks/asana", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("X-Hook-Secret", "s3cret-from-asana")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("handshake request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Hook-Secret"); got != "s3cret-from-asana" {
		t.Fatalf("secret not echoed, got %q", got)
	}
	stored, err := store.Load()
	if err != nil || stored != "s3cret-from-asana" {
		t.Fatalf("secret not persisted: %q err=%v", stored, err)
	}
}

func TestServerAcceptsSignedDelivery(t *testing.T) {
	fixed := time.Unix(1730000000, 0).UTC()
	store := &memorySecretStore{secret: "shared"}
	recorded := make(chan Event, 2)
	srv := startTestServer(t,
		WithSecretStore(store),
		WithClock(func() time.Time { return fixed }),
		WithProcessor(EventProcessorFunc(func(e Event) error {
			recorded <- e
			return nil
		})))
	payload := map[string]any{
		"events": []Event{{
			Action:    "changed",
			Resource:  Resource{GID: "12001", ResourceType: "task", Name: "Onboarding for Priya Nair - Data Engineer"},
			CreatedAt: fixed,
		}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req, _ := http.NewRequest(http.MethodPost, srv.BaseURL()+"/webhooks/asana", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Hook-Signature", signBody("shared", body))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delivery request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var result deliveryResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Accepted != 1 {
		t.Fatalf("expected 1 accepted event, got %d", result.Accepted)
	}
	select {
	case evt := <-recorded:
		if evt.Resource.GID != "12001" {
			t.Fatalf("unexpected event: %+v", evt)
		}
		if evt.DeliveryID == "" {
			t.Fatalf("server must assign a delivery id")
		}
		if !evt.ReceivedAt.Equal(fixed) {
			t.Fatalf("expected clock timestamp, got %s", evt.ReceivedAt)
		}
	default:
		t.Fatalf("event never reached processor")
	}
}

func TestServerRejectsBadSignature(t *testing.T) {
	srv := startTestServer(t, WithSecretStore(&memorySecretStore{secret: "shared"}))
	body := []byte(`{"events":[{"action":"changed","resource":{"gid":"1"}}]}`)
	req, _ := http.NewRequest(http.MethodPost, srv.BaseURL()+"/webhooks/asana", bytes.NewReader(body))
	req.Header.Set("X-Hook-Signature", signBody("wrong-secret", body))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestServerRejectsDeliveryBeforeHandshake(t *testing.T) {
	srv := startTestServer(t)
	body := []byte(`{"events":[]}`)
	req, _ := http.NewRequest(http.MethodPost, srv.BaseURL()+"/webhooks/asana", bytes.NewReader(body))
	req.Header.Set("X-Hook-Signature", signBody("anything", body))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a stored secret, got %d", resp.StatusCode)
	}
}

func TestServerEnforcesPayloadLimit(t *testing.T) {
	srv := startTestServer(t, WithSecretStore(&memorySecretStore{secret: "shared"}))
	body := bytes.Repeat([]byte("a"), 8192)
	req, _ := http.NewRequest(http.MethodPost, srv.BaseURL()+"/webhooks/asana", bytes.NewReader(body))
	req.Header.Set("X-Hook-Signature", signBody("shared", body))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", resp.StatusCode)
	}
}

func TestServerHealthReportsHandshake(t *testing.T) {
	srv := startTestServer(t, WithSecretStore(&memorySecretStore{secret: "shared"}))
	resp, err := http.Get(srv.BaseURL() + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 health, got %d", resp.StatusCode)
	}
	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Status != string(StatusReady) {
		t.Fatalf("expected ready status, got %s", health.Status)
	}
	if !health.Handshaken {
		t.Fatalf("expected handshaken=true with a stored secret")
	}
}

func TestServerDisabledRefusesStart(t *testing.T) {
	settings := testSettings()
	settings.Enabled = false
	srv := NewServer(settings)
	if err := srv.Start(context.Background()); err == nil {
		t.Fatalf("expected disabled error")
	}
}
