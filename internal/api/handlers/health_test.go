package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bigkaa/tgmcp/media-cache/internal/storage/mediastore"
)

func TestHealthLive(t *testing.T) {
	h := NewHealthHandler(nil)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	h.HealthLive(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Ожидался статус 200, получен %d", rec.Code)
	}

	var resp healthLiveResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Ошибка разбора ответа: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("Статус: хотели ok, получили %s", resp.Status)
	}
	if resp.Service != "media-cache" {
		t.Errorf("Сервис: хотели media-cache, получили %s", resp.Service)
	}
}

func TestHealthReady(t *testing.T) {
	store, err := mediastore.New(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("Ошибка создания Store: %v", err)
	}

	h := NewHealthHandler(store)

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	h.HealthReady(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Ожидался статус 200, получен %d, тело: %s", rec.Code, rec.Body.String())
	}

	var resp healthReadyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Ошибка разбора ответа: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("Статус: хотели ok, получили %s", resp.Status)
	}
	if resp.Checks.Storage.Status != "ok" {
		t.Errorf("Статус хранилища: хотели ok, получили %s", resp.Checks.Storage.Status)
	}
}

func TestHealthReadyNoChecker(t *testing.T) {
	h := NewHealthHandler(nil)

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	h.HealthReady(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Ожидался статус 503, получен %d", rec.Code)
	}
}
