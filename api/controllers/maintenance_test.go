package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	webhooksvc "github.com/obinnaeke/tradelane-backend/internal/webhooks"
	"github.com/obinnaeke/tradelane-backend/pkg/config"
	"github.com/obinnaeke/tradelane-backend/pkg/db/models"
	"github.com/obinnaeke/tradelane-backend/pkg/logger"
)

type stubPruneService struct {
	result     *webhooksvc.PruneResult
	err        error
	calls      int
	lastCutoff time.Time
	lastBatch  int
}

func (s *stubPruneService) VerifySignature(body []byte, signature string) bool {
	panic("unimplemented")
}

func (s *stubPruneService) IsProcessed(ctx context.Context, transactionRef string) (bool, error) {
	panic("unimplemented")
}

func (s *stubPruneService) MarkProcessed(ctx context.Context, transactionRef, eventType string, signature *string) (*models.WebhookEvent, bool, error) {
	panic("unimplemented")
}

func (s *stubPruneService) Process(ctx context.Context, input webhooksvc.ProcessInput) (*webhooksvc.Result, error) {
	panic("unimplemented")
}

func (s *stubPruneService) PruneOlderThan(ctx context.Context, cutoff time.Time, batchSize int) (*webhooksvc.PruneResult, error) {
	s.calls++
	s.lastCutoff = cutoff
	s.lastBatch = batchSize
	return s.result, s.err
}

func pruneConfig() config.RetentionConfig {
	return config.RetentionConfig{WebhookEventDays: 30, PruneBatchSize: 500}
}

func wantCutoffDays(t *testing.T, cutoff time.Time, days int) {
	t.Helper()
	expected := time.Now().UTC().AddDate(0, 0, -days)
	if diff := expected.Sub(cutoff); diff < -time.Minute || diff > time.Minute {
		t.Fatalf("expected cutoff about %d days back, got %s", days, cutoff)
	}
}

func TestWebhookEventPruneUsesConfiguredRetention(t *testing.T) {
	svc := &stubPruneService{result: &webhooksvc.PruneResult{Deleted: 12}}
	handler := WebhookEventPrune(svc, pruneConfig(), logger.New(logger.Options{ServiceName: "maintenance-test"}))

	req := httptest.NewRequest(http.MethodPost, "/v1/maintenance/webhook-events/prune", nil)
	resp := doJSON(handler, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.calls != 1 {
		t.Fatalf("expected one prune call, got %d", svc.calls)
	}
	wantCutoffDays(t, svc.lastCutoff, 30)
	if svc.lastBatch != 500 {
		t.Fatalf("expected configured batch size, got %d", svc.lastBatch)
	}
}

func TestWebhookEventPruneHonorsRetentionOverride(t *testing.T) {
	svc := &stubPruneService{result: &webhooksvc.PruneResult{Deleted: 3}}
	handler := WebhookEventPrune(svc, pruneConfig(), logger.New(logger.Options{ServiceName: "maintenance-test"}))

	body := `{"retention_days": 7}`
	req := httptest.NewRequest(http.MethodPost, "/v1/maintenance/webhook-events/prune", strings.NewReader(body))
	resp := doJSON(handler, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	wantCutoffDays(t, svc.lastCutoff, 7)
}

func TestWebhookEventPruneRejectsNonPositiveRetention(t *testing.T) {
	svc := &stubPruneService{}
	handler := WebhookEventPrune(svc, pruneConfig(), logger.New(logger.Options{ServiceName: "maintenance-test"}))

	body := `{"retention_days": 0}`
	req := httptest.NewRequest(http.MethodPost, "/v1/maintenance/webhook-events/prune", strings.NewReader(body))
	resp := doJSON(handler, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if svc.calls != 0 {
		t.Fatal("a rejected request must not prune anything")
	}
}
