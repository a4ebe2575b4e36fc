package quota_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/eigo-sensei/server/internal/bot/model"
	"github.com/eigo-sensei/server/internal/bot/quota"
)

type counterBackend struct {
	counts   map[string]int
	requests []map[string]any
}

func (b *counterBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	b.requests = append(b.requests, payload)

	userID, _ := payload["user_id"].(string)
	if _, checkOnly := payload["check_only"]; !checkOnly {
		b.counts[userID]++
	}
	_ = json.NewEncoder(w).Encode(map[string]int{"count": b.counts[userID]})
}

func newGate(url string, limit int) *quota.Gate {
	return quota.New(model.QuotaConfig{URL: url, DailyLimit: limit, TimeoutSeconds: 2})
}

func TestIsOverLimitAtCeiling(t *testing.T) {
	backend := &counterBackend{counts: map[string]int{}}
	srv := httptest.NewServer(backend)
	defer srv.Close()

	gate := newGate(srv.URL, 5)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if !gate.RecordUsage(ctx, "u1") {
			t.Fatalf("record %d failed", i)
		}
		if gate.IsOverLimit(ctx, "u1") {
			t.Fatalf("unexpectedly over limit after %d uses", i+1)
		}
	}

	if !gate.RecordUsage(ctx, "u1") {
		t.Fatal("fifth record failed")
	}
	if !gate.IsOverLimit(ctx, "u1") {
		t.Fatal("expected over limit after 5 recorded uses")
	}
}

func TestCheckFailsOpenWhenBackendDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	gate := newGate(url, 5)
	if gate.IsOverLimit(context.Background(), "u1") {
		t.Fatal("unreachable backend must fail open")
	}
	if gate.RecordUsage(context.Background(), "u1") {
		t.Fatal("unreachable backend record must report failure")
	}
}

func TestCheckFailsOpenOnMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	gate := newGate(srv.URL, 5)
	if gate.IsOverLimit(context.Background(), "u1") {
		t.Fatal("parse failure must fail open")
	}
}

func TestRequestPayloadShape(t *testing.T) {
	backend := &counterBackend{counts: map[string]int{}}
	srv := httptest.NewServer(backend)
	defer srv.Close()

	gate := newGate(srv.URL, 5)
	gate.IsOverLimit(context.Background(), "u1")
	gate.RecordUsage(context.Background(), "u1")

	if len(backend.requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(backend.requests))
	}

	today := time.Now().Format("2006-01-02")

	check := backend.requests[0]
	if check["user_id"] != "u1" || check["date"] != today || check["check_only"] != true {
		t.Fatalf("unexpected check payload: %v", check)
	}
	if _, hasCount := check["count"]; hasCount {
		t.Fatal("check payload must not carry a count")
	}

	record := backend.requests[1]
	if record["user_id"] != "u1" || record["date"] != today || record["count"] != float64(1) {
		t.Fatalf("unexpected record payload: %v", record)
	}
}
