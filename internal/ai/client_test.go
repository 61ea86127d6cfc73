package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dkontos/go-study-sync/internal/retry"
)

func newAIServer(t *testing.T, status int, capture *map[string]string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/summaries" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if capture != nil {
			_ = json.NewDecoder(r.Body).Decode(capture)
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL, srv.Client())
}

func TestStartSummary_AcceptedSendsPayload(t *testing.T) {
	var got map[string]string
	c := newAIServer(t, http.StatusAccepted, &got)

	if err := c.StartSummary(context.Background(), "d1", "en"); err != nil {
		t.Fatalf("StartSummary: %v", err)
	}
	if got["document_id"] != "d1" || got["language"] != "en" {
		t.Fatalf("request body = %v", got)
	}
}

func TestStartSummary_ErrorClassification(t *testing.T) {
	cases := []struct {
		status    int
		auth      bool
		permanent bool
	}{
		{http.StatusUnauthorized, true, false},
		{http.StatusForbidden, true, false},
		{http.StatusUnprocessableEntity, false, true},
		{http.StatusNotFound, false, true},
		{http.StatusServiceUnavailable, false, false},
	}
	for _, tc := range cases {
		c := newAIServer(t, tc.status, nil)
		err := c.StartSummary(context.Background(), "d1", "en")
		if err == nil {
			t.Errorf("status %d: expected error", tc.status)
			continue
		}
		if retry.IsAuth(err) != tc.auth {
			t.Errorf("status %d: IsAuth = %v; want %v", tc.status, retry.IsAuth(err), tc.auth)
		}
		if retry.IsPermanent(err) != tc.permanent {
			t.Errorf("status %d: IsPermanent = %v; want %v", tc.status, retry.IsPermanent(err), tc.permanent)
		}
	}
}

func TestStartSummary_TransportFailure(t *testing.T) {
	c := New("http://127.0.0.1:1", nil)
	if err := c.StartSummary(context.Background(), "d1", "en"); err == nil {
		t.Fatalf("expected transport error")
	}
}
