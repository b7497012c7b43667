package signaling

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSessionCreateAndStop(t *testing.T) {
	t.Parallel()

	var stopped string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/sessions":
			var req SessionRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode request: %v", err)
			}
			if req.Codec != "h264" || req.Width != 1920 {
				t.Errorf("request = %+v", req)
			}
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(SessionResponse{
				SessionID:    "sess-1",
				SignalingURL: "wss://example/signal",
				ICEServers:   []string{"stun:stun.example:3478"},
			})
		case r.Method == http.MethodDelete:
			stopped = r.URL.Path
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	api := NewSessionAPI(srv.URL, false)
	defer api.Close()

	resp, err := api.Create(context.Background(), SessionRequest{
		AppID: "app", Width: 1920, Height: 1080, FPS: 60, Codec: "h264",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if resp.SessionID != "sess-1" || len(resp.ICEServers) != 1 {
		t.Errorf("response = %+v", resp)
	}

	if err := api.Stop(context.Background(), resp.SessionID); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if stopped != "/v1/sessions/sess-1" {
		t.Errorf("stop path = %q", stopped)
	}
}

func TestSessionCreateErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no capacity", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	api := NewSessionAPI(srv.URL, false)
	defer api.Close()

	if _, err := api.Create(context.Background(), SessionRequest{}); err == nil {
		t.Fatal("Create succeeded against a 503")
	}
}
