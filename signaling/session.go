package signaling

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
)

// SessionRequest asks the service to start a streaming session.
type SessionRequest struct {
	AppID     string `json:"app_id"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	FPS       int    `json:"fps"`
	Codec     string `json:"codec"`
	EnableHDR bool   `json:"enable_hdr,omitempty"`
}

// SessionResponse carries everything needed to join the session.
type SessionResponse struct {
	SessionID    string   `json:"session_id"`
	SignalingURL string   `json:"signaling_url"`
	ICEServers   []string `json:"ice_servers"`
}

// SessionAPI is the session REST client. It rides HTTP/3 where the service
// supports it, cutting a round trip from setup on lossy links, and falls
// back to HTTP/2 otherwise.
type SessionAPI struct {
	log     *slog.Logger
	base    string
	client  *http.Client
	cleanup func()
}

// NewSessionAPI returns a client for the session API at base (scheme and
// host, no trailing slash).
func NewSessionAPI(base string, useHTTP3 bool) *SessionAPI {
	api := &SessionAPI{
		log:  slog.With("component", "signaling"),
		base: base,
	}
	if useHTTP3 {
		rt := &http3.Transport{
			TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS13},
			QUICConfig:      &quic.Config{MaxIdleTimeout: 30 * time.Second},
		}
		api.client = &http.Client{Transport: rt, Timeout: 15 * time.Second}
		api.cleanup = func() { rt.Close() }
	} else {
		api.client = &http.Client{Timeout: 15 * time.Second}
	}
	return api
}

// Create starts a session.
func (a *SessionAPI) Create(ctx context.Context, req SessionRequest) (*SessionResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.base+"/v1/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("create session: status %d: %s", resp.StatusCode, msg)
	}
	var out SessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("create session: decode: %w", err)
	}
	a.log.Info("session created", "session_id", out.SessionID)
	return &out, nil
}

// Stop tears down a session server-side.
func (a *SessionAPI) Stop(ctx context.Context, sessionID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, a.base+"/v1/sessions/"+sessionID, nil)
	if err != nil {
		return err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("stop session: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("stop session: status %d", resp.StatusCode)
	}
	return nil
}

// Close releases transport resources.
func (a *SessionAPI) Close() {
	if a.cleanup != nil {
		a.cleanup()
	}
}
