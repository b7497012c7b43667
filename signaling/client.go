// Package signaling exchanges SDP, ICE candidates and protocol version hints
// with the streaming service: a websocket channel for the offer/answer dance
// and an HTTP/3 client for the session REST API.
package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
)

const pingInterval = 20 * time.Second

// Message is the websocket signaling envelope.
type Message struct {
	Type      string                   `json:"type"`
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
	Version   uint8                    `json:"version,omitempty"`
	Error     string                   `json:"error,omitempty"`
}

// Message types on the signaling channel.
const (
	MessageOffer     = "offer"
	MessageAnswer    = "answer"
	MessageCandidate = "candidate"
	MessageVersion   = "version"
	MessageError     = "error"
)

// Handlers receive the remote side's signaling messages. Called from the
// read loop goroutine.
type Handlers struct {
	OnAnswer          func(sdp string)
	OnRemoteCandidate func(c webrtc.ICECandidateInit)
	OnVersion         func(version uint8)
}

// Client is a websocket signaling client. Writes are serialized; gorilla
// connections allow one concurrent writer.
type Client struct {
	log      *slog.Logger
	conn     *websocket.Conn
	handlers Handlers

	writeMu sync.Mutex
}

// Dial connects to the signaling endpoint.
func Dial(ctx context.Context, url string, handlers Handlers) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("signaling dial %s: %w", url, err)
	}
	return &Client{
		log:      slog.With("component", "signaling"),
		conn:     conn,
		handlers: handlers,
	}, nil
}

// SendOffer transmits the local SDP offer.
func (c *Client) SendOffer(sdp string) error {
	return c.send(Message{Type: MessageOffer, SDP: sdp})
}

// SendCandidate transmits one trickled local ICE candidate.
func (c *Client) SendCandidate(cand webrtc.ICECandidateInit) error {
	return c.send(Message{Type: MessageCandidate, Candidate: &cand})
}

func (c *Client) send(m Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(m)
}

// Run reads signaling messages until the connection drops or ctx is
// cancelled, pinging periodically to keep middleboxes from idling out the
// connection.
func (c *Client) Run(ctx context.Context) error {
	go c.pingLoop(ctx)
	go func() {
		<-ctx.Done()
		c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return fmt.Errorf("signaling read: %w", err)
			}
			return nil
		}
		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			c.log.Warn("malformed signaling message", "error", err)
			continue
		}
		c.dispatch(m)
	}
}

func (c *Client) dispatch(m Message) {
	switch m.Type {
	case MessageAnswer:
		if c.handlers.OnAnswer != nil {
			c.handlers.OnAnswer(m.SDP)
		}
	case MessageCandidate:
		if m.Candidate != nil && c.handlers.OnRemoteCandidate != nil {
			c.handlers.OnRemoteCandidate(*m.Candidate)
		}
	case MessageVersion:
		if c.handlers.OnVersion != nil {
			c.handlers.OnVersion(m.Version)
		}
	case MessageError:
		c.log.Error("signaling error from server", "error", m.Error)
	default:
		c.log.Debug("ignoring signaling message", "type", m.Type)
	}
}

func (c *Client) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// Close sends a close frame and tears down the connection.
func (c *Client) Close() error {
	c.writeMu.Lock()
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return c.conn.Close()
}
