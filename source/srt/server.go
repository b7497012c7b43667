// Package srt accepts a local SRT publisher carrying a raw Annex B
// elementary stream and feeds it straight to the decode engine. It exists
// for bench setups and latency measurement, bypassing signaling and WebRTC
// entirely.
package srt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	srtgo "github.com/zsiec/srtgo"
)

// srtReadBufferSize is the read buffer for SRT socket reads.
// 1316 bytes = 7 MPEG-TS packets (188 * 7), the standard SRT payload size.
const srtReadBufferSize = 1316 * 10

// srtLatencyNs is the SRT latency setting in nanoseconds (20ms). Local
// links do not need the retransmission headroom of internet ingest.
const srtLatencyNs = 20_000_000

// Server accepts one SRT publisher at a time and delivers complete access
// units to the sink callback with wall-clock timestamps.
type Server struct {
	log  *slog.Logger
	addr string
	sink func(au []byte, timestampUs uint64)
	now  func() time.Time
}

// NewServer creates an SRT source listening on addr. sink receives each
// access unit; it must not retain the slice past the call.
func NewServer(addr string, sink func(au []byte, timestampUs uint64)) *Server {
	return &Server{
		log:  slog.With("component", "srt-source"),
		addr: addr,
		sink: sink,
		now:  time.Now,
	}
}

// Start begins accepting SRT publish connections. It blocks until the
// context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	cfg := srtgo.DefaultConfig()
	cfg.Latency = srtLatencyNs

	l, err := srtgo.Listen(s.addr, cfg)
	if err != nil {
		return fmt.Errorf("SRT listen on %s: %w", s.addr, err)
	}
	s.log.Info("listening", "addr", s.addr)

	l.SetAcceptRejectFunc(func(req srtgo.ConnRequest) srtgo.RejectReason {
		if req.StreamID == "" {
			return srtgo.RejPeer
		}
		return 0
	})

	go func() {
		<-ctx.Done()
		l.Close()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Warn("accept error", "error", err)
			continue
		}

		streamKey := extractStreamKey(conn.StreamID())
		s.log.Info("publish", "stream_key", streamKey, "remote", conn.RemoteAddr())
		s.handleConnection(ctx, conn, streamKey)
	}
}

func (s *Server) handleConnection(ctx context.Context, conn *srtgo.Conn, streamKey string) {
	defer conn.Close()

	splitter := newAUSplitter()
	start := s.now()
	var bytesIn, units uint64

	buf := make([]byte, srtReadBufferSize)
	for {
		if ctx.Err() != nil {
			break
		}
		n, err := conn.Read(buf)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.Debug("read error", "stream_key", streamKey, "error", err)
			}
			break
		}
		bytesIn += uint64(n)
		for _, au := range splitter.push(buf[:n]) {
			units++
			s.sink(au, uint64(s.now().Sub(start).Microseconds()))
		}
	}

	if au := splitter.flush(); au != nil {
		units++
		s.sink(au, uint64(s.now().Sub(start).Microseconds()))
	}
	s.log.Info("connection closed", "stream_key", streamKey,
		"bytes", bytesIn, "access_units", units,
		"uptime_ms", s.now().Sub(start).Milliseconds())
}

func extractStreamKey(streamID string) string {
	streamID = strings.TrimPrefix(streamID, "/")
	streamID = strings.TrimPrefix(streamID, "live/")
	if streamID == "" {
		return "default"
	}
	return streamID
}
