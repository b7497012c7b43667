//go:build !linux

package input

import "log/slog"

// EvdevBackend is Linux-only; other platforms get an empty backend so the
// poll loop still runs and the rumble schedule stays serviceable.
type EvdevBackend struct{}

// NewEvdevBackend returns a backend with no devices on non-Linux platforms.
func NewEvdevBackend(log *slog.Logger) (*EvdevBackend, error) {
	if log != nil {
		log.Info("controller polling unavailable on this platform")
	}
	return &EvdevBackend{}, nil
}

func (b *EvdevBackend) Refresh() error    { return nil }
func (b *EvdevBackend) Devices() []Device { return nil }
func (b *EvdevBackend) Close() error      { return nil }
