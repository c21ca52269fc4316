package sync

import (
	"context"
	"sync/atomic"

	"github.com/sahelpos/terminal/internal/logging"
)

// Mode is the terminal's connectivity mode as last observed.
type Mode string

const (
	ModeCloud   Mode = "cloud"
	ModeOffline Mode = "offline"
)

// Prober determines whether the central server is reachable. It never
// returns an error: every failure mode collapses to Offline. The last
// observed mode is kept in memory for the UI.
type Prober struct {
	client *Client
	mode   atomic.Value // Mode
}

// NewProber creates a Prober over the given transport.
func NewProber(client *Client) *Prober {
	p := &Prober{client: client}
	p.mode.Store(ModeOffline)
	return p
}

// Probe checks server reachability and records the observed mode.
func (p *Prober) Probe(ctx context.Context) Mode {
	mode := ModeCloud
	if err := p.client.Ping(ctx); err != nil {
		logging.Debug("Connectivity probe failed",
			map[string]interface{}{"reason": err.Error()})
		mode = ModeOffline
	}
	p.mode.Store(mode)
	return mode
}

// Mode returns the mode observed by the most recent probe.
func (p *Prober) Mode() Mode {
	return p.mode.Load().(Mode)
}
