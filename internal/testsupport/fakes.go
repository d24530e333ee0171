package testsupport

import (
	"context"
	"sync"

	"meetscribe/internal/dispatch"
	"meetscribe/internal/notifications"
	"meetscribe/internal/stage"
)

// Dispatcher records triggers instead of sending them.
type Dispatcher struct {
	mu        sync.Mutex
	Transfers []dispatch.TransferPayload
	Processes []dispatch.ProcessPayload
	// Err is returned from every dispatch call when set.
	Err error
}

func (d *Dispatcher) DispatchTransfer(_ context.Context, payload dispatch.TransferPayload) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return d.Err
	}
	d.Transfers = append(d.Transfers, payload)
	return nil
}

func (d *Dispatcher) DispatchProcess(_ context.Context, payload dispatch.ProcessPayload) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return d.Err
	}
	d.Processes = append(d.Processes, payload)
	return nil
}

func (d *Dispatcher) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(stage.ComponentDispatch)
}

func (d *Dispatcher) Close() error { return nil }

// TransferCount returns the number of recorded transfer triggers.
func (d *Dispatcher) TransferCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Transfers)
}

// ProcessCount returns the number of recorded process triggers.
func (d *Dispatcher) ProcessCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Processes)
}

// Notifier records notification payloads.
type Notifier struct {
	mu       sync.Mutex
	Payloads []notifications.Payload
}

func (n *Notifier) Publish(_ context.Context, payload notifications.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Payloads = append(n.Payloads, payload)
	return nil
}

// Snapshot returns a copy of the recorded payloads.
func (n *Notifier) Snapshot() []notifications.Payload {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notifications.Payload(nil), n.Payloads...)
}
