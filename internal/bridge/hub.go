package bridge

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/muurk/tuyalocal/internal/config"
	"github.com/muurk/tuyalocal/internal/device"
	"github.com/muurk/tuyalocal/internal/entity"
	"github.com/muurk/tuyalocal/internal/logging"
)

// subscriberBuffer is the per-subscriber event queue length. Events for a
// subscriber whose queue is full are dropped.
const subscriberBuffer = 32

// Hub owns the entities of every configured device and fans their state
// changes out to subscribers
type Hub struct {
	mu       sync.RWMutex
	entities map[string]entity.Entity

	subMu  sync.Mutex
	subs   map[chan entity.Snapshot]struct{}
	closed bool
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		entities: make(map[string]entity.Entity),
		subs:     make(map[chan entity.Snapshot]struct{}),
	}
}

// FromRegistry builds an entity for every device in reg and starts it.
// A device that cannot be created is logged and skipped.
func FromRegistry(reg *config.Registry) (*Hub, error) {
	h := NewHub()
	for _, id := range reg.DeviceIDs() {
		d := reg.GetDevice(id)
		e, err := entity.New(d.Kind(), d.DisplayName(id), d.SessionConfig(id, reg.Preferences))
		if err != nil {
			logging.Error("Failed to create device",
				zap.String("device_id", id),
				zap.Error(err),
			)
			continue
		}
		if err := h.Add(e); err != nil {
			logging.Error("Failed to start device",
				zap.String("device_id", id),
				zap.Error(err),
			)
			_ = e.Close()
		}
	}
	if len(h.entities) == 0 && len(reg.Devices) > 0 {
		return nil, errors.New("no configured device could be started")
	}
	return h, nil
}

// Add registers e and subscribes it to its device
func (h *Hub) Add(e entity.Entity) error {
	h.mu.Lock()
	if _, exists := h.entities[e.ID()]; exists {
		h.mu.Unlock()
		return fmt.Errorf("device %s already registered", e.ID())
	}
	h.entities[e.ID()] = e
	h.mu.Unlock()

	e.OnChange(h.publish)
	if err := e.Start(); err != nil {
		h.mu.Lock()
		delete(h.entities, e.ID())
		h.mu.Unlock()
		return err
	}

	logging.Info("Device registered",
		zap.String("device_id", e.ID()),
		zap.String("name", e.Name()),
		zap.String("kind", string(e.Kind())),
	)
	return nil
}

// Get finds an entity by id or name
func (h *Hub) Get(idOrName string) (entity.Entity, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if e, ok := h.entities[idOrName]; ok {
		return e, true
	}
	for _, e := range h.entities {
		if e.Name() == idOrName {
			return e, true
		}
	}
	return nil, false
}

// Entities returns every entity sorted by id
func (h *Hub) Entities() []entity.Entity {
	h.mu.RLock()
	out := make([]entity.Entity, 0, len(h.entities))
	for _, e := range h.entities {
		out = append(out, e)
	}
	h.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Snapshots returns the current state of every entity sorted by id
func (h *Hub) Snapshots() []entity.Snapshot {
	entities := h.Entities()
	out := make([]entity.Snapshot, len(entities))
	for i, e := range entities {
		out[i] = e.Snapshot()
	}
	return out
}

// Refresh asks every device for its status. Failures are logged; the
// number of devices that failed is returned.
func (h *Hub) Refresh() int {
	failed := 0
	for _, e := range h.Entities() {
		if err := e.Update(); err != nil {
			failed++
			logging.Warn("Status poll failed",
				zap.String("device_id", e.ID()),
				zap.String("error", device.GetShortErrorMessage(err)),
			)
		}
	}
	return failed
}

// Execute runs a command. The result is always filled in; err is the
// cause when the command failed.
func (h *Hub) Execute(cmd Command) (Result, error) {
	res := Result{ID: cmd.ID, Device: cmd.Device, Action: cmd.Action}

	e, ok := h.Get(cmd.Device)
	if !ok {
		err := fmt.Errorf("%w: %s", ErrUnknownDevice, cmd.Device)
		res.Error = err.Error()
		return res, err
	}
	res.Device = e.ID()

	if err := apply(e, cmd); err != nil {
		logging.Warn("Command failed",
			zap.String("device_id", e.ID()),
			zap.String("action", string(cmd.Action)),
			zap.Error(err),
		)
		res.Error = device.GetShortErrorMessage(err)
		return res, err
	}

	logging.Debug("Command sent",
		zap.String("device_id", e.ID()),
		zap.String("action", string(cmd.Action)),
	)
	snap := e.Snapshot()
	res.OK = true
	res.State = &snap
	return res, nil
}

// Subscribe returns a channel of state changes and a function that
// unsubscribes and closes it
func (h *Hub) Subscribe() (<-chan entity.Snapshot, func()) {
	ch := make(chan entity.Snapshot, subscriberBuffer)

	h.subMu.Lock()
	if h.closed {
		h.subMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}
	h.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.subMu.Lock()
			if _, ok := h.subs[ch]; ok {
				delete(h.subs, ch)
				close(ch)
			}
			h.subMu.Unlock()
		})
	}
}

func (h *Hub) publish(snap entity.Snapshot) {
	h.subMu.Lock()
	defer h.subMu.Unlock()

	for ch := range h.subs {
		select {
		case ch <- snap:
		default:
			logging.Warn("Dropping state event for slow subscriber",
				zap.String("device_id", snap.ID),
			)
		}
	}
}

// Close closes every device session and every subscriber channel
func (h *Hub) Close() error {
	h.subMu.Lock()
	if h.closed {
		h.subMu.Unlock()
		return nil
	}
	h.closed = true
	for ch := range h.subs {
		close(ch)
	}
	h.subs = make(map[chan entity.Snapshot]struct{})
	h.subMu.Unlock()

	var errs []error
	for _, e := range h.Entities() {
		if err := e.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.ID(), err))
		}
	}
	return errors.Join(errs...)
}
