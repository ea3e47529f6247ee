// Package events is the control plane's outbound notification bus.
// External collaborators (chat bridges, dashboards, alert sinks) subscribe
// to a tagged union of event types; the control plane publishes and never
// blocks on a subscriber.
package events

import (
	"sync"

	"github.com/legop3/MultiRoombaRover-sub000/internal/codec"
	"github.com/legop3/MultiRoombaRover-sub000/pkg/types"
)

// Event is the tagged union of everything the control plane announces.
type Event interface{ isEvent() }

type ModeChanged struct{ Mode string }

type DeviceOnline struct{ DeviceID string }

type DeviceOffline struct{ DeviceID string }

type DeviceLocked struct {
	DeviceID string
	Reason   string
}

type DeviceUnlocked struct{ DeviceID string }

type CommandAck struct {
	DeviceID string
	ID       string
	Status   string
	Error    string
}

// DeviceEvent is a passthrough of a device-reported event frame.
type DeviceEvent struct {
	DeviceID string
	Event    string
	Ts       int64
}

type BatteryWarn struct {
	DeviceID string
	Percent  float64
}

type BatteryUrgent struct {
	DeviceID string
	Percent  float64
}

type BatteryDocked struct {
	DeviceID string
	Docked   bool
}

// SensorUpdate carries the latest accepted sensor snapshot for a device,
// with the lock state the battery supervisor needs for its decisions.
type SensorUpdate struct {
	DeviceID   string
	Sensors    *codec.Sensors
	Battery    *types.BatteryConfig
	Locked     bool
	LockReason string
}

func (ModeChanged) isEvent()    {}
func (DeviceOnline) isEvent()   {}
func (DeviceOffline) isEvent()  {}
func (DeviceLocked) isEvent()   {}
func (DeviceUnlocked) isEvent() {}
func (CommandAck) isEvent()     {}
func (DeviceEvent) isEvent()    {}
func (BatteryWarn) isEvent()    {}
func (BatteryUrgent) isEvent()  {}
func (BatteryDocked) isEvent()  {}
func (SensorUpdate) isEvent()   {}

// Bus fans events out to subscriber channels. Publish never blocks: a
// subscriber whose buffer is full misses the event.
type Bus struct {
	mu   sync.Mutex
	next int
	subs map[int]chan Event
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe returns a receive channel with the given buffer and a cancel
// function that closes it.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan Event, buffer)
	b.subs[id] = ch
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
}

func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			// slow subscriber, drop
		}
	}
}
