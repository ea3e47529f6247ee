package fleet

import (
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/legop3/MultiRoombaRover-sub000/internal/codec"
	"github.com/legop3/MultiRoombaRover-sub000/internal/events"
	"github.com/legop3/MultiRoombaRover-sub000/pkg/types"
)

func (f *Fleet) upsertRover(meta types.RoverMeta, outbox chan types.Command) {
	id := meta.Name
	if id == "" {
		f.logger.Warn("rover hello without a name, dropped")
		return
	}
	r, ok := f.rovers[id]
	if !ok {
		r = &rover{id: id, drivers: make(map[string]bool)}
		f.rovers[id] = r
		f.order = append(f.order, id)
	}
	online := r.outbox == nil
	if r.outbox != nil && r.outbox != outbox {
		// reconnect with a fresh channel: hang up the displaced writer
		close(r.outbox)
	}
	r.meta = meta
	r.outbox = outbox
	r.lastSeen = time.Now()

	// spectators follow every rover
	for _, sess := range f.sessions {
		if sess.role == RoleSpectator {
			sess.rooms[id] = true
		}
	}
	if online {
		f.logger.Info("rover online", zap.String("rover", id))
		f.bus.Publish(events.DeviceOnline{DeviceID: id})
	}
	f.broadcastRoster()
	f.retryWaiting()
	f.syncAll()
}

func (f *Fleet) removeRover(id string) {
	r, ok := f.rovers[id]
	if !ok {
		return
	}
	if r.outbox != nil {
		close(r.outbox)
		r.outbox = nil
	}
	delete(f.rovers, id)
	for i, oid := range f.order {
		if oid == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	f.dropTurnQueue(id)
	for _, sess := range f.sessions {
		delete(sess.rooms, id)
	}
	for clientID, roverID := range f.assignments {
		if roverID == id {
			delete(f.assignments, clientID)
			f.addWaiting(clientID)
		}
	}
	f.logger.Info("rover offline", zap.String("rover", id))
	f.bus.Publish(events.DeviceOffline{DeviceID: id})
	f.broadcastRoster()
	f.retryWaiting()
	f.syncAll()
}

func (f *Fleet) lockRover(msg LockRover) error {
	r, ok := f.rovers[msg.RoverID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRover, msg.RoverID)
	}
	if msg.ClientID != "" {
		sess := f.sessions[msg.ClientID]
		if sess == nil || !sess.role.Privileged() {
			return fmt.Errorf("%w: locking requires admin", ErrNotAuthorized)
		}
	}
	// prospective: current drivers keep control, only new grants are blocked
	r.locked = msg.Locked
	if msg.Locked {
		r.lockReason = msg.Reason
		f.bus.Publish(events.DeviceLocked{DeviceID: r.id, Reason: r.lockReason})
	} else {
		r.lockReason = ""
		f.bus.Publish(events.DeviceUnlocked{DeviceID: r.id})
		f.retryWaiting()
	}
	f.broadcastRoster()
	f.syncAll()
	return nil
}

// requestControl is the single grant path for driving rights. allowUser
// marks grants made by assignment on a user's behalf.
func (f *Fleet) requestControl(roverID, clientID string, force, allowUser bool) error {
	r, ok := f.rovers[roverID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRover, roverID)
	}
	sess := f.sessions[clientID]
	if sess == nil {
		return fmt.Errorf("%w: unknown session", ErrNotAuthorized)
	}
	privileged := sess.role.Privileged()
	if r.locked && !privileged {
		return fmt.Errorf("%w: rover locked", ErrNotAuthorized)
	}
	if (f.mode == ModeAdmin || f.mode == ModeLockdown) && !privileged {
		return fmt.Errorf("%w: mode %s admits admins only", ErrNotAuthorized, f.mode)
	}
	if !allowUser && !privileged && sess.role != RoleUser {
		return fmt.Errorf("%w: role %s cannot drive", ErrNotAuthorized, sess.role)
	}
	r.drivers[clientID] = true
	sess.rooms[roverID] = true
	f.turnDriverAdded(roverID, clientID, force && privileged)
	f.sendTo(sess, types.ServerMessage{Type: "controlGranted", RoverID: roverID})
	f.logger.Info("control granted", zap.String("rover", roverID), zap.String("client", clientID))
	f.syncAll()
	return nil
}

func (f *Fleet) releaseControl(roverID, clientID string) {
	r, ok := f.rovers[roverID]
	if !ok {
		return
	}
	delete(r.drivers, clientID)
	if sess := f.sessions[clientID]; sess != nil && sess.role != RoleSpectator {
		delete(sess.rooms, roverID)
	}
	f.turnDriverRemoved(roverID, clientID)
}

// canDrive is the command authorization check: a privileged session may
// always drive; a driver may drive unless turns mode says it is someone
// else's turn.
func (f *Fleet) canDrive(roverID, clientID string) bool {
	sess := f.sessions[clientID]
	if sess == nil {
		return false
	}
	if sess.role.Privileged() {
		return true
	}
	r, ok := f.rovers[roverID]
	if !ok || !r.drivers[clientID] {
		return false
	}
	return f.turnAllows(roverID, clientID)
}

// roster is recomputed fresh on every call, never cached.
func (f *Fleet) roster() []types.RosterEntry {
	entries := make([]types.RosterEntry, 0, len(f.order))
	for _, id := range f.order {
		r := f.rovers[id]
		name := r.meta.Name
		if name == "" {
			name = r.id
		}
		entries = append(entries, types.RosterEntry{
			ID:            r.id,
			Name:          name,
			Battery:       r.meta.Battery,
			MaxWheelSpeed: r.meta.MaxWheelSpeed,
			Media:         r.meta.Media,
			Locked:        r.locked,
			LockReason:    r.lockReason,
			LastSeen:      r.lastSeen.UnixMilli(),
		})
	}
	return entries
}

func (f *Fleet) broadcastRoster() {
	f.broadcastMessage(types.ServerMessage{Type: "roster", Roster: f.roster()})
}

func (f *Fleet) handleSensor(roverID string, sensors *codec.Sensors) {
	r, ok := f.rovers[roverID]
	if !ok {
		return
	}
	r.lastSeen = time.Now()
	r.lastSensor = sensors
	f.roomBroadcast(roverID, sensors)
	f.publishSensorUpdate(r)
}

func (f *Fleet) handleTelemetry(roverID string, telemetry *codec.Telemetry) {
	r, ok := f.rovers[roverID]
	if !ok {
		return
	}
	r.lastSeen = time.Now()
	r.lastTelem = telemetry
	if telemetry.Sensors != nil {
		r.lastSensor = telemetry.Sensors
		f.roomBroadcast(roverID, telemetry.Sensors)
		f.publishSensorUpdate(r)
	}
}

// publishSensorUpdate feeds the battery supervisor and any other bus
// subscriber interested in live sensor state.
func (f *Fleet) publishSensorUpdate(r *rover) {
	f.bus.Publish(events.SensorUpdate{
		DeviceID:   r.id,
		Sensors:    r.lastSensor,
		Battery:    r.meta.Battery,
		Locked:     r.locked,
		LockReason: r.lockReason,
	})
}

// roomBroadcast sends a sensor snapshot to every session subscribed to
// the rover's room.
func (f *Fleet) roomBroadcast(roverID string, sensors *codec.Sensors) {
	raw, err := json.Marshal(sensors)
	if err != nil {
		f.logger.Error("sensor snapshot marshal failed", zap.Error(err))
		return
	}
	msg := types.ServerMessage{Type: "sensorFrame", RoverID: roverID, Sensors: raw}
	for _, sess := range f.sessions {
		if sess.rooms[roverID] {
			f.sendTo(sess, msg)
		}
	}
}
