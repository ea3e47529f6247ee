package fleet

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/legop3/MultiRoombaRover-sub000/pkg/types"
)

const maxNicknameLen = 32

func (f *Fleet) addSession(msg ClientJoin) {
	role := msg.Role
	if role == "" {
		role = RoleUser
	}
	sess := &session{
		id:     msg.ClientID,
		role:   role,
		outbox: msg.Outbox,
		rooms:  make(map[string]bool),
	}
	f.sessions[msg.ClientID] = sess
	if role == RoleSpectator {
		for id := range f.rovers {
			sess.rooms[id] = true
		}
	}
	f.logger.Info("client connected", zap.String("client", msg.ClientID), zap.String("role", string(role)))
	if f.mode == ModeLockdown && !role.Privileged() {
		f.armLockdownTimer(sess)
	}
	if role == RoleUser {
		f.assignClient(sess)
	}
	f.syncSession(sess)
}

func (f *Fleet) removeSession(clientID string) {
	sess, ok := f.sessions[clientID]
	if !ok {
		return
	}
	sess.lockdownGen++ // inert any pending grace timer
	f.unassignClient(clientID)
	f.dropWaiting(clientID)
	for _, r := range f.rovers {
		if r.drivers[clientID] {
			delete(r.drivers, clientID)
			f.turnDriverRemoved(r.id, clientID)
		}
	}
	delete(f.sessions, clientID)
	if !sess.dropped {
		sess.dropped = true
		close(sess.outbox)
	}
	f.logger.Info("client disconnected", zap.String("client", clientID))
	f.syncAll()
}

// disconnectSession forcibly drops a client: releasing control, then
// closing the outbox so the transport writer hangs up.
func (f *Fleet) disconnectSession(clientID string, notice types.ServerMessage) {
	sess, ok := f.sessions[clientID]
	if !ok {
		return
	}
	f.sendTo(sess, notice)
	f.removeSession(clientID)
}

func (f *Fleet) setRole(clientID string, role Role) error {
	sess, ok := f.sessions[clientID]
	if !ok {
		return fmt.Errorf("%w: unknown session", ErrNotAuthorized)
	}
	if sess.role == role {
		return nil
	}
	prev := sess.role
	sess.role = role
	f.logger.Info("role changed", zap.String("client", clientID), zap.String("role", string(role)))

	if role.Privileged() {
		sess.lockdownGen++ // becoming privileged cancels the grace timer
	}
	switch role {
	case RoleSpectator:
		f.unassignClient(clientID)
		f.dropWaiting(clientID)
		for id := range f.rovers {
			sess.rooms[id] = true
		}
	case RoleUser:
		if prev == RoleSpectator {
			for id := range f.rovers {
				if !f.rovers[id].drivers[clientID] {
					delete(sess.rooms, id)
				}
			}
		}
		f.assignClient(sess)
	default:
		f.unassignClient(clientID)
		f.dropWaiting(clientID)
	}
	f.syncAll()
	return nil
}

func (f *Fleet) setNickname(clientID, nickname string) error {
	sess, ok := f.sessions[clientID]
	if !ok {
		return fmt.Errorf("%w: unknown session", ErrNotAuthorized)
	}
	value := strings.TrimSpace(nickname)
	if value == "" {
		return fmt.Errorf("nickname required")
	}
	if runes := []rune(value); len(runes) > maxNicknameLen {
		value = string(runes[:maxNicknameLen])
	}
	sess.nickname = value
	f.syncAll()
	return nil
}

// --- lockdown grace -------------------------------------------------------

func (f *Fleet) beginLockdown() {
	for _, sess := range f.sessions {
		if !sess.role.Privileged() {
			f.armLockdownTimer(sess)
		}
	}
}

func (f *Fleet) armLockdownTimer(sess *session) {
	sess.lockdownGen++
	gen := sess.lockdownGen
	clientID := sess.id
	f.sendTo(sess, types.ServerMessage{Type: "lockdown", Message: "server is in lockdown mode"})
	time.AfterFunc(f.cfg.LockdownGrace, func() {
		f.post(lockdownTick{clientID: clientID, gen: gen})
	})
}

func (f *Fleet) cancelLockdown() {
	for _, sess := range f.sessions {
		sess.lockdownGen++
	}
}

func (f *Fleet) handleLockdownTick(msg lockdownTick) {
	sess, ok := f.sessions[msg.clientID]
	if !ok || sess.lockdownGen != msg.gen {
		return // session gone or timer canceled, guaranteed no-op
	}
	if sess.role.Privileged() || f.mode != ModeLockdown {
		return
	}
	f.logger.Info("lockdown grace expired", zap.String("client", msg.clientID))
	f.disconnectSession(msg.clientID, types.ServerMessage{Type: "lockdown", Message: "disconnected by lockdown"})
}

// evictUnprivilegedDrivers force-releases every non-admin driver on every
// rover. The clients stay connected and fall back into the waiting set.
func (f *Fleet) evictUnprivilegedDrivers() {
	for _, id := range f.order {
		r := f.rovers[id]
		for clientID := range r.drivers {
			sess := f.sessions[clientID]
			if sess != nil && sess.role.Privileged() {
				continue
			}
			f.releaseControl(id, clientID)
			delete(f.assignments, clientID)
			f.addWaiting(clientID)
		}
	}
}

// --- outbound -------------------------------------------------------------

// sendTo writes without blocking the actor; a session that cannot keep up
// is dropped rather than throttling the fleet.
func (f *Fleet) sendTo(sess *session, msg types.ServerMessage) {
	if sess.dropped {
		return
	}
	select {
	case sess.outbox <- msg:
	default:
		f.logger.Warn("client outbox full, dropping session", zap.String("client", sess.id))
		f.dropSession(sess)
	}
}

// dropSession tears a slow client down mid-broadcast. The dropped flag
// keeps in-flight pointers from writing to the closed outbox; the map
// delete keeps later iterations from visiting it.
func (f *Fleet) dropSession(sess *session) {
	sess.dropped = true
	sess.lockdownGen++
	close(sess.outbox)
	delete(f.sessions, sess.id)
	f.unassignClient(sess.id)
	f.dropWaiting(sess.id)
	for _, r := range f.rovers {
		if r.drivers[sess.id] {
			delete(r.drivers, sess.id)
			f.turnDriverRemoved(r.id, sess.id)
		}
	}
}

func (f *Fleet) broadcastMessage(msg types.ServerMessage) {
	for _, sess := range f.sessions {
		f.sendTo(sess, msg)
	}
}

// --- session sync ---------------------------------------------------------

func (f *Fleet) buildSession(sess *session) types.Session {
	users := make([]types.UserEntry, 0, len(f.sessions))
	for _, s := range f.sessions {
		users = append(users, types.UserEntry{
			ClientID: s.id,
			Nickname: s.nickname,
			Role:     string(s.role),
			RoverID:  f.primaryRover(s.id),
		})
	}
	return types.Session{
		ClientID:      sess.id,
		Role:          string(sess.role),
		Mode:          string(f.mode),
		Roster:        f.roster(),
		Assignment:    f.describeAssignment(sess.id),
		ActiveDrivers: f.activeDrivers(),
		TurnQueues:    f.turnQueueViews(),
		Users:         users,
	}
}

func (f *Fleet) primaryRover(clientID string) string {
	if roverID, ok := f.assignments[clientID]; ok {
		return roverID
	}
	for _, id := range f.order {
		if f.rovers[id].drivers[clientID] {
			return id
		}
	}
	return ""
}

func (f *Fleet) syncSession(sess *session) {
	s := f.buildSession(sess)
	f.sendTo(sess, types.ServerMessage{Type: "session", Session: &s})
}

func (f *Fleet) syncAll() {
	for _, sess := range f.sessions {
		f.syncSession(sess)
	}
}
