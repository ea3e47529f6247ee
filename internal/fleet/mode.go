package fleet

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/legop3/MultiRoombaRover-sub000/internal/events"
	"github.com/legop3/MultiRoombaRover-sub000/pkg/types"
)

// Role is a session's authorization level.
type Role string

const (
	RoleUser      Role = "user"
	RoleAdmin     Role = "admin"
	RoleLockdown  Role = "lockdown"
	RoleSpectator Role = "spectator"
)

// Privileged reports whether the role may drive locked rovers, change
// modes, and survive lockdown.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleLockdown
}

// ParseRole validates a client-supplied role string. Only the
// unprivileged roles can be requested directly; admin and lockdown are
// granted through login.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleUser, RoleSpectator:
		return Role(s), true
	default:
		return "", false
	}
}

// Mode is the global access policy.
type Mode string

const (
	ModeOpen     Mode = "open"
	ModeTurns    Mode = "turns"
	ModeAdmin    Mode = "admin"
	ModeLockdown Mode = "lockdown"
)

func validMode(m Mode) bool {
	switch m {
	case ModeOpen, ModeTurns, ModeAdmin, ModeLockdown:
		return true
	}
	return false
}

// setMode applies a mode transition. Unchanged mode is a silent no-op.
func (f *Fleet) setMode(next Mode, clientID string) error {
	if !validMode(next) {
		return fmt.Errorf("%w: unknown mode %q", ErrNotAuthorized, next)
	}
	if clientID != "" {
		sess := f.sessions[clientID]
		if sess == nil || !sess.role.Privileged() {
			return fmt.Errorf("%w: mode change requires admin", ErrNotAuthorized)
		}
		if next == ModeLockdown && sess.role != RoleLockdown {
			return fmt.Errorf("%w: lockdown requires a lockdown admin", ErrNotAuthorized)
		}
	}
	if f.mode == next {
		return nil
	}
	prev := f.mode
	f.mode = next
	f.logger.Info("mode changed", zap.String("from", string(prev)), zap.String("to", string(next)))
	f.bus.Publish(events.ModeChanged{Mode: string(next)})

	switch next {
	case ModeAdmin:
		f.evictUnprivilegedDrivers()
	case ModeLockdown:
		f.evictUnprivilegedDrivers()
		f.beginLockdown()
	}
	if prev == ModeLockdown {
		f.cancelLockdown()
	}

	// rotation collapses or resumes with the mode
	for id := range f.turns {
		f.syncTurnState(id)
	}
	f.retryWaiting()

	f.broadcastMessage(types.ServerMessage{Type: "mode", Mode: string(next)})
	f.syncAll()
	return nil
}
