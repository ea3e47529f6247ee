package fleet

import (
	"go.uber.org/zap"

	"github.com/legop3/MultiRoombaRover-sub000/pkg/types"
)

// pickRover chooses a rover for an automatic placement: online and
// unlocked, fewest current drivers, registration order breaking ties.
// Admin and lockdown modes place nobody.
func (f *Fleet) pickRover() string {
	if f.mode == ModeAdmin || f.mode == ModeLockdown {
		return ""
	}
	best := ""
	bestDrivers := 0
	for _, id := range f.order {
		r := f.rovers[id]
		if r.outbox == nil || r.locked {
			continue
		}
		if best == "" || len(r.drivers) < bestDrivers {
			best = id
			bestDrivers = len(r.drivers)
		}
	}
	return best
}

// assignClient places a role-user session on a rover, or parks it in the
// waiting set when none is available.
func (f *Fleet) assignClient(sess *session) {
	if sess.role != RoleUser {
		return
	}
	if _, ok := f.assignments[sess.id]; ok {
		return
	}
	roverID := f.pickRover()
	if roverID == "" {
		f.addWaiting(sess.id)
		f.syncSession(sess)
		return
	}
	if err := f.requestControl(roverID, sess.id, false, true); err != nil {
		f.addWaiting(sess.id)
		f.syncSession(sess)
		return
	}
	if sess.dropped {
		// the grant notification itself may have dropped a slow session
		return
	}
	f.assignments[sess.id] = roverID
	f.dropWaiting(sess.id)
	f.logger.Info("client assigned", zap.String("client", sess.id), zap.String("rover", roverID))
	f.syncAll()
}

// releaseAssignment is the voluntary-release path: control is dropped
// and a role-user goes back to the waiting set, so the next capacity
// event can place them again.
func (f *Fleet) releaseAssignment(roverID, clientID string) {
	f.releaseControl(roverID, clientID)
	if f.assignments[clientID] == roverID {
		delete(f.assignments, clientID)
		if sess := f.sessions[clientID]; sess != nil && sess.role == RoleUser {
			f.addWaiting(clientID)
		}
		f.logger.Info("assignment released", zap.String("client", clientID), zap.String("rover", roverID))
	}
}

func (f *Fleet) unassignClient(clientID string) {
	roverID, ok := f.assignments[clientID]
	if !ok {
		return
	}
	delete(f.assignments, clientID)
	f.releaseControl(roverID, clientID)
}

func (f *Fleet) addWaiting(clientID string) {
	for _, id := range f.waiting {
		if id == clientID {
			return
		}
	}
	f.waiting = append(f.waiting, clientID)
}

func (f *Fleet) dropWaiting(clientID string) {
	for i, id := range f.waiting {
		if id == clientID {
			f.waiting = append(f.waiting[:i], f.waiting[i+1:]...)
			return
		}
	}
}

// retryWaiting re-runs placement for everyone parked in the waiting set.
// Called whenever capacity may have appeared: a rover came online or was
// unlocked, a driver left, or the mode opened up.
func (f *Fleet) retryWaiting() {
	if len(f.waiting) == 0 {
		return
	}
	pending := append([]string(nil), f.waiting...)
	for _, clientID := range pending {
		sess, ok := f.sessions[clientID]
		if !ok || sess.role != RoleUser {
			f.dropWaiting(clientID)
			continue
		}
		f.assignClient(sess)
	}
}

func (f *Fleet) describeAssignment(clientID string) types.Assignment {
	sess, ok := f.sessions[clientID]
	if !ok {
		return types.Assignment{}
	}
	if sess.role.Privileged() {
		return types.Assignment{Status: "admin", RoverID: f.primaryRover(clientID)}
	}
	if roverID, ok := f.assignments[clientID]; ok {
		return types.Assignment{Status: "assigned", RoverID: roverID}
	}
	for i, id := range f.waiting {
		if id == clientID {
			return types.Assignment{Status: "waiting", QueuePosition: i + 1}
		}
	}
	return types.Assignment{RoverID: f.primaryRover(clientID)}
}
