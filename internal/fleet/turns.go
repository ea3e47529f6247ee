package fleet

import (
	"time"

	"go.uber.org/zap"

	"github.com/legop3/MultiRoombaRover-sub000/pkg/types"
)

// turnQueue is one rover's driver rotation. Timers deliver ticks back
// into the actor inbox tagged with the generation they were armed under;
// a stale generation makes the tick provably inert.
type turnQueue struct {
	queue    []string
	current  string
	deadline time.Time

	gen   int
	timer *time.Timer

	idleGen      int
	idleTimer    *time.Timer
	idleDeadline time.Time
	idleDisarmed bool
	idleSkips    map[string]int
}

func (f *Fleet) ensureTurnQueue(roverID string) *turnQueue {
	q, ok := f.turns[roverID]
	if !ok {
		q = &turnQueue{idleSkips: make(map[string]int)}
		f.turns[roverID] = q
	}
	return q
}

func (f *Fleet) dropTurnQueue(roverID string) {
	q, ok := f.turns[roverID]
	if !ok {
		return
	}
	q.stopRotation()
	q.stopIdle()
	delete(f.turns, roverID)
}

func (q *turnQueue) stopRotation() {
	q.gen++
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	q.deadline = time.Time{}
}

func (q *turnQueue) stopIdle() {
	q.idleGen++
	if q.idleTimer != nil {
		q.idleTimer.Stop()
		q.idleTimer = nil
	}
	q.idleDeadline = time.Time{}
}

func (q *turnQueue) contains(clientID string) bool {
	for _, id := range q.queue {
		if id == clientID {
			return true
		}
	}
	return false
}

func (q *turnQueue) remove(clientID string) {
	for i, id := range q.queue {
		if id == clientID {
			q.queue = append(q.queue[:i], q.queue[i+1:]...)
			return
		}
	}
}

// turnAllows reports whether clientID may act right now under turns
// arbitration. With no queue, a different mode, or a solo queue the
// exclusive-access semantics collapse to "anyone added is allowed".
func (f *Fleet) turnAllows(roverID, clientID string) bool {
	q, ok := f.turns[roverID]
	if !ok || f.mode != ModeTurns || len(q.queue) <= 1 {
		return true
	}
	return q.current == clientID
}

func (f *Fleet) turnDriverAdded(roverID, clientID string, force bool) {
	q := f.ensureTurnQueue(roverID)
	if !q.contains(clientID) {
		q.queue = append(q.queue, clientID)
	}
	if q.current == "" || force {
		q.current = clientID
	}
	f.syncTurnState(roverID)
}

func (f *Fleet) turnDriverRemoved(roverID, clientID string) {
	q, ok := f.turns[roverID]
	if !ok {
		return
	}
	q.remove(clientID)
	delete(q.idleSkips, clientID)
	q.idleDisarmed = false
	if q.current == clientID {
		f.advanceTurn(roverID)
	} else {
		f.syncTurnState(roverID)
	}
}

// syncTurnState reconciles a rover's rotation with the mode and queue
// length. Outside turns mode (or with at most one member) there is no
// rotation and the head of the queue is trivially current.
func (f *Fleet) syncTurnState(roverID string) {
	q, ok := f.turns[roverID]
	if !ok {
		return
	}
	if f.mode != ModeTurns || len(q.queue) <= 1 {
		if len(q.queue) > 0 {
			q.current = q.queue[0]
		} else {
			q.current = ""
		}
		q.stopRotation()
		q.stopIdle()
		q.idleDisarmed = false
		return
	}
	if q.current == "" {
		q.current = q.queue[0]
	}
	q.idleDisarmed = false
	f.scheduleRotation(roverID, q)
	f.scheduleIdle(roverID, q)
}

func (f *Fleet) scheduleRotation(roverID string, q *turnQueue) {
	q.stopRotation()
	gen := q.gen
	q.deadline = time.Now().Add(f.cfg.TurnDuration)
	q.timer = time.AfterFunc(f.cfg.TurnDuration, func() {
		f.post(turnTick{roverID: roverID, gen: gen})
	})
}

func (f *Fleet) scheduleIdle(roverID string, q *turnQueue) {
	q.stopIdle()
	if q.idleDisarmed || q.current == "" {
		return
	}
	gen := q.idleGen
	q.idleDeadline = time.Now().Add(f.cfg.IdleTimeout)
	q.idleTimer = time.AfterFunc(f.cfg.IdleTimeout, func() {
		f.post(idleTick{roverID: roverID, gen: gen})
	})
}

func (f *Fleet) handleTurnTick(msg turnTick) {
	q, ok := f.turns[msg.roverID]
	if !ok || q.gen != msg.gen {
		return // rover removed or rotation rescheduled since arming
	}
	f.advanceTurn(msg.roverID)
}

func (f *Fleet) handleIdleTick(msg idleTick) {
	q, ok := f.turns[msg.roverID]
	if !ok || q.idleGen != msg.gen {
		return
	}
	if q.idleDisarmed || q.current == "" || f.mode != ModeTurns || len(q.queue) <= 1 {
		return
	}
	idler := q.current
	q.idleSkips[idler]++
	skips := q.idleSkips[idler]
	if skips >= f.cfg.MaxIdleSkips {
		f.logger.Info("driver removed after repeated idle skips",
			zap.String("rover", msg.roverID), zap.String("client", idler), zap.Int("skips", skips))
		f.stopRover(msg.roverID)
		f.forceRelease(msg.roverID, idler)
		return
	}
	f.logger.Info("turn skipped for idle driver",
		zap.String("rover", msg.roverID), zap.String("client", idler), zap.Int("skips", skips))
	f.advanceTurn(msg.roverID)
}

// advanceTurn hands control to the next queue member. The just-demoted
// driver's rover is stopped before the handoff so motion never outlives
// its operator.
func (f *Fleet) advanceTurn(roverID string) {
	q, ok := f.turns[roverID]
	if !ok {
		return
	}
	if len(q.queue) == 0 {
		q.current = ""
		q.stopRotation()
		q.stopIdle()
		q.idleDisarmed = false
		f.syncAll()
		return
	}
	if f.mode != ModeTurns || len(q.queue) <= 1 {
		f.syncTurnState(roverID)
		f.syncAll()
		return
	}
	idx := -1
	for i, id := range q.queue {
		if id == q.current {
			idx = i
			break
		}
	}
	next := 0
	if idx != -1 {
		next = (idx + 1) % len(q.queue)
	}
	f.stopRover(roverID)
	q.current = q.queue[next]
	q.idleDisarmed = false
	f.logger.Info("turn rotated", zap.String("rover", roverID), zap.String("client", q.current))
	f.scheduleRotation(roverID, q)
	f.scheduleIdle(roverID, q)
	f.syncAll()
}

// recordActivity disarms the idle skip for the rest of the current turn.
func (f *Fleet) recordActivity(roverID, clientID string) {
	q, ok := f.turns[roverID]
	if !ok || q.current != clientID {
		return
	}
	if !q.idleDisarmed {
		q.idleDisarmed = true
		q.stopIdle()
	}
}

// stopRover issues the zero-drive, zero-motor stop pair. Best effort: a
// rover that is offline simply misses it.
func (f *Fleet) stopRover(roverID string) {
	if _, err := f.issueCommand(roverID, types.Command{Type: "drive", DriveDirect: &types.DriveDirect{}}); err != nil {
		return
	}
	_, _ = f.issueCommand(roverID, types.Command{Type: "motors", MotorPWM: &types.MotorPWM{}})
}

// forceRelease strips a driver entirely; unlike a voluntary release the
// client does not rejoin the waiting set.
func (f *Fleet) forceRelease(roverID, clientID string) {
	delete(f.assignments, clientID)
	f.dropWaiting(clientID)
	f.releaseControl(roverID, clientID)
	f.syncAll()
}

func (f *Fleet) activeDrivers() map[string]string {
	out := make(map[string]string, len(f.turns))
	for id, q := range f.turns {
		if q.current != "" {
			out[id] = q.current
		}
	}
	return out
}

func (f *Fleet) turnQueueViews() map[string]types.TurnQueueView {
	out := make(map[string]types.TurnQueueView, len(f.turns))
	for id, q := range f.turns {
		view := types.TurnQueueView{
			Queue:   append([]string(nil), q.queue...),
			Current: q.current,
		}
		if !q.deadline.IsZero() {
			view.Deadline = q.deadline.UnixMilli()
		}
		out[id] = view
	}
	return out
}
