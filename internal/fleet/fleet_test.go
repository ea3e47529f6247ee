package fleet

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/legop3/MultiRoombaRover-sub000/internal/codec"
	"github.com/legop3/MultiRoombaRover-sub000/internal/events"
	"github.com/legop3/MultiRoombaRover-sub000/pkg/types"
)

func newTestFleet(t *testing.T, cfg Config) *Fleet {
	t.Helper()
	f := New(context.Background(), cfg, events.NewBus(), zap.NewNop())
	t.Cleanup(func() { f.post(Shutdown{}) })
	return f
}

func addRover(t *testing.T, f *Fleet, id string) chan types.Command {
	t.Helper()
	out := make(chan types.Command, 64)
	f.Inbox() <- RoverHello{Meta: types.RoverMeta{Name: id}, Outbox: out}
	return out
}

func addClient(t *testing.T, f *Fleet, id string, role Role) chan types.ServerMessage {
	t.Helper()
	out := make(chan types.ServerMessage, 256)
	f.Inbox() <- ClientJoin{ClientID: id, Role: role, Outbox: out}
	return out
}

// waitView polls snapshots until cond holds or the deadline passes.
func waitView(t *testing.T, f *Fleet, cond func(View) bool) View {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		v := f.View()
		if cond(v) {
			return v
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition never held, last view: %+v", v)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// recvTyped scans a client outbox for the next message of the wanted
// type, skipping session sync chatter.
func recvTyped(t *testing.T, ch chan types.ServerMessage, wantType string) types.ServerMessage {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				t.Fatalf("outbox closed while waiting for %q", wantType)
			}
			if msg.Type == wantType {
				return msg
			}
		case <-deadline:
			t.Fatalf("no %q message arrived", wantType)
		}
	}
}

func recvNoTyped(t *testing.T, ch chan types.ServerMessage, wantType string, wait time.Duration) {
	t.Helper()
	deadline := time.After(wait)
	for {
		select {
		case msg, ok := <-ch:
			if ok && msg.Type == wantType {
				t.Fatalf("unexpected %q message: %+v", wantType, msg)
			}
			if !ok {
				return
			}
		case <-deadline:
			return
		}
	}
}

func recvCommand(t *testing.T, ch chan types.Command) types.Command {
	t.Helper()
	select {
	case cmd := <-ch:
		return cmd
	case <-time.After(2 * time.Second):
		t.Fatal("no command arrived on rover outbox")
		return types.Command{}
	}
}

func drainClient(ch chan types.ServerMessage) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

func setModeOK(t *testing.T, f *Fleet, m Mode) {
	t.Helper()
	require.NoError(t, f.SetModeSync(m, ""))
}

func TestBootsInAdminMode(t *testing.T) {
	f := newTestFleet(t, Config{})
	assert.Equal(t, ModeAdmin, f.Mode())
}

func TestUserAutoAssignedInOpenMode(t *testing.T) {
	f := newTestFleet(t, Config{})
	addRover(t, f, "r1")
	setModeOK(t, f, ModeOpen)

	c1 := addClient(t, f, "c1", RoleUser)
	waitView(t, f, func(v View) bool { return v.IsDriver("r1", "c1") })

	granted := recvTyped(t, c1, "controlGranted")
	assert.Equal(t, "r1", granted.RoverID)
}

func TestWaitingClientPlacedWhenRoverAppears(t *testing.T) {
	f := newTestFleet(t, Config{})
	setModeOK(t, f, ModeOpen)

	addClient(t, f, "c1", RoleUser)
	waitView(t, f, func(v View) bool { return len(v.Waiting) == 1 })

	addRover(t, f, "r1")
	v := waitView(t, f, func(v View) bool { return v.IsDriver("r1", "c1") })
	assert.Empty(t, v.Waiting)
}

func TestAdminModeEvictsAndOpenReplaces(t *testing.T) {
	f := newTestFleet(t, Config{})
	addRover(t, f, "r1")
	setModeOK(t, f, ModeOpen)
	addClient(t, f, "c1", RoleUser)
	waitView(t, f, func(v View) bool { return v.IsDriver("r1", "c1") })

	setModeOK(t, f, ModeAdmin)
	v := waitView(t, f, func(v View) bool { return len(v.Drivers["r1"]) == 0 })
	assert.Contains(t, v.Waiting, "c1")

	setModeOK(t, f, ModeOpen)
	waitView(t, f, func(v View) bool { return v.IsDriver("r1", "c1") })
}

func TestLockIsProspective(t *testing.T) {
	f := newTestFleet(t, Config{})
	addRover(t, f, "r1")
	setModeOK(t, f, ModeOpen)
	addClient(t, f, "c1", RoleUser)
	waitView(t, f, func(v View) bool { return v.IsDriver("r1", "c1") })

	require.NoError(t, f.LockSync("r1", true, "battery", ""))

	// the existing driver keeps control
	v := f.View()
	assert.True(t, v.IsDriver("r1", "c1"))
	assert.True(t, v.Roster[0].Locked)
	assert.Equal(t, "battery", v.Roster[0].LockReason)

	// new grants are refused for unprivileged callers
	addClient(t, f, "c2", RoleUser)
	err := f.RequestControlSync("r1", "c2", false)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	// admins pass through the lock
	addClient(t, f, "a1", RoleAdmin)
	require.NoError(t, f.RequestControlSync("r1", "a1", false))

	// unlock releases the waiting client onto the rover
	require.NoError(t, f.LockSync("r1", false, "", ""))
	waitView(t, f, func(v View) bool { return v.IsDriver("r1", "c2") })
}

func TestLockUnknownRover(t *testing.T) {
	f := newTestFleet(t, Config{})
	err := f.LockSync("ghost", true, "x", "")
	assert.ErrorIs(t, err, ErrUnknownRover)
}

func TestModeChangeRequiresPrivilege(t *testing.T) {
	f := newTestFleet(t, Config{})
	addClient(t, f, "c1", RoleUser)
	waitView(t, f, func(v View) bool { return v.SessionCount == 1 })

	err := f.SetModeSync(ModeOpen, "c1")
	assert.ErrorIs(t, err, ErrNotAuthorized)

	addClient(t, f, "a1", RoleAdmin)
	waitView(t, f, func(v View) bool { return v.SessionCount == 2 })
	require.NoError(t, f.SetModeSync(ModeOpen, "a1"))

	// lockdown needs the lockdown role, a plain admin is refused
	err = f.SetModeSync(ModeLockdown, "a1")
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestModeChangeIdempotent(t *testing.T) {
	f := newTestFleet(t, Config{})
	a1 := addClient(t, f, "a1", RoleAdmin)
	setModeOK(t, f, ModeOpen)
	recvTyped(t, a1, "mode")

	drainClient(a1)
	setModeOK(t, f, ModeOpen)
	recvNoTyped(t, a1, "mode", 60*time.Millisecond)
}

func TestCommandDispatchAndAck(t *testing.T) {
	f := newTestFleet(t, Config{})
	r1 := addRover(t, f, "r1")
	a1 := addClient(t, f, "a1", RoleAdmin)
	waitView(t, f, func(v View) bool { return v.SessionCount == 1 })

	id, err := f.IssueCommandSync("r1", "a1", types.Command{
		Type:        "drive",
		DriveDirect: &types.DriveDirect{Left: 100, Right: -100},
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	cmd := recvCommand(t, r1)
	assert.Equal(t, id, cmd.ID)
	assert.Equal(t, 100, cmd.DriveDirect.Left)
	assert.Equal(t, 1, f.View().PendingCount)

	f.Inbox() <- RoverAck{ID: id, Status: "ok"}
	ack := recvTyped(t, a1, "commandAck")
	assert.Equal(t, id, ack.ID)
	assert.Equal(t, "ok", ack.Status)
	assert.Equal(t, "r1", ack.RoverID)
	waitView(t, f, func(v View) bool { return v.PendingCount == 0 })

	// a duplicate ack is swallowed
	drainClient(a1)
	f.Inbox() <- RoverAck{ID: id, Status: "ok"}
	recvNoTyped(t, a1, "commandAck", 60*time.Millisecond)
}

func TestCommandToUnknownRover(t *testing.T) {
	f := newTestFleet(t, Config{})
	addClient(t, f, "a1", RoleAdmin)
	waitView(t, f, func(v View) bool { return v.SessionCount == 1 })

	_, err := f.IssueCommandSync("ghost", "a1", types.Command{Type: "drive"})
	assert.ErrorIs(t, err, ErrUnknownRover)
}

func TestCommandRequiresDriverStatus(t *testing.T) {
	f := newTestFleet(t, Config{})
	addRover(t, f, "r1")
	addRover(t, f, "r2")
	setModeOK(t, f, ModeOpen)
	addClient(t, f, "c1", RoleUser)
	waitView(t, f, func(v View) bool { return v.IsDriver("r1", "c1") })

	// c1 drives r1, not r2
	_, err := f.IssueCommandSync("r2", "c1", types.Command{Type: "drive"})
	assert.ErrorIs(t, err, ErrNotAuthorized)
	_, err = f.IssueCommandSync("r1", "c1", types.Command{Type: "drive"})
	assert.NoError(t, err)
}

func TestTurnsGateCommandsToCurrentDriver(t *testing.T) {
	f := newTestFleet(t, Config{TurnDuration: time.Hour, IdleTimeout: time.Hour})
	addRover(t, f, "r1")
	setModeOK(t, f, ModeTurns)
	addClient(t, f, "c1", RoleUser)
	waitView(t, f, func(v View) bool { return v.IsDriver("r1", "c1") })
	addClient(t, f, "c2", RoleUser)
	waitView(t, f, func(v View) bool { return v.IsDriver("r1", "c2") })

	v := f.View()
	require.Equal(t, "c1", v.ActiveDrivers["r1"])

	_, err := f.IssueCommandSync("r1", "c2", types.Command{Type: "drive"})
	assert.ErrorIs(t, err, ErrNotAuthorized)
	_, err = f.IssueCommandSync("r1", "c1", types.Command{Type: "drive"})
	assert.NoError(t, err)
}

func TestTurnRotationStopsRoverBeforeHandoff(t *testing.T) {
	f := newTestFleet(t, Config{TurnDuration: 50 * time.Millisecond, IdleTimeout: time.Hour})
	r1 := addRover(t, f, "r1")
	setModeOK(t, f, ModeTurns)
	addClient(t, f, "c1", RoleUser)
	waitView(t, f, func(v View) bool { return v.IsDriver("r1", "c1") })
	addClient(t, f, "c2", RoleUser)
	waitView(t, f, func(v View) bool { return v.IsDriver("r1", "c2") })

	// first rotation: the stop pair precedes the new driver taking over
	stop := recvCommand(t, r1)
	require.Equal(t, "drive", stop.Type)
	require.NotNil(t, stop.DriveDirect)
	assert.Zero(t, stop.DriveDirect.Left)
	assert.Zero(t, stop.DriveDirect.Right)

	motors := recvCommand(t, r1)
	require.Equal(t, "motors", motors.Type)
	require.NotNil(t, motors.MotorPWM)
	assert.Zero(t, motors.MotorPWM.Main)

	v := waitView(t, f, func(v View) bool { return v.ActiveDrivers["r1"] != "" })
	assert.Len(t, v.TurnQueues["r1"].Queue, 2)
	assert.NotZero(t, v.TurnQueues["r1"].Deadline)
}

func TestSoloQueueNeverRotates(t *testing.T) {
	f := newTestFleet(t, Config{TurnDuration: 30 * time.Millisecond, IdleTimeout: time.Hour})
	r1 := addRover(t, f, "r1")
	setModeOK(t, f, ModeTurns)
	addClient(t, f, "c1", RoleUser)
	waitView(t, f, func(v View) bool { return v.IsDriver("r1", "c1") })

	time.Sleep(100 * time.Millisecond)
	select {
	case cmd := <-r1:
		t.Fatalf("unexpected command for solo driver: %+v", cmd)
	default:
	}
	assert.Equal(t, "c1", f.View().ActiveDrivers["r1"])
}

func TestStaleTurnTimerIsInert(t *testing.T) {
	f := newTestFleet(t, Config{TurnDuration: time.Hour, IdleTimeout: time.Hour})
	addRover(t, f, "r1")
	setModeOK(t, f, ModeTurns)
	addClient(t, f, "c1", RoleUser)
	waitView(t, f, func(v View) bool { return v.IsDriver("r1", "c1") })
	addClient(t, f, "c2", RoleUser)
	waitView(t, f, func(v View) bool { return v.IsDriver("r1", "c2") })

	// generations start at zero and only increment, so -1 can never match
	f.Inbox() <- turnTick{roverID: "r1", gen: -1}
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, "c1", f.View().ActiveDrivers["r1"])
}

func TestIdleDriverSkippedThenRemoved(t *testing.T) {
	f := newTestFleet(t, Config{
		TurnDuration: time.Hour,
		IdleTimeout:  25 * time.Millisecond,
		MaxIdleSkips: 2,
	})
	addRover(t, f, "r1")
	setModeOK(t, f, ModeTurns)
	addClient(t, f, "c1", RoleUser)
	waitView(t, f, func(v View) bool { return v.IsDriver("r1", "c1") })
	addClient(t, f, "c2", RoleUser)
	waitView(t, f, func(v View) bool { return v.IsDriver("r1", "c2") })

	// nobody drives, so skips accumulate until c1 hits the limit and is
	// removed; the queue collapses around c2
	v := waitView(t, f, func(v View) bool {
		return len(v.Drivers["r1"]) == 1 && v.IsDriver("r1", "c2")
	})
	assert.Equal(t, "c2", v.ActiveDrivers["r1"])
}

func TestCommandActivityDisarmsIdleSkip(t *testing.T) {
	f := newTestFleet(t, Config{
		TurnDuration: time.Hour,
		IdleTimeout:  150 * time.Millisecond,
		MaxIdleSkips: 2,
	})
	addRover(t, f, "r1")
	setModeOK(t, f, ModeTurns)
	addClient(t, f, "c1", RoleUser)
	waitView(t, f, func(v View) bool { return v.IsDriver("r1", "c1") })
	addClient(t, f, "c2", RoleUser)
	waitView(t, f, func(v View) bool { return v.IsDriver("r1", "c2") })

	_, err := f.IssueCommandSync("r1", "c1", types.Command{Type: "drive"})
	require.NoError(t, err)

	time.Sleep(500 * time.Millisecond)
	v := f.View()
	assert.Equal(t, "c1", v.ActiveDrivers["r1"])
	assert.Len(t, v.Drivers["r1"], 2)
}

func TestRoverGoneReturnsDriversToWaiting(t *testing.T) {
	f := newTestFleet(t, Config{})
	addRover(t, f, "r1")
	setModeOK(t, f, ModeOpen)
	addClient(t, f, "c1", RoleUser)
	waitView(t, f, func(v View) bool { return v.IsDriver("r1", "c1") })

	f.Inbox() <- RoverGone{RoverID: "r1"}
	v := waitView(t, f, func(v View) bool { return len(v.Roster) == 0 })
	assert.Contains(t, v.Waiting, "c1")

	// a returning rover picks the waiting client back up
	addRover(t, f, "r1")
	waitView(t, f, func(v View) bool { return v.IsDriver("r1", "c1") })
}

func TestClientLeaveReleasesControl(t *testing.T) {
	f := newTestFleet(t, Config{})
	addRover(t, f, "r1")
	setModeOK(t, f, ModeOpen)
	c1 := addClient(t, f, "c1", RoleUser)
	waitView(t, f, func(v View) bool { return v.IsDriver("r1", "c1") })

	f.Inbox() <- ClientLeave{ClientID: "c1"}
	v := waitView(t, f, func(v View) bool { return v.SessionCount == 0 })
	assert.Empty(t, v.Drivers["r1"])
	assert.Empty(t, v.Waiting)

	// the transport writer ranging over the outbox must be released
	assertClosed(t, c1)
}

func TestVoluntaryReleaseReturnsClientToWaiting(t *testing.T) {
	f := newTestFleet(t, Config{})
	addRover(t, f, "r1")
	setModeOK(t, f, ModeOpen)
	addClient(t, f, "c1", RoleUser)
	waitView(t, f, func(v View) bool { return v.IsDriver("r1", "c1") })

	f.Inbox() <- ReleaseControl{RoverID: "r1", ClientID: "c1"}
	v := waitView(t, f, func(v View) bool { return !v.IsDriver("r1", "c1") })
	assert.Contains(t, v.Waiting, "c1")

	// next capacity event places the client again
	addRover(t, f, "r2")
	waitView(t, f, func(v View) bool {
		return v.IsDriver("r1", "c1") || v.IsDriver("r2", "c1")
	})
}

func TestRoverGoneClosesOutbox(t *testing.T) {
	f := newTestFleet(t, Config{})
	out := addRover(t, f, "r1")
	waitView(t, f, func(v View) bool { return len(v.Roster) == 1 })

	f.Inbox() <- RoverGone{RoverID: "r1"}
	waitView(t, f, func(v View) bool { return len(v.Roster) == 0 })
	assertCommandClosed(t, out)
}

func TestReconnectHelloDisplacesOldOutbox(t *testing.T) {
	f := newTestFleet(t, Config{})
	old := addRover(t, f, "r1")
	waitView(t, f, func(v View) bool { return len(v.Roster) == 1 })

	fresh := addRover(t, f, "r1")
	_ = f.View() // inbox is FIFO, the second hello has been handled
	assertCommandClosed(t, old)
	select {
	case _, ok := <-fresh:
		if !ok {
			t.Fatal("replacement outbox closed")
		}
	default:
	}
}

func TestSlowClientIsDropped(t *testing.T) {
	f := newTestFleet(t, Config{})
	setModeOK(t, f, ModeOpen)
	addRover(t, f, "r1")

	// buffer of one: the join sync fills it and the next broadcast
	// cannot be delivered
	out := make(chan types.ServerMessage, 1)
	f.Inbox() <- ClientJoin{ClientID: "slow", Role: RoleSpectator, Outbox: out}
	waitView(t, f, func(v View) bool { return v.SessionCount == 1 })

	addRover(t, f, "r2")
	waitView(t, f, func(v View) bool { return v.SessionCount == 0 })
	assertClosed(t, out)
}

// assertClosed drains a session outbox until it closes.
func assertClosed(t *testing.T, ch chan types.ServerMessage) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("outbox left open")
		}
	}
}

func assertCommandClosed(t *testing.T, ch chan types.Command) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("rover outbox left open")
		}
	}
}

func TestSensorFrameReachesRoomMembers(t *testing.T) {
	f := newTestFleet(t, Config{})
	addRover(t, f, "r1")
	setModeOK(t, f, ModeOpen)
	c1 := addClient(t, f, "c1", RoleUser)
	waitView(t, f, func(v View) bool { return v.IsDriver("r1", "c1") })
	drainClient(c1)

	f.Inbox() <- RoverSensor{RoverID: "r1", Sensors: &codec.Sensors{VoltageMv: 14200}}
	frame := recvTyped(t, c1, "sensorFrame")
	assert.Equal(t, "r1", frame.RoverID)
	assert.Contains(t, string(frame.Sensors), `"voltageMv":14200`)

	v := f.View()
	require.NotNil(t, v.LastSensor["r1"])
	assert.Equal(t, uint16(14200), v.LastSensor["r1"].VoltageMv)
}

func TestSensorForUnknownRoverIgnored(t *testing.T) {
	f := newTestFleet(t, Config{})
	addRover(t, f, "r1")
	waitView(t, f, func(v View) bool { return len(v.Roster) == 1 })

	f.Inbox() <- RoverSensor{RoverID: "ghost", Sensors: &codec.Sensors{}}
	v := f.View()
	assert.Nil(t, v.LastSensor["ghost"])
	assert.NotContains(t, v.LastSensor, "ghost")
}

func TestSpectatorSeesAllRoversButCannotDrive(t *testing.T) {
	f := newTestFleet(t, Config{})
	addRover(t, f, "r1")
	setModeOK(t, f, ModeOpen)
	s1 := addClient(t, f, "s1", RoleSpectator)
	waitView(t, f, func(v View) bool { return v.SessionCount == 1 })

	f.Inbox() <- RoverSensor{RoverID: "r1", Sensors: &codec.Sensors{}}
	recvTyped(t, s1, "sensorFrame")

	err := f.RequestControlSync("r1", "s1", false)
	assert.ErrorIs(t, err, ErrNotAuthorized)
	_, err = f.IssueCommandSync("r1", "s1", types.Command{Type: "drive"})
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestLockdownGraceDisconnectsUnprivileged(t *testing.T) {
	f := newTestFleet(t, Config{LockdownGrace: 40 * time.Millisecond})
	c1 := addClient(t, f, "c1", RoleUser)
	addClient(t, f, "a1", RoleLockdown)
	waitView(t, f, func(v View) bool { return v.SessionCount == 2 })

	require.NoError(t, f.SetModeSync(ModeLockdown, "a1"))
	recvTyped(t, c1, "lockdown")

	// grace expires, the unprivileged session is dropped and its outbox closed
	waitView(t, f, func(v View) bool { return v.SessionCount == 1 })
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-c1:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("client outbox never closed")
		}
	}
}

func TestLockdownGraceSparesPromotedClient(t *testing.T) {
	f := newTestFleet(t, Config{LockdownGrace: 40 * time.Millisecond})
	addClient(t, f, "c1", RoleUser)
	addClient(t, f, "a1", RoleLockdown)
	waitView(t, f, func(v View) bool { return v.SessionCount == 2 })
	require.NoError(t, f.SetModeSync(ModeLockdown, "a1"))

	ch := make(chan error, 1)
	f.Inbox() <- SetRole{ClientID: "c1", Role: RoleAdmin, Reply: ch}
	require.NoError(t, <-ch)

	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, 2, f.View().SessionCount)
}

func TestLeavingLockdownCancelsPendingGrace(t *testing.T) {
	f := newTestFleet(t, Config{LockdownGrace: 60 * time.Millisecond})
	addClient(t, f, "c1", RoleUser)
	addClient(t, f, "a1", RoleLockdown)
	waitView(t, f, func(v View) bool { return v.SessionCount == 2 })

	require.NoError(t, f.SetModeSync(ModeLockdown, "a1"))
	require.NoError(t, f.SetModeSync(ModeOpen, "a1"))

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 2, f.View().SessionCount)
}

func TestNicknameValidation(t *testing.T) {
	f := newTestFleet(t, Config{})
	addClient(t, f, "c1", RoleUser)
	waitView(t, f, func(v View) bool { return v.SessionCount == 1 })

	set := func(nick string) error {
		ch := make(chan error, 1)
		f.Inbox() <- SetNickname{ClientID: "c1", Nickname: nick, Reply: ch}
		return <-ch
	}

	assert.Error(t, set("   "))
	assert.NoError(t, set("  neo  "))
	assert.NoError(t, set("abcdefghijklmnopqrstuvwxyzabcdefghij")) // over the cap, silently truncated
}

func TestForcedGrantTakesCurrentTurn(t *testing.T) {
	f := newTestFleet(t, Config{TurnDuration: time.Hour, IdleTimeout: time.Hour})
	addRover(t, f, "r1")
	setModeOK(t, f, ModeTurns)
	addClient(t, f, "c1", RoleUser)
	waitView(t, f, func(v View) bool { return v.IsDriver("r1", "c1") })
	addClient(t, f, "a1", RoleAdmin)
	waitView(t, f, func(v View) bool { return v.SessionCount == 2 })

	require.NoError(t, f.RequestControlSync("r1", "a1", true))
	assert.Equal(t, "a1", f.View().ActiveDrivers["r1"])
}
