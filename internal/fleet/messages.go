package fleet

import (
	"github.com/legop3/MultiRoombaRover-sub000/internal/codec"
	"github.com/legop3/MultiRoombaRover-sub000/pkg/types"
)

// Msg is the fleet actor's message union. Every mutation of fleet state
// arrives as one of these on the inbox, so compound check-then-act
// sequences are atomic by construction.
type Msg interface{ isFleetMsg() }

// RoverHello registers or refreshes a rover. Outbox is the rover's
// outbound command queue, drained in order by its transport writer.
type RoverHello struct {
	Meta   types.RoverMeta
	Outbox chan types.Command
}

// RoverGone removes a rover after its transport closed.
type RoverGone struct{ RoverID string }

// RoverSensor stores an already-decoded sensor snapshot. Frames that fail
// to decode are never posted, so a bad frame can't touch registry state.
type RoverSensor struct {
	RoverID string
	Sensors *codec.Sensors
}

// RoverTelemetry stores a UDP telemetry packet for a rover.
type RoverTelemetry struct {
	RoverID   string
	Telemetry *codec.Telemetry
}

// RoverAck resolves a pending command.
type RoverAck struct {
	ID     string
	Status string
	Error  string
}

// RoverEventFrame is a rover-reported event, passed through to the bus.
type RoverEventFrame struct {
	RoverID string
	Event   string
	Ts      int64
}

// ClientJoin registers an operator session.
type ClientJoin struct {
	ClientID string
	Role     Role
	Outbox   chan types.ServerMessage
}

// ClientLeave destroys a session, releasing all control.
type ClientLeave struct{ ClientID string }

// SetRole changes a session's role.
type SetRole struct {
	ClientID string
	Role     Role
	Reply    chan error
}

// SetNickname sets a session's display name.
type SetNickname struct {
	ClientID string
	Nickname string
	Reply    chan error
}

// RequestControl asks for driving rights on a rover.
type RequestControl struct {
	RoverID  string
	ClientID string
	Force    bool
	Reply    chan error
}

// ReleaseControl gives driving rights back.
type ReleaseControl struct {
	RoverID  string
	ClientID string
}

// LockRover toggles a rover's lock flag. A zero ClientID is an internal
// caller (battery supervisor) and is implicitly privileged.
type LockRover struct {
	RoverID  string
	Locked   bool
	Reason   string
	ClientID string
	Reply    chan error
}

// SetMode transitions the global access mode. A zero ClientID is an
// internal caller and may enter any mode.
type SetMode struct {
	Mode     Mode
	ClientID string
	Reply    chan error
}

// ClientCommand issues a command on behalf of an operator; authorization
// (driver status or privilege) is checked before dispatch.
type ClientCommand struct {
	RoverID  string
	ClientID string
	Cmd      types.Command
	Reply    chan CommandResult
}

// CommandResult carries the correlation id of a dispatched command.
type CommandResult struct {
	ID  string
	Err error
}

// GetView replies with a consistent snapshot of fleet state, for tests
// and the HTTP roster endpoint.
type GetView struct{ Reply chan View }

// Shutdown stops the actor; all session outboxes are closed.
type Shutdown struct{}

// Timer messages are internal. Each carries the generation it was armed
// under; a fire whose generation is stale is a no-op.
type turnTick struct {
	roverID string
	gen     int
}

type idleTick struct {
	roverID string
	gen     int
}

type lockdownTick struct {
	clientID string
	gen      int
}

func (RoverHello) isFleetMsg()      {}
func (RoverGone) isFleetMsg()       {}
func (RoverSensor) isFleetMsg()     {}
func (RoverTelemetry) isFleetMsg()  {}
func (RoverAck) isFleetMsg()        {}
func (RoverEventFrame) isFleetMsg() {}
func (ClientJoin) isFleetMsg()      {}
func (ClientLeave) isFleetMsg()     {}
func (SetRole) isFleetMsg()         {}
func (SetNickname) isFleetMsg()     {}
func (RequestControl) isFleetMsg()  {}
func (ReleaseControl) isFleetMsg()  {}
func (LockRover) isFleetMsg()       {}
func (SetMode) isFleetMsg()         {}
func (ClientCommand) isFleetMsg()   {}
func (GetView) isFleetMsg()         {}
func (Shutdown) isFleetMsg()        {}
func (turnTick) isFleetMsg()        {}
func (idleTick) isFleetMsg()        {}
func (lockdownTick) isFleetMsg()    {}
