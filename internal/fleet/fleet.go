// Package fleet is the control plane: the canonical table of connected
// rovers, the global access mode, driver arbitration (assignment and turn
// queues), and the command dispatcher.
//
// All state is owned by a single actor goroutine fed through an inbox
// channel; transports and timers never touch it directly. State lives
// only in memory and is rebuilt as rovers and operators reconnect.
package fleet

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/legop3/MultiRoombaRover-sub000/internal/codec"
	"github.com/legop3/MultiRoombaRover-sub000/internal/events"
	"github.com/legop3/MultiRoombaRover-sub000/pkg/types"
)

var (
	// ErrUnknownRover names a rover id the registry has no record (or no
	// live transport) for.
	ErrUnknownRover = errors.New("unknown rover")
	// ErrNotAuthorized covers every authorization refusal: missing
	// privilege, locked rover, or a mode that forbids the caller.
	ErrNotAuthorized = errors.New("not authorized")
)

// Config tunes the arbitration timers. Zero values take the production
// defaults.
type Config struct {
	TurnDuration  time.Duration // rotation period in turns mode
	IdleTimeout   time.Duration // grace before an idle current driver is skipped
	MaxIdleSkips  int           // idle skips before a driver is force-released
	LockdownGrace time.Duration // grace before a non-admin is disconnected in lockdown
}

func (c Config) withDefaults() Config {
	if c.TurnDuration == 0 {
		c.TurnDuration = 60 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 7 * time.Second
	}
	if c.MaxIdleSkips == 0 {
		c.MaxIdleSkips = 3
	}
	if c.LockdownGrace == 0 {
		c.LockdownGrace = 10 * time.Second
	}
	return c
}

type rover struct {
	id         string
	meta       types.RoverMeta
	outbox     chan types.Command // nil while offline
	locked     bool
	lockReason string
	drivers    map[string]bool
	lastSensor *codec.Sensors
	lastTelem  *codec.Telemetry
	lastSeen   time.Time
}

type session struct {
	id          string
	role        Role
	nickname    string
	outbox      chan types.ServerMessage
	rooms       map[string]bool // rover ids whose sensor frames this session receives
	lockdownGen int
	dropped     bool // outbox closed, session on its way out
}

type pendingCommand struct {
	roverID  string
	cmdType  string
	issuedAt time.Time
}

// Fleet is the control-plane actor.
type Fleet struct {
	inbox  chan Msg
	ctx    context.Context
	cancel context.CancelFunc
	cfg    Config
	logger *zap.Logger
	bus    *events.Bus

	mode     Mode
	rovers   map[string]*rover
	order    []string // rover insertion order, the registry iteration order
	sessions map[string]*session
	turns    map[string]*turnQueue
	// assignment
	assignments map[string]string // clientID -> roverID placed by assignment
	waiting     []string          // clientIDs waiting for a free rover
	// dispatcher
	pending map[string]pendingCommand
}

// New starts the fleet actor. The server boots in admin mode.
func New(parent context.Context, cfg Config, bus *events.Bus, logger *zap.Logger) *Fleet {
	ctx, cancel := context.WithCancel(parent)
	f := &Fleet{
		inbox:       make(chan Msg, 256),
		ctx:         ctx,
		cancel:      cancel,
		cfg:         cfg.withDefaults(),
		logger:      logger.Named("fleet"),
		bus:         bus,
		mode:        ModeAdmin,
		rovers:      make(map[string]*rover),
		sessions:    make(map[string]*session),
		turns:       make(map[string]*turnQueue),
		assignments: make(map[string]string),
		pending:     make(map[string]pendingCommand),
	}
	go f.loop()
	return f
}

// Inbox accepts fleet messages from transports, timers, and tests.
func (f *Fleet) Inbox() chan<- Msg { return f.inbox }

// post delivers an internal message without wedging a timer goroutine if
// the actor already shut down.
func (f *Fleet) post(m Msg) {
	select {
	case f.inbox <- m:
	case <-f.ctx.Done():
	}
}

func (f *Fleet) loop() {
	for {
		select {
		case <-f.ctx.Done():
			f.shutdown()
			return
		case m := <-f.inbox:
			switch msg := m.(type) {
			case RoverHello:
				f.upsertRover(msg.Meta, msg.Outbox)
			case RoverGone:
				f.removeRover(msg.RoverID)
			case RoverSensor:
				f.handleSensor(msg.RoverID, msg.Sensors)
			case RoverTelemetry:
				f.handleTelemetry(msg.RoverID, msg.Telemetry)
			case RoverAck:
				f.handleAck(msg)
			case RoverEventFrame:
				f.bus.Publish(events.DeviceEvent{DeviceID: msg.RoverID, Event: msg.Event, Ts: msg.Ts})
			case ClientJoin:
				f.addSession(msg)
			case ClientLeave:
				f.removeSession(msg.ClientID)
			case SetRole:
				reply(msg.Reply, f.setRole(msg.ClientID, msg.Role))
			case SetNickname:
				reply(msg.Reply, f.setNickname(msg.ClientID, msg.Nickname))
			case RequestControl:
				reply(msg.Reply, f.requestControl(msg.RoverID, msg.ClientID, msg.Force, false))
			case ReleaseControl:
				f.releaseAssignment(msg.RoverID, msg.ClientID)
				f.syncAll()
			case LockRover:
				reply(msg.Reply, f.lockRover(msg))
			case SetMode:
				reply(msg.Reply, f.setMode(msg.Mode, msg.ClientID))
			case ClientCommand:
				id, err := f.clientCommand(msg)
				reply(msg.Reply, CommandResult{ID: id, Err: err})
			case GetView:
				reply(msg.Reply, f.view())
			case turnTick:
				f.handleTurnTick(msg)
			case idleTick:
				f.handleIdleTick(msg)
			case lockdownTick:
				f.handleLockdownTick(msg)
			case Shutdown:
				f.shutdown()
				return
			}
		}
	}
}

func (f *Fleet) shutdown() {
	for id, sess := range f.sessions {
		close(sess.outbox)
		delete(f.sessions, id)
	}
	for id := range f.turns {
		f.dropTurnQueue(id)
	}
	for _, r := range f.rovers {
		if r.outbox != nil {
			close(r.outbox)
			r.outbox = nil
		}
	}
	f.cancel()
}

// reply sends on a possibly-nil reply channel without blocking the actor.
func reply[T any](ch chan T, v T) {
	if ch == nil {
		return
	}
	select {
	case ch <- v:
	default:
	}
}

// --- synchronous wrappers -------------------------------------------------

// Mode returns the current access mode.
func (f *Fleet) Mode() Mode { return f.View().Mode }

// View returns a consistent snapshot of fleet state.
func (f *Fleet) View() View {
	ch := make(chan View, 1)
	f.post(GetView{Reply: ch})
	select {
	case v := <-ch:
		return v
	case <-f.ctx.Done():
		return View{}
	}
}

func (f *Fleet) await(post func(chan error)) error {
	ch := make(chan error, 1)
	post(ch)
	select {
	case err := <-ch:
		return err
	case <-f.ctx.Done():
		return f.ctx.Err()
	}
}

// RequestControlSync grants control and waits for the decision.
func (f *Fleet) RequestControlSync(roverID, clientID string, force bool) error {
	return f.await(func(ch chan error) {
		f.post(RequestControl{RoverID: roverID, ClientID: clientID, Force: force, Reply: ch})
	})
}

// SetModeSync transitions the access mode and waits for the decision.
func (f *Fleet) SetModeSync(mode Mode, clientID string) error {
	return f.await(func(ch chan error) {
		f.post(SetMode{Mode: mode, ClientID: clientID, Reply: ch})
	})
}

// LockSync toggles a rover lock and waits for the decision.
func (f *Fleet) LockSync(roverID string, locked bool, reason, clientID string) error {
	return f.await(func(ch chan error) {
		f.post(LockRover{RoverID: roverID, Locked: locked, Reason: reason, ClientID: clientID, Reply: ch})
	})
}

// IssueCommandSync dispatches a command for clientID and returns its
// correlation id.
func (f *Fleet) IssueCommandSync(roverID, clientID string, cmd types.Command) (string, error) {
	ch := make(chan CommandResult, 1)
	f.post(ClientCommand{RoverID: roverID, ClientID: clientID, Cmd: cmd, Reply: ch})
	select {
	case res := <-ch:
		return res.ID, res.Err
	case <-f.ctx.Done():
		return "", f.ctx.Err()
	}
}

// --- views ----------------------------------------------------------------

// View is a read-only snapshot of fleet state, reflected out of the actor
// without data races.
type View struct {
	Mode          Mode
	Roster        []types.RosterEntry
	Drivers       map[string][]string
	ActiveDrivers map[string]string
	TurnQueues    map[string]types.TurnQueueView
	Waiting       []string
	LastSensor    map[string]*codec.Sensors
	LastTelemetry map[string]*codec.Telemetry
	SessionCount  int
	PendingCount  int
}

func (f *Fleet) view() View {
	v := View{
		Mode:          f.mode,
		Roster:        f.roster(),
		Drivers:       make(map[string][]string, len(f.rovers)),
		ActiveDrivers: f.activeDrivers(),
		TurnQueues:    f.turnQueueViews(),
		Waiting:       append([]string(nil), f.waiting...),
		LastSensor:    make(map[string]*codec.Sensors, len(f.rovers)),
		LastTelemetry: make(map[string]*codec.Telemetry, len(f.rovers)),
		SessionCount:  len(f.sessions),
		PendingCount:  len(f.pending),
	}
	for _, id := range f.order {
		r := f.rovers[id]
		ids := make([]string, 0, len(r.drivers))
		for d := range r.drivers {
			ids = append(ids, d)
		}
		v.Drivers[id] = ids
		v.LastSensor[id] = r.lastSensor
		v.LastTelemetry[id] = r.lastTelem
	}
	return v
}

// IsDriver reports driver-set membership.
func (v View) IsDriver(roverID, clientID string) bool {
	for _, id := range v.Drivers[roverID] {
		if id == clientID {
			return true
		}
	}
	return false
}
