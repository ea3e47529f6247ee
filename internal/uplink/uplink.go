// Package uplink drives firmware rovers over UDP. Statically configured
// robots are registered with the fleet like any websocket rover; their
// commands land in a per-robot control state that a fixed-rate streamer
// packs into control packets, while a listener decodes their telemetry.
package uplink

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/legop3/MultiRoombaRover-sub000/internal/codec"
	"github.com/legop3/MultiRoombaRover-sub000/internal/config"
	"github.com/legop3/MultiRoombaRover-sub000/internal/fleet"
	"github.com/legop3/MultiRoombaRover-sub000/pkg/types"
)

// control packets stream at 50 Hz whether or not anything changed, so a
// robot that misses packets recovers on the next one
const streamInterval = 20 * time.Millisecond

type robotState struct {
	id            string
	addr          *net.UDPAddr // nil until configured or learned from telemetry
	maxWheelSpeed int

	state   codec.ControlState
	oneShot uint8 // action bits latched for exactly one packet
	outbox  chan types.Command
}

// Uplink owns both UDP sockets and the per-robot control states.
type Uplink struct {
	f      *fleet.Fleet
	logger *zap.Logger
	cfg    *config.Config

	mu     sync.Mutex
	robots map[string]*robotState

	control   *net.UDPConn
	telemetry *net.UDPConn
}

func New(cfg *config.Config, f *fleet.Fleet, logger *zap.Logger) *Uplink {
	u := &Uplink{
		f:      f,
		logger: logger.Named("uplink"),
		cfg:    cfg,
		robots: make(map[string]*robotState),
	}
	for _, r := range cfg.Robots {
		rs := &robotState{
			id:            r.ID,
			maxWheelSpeed: r.MaxWheelSpeed,
			outbox:        make(chan types.Command, 64),
		}
		if r.Host != "" {
			if addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", r.Host, r.ControlPort)); err == nil {
				rs.addr = addr
			} else {
				u.logger.Warn("robot address unresolved, waiting for telemetry",
					zap.String("robot", r.ID), zap.Error(err))
			}
		}
		u.robots[r.ID] = rs
	}
	return u
}

// Run binds the sockets, registers the robots, and blocks until ctx is
// done or a socket fails.
func (u *Uplink) Run(ctx context.Context) error {
	var err error
	u.control, err = net.ListenUDP("udp", &net.UDPAddr{Port: u.cfg.ControlBindPort})
	if err != nil {
		return fmt.Errorf("bind control socket: %w", err)
	}
	u.telemetry, err = net.ListenUDP("udp", &net.UDPAddr{Port: u.cfg.TelemetryBindPort})
	if err != nil {
		u.control.Close()
		return fmt.Errorf("bind telemetry socket: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		u.control.Close()
		u.telemetry.Close()
		return nil
	})
	g.Go(func() error { return u.listenTelemetry(ctx) })
	g.Go(func() error { u.stream(ctx); return nil })

	u.mu.Lock()
	for _, rs := range u.robots {
		meta := types.RoverMeta{Name: rs.id, MaxWheelSpeed: rs.maxWheelSpeed}
		u.f.Inbox() <- fleet.RoverHello{Meta: meta, Outbox: rs.outbox}
		rs := rs
		g.Go(func() error { u.drainCommands(ctx, rs); return nil })
	}
	u.mu.Unlock()

	return g.Wait()
}

// drainCommands applies fleet commands to the robot's control state and
// acks them. UDP gives no end-to-end ack, so "applied" means folded into
// the stream.
func (u *Uplink) drainCommands(ctx context.Context, rs *robotState) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-rs.outbox:
			if !ok {
				return
			}
			status, errMsg := u.apply(rs, cmd)
			u.f.Inbox() <- fleet.RoverAck{ID: cmd.ID, Status: status, Error: errMsg}
		}
	}
}

func (u *Uplink) apply(rs *robotState, cmd types.Command) (status, errMsg string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	switch cmd.Type {
	case "drive":
		if cmd.DriveDirect == nil {
			return "error", "missing drive payload"
		}
		limit := rs.maxWheelSpeed
		if limit <= 0 || limit > codec.MaxSpeedMmps {
			limit = codec.MaxSpeedMmps
		}
		rs.state.LeftMmps = clamp(cmd.DriveDirect.Left, limit)
		rs.state.RightMmps = clamp(cmd.DriveDirect.Right, limit)
		return "applied", ""
	case "motors":
		// firmware robots have no auxiliary PWM channels
		return "unsupported", ""
	case "media":
		if cmd.Media == nil {
			return "error", "missing media payload"
		}
		switch cmd.Media.Action {
		case "dock":
			rs.oneShot |= codec.ActionSeekDock
		case "playSong":
			rs.oneShot |= codec.ActionPlaySong
		case "loadSong":
			rs.oneShot |= codec.ActionLoadSong
		default:
			return "unsupported", ""
		}
		return "applied", ""
	case "oiMode":
		rs.state.Mode = uint8(parseOIMode(cmd.Raw))
		rs.oneShot |= codec.ActionEnableOI
		return "applied", ""
	default:
		return "unsupported", ""
	}
}

func parseOIMode(s string) int {
	switch s {
	case "passive":
		return codec.OIModePassive
	case "safe":
		return codec.OIModeSafe
	case "full":
		return codec.OIModeFull
	default:
		return codec.OIModeNoChange
	}
}

func clamp(v, limit int) int16 {
	if v > limit {
		v = limit
	}
	if v < -limit {
		v = -limit
	}
	return int16(v)
}

// stream sends one control packet per robot per tick. One-shot action
// bits ride exactly one packet and are cleared before the next.
func (u *Uplink) stream(ctx context.Context) {
	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			u.tick()
		}
	}
}

func (u *Uplink) tick() {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, rs := range u.robots {
		if rs.addr == nil {
			continue
		}
		rs.state.Seq++
		rs.state.Actions = rs.oneShot
		pkt := codec.BuildControlPacket(rs.state)
		rs.oneShot = 0
		rs.state.Actions = 0
		if _, err := u.control.WriteToUDP(pkt, rs.addr); err != nil {
			u.logger.Debug("control packet send failed", zap.String("robot", rs.id), zap.Error(err))
		}
	}
}

// listenTelemetry decodes incoming telemetry packets, learns the sender
// address for robots configured without a host, and forwards the
// snapshot to the fleet.
func (u *Uplink) listenTelemetry(ctx context.Context) error {
	buf := make([]byte, 2048)
	for {
		n, remote, err := u.telemetry.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("telemetry read: %w", err)
		}
		pkt := make([]byte, n)
		copy(pkt, buf[:n])
		telem, err := codec.DecodeTelemetry(pkt)
		if err != nil {
			u.logger.Debug("telemetry packet rejected", zap.String("from", remote.String()), zap.Error(err))
			continue
		}
		u.learnAddr(telem.Header.RobotID, remote)
		u.f.Inbox() <- fleet.RoverTelemetry{RoverID: telem.Header.RobotID, Telemetry: telem}
	}
}

func (u *Uplink) learnAddr(robotID string, remote *net.UDPAddr) {
	u.mu.Lock()
	defer u.mu.Unlock()
	rs, ok := u.robots[robotID]
	if !ok || rs.addr != nil {
		return
	}
	port := u.cfg.ControlBindPort
	for _, r := range u.cfg.Robots {
		if r.ID == robotID {
			port = r.ControlPort
			break
		}
	}
	rs.addr = &net.UDPAddr{IP: remote.IP, Port: port}
	u.logger.Info("robot address learned from telemetry",
		zap.String("robot", robotID), zap.String("addr", rs.addr.String()))
}
