package fleet

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/legop3/MultiRoombaRover-sub000/internal/events"
	"github.com/legop3/MultiRoombaRover-sub000/pkg/types"
)

// issueCommand stamps a correlation id on cmd and hands it to the
// rover's writer. The pending entry lives until the ack arrives; acks
// for long-running work (TTS, media) can land minutes later, so nothing
// ever evicts it.
func (f *Fleet) issueCommand(roverID string, cmd types.Command) (string, error) {
	r, ok := f.rovers[roverID]
	if !ok || r.outbox == nil {
		return "", ErrUnknownRover
	}
	cmd.ID = uuid.NewString()
	select {
	case r.outbox <- cmd:
	default:
		f.logger.Warn("rover outbox full, command dropped",
			zap.String("rover", roverID), zap.String("command", cmd.Type))
		return "", ErrUnknownRover
	}
	f.pending[cmd.ID] = pendingCommand{roverID: roverID, cmdType: cmd.Type, issuedAt: time.Now()}
	return cmd.ID, nil
}

// clientCommand is the operator path: arbitration first, then dispatch.
// An accepted command also counts as turn activity.
func (f *Fleet) clientCommand(msg ClientCommand) (string, error) {
	if !f.canDrive(msg.RoverID, msg.ClientID) {
		return "", ErrNotAuthorized
	}
	f.recordActivity(msg.RoverID, msg.ClientID)
	return f.issueCommand(msg.RoverID, msg.Cmd)
}

// handleAck resolves a correlation id. Unknown and duplicate ids are
// ignored, so a rover may ack twice without side effects.
func (f *Fleet) handleAck(msg RoverAck) {
	p, ok := f.pending[msg.ID]
	if !ok {
		return
	}
	delete(f.pending, msg.ID)
	elapsed := time.Since(p.issuedAt)
	f.logger.Debug("command acked",
		zap.String("rover", p.roverID), zap.String("command", p.cmdType),
		zap.String("status", msg.Status), zap.Duration("elapsed", elapsed))
	f.bus.Publish(events.CommandAck{
		DeviceID: p.roverID,
		ID:       msg.ID,
		Status:   msg.Status,
		Error:    msg.Error,
	})
	f.broadcastMessage(types.ServerMessage{
		Type:    "commandAck",
		RoverID: p.roverID,
		ID:      msg.ID,
		Status:  msg.Status,
		Error:   msg.Error,
	})
}
