package ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/legop3/MultiRoombaRover-sub000/internal/codec"
	"github.com/legop3/MultiRoombaRover-sub000/internal/fleet"
	"github.com/legop3/MultiRoombaRover-sub000/pkg/types"
)

const (
	helloTimeout = 10 * time.Second
	// rovers stream sensors continuously, so a long silent read means
	// the link is dead
	deviceReadTimeout = 60 * time.Second
)

// DeviceHandler serves rover agent connections on /device. The first
// frame must be a hello naming the rover; after that the rover streams
// sensor, ack, and event frames while the server pushes commands.
func DeviceHandler(f *fleet.Fleet, logger *zap.Logger) http.HandlerFunc {
	logger = logger.Named("ws.device")
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		hello, err := readFrame(r.Context(), conn, helloTimeout)
		if err != nil || hello.Type != "hello" || hello.Name == "" {
			conn.Close(websocket.StatusPolicyViolation, "hello required")
			return
		}
		roverID := hello.Name
		log := logger.With(zap.String("rover", roverID))

		outbox := make(chan types.Command, 64)
		f.Inbox() <- fleet.RoverHello{Meta: hello.Meta(), Outbox: outbox}
		defer func() { f.Inbox() <- fleet.RoverGone{RoverID: roverID} }()

		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for cmd := range outbox {
				payload, err := json.Marshal(cmd)
				if err != nil {
					continue
				}
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
		}()

		for {
			rctx, cancel := context.WithTimeout(r.Context(), deviceReadTimeout)
			_, data, err := conn.Read(rctx)
			cancel()
			if err != nil {
				return
			}
			var frame types.RoverFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				log.Debug("unparseable rover frame", zap.Error(err))
				continue
			}
			switch frame.Type {
			case "hello":
				// metadata refresh, same connection
				f.Inbox() <- fleet.RoverHello{Meta: frame.Meta(), Outbox: outbox}
			case "sensor":
				sensors, err := decodeSensorData(frame.Data)
				if err != nil {
					// a bad frame is dropped whole, registry state is untouched
					log.Debug("sensor frame rejected", zap.Error(err))
					continue
				}
				f.Inbox() <- fleet.RoverSensor{RoverID: roverID, Sensors: sensors}
			case "ack":
				f.Inbox() <- fleet.RoverAck{ID: frame.ID, Status: frame.Status, Error: frame.Error}
			case "event":
				f.Inbox() <- fleet.RoverEventFrame{RoverID: roverID, Event: frame.Event, Ts: frame.Ts}
			default:
				log.Debug("unknown rover frame", zap.String("type", frame.Type))
			}
		}
	}
}

func readFrame(ctx context.Context, conn *websocket.Conn, timeout time.Duration) (types.RoverFrame, error) {
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, data, err := conn.Read(rctx)
	if err != nil {
		return types.RoverFrame{}, err
	}
	var frame types.RoverFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return types.RoverFrame{}, err
	}
	return frame, nil
}

// decodeSensorData unpacks a base64 raw sensor frame and validates it.
// Decoding happens here, off the fleet goroutine, so only frames that
// pass the checksum ever reach the registry.
func decodeSensorData(data json.RawMessage) (*codec.Sensors, error) {
	var b64 string
	if err := json.Unmarshal(data, &b64); err != nil {
		return nil, err
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	return codec.DecodeSensorFrame(raw)
}
