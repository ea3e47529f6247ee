// Package ws bridges websocket connections to the fleet actor. Clients
// (operators) and devices (rovers) each get a handler; both follow the
// same shape: a writer goroutine draining a fleet-owned outbox, and a
// reader loop translating frames into fleet messages.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/legop3/MultiRoombaRover-sub000/internal/auth"
	"github.com/legop3/MultiRoombaRover-sub000/internal/fleet"
	"github.com/legop3/MultiRoombaRover-sub000/pkg/types"
)

const writeTimeout = 3 * time.Second

// ClientHandler serves operator connections on /ws. The connection joins
// as role=user unless ?role=spectator is given; admin roles are only
// reachable through a login frame.
func ClientHandler(f *fleet.Fleet, verifier *auth.Verifier, logger *zap.Logger) http.HandlerFunc {
	logger = logger.Named("ws.client")
	return func(w http.ResponseWriter, r *http.Request) {
		role := fleet.RoleUser
		if q := r.URL.Query().Get("role"); q != "" {
			parsed, ok := fleet.ParseRole(q)
			if !ok {
				http.Error(w, "bad role", http.StatusBadRequest)
				return
			}
			role = parsed
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		clientID := uuid.NewString()
		out := make(chan types.ServerMessage, 64)
		f.Inbox() <- fleet.ClientJoin{ClientID: clientID, Role: role, Outbox: out}
		defer func() { f.Inbox() <- fleet.ClientLeave{ClientID: clientID} }()

		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for msg := range out {
				payload, err := json.Marshal(msg)
				if err != nil {
					continue
				}
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
			// the fleet closed the outbox: forced disconnect
			conn.Close(websocket.StatusNormalClosure, "disconnected")
		}()

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				return
			}
			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				writeError(r.Context(), conn, "bad json")
				continue
			}
			if err := handleClientMessage(f, verifier, clientID, cm); err != nil {
				logger.Debug("client message rejected",
					zap.String("client", clientID), zap.String("type", cm.Type), zap.Error(err))
				writeError(r.Context(), conn, err.Error())
			}
		}
	}
}

func handleClientMessage(f *fleet.Fleet, verifier *auth.Verifier, clientID string, m types.ClientMessage) error {
	switch m.Type {
	case "login":
		roleName, err := verifier.Authenticate(m.Username, m.Password)
		if err != nil {
			return err
		}
		return awaitErr(f, func(ch chan error) {
			f.Inbox() <- fleet.SetRole{ClientID: clientID, Role: fleet.Role(roleName), Reply: ch}
		})
	case "setRole":
		role, ok := fleet.ParseRole(m.Role)
		if !ok {
			return fmt.Errorf("unknown role %q", m.Role)
		}
		return awaitErr(f, func(ch chan error) {
			f.Inbox() <- fleet.SetRole{ClientID: clientID, Role: role, Reply: ch}
		})
	case "nickname":
		return awaitErr(f, func(ch chan error) {
			f.Inbox() <- fleet.SetNickname{ClientID: clientID, Nickname: m.Nickname, Reply: ch}
		})
	case "requestControl":
		return f.RequestControlSync(m.RoverID, clientID, m.Force)
	case "releaseControl":
		f.Inbox() <- fleet.ReleaseControl{RoverID: m.RoverID, ClientID: clientID}
		return nil
	case "lock":
		return f.LockSync(m.RoverID, m.Locked, m.Reason, clientID)
	case "setMode":
		return f.SetModeSync(fleet.Mode(m.Mode), clientID)
	case "command":
		cmd, err := parseCommand(m)
		if err != nil {
			return err
		}
		_, err = f.IssueCommandSync(m.RoverID, clientID, cmd)
		return err
	default:
		return fmt.Errorf("unknown type %q", m.Type)
	}
}

// parseCommand turns a client command frame into the typed command sent
// to the rover. The payload shape depends on the command name.
func parseCommand(m types.ClientMessage) (types.Command, error) {
	cmd := types.Command{Type: m.Command}
	var err error
	switch m.Command {
	case "drive":
		cmd.DriveDirect = &types.DriveDirect{}
		err = unmarshalPayload(m.Data, cmd.DriveDirect)
	case "motors":
		cmd.MotorPWM = &types.MotorPWM{}
		err = unmarshalPayload(m.Data, cmd.MotorPWM)
	case "sensorStream":
		cmd.SensorStream = &types.SensorStream{}
		err = unmarshalPayload(m.Data, cmd.SensorStream)
	case "media":
		cmd.Media = &types.MediaAction{}
		err = unmarshalPayload(m.Data, cmd.Media)
	case "servo":
		cmd.Servo = &types.Servo{}
		err = unmarshalPayload(m.Data, cmd.Servo)
	case "tts":
		cmd.TTS = &types.TTS{}
		err = unmarshalPayload(m.Data, cmd.TTS)
	case "raw":
		var p struct {
			Raw string `json:"raw"`
		}
		if err = unmarshalPayload(m.Data, &p); err == nil {
			cmd.Raw = p.Raw
		}
	case "oiMode":
		var p struct {
			Mode string `json:"mode"`
		}
		if err = unmarshalPayload(m.Data, &p); err == nil {
			cmd.Raw = p.Mode
		}
	default:
		return types.Command{}, fmt.Errorf("unknown command %q", m.Command)
	}
	if err != nil {
		return types.Command{}, fmt.Errorf("bad %s payload: %w", m.Command, err)
	}
	return cmd, nil
}

func unmarshalPayload(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return errors.New("missing payload")
	}
	return json.Unmarshal(data, v)
}

func awaitErr(f *fleet.Fleet, post func(chan error)) error {
	ch := make(chan error, 1)
	post(ch)
	return <-ch
}

func writeError(ctx context.Context, conn *websocket.Conn, msg string) {
	payload, _ := json.Marshal(types.ServerMessage{Type: "error", Error: msg})
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = conn.Write(wctx, websocket.MessageText, payload)
}
