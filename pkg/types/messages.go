// Package types defines the JSON frames exchanged with rover agents and
// operator consoles.
package types

import "encoding/json"

// BatteryConfig is the rover-declared battery envelope: charge levels
// in mAh for the full, warn, and urgent thresholds.
type BatteryConfig struct {
	Full   int `json:"full"`
	Warn   int `json:"warn"`
	Urgent int `json:"urgent"`
}

// RoverMeta is the payload of a rover "hello" frame. Media is opaque to
// the control plane; it is stored and re-broadcast for the video layer.
type RoverMeta struct {
	Name          string          `json:"name"`
	Battery       *BatteryConfig  `json:"battery,omitempty"`
	MaxWheelSpeed int             `json:"maxWheelSpeed,omitempty"`
	Media         json.RawMessage `json:"media,omitempty"`
}

// RoverFrame is any frame read from a rover socket. Type selects which
// fields are meaningful: "hello" (RoverMeta fields), "sensor" (Ts, Data),
// "ack" (ID, Status, Error), "event" (Event, Ts, Data).
type RoverFrame struct {
	Type string `json:"type"`

	// hello
	Name          string          `json:"name,omitempty"`
	Battery       *BatteryConfig  `json:"battery,omitempty"`
	MaxWheelSpeed int             `json:"maxWheelSpeed,omitempty"`
	Media         json.RawMessage `json:"media,omitempty"`

	// sensor / event
	Ts    int64           `json:"ts,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Event string          `json:"event,omitempty"`

	// ack
	ID     string `json:"id,omitempty"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Meta extracts the hello metadata from a frame.
func (f RoverFrame) Meta() RoverMeta {
	return RoverMeta{
		Name:          f.Name,
		Battery:       f.Battery,
		MaxWheelSpeed: f.MaxWheelSpeed,
		Media:         f.Media,
	}
}

// Command payload shapes, server -> rover. Exactly one payload field is
// set, matching Type.
type DriveDirect struct {
	Left  int `json:"left"`
	Right int `json:"right"`
}

type MotorPWM struct {
	Main   int `json:"main"`
	Side   int `json:"side"`
	Vacuum int `json:"vacuum"`
}

type SensorStream struct {
	Enable bool `json:"enable"`
}

type MediaAction struct {
	Action string `json:"action"`
}

type Servo struct {
	Angle float64 `json:"angle"`
}

type TTS struct {
	Text   string `json:"text"`
	Engine string `json:"engine,omitempty"`
	Voice  string `json:"voice,omitempty"`
	Pitch  int    `json:"pitch,omitempty"`
	Speak  bool   `json:"speak,omitempty"`
}

// Command is one outbound frame to a rover. ID is the correlation id the
// rover echoes back in its ack.
type Command struct {
	Type         string        `json:"type"`
	ID           string        `json:"id,omitempty"`
	DriveDirect  *DriveDirect  `json:"driveDirect,omitempty"`
	MotorPWM     *MotorPWM     `json:"motorPwm,omitempty"`
	Raw          string        `json:"raw,omitempty"`
	SensorStream *SensorStream `json:"sensorStream,omitempty"`
	Media        *MediaAction  `json:"media,omitempty"`
	Servo        *Servo        `json:"servo,omitempty"`
	TTS          *TTS          `json:"tts,omitempty"`
}

// ClientMessage is one frame read from an operator socket.
type ClientMessage struct {
	Type     string          `json:"type"`
	Username string          `json:"username,omitempty"`
	Password string          `json:"password,omitempty"`
	Role     string          `json:"role,omitempty"`
	Nickname string          `json:"nickname,omitempty"`
	RoverID  string          `json:"roverId,omitempty"`
	Force    bool            `json:"force,omitempty"`
	Locked   bool            `json:"locked,omitempty"`
	Reason   string          `json:"reason,omitempty"`
	Mode     string          `json:"mode,omitempty"`
	Command  string          `json:"command,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// RosterEntry is the public projection of one rover.
type RosterEntry struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Battery       *BatteryConfig  `json:"battery,omitempty"`
	MaxWheelSpeed int             `json:"maxWheelSpeed,omitempty"`
	Media         json.RawMessage `json:"media,omitempty"`
	Locked        bool            `json:"locked"`
	LockReason    string          `json:"lockReason,omitempty"`
	LastSeen      int64           `json:"lastSeen"`
}

// UserEntry describes one connected operator in a session snapshot.
type UserEntry struct {
	ClientID string `json:"clientId"`
	Nickname string `json:"nickname,omitempty"`
	Role     string `json:"role"`
	RoverID  string `json:"roverId,omitempty"`
}

// TurnQueueView is the public state of one rover's turn queue.
type TurnQueueView struct {
	Queue    []string `json:"queue"`
	Current  string   `json:"current,omitempty"`
	Deadline int64    `json:"deadline,omitempty"`
}

// Assignment describes a client's placement: driving a rover, waiting
// for one, or exempt as an admin.
type Assignment struct {
	RoverID       string `json:"roverId,omitempty"`
	Status        string `json:"status,omitempty"` // assigned | waiting | admin
	QueuePosition int    `json:"queuePosition,omitempty"`
}

// Session is the full per-client state snapshot pushed on any relevant
// change.
type Session struct {
	ClientID      string                   `json:"clientId"`
	Role          string                   `json:"role"`
	Mode          string                   `json:"mode"`
	Roster        []RosterEntry            `json:"roster"`
	Assignment    Assignment               `json:"assignment"`
	ActiveDrivers map[string]string        `json:"activeDrivers"`
	TurnQueues    map[string]TurnQueueView `json:"turnQueues"`
	Users         []UserEntry              `json:"users"`
}

// ServerMessage is one frame written to an operator socket.
type ServerMessage struct {
	Type    string          `json:"type"` // session | roster | sensorFrame | commandAck | mode | lockdown | controlGranted | error
	Session *Session        `json:"session,omitempty"`
	Roster  []RosterEntry   `json:"roster,omitempty"`
	RoverID string          `json:"roverId,omitempty"`
	Sensors json.RawMessage `json:"sensors,omitempty"`
	ID      string          `json:"id,omitempty"`
	Status  string          `json:"status,omitempty"`
	Mode    string          `json:"mode,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
}
