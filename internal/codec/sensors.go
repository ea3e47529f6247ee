package codec

import "encoding/binary"

// ChargingState is the OI charging state code.
type ChargingState uint8

const (
	ChargingNone ChargingState = iota
	ChargingReconditioning
	ChargingFull
	ChargingTrickle
	ChargingWaiting
	ChargingFault
)

func (c ChargingState) String() string {
	switch c {
	case ChargingNone:
		return "not charging"
	case ChargingReconditioning:
		return "reconditioning charging"
	case ChargingFull:
		return "full charging"
	case ChargingTrickle:
		return "trickle charging"
	case ChargingWaiting:
		return "waiting"
	case ChargingFault:
		return "charging fault"
	default:
		return "unknown"
	}
}

// OIMode is the OI interface mode code.
type OIMode uint8

const (
	OIOff OIMode = iota
	OIPassive
	OISafe
	OIFull
)

func (m OIMode) String() string {
	switch m {
	case OIOff:
		return "off"
	case OIPassive:
		return "passive"
	case OISafe:
		return "safe"
	case OIFull:
		return "full"
	default:
		return "unknown"
	}
}

type Bumps struct {
	BumpRight      bool `json:"bumpRight"`
	BumpLeft       bool `json:"bumpLeft"`
	WheelDropRight bool `json:"wheelDropRight"`
	WheelDropLeft  bool `json:"wheelDropLeft"`
}

type WheelOvercurrents struct {
	SideBrush  bool `json:"sideBrush"`
	MainBrush  bool `json:"mainBrush"`
	RightWheel bool `json:"rightWheel"`
	LeftWheel  bool `json:"leftWheel"`
}

type Buttons struct {
	Clean    bool `json:"clean"`
	Spot     bool `json:"spot"`
	Dock     bool `json:"dock"`
	Minute   bool `json:"minute"`
	Hour     bool `json:"hour"`
	Day      bool `json:"day"`
	Schedule bool `json:"schedule"`
	Clock    bool `json:"clock"`
}

type ChargeSources struct {
	InternalCharger bool `json:"internalCharger"`
	HomeBase        bool `json:"homeBase"`
}

type CliffSignals struct {
	Left       uint16 `json:"left"`
	FrontLeft  uint16 `json:"frontLeft"`
	FrontRight uint16 `json:"frontRight"`
	Right      uint16 `json:"right"`
}

type EncoderCounts struct {
	Left  uint16 `json:"left"`
	Right uint16 `json:"right"`
}

type LightBumper struct {
	Left        bool `json:"left"`
	FrontLeft   bool `json:"frontLeft"`
	CenterLeft  bool `json:"centerLeft"`
	CenterRight bool `json:"centerRight"`
	FrontRight  bool `json:"frontRight"`
	Right       bool `json:"right"`
}

type LightBumpSignals struct {
	Left        uint16 `json:"left"`
	FrontLeft   uint16 `json:"frontLeft"`
	CenterLeft  uint16 `json:"centerLeft"`
	CenterRight uint16 `json:"centerRight"`
	FrontRight  uint16 `json:"frontRight"`
	Right       uint16 `json:"right"`
}

type MotorCurrents struct {
	Left      int16 `json:"left"`
	Right     int16 `json:"right"`
	MainBrush int16 `json:"mainBrush"`
	SideBrush int16 `json:"sideBrush"`
}

type Stasis struct {
	Toggling bool `json:"toggling"`
	Disabled bool `json:"disabled"`
}

// Sensors is a decoded OI sensor snapshot. It is an immutable value:
// decoders produce a fresh one per frame and the registry replaces the
// stored snapshot wholesale.
type Sensors struct {
	Bumps              Bumps             `json:"bumps"`
	Wall               bool              `json:"wall"`
	CliffLeft          bool              `json:"cliffLeft"`
	CliffFrontLeft     bool              `json:"cliffFrontLeft"`
	CliffFrontRight    bool              `json:"cliffFrontRight"`
	CliffRight         bool              `json:"cliffRight"`
	VirtualWall        bool              `json:"virtualWall"`
	WheelOvercurrents  WheelOvercurrents `json:"wheelOvercurrents"`
	DirtDetect         uint8             `json:"dirtDetect"`
	DirtDetectLeft     uint8             `json:"dirtDetectLeft"`
	IROpcode           uint8             `json:"irOpcode"`
	Buttons            Buttons           `json:"buttons"`
	DistanceMm         int16             `json:"distanceMm"`
	AngleDeg           int16             `json:"angleDeg"`
	ChargingState      ChargingState     `json:"chargingState"`
	VoltageMv          uint16            `json:"voltageMv"`
	CurrentMa          int16             `json:"currentMa"`
	TemperatureC       int8              `json:"temperatureC"`
	BatteryChargeMah   uint16            `json:"batteryChargeMah"`
	BatteryCapacityMah uint16            `json:"batteryCapacityMah"`
	WallSignal         uint16            `json:"wallSignal"`
	CliffSignals       CliffSignals      `json:"cliffSignals"`
	ChargingAvailable  ChargeSources     `json:"chargingSourcesAvailable"`
	ChargingSources    ChargeSources     `json:"chargingSources"`
	OIMode             OIMode            `json:"oiMode"`
	SongNumber         uint8             `json:"songNumber"`
	SongPlaying        bool              `json:"songPlaying"`
	StreamPackets      uint8             `json:"streamPackets"`
	RequestedVelocity  int16             `json:"requestedVelocity"`
	RequestedRadius    int16             `json:"requestedRadius"`
	VelocityRight      int16             `json:"velocityRight"`
	VelocityLeft       int16             `json:"velocityLeft"`
	EncoderCounts      EncoderCounts     `json:"encoderCounts"`
	LightBumper        LightBumper       `json:"lightBumper"`
	LightBumpSignals   LightBumpSignals  `json:"lightBumpSignals"`
	IRLeft             uint8             `json:"irLeft"`
	IRRight            uint8             `json:"irRight"`
	MotorCurrents      MotorCurrents     `json:"motorCurrents"`
	Stasis             Stasis            `json:"stasis"`
}

func parseBumps(v byte) Bumps {
	return Bumps{
		BumpRight:      v&0x01 != 0,
		BumpLeft:       v&0x02 != 0,
		WheelDropRight: v&0x04 != 0,
		WheelDropLeft:  v&0x08 != 0,
	}
}

func parseWheelOvercurrents(v byte) WheelOvercurrents {
	return WheelOvercurrents{
		SideBrush:  v&0x01 != 0,
		MainBrush:  v&0x04 != 0,
		RightWheel: v&0x08 != 0,
		LeftWheel:  v&0x10 != 0,
	}
}

func parseButtons(v byte) Buttons {
	return Buttons{
		Clean:    v&0x01 != 0,
		Spot:     v&0x02 != 0,
		Dock:     v&0x04 != 0,
		Minute:   v&0x08 != 0,
		Hour:     v&0x10 != 0,
		Day:      v&0x20 != 0,
		Schedule: v&0x40 != 0,
		Clock:    v&0x80 != 0,
	}
}

func parseChargeSources(v byte) ChargeSources {
	return ChargeSources{
		InternalCharger: v&0x01 != 0,
		HomeBase:        v&0x02 != 0,
	}
}

func parseLightBumper(v byte) LightBumper {
	return LightBumper{
		Left:        v&0x01 != 0,
		FrontLeft:   v&0x02 != 0,
		CenterLeft:  v&0x04 != 0,
		CenterRight: v&0x08 != 0,
		FrontRight:  v&0x10 != 0,
		Right:       v&0x20 != 0,
	}
}

func parseStasis(v byte) Stasis {
	return Stasis{
		Toggling: v&0x01 != 0,
		Disabled: v&0x02 != 0,
	}
}

func u16be(buf []byte, off int) uint16 {
	return binary.BigEndian.Uint16(buf[off : off+2])
}

func i16be(buf []byte, off int) int16 {
	return int16(binary.BigEndian.Uint16(buf[off : off+2]))
}

// decodeGroup100 decodes the 80-byte OI group 100 block. Multi-byte
// sensor values are big-endian, matching the OI serial stream.
func decodeGroup100(buf []byte) Sensors {
	return Sensors{
		Bumps:              parseBumps(buf[0]),
		Wall:               buf[1] != 0,
		CliffLeft:          buf[2] != 0,
		CliffFrontLeft:     buf[3] != 0,
		CliffFrontRight:    buf[4] != 0,
		CliffRight:         buf[5] != 0,
		VirtualWall:        buf[6] != 0,
		WheelOvercurrents:  parseWheelOvercurrents(buf[7]),
		DirtDetect:         buf[8],
		DirtDetectLeft:     buf[9],
		IROpcode:           buf[10],
		Buttons:            parseButtons(buf[11]),
		DistanceMm:         i16be(buf, 12),
		AngleDeg:           i16be(buf, 14),
		ChargingState:      ChargingState(buf[16]),
		VoltageMv:          u16be(buf, 17),
		CurrentMa:          i16be(buf, 19),
		TemperatureC:       int8(buf[21]),
		BatteryChargeMah:   u16be(buf, 22),
		BatteryCapacityMah: u16be(buf, 24),
		WallSignal:         u16be(buf, 26),
		CliffSignals: CliffSignals{
			Left:       u16be(buf, 28),
			FrontLeft:  u16be(buf, 30),
			FrontRight: u16be(buf, 32),
			Right:      u16be(buf, 34),
		},
		ChargingAvailable: parseChargeSources(buf[36]),
		ChargingSources:   parseChargeSources(buf[39]),
		OIMode:            OIMode(buf[40]),
		SongNumber:        buf[41],
		SongPlaying:       buf[42] != 0,
		StreamPackets:     buf[43],
		RequestedVelocity: i16be(buf, 44),
		RequestedRadius:   i16be(buf, 46),
		VelocityRight:     i16be(buf, 48),
		VelocityLeft:      i16be(buf, 50),
		EncoderCounts: EncoderCounts{
			Left:  u16be(buf, 52),
			Right: u16be(buf, 54),
		},
		LightBumper: parseLightBumper(buf[56]),
		LightBumpSignals: LightBumpSignals{
			Left:        u16be(buf, 57),
			FrontLeft:   u16be(buf, 59),
			CenterLeft:  u16be(buf, 61),
			CenterRight: u16be(buf, 63),
			FrontRight:  u16be(buf, 65),
			Right:       u16be(buf, 67),
		},
		IRLeft:  buf[69],
		IRRight: buf[70],
		MotorCurrents: MotorCurrents{
			Left:      i16be(buf, 71),
			Right:     i16be(buf, 73),
			MainBrush: i16be(buf, 75),
			SideBrush: i16be(buf, 77),
		},
		Stasis: parseStasis(buf[79]),
	}
}
