// Package battery watches sensor updates and keeps depleted rovers on
// their dock: a rover that hit its warn threshold is auto-locked once it
// is docked and charging, and released only after it has sat in the
// charger's waiting state long enough to hold a real charge.
package battery

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/legop3/MultiRoombaRover-sub000/internal/codec"
	"github.com/legop3/MultiRoombaRover-sub000/internal/events"
	"github.com/legop3/MultiRoombaRover-sub000/pkg/types"
)

// LockReason marks locks placed by this supervisor; operator locks with
// any other reason are never touched.
const LockReason = "battery"

// waitingUnlockAfter is how long the charger must report the waiting
// state before an auto-locked rover is released.
const waitingUnlockAfter = 5 * time.Minute

// Locker is the slice of the fleet the supervisor needs.
type Locker interface {
	LockSync(roverID string, locked bool, reason, clientID string) error
}

type deviceState struct {
	warned        bool
	urgent        bool
	onDock        bool
	charging      bool
	batteryLocked bool
	waitingSince  time.Time
}

type Supervisor struct {
	locker Locker
	bus    *events.Bus
	logger *zap.Logger
	states map[string]*deviceState
	now    func() time.Time
}

func NewSupervisor(locker Locker, bus *events.Bus, logger *zap.Logger) *Supervisor {
	return &Supervisor{
		locker: locker,
		bus:    bus,
		logger: logger.Named("battery"),
		states: make(map[string]*deviceState),
		now:    time.Now,
	}
}

// Run consumes sensor updates until ctx is done.
func (s *Supervisor) Run(ctx context.Context) error {
	sub, cancel := s.bus.Subscribe(64)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub:
			if !ok {
				return nil
			}
			if update, isSensor := ev.(events.SensorUpdate); isSensor {
				s.handle(update)
			}
		}
	}
}

func (s *Supervisor) handle(update events.SensorUpdate) {
	if update.Sensors == nil || update.Battery == nil {
		return
	}
	st, ok := s.states[update.DeviceID]
	if !ok {
		st = &deviceState{}
		s.states[update.DeviceID] = st
	}

	sensors := update.Sensors
	cfg := update.Battery
	charge := int(sensors.BatteryChargeMah)
	percent := chargePercent(sensors)
	// a lock placed by an operator for another reason is off limits
	lockable := !update.Locked || update.LockReason == LockReason

	if !st.warned && cfg.Warn > 0 && charge <= cfg.Warn {
		st.warned = true
		s.logger.Info("battery low", zap.String("rover", update.DeviceID), zap.Int("chargeMah", charge))
		s.bus.Publish(events.BatteryWarn{DeviceID: update.DeviceID, Percent: percent})
	}
	if !st.urgent && cfg.Urgent > 0 && charge <= cfg.Urgent {
		st.urgent = true
		s.logger.Warn("battery critical", zap.String("rover", update.DeviceID), zap.Int("chargeMah", charge))
		s.bus.Publish(events.BatteryUrgent{DeviceID: update.DeviceID, Percent: percent})
	}

	onDock := sensors.ChargingSources.HomeBase
	if onDock != st.onDock {
		st.onDock = onDock
		s.bus.Publish(events.BatteryDocked{DeviceID: update.DeviceID, Docked: onDock})
	}
	st.charging = isCharging(sensors.ChargingState)

	if sensors.ChargingState == codec.ChargingWaiting {
		if st.waitingSince.IsZero() {
			st.waitingSince = s.now()
		}
	} else {
		st.waitingSince = time.Time{}
	}
	waitedLongEnough := !st.waitingSince.IsZero() && s.now().Sub(st.waitingSince) >= waitingUnlockAfter

	full := (cfg.Full > 0 && charge >= cfg.Full) || percent >= 99
	dockedCharging := onDock && st.charging

	if dockedCharging && lockable && st.warned && !st.batteryLocked && !full && !waitedLongEnough {
		s.logger.Info("locking rover to charge", zap.String("rover", update.DeviceID))
		if err := s.locker.LockSync(update.DeviceID, true, LockReason, ""); err != nil {
			s.logger.Warn("charge lock failed", zap.String("rover", update.DeviceID), zap.Error(err))
			return
		}
		st.batteryLocked = true
	}

	if st.batteryLocked && waitedLongEnough && waitingPercent(charge, cfg) >= 0.5 {
		s.logger.Info("unlocking rover after charge",
			zap.String("rover", update.DeviceID), zap.Int("chargeMah", charge))
		if err := s.locker.LockSync(update.DeviceID, false, "", ""); err != nil {
			s.logger.Warn("charge unlock failed", zap.String("rover", update.DeviceID), zap.Error(err))
			return
		}
		st.batteryLocked = false
		st.warned = false
		st.urgent = false
		st.waitingSince = time.Time{}
	}
}

func isCharging(state codec.ChargingState) bool {
	switch state {
	case codec.ChargingFull, codec.ChargingTrickle, codec.ChargingWaiting:
		return true
	}
	return false
}

// waitingPercent measures recovery across the warn-to-full band, so a
// rover is released halfway back to full rather than at a raw capacity
// fraction.
func waitingPercent(charge int, cfg *types.BatteryConfig) float64 {
	if cfg.Full > cfg.Warn && cfg.Warn >= 0 {
		p := float64(charge-cfg.Warn) / float64(cfg.Full-cfg.Warn)
		if p < 0 {
			return 0
		}
		if p > 1 {
			return 1
		}
		return p
	}
	return 0
}

func chargePercent(s *codec.Sensors) float64 {
	if s.BatteryCapacityMah == 0 {
		return 0
	}
	return float64(s.BatteryChargeMah) / float64(s.BatteryCapacityMah) * 100
}
