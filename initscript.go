package st7789

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// State is a stage of the power-on sequence.
type State uint8

// Power-on states, in the order the init script walks through them.
const (
	StateAttach State = iota
	StateResetHigh
	StateResetLow
	StateResetHighSettle
	StateSoftReset
	StateSleepOut
	StateColorModeSet
	StateOrientationSet
	StateWindowArmed
	StateDisplayInverted
	StateNormalMode
	StateDisplayOn
)

var stateNames = [...]string{
	StateAttach:          "ATTACH",
	StateResetHigh:       "RESET_HIGH",
	StateResetLow:        "RESET_LOW",
	StateResetHighSettle: "RESET_HIGH_SETTLE",
	StateSoftReset:       "SOFT_RESET",
	StateSleepOut:        "SLEEP_OUT",
	StateColorModeSet:    "COLOR_MODE_SET",
	StateOrientationSet:  "ORIENTATION_SET",
	StateWindowArmed:     "WINDOW_ARMED",
	StateDisplayInverted: "DISPLAY_INVERTED",
	StateNormalMode:      "NORMAL_MODE",
	StateDisplayOn:       "DISPLAY_ON",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Op is the kind of an init script step.
type Op uint8

const (
	// OpReset drives the reset line: Arg 0 is low, anything else high.
	OpReset Op = iota
	// OpCommand sends Arg as a command byte.
	OpCommand
	// OpData sends Arg as a data byte.
	OpData
	// OpWindow addresses the full frame.
	OpWindow
)

// Step is one entry of an init script.
type Step struct {
	Op    Op
	Arg   byte
	Pause time.Duration // Minimum delay before the next step
	State State         // State reached once the step completed
}

// InitScript returns the power-on sequence that takes the panel from reset
// to displaying. madctl is the memory access control byte (0x00 for the
// default orientation).
func InitScript(madctl byte) []Step {
	return []Step{
		{Op: OpReset, Arg: 1, Pause: 50 * time.Millisecond, State: StateResetHigh},
		{Op: OpReset, Arg: 0, Pause: 50 * time.Millisecond, State: StateResetLow},
		{Op: OpReset, Arg: 1, Pause: 150 * time.Millisecond, State: StateResetHighSettle},
		{Op: OpCommand, Arg: swReset, Pause: 150 * time.Millisecond, State: StateSoftReset},
		{Op: OpCommand, Arg: sleepOut, Pause: 255 * time.Millisecond, State: StateSleepOut},
		{Op: OpCommand, Arg: colorMode, State: StateSleepOut},
		{Op: OpData, Arg: colorMode16, State: StateColorModeSet},
		{Op: OpCommand, Arg: memAccess, State: StateColorModeSet},
		{Op: OpData, Arg: madctl, State: StateOrientationSet},
		{Op: OpWindow, State: StateWindowArmed},
		// This panel shows inverted colors unless INVON is set.
		{Op: OpCommand, Arg: invertOn, State: StateDisplayInverted},
		{Op: OpCommand, Arg: normalOn, State: StateNormalMode},
		{Op: OpCommand, Arg: displayOn, State: StateDisplayOn},
	}
}

// runScript executes steps in order and stops at the first failure.
func (d *Dev) runScript(steps []Step) error {
	for i, s := range steps {
		if err := d.runStep(s); err != nil {
			return fmt.Errorf("st7789: init step %d (%s): %w", i, s.State, err)
		}
		if s.Pause > 0 {
			d.sleep(s.Pause)
		}
		d.log.Debug("st7789: init", "step", i, "state", s.State)
	}
	return nil
}

func (d *Dev) runStep(s Step) error {
	switch s.Op {
	case OpReset:
		l := gpio.Level(s.Arg != 0)
		if err := d.rst.Out(l); err != nil {
			return fmt.Errorf("%w: reset %s: %w", ErrTransport, l, err)
		}
		return nil
	case OpCommand:
		return d.ch.writeCommand(s.Arg)
	case OpData:
		return d.ch.writeData(s.Arg)
	case OpWindow:
		return d.ch.setWindow(0, 0, Width, Height)
	default:
		return fmt.Errorf("st7789: unknown init op %d", s.Op)
	}
}
