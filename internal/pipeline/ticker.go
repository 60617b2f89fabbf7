package pipeline

import "time"

// TickInterval is the fixed reveal period. One value for the lifetime of a
// session: 50ms (20 ticks per second) is coarse enough to batch rune
// appends and fine enough to read as live typing.
const TickInterval = 50 * time.Millisecond

const ticksPerSecond = int(time.Second / TickInterval)

// Reveal speed bounds in characters per second. Speed changes take effect
// on the next tick; already-revealed content is never reinterpreted.
const (
	MinSpeed     = 10
	MaxSpeed     = 100
	DefaultSpeed = 40
)

// charsPerTick converts a characters-per-second speed to the per-tick
// advance, never less than one rune so slow speeds still make progress.
func charsPerTick(speed int) int {
	n := speed / ticksPerSecond
	if n < 1 {
		return 1
	}
	return n
}

// clampSpeed bounds a requested speed to the supported range. Zero means
// the default.
func clampSpeed(speed int) int {
	if speed == 0 {
		return DefaultSpeed
	}
	if speed < MinSpeed {
		return MinSpeed
	}
	if speed > MaxSpeed {
		return MaxSpeed
	}
	return speed
}
