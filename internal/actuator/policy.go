package actuator

import "github.com/Speshl/gorrc_tracker/internal/models"

type ThrottleZone int

const (
	ZoneInBand ThrottleZone = iota
	ZoneTooFar
	ZoneTooNear
)

func (z ThrottleZone) String() string {
	switch z {
	case ZoneTooFar:
		return "too_far"
	case ZoneTooNear:
		return "too_near"
	default:
		return "in_band"
	}
}

// ClassifyThrottleZone compares the target height against the forward and
// reverse boundaries, both expressed as fractions of the frame height.
func ClassifyThrottleZone(screenCenter, target models.Point, forwardBoundaryPercent, reverseBoundaryPercent float64) ThrottleZone {
	if target.Y < (screenCenter.Y - forwardBoundaryPercent*screenCenter.Y*2) {
		return ZoneTooFar
	} else if target.Y > (screenCenter.Y + reverseBoundaryPercent*screenCenter.Y*2) {
		return ZoneTooNear
	}
	return ZoneInBand
}

type ThrottlePolicy interface {
	Throttle(zone ThrottleZone, levels ThrottleLevels) float64
}

// NeutralThrottle keeps the motor in neutral for every zone. This is the
// shipped behaviour, forward and reverse engagement are locked out.
type NeutralThrottle struct{}

func (NeutralThrottle) Throttle(zone ThrottleZone, levels ThrottleLevels) float64 {
	switch zone {
	case ZoneTooFar:
		return levels.Neutral
	case ZoneTooNear:
		return levels.Neutral
	default:
		return levels.Neutral
	}
}

// EngagedThrottle drives forward towards a far target and reverses away from a near one.
type EngagedThrottle struct{}

func (EngagedThrottle) Throttle(zone ThrottleZone, levels ThrottleLevels) float64 {
	switch zone {
	case ZoneTooFar:
		return levels.Forward
	case ZoneTooNear:
		return levels.Reverse
	default:
		return levels.Neutral
	}
}

// ObstacleAvoider may override steering before the pan remap is applied.
// Returning false leaves steering to the pan remap.
type ObstacleAvoider interface {
	Avoid(state State, ranges Ranges) (steering float64, override bool)
}

// NoObstacleAvoidance is used when the rig has no proximity sensors.
type NoObstacleAvoidance struct{}

func (NoObstacleAvoidance) Avoid(state State, ranges Ranges) (float64, bool) {
	return state.Steering, false
}
