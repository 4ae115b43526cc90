package actuator

import (
	"fmt"
)

const (
	DefaultPanMin           = 900
	DefaultPanMax           = 2400
	DefaultPanCenter        = 1680
	DefaultPanReducedFactor = 400

	DefaultSteeringMin    = 1350
	DefaultSteeringMax    = 1920
	DefaultSteeringCenter = 1640

	DefaultThrottleForward = 1560
	DefaultThrottleReverse = 1370
	DefaultThrottleNeutral = 1490

	// dead zone of 20 pixels calibrated at a 352 pixel wide frame
	deadZonePixels     = 20
	deadZoneFrameWidth = 352
)

type PanRange struct {
	Min           float64
	Max           float64
	Center        float64
	ReducedFactor float64
}

type SteeringRange struct {
	Min    float64
	Max    float64
	Center float64
}

type ThrottleLevels struct {
	Reverse float64
	Neutral float64
	Forward float64
}

// Ranges holds the calibrated PWM bounds of the servo/ESC rig.
type Ranges struct {
	Pan      PanRange
	Steering SteeringRange
	Throttle ThrottleLevels
}

func DefaultRanges() Ranges {
	return Ranges{
		Pan: PanRange{
			Min:           DefaultPanMin,
			Max:           DefaultPanMax,
			Center:        DefaultPanCenter,
			ReducedFactor: DefaultPanReducedFactor,
		},
		Steering: SteeringRange{
			Min:    DefaultSteeringMin,
			Max:    DefaultSteeringMax,
			Center: DefaultSteeringCenter,
		},
		Throttle: ThrottleLevels{
			Reverse: DefaultThrottleReverse,
			Neutral: DefaultThrottleNeutral,
			Forward: DefaultThrottleForward,
		},
	}
}

func (r Ranges) Validate() error {
	if !(r.Pan.Min < r.Pan.Center && r.Pan.Center < r.Pan.Max) {
		return fmt.Errorf("pan range invalid - min: %.0f center: %.0f max: %.0f", r.Pan.Min, r.Pan.Center, r.Pan.Max)
	}
	if !(r.Steering.Min < r.Steering.Center && r.Steering.Center < r.Steering.Max) {
		return fmt.Errorf("steering range invalid - min: %.0f center: %.0f max: %.0f", r.Steering.Min, r.Steering.Center, r.Steering.Max)
	}
	if !(r.Throttle.Reverse < r.Throttle.Neutral && r.Throttle.Neutral < r.Throttle.Forward) {
		return fmt.Errorf("throttle levels invalid - reverse: %.0f neutral: %.0f forward: %.0f", r.Throttle.Reverse, r.Throttle.Neutral, r.Throttle.Forward)
	}
	if r.Pan.ReducedFactor < 0 || r.PanRange() <= 0 {
		return fmt.Errorf("pan reduced factor %.0f leaves no usable pan range", r.Pan.ReducedFactor)
	}
	return nil
}

// PanRange is the usable pan span once the reduced factor is taken off both ends.
func (r Ranges) PanRange() float64 {
	return (r.Pan.Max - r.Pan.ReducedFactor) - (r.Pan.Min + r.Pan.ReducedFactor)
}

func (r Ranges) SteeringRange() float64 {
	return r.Steering.Max - r.Steering.Min
}

func (r Ranges) PWMPerDegree() float64 {
	return (r.Pan.Max - r.Pan.Min) / 180
}

// PanToSteering remaps a pan pwm into steering pwm space. While reversing the
// slope is negated so the car still turns towards the target.
func (r Ranges) PanToSteering(pan float64, reversing bool) float64 {
	slope := r.SteeringRange() / r.PanRange()

	var steering float64
	if !reversing {
		steering = slope*pan + (r.Steering.Max - (r.Pan.Max-r.Pan.ReducedFactor)*slope)
	} else {
		steering = -slope*pan + (r.Steering.Max - (r.Pan.Min+r.Pan.ReducedFactor)*-slope)
	}
	return Constrain(steering, r.Steering.Min, r.Steering.Max)
}

// MidScreenBoundary scales the pan dead zone to the active resolution.
func MidScreenBoundary(screenCenterX float64) int {
	return int(screenCenterX*2*deadZonePixels) / deadZoneFrameWidth
}

func Constrain(value, min, max float64) float64 {
	if value < min {
		return min
	} else if value > max {
		return max
	}
	return value
}
