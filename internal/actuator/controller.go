package actuator

import (
	"errors"
	"math"
	"sync"

	"github.com/Speshl/gorrc_tracker/internal/models"
	"github.com/rs/zerolog"
)

// DerivativeGain is carried for the pan loop but not applied, pan tracking is proportional only.
const DerivativeGain = 0.8

var ErrNoCommand = errors.New("no command available")

// State is a copy of the controller's pwm state.
type State struct {
	Pan          float64
	LastPan      float64
	Steering     float64
	Throttle     float64
	LastTargetX  float64
	PanIncrement float64
}

// Controller turns target positions into pan, steering and throttle pwm values.
// All methods are safe for concurrent use.
type Controller struct {
	lock   sync.RWMutex
	ranges Ranges
	state  State

	derivativeGain float64

	throttlePolicy  ThrottlePolicy
	obstacleAvoider ObstacleAvoider
	logger          zerolog.Logger
}

// NewController creates a controller with every channel at center/neutral.
// A nil policy keeps the throttle neutral, a nil avoider never overrides steering.
func NewController(ranges Ranges, policy ThrottlePolicy, avoider ObstacleAvoider, logger zerolog.Logger) *Controller {
	if policy == nil {
		policy = NeutralThrottle{}
	}
	if avoider == nil {
		avoider = NoObstacleAvoidance{}
	}

	return &Controller{
		ranges: ranges,
		state: State{
			Pan:      ranges.Pan.Center,
			LastPan:  ranges.Pan.Center,
			Steering: ranges.Steering.Center,
			Throttle: ranges.Throttle.Neutral,
		},
		derivativeGain:  DerivativeGain,
		throttlePolicy:  policy,
		obstacleAvoider: avoider,
		logger:          logger.With().Str("component", "actuator").Logger(),
	}
}

func (c *Controller) Ranges() Ranges {
	return c.ranges
}

func (c *Controller) State() State {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.state
}

func (c *Controller) IsReversing() bool {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.isReversing()
}

func (c *Controller) isReversing() bool {
	return c.state.Throttle == c.ranges.Throttle.Reverse
}

// UpdateTargetPWM runs one control step for a visible target.
func (c *Controller) UpdateTargetPWM(screenCenter, targetCenter models.Point, forwardBoundaryPercent, reverseBoundaryPercent float64) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.updatePanPwm(screenCenter, targetCenter)

	zone := ClassifyThrottleZone(screenCenter, targetCenter, forwardBoundaryPercent, reverseBoundaryPercent)
	c.state.Throttle = c.throttlePolicy.Throttle(zone, c.ranges.Throttle)

	steering, override := c.obstacleAvoider.Avoid(c.state, c.ranges)
	if override {
		c.state.Steering = Constrain(steering, c.ranges.Steering.Min, c.ranges.Steering.Max)
	} else {
		c.state.Steering = c.ranges.PanToSteering(c.state.Pan, c.isReversing())
	}

	c.logger.Trace().
		Float64("pan", c.state.Pan).
		Float64("steering", c.state.Steering).
		Float64("throttle", c.state.Throttle).
		Str("zone", zone.String()).
		Msg("updated target pwm")
}

func (c *Controller) updatePanPwm(screenCenter, targetCenter models.Point) {
	setpointX := screenCenter.X - targetCenter.X
	setpointY := math.Abs(screenCenter.Y - targetCenter.Y)

	midScreenBoundary := float64(MidScreenBoundary(screenCenter.X))

	if (setpointX < -midScreenBoundary || setpointX > midScreenBoundary) && targetCenter.X > 0 {
		if c.state.LastTargetX != targetCenter.X {
			// atan2 keeps a target level with the screen center at +-90 degrees instead of dividing by zero
			angleDeg := math.Atan2(setpointX, setpointY) * 180 / math.Pi
			increment := angleDeg * c.ranges.PWMPerDegree()
			if isFinite(increment) {
				c.state.PanIncrement = increment
				c.state.LastPan = c.state.Pan
				c.state.Pan -= increment
			} else {
				c.logger.Warn().Float64("setpoint_x", setpointX).Float64("setpoint_y", setpointY).Msg("skipping non-finite pan increment")
			}
		}

		c.state.LastPan = c.state.Pan
		c.state.Pan = Constrain(c.state.Pan, c.ranges.Pan.Min, c.ranges.Pan.Max)
		c.state.LastTargetX = targetCenter.X
	}
}

func (c *Controller) Reset() {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.state.Pan = c.ranges.Pan.Center
	c.state.Steering = c.ranges.Steering.Center
	c.state.Throttle = c.ranges.Throttle.Neutral
}

func (c *Controller) Command() (models.PWMCommand, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return buildCommand(c.state.Pan, c.state.Steering, c.state.Throttle)
}

// NeutralCommand keeps the current pan and steering but forces the throttle to neutral.
func (c *Controller) NeutralCommand() (models.PWMCommand, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return buildCommand(c.state.Pan, c.state.Steering, c.ranges.Throttle.Neutral)
}

func (c *Controller) CommandJSON() (string, error) {
	cmd, err := c.Command()
	if err != nil {
		return "", err
	}
	return encodeCommand(cmd)
}

func (c *Controller) NeutralCommandJSON() (string, error) {
	cmd, err := c.NeutralCommand()
	if err != nil {
		return "", err
	}
	return encodeCommand(cmd)
}

// CommandSnapshot is one consistent read of what the sender needs for a frame.
type CommandSnapshot struct {
	Payload        string
	NeutralPayload string
	Reversing      bool
}

// Snapshot encodes the command, its neutral counterpart and the reversing flag under one lock.
func (c *Controller) Snapshot() (CommandSnapshot, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	cmd, err := buildCommand(c.state.Pan, c.state.Steering, c.state.Throttle)
	if err != nil {
		return CommandSnapshot{}, err
	}
	payload, err := encodeCommand(cmd)
	if err != nil {
		return CommandSnapshot{}, err
	}

	neutralCmd, err := buildCommand(c.state.Pan, c.state.Steering, c.ranges.Throttle.Neutral)
	if err != nil {
		return CommandSnapshot{}, err
	}
	neutralPayload, err := encodeCommand(neutralCmd)
	if err != nil {
		return CommandSnapshot{}, err
	}

	return CommandSnapshot{
		Payload:        payload,
		NeutralPayload: neutralPayload,
		Reversing:      c.isReversing(),
	}, nil
}

func buildCommand(pan, steering, throttle float64) (models.PWMCommand, error) {
	if !isFinite(pan) || !isFinite(steering) || !isFinite(throttle) {
		return models.PWMCommand{}, ErrNoCommand
	}

	return models.PWMCommand{
		Pan:      int(pan),
		Steering: int(steering),
		Throttle: int(throttle),
	}, nil
}

func encodeCommand(cmd models.PWMCommand) (string, error) {
	data, err := cmd.Encode()
	if err != nil {
		return "", errors.Join(ErrNoCommand, err)
	}
	return string(data), nil
}

func isFinite(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0)
}
