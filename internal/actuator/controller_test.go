package actuator

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/Speshl/gorrc_tracker/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	forwardBoundary = -0.15
	reverseBoundary = 0.30
)

var screenCenter352 = models.Point{X: 176, Y: 144}

func newTestController(policy ThrottlePolicy) *Controller {
	return NewController(DefaultRanges(), policy, nil, zerolog.Nop())
}

func TestNewController_StartsCentered(t *testing.T) {
	c := newTestController(nil)

	cmd, err := c.Command()
	require.NoError(t, err)
	assert.Equal(t, models.PWMCommand{Pan: 1680, Steering: 1640, Throttle: 1490}, cmd)
	assert.False(t, c.IsReversing())
}

func TestUpdateTargetPWM_CenteredTarget(t *testing.T) {
	c := newTestController(nil)

	c.UpdateTargetPWM(screenCenter352, models.Point{X: 176, Y: 144}, forwardBoundary, reverseBoundary)

	state := c.State()
	assert.Equal(t, 1680.0, state.Pan)
	assert.Equal(t, 1490.0, state.Throttle)
	assert.InDelta(t, 1659.43, state.Steering, 0.01)

	cmd, err := c.Command()
	require.NoError(t, err)
	assert.Equal(t, models.PWMCommand{Pan: 1680, Steering: 1659, Throttle: 1490}, cmd)
}

func TestUpdateTargetPWM_PanStep(t *testing.T) {
	c := newTestController(nil)

	// 100px left and 100px above center is a 45 degree error
	c.UpdateTargetPWM(screenCenter352, models.Point{X: 76, Y: 44}, forwardBoundary, reverseBoundary)

	state := c.State()
	assert.InDelta(t, 1305.0, state.Pan, 1e-9)
	assert.InDelta(t, 375.0, state.PanIncrement, 1e-9)
	assert.Equal(t, state.Pan, state.LastPan)
	assert.Equal(t, 76.0, state.LastTargetX)

	cmd, err := c.Command()
	require.NoError(t, err)
	assert.Equal(t, models.PWMCommand{Pan: 1305, Steering: 1354, Throttle: 1490}, cmd)
}

func TestUpdateTargetPWM_PanStepRight(t *testing.T) {
	c := newTestController(nil)

	c.UpdateTargetPWM(screenCenter352, models.Point{X: 276, Y: 44}, forwardBoundary, reverseBoundary)

	assert.InDelta(t, 2055.0, c.State().Pan, 1e-9)
}

func TestUpdateTargetPWM_DeadZoneHold(t *testing.T) {
	tests := []struct {
		name   string
		target models.Point
	}{
		{"centered", models.Point{X: 176, Y: 144}},
		{"left edge of dead zone", models.Point{X: 156, Y: 10}},
		{"right edge of dead zone", models.Point{X: 196, Y: 280}},
		{"inside dead zone level with center", models.Point{X: 186, Y: 144}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestController(nil)
			c.UpdateTargetPWM(screenCenter352, models.Point{X: 76, Y: 44}, forwardBoundary, reverseBoundary)
			before := c.State().Pan

			c.UpdateTargetPWM(screenCenter352, tt.target, forwardBoundary, reverseBoundary)

			assert.Equal(t, before, c.State().Pan)
		})
	}
}

func TestUpdateTargetPWM_NonPositiveTargetXHolds(t *testing.T) {
	c := newTestController(nil)

	c.UpdateTargetPWM(screenCenter352, models.Point{X: 0, Y: 44}, forwardBoundary, reverseBoundary)
	assert.Equal(t, 1680.0, c.State().Pan)

	c.UpdateTargetPWM(screenCenter352, models.Point{X: -1, Y: -1}, forwardBoundary, reverseBoundary)
	assert.Equal(t, 1680.0, c.State().Pan)
}

func TestUpdateTargetPWM_EdgeTriggerSuppression(t *testing.T) {
	c := newTestController(nil)
	target := models.Point{X: 60, Y: 100}

	c.UpdateTargetPWM(screenCenter352, target, forwardBoundary, reverseBoundary)
	first := c.State()

	target.Y = 20
	c.UpdateTargetPWM(screenCenter352, target, forwardBoundary, reverseBoundary)
	second := c.State()

	assert.Equal(t, first.Pan, second.Pan)
	assert.Equal(t, first.PanIncrement, second.PanIncrement)
}

func TestUpdateTargetPWM_LevelWithCenter(t *testing.T) {
	c := newTestController(nil)

	c.UpdateTargetPWM(screenCenter352, models.Point{X: 76, Y: 144}, forwardBoundary, reverseBoundary)

	state := c.State()
	assert.InDelta(t, 750.0, state.PanIncrement, 1e-9)
	assert.InDelta(t, 930.0, state.Pan, 1e-9)
	assert.False(t, math.IsNaN(state.Steering))
}

func TestUpdateTargetPWM_PanClamped(t *testing.T) {
	c := newTestController(nil)

	c.UpdateTargetPWM(screenCenter352, models.Point{X: 10, Y: 144}, forwardBoundary, reverseBoundary)
	c.UpdateTargetPWM(screenCenter352, models.Point{X: 11, Y: 144}, forwardBoundary, reverseBoundary)

	assert.Equal(t, 900.0, c.State().Pan)
}

func TestUpdateTargetPWM_RangeInvariant(t *testing.T) {
	policies := []ThrottlePolicy{NeutralThrottle{}, EngagedThrottle{}}
	rng := rand.New(rand.NewSource(42))

	for _, policy := range policies {
		c := newTestController(policy)
		for i := 0; i < 5000; i++ {
			screen := models.Point{X: rng.Float64() * 1000, Y: rng.Float64() * 600}
			target := models.Point{X: rng.Float64()*2400 - 200, Y: rng.Float64()*1400 - 200}
			if i%7 == 0 {
				target.Y = screen.Y
			}
			c.UpdateTargetPWM(screen, target, rng.Float64()*2-1, rng.Float64()*2-1)

			state := c.State()
			require.GreaterOrEqual(t, state.Pan, 900.0)
			require.LessOrEqual(t, state.Pan, 2400.0)
			require.GreaterOrEqual(t, state.Steering, 1350.0)
			require.LessOrEqual(t, state.Steering, 1920.0)
			require.Contains(t, []float64{1370, 1490, 1560}, state.Throttle)
		}
	}
}

func TestUpdateTargetPWM_ThrottleStaysNeutral(t *testing.T) {
	c := newTestController(nil)

	for _, y := range []float64{0, 100, 200, 250, 288} {
		c.UpdateTargetPWM(screenCenter352, models.Point{X: 176, Y: y}, forwardBoundary, reverseBoundary)
		assert.Equal(t, 1490.0, c.State().Throttle)
		assert.False(t, c.IsReversing())
	}
}

func TestUpdateTargetPWM_EngagedThrottle(t *testing.T) {
	c := newTestController(EngagedThrottle{})

	c.UpdateTargetPWM(screenCenter352, models.Point{X: 176, Y: 100}, forwardBoundary, reverseBoundary)
	assert.Equal(t, 1560.0, c.State().Throttle)

	c.UpdateTargetPWM(screenCenter352, models.Point{X: 176, Y: 200}, forwardBoundary, reverseBoundary)
	assert.Equal(t, 1490.0, c.State().Throttle)

	c.UpdateTargetPWM(screenCenter352, models.Point{X: 176, Y: 260}, forwardBoundary, reverseBoundary)
	assert.Equal(t, 1370.0, c.State().Throttle)
	assert.True(t, c.IsReversing())
	assert.InDelta(t, 1610.57, c.State().Steering, 0.01)
}

func TestUpdateTargetPWM_SteeringInvertsWhileReversing(t *testing.T) {
	forward := newTestController(EngagedThrottle{})
	reverse := newTestController(EngagedThrottle{})

	// same vertical offset, one above (forward) and one below (reverse) the screen center
	forward.UpdateTargetPWM(screenCenter352, models.Point{X: 76, Y: 28}, forwardBoundary, reverseBoundary)
	reverse.UpdateTargetPWM(screenCenter352, models.Point{X: 76, Y: 260}, forwardBoundary, reverseBoundary)
	require.False(t, forward.IsReversing())
	require.True(t, reverse.IsReversing())
	require.Equal(t, forward.State().Pan, reverse.State().Pan)

	// pan moved left of center, so forward steering sits below center and reverse above
	assert.InDelta(t, 1382.82, forward.State().Steering, 0.01)
	assert.InDelta(t, 1887.18, reverse.State().Steering, 0.01)
}

type fixedAvoider struct {
	steering float64
}

func (f fixedAvoider) Avoid(state State, ranges Ranges) (float64, bool) {
	return f.steering, true
}

func TestUpdateTargetPWM_ObstacleOverride(t *testing.T) {
	c := NewController(DefaultRanges(), nil, fixedAvoider{steering: 1000}, zerolog.Nop())

	c.UpdateTargetPWM(screenCenter352, models.Point{X: 76, Y: 44}, forwardBoundary, reverseBoundary)

	assert.Equal(t, 1350.0, c.State().Steering)
	assert.InDelta(t, 1305.0, c.State().Pan, 1e-9)
}

func TestReset_Idempotent(t *testing.T) {
	c := newTestController(EngagedThrottle{})
	c.UpdateTargetPWM(screenCenter352, models.Point{X: 76, Y: 260}, forwardBoundary, reverseBoundary)

	c.Reset()
	once := c.State()
	c.Reset()
	twice := c.State()

	assert.Equal(t, once, twice)
	cmd, err := c.Command()
	require.NoError(t, err)
	assert.Equal(t, models.PWMCommand{Pan: 1680, Steering: 1640, Throttle: 1490}, cmd)
	assert.False(t, c.IsReversing())
}

func TestCommandJSON(t *testing.T) {
	c := newTestController(nil)

	payload, err := c.CommandJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"pan":1680,"steering":1640,"throttle":1490}`, payload)
}

func TestNeutralCommandJSON(t *testing.T) {
	c := newTestController(EngagedThrottle{})
	c.UpdateTargetPWM(screenCenter352, models.Point{X: 76, Y: 260}, forwardBoundary, reverseBoundary)

	payload, err := c.CommandJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"pan":1340,"steering":1887,"throttle":1370}`, payload)

	neutral, err := c.NeutralCommandJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"pan":1340,"steering":1887,"throttle":1490}`, neutral)
}

func TestCommand_Truncates(t *testing.T) {
	cmd, err := buildCommand(1659.99, 1350.5, 1490.9)
	require.NoError(t, err)
	assert.Equal(t, models.PWMCommand{Pan: 1659, Steering: 1350, Throttle: 1490}, cmd)
}

func TestCommand_NonFiniteState(t *testing.T) {
	c := newTestController(nil)
	c.state.Pan = math.NaN()

	_, err := c.Command()
	assert.True(t, errors.Is(err, ErrNoCommand))

	payload, err := c.CommandJSON()
	assert.ErrorIs(t, err, ErrNoCommand)
	assert.Empty(t, payload)

	c.state.Pan = 1680
	c.state.Steering = math.Inf(1)
	_, err = c.NeutralCommandJSON()
	assert.ErrorIs(t, err, ErrNoCommand)
}

func TestController_ConcurrentReads(t *testing.T) {
	c := newTestController(EngagedThrottle{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			c.IsReversing()
			_, _ = c.CommandJSON()
		}
	}()

	for i := 0; i < 1000; i++ {
		c.UpdateTargetPWM(screenCenter352, models.Point{X: float64(i%352 + 1), Y: float64(i % 288)}, forwardBoundary, reverseBoundary)
	}
	<-done
}

func TestSnapshot(t *testing.T) {
	c := newTestController(EngagedThrottle{})
	c.UpdateTargetPWM(screenCenter352, models.Point{X: 76, Y: 260}, forwardBoundary, reverseBoundary)

	snapshot, err := c.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, CommandSnapshot{
		Payload:        `{"pan":1340,"steering":1887,"throttle":1370}`,
		NeutralPayload: `{"pan":1340,"steering":1887,"throttle":1490}`,
		Reversing:      true,
	}, snapshot)

	c.state.Pan = math.NaN()
	_, err = c.Snapshot()
	assert.ErrorIs(t, err, ErrNoCommand)
}

func TestSnapshot_ConsistentUnderUpdates(t *testing.T) {
	c := newTestController(EngagedThrottle{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < 2000; i++ {
			y := 100.0
			if i%2 == 0 {
				y = 270
			}
			c.UpdateTargetPWM(screenCenter352, models.Point{X: float64(i%352 + 1), Y: y}, forwardBoundary, reverseBoundary)
		}
	}()

	for i := 0; i < 2000; i++ {
		snapshot, err := c.Snapshot()
		require.NoError(t, err)

		cmd, err := models.DecodePWMCommand([]byte(snapshot.Payload))
		require.NoError(t, err)
		neutral, err := models.DecodePWMCommand([]byte(snapshot.NeutralPayload))
		require.NoError(t, err)

		assert.Equal(t, cmd.Throttle == 1370, snapshot.Reversing)
		assert.Equal(t, cmd.Pan, neutral.Pan)
		assert.Equal(t, cmd.Steering, neutral.Steering)
		assert.Equal(t, 1490, neutral.Throttle)
	}
	<-done
}
