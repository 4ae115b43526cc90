package pipwm

import (
	"fmt"
	"sync"

	"github.com/Speshl/gorrc_tracker/internal/command"
	"github.com/Speshl/gorrc_tracker/internal/config"
	"github.com/rs/zerolog"
	"github.com/stianeikeland/go-rpio/v4"
)

const (
	Frequency          = 100000
	CycleLength        = uint32(2000)
	MaxSupportedServos = 2

	// microseconds per pwm clock tick at Frequency
	MicrosPerTick = 1000000 / Frequency
)

type dutyCycler interface {
	DutyCycle(dutyLen, cycleLen uint32)
}

// CommandDriver drives servos straight from the Pi's hardware pwm pins.
// Only two channels are independent so at most two servos are driven.
type CommandDriver struct {
	cfg    config.CommandConfig
	logger zerolog.Logger

	lock   sync.Mutex
	servos map[string]Servo
}

type Servo struct {
	name     string
	inverted bool
	servo    dutyCycler
	maxValue float64
	minValue float64
}

func NewCommand(cfg config.CommandConfig, logger zerolog.Logger) *CommandDriver {
	return &CommandDriver{
		cfg:    cfg,
		logger: logger.With().Str("component", "pipwm").Logger(),
	}
}

func (c *CommandDriver) Init() error {
	err := rpio.Open()
	if err != nil {
		return fmt.Errorf("failed opening rpio: %w", err)
	}

	servos := make(map[string]Servo, MaxSupportedServos)
	for _, servoCfg := range c.cfg.ServoCfgs {
		if servoCfg.Pin == 0 {
			continue
		}
		if len(servos) >= MaxSupportedServos {
			c.logger.Warn().Str("servo", servoCfg.Name).Msg("no free pwm channel, servo ignored")
			continue
		}

		pin := rpio.Pin(servoCfg.Pin)
		pin.Mode(rpio.Pwm)
		pin.Freq(Frequency)

		servos[servoCfg.Name] = Servo{
			name:     servoCfg.Name,
			inverted: servoCfg.Inverted,
			servo:    pin,
			maxValue: servoCfg.MaxPulse,
			minValue: servoCfg.MinPulse,
		}
		c.logger.Info().Str("servo", servoCfg.Name).Int("pin", servoCfg.Pin).Msg("servo added")
	}

	c.lock.Lock()
	c.servos = servos
	c.lock.Unlock()
	return nil
}

func (c *CommandDriver) Stop() error {
	c.lock.Lock()
	c.servos = nil
	c.lock.Unlock()

	err := rpio.Close()
	if err != nil {
		return fmt.Errorf("failed closing rpio: %w", err)
	}
	return nil
}

func (c *CommandDriver) Write(payload []byte) error {
	values, err := command.DecodePayload(payload)
	if err != nil {
		return err
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	if c.servos == nil {
		return fmt.Errorf("rpio not initialized")
	}

	for name, pulse := range values {
		c.set(name, pulse)
	}
	return nil
}

func (c *CommandDriver) set(name string, pulse float64) {
	val, ok := c.servos[name]
	if !ok {
		return
	}
	val.servo.DutyCycle(PulseToDuty(pulse, val.minValue, val.maxValue, val.inverted), CycleLength)
}

// PulseToDuty clamps a pulse width into the servo's range and converts it to pwm ticks.
func PulseToDuty(pulse, minPulse, maxPulse float64, inverted bool) uint32 {
	mappedValue := command.MapToRange(pulse, minPulse, maxPulse, minPulse, maxPulse)
	if inverted {
		mappedValue = maxPulse + minPulse - mappedValue
	}
	return uint32(mappedValue / MicrosPerTick)
}
