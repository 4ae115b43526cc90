package pca9685

import (
	"fmt"
	"sync"

	"github.com/Speshl/gorrc_tracker/internal/command"
	"github.com/Speshl/gorrc_tracker/internal/config"
	"github.com/googolgl/go-i2c"
	pca "github.com/googolgl/go-pca9685"
	"github.com/rs/zerolog"
)

const (
	MaxValue = 1.0
	MinValue = 0.0
	AcRange  = pca.ServoRangeDef

	MaxSupportedServos = 16
)

type fractionSetter interface {
	Fraction(val float32) error
}

// CommandDriver drives the pan, steering and throttle channels of a PCA9685 board.
type CommandDriver struct {
	cfg    config.CommandConfig
	logger zerolog.Logger

	lock   sync.Mutex
	servos map[string]Servo
}

type Servo struct {
	name     string
	inverted bool
	minPulse float64
	maxPulse float64
	servo    fractionSetter
}

func NewCommand(cfg config.CommandConfig, logger zerolog.Logger) *CommandDriver {
	return &CommandDriver{
		cfg:    cfg,
		logger: logger.With().Str("component", "pca9685").Logger(),
	}
}

func (c *CommandDriver) Init() error {
	bus, err := i2c.New(c.cfg.Address, c.cfg.I2CDevice)
	if err != nil {
		return fmt.Errorf("error starting i2c with address - %w", err)
	}

	driver, err := pca.New(bus, nil)
	if err != nil {
		return fmt.Errorf("error getting servo driver - %w", err)
	}

	servos := make(map[string]Servo, MaxSupportedServos)
	for i, servoCfg := range c.cfg.ServoCfgs {
		if i >= MaxSupportedServos {
			break
		}
		servos[servoCfg.Name] = Servo{
			name:     servoCfg.Name,
			inverted: servoCfg.Inverted,
			minPulse: servoCfg.MinPulse,
			maxPulse: servoCfg.MaxPulse,
			servo: driver.ServoNew(servoCfg.Channel, &pca.ServOptions{
				AcRange:  AcRange,
				MinPulse: float32(servoCfg.MinPulse),
				MaxPulse: float32(servoCfg.MaxPulse),
			}),
		}
		c.logger.Info().Str("servo", servoCfg.Name).Int("channel", servoCfg.Channel).Msg("servo added")
	}

	c.lock.Lock()
	c.servos = servos
	c.lock.Unlock()
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
		return fmt.Errorf("pca9685 not initialized")
	}

	for name, pulse := range values {
		err = c.set(name, pulse)
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *CommandDriver) set(name string, pulse float64) error {
	val, ok := c.servos[name]
	if !ok {
		return nil
	}

	mappedValue := command.MapToRange(pulse, val.minPulse, val.maxPulse, MinValue, MaxValue)
	if val.inverted {
		mappedValue = MaxValue - mappedValue
	}

	err := val.servo.Fraction(float32(mappedValue))
	if err != nil {
		return fmt.Errorf("failed setting servo value - name: %s value: %.2f - error: %w", name, mappedValue, err)
	}
	return nil
}

func (c *CommandDriver) Stop() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.servos = nil
	return nil
}
