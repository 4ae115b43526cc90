package serial

import (
	"bufio"
	"fmt"
	"io"
	"sync"

	"github.com/Speshl/gorrc_tracker/internal/config"
	"github.com/rs/zerolog"
	"go.bug.st/serial"
)

type PortOpener func(name string, mode *serial.Mode) (io.ReadWriteCloser, error)

func openSerialPort(name string, mode *serial.Mode) (io.ReadWriteCloser, error) {
	return serial.Open(name, mode)
}

// CommandDriver writes pwm payloads to a microcontroller over a serial link.
type CommandDriver struct {
	cfg    config.SerialConfig
	logger zerolog.Logger
	open   PortOpener

	lock sync.Mutex
	port io.ReadWriteCloser
	done chan struct{}
}

func NewCommand(cfg config.SerialConfig, logger zerolog.Logger) *CommandDriver {
	return NewCommandWithOpener(cfg, logger, openSerialPort)
}

func NewCommandWithOpener(cfg config.SerialConfig, logger zerolog.Logger, open PortOpener) *CommandDriver {
	return &CommandDriver{
		cfg:    cfg,
		logger: logger.With().Str("component", "serial").Str("port", cfg.Port).Logger(),
		open:   open,
	}
}

func (c *CommandDriver) Init() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.port != nil {
		return nil
	}

	mode := &serial.Mode{
		BaudRate: c.cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := c.open(c.cfg.Port, mode)
	if err != nil {
		return fmt.Errorf("failed opening serial port %s: %w", c.cfg.Port, err)
	}
	c.port = port
	c.done = make(chan struct{})
	c.logger.Info().Int("baud", c.cfg.BaudRate).Msg("serial port open")

	go c.readLoop(port, c.done)
	return nil
}

func (c *CommandDriver) readLoop(port io.Reader, done chan struct{}) {
	defer close(done)

	scanner := bufio.NewScanner(port)
	for scanner.Scan() {
		c.logger.Debug().Str("data", scanner.Text()).Msg("received data from serial")
	}

	err := scanner.Err()
	if err != nil {
		c.logger.Debug().Err(err).Msg("serial reader stopped")
	}
}

func (c *CommandDriver) Write(payload []byte) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.port == nil {
		return fmt.Errorf("serial port %s not open", c.cfg.Port)
	}

	_, err := c.port.Write(payload)
	if err != nil {
		return fmt.Errorf("failed writing to serial port %s: %w", c.cfg.Port, err)
	}
	return nil
}

func (c *CommandDriver) Stop() error {
	c.lock.Lock()
	port := c.port
	done := c.done
	c.port = nil
	c.lock.Unlock()

	if port == nil {
		return nil
	}

	c.logger.Info().Msg("closing serial port")
	err := port.Close()
	if err != nil {
		return fmt.Errorf("failed closing serial port %s: %w", c.cfg.Port, err)
	}
	<-done
	return nil
}
