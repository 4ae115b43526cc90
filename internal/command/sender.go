package command

import (
	"context"
	"fmt"
	"sync"

	"github.com/Speshl/gorrc_tracker/internal/actuator"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/Speshl/gorrc_tracker/internal/command"

// Source is what the sender reads a frame's commands from.
type Source interface {
	Snapshot() (actuator.CommandSnapshot, error)
}

// Sender writes a command only when it changed since the last successful
// write. On the first frame of a reversing episode it brackets the reverse
// command with a neutral one, which ESCs need before they accept reverse.
type Sender struct {
	lock   sync.Mutex
	driver Driver
	logger zerolog.Logger

	lastPayload      string
	reversingHandled bool

	writeCounter   metric.Int64Counter
	bracketCounter metric.Int64Counter
}

func NewSender(driver Driver, logger zerolog.Logger) *Sender {
	sender := &Sender{
		driver: driver,
		logger: logger.With().Str("component", "sender").Logger(),
	}

	meter := otel.Meter(meterName)
	var err error
	sender.writeCounter, err = meter.Int64Counter("tracker.command.writes", metric.WithDescription("pwm payloads written to the command driver"))
	if err != nil {
		sender.logger.Warn().Err(err).Msg("failed creating write counter")
	}
	sender.bracketCounter, err = meter.Int64Counter("tracker.command.reversal_brackets", metric.WithDescription("neutral brackets sent when entering reverse"))
	if err != nil {
		sender.logger.Warn().Err(err).Msg("failed creating reversal bracket counter")
	}
	return sender
}

// LastPayload returns the last payload written successfully.
func (s *Sender) LastPayload() string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.lastPayload
}

// Update applies the write protocol for one frame and returns how many payloads were written.
func (s *Sender) Update(ctx context.Context, src Source) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	snapshot, err := src.Snapshot()
	if err != nil {
		s.logger.Debug().Err(err).Msg("nothing to send this frame")
		return 0, nil
	}
	payload := snapshot.Payload

	if payload == s.lastPayload {
		return 0, nil
	}

	s.logger.Info().Msg("update actuator")

	if !snapshot.Reversing {
		err = s.write(ctx, payload)
		if err != nil {
			return 0, err
		}
		s.reversingHandled = false
		s.lastPayload = payload
		return 1, nil
	}

	err = s.write(ctx, payload)
	if err != nil {
		return 0, err
	}
	written := 1

	if !s.reversingHandled {
		err = s.write(ctx, snapshot.NeutralPayload)
		if err != nil {
			return written, err
		}
		written++

		err = s.write(ctx, payload)
		if err != nil {
			return written, err
		}
		written++

		s.reversingHandled = true
		s.add(ctx, s.bracketCounter)
	}

	s.lastPayload = payload
	return written, nil
}

// Flush writes the current command regardless of change detection.
func (s *Sender) Flush(ctx context.Context, src Source) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	snapshot, err := src.Snapshot()
	if err != nil {
		return fmt.Errorf("failed flushing command: %w", err)
	}

	err = s.write(ctx, snapshot.Payload)
	if err != nil {
		return err
	}

	if !snapshot.Reversing {
		s.reversingHandled = false
	}
	s.lastPayload = snapshot.Payload
	return nil
}

func (s *Sender) write(ctx context.Context, payload string) error {
	s.logger.Info().Str("payload", payload).Msg("sending pwm values")

	err := s.driver.Write([]byte(payload))
	if err != nil {
		return fmt.Errorf("failed writing pwm values: %w", err)
	}
	s.add(ctx, s.writeCounter)
	return nil
}

func (s *Sender) add(ctx context.Context, counter metric.Int64Counter) {
	if counter != nil {
		counter.Add(ctx, 1)
	}
}
