package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Speshl/gorrc_tracker/internal/actuator"
	"github.com/Speshl/gorrc_tracker/internal/command"
	"github.com/Speshl/gorrc_tracker/internal/command/pca9685"
	pipwm "github.com/Speshl/gorrc_tracker/internal/command/pi_pwm"
	"github.com/Speshl/gorrc_tracker/internal/command/serial"
	"github.com/Speshl/gorrc_tracker/internal/config"
	"github.com/Speshl/gorrc_tracker/internal/intake"
	"github.com/Speshl/gorrc_tracker/internal/models"
	"github.com/Speshl/gorrc_tracker/internal/vehicle"
	"github.com/Speshl/gorrc_tracker/internal/vehicle/follower"
	"github.com/google/uuid"
	socketio "github.com/googollee/go-socket.io"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const FrameBufferSize = 100

type App struct {
	cfg       config.Config
	logger    zerolog.Logger
	sessionId uuid.UUID
	now       func() time.Time

	client *socketio.Client
	input  io.Reader

	lock    sync.RWMutex
	carInfo models.Car

	frames   chan models.Observation
	car      vehicle.Vehicle
	follower *follower.Follower
}

// NewDriver picks the command driver named by command.driver.
func NewDriver(cfg config.CommandConfig, logger zerolog.Logger) (command.Driver, error) {
	switch cfg.CommandDriver {
	case command.DriverSerial:
		return serial.NewCommand(cfg.SerialCfg, logger), nil
	case command.DriverPCA9685:
		return pca9685.NewCommand(cfg, logger), nil
	case command.DriverPiPWM:
		return pipwm.NewCommand(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported command driver: %s", cfg.CommandDriver)
	}
}

func NewThrottlePolicy(cfg config.TrackerConfig) actuator.ThrottlePolicy {
	if cfg.EngageThrottle {
		return actuator.EngagedThrottle{}
	}
	return actuator.NeutralThrottle{}
}

// NewApp wires the tracker. client is nil unless observations come over socket.io,
// input is read for observations when the stdin input is selected.
func NewApp(cfg config.Config, logger zerolog.Logger, client *socketio.Client, input io.Reader) (*App, error) {
	driver, err := NewDriver(cfg.CommandCfg, logger)
	if err != nil {
		return nil, err
	}
	return NewAppWithDriver(cfg, logger, client, input, driver), nil
}

func NewAppWithDriver(cfg config.Config, logger zerolog.Logger, client *socketio.Client, input io.Reader, driver command.Driver) *App {
	sessionId := uuid.New()
	logger = logger.With().Str("session_id", sessionId.String()).Logger()

	frames := make(chan models.Observation, FrameBufferSize)
	controller := actuator.NewController(cfg.PWMCfg, NewThrottlePolicy(cfg.TrackerCfg), nil, logger)

	car := follower.NewFollower(cfg.TrackerCfg, frames, controller, driver, logger)
	return &App{
		cfg:       cfg,
		logger:    logger,
		sessionId: sessionId,
		now:       time.Now,
		client:    client,
		input:     input,
		frames:    frames,
		car:       car,
		follower:  car,
	}
}

func (a *App) RegisterHandlers() error {
	if a.client == nil {
		return nil
	}

	a.logger.Info().Msg("registering handlers")
	a.client.OnEvent("reply", a.onReply)
	a.client.OnEvent("observation", a.onObservation)
	a.client.OnEvent("register_success", a.onRegisterSuccess)

	a.logger.Info().Str("server", a.cfg.ServerCfg.Server).Msg("attempting to connect to server")
	err := a.client.Connect() //Client must have atleast 1 event handler to work
	if err != nil {
		return fmt.Errorf("error connecting to server - %w", err)
	}
	a.logger.Info().Msg("connected to server")
	return nil
}

func (a *App) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.logger.Info().Msg("starting...")
	err := a.car.Init()
	if err != nil {
		return fmt.Errorf("failed initializing follower: %w", err)
	}

	defer func() {
		a.logger.Info().Msg("stopping...")
		err := a.car.Stop()
		if err != nil {
			a.logger.Error().Err(err).Msg("failed stopping follower")
		}
		if a.client != nil {
			a.client.Close()
		}
	}()

	group, groupCtx := errgroup.WithContext(ctx)

	//kill listener
	group.Go(func() error {
		signalChannel := make(chan os.Signal, 1)
		signal.Notify(signalChannel, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(signalChannel)
		select {
		case sig := <-signalChannel:
			a.logger.Info().Str("signal", sig.String()).Msg("received signal")
			cancel()
			return fmt.Errorf("received signal %s: %w", sig, context.Canceled)
		case <-groupCtx.Done():
			a.logger.Debug().Msg("closing signal goroutine")
			return groupCtx.Err()
		}
	})

	//Start car
	group.Go(func() error {
		return a.car.Start(groupCtx)
	})

	if a.cfg.ServerCfg.Input == config.InputStdin && a.input != nil {
		// a blocked read cannot be interrupted, so the reader stays outside the group
		go func() {
			err := intake.NewReaderSource(a.logger).Run(groupCtx, a.input, a.frames)
			if err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error().Err(err).Msg("observation reader stopped")
			}
		}()
	}

	//Send connect and send healthchecks
	group.Go(func() error {
		if a.client != nil {
			encodedMsg, err := encode(models.ConnectReq{
				Key:       a.cfg.ServerCfg.Key,
				Password:  a.cfg.ServerCfg.Password,
				SessionId: a.sessionId,
			})
			if err != nil {
				return err
			}
			a.client.Emit("car_connect", encodedMsg)
		}

		interval := a.cfg.ServerCfg.HealthInterval
		if interval <= 0 {
			interval = config.DefaultHealthInterval
		}
		healthTicker := time.NewTicker(interval)
		defer healthTicker.Stop()

		for {
			select {
			case <-groupCtx.Done():
				a.logger.Debug().Msg("health checker stopped")
				return groupCtx.Err()
			case <-healthTicker.C:
				a.reportHealth()
			}
		}
	})

	err = group.Wait()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			a.logger.Info().Msg("context was cancelled")
			return nil
		} else if errors.Is(err, vehicle.ErrFeedClosed) {
			a.logger.Info().Msg("observation feed ended")
			return nil
		} else {
			return fmt.Errorf("tracker stopping due to error - %w", err)
		}
	}

	a.logger.Info().Msg("shutting down")
	return nil
}
