package follower

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Speshl/gorrc_tracker/internal/actuator"
	"github.com/Speshl/gorrc_tracker/internal/command"
	"github.com/Speshl/gorrc_tracker/internal/config"
	"github.com/Speshl/gorrc_tracker/internal/intake"
	"github.com/Speshl/gorrc_tracker/internal/models"
	"github.com/Speshl/gorrc_tracker/internal/vehicle"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const DefaultFrameInterval = 33 * time.Millisecond

var _ vehicle.Vehicle = (*Follower)(nil)

func NewFollower(cfg config.TrackerConfig, frames <-chan models.Observation, controller *actuator.Controller, driver command.Driver, logger zerolog.Logger) *Follower {
	logger = logger.With().Str("component", "follower").Logger()
	logger.Info().Int("width", cfg.Width).Int("height", cfg.Height).Msg("setting up follower")

	screenCenter := intake.ScreenCenter(cfg.Width, cfg.Height)
	return &Follower{
		cfg:          cfg,
		logger:       logger,
		screenCenter: screenCenter,
		feed:         vehicle.NewFrameFeed(frames, cfg.FrameTimeout, screenCenter, logger),
		controller:   controller,
		sender:       command.NewSender(driver, logger),
		driver:       driver,
	}
}

func (f *Follower) Init() error {
	err := f.driver.Init()
	if err != nil {
		return fmt.Errorf("failed initializing follower command interface: %w", err)
	}

	//Center up servos
	err = f.sender.Flush(context.Background(), f.controller)
	if err != nil {
		return fmt.Errorf("failed sending initial command: %w", err)
	}
	return nil
}

// Stop centers everything, writes the neutral command and releases the driver.
func (f *Follower) Stop() error {
	f.logger.Info().Msg("stopping follower")
	f.controller.Reset()

	var flushErr error
	err := f.sender.Flush(context.Background(), f.controller)
	if err != nil {
		flushErr = fmt.Errorf("failed sending stop command: %w", err)
	}

	err = f.driver.Stop()
	if err != nil {
		return errors.Join(flushErr, fmt.Errorf("failed stopping command driver: %w", err))
	}
	return flushErr
}

func (f *Follower) Start(ctx context.Context) error {
	f.logger.Info().Msg("starting follower")
	errGroup, errGroupCtx := errgroup.WithContext(ctx)

	errGroup.Go(func() error {
		return f.feed.Start(errGroupCtx)
	})

	errGroup.Go(func() error {
		interval := f.cfg.FrameInterval
		if interval <= 0 {
			interval = DefaultFrameInterval
		}

		frameTicker := time.NewTicker(interval)
		defer frameTicker.Stop()
		for {
			select {
			case <-errGroupCtx.Done():
				f.logger.Info().Err(errGroupCtx.Err()).Msg("stopping follower frame loop")
				return errGroupCtx.Err()
			case <-frameTicker.C:
				observation, ok := f.feed.Frame()
				if !ok {
					continue
				}

				// the sender retries a failed write on the next changed frame
				_, err := f.HandleFrame(errGroupCtx, observation)
				if err != nil {
					f.logger.Warn().Err(err).Msg("failed applying frame")
				}
			}
		}
	})

	err := errGroup.Wait()
	if err != nil {
		return fmt.Errorf("follower error group closed: %w", err)
	}
	return nil
}

// HandleFrame runs one observation through the controller and the sender and
// returns how many payloads were written. A missing screen center falls back
// to the center of the configured resolution.
func (f *Follower) HandleFrame(ctx context.Context, observation models.Observation) (int, error) {
	if observation.ScreenCenter == (models.Point{}) {
		observation.ScreenCenter = f.screenCenter
	}

	f.lock.Lock()
	f.frames++
	if observation.HasTarget() {
		f.lostFrames = 0
		f.controller.UpdateTargetPWM(observation.ScreenCenter, *observation.Target, f.cfg.ForwardBoundaryPercent, f.cfg.ReverseBoundaryPercent)
	} else {
		f.lostFrames++
		if f.lostFrames > f.cfg.MaxLostFrames {
			f.logger.Info().Int("lost_frames", f.lostFrames).Msg("target lost, resetting actuators")
			f.controller.Reset()
			f.lostFrames = 0
		}
	}
	f.lock.Unlock()

	return f.sender.Update(ctx, f.controller)
}

func (f *Follower) Status() Status {
	f.lock.RLock()
	defer f.lock.RUnlock()

	return Status{
		Frames:     f.frames,
		LostFrames: f.lostFrames,
		Reversing:  f.controller.IsReversing(),
		State:      f.controller.State(),
		Payload:    f.sender.LastPayload(),
	}
}
