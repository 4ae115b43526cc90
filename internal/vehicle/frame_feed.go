package vehicle

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Speshl/gorrc_tracker/internal/models"
	"github.com/rs/zerolog"
)

const DefaultFrameTimeout = 200 * time.Millisecond

var ErrFeedClosed = errors.New("observation feed closed")

// FrameFeed keeps the newest observation from the detector. When no
// observation arrives within the timeout the feed goes inactive and reports
// frames without a target until the detector comes back.
type FrameFeed struct {
	lock    sync.RWMutex
	frames  <-chan models.Observation
	timeout time.Duration
	logger  zerolog.Logger

	active        bool
	fresh         bool
	next          models.Observation
	lastFrameTime time.Time
}

// NewFrameFeed reports screenCenter on the no-target frames it produces before the first observation.
func NewFrameFeed(frames <-chan models.Observation, timeout time.Duration, screenCenter models.Point, logger zerolog.Logger) *FrameFeed {
	if timeout <= 0 {
		timeout = DefaultFrameTimeout
	}
	return &FrameFeed{
		frames:  frames,
		timeout: timeout,
		next:    models.Observation{ScreenCenter: screenCenter},
		logger:  logger.With().Str("component", "frame_feed").Logger(),
	}
}

func (f *FrameFeed) Start(ctx context.Context) error {
	f.logger.Info().Msg("starting frame feed")

	safetyTicker := time.NewTicker(f.timeout)
	defer safetyTicker.Stop()
	for {
		select {
		case <-ctx.Done():
			f.logger.Info().Err(ctx.Err()).Msg("stopping frame feed")
			return ctx.Err()
		case <-safetyTicker.C:
			f.lock.Lock()
			if f.active && time.Since(f.lastFrameTime) > f.timeout {
				f.logger.Warn().Msg("no observation within timeout, feed inactive")
				f.active = false
			}
			f.lock.Unlock()
		case observation, ok := <-f.frames:
			if !ok {
				return ErrFeedClosed
			}
			f.accept(observation)
		}
	}
}

func (f *FrameFeed) accept(observation models.Observation) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if observation.TimeStamp < f.next.TimeStamp {
		f.logger.Debug().Int64("time_stamp", observation.TimeStamp).Int64("newest", f.next.TimeStamp).Msg("dropping out of order observation")
		return
	}

	f.next = observation
	f.fresh = true
	f.lastFrameTime = time.Now()
	f.active = true
}

// Frame returns the newest observation once. While the feed is inactive every
// call returns an observation with no target.
func (f *FrameFeed) Frame() (models.Observation, bool) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if !f.active {
		return models.Observation{
			ScreenCenter: f.next.ScreenCenter,
			TimeStamp:    f.next.TimeStamp,
		}, true
	}

	if !f.fresh {
		return models.Observation{}, false
	}
	f.fresh = false
	return f.next, true
}

func (f *FrameFeed) Active() bool {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return f.active
}
