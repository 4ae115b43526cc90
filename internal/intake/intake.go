package intake

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/Speshl/gorrc_tracker/internal/models"
	"github.com/rs/zerolog"
)

// MaxLineSize bounds a single observation line.
const MaxLineSize = 64 * 1024

// NoTarget is the detector's marker for a frame without a target.
var NoTarget = models.Point{X: -1, Y: -1}

type observationMsg struct {
	ScreenCenter models.Point  `json:"screen_center"`
	Target       *models.Point `json:"target"`
	TimeStamp    int64         `json:"time_stamp"`
}

// Decode reads one JSON observation. A missing target or the (-1,-1) marker decode to no target.
func Decode(data []byte) (models.Observation, error) {
	msg := observationMsg{}
	err := json.Unmarshal(data, &msg)
	if err != nil {
		return models.Observation{}, fmt.Errorf("failed decoding observation: %w", err)
	}

	observation := models.Observation{
		ScreenCenter: msg.ScreenCenter,
		TimeStamp:    msg.TimeStamp,
	}
	if msg.Target != nil && *msg.Target != NoTarget {
		target := *msg.Target
		observation.Target = &target
	}
	return observation, nil
}

// ScreenCenter is the center of a frame at the given capture resolution.
func ScreenCenter(width, height int) models.Point {
	return models.Point{
		X: float64(width) / 2,
		Y: float64(height) / 2,
	}
}

// ReaderSource reads newline delimited observations, for example a detector piped into stdin.
type ReaderSource struct {
	logger zerolog.Logger
	now    func() time.Time
}

func NewReaderSource(logger zerolog.Logger) *ReaderSource {
	return &ReaderSource{
		logger: logger.With().Str("component", "intake").Logger(),
		now:    time.Now,
	}
}

// Run forwards decoded observations to out until the reader ends or ctx is done.
// It closes out when it returns.
func (s *ReaderSource) Run(ctx context.Context, r io.Reader, out chan<- models.Observation) error {
	defer close(out)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), MaxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		observation, err := Decode(line)
		if err != nil {
			s.logger.Warn().Err(err).Msg("skipping bad observation line")
			continue
		}
		if observation.TimeStamp == 0 {
			observation.TimeStamp = s.now().UnixMilli()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- observation:
		}
	}

	err := scanner.Err()
	if err != nil {
		return fmt.Errorf("failed reading observations: %w", err)
	}
	s.logger.Info().Msg("observation input closed")
	return nil
}
