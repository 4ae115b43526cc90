package app

import (
	"fmt"

	"github.com/Speshl/gorrc_tracker/internal/models"
	"github.com/Speshl/gorrc_tracker/internal/vehicle/follower"
	"github.com/prometheus/procfs"
)

type procStats struct {
	residentMem int
	cpuSeconds  float64
}

func readProcStats() (procStats, error) {
	p, err := procfs.Self()
	if err != nil {
		return procStats{}, fmt.Errorf("procfs could not get process: %w", err)
	}

	stat, err := p.Stat()
	if err != nil {
		return procStats{}, fmt.Errorf("procfs could not read process stat: %w", err)
	}

	return procStats{
		residentMem: stat.ResidentMemory(),
		cpuSeconds:  stat.CPUTime(),
	}, nil
}

func (a *App) buildHealth(status follower.Status, stats procStats) models.Health {
	health := models.Health{
		SessionId:   a.sessionId,
		LostFrames:  status.LostFrames,
		ResidentMem: stats.residentMem,
		CPUSeconds:  stats.cpuSeconds,
		TimeStamp:   a.now().UnixMilli(),
	}

	if status.Payload != "" {
		cmd, err := models.DecodePWMCommand([]byte(status.Payload))
		if err == nil {
			health.Command = cmd
		}
	}
	return health
}

func (a *App) reportHealth() {
	stats, err := readProcStats()
	if err != nil {
		a.logger.Warn().Err(err).Msg("failed reading process stats")
	}

	health := a.buildHealth(a.follower.Status(), stats)
	a.logger.Info().
		Int("lost_frames", health.LostFrames).
		Int("resident_mem", health.ResidentMem).
		Float64("cpu_seconds", health.CPUSeconds).
		Int("pan", health.Command.Pan).
		Int("steering", health.Command.Steering).
		Int("throttle", health.Command.Throttle).
		Msg("healthcheck: healthy")

	if a.client == nil {
		return
	}

	encodedMsg, err := encode(health)
	if err != nil {
		a.logger.Warn().Err(err).Msg("failed encoding health")
		return
	}
	a.client.Emit("car_healthy", encodedMsg)
}
