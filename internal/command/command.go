package command

import (
	"fmt"
	"strings"

	"github.com/Speshl/gorrc_tracker/internal/models"
)

const (
	DriverSerial  = "serial"
	DriverPCA9685 = "pca9685"
	DriverPiPWM   = "pipwm"

	ChannelPan      = "pan"
	ChannelSteering = "steering"
	ChannelThrottle = "throttle"
)

// Driver delivers serialized pwm commands to the actuators.
type Driver interface {
	Init() error
	Write(payload []byte) error
	Stop() error
}

func ValidateDriverName(name string) error {
	switch strings.ToLower(name) {
	case DriverSerial, DriverPCA9685, DriverPiPWM:
		return nil
	default:
		return fmt.Errorf("unsupported command driver: %s", name)
	}
}

func MapToRange(value, min, max, minReturn, maxReturn float64) float64 {
	mappedValue := (maxReturn-minReturn)*(value-min)/(max-min) + minReturn

	if mappedValue > maxReturn {
		return maxReturn
	} else if mappedValue < minReturn {
		return minReturn
	} else {
		return mappedValue
	}
}

// ChannelValues splits a command into pulse widths keyed by channel name.
func ChannelValues(cmd models.PWMCommand) map[string]float64 {
	return map[string]float64{
		ChannelPan:      float64(cmd.Pan),
		ChannelSteering: float64(cmd.Steering),
		ChannelThrottle: float64(cmd.Throttle),
	}
}

// DecodePayload reads a serialized command back into per channel pulse widths.
func DecodePayload(payload []byte) (map[string]float64, error) {
	cmd, err := models.DecodePWMCommand(payload)
	if err != nil {
		return nil, err
	}
	return ChannelValues(cmd), nil
}
