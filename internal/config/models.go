package config

import (
	"time"

	"github.com/Speshl/gorrc_tracker/internal/actuator"
)

const (
	AppEnvBase    = "TRACKER"
	ConfigFileEnv = "TRACKER_CONFIG"

	InputStdin  = "stdin"
	InputSocket = "socket"

	DefaultLogLevel = "info"
	DefaultInput    = InputStdin

	DefaultServer         = "127.0.0.1:8181"
	DefaultCarKey         = ""
	DefaultPassword       = ""
	DefaultHealthInterval = 30 * time.Second

	// Default Command Options
	DefaultCommandDriver = "serial"
	DefaultSerialPort    = "/dev/ttyUSB0"
	DefaultBaudRate      = 9600
	DefaultAddress       = 0x40
	DefaultI2CDevice     = "/dev/i2c-1"

	DefaultMaxPulse = 2500
	DefaultMinPulse = 500
	DefaultInverted = false

	// Default Tracker Options
	DefaultResolution             = "352x288"
	DefaultForwardBoundaryPercent = -15
	DefaultReverseBoundaryPercent = 30
	DefaultMaxLostFrames          = 2
	DefaultFrameTimeout           = 200 * time.Millisecond
	DefaultFrameInterval          = 33 * time.Millisecond
	DefaultEngageThrottle         = false
)

// ResolutionPresets are the capture sizes the detector is known to run at.
var ResolutionPresets = []string{"1920x1080", "1280x960", "800x480", "352x288"}

var servoNames = []string{"pan", "steering", "throttle"}

var defaultServoChannels = map[string]int{
	"pan":      0,
	"steering": 1,
	"throttle": 2,
}

var defaultServoPins = map[string]int{
	"pan":      0,
	"steering": 12,
	"throttle": 13,
}

type Config struct {
	LogLevel string

	ServerCfg  ServerConfig
	CommandCfg CommandConfig
	TrackerCfg TrackerConfig
	PWMCfg     actuator.Ranges
}

type ServerConfig struct {
	Input          string
	Server         string
	Key            string
	Password       string
	HealthInterval time.Duration
}

type CommandConfig struct {
	CommandDriver string
	SerialCfg     SerialConfig
	Address       byte
	I2CDevice     string
	ServoCfgs     []ServoConfig
}

type SerialConfig struct {
	Port     string
	BaudRate int
}

type ServoConfig struct {
	Name     string
	Channel  int
	Pin      int
	MaxPulse float64
	MinPulse float64
	Inverted bool
}

type TrackerConfig struct {
	Width  int
	Height int

	// fractions of the frame height, -0.15 for -15%
	ForwardBoundaryPercent float64
	ReverseBoundaryPercent float64

	MaxLostFrames  int
	FrameTimeout   time.Duration
	FrameInterval  time.Duration
	EngageThrottle bool
}
