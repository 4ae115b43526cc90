package config

import (
	"fmt"
	"strings"

	"github.com/Speshl/gorrc_tracker/internal/actuator"
	"github.com/Speshl/gorrc_tracker/internal/command"
	"github.com/spf13/viper"
)

// Load sets defaults, binds TRACKER_ prefixed env vars and reads the optional config file.
func Load(configFile string) error {
	setDefaults()

	viper.SetEnvPrefix(AppEnvBase)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if configFile == "" {
		return nil
	}

	viper.SetConfigFile(configFile)
	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("logLevel", DefaultLogLevel)
	viper.SetDefault("input", DefaultInput)

	viper.SetDefault("server.address", DefaultServer)
	viper.SetDefault("server.key", DefaultCarKey)
	viper.SetDefault("server.password", DefaultPassword)
	viper.SetDefault("server.healthInterval", DefaultHealthInterval)

	viper.SetDefault("command.driver", DefaultCommandDriver)
	viper.SetDefault("command.serial.port", DefaultSerialPort)
	viper.SetDefault("command.serial.baud", DefaultBaudRate)
	viper.SetDefault("command.i2c.device", DefaultI2CDevice)
	viper.SetDefault("command.i2c.address", DefaultAddress)

	for _, name := range servoNames {
		prefix := "servo." + name + "."
		viper.SetDefault(prefix+"channel", defaultServoChannels[name])
		viper.SetDefault(prefix+"pin", defaultServoPins[name])
		viper.SetDefault(prefix+"minPulse", DefaultMinPulse)
		viper.SetDefault(prefix+"maxPulse", DefaultMaxPulse)
		viper.SetDefault(prefix+"inverted", DefaultInverted)
	}

	viper.SetDefault("tracker.resolution", DefaultResolution)
	viper.SetDefault("tracker.forwardBoundaryPercent", DefaultForwardBoundaryPercent)
	viper.SetDefault("tracker.reverseBoundaryPercent", DefaultReverseBoundaryPercent)
	viper.SetDefault("tracker.maxLostFrames", DefaultMaxLostFrames)
	viper.SetDefault("tracker.frameTimeout", DefaultFrameTimeout)
	viper.SetDefault("tracker.frameInterval", DefaultFrameInterval)
	viper.SetDefault("tracker.engageThrottle", DefaultEngageThrottle)

	viper.SetDefault("pwm.pan.min", actuator.DefaultPanMin)
	viper.SetDefault("pwm.pan.max", actuator.DefaultPanMax)
	viper.SetDefault("pwm.pan.center", actuator.DefaultPanCenter)
	viper.SetDefault("pwm.pan.reducedFactor", actuator.DefaultPanReducedFactor)
	viper.SetDefault("pwm.steering.min", actuator.DefaultSteeringMin)
	viper.SetDefault("pwm.steering.max", actuator.DefaultSteeringMax)
	viper.SetDefault("pwm.steering.center", actuator.DefaultSteeringCenter)
	viper.SetDefault("pwm.throttle.forward", actuator.DefaultThrottleForward)
	viper.SetDefault("pwm.throttle.reverse", actuator.DefaultThrottleReverse)
	viper.SetDefault("pwm.throttle.neutral", actuator.DefaultThrottleNeutral)
}

func GetConfig() Config {
	return Config{
		LogLevel:   viper.GetString("logLevel"),
		ServerCfg:  GetServerConfig(),
		CommandCfg: GetCommandConfig(),
		TrackerCfg: GetTrackerConfig(),
		PWMCfg:     GetPWMConfig(),
	}
}

func GetServerConfig() ServerConfig {
	return ServerConfig{
		Input:          strings.ToLower(viper.GetString("input")),
		Server:         viper.GetString("server.address"),
		Key:            viper.GetString("server.key"),
		Password:       viper.GetString("server.password"),
		HealthInterval: viper.GetDuration("server.healthInterval"),
	}
}

func GetCommandConfig() CommandConfig {
	commandCfg := CommandConfig{
		CommandDriver: strings.ToLower(viper.GetString("command.driver")),
		SerialCfg: SerialConfig{
			Port:     viper.GetString("command.serial.port"),
			BaudRate: viper.GetInt("command.serial.baud"),
		},
		Address:   byte(viper.GetInt("command.i2c.address")),
		I2CDevice: viper.GetString("command.i2c.device"),
		ServoCfgs: make([]ServoConfig, 0, len(servoNames)),
	}

	for _, name := range servoNames {
		prefix := "servo." + name + "."
		commandCfg.ServoCfgs = append(commandCfg.ServoCfgs, ServoConfig{
			Name:     name,
			Channel:  viper.GetInt(prefix + "channel"),
			Pin:      viper.GetInt(prefix + "pin"),
			MinPulse: viper.GetFloat64(prefix + "minPulse"),
			MaxPulse: viper.GetFloat64(prefix + "maxPulse"),
			Inverted: viper.GetBool(prefix + "inverted"),
		})
	}
	return commandCfg
}

func GetTrackerConfig() TrackerConfig {
	width, height, err := ParseResolution(viper.GetString("tracker.resolution"))
	if err != nil {
		width, height, _ = ParseResolution(DefaultResolution)
	}

	return TrackerConfig{
		Width:                  width,
		Height:                 height,
		ForwardBoundaryPercent: viper.GetFloat64("tracker.forwardBoundaryPercent") / 100,
		ReverseBoundaryPercent: viper.GetFloat64("tracker.reverseBoundaryPercent") / 100,
		MaxLostFrames:          viper.GetInt("tracker.maxLostFrames"),
		FrameTimeout:           viper.GetDuration("tracker.frameTimeout"),
		FrameInterval:          viper.GetDuration("tracker.frameInterval"),
		EngageThrottle:         viper.GetBool("tracker.engageThrottle"),
	}
}

func GetPWMConfig() actuator.Ranges {
	return actuator.Ranges{
		Pan: actuator.PanRange{
			Min:           viper.GetFloat64("pwm.pan.min"),
			Max:           viper.GetFloat64("pwm.pan.max"),
			Center:        viper.GetFloat64("pwm.pan.center"),
			ReducedFactor: viper.GetFloat64("pwm.pan.reducedFactor"),
		},
		Steering: actuator.SteeringRange{
			Min:    viper.GetFloat64("pwm.steering.min"),
			Max:    viper.GetFloat64("pwm.steering.max"),
			Center: viper.GetFloat64("pwm.steering.center"),
		},
		Throttle: actuator.ThrottleLevels{
			Forward: viper.GetFloat64("pwm.throttle.forward"),
			Reverse: viper.GetFloat64("pwm.throttle.reverse"),
			Neutral: viper.GetFloat64("pwm.throttle.neutral"),
		},
	}
}

// ParseResolution reads a WIDTHxHEIGHT capture size such as 352x288.
func ParseResolution(resolution string) (int, int, error) {
	var width, height int
	_, err := fmt.Sscanf(strings.ToLower(resolution), "%dx%d", &width, &height)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid resolution %q: %w", resolution, err)
	}
	if width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("invalid resolution %q: dimensions must be positive", resolution)
	}
	return width, height, nil
}

func (c Config) Validate() error {
	err := command.ValidateDriverName(c.CommandCfg.CommandDriver)
	if err != nil {
		return err
	}

	if c.CommandCfg.CommandDriver == command.DriverSerial && c.CommandCfg.SerialCfg.Port == "" {
		return fmt.Errorf("command.serial.port is required for the serial driver")
	}
	if c.CommandCfg.SerialCfg.BaudRate <= 0 {
		return fmt.Errorf("command.serial.baud must be > 0, got %d", c.CommandCfg.SerialCfg.BaudRate)
	}

	for _, servo := range c.CommandCfg.ServoCfgs {
		if servo.MinPulse >= servo.MaxPulse {
			return fmt.Errorf("servo %s min pulse %.0f must be below max pulse %.0f", servo.Name, servo.MinPulse, servo.MaxPulse)
		}
	}

	switch c.ServerCfg.Input {
	case InputStdin, InputSocket:
	default:
		return fmt.Errorf("unsupported input: %s", c.ServerCfg.Input)
	}

	if c.TrackerCfg.MaxLostFrames < 0 {
		return fmt.Errorf("tracker.maxLostFrames must be >= 0, got %d", c.TrackerCfg.MaxLostFrames)
	}
	if c.TrackerCfg.FrameInterval <= 0 || c.TrackerCfg.FrameTimeout <= 0 {
		return fmt.Errorf("tracker.frameInterval and tracker.frameTimeout must be > 0")
	}

	err = c.PWMCfg.Validate()
	if err != nil {
		return fmt.Errorf("invalid pwm ranges: %w", err)
	}
	return nil
}
