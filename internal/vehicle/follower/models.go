package follower

import (
	"sync"

	"github.com/Speshl/gorrc_tracker/internal/actuator"
	"github.com/Speshl/gorrc_tracker/internal/command"
	"github.com/Speshl/gorrc_tracker/internal/config"
	"github.com/Speshl/gorrc_tracker/internal/models"
	"github.com/Speshl/gorrc_tracker/internal/vehicle"
	"github.com/rs/zerolog"
)

// Follower chases a detected target: each frame is fed to the controller and
// the resulting command goes out through the sender.
type Follower struct {
	cfg          config.TrackerConfig
	logger       zerolog.Logger
	screenCenter models.Point

	feed       *vehicle.FrameFeed
	controller *actuator.Controller
	sender     *command.Sender
	driver     command.Driver

	lock       sync.RWMutex
	lostFrames int
	frames     int64
}

type Status struct {
	Frames     int64
	LostFrames int
	Reversing  bool
	State      actuator.State
	Payload    string
}
