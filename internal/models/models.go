package models

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Point is a position in image pixel coordinates of the active capture resolution.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Observation is one detector frame. A nil Target means no target was found in the frame.
type Observation struct {
	ScreenCenter Point  `json:"screen_center"`
	Target       *Point `json:"target,omitempty"`
	TimeStamp    int64  `json:"time_stamp"`
}

func (o Observation) HasTarget() bool {
	return o.Target != nil
}

// PWMCommand is the snapshot written to the actuator link, values in PWM microseconds.
type PWMCommand struct {
	Pan      int `json:"pan"`
	Steering int `json:"steering"`
	Throttle int `json:"throttle"`
}

func (c PWMCommand) Encode() ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed encoding pwm command: %w", err)
	}
	return data, nil
}

func DecodePWMCommand(data []byte) (PWMCommand, error) {
	cmd := PWMCommand{}
	err := json.Unmarshal(data, &cmd)
	if err != nil {
		return cmd, fmt.Errorf("failed decoding pwm command: %w", err)
	}
	return cmd, nil
}

type ConnectReq struct {
	Key       string    `json:"key"`
	Password  string    `json:"password"`
	SessionId uuid.UUID `json:"session_id"`
}

type ConnectResp struct {
	Car Car `json:"car"`
}

type Car struct {
	Id        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	ShortName string    `json:"short_name"`
	Type      string    `json:"type"`
}

type Health struct {
	SessionId   uuid.UUID  `json:"session_id"`
	Command     PWMCommand `json:"command"`
	LostFrames  int        `json:"lost_frames"`
	ResidentMem int        `json:"resident_mem"`
	CPUSeconds  float64    `json:"cpu_seconds"`
	TimeStamp   int64      `json:"time_stamp"`
}
