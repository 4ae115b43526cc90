package app

import (
	"github.com/Speshl/gorrc_tracker/internal/intake"
	"github.com/Speshl/gorrc_tracker/internal/models"
	socketio "github.com/googollee/go-socket.io"
)

func (a *App) onObservation(socketConn socketio.Conn, msg string) {
	observation, err := intake.Decode([]byte(msg))
	if err != nil {
		a.logger.Warn().Err(err).Msg("observation failed unmarshaling")
		return
	}
	if observation.TimeStamp == 0 {
		observation.TimeStamp = a.now().UnixMilli()
	}

	select {
	case a.frames <- observation:
	default:
		a.logger.Warn().Msg("observation channel full, skipping")
	}
}

func (a *App) onRegisterSuccess(socketConn socketio.Conn, msg string) {
	decodedMsg := models.ConnectResp{}
	err := decode(msg, &decodedMsg)
	if err != nil {
		a.logger.Warn().Err(err).Msg("register response failed unmarshaling")
		return
	}

	a.lock.Lock()
	a.carInfo = decodedMsg.Car
	a.lock.Unlock()

	a.logger.Info().
		Str("car", decodedMsg.Car.Name).
		Str("short_name", decodedMsg.Car.ShortName).
		Str("car_id", decodedMsg.Car.Id.String()).
		Msg("car connected")
}

func (a *App) onReply(socketConn socketio.Conn, msg string) {
	a.logger.Debug().Str("reply", msg).Msg("received reply")
}
