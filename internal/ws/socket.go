// Package ws pushes game state to connected browsers over Socket.IO.
// All mutations go through the REST API; sockets are a one-way mirror
// plus an explicit resync request for reconnecting clients.
package ws

import (
	"net/http"

	"github.com/gin-gonic/gin"
	socketio "github.com/googollee/go-socket.io"
	"github.com/rs/zerolog/log"

	"github.com/neurovoki/neurovoki/internal/game"
)

// room is the single broadcast group; the game runs one shared session.
const room = "game"

type Server struct {
	m *game.Manager
}

func New(m *game.Manager) *Server {
	return &Server{m: m}
}

// Mount attaches the Socket.IO server to the given Gin engine and wires
// state broadcasts to manager changes.
func (srv *Server) Mount(r *gin.Engine) *socketio.Server {
	io := socketio.NewServer(nil)

	io.OnConnect("/", func(s socketio.Conn) error {
		s.Join(room)
		log.Info().Str("sid", s.ID()).Msg("socket connected")
		s.Emit("game:state", srv.m.View())
		return nil
	})

	// game:sync lets a reconnecting client pull the current state without
	// waiting for the next broadcast.
	io.OnEvent("/", "game:sync", func(s socketio.Conn) game.View {
		return srv.m.View()
	})

	io.OnError("/", func(s socketio.Conn, e error) {
		log.Error().Err(e).Msg("socket error")
	})
	io.OnDisconnect("/", func(s socketio.Conn, reason string) {
		log.Info().Str("sid", s.ID()).Str("reason", reason).Msg("socket disconnected")
	})

	srv.m.SetOnChange(func(v game.View) {
		io.BroadcastToRoom("/", room, "game:state", v)
	})

	go io.Serve()

	r.GET("/socket.io/*any", gin.WrapH(io))
	r.POST("/socket.io/*any", gin.WrapH(io))
	r.OPTIONS("/socket.io/*any", func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Status(http.StatusNoContent)
	})

	return io
}
