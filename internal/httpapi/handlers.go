// Package httpapi exposes the game manager's operations as a REST surface
// for the browser client. Handlers only translate between HTTP and the
// manager; no game rules live here.
package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/neurovoki/neurovoki/internal/game"
)

type Server struct {
	m   *game.Manager
	log zerolog.Logger
}

func New(m *game.Manager, log zerolog.Logger) *Server {
	return &Server{m: m, log: log}
}

func (s *Server) Register(r *gin.Engine) {
	api := r.Group("/api")
	g := api.Group("/game")
	g.GET("/state", s.state)
	g.GET("/catalog", s.catalog)
	g.GET("/task", s.task)
	g.POST("/setup", s.setup)
	g.POST("/back", s.back)
	g.POST("/start", s.start)
	g.POST("/intro-done", s.introDone)
	g.POST("/ready", s.ready)
	g.POST("/hint", s.hint)
	g.POST("/submit", s.submit)
	g.POST("/giveup", s.giveUp)
	g.POST("/retry", s.retry)
	g.POST("/negotiate/open", s.negotiateOpen)
	g.POST("/negotiate", s.negotiate)
	g.POST("/next", s.next)
	g.POST("/speech", s.speech)
	g.POST("/restart", s.restart)
	api.GET("/qr", s.qr)
}

func (s *Server) state(c *gin.Context) {
	c.JSON(http.StatusOK, s.m.View())
}

func (s *Server) catalog(c *gin.Context) {
	cat := s.m.Catalog()
	c.JSON(http.StatusOK, gin.H{
		"roundOrder": cat.RoundOrder,
		"rounds":     cat.Rounds,
		"themes":     cat.Themes,
		"teamNames":  cat.TeamNames,
		"teamColors": cat.TeamColors,
		"maxPoints":  cat.MaxPoints,
	})
}

func (s *Server) task(c *gin.Context) {
	view, err := s.m.CurrentTask()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) setup(c *gin.Context) {
	s.simple(c, s.m.BeginSetup())
}

func (s *Server) back(c *gin.Context) {
	s.simple(c, s.m.BackToWelcome())
}

func (s *Server) start(c *gin.Context) {
	var req struct {
		Settings game.Settings  `json:"settings"`
		Teams    []game.NewTeam `json:"teams"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	s.simple(c, s.m.StartGame(req.Settings, req.Teams))
}

func (s *Server) introDone(c *gin.Context) {
	s.simple(c, s.m.RoundIntroDone())
}

func (s *Server) ready(c *gin.Context) {
	s.simple(c, s.m.TurnReady())
}

func (s *Server) hint(c *gin.Context) {
	hint, err := s.m.UseHint()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hint": hint})
}

func (s *Server) submit(c *gin.Context) {
	var req struct {
		Answer string `json:"answer"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	res, err := s.m.SubmitAnswer(c.Request.Context(), req.Answer)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) giveUp(c *gin.Context) {
	out, err := s.m.GiveUp()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) retry(c *gin.Context) {
	s.simple(c, s.m.RetryTask())
}

func (s *Server) negotiateOpen(c *gin.Context) {
	s.simple(c, s.m.OpenNegotiation())
}

func (s *Server) negotiate(c *gin.Context) {
	var req struct {
		Argument string `json:"argument"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	verdict, err := s.m.SubmitNegotiation(c.Request.Context(), req.Argument)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, verdict)
}

func (s *Server) next(c *gin.Context) {
	s.simple(c, s.m.AdvanceTurn())
}

func (s *Server) speech(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"speechEnabled": s.m.ToggleSpeech()})
}

func (s *Server) restart(c *gin.Context) {
	s.simple(c, s.m.Restart())
}

// qr renders a QR code for the game URL, so phones can open the shared
// screen's address without typing it.
func (s *Server) qr(c *gin.Context) {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	url := fmt.Sprintf("%s://%s/", scheme, c.Request.Host)
	png, err := qrcode.Encode(url, qrcode.Medium, 256)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "qr_failed"})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (s *Server) simple(c *gin.Context, err error) {
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) fail(c *gin.Context, err error) {
	var status int
	switch {
	case errors.Is(err, game.ErrNoTeams),
		errors.Is(err, game.ErrEmptyTeam),
		errors.Is(err, game.ErrNoThemes),
		errors.Is(err, game.ErrEmptyArgument):
		status = http.StatusBadRequest
	case errors.Is(err, game.ErrInvalidStatus),
		errors.Is(err, game.ErrTaskNotReady),
		errors.Is(err, game.ErrNoNegotiation),
		errors.Is(err, game.ErrHintUsed),
		errors.Is(err, game.ErrNoHint),
		errors.Is(err, game.ErrJudging):
		status = http.StatusConflict
	default:
		// Task generation or evaluation failure upstream.
		status = http.StatusBadGateway
		s.log.Warn().Err(err).Str("path", c.Request.URL.Path).Msg("upstream failure")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
