// Package server exposes the token broker to the desktop UI over a loopback
// HTTP API.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kubedeck/kubedeck/pkg/broker"
	"github.com/kubedeck/kubedeck/pkg/config"
	"github.com/kubedeck/kubedeck/pkg/version"
)

type Server struct {
	engine *gin.Engine
	broker *broker.Broker
	cfg    config.Config
	log    *zap.Logger
}

func New(log *zap.Logger, cfg config.Config, b *broker.Broker) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(
		ginzap.Ginzap(log, time.RFC3339, true),
		ginzap.RecoveryWithZap(log, true),
	)

	if cfg.Debug {
		origins := cfg.Server.AllowedOrigins
		if len(origins) == 0 {
			origins = []string{"http://localhost:5173"}
		}
		engine.Use(cors.New(cors.Config{
			AllowOrigins: origins,
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}

	s := &Server{engine: engine, broker: b, cfg: cfg, log: log}

	api := engine.Group("api")
	auth := api.Group("auth")
	auth.POST("token", s.acquireToken)
	auth.GET("status", s.loginStatus)
	auth.POST("login", s.login)
	auth.POST("logout", s.logout)
	api.GET("version", s.version)
	engine.GET("metrics", gin.WrapH(promhttp.Handler()))

	return s
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) Run() error {
	s.log.Info("broker bridge listening", zap.String("address", s.cfg.Server.ListenAddress))
	return s.engine.Run(s.cfg.Server.ListenAddress)
}

// scopeList accepts either a single scope string or a list, matching what
// the UI sends.
type scopeList []string

func (s *scopeList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = scopeList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("scopes must be a string or a list of strings")
	}
	*s = scopeList(many)
	return nil
}

type tokenRequest struct {
	Scopes scopeList `json:"scopes"`
	Silent bool      `json:"silent"`
}

type tokenResponse struct {
	Token string `json:"token"`
	// ExpiresOnTimestamp is absolute epoch milliseconds, the shape the UI
	// expects.
	ExpiresOnTimestamp int64 `json:"expiresOnTimestamp"`
}

type sessionResponse struct {
	Success  bool   `json:"success"`
	Username string `json:"username,omitempty"`
	TenantID string `json:"tenantId,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (s *Server) acquireToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Scopes) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "scopes are required"})
		return
	}
	result, err := s.broker.AcquireToken(c.Request.Context(), req.Scopes, req.Silent)
	if err != nil {
		s.log.Warn("token acquisition failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if result == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{
		Token:              result.Token,
		ExpiresOnTimestamp: result.ExpiresOn.UnixMilli(),
	})
}

func (s *Server) loginStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.broker.CheckLoginStatus(c.Request.Context()))
}

// login reports failure inside the response body: the UI renders the message
// instead of handling transport errors.
func (s *Server) login(c *gin.Context) {
	info, err := s.broker.Login(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusOK, sessionResponse{Success: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, sessionResponse{
		Success:  true,
		Username: info.Username,
		TenantID: info.TenantID,
	})
}

func (s *Server) logout(c *gin.Context) {
	if err := s.broker.Logout(c.Request.Context()); err != nil {
		c.JSON(http.StatusOK, sessionResponse{Success: false, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, sessionResponse{Success: true})
}

func (s *Server) version(c *gin.Context) {
	c.JSON(http.StatusOK, version.GetBuildInfo())
}
