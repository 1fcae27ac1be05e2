// Package agent is the remote executor: it receives built batches over HTTP
// and delivers them to a message broker or a database.
package agent

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/RezaEskandarii/datafire/internal/agentclient"
	"github.com/RezaEskandarii/datafire/internal/message_broaker"
	"github.com/RezaEskandarii/datafire/types"
	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	token    string
	brokers  message_broaker.Dialer
	database DatabaseDialer
	logger   *zap.SugaredLogger
	now      func() time.Time
}

type Option func(*Server)

// WithBrokerDialer replaces the RabbitMQ dialer.
func WithBrokerDialer(d message_broaker.Dialer) Option {
	return func(s *Server) { s.brokers = d }
}

// WithDatabaseDialer replaces the pgx dialer.
func WithDatabaseDialer(d DatabaseDialer) Option {
	return func(s *Server) { s.database = d }
}

func NewServer(token string, logger *zap.SugaredLogger, opts ...Option) *Server {
	s := &Server{
		token:    token,
		brokers:  message_broaker.DialRabbitMQ,
		database: DialPostgres,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns the agent's HTTP handler.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requireToken())
	r.GET(agentclient.HealthPath, s.health)
	r.POST(agentclient.ExecutePath, s.execute)
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow("agent listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(agentclient.TokenHeader)
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, types.ExecuteResponse{
				Success: false,
				Error:   "invalid or missing token",
			})
			return
		}
		c.Next()
	}
}

// GET /health
func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "status": "ok"})
}

// POST /execute
func (s *Server) execute(c *gin.Context) {
	var req types.ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ExecuteResponse{Error: "invalid request: " + err.Error()})
		return
	}
	if len(req.PayloadData) == 0 {
		c.JSON(http.StatusBadRequest, types.ExecuteResponse{Error: "missing payload_data", BatchNumber: req.BatchNumber})
		return
	}

	log := s.logger.With("kind", req.PayloadKind, "batch_no", req.BatchNumber, "request_id", c.GetHeader(agentclient.RequestIDHeader))
	ctx := c.Request.Context()

	var (
		result map[string]any
		err    error
	)
	switch req.PayloadKind {
	case types.KindBroker:
		var data types.BrokerData
		if err = json.Unmarshal(req.PayloadData, &data); err == nil {
			result, err = publishBatch(ctx, s.brokers, data)
		}
	case types.KindDatabase:
		var data types.DatabaseData
		if err = json.Unmarshal(req.PayloadData, &data); err == nil {
			result, err = executeStatements(ctx, s.database, data)
		}
	default:
		c.JSON(http.StatusBadRequest, types.ExecuteResponse{
			Error:       errors.Newf("unknown payload_kind %q", req.PayloadKind).Error(),
			BatchNumber: req.BatchNumber,
		})
		return
	}

	if err != nil {
		log.Warnw("batch failed", "error", err)
		c.JSON(http.StatusInternalServerError, types.ExecuteResponse{
			Success:     false,
			Error:       err.Error(),
			BatchNumber: req.BatchNumber,
			ExecutedAt:  s.now().Format(time.RFC3339),
		})
		return
	}

	log.Infow("batch delivered", "result", result)
	c.JSON(http.StatusOK, types.ExecuteResponse{
		Success:     true,
		Result:      result,
		BatchNumber: req.BatchNumber,
		ExecutedAt:  s.now().Format(time.RFC3339),
	})
}
