package api

import (
	"PostureServer/logger"
	"PostureServer/monitor"
	"PostureServer/pipeline"
	"PostureServer/posture"
	"context"
	"errors"
	"net"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PostureReader is the read side of the posture state.
type PostureReader interface {
	Snapshot() (posture.Label, time.Time)
}

// TaskLister reports the supervised tasks.
type TaskLister interface {
	Snapshot() map[string]pipeline.TaskInfo
}

type Server struct {
	router *gin.Engine
	srv    *http.Server
	log    *zap.Logger
}

func New(state PostureReader, tasks TaskLister, log *zap.Logger) *Server {
	log = logger.OrNop(log)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))

	r.GET("/api/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/api/posture", func(c *gin.Context) {
		label, updated := state.Snapshot()
		data := gin.H{
			"label": label.Name(),
			"text":  label.String(),
		}
		if !updated.IsZero() {
			data["updated"] = updated.UTC().Format(time.RFC3339Nano)
		}
		c.JSON(http.StatusOK, gin.H{"data": data})
	})
	r.GET("/api/tasks", func(c *gin.Context) {
		snapshot := tasks.Snapshot()
		names := make([]string, 0, len(snapshot))
		for name := range snapshot {
			names = append(names, name)
		}
		sort.Strings(names)
		ret := make([]gin.H, 0, len(names))
		for _, name := range names {
			info := snapshot[name]
			task := gin.H{
				"name":  name,
				"state": info.State.String(),
				"since": info.Since.UTC().Format(time.RFC3339Nano),
			}
			if info.Err != "" {
				task["error"] = info.Err
			}
			ret = append(ret, task)
		}
		c.JSON(http.StatusOK, gin.H{"data": ret})
	})
	r.GET("/metrics", gin.WrapH(monitor.Handler()))

	return &Server{router: r, log: log}
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on addr in the background and returns the bound address.
func (s *Server) Start(addr string) (net.Addr, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s.srv = &http.Server{Handler: s.router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		s.log.Info("api server listening", zap.String("addr", lis.Addr().String()))
		if err := s.srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("api server stopped", zap.Error(err))
		}
	}()
	return lis.Addr(), nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
