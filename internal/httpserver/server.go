// Package httpserver exposes the analysis engine and the report store over HTTP.
package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tinytelemetry/logsift/internal/analysis"
	"github.com/tinytelemetry/logsift/internal/duckdb"
	"github.com/tinytelemetry/logsift/internal/frequency"
	"github.com/tinytelemetry/logsift/internal/logparse"
	"github.com/tinytelemetry/logsift/internal/model"
	"github.com/tinytelemetry/logsift/internal/pattern"
	"github.com/tinytelemetry/logsift/internal/timestamp"
)

// DefaultMaxBodyBytes caps a request body, after decompression, when no limit is configured.
const DefaultMaxBodyBytes = 16 << 20

const defaultListLimit = 50

// Config holds tunables for the HTTP API.
type Config struct {
	MaxBodyBytes int64
}

// Server provides an HTTP API over the analysis engine and stored reports.
type Server struct {
	addr         string
	engine       *analysis.Engine
	store        model.ReportStore
	maxBodyBytes int64
	server       *http.Server
	ctx          context.Context
	cancel       context.CancelFunc
	startTime    time.Time
}

// NewServer creates a new HTTP API server. store may be nil, in which case the
// report endpoints answer 503 and analyses are never persisted.
func NewServer(addr string, engine *analysis.Engine, store model.ReportStore, conf ...Config) *Server {
	if addr == "" {
		addr = "0.0.0.0:3000"
	}
	if engine == nil {
		engine = analysis.New(analysis.Options{})
	}
	maxBody := int64(DefaultMaxBodyBytes)
	if len(conf) > 0 && conf[0].MaxBodyBytes > 0 {
		maxBody = conf[0].MaxBodyBytes
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:         addr,
		engine:       engine,
		store:        store,
		maxBodyBytes: maxBody,
		ctx:          ctx,
		cancel:       cancel,
		startTime:    time.Now(),
	}
}

// Handler builds the gin router with every API route.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.GET("/health", s.handleHealth)

	api.POST("/analyze", s.handleAnalyze)
	api.POST("/analyze/errors", s.handleErrors)
	api.POST("/analyze/structured", s.handleStructured)
	api.POST("/analyze/timestamps", s.handleTimestamps)
	api.POST("/analyze/patterns", s.handlePatterns)
	api.POST("/analyze/frequency", s.handleFrequency)

	api.GET("/reports", s.handleListReports)
	api.GET("/reports/:id", s.handleGetReport)
	api.GET("/patterns/top", s.handleTopPatterns)

	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.Handler(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.addr = listener.Addr().String()
	s.startTime = time.Now()

	go s.server.Serve(listener)
	return nil
}

// Addr returns the listen address. After Start it reflects the bound port.
func (s *Server) Addr() string {
	return s.addr
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	}
	if s.store != nil {
		count, err := s.store.TotalReportCount()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read health metrics"})
			return
		}
		body["report_count"] = count
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleAnalyze(c *gin.Context) {
	opts, ok := optionsFromQuery(c)
	if !ok {
		return
	}
	persist := false
	if raw := c.Query("store"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "store must be a boolean"})
			return
		}
		persist = v
	}
	if persist && s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "report storage is disabled"})
		return
	}

	text, ok := s.readBody(c)
	if !ok {
		return
	}

	report, err := s.engine.WithOptions(opts).Analyze(c.Request.Context(), c.DefaultQuery("source", "http"), text)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	if persist {
		if err := s.store.SaveReport(report); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store report"})
			return
		}
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleErrors(c *gin.Context) {
	text, ok := s.readBody(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"errors": logparse.ExtractErrorMessages(text)})
}

func (s *Server) handleStructured(c *gin.Context) {
	text, ok := s.readBody(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"structured_entries": logparse.ExtractStructuredEntries(text)})
}

func (s *Server) handleTimestamps(c *gin.Context) {
	text, ok := s.readBody(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"timestamps": timestamp.Extract(text)})
}

func (s *Server) handlePatterns(c *gin.Context) {
	opts, ok := optionsFromQuery(c)
	if !ok {
		return
	}
	opts = s.engine.WithOptions(opts).Options()
	text, ok := s.readBody(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"min_occurrences": opts.MinOccurrences,
		"patterns":        pattern.FindCommon(text, opts.MinOccurrences),
	})
}

func (s *Server) handleFrequency(c *gin.Context) {
	opts, ok := optionsFromQuery(c)
	if !ok {
		return
	}
	opts = s.engine.WithOptions(opts).Options()
	text, ok := s.readBody(c)
	if !ok {
		return
	}
	report, err := frequency.Analyze(text, opts.WindowMinutes)
	if errors.Is(err, frequency.ErrNoTimestamps) {
		c.JSON(http.StatusOK, gin.H{"error": model.NoTimestampsMessage})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleListReports(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	limit, ok := limitFromQuery(c)
	if !ok {
		return
	}
	reports, err := s.store.ListReports(limit, c.Query("source"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list reports"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports, "count": len(reports)})
}

func (s *Server) handleGetReport(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	report, err := s.store.GetReport(c.Param("id"))
	if errors.Is(err, duckdb.ErrReportNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read report"})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleTopPatterns(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	limit, ok := limitFromQuery(c)
	if !ok {
		return
	}
	patterns, err := s.store.TopPatterns(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read patterns"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"patterns": patterns})
}

func (s *Server) requireStore(c *gin.Context) bool {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "report storage is disabled"})
		return false
	}
	return true
}

// optionsFromQuery reads min_occurrences and window_minutes. Absent values stay zero
// so the engine defaults apply.
func optionsFromQuery(c *gin.Context) (analysis.Options, bool) {
	var opts analysis.Options
	for _, p := range []struct {
		key  string
		dest *int
	}{
		{"min_occurrences", &opts.MinOccurrences},
		{"window_minutes", &opts.WindowMinutes},
	} {
		raw := c.Query(p.key)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": p.key + " must be a positive integer"})
			return opts, false
		}
		*p.dest = v
	}
	return opts, true
}

func limitFromQuery(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultListLimit, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return 0, false
	}
	return v, true
}
