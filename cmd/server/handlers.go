package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/teampulse/teampulse/internal/analysis"
	"github.com/teampulse/teampulse/internal/cache"
	"github.com/teampulse/teampulse/internal/config"
	"github.com/teampulse/teampulse/internal/database"
	apperrors "github.com/teampulse/teampulse/internal/errors"
	"github.com/teampulse/teampulse/internal/ingest"
	"github.com/teampulse/teampulse/internal/middleware"
	"github.com/teampulse/teampulse/internal/monitoring"
	"github.com/teampulse/teampulse/internal/privacy"
	"github.com/teampulse/teampulse/internal/ratelimit"
	"github.com/teampulse/teampulse/internal/resilience"
	"github.com/teampulse/teampulse/internal/security"
	"github.com/teampulse/teampulse/internal/types"
)

type serverDeps struct {
	logger         *monitoring.Logger
	metrics        *monitoring.Metrics
	limiter        *ratelimit.RateLimiter
	redis          *ratelimit.RedisClient
	db             *database.DB
	repo           *database.Repository
	cache          *cache.Cache
	security       *security.SecurityMiddleware
	compression    *middleware.Compression
	anonymizer     *privacy.Anonymizer
	allowedOrigin  string
	engineDefaults analysis.Config
}

type server struct {
	serverDeps
}

func newServer(deps serverDeps) *server {
	return &server{serverDeps: deps}
}

// router assembles the middleware chain and routes. Order matters: the
// monitoring middleware must see every request, the cache sits after rate
// limiting so cached replays still consume budget, and the error handler
// wraps everything that can fail.
func (s *server) router() *gin.Engine {
	r := gin.New()

	corsConfig := cors.DefaultConfig()
	if s.allowedOrigin == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = []string{s.allowedOrigin}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}

	r.Use(apperrors.RecoveryHandler())
	r.Use(monitoring.MonitoringMiddleware(s.metrics, s.logger))
	if s.compression != nil {
		r.Use(s.compression.Handler())
	}
	r.Use(apperrors.ErrorHandler())
	r.Use(cors.New(corsConfig))
	r.Use(s.security.SecurityHeaders)
	r.Use(s.security.ValidateContentType)
	r.Use(s.security.RequestTimeout)
	if s.limiter != nil {
		r.Use(s.limiter.IPRateLimitMiddleware())
		r.Use(s.limiter.AnalyzeRateLimitMiddleware())
	}
	r.Use(s.cache.Middleware("/api/v1/analyze", s.metrics))

	api := r.Group("/api/v1")
	{
		api.POST("/analyze", s.handleAnalyze)
		api.POST("/analyze/csv", s.security.LimitUploadSize, s.handleAnalyzeCSV)
		api.GET("/runs", s.handleListRuns)
		api.GET("/runs/:id", s.handleGetRun)
	}

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", s.handleMetrics)
	r.GET("/cache/stats", s.handleCacheStats)
	r.POST("/cache/clear", s.handleCacheClear)
	r.GET("/pools/database", s.handleDatabasePools)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// analyzeOptions are the per-request engine settings. Absent fields fall
// back to the server defaults.
type analyzeOptions struct {
	Strict             *bool              `json:"strict,omitempty"`
	Anonymize          bool               `json:"anonymize,omitempty"`
	DateDrivenProjects []string           `json:"date_driven_projects,omitempty"`
	Thresholds         *config.Thresholds `json:"thresholds,omitempty"`
}

type analyzeRequest struct {
	Records  []types.RawRecord           `json:"records"`
	Roles    []types.RoleCapacityEntry   `json:"roles,omitempty"`
	Calendar []types.SprintCalendarEntry `json:"calendar,omitempty"`
	Options  analyzeOptions              `json:"options,omitempty"`
}

type analyzeResponse struct {
	RunID  string          `json:"run_id"`
	Result analysis.Result `json:"result"`
}

func (s *server) engineFor(opts analyzeOptions) *analysis.Engine {
	cfg := s.engineDefaults
	if opts.Strict != nil {
		cfg.Strict = *opts.Strict
	}
	if len(opts.DateDrivenProjects) > 0 {
		cfg.DateDrivenProjects = opts.DateDrivenProjects
	}
	if opts.Thresholds != nil {
		cfg.Thresholds = *opts.Thresholds
	}
	return analysis.New(cfg)
}

// handleAnalyze runs the engine over a JSON snapshot.
//
// @Summary Analyze a ticket snapshot
// @Accept json
// @Produce json
// @Router /api/v1/analyze [post]
func (s *server) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewValidationError("Invalid request body", err.Error()))
		return
	}
	if len(req.Records) == 0 {
		c.Error(apperrors.NewValidationError("No records supplied"))
		return
	}
	if err := s.security.ValidateBatchSize(len(req.Records)); err != nil {
		c.Error(apperrors.NewValidationError(err.Error()))
		return
	}

	in := analysis.Input{Records: req.Records, Roles: req.Roles, Calendar: req.Calendar}
	if req.Options.Anonymize {
		in = s.anonymize(in)
	}

	s.runAndRespond(c, s.engineFor(req.Options), in, database.SourceJSON, nil)
}

// handleAnalyzeCSV runs the engine over multipart CSV uploads. The
// "tickets" file is required; "roles" and "calendar" are optional.
//
// @Summary Analyze CSV exports
// @Accept multipart/form-data
// @Produce json
// @Router /api/v1/analyze/csv [post]
func (s *server) handleAnalyzeCSV(c *gin.Context) {
	ticketsFile, err := c.FormFile("tickets")
	if err != nil {
		c.Error(apperrors.NewValidationError("Missing tickets file", err.Error()))
		return
	}

	var warnings []string

	records, w, err := parseUpload(ticketsFile, ingest.Records)
	if err != nil {
		c.Error(apperrors.NewValidationError("Failed to parse tickets file", err.Error()))
		return
	}
	warnings = append(warnings, w...)

	var roles []types.RoleCapacityEntry
	if f, err := c.FormFile("roles"); err == nil {
		roles, w, err = parseUpload(f, ingest.RoleTable)
		if err != nil {
			c.Error(apperrors.NewValidationError("Failed to parse roles file", err.Error()))
			return
		}
		warnings = append(warnings, w...)
	}

	var calendar []types.SprintCalendarEntry
	if f, err := c.FormFile("calendar"); err == nil {
		calendar, w, err = parseUpload(f, ingest.Calendar)
		if err != nil {
			c.Error(apperrors.NewValidationError("Failed to parse calendar file", err.Error()))
			return
		}
		warnings = append(warnings, w...)
	}

	if len(records) == 0 {
		c.Error(apperrors.NewValidationError("Tickets file contains no rows"))
		return
	}
	if err := s.security.ValidateBatchSize(len(records)); err != nil {
		c.Error(apperrors.NewValidationError(err.Error()))
		return
	}

	s.logger.IngestLogger(database.SourceCSV, len(records), len(warnings))

	var opts analyzeOptions
	if raw := c.PostForm("strict"); raw != "" {
		strict, _ := strconv.ParseBool(raw)
		opts.Strict = &strict
	}

	in := analysis.Input{Records: records, Roles: roles, Calendar: calendar}
	if anonymize, _ := strconv.ParseBool(c.PostForm("anonymize")); anonymize {
		in = s.anonymize(in)
	}

	s.runAndRespond(c, s.engineFor(opts), in, database.SourceCSV, warnings)
}

func parseUpload[T any](fh *multipart.FileHeader, parse func(io.Reader) ([]T, []string, error)) ([]T, []string, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, nil, err
	}
	defer apperrors.SafeClose(f, fh.Filename)
	return parse(f)
}

// runAndRespond executes the engine, persists the run and writes the
// response. Ingest warnings are merged into the result's warnings.
func (s *server) runAndRespond(c *gin.Context, engine *analysis.Engine, in analysis.Input, source string, ingestWarnings []string) {
	start := time.Now()

	result, err := engine.Run(c.Request.Context(), in)
	if err != nil {
		c.Error(err)
		return
	}
	result.Warnings = append(ingestWarnings, result.Warnings...)

	duration := time.Since(start)
	s.metrics.RecordRun(len(in.Records), result.DroppedRecords)

	run := s.persistRun(c.Request.Context(), source, len(in.Records), result, duration)
	s.logger.RunLogger(run.ID, len(in.Records), result.TicketCount, len(result.Contributors), len(result.Alerts), result.DroppedRecords, duration)

	c.JSON(http.StatusOK, analyzeResponse{RunID: run.ID, Result: result})
}

// persistRun stores the run history row. Persistence failures are logged
// and never fail the request; the caller already has the result.
func (s *server) persistRun(ctx context.Context, source string, records int, result analysis.Result, duration time.Duration) *database.AnalysisRun {
	blob, err := json.Marshal(result)
	if err != nil {
		blob = nil
	}

	run := database.NewAnalysisRun(source, blob)
	run.RecordCount = records
	run.TicketCount = result.TicketCount
	run.ContributorCount = len(result.Contributors)
	run.AlertCount = len(result.Alerts)
	run.DroppedRecords = result.DroppedRecords
	run.DurationMs = duration.Milliseconds()

	// Sqlite can report transient lock contention under concurrent writes.
	err = resilience.Retry(ctx, func() error {
		return s.repo.SaveRun(ctx, run)
	})
	if err != nil {
		s.logger.Warn("Failed to persist analysis run", "run_id", run.ID, "error", err)
	}
	return run
}

// anonymize replaces contributor names with stable pseudonyms across the
// records and the role table.
func (s *server) anonymize(in analysis.Input) analysis.Input {
	in.Records = s.anonymizer.AnonymizeRecords(in.Records)
	in.Roles = s.anonymizer.AnonymizeRoles(in.Roles)
	return in
}

// handleListRuns returns the most recent runs without result blobs.
//
// @Summary List analysis runs
// @Produce json
// @Router /api/v1/runs [get]
func (s *server) handleListRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	runs, err := s.repo.ListRuns(c.Request.Context(), limit)
	if err != nil {
		c.Error(apperrors.NewInternalError("Failed to list runs", err))
		return
	}
	if runs == nil {
		runs = []database.AnalysisRun{}
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

type runResponse struct {
	database.AnalysisRun
	Result json.RawMessage `json:"result,omitempty"`
}

// handleGetRun returns one run including its stored result.
//
// @Summary Get one analysis run
// @Produce json
// @Router /api/v1/runs/{id} [get]
func (s *server) handleGetRun(c *gin.Context) {
	id := c.Param("id")

	run, err := s.repo.GetRun(c.Request.Context(), id)
	if errors.Is(err, database.ErrRunNotFound) {
		c.Error(apperrors.NewNotFoundError("Analysis run " + id + " not found"))
		return
	}
	if err != nil {
		c.Error(apperrors.NewInternalError("Failed to load run", err))
		return
	}

	resp := runResponse{AnalysisRun: *run, Result: json.RawMessage(run.Result)}
	resp.AnalysisRun.Result = nil
	c.JSON(http.StatusOK, resp)
}

// handleHealth reports liveness plus the state of the optional backends.
func (s *server) handleHealth(c *gin.Context) {
	checks := gin.H{"database": "ok"}

	if err := s.db.Ping(); err != nil {
		checks["database"] = "unreachable"
	}

	if s.redis != nil && s.redis.IsEnabled() {
		if err := s.redis.HealthCheck(c.Request.Context()); err != nil {
			checks["redis"] = "unreachable"
		} else {
			checks["redis"] = "ok"
		}
	} else {
		checks["redis"] = "disabled"
	}

	status := http.StatusOK
	overall := "healthy"
	if checks["database"] != "ok" {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}

	c.JSON(status, gin.H{
		"status":         overall,
		"checks":         checks,
		"uptime_seconds": time.Since(s.metrics.StartTime).Seconds(),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *server) handleMetrics(c *gin.Context) {
	stats := s.metrics.GetStats()
	if s.limiter != nil {
		stats["rate_limiter"] = s.limiter.GetStats()
	}
	if s.compression != nil {
		stats["compression"] = s.compression.GetStats()
	}
	c.JSON(http.StatusOK, stats)
}

func (s *server) handleCacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.cache.Stats())
}

func (s *server) handleCacheClear(c *gin.Context) {
	s.cache.Clear()
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

func (s *server) handleDatabasePools(c *gin.Context) {
	c.JSON(http.StatusOK, s.db.GetPoolStats())
}
