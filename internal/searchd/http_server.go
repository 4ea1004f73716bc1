package searchd

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"github.com/GoSim-25-26J-441/shell-search/pkg/config"
	"github.com/GoSim-25-26J-441/shell-search/pkg/logger"
)

// maxConfigBytes bounds request bodies on run creation.
const maxConfigBytes = 1 << 20

// HTTPOptions tunes the HTTP API.
type HTTPOptions struct {
	// CreateRate limits run creation per second; 0 disables the limiter.
	CreateRate  float64
	CreateBurst int
	// AllowPrivateCallbacks skips callback URL address checks.
	AllowPrivateCallbacks bool
}

type HTTPServer struct {
	router   *gin.Engine
	store    *RunStore
	Executor *RunExecutor
	limiter  *rate.Limiter
	opts     HTTPOptions
}

func NewHTTPServer(store *RunStore, executor *RunExecutor, opts HTTPOptions) *HTTPServer {
	s := &HTTPServer{
		router:   gin.New(),
		store:    store,
		Executor: executor,
		opts:     opts,
	}
	if opts.CreateRate > 0 {
		burst := max(opts.CreateBurst, 1)
		s.limiter = rate.NewLimiter(rate.Limit(opts.CreateRate), burst)
	}

	s.router.Use(gin.Recovery())
	s.router.Use(otelgin.Middleware("shellsearch"))

	s.router.GET("/healthz", s.handleHealthz)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/v1")
	v1.POST("/runs", s.rateLimit, s.handleCreateRun)
	v1.GET("/runs", s.handleListRuns)
	v1.GET("/runs/:id", s.handleGetRun)
	v1.POST("/runs/:id/stop", s.handleStopRun)
	v1.GET("/runs/:id/leaderboard", s.handleGetLeaderboard)

	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

func (s *HTTPServer) rateLimit(c *gin.Context) {
	if s.limiter != nil && !s.limiter.Allow() {
		writeError(c, http.StatusTooManyRequests, "run creation rate limit exceeded")
		c.Abort()
		return
	}
	c.Next()
}

func (s *HTTPServer) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// createRunRequest is the JSON envelope of POST /v1/runs. The config may be
// given as an object or as YAML text.
type createRunRequest struct {
	RunID          string          `json:"run_id,omitempty"`
	Config         json.RawMessage `json:"config,omitempty"`
	ConfigYAML     string          `json:"config_yaml,omitempty"`
	CallbackURL    string          `json:"callback_url,omitempty"`
	CallbackSecret string          `json:"callback_secret,omitempty"`
}

// handleCreateRun handles POST /v1/runs. A YAML body is taken as the search
// config itself; query parameters then carry run_id and callback_url.
func (s *HTTPServer) handleCreateRun(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxConfigBytes+1))
	if err != nil {
		writeError(c, http.StatusBadRequest, "failed to read request body: "+err.Error())
		return
	}
	if len(body) > maxConfigBytes {
		writeError(c, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	var req createRunRequest
	if strings.Contains(c.ContentType(), "yaml") {
		req.ConfigYAML = string(body)
		req.RunID = c.Query("run_id")
		req.CallbackURL = c.Query("callback_url")
		req.CallbackSecret = c.GetHeader(CallbackSecretHeader)
	} else {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(c, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if req.ConfigYAML == "" && len(req.Config) > 0 {
			// JSON is valid YAML
			req.ConfigYAML = string(req.Config)
		}
	}

	input, err := prepareInput(req, s.opts.AllowPrivateCallbacks)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := s.store.Create(req.RunID, input)
	if err != nil {
		switch {
		case errors.Is(err, ErrRunExists):
			writeError(c, http.StatusConflict, err.Error())
		case errors.Is(err, ErrInvalidRunID):
			writeError(c, http.StatusBadRequest, err.Error())
		default:
			writeError(c, http.StatusInternalServerError, err.Error())
		}
		return
	}

	started, err := s.Executor.Start(rec.ID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("run created (HTTP)", "run_id", rec.ID)
	c.JSON(http.StatusCreated, gin.H{"run": started})
}

// prepareInput validates the config and callback before anything is stored.
func prepareInput(req createRunRequest, allowPrivateCallbacks bool) (RunInput, error) {
	if strings.TrimSpace(req.ConfigYAML) == "" {
		return RunInput{}, errors.New("config is required")
	}
	if _, err := config.ParseSearchYAMLString(req.ConfigYAML); err != nil {
		return RunInput{}, err
	}
	if req.CallbackURL != "" && !allowPrivateCallbacks {
		if err := validateCallbackURL(req.CallbackURL); err != nil {
			return RunInput{}, err
		}
	}
	return RunInput{
		ConfigYAML:     req.ConfigYAML,
		CallbackURL:    req.CallbackURL,
		CallbackSecret: req.CallbackSecret,
	}, nil
}

// handleListRuns handles GET /v1/runs with pagination and filtering
func (s *HTTPServer) handleListRuns(c *gin.Context) {
	limit := 50
	if parsed, err := strconv.Atoi(c.Query("limit")); err == nil && parsed > 0 {
		limit = min(parsed, 1000)
	}
	offset := 0
	if parsed, err := strconv.Atoi(c.Query("offset")); err == nil && parsed >= 0 {
		offset = parsed
	}

	var statusFilter RunStatus
	if raw := c.Query("status"); raw != "" {
		statusFilter = ParseRunStatus(raw)
		if statusFilter == "" {
			writeError(c, http.StatusBadRequest, "unknown status: "+raw)
			return
		}
	}

	runs := s.store.ListFiltered(limit, offset, statusFilter)
	summaries := make([]gin.H, 0, len(runs))
	for _, rec := range runs {
		summaries = append(summaries, runSummary(rec))
	}
	c.JSON(http.StatusOK, gin.H{
		"runs": summaries,
		"pagination": gin.H{
			"limit":  limit,
			"offset": offset,
			"count":  len(runs),
		},
	})
}

// handleGetRun handles GET /v1/runs/:id
func (s *HTTPServer) handleGetRun(c *gin.Context) {
	rec, ok := s.store.Get(c.Param("id"))
	if !ok {
		writeError(c, http.StatusNotFound, "run not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": rec})
}

// handleStopRun handles POST /v1/runs/:id/stop
func (s *HTTPServer) handleStopRun(c *gin.Context) {
	runID := c.Param("id")
	updated, err := s.Executor.Stop(runID)
	if err != nil {
		switch {
		case errors.Is(err, ErrRunNotFound):
			writeError(c, http.StatusNotFound, err.Error())
		case errors.Is(err, ErrRunTerminal):
			writeError(c, http.StatusConflict, err.Error())
		case errors.Is(err, ErrRunIDMissing):
			writeError(c, http.StatusBadRequest, err.Error())
		default:
			writeError(c, http.StatusInternalServerError, err.Error())
		}
		return
	}

	logger.Info("run cancelled (HTTP)", "run_id", runID)
	c.JSON(http.StatusOK, gin.H{"run": runSummary(updated)})
}

// handleGetLeaderboard handles GET /v1/runs/:id/leaderboard
func (s *HTTPServer) handleGetLeaderboard(c *gin.Context) {
	rec, ok := s.store.Get(c.Param("id"))
	if !ok {
		writeError(c, http.StatusNotFound, "run not found")
		return
	}
	if rec.Result == nil {
		writeError(c, http.StatusPreconditionFailed, "leaderboard not available")
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": rec.Result})
}

func writeError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// runSummary is a run without its input and result.
func runSummary(rec *RunRecord) gin.H {
	return gin.H{
		"id":                 rec.ID,
		"status":             rec.Status,
		"created_at_unix_ms": rec.CreatedAtUnixMs,
		"started_at_unix_ms": rec.StartedAtUnixMs,
		"ended_at_unix_ms":   rec.EndedAtUnixMs,
		"error":              rec.Error,
	}
}
