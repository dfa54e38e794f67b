// Package httpapi implements C10, the HTTP driver: a single gin-gonic/gin
// router exposing POST /run, GET /schema, GET /health, and GET /
// (grounded on _examples/original_source/src/conduit/server.py's own
// health/root endpoints, carried forward as ambient ops-friendliness).
package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-yaml"
	"github.com/google/uuid"

	"github.com/conduit-run/conduit/internal/build"
	"github.com/conduit-run/conduit/internal/elements/transform"
	"github.com/conduit-run/conduit/internal/exec"
	"github.com/conduit-run/conduit/internal/model"
	"github.com/conduit-run/conduit/internal/parse"
	"github.com/conduit-run/conduit/internal/registry"
	"github.com/conduit-run/conduit/internal/runerr"
	"github.com/conduit-run/conduit/internal/schema"
	"github.com/conduit-run/conduit/pipe/middleware"
)

// Server wires the registry and logger the HTTP driver runs pipelines
// against.
type Server struct {
	Registry *registry.Registry
	Logger   middleware.Logger
}

// bufSink collects Console-rendered lines for one /run request, threaded
// through context instead of redirecting the real process stdout (which
// would not be goroutine-safe across concurrent requests —
// SPEC_FULL.md §4.10).
type bufSink struct {
	mu    sync.Mutex
	lines []string
}

func (s *bufSink) WriteLine(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, line)
}

var _ transform.Stdout = (*bufSink)(nil)

type runRequest struct {
	Pipeline []any             `json:"pipeline" binding:"required"`
	Args     map[string]string `json:"args"`
}

type runResponse struct {
	RunID   string         `json:"run_id"`
	Results []model.Record `json:"results"`
	Stdout  []string       `json:"stdout"`
	Stderr  []string       `json:"stderr"`
	Metrics model.RunStats `json:"metrics"`
}

type errorResponse struct {
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	StageIndex *int   `json:"stage_index,omitempty"`
	StageID    string `json:"stage_id,omitempty"`
	ItemIndex  *int   `json:"item_index,omitempty"`
}

// Router builds the gin engine exposing this server's endpoints.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/", s.handleHealth)
	r.GET("/health", s.handleHealth)
	r.GET("/schema", s.handleSchema)
	r.POST("/run", s.handleRun)
	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleSchema(c *gin.Context) {
	reg := s.Registry
	if reg == nil {
		reg = registry.Default
	}
	c.JSON(http.StatusOK, schema.Generate(reg))
}

func (s *Server) handleRun(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Kind: "ParseError", Message: err.Error()})
		return
	}

	yamlBytes, err := reencode(req.Pipeline)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Kind: "ParseError", Message: err.Error()})
		return
	}

	descs, err := parse.Pipeline(yamlBytes, req.Args)
	if err != nil {
		writeErr(c, err)
		return
	}

	reg := s.Registry
	if reg == nil {
		reg = registry.Default
	}
	pipeline, err := build.Build(descs, build.Options{Registry: reg, Args: req.Args})
	if err != nil {
		writeErr(c, err)
		return
	}

	runID := uuid.NewString()
	sink := &bufSink{}
	ctx := transform.WithStdout(c.Request.Context(), sink)

	start := time.Now()
	results, stats, runErr := exec.Run(ctx, pipeline)
	stats.Duration = time.Since(start)

	var stderr []string
	if runErr != nil {
		stderr = append(stderr, runErr.Error())
	}

	resp := runResponse{
		RunID:   runID,
		Results: results,
		Stdout:  sink.lines,
		Stderr:  stderr,
		Metrics: stats,
	}
	if runErr != nil {
		c.JSON(http.StatusOK, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func writeErr(c *gin.Context, err error) {
	resp := errorResponse{Kind: "InternalError", Message: err.Error()}
	status := http.StatusInternalServerError
	if re, ok := runerr.As(err); ok {
		resp.Kind = string(re.Kind)
		resp.Message = re.Message
		if re.HasStage {
			idx := re.StageIndex
			resp.StageIndex = &idx
			resp.StageID = re.StageID
		}
		if re.HasItem {
			idx := re.ItemIndex
			resp.ItemIndex = &idx
		}
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, resp)
}

// reencode round-trips the already-JSON-decoded pipeline value back into
// YAML bytes so internal/parse's single entry point (raw YAML -> resolved
// descriptors) serves both the CLI (real YAML files) and the HTTP driver
// (JSON pipeline bodies) without two parallel descriptor-building paths.
func reencode(pipeline []any) ([]byte, error) {
	doc := map[string]any{"pipeline": pipeline}
	return yaml.Marshal(doc)
}
