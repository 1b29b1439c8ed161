package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/mediclaim/constants"
	"github.com/joseph-ayodele/mediclaim/internal/async"
	"github.com/joseph-ayodele/mediclaim/internal/common"
	"github.com/joseph-ayodele/mediclaim/internal/ingest"
)

const (
	headerRequestID = "X-Request-ID"
	mimeXLSX        = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// HTTPConfig tunes the HTTP surface.
type HTTPConfig struct {
	AllowedOrigins []string
	MaxUploadBytes int64
}

// HTTPServer serves the analysis API over gin.
type HTTPServer struct {
	deps      Deps
	logger    *zap.Logger
	origins   []string
	maxUpload int64
}

func NewHTTPServer(deps Deps, cfg HTTPConfig) (*HTTPServer, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	logger := common.OrNop(deps.Logger)

	origins := make([]string, 0, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			logger.Warn("http.cors.origin_ignored", zap.String("origin", o))
			continue
		}
		origins = append(origins, o)
	}
	if len(origins) == 0 {
		origins = constants.DefaultAllowedOrigins
	}

	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 20 << 20
	}
	return &HTTPServer{deps: deps, logger: logger, origins: origins, maxUpload: maxUpload}, nil
}

// Handler builds the gin engine with middlewares and routes.
func (s *HTTPServer) Handler() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestID())
	r.Use(s.accessLog())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     s.origins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", headerRequestID},
		ExposeHeaders:    []string{headerRequestID, "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", s.health)
	r.POST("/analyze", s.analyze)
	r.GET("/packages/search", s.searchPackages)
	return r
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(headerRequestID))
		if id == "" {
			id = uuid.New().String()
		}
		c.Request = c.Request.WithContext(common.WithRequestID(c.Request.Context(), id))
		c.Header(headerRequestID, id)
		c.Next()
	}
}

func (s *HTTPServer) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("http.request",
			zap.String("req_id", common.RequestIDFromContext(c.Request.Context())),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
		)
	}
}

func (s *HTTPServer) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"service":  constants.ServiceName,
		"packages": s.deps.Corpus.Len(),
		"sources":  s.deps.Corpus.Sources(),
	})
}

// analyze accepts a multipart upload in field "file". By default the response is
// the analysis result; ?format=full adds keywords and candidates, ?format=xlsx
// returns a workbook.
func (s *HTTPServer) analyze(c *gin.Context) {
	format := strings.ToLower(c.DefaultQuery("format", "json"))
	if format != "json" && format != "full" && format != "xlsx" {
		s.fail(c, fmt.Errorf("%w: format must be json, full or xlsx", common.ErrInvalidInput))
		return
	}
	if format == "xlsx" && s.deps.Exporter == nil {
		s.fail(c, fmt.Errorf("%w: xlsx export is not enabled", common.ErrInvalidInput))
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"detail":     fmt.Sprintf("upload exceeds %d bytes", s.maxUpload),
				"request_id": common.RequestIDFromContext(c.Request.Context()),
			})
			return
		}
		s.fail(c, fmt.Errorf("%w: multipart field \"file\" is required", common.ErrInvalidInput))
		return
	}

	f, err := fh.Open()
	if err != nil {
		s.fail(c, fmt.Errorf("open upload: %w", err))
		return
	}
	data, err := io.ReadAll(f)
	_ = f.Close()
	if err != nil {
		s.fail(c, fmt.Errorf("read upload: %w", err))
		return
	}

	doc, err := ingest.NewDocument(fh.Filename, fh.Header.Get("Content-Type"), data)
	if err != nil {
		s.fail(c, err)
		return
	}

	a, err := s.deps.Queue.Submit(c.Request.Context(), doc)
	if err != nil {
		s.fail(c, err)
		return
	}

	switch format {
	case "xlsx":
		b, err := s.deps.Exporter.AnalysisXLSX(a)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="analysis-%s.xlsx"`, a.RequestID))
		c.Data(http.StatusOK, mimeXLSX, b)
	case "full":
		c.JSON(http.StatusOK, a)
	default:
		c.JSON(http.StatusOK, a.Result)
	}
}

// searchPackages runs retrieval directly: ?keyword=a&keyword=b&limit=N.
func (s *HTTPServer) searchPackages(c *gin.Context) {
	keywords := c.QueryArray("keyword")
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.fail(c, fmt.Errorf("%w: limit must be a non-negative integer", common.ErrInvalidInput))
			return
		}
		limit = n
	}

	packages := s.deps.Searcher.Search(keywords, limit)
	if packages == nil {
		c.JSON(http.StatusOK, gin.H{"keywords": keywords, "count": 0, "packages": []any{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"keywords": keywords, "count": len(packages), "packages": packages})
}

func (s *HTTPServer) fail(c *gin.Context, err error) {
	rid := common.RequestIDFromContext(c.Request.Context())
	code := common.HTTPStatus(err)
	if errors.Is(err, async.ErrQueueClosed) {
		code = http.StatusServiceUnavailable
	}

	body := gin.H{"detail": err.Error(), "request_id": rid}
	if code == http.StatusInternalServerError {
		body["detail"] = "internal error"
	}
	fields, raw := errorFields(err)
	if len(fields) > 0 {
		body["fields"] = fields
	}
	if raw != "" {
		body["raw"] = raw
	}

	if code >= http.StatusInternalServerError {
		s.logger.Error("http.request.failed", zap.String("req_id", rid), zap.Int("status", code), zap.Error(err))
	} else {
		s.logger.Warn("http.request.rejected", zap.String("req_id", rid), zap.Int("status", code), zap.Error(err))
	}
	c.AbortWithStatusJSON(code, body)
}
