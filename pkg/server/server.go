// Package server exposes the avatar cropper over HTTP: upload a photo, then
// post a crop region drawn over it and get the encoded avatar back.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	avatarcrop "github.com/menta2k/avatar-cropper"
	"github.com/menta2k/avatar-cropper/pkg/cropper"
	"github.com/menta2k/avatar-cropper/pkg/mapper"
	"github.com/menta2k/avatar-cropper/pkg/processing"
	"github.com/menta2k/avatar-cropper/pkg/source"
	"github.com/menta2k/avatar-cropper/pkg/types"
)

// ImageField is the multipart field carrying the uploaded photo
const ImageField = "image"

const (
	// cropBodySlack covers the JSON fields and data URI prefix around the
	// base64 image payload
	cropBodySlack = 64 << 10

	defaultListen            = ":8080"
	defaultReadHeaderTimeout = 10 * time.Second
	defaultShutdownTimeout   = 15 * time.Second
)

// Config holds HTTP settings
type Config struct {
	Listen            string
	Mode              string
	CorsOrigins       []string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server is the crop HTTP service
type Server struct {
	config   Config
	opts     avatarcrop.Options
	loader   *source.Loader
	registry *prometheus.Registry
	metrics  *metrics
	router   *gin.Engine
	logger   *zap.Logger
}

// New builds the router. opts supplies the crop, output and upload limits.
func New(cfg Config, opts avatarcrop.Options) (*Server, error) {
	if cfg.Listen == "" {
		cfg.Listen = defaultListen
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = defaultReadHeaderTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	if err := opts.Cropper.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cropper config: %w", err)
	}
	if _, err := processing.NewProcessorWithOptions(opts.Output); err != nil {
		return nil, fmt.Errorf("invalid output options: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		config:   cfg,
		opts:     opts,
		loader:   source.NewWithConfig(opts.Source),
		registry: prometheus.NewRegistry(),
		logger:   logger,
	}
	s.metrics = newMetrics(s.registry)

	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if err := r.SetTrustedProxies(nil); err != nil {
		return nil, fmt.Errorf("SetTrustedProxies(): %w", err)
	}
	if len(cfg.CorsOrigins) > 0 {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = cfg.CorsOrigins
		corsConfig.AllowCredentials = true
		r.Use(cors.New(corsConfig))
	}
	r.Use(s.observe())

	s.SetupRouter(r)
	s.router = r

	return s, nil
}

// SetupRouter registers the service routes on router
func (s *Server) SetupRouter(router *gin.Engine) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": avatarcrop.Version})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	api := router.Group("/api/v1")
	{
		api.POST("/sources", s.postSourceAction)
		api.POST("/crops", s.postCropAction)
	}
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Registry returns the metrics registry served on /metrics
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP listener started", zap.String("listen", s.config.Listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("HTTP listener stopped")
	return nil
}

type sourceResponse struct {
	Image  string            `json:"image"`
	Source types.SourceImage `json:"source"`
	Region types.CropRegion  `json:"region"`
	Layout mapper.Layout     `json:"layout"`
}

type cropRequest struct {
	Image        string            `json:"image" binding:"required"`
	Region       *types.CropRegion `json:"region" binding:"required"`
	ViewportSize float64           `json:"viewportSize"`
	Format       string            `json:"format"`
	Quality      int               `json:"quality"`
}

type cropResponse struct {
	Image    string           `json:"image"`
	Source   types.SourceRect `json:"source"`
	Layout   mapper.Layout    `json:"layout"`
	Overflow bool             `json:"overflow"`
}

func invalidParams(field, code, msg string) gin.H {
	return gin.H{"invalid_params": gin.H{field: map[string]string{code: msg}}}
}

func (s *Server) postSourceAction(c *gin.Context) {
	file, err := c.FormFile(ImageField)
	if err != nil {
		c.JSON(http.StatusBadRequest, invalidParams(ImageField, "fileIsRequired", err.Error()))
		return
	}

	limit := s.loader.Config().MaxFileSize
	if limit > 0 && file.Size > limit {
		c.JSON(http.StatusBadRequest, invalidParams(ImageField, "fileFilesSizeTooBig", fmt.Sprintf(
			"File size must be less than '%d' but '%d' were detected", limit, file.Size)))
		return
	}

	handle, err := file.Open()
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	defer handle.Close()

	src, _, err := s.loader.Load(handle)
	if err != nil {
		s.sourceError(c, err)
		return
	}

	cfg := s.opts.Cropper
	layout, err := mapper.Contain(float64(src.NaturalWidth), float64(src.NaturalHeight), 1, cfg.ViewportSize)
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, sourceResponse{
		Image:  src.DataURI,
		Source: src,
		Region: cropper.DefaultRegion(cfg),
		Layout: layout,
	})
}

func (s *Server) postCropAction(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cropBodyLimit())

	var req cropRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, invalidParams(ImageField, "fileFilesSizeTooBig", fmt.Sprintf(
				"Request body must be less than '%d' bytes", tooLarge.Limit)))
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg := s.opts.Cropper
	if req.ViewportSize > 0 {
		cfg.ViewportSize = req.ViewportSize
		if err := cfg.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, invalidParams("viewportSize", "invalid", err.Error()))
			return
		}
	}
	if err := cropper.ValidateRegion(*req.Region, cfg); err != nil {
		c.JSON(http.StatusBadRequest, invalidParams("region", "invalid", err.Error()))
		return
	}

	out := s.opts.Output
	if req.Format != "" {
		out.Format = req.Format
	}
	if req.Quality != 0 {
		out.Quality = req.Quality
	}
	processor, err := processing.NewProcessorWithOptions(out)
	if err != nil {
		c.JSON(http.StatusBadRequest, invalidParams("format", "invalid", err.Error()))
		return
	}
	processor.SetLogger(s.logger)

	src, img, err := s.loader.LoadDataURI(req.Image)
	if err != nil {
		s.sourceError(c, err)
		return
	}

	rect, layout, err := mapper.Map(src, *req.Region, cfg.ViewportSize)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	timer := prometheus.NewTimer(s.metrics.rasterize)
	cropped, err := processor.Rasterize(img, rect)
	if err != nil {
		timer.ObserveDuration()
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	uri, err := processor.EncodeDataURI(cropped)
	timer.ObserveDuration()
	if err != nil {
		_ = c.Error(err)
		c.String(http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, cropResponse{
		Image:    uri,
		Source:   rect,
		Layout:   layout,
		Overflow: mapper.Overflows(rect, src.NaturalWidth, src.NaturalHeight),
	})
}

// cropBodyLimit bounds a crop request: the base64 form of the largest
// accepted upload plus slack.
func (s *Server) cropBodyLimit() int64 {
	limit := s.loader.Config().MaxFileSize
	if limit <= 0 {
		limit = source.DefaultMaxFileSize
	}
	return (limit+2)/3*4 + cropBodySlack
}

func (s *Server) sourceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, source.ErrFileTooLarge):
		c.JSON(http.StatusBadRequest, invalidParams(ImageField, "fileFilesSizeTooBig", err.Error()))
	case errors.Is(err, source.ErrNotImage), errors.Is(err, source.ErrUnsupported):
		c.JSON(http.StatusBadRequest, invalidParams(ImageField, "fileIsImageFalseType", err.Error()))
	case errors.Is(err, source.ErrTooManyPixels):
		c.JSON(http.StatusBadRequest, invalidParams(ImageField, "fileImageSizeTooBig", err.Error()))
	case errors.Is(err, source.ErrTooSmall):
		c.JSON(http.StatusBadRequest, invalidParams(ImageField, "fileImageSizeTooSmall", err.Error()))
	default:
		c.JSON(http.StatusBadRequest, invalidParams(ImageField, "fileIsInvalid", err.Error()))
	}
}
