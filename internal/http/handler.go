package http

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"parking-anpr/internal/config"
	"parking-anpr/internal/domain/parking"
	"parking-anpr/internal/service"
)

// LiveFeed serves the WebSocket stream of session events.
type LiveFeed interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
}

type Handler struct {
	parkingService *service.ParkingService
	feed           LiveFeed
	maxUpload      int64
	log            zerolog.Logger
}

func NewHandler(
	parkingService *service.ParkingService,
	feed LiveFeed,
	cfg config.ServerConfig,
	log zerolog.Logger,
) *Handler {
	maxUpload := cfg.MaxUploadMB << 20
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &Handler{
		parkingService: parkingService,
		feed:           feed,
		maxUpload:      maxUpload,
		log:            log,
	}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	public := r.Group("/")
	{
		public.POST("/upload-entry", h.uploadEntry)
		public.POST("/upload-exit", h.uploadExit)
		public.GET("/health", h.health)
		if h.feed != nil {
			public.GET("/ws", gin.WrapF(h.feed.ServeWS))
		}
	}

	protected := r.Group("/")
	protected.Use(authMiddleware)
	{
		protected.GET("/get-logs", h.listSessions)
		protected.GET("/search-car", h.searchCar)
		protected.GET("/get-stats", h.stats)
		protected.GET("/plate-reads", h.plateReads)
	}
}

func (h *Handler) uploadEntry(c *gin.Context) {
	h.upload(c, parking.EventEntry)
}

func (h *Handler) uploadExit(c *gin.Context) {
	h.upload(c, parking.EventExit)
}

func (h *Handler) upload(c *gin.Context, event parking.EventType) {
	if c.Request.ContentLength > h.maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, errorResponse(fmt.Sprintf("upload exceeds %d bytes", h.maxUpload)))
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)

	upload, err := h.readUpload(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, errorResponse(fmt.Sprintf("upload exceeds %d bytes", h.maxUpload)))
			return
		}
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	var result *service.UploadResult
	if event == parking.EventEntry {
		result, err = h.parkingService.Entry(c.Request.Context(), upload)
	} else {
		result, err = h.parkingService.Exit(c.Request.Context(), upload)
	}
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// readUpload accepts a multipart "image" file, an operator-entered "plate"
// field, or both.
func (h *Handler) readUpload(c *gin.Context) (service.Upload, error) {
	var upload service.Upload

	file, err := c.FormFile("image")
	switch {
	case err == nil:
		data, err := readFile(file)
		if err != nil {
			return upload, err
		}
		upload.Image = data
		upload.ContentType = file.Header.Get("Content-Type")
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		return upload, err
	}

	upload.ManualPlate = strings.TrimSpace(c.PostForm("plate"))
	if len(upload.Image) == 0 && upload.ManualPlate == "" {
		return upload, errors.New("image file is required")
	}
	return upload, nil
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (h *Handler) listSessions(c *gin.Context) {
	var plateQuery *string
	if plate := strings.TrimSpace(c.Query("plate")); plate != "" {
		plateQuery = &plate
	}

	var from, to *string
	if f := strings.TrimSpace(c.Query("from")); f != "" {
		from = &f
	}
	if t := strings.TrimSpace(c.Query("to")); t != "" {
		to = &t
	}

	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	offset := 0
	if o := c.Query("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	sessions, err := h.parkingService.FindSessions(c.Request.Context(), plateQuery, from, to, limit, offset)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(sessions))
}

func (h *Handler) searchCar(c *gin.Context) {
	plateQuery := strings.TrimSpace(c.Query("plate"))
	if plateQuery == "" {
		c.JSON(http.StatusBadRequest, errorResponse("plate parameter is required"))
		return
	}

	sessions, err := h.parkingService.SearchPlate(c.Request.Context(), plateQuery)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(sessions))
}

func (h *Handler) stats(c *gin.Context) {
	stats, err := h.parkingService.Stats(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(stats))
}

func (h *Handler) plateReads(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	reads, err := h.parkingService.RecentPlateReads(c.Request.Context(), limit)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(reads))
}

func (h *Handler) health(c *gin.Context) {
	if err := h.parkingService.Health(c.Request.Context()); err != nil {
		h.log.Warn().Err(err).Msg("health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "down"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "up"})
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, parking.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, parking.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	case errors.Is(err, parking.ErrSessionConflict):
		c.JSON(http.StatusConflict, errorResponse(err.Error()))
	case parking.IsRecognitionFailure(err), errors.Is(err, parking.ErrInvalidDuration):
		c.JSON(http.StatusUnprocessableEntity, errorResponse(err.Error()))
	case errors.Is(err, parking.ErrStorageUnavailable):
		h.log.Error().Err(err).Str("request_id", requestID(c)).Msg("storage unavailable")
		c.JSON(http.StatusServiceUnavailable, errorResponse("storage unavailable"))
	default:
		h.log.Error().Err(err).Str("request_id", requestID(c)).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}
