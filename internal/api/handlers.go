package api

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pyqportal/internal/auth"
	"pyqportal/internal/catalog"
	"pyqportal/internal/intake"
	"pyqportal/internal/models"
)

const (
	uploadFileField = "pdf"
	// form values are small; anything above this is spooled to disk by mime/multipart
	multipartMemory = 8 << 20
	// headroom over the file limit for boundaries and text fields
	formOverhead = 1 << 20
)

// Handler wires HTTP routes to the intake pipeline and the catalog.
type Handler struct {
	uploads  *intake.Service
	catalog  *catalog.Service
	auth     *auth.Service
	log      *zap.Logger
	maxBytes int64
}

// NewHandler constructs a Handler instance. maxBytes is the largest accepted attachment.
func NewHandler(uploads *intake.Service, cat *catalog.Service, authService *auth.Service, maxBytes int64, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		uploads:  uploads,
		catalog:  cat,
		auth:     authService,
		log:      log,
		maxBytes: maxBytes,
	}
}

// NewRouter builds the gin engine with the standard middleware chain and all routes.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(RequestLogger(h.log))
	router.Use(CORS())
	h.RegisterRoutes(router)
	return router
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/", h.root)
	router.GET("/health", h.health)

	bodyLimit := int64(0)
	if h.maxBytes > 0 {
		bodyLimit = h.maxBytes + formOverhead
	}
	router.POST("/upload", MaxBodySize(bodyLimit), h.upload)

	router.GET("/pyqs", h.listPYQs)
	router.GET("/pyqs/search", h.searchPYQs)
	router.GET("/pyqs/:id", h.getPYQ)
	router.GET("/pyqs/:id/download", h.downloadPYQ)
	router.GET("/filter-options", h.filterOptions)

	admin := router.Group("/admin")
	admin.Use(h.auth.Middleware())
	admin.POST("/reindex", h.reindex)
}

func (h *Handler) root(c *gin.Context) {
	c.String(http.StatusOK, "Working")
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) upload(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{
				Error: fmt.Sprintf("File is too large: request exceeds the %d byte limit", tooLarge.Limit),
				Kind:  string(intake.KindFileTooLarge),
			})
			return
		}
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid multipart form"})
		return
	}
	if c.Request.MultipartForm != nil {
		defer c.Request.MultipartForm.RemoveAll()
	}

	fields := intake.Fields{}
	for _, key := range []string{intake.FieldYear, intake.FieldSemester, intake.FieldSubject, intake.FieldExamType, intake.FieldCourseCode} {
		fields[key] = c.PostForm(key)
	}

	var attachment *intake.Attachment
	header, err := c.FormFile(uploadFileField)
	switch {
	case err == nil:
		file, err := header.Open()
		if err != nil {
			h.log.Error("open multipart file", zap.Error(err))
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid multipart form"})
			return
		}
		defer file.Close()
		attachment = newAttachment(header, file)
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid multipart form"})
		return
	}

	stored, err := h.uploads.Submit(c.Request.Context(), fields, attachment)
	if err != nil {
		h.writeIntakeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.UploadResponse{Msg: "File Uploaded", File: stored})
}

func newAttachment(header *multipart.FileHeader, file multipart.File) *intake.Attachment {
	contentType := header.Header.Get("Content-Type")
	// parameters such as charset are not part of the media type
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return &intake.Attachment{
		FieldName:   uploadFileField,
		Filename:    header.Filename,
		ContentType: strings.ToLower(strings.TrimSpace(contentType)),
		Size:        header.Size,
		Content:     file,
	}
}

func (h *Handler) writeIntakeError(c *gin.Context, err error) {
	var ie *intake.Error
	if !errors.As(err, &ie) {
		h.log.Error("upload failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "internal server error"})
		return
	}
	if ie.Kind == intake.KindStorageFailure {
		_ = c.Error(err)
	}
	c.JSON(ie.StatusCode(), models.ErrorResponse{
		Error:   ie.Message,
		Kind:    string(ie.Kind),
		Missing: ie.Missing,
	})
}

func (h *Handler) listPYQs(c *gin.Context) {
	var q catalog.Query
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters"})
		return
	}
	page, err := h.catalog.List(c.Request.Context(), q)
	if err != nil {
		h.catalogFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) searchPYQs(c *gin.Context) {
	var q catalog.Query
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters"})
		return
	}
	term := strings.TrimSpace(q.Search)
	if term == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
		return
	}
	page, err := h.catalog.Search(c.Request.Context(), term, q)
	if err != nil {
		h.catalogFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) getPYQ(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	file, err := h.catalog.Get(c.Request.Context(), id)
	if err != nil {
		h.catalogFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, file)
}

func (h *Handler) downloadPYQ(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	file, rc, err := h.catalog.Open(c.Request.Context(), id)
	if err != nil {
		h.catalogFailure(c, err)
		return
	}
	defer rc.Close()
	c.DataFromReader(http.StatusOK, file.Size, intake.PDFContentType, rc, map[string]string{
		"Content-Disposition": `attachment; filename="` + downloadName(file) + `"`,
	})
}

func (h *Handler) filterOptions(c *gin.Context) {
	opts, err := h.catalog.Facets(c.Request.Context())
	if err != nil {
		h.catalogFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, opts)
}

func (h *Handler) reindex(c *gin.Context) {
	if idx, ok := auth.TokenIndexFromContext(c); ok {
		h.log.Info("admin reindex requested", zap.Int("token_index", idx))
	}
	if err := h.catalog.ReindexAsync(c.Request.Context()); err != nil {
		if errors.Is(err, catalog.ErrReindexRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		h.catalogFailure(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "reindex started"})
}

func (h *Handler) catalogFailure(c *gin.Context, err error) {
	if errors.Is(err, catalog.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "paper not found"})
		return
	}
	h.log.Error("catalog request failed", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func downloadName(f *models.StoredFile) string {
	name := f.OriginalName
	if name == "" {
		name = f.Filename
	}
	return strings.NewReplacer(`"`, "", "\r", "", "\n", "").Replace(name)
}
