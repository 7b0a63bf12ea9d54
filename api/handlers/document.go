package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feichai0017/document-ingest/internal/models"
	"github.com/feichai0017/document-ingest/internal/service/document"
	"github.com/feichai0017/document-ingest/pkg/logger"
)

type DocumentHandler struct {
	service document.DocumentProcessor
	logger  logger.Logger
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Details map[string]any `json:"details,omitempty"`
}

func NewDocumentHandler(service document.DocumentProcessor, logger logger.Logger) *DocumentHandler {
	return &DocumentHandler{
		service: service,
		logger:  logger,
	}
}

// Upload streams the request body into the ingestion pipeline. The body is
// handed over untouched; gin's multipart helpers would buffer it.
func (h *DocumentHandler) Upload(c *gin.Context) {
	res, err := h.service.Ingest(c.Request.Context(), c.GetHeader("Content-Type"), c.Request.Body)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Set("documentId", res.DocumentID)
	c.JSON(http.StatusCreated, res)
}

// GetDocument returns the document record.
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	id := c.Param("id")
	c.Set("documentId", id)

	doc, err := h.service.GetDocument(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, doc)
}

// GetJobStatus returns the state of the document's OCR job.
func (h *DocumentHandler) GetJobStatus(c *gin.Context) {
	id := c.Param("id")
	c.Set("documentId", id)

	status, err := h.service.JobStatus(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, document.ErrJobStatusUnsupported) {
			c.JSON(http.StatusNotImplemented, ErrorResponse{Error: err.Error()})
			return
		}
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// StatusForKind maps an error kind to its HTTP status.
func StatusForKind(kind models.Kind) int {
	switch kind {
	case models.KindUnsupportedMediaType:
		return http.StatusUnsupportedMediaType
	case models.KindMissingFile, models.KindMissingFilename, models.KindTooManyFiles, models.KindMalformedPayload:
		return http.StatusBadRequest
	case models.KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case models.KindClientAborted:
		return http.StatusRequestTimeout
	case models.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *DocumentHandler) handleError(c *gin.Context, err error) {
	e := models.AsError(err)
	status := StatusForKind(e.Kind)

	response := ErrorResponse{Error: e.Message, Details: e.Details}
	if !e.Kind.ClientFacing() {
		response = ErrorResponse{Error: http.StatusText(http.StatusInternalServerError)}
		logger.FromContext(c.Request.Context(), h.logger).Error("Request failed",
			logger.String("path", c.Request.URL.Path),
			logger.String("kind", string(e.Kind)),
			logger.Error(err),
		)
	}

	c.JSON(status, response)
}
