package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/stockledger/internal/domain/apperr"
	"github.com/mamadbah2/stockledger/internal/repository/sheets"
	"github.com/mamadbah2/stockledger/internal/service/importer"
)

const (
	defaultCSVActor   = "csv import"
	defaultSheetActor = "sheet import"
)

// ImportHandler accepts bulk stock adjustment feeds.
type ImportHandler struct {
	importer       *importer.Service
	sheets         sheets.Reader
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewImportHandler constructs the HTTP handler adapter. sheetReader may be nil
// when spreadsheet imports are not configured.
func NewImportHandler(svc *importer.Service, sheetReader sheets.Reader, maxUploadBytes int64, logger *zap.Logger) *ImportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportHandler{importer: svc, sheets: sheetReader, maxUploadBytes: maxUploadBytes, logger: logger}
}

// ImportCSV applies an uploaded CSV file (multipart field "file").
func (h *ImportHandler) ImportCSV(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload exceeds size limit"})
			return
		}
		writeError(c, h.logger, apperr.Validation("a CSV file is required in form field \"file\""))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		writeError(c, h.logger, apperr.Validation("uploaded file is unreadable"))
		return
	}
	defer file.Close()

	src, err := importer.NewCSVSource(file)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	h.run(c, src, actorOr(c.PostForm("updatedBy"), defaultCSVActor))
}

// ImportSheet applies a range of the configured import spreadsheet.
func (h *ImportHandler) ImportSheet(c *gin.Context) {
	if h.sheets == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "spreadsheet import is not configured"})
		return
	}

	var req sheetImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	src, err := importer.NewSheetSource(c.Request.Context(), h.sheets, req.Range)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	h.run(c, src, actorOr(req.UpdatedBy, defaultSheetActor))
}

// SampleCSV downloads the import template.
func (h *ImportHandler) SampleCSV(c *gin.Context) {
	c.Header("Content-Disposition", `attachment; filename="sample.csv"`)
	c.Header("Content-Type", "text/csv")
	c.Status(http.StatusOK)
	if err := importer.SampleCSV(c.Writer); err != nil {
		h.logger.Error("failed writing sample csv", zap.Error(err))
	}
}

func (h *ImportHandler) run(c *gin.Context, src importer.RowSource, actor string) {
	summary, err := h.importer.Import(c.Request.Context(), src, actor)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func actorOr(actor, fallback string) string {
	if strings.TrimSpace(actor) == "" {
		return fallback
	}
	return actor
}
