package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"gradebook-server-go/gradebook"
	"gradebook-server-go/grading"
	"gradebook-server-go/logger"
	"gradebook-server-go/models"
	"gradebook-server-go/sheets"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// APIHandler holds the dependencies for API handlers
type APIHandler struct {
	Service *gradebook.Service // nil when no sheet is configured
	Layout  sheets.Layout      // default ranges for uploaded workbooks
	Columns sheets.Columns
	log     *logger.Logger
}

// NewAPIHandler creates a new APIHandler
func NewAPIHandler(service *gradebook.Service, layout sheets.Layout, log *logger.Logger) *APIHandler {
	return &APIHandler{
		Service: service,
		Layout:  layout,
		Columns: sheets.DefaultColumns,
		log:     log.WithModule("api"),
	}
}

// RegisterRoutes mounts the API under /api
func (h *APIHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	{
		api.POST("/evaluate", h.Evaluate)
		api.POST("/runs", h.TriggerRun)
		api.POST("/import/workbook", h.ImportWorkbook)
		api.GET("/ping", PingHandler)
	}
}

// StudentInput is one student in an evaluate request. Scores and absences
// accept numbers or strings; blank or non-numeric values count as missing.
type StudentInput struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	P1       any    `json:"p1"`
	P2       any    `json:"p2"`
	P3       any    `json:"p3"`
	Absences any    `json:"absences"`
}

// EvaluateRequest is the body of POST /api/evaluate
type EvaluateRequest struct {
	TotalClasses any            `json:"totalClasses" binding:"required"`
	Students     []StudentInput `json:"students"`
}

// --- Evaluation Handlers ---

// Evaluate handles POST /api/evaluate
func (h *APIHandler) Evaluate(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	total, err := grading.ParseTotalClasses(fmt.Sprint(req.TotalClasses))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	course := grading.NewCourseConfig(total)

	records := make([]models.StudentRecord, len(req.Students))
	for i, s := range req.Students {
		records[i] = models.StudentRecord{
			ID:       s.ID,
			Name:     s.Name,
			P1:       grading.ParseScore(s.P1),
			P2:       grading.ParseScore(s.P2),
			P3:       grading.ParseScore(s.P3),
			Absences: grading.ParseAbsences(s.Absences),
		}
	}

	c.JSON(http.StatusOK, models.NewReport("", course, grading.EvaluateAll(records, course)))
}

// TriggerRun handles POST /api/runs
func (h *APIHandler) TriggerRun(c *gin.Context) {
	if h.Service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "No spreadsheet configured"})
		return
	}

	report, err := h.Service.Run(c.Request.Context())
	if err != nil {
		c.JSON(runErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

// --- Import Handler ---

// ImportWorkbook handles POST /api/import/workbook. The uploaded workbook is
// returned with the result columns filled in.
func (h *APIHandler) ImportWorkbook(c *gin.Context) {
	layout, err := h.uploadLayout(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Error retrieving uploaded file: " + err.Error()})
		return
	}
	defer file.Close()

	log := h.log.WithField("filename", header.Filename)
	log.Info("Received workbook upload", "range", layout.Data.String())

	wb, err := sheets.ReadWorkbook(file, layout)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer wb.Close()

	ctx := c.Request.Context()
	report, err := gradebook.EvaluateSheet(ctx, wb, wb.Layout(), h.Columns)
	if err != nil {
		log.WithError(err).Warn("Failed to evaluate uploaded workbook")
		c.JSON(runErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	if _, err := wb.WriteResults(ctx, report.Results); err != nil {
		log.WithError(err).Error("Failed to write results into uploaded workbook")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	var buf bytes.Buffer
	if _, err := wb.WriteTo(&buf); err != nil {
		log.WithError(err).Error("Failed to serialize workbook")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build workbook"})
		return
	}

	log.Info("Workbook evaluated", "students", report.Students)
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": header.Filename}))
	c.Header("X-Gradebook-Students", strconv.Itoa(report.Students))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// uploadLayout applies optional form overrides to the default ranges
func (h *APIHandler) uploadLayout(c *gin.Context) (sheets.Layout, error) {
	data := c.PostForm("dataRange")
	total := c.PostForm("totalClassesCell")
	result := c.PostForm("resultRange")
	if data == "" && total == "" && result == "" {
		return h.Layout, nil
	}
	if data == "" {
		data = h.Layout.Data.String()
	}
	if total == "" {
		total = h.Layout.TotalClasses.String()
	}
	return sheets.NewLayout(data, total, result)
}

func runErrorStatus(err error) int {
	var perr *grading.ParseError
	var colErr *sheets.ColumnError
	switch {
	case errors.Is(err, gradebook.ErrRunInProgress):
		return http.StatusConflict
	case errors.As(err, &perr), errors.As(err, &colErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

// --- Ping Handler ---

// PingHandler handles GET /api/ping
func PingHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Pong!"})
}
