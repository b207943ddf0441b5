package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"gradebook-server-go/gradebook"
	"gradebook-server-go/logger"
	"gradebook-server-go/models"
	"gradebook-server-go/sheets"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func quietLogger() *logger.Logger {
	return logger.NewWithWriter("error", io.Discard)
}

func testLayout(t *testing.T) sheets.Layout {
	t.Helper()
	l, err := sheets.NewLayout("A3:F27", "A2", "")
	require.NoError(t, err)
	return l
}

func newRouter(h *APIHandler) *gin.Engine {
	router := gin.New()
	h.RegisterRoutes(router)
	return router
}

type evaluateResponse struct {
	Course   models.CourseConfig `json:"course"`
	Students int                 `json:"students"`
	ByStatus map[string]int      `json:"byStatus"`
	Results  []struct {
		ID         string   `json:"id"`
		Average    *float64 `json:"average"`
		Status     string   `json:"status"`
		FinalGrade int      `json:"finalGrade"`
	} `json:"results"`
}

func TestPing(t *testing.T) {
	router := newRouter(NewAPIHandler(nil, testLayout(t), quietLogger()))

	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Pong!")
}

func TestEvaluate(t *testing.T) {
	router := newRouter(NewAPIHandler(nil, testLayout(t), quietLogger()))

	body := `{
		"totalClasses": "Total de aulas no semestre: 40",
		"students": [
			{"id": "1", "p1": 60, "p2": 60, "p3": 60, "absences": 0},
			{"id": "2", "p1": "70", "p2": "70", "p3": "70", "absences": "10"},
			{"id": "3", "p1": 50, "p2": 50, "p3": 50, "absences": 11},
			{"id": "4", "p1": 10, "p2": 20, "p3": 30, "absences": 0},
			{"id": "5", "p1": "", "p2": 70, "p3": 70, "absences": 0}
		]
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/evaluate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp evaluateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.CourseConfig{TotalClasses: 40, AllowedAbsences: 10}, resp.Course)
	assert.Equal(t, 5, resp.Students)
	require.Len(t, resp.Results, 5)

	wantStatus := []string{"Exame Final", "Aprovado", "Reprovado por Falta", "Reprovado por Nota", "Aprovado"}
	wantGrade := []int{65, 0, 0, 0, 0}
	for i, r := range resp.Results {
		assert.Equal(t, wantStatus[i], r.Status, "student %s", r.ID)
		assert.Equal(t, wantGrade[i], r.FinalGrade, "student %s", r.ID)
	}
	assert.Nil(t, resp.Results[4].Average)
	assert.Equal(t, 2, resp.ByStatus["Aprovado"])
}

func TestEvaluate_NumericTotal(t *testing.T) {
	router := newRouter(NewAPIHandler(nil, testLayout(t), quietLogger()))

	req := httptest.NewRequest(http.MethodPost, "/api/evaluate", strings.NewReader(`{"totalClasses": 40, "students": []}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp evaluateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 10, resp.Course.AllowedAbsences)
	assert.Empty(t, resp.Results)
}

func TestEvaluate_BadRequests(t *testing.T) {
	router := newRouter(NewAPIHandler(nil, testLayout(t), quietLogger()))

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing total", `{"students": []}`},
		{"no integer in total", `{"totalClasses": "Total de aulas", "students": []}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/evaluate", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestTriggerRun_NoService(t *testing.T) {
	router := newRouter(NewAPIHandler(nil, testLayout(t), quietLogger()))

	req := httptest.NewRequest(http.MethodPost, "/api/runs", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

type memorySheet struct {
	layout  sheets.Layout
	total   string
	rows    [][]any
	written []models.Result
}

func (m *memorySheet) Layout() sheets.Layout { return m.layout }

func (m *memorySheet) FetchRows(context.Context) ([][]any, error) { return m.rows, nil }

func (m *memorySheet) FetchTotalClassesText(context.Context) (string, error) { return m.total, nil }

func (m *memorySheet) WriteResults(_ context.Context, results []models.Result) (int, error) {
	m.written = results
	return len(results) * 2, nil
}

func TestTriggerRun(t *testing.T) {
	sheet := &memorySheet{
		layout: testLayout(t),
		total:  "40",
		rows: [][]any{
			{"P1", "P2", "P3", "Faltas"},
			{60.0, 60.0, 60.0, 0.0},
		},
	}
	svc := gradebook.NewService(sheet, quietLogger())
	router := newRouter(NewAPIHandler(svc, testLayout(t), quietLogger()))

	req := httptest.NewRequest(http.MethodPost, "/api/runs", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"updatedCells":2`)
	require.Len(t, sheet.written, 1)
	assert.Equal(t, 65, sheet.written[0].FinalGrade)
}

func TestTriggerRun_ParseError(t *testing.T) {
	sheet := &memorySheet{layout: testLayout(t), total: "sem total"}
	svc := gradebook.NewService(sheet, quietLogger())
	router := newRouter(NewAPIHandler(svc, testLayout(t), quietLogger()))

	req := httptest.NewRequest(http.MethodPost, "/api/runs", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Nil(t, sheet.written)
}

func uploadRequest(t *testing.T, workbook []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	part, err := mw.CreateFormFile("file", "notas.xlsx")
	require.NoError(t, err)
	_, err = part.Write(workbook)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/import/workbook", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func testWorkbook(t *testing.T, sheet, totalCell string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", sheet))
	require.NoError(t, f.SetCellValue(sheet, totalCell, "Total de aulas no semestre: 40"))
	rows := [][]any{
		{"Matricula", "Aluno", "Faltas", "P1", "P2", "P3"},
		{1, "Ana", 0, 60, 60, 60},
		{2, "Bia", 11, 90, 90, 90},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, 3+i)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow(sheet, cell, &r))
	}
	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

func TestImportWorkbook(t *testing.T) {
	router := newRouter(NewAPIHandler(nil, testLayout(t), quietLogger()))

	req := uploadRequest(t, testWorkbook(t, "turma", "A2"), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Equal(t, "2", w.Header().Get("X-Gradebook-Students"))

	out, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer out.Close()

	status, err := out.GetCellValue("turma", "G4")
	require.NoError(t, err)
	assert.Equal(t, "Exame Final", status)
	grade, err := out.GetCellValue("turma", "H4")
	require.NoError(t, err)
	assert.Equal(t, "65", grade)
	status, err = out.GetCellValue("turma", "G5")
	require.NoError(t, err)
	assert.Equal(t, "Reprovado por Falta", status)
}

func TestImportWorkbook_FormRanges(t *testing.T) {
	router := newRouter(NewAPIHandler(nil, testLayout(t), quietLogger()))

	req := uploadRequest(t, testWorkbook(t, "turma", "B1"), map[string]string{
		"dataRange":        "turma!A3:F10",
		"totalClassesCell": "B1",
		"resultRange":      "J4:K10",
	})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer out.Close()

	status, err := out.GetCellValue("turma", "J4")
	require.NoError(t, err)
	assert.Equal(t, "Exame Final", status)
}

func TestImportWorkbook_NoTotal(t *testing.T) {
	router := newRouter(NewAPIHandler(nil, testLayout(t), quietLogger()))

	req := uploadRequest(t, testWorkbook(t, "turma", "C1"), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestImportWorkbook_NoFile(t *testing.T) {
	router := newRouter(NewAPIHandler(nil, testLayout(t), quietLogger()))

	req := httptest.NewRequest(http.MethodPost, "/api/import/workbook", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
