package httpapi

import (
	"bytes"
	"html/template"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/MarkoPoloResearchLab/feedback_kiosk/internal/model"
)

const (
	KioskPagePath       = "/"
	FeedbackAPIPath     = "/api/feedback"
	StatsAPIPath        = "/api/stats"
	AdminPagePath       = "/admin"
	AdminLoginPath      = "/admin/login"
	AdminLogoutPath     = "/admin/logout"
	AdminExportCSVPath  = "/admin/export.csv"
	AdminExportTextPath = "/admin/export.txt"
	htmlContentType     = "text/html; charset=utf-8"

	jsonKeyOK      = "ok"
	jsonKeyMessage = "message"

	queryKeyDay  = "day"
	queryKeyDay1 = "day1"
	queryKeyDay2 = "day2"
	queryKeyPage = "page"

	messageInvalidDay   = "Data inválida. Use o formato AAAA-MM-DD."
	messageServerError  = "Erro interno. Tente novamente."
	messageRenderFailed = "Não foi possível apresentar a página."

	logEventRenderTemplate = "render_template"
)

var gradeLabels = map[model.Grade]string{
	model.GradeVerySatisfied: "Muito satisfeito",
	model.GradeSatisfied:     "Satisfeito",
	model.GradeDissatisfied:  "Insatisfeito",
}

// GradeLabel returns the display label for grade.
func GradeLabel(grade model.Grade) string {
	if label, ok := gradeLabels[grade]; ok {
		return label
	}
	return grade.String()
}

var templateFunctions = template.FuncMap{
	"gradeLabel": GradeLabel,
}

func respondJSON(context *gin.Context, status int, ok bool, message string) {
	context.JSON(status, gin.H{jsonKeyOK: ok, jsonKeyMessage: message})
}

func renderHTML(context *gin.Context, status int, compiledTemplate *template.Template, data any) error {
	var buffer bytes.Buffer
	if executeErr := compiledTemplate.Execute(&buffer, data); executeErr != nil {
		context.String(http.StatusInternalServerError, messageRenderFailed)
		return executeErr
	}
	context.Data(status, htmlContentType, buffer.Bytes())
	return nil
}

// parseDayQuery reads an optional day filter from the query string.
func parseDayQuery(context *gin.Context, key string) (model.Day, error) {
	return model.ParseDay(context.Query(key))
}

// parsePageQuery returns the 1-based page number; anything unusable means the first page.
// Pages past maxAdminPage are clamped to it.
func parsePageQuery(context *gin.Context) int {
	page, parseErr := strconv.Atoi(context.Query(queryKeyPage))
	if parseErr != nil || page < 1 {
		return 1
	}
	return min(page, maxAdminPage)
}
