package httpapi

import (
	"fmt"
	"html/template"
	"math"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/feedback_kiosk/internal/clock"
	"github.com/MarkoPoloResearchLab/feedback_kiosk/internal/export"
	"github.com/MarkoPoloResearchLab/feedback_kiosk/internal/model"
	"github.com/MarkoPoloResearchLab/feedback_kiosk/internal/report"
	"github.com/MarkoPoloResearchLab/feedback_kiosk/internal/storage"
)

const (
	// AdminPageSize is the number of rows per admin table page.
	AdminPageSize = 10
	// maxAdminPage keeps the row offset within a 32-bit int.
	maxAdminPage = math.MaxInt32/AdminPageSize + 1

	headerContentDisposition = "Content-Disposition"
	contentDispositionFormat = `attachment; filename="%s"`

	logEventListFeedback   = "list_feedback"
	logEventQueryStats     = "query_stats"
	logEventExportFeedback = "export_feedback"
)

// AdminHandlers serve the admin dashboard, its statistics API and exports.
type AdminHandlers struct {
	store    *storage.FeedbackStore
	engine   *report.Engine
	clock    clock.Clock
	logger   *zap.Logger
	template *template.Template
}

type adminTemplateData struct {
	Day           string
	Rows          []model.FeedbackEvent
	Total         int64
	Page          int
	Pages         int
	PreviousURL   string
	NextURL       string
	ExportCSVURL  string
	ExportTextURL string
	AdminPath     string
	LogoutPath    string
	StatsPath     string
	Grades        []gradeOption
}

type statsResponse struct {
	OK        bool                 `json:"ok"`
	Day       *string              `json:"day"`
	Totals    model.GradeCounts    `json:"totals"`
	Percents  report.GradePercents `json:"percents"`
	ByWeekday []model.WeekdayCount `json:"by_weekday"`
	Last7     []model.DailyCount   `json:"last7"`
	Compare   *report.Comparison   `json:"compare"`
}

func NewAdminHandlers(store *storage.FeedbackStore, engine *report.Engine, serverClock clock.Clock, logger *zap.Logger) *AdminHandlers {
	if serverClock == nil {
		serverClock = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandlers{
		store:    store,
		engine:   engine,
		clock:    serverClock,
		logger:   logger,
		template: parseTemplate(adminTemplateName, adminTemplateHTML),
	}
}

// RenderAdmin lists stored feedback newest first, one page at a time.
func (handlers *AdminHandlers) RenderAdmin(context *gin.Context) {
	day, dayErr := parseDayQuery(context, queryKeyDay)
	if dayErr != nil {
		context.String(http.StatusBadRequest, messageInvalidDay)
		return
	}
	page := parsePageQuery(context)

	rows, total, listErr := handlers.store.ListFiltered(context.Request.Context(), day, (page-1)*AdminPageSize, AdminPageSize)
	if listErr != nil {
		handlers.logger.Error(logEventListFeedback, zap.String("request_id", RequestIDFromContext(context)), zap.Error(listErr))
		context.String(http.StatusInternalServerError, messageServerError)
		return
	}

	pages := PageCount(total, AdminPageSize)
	data := adminTemplateData{
		Day:           day.String(),
		Rows:          rows,
		Total:         total,
		Page:          page,
		Pages:         pages,
		ExportCSVURL:  withDayQuery(AdminExportCSVPath, day, 0),
		ExportTextURL: withDayQuery(AdminExportTextPath, day, 0),
		AdminPath:     AdminPagePath,
		LogoutPath:    AdminLogoutPath,
		StatsPath:     StatsAPIPath,
		Grades:        gradeOptions(),
	}
	if page > 1 {
		data.PreviousURL = withDayQuery(AdminPagePath, day, min(page-1, max(pages, 1)))
	}
	if page < pages {
		data.NextURL = withDayQuery(AdminPagePath, day, page+1)
	}

	if renderErr := renderHTML(context, http.StatusOK, handlers.template, data); renderErr != nil {
		handlers.logger.Error(logEventRenderTemplate, zap.String("template", adminTemplateName), zap.Error(renderErr))
	}
}

// Stats returns grade totals, percentages, weekday and rolling-window distributions,
// plus an optional two-day comparison.
func (handlers *AdminHandlers) Stats(context *gin.Context) {
	day, dayErr := parseDayQuery(context, queryKeyDay)
	compareDay1, day1Err := parseDayQuery(context, queryKeyDay1)
	compareDay2, day2Err := parseDayQuery(context, queryKeyDay2)
	if dayErr != nil || day1Err != nil || day2Err != nil {
		respondJSON(context, http.StatusBadRequest, false, messageInvalidDay)
		return
	}

	result, buildErr := handlers.engine.Build(context.Request.Context(), report.Query{
		Day:         day,
		CompareDay1: compareDay1,
		CompareDay2: compareDay2,
	})
	if buildErr != nil {
		handlers.logger.Error(logEventQueryStats, zap.String("request_id", RequestIDFromContext(context)), zap.Error(buildErr))
		respondJSON(context, http.StatusInternalServerError, false, messageServerError)
		return
	}

	response := statsResponse{
		OK:        true,
		Totals:    result.Totals,
		Percents:  result.Percents,
		ByWeekday: result.ByWeekday,
		Last7:     result.Last7,
		Compare:   result.Compare,
	}
	if !day.IsZero() {
		selectedDay := day.String()
		response.Day = &selectedDay
	}
	context.JSON(http.StatusOK, response)
}

func (handlers *AdminHandlers) ExportCSV(context *gin.Context) {
	handlers.exportFeedback(context, export.FormCSV)
}

func (handlers *AdminHandlers) ExportText(context *gin.Context) {
	handlers.exportFeedback(context, export.FormPlainText)
}

func (handlers *AdminHandlers) exportFeedback(context *gin.Context, form export.Form) {
	day, dayErr := parseDayQuery(context, queryKeyDay)
	if dayErr != nil {
		context.String(http.StatusBadRequest, messageInvalidDay)
		return
	}

	requestContext := context.Request.Context()
	total, countErr := handlers.store.CountFiltered(requestContext, day)
	if countErr != nil {
		handlers.logger.Error(logEventExportFeedback, zap.String("request_id", RequestIDFromContext(context)), zap.Error(countErr))
		context.String(http.StatusInternalServerError, messageServerError)
		return
	}

	context.Header("Content-Type", form.ContentType())
	context.Header(headerContentDisposition, fmt.Sprintf(contentDispositionFormat, export.FileName(form, day)))
	context.Status(http.StatusOK)

	metadata := export.Metadata{Day: day, Total: total, GeneratedAt: handlers.clock.Now()}
	source := func(visit func(model.FeedbackEvent) error) error {
		return handlers.store.StreamFiltered(requestContext, day, visit)
	}
	if writeErr := export.Write(context.Writer, form, metadata, source); writeErr != nil {
		handlers.logger.Error(logEventExportFeedback,
			zap.String("request_id", RequestIDFromContext(context)),
			zap.String("form", string(form)),
			zap.Error(writeErr),
		)
	}
}

// PageCount returns how many pages of pageSize rows hold total rows.
func PageCount(total int64, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}

func withDayQuery(path string, day model.Day, page int) string {
	query := url.Values{}
	if !day.IsZero() {
		query.Set(queryKeyDay, day.String())
	}
	if page > 0 {
		query.Set(queryKeyPage, strconv.Itoa(page))
	}
	if len(query) == 0 {
		return path
	}
	return path + "?" + query.Encode()
}
