package httpapi_test

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/feedback_kiosk/internal/httpapi"
	"github.com/MarkoPoloResearchLab/feedback_kiosk/internal/model"
)

type comparePayload struct {
	Day1      string             `json:"day1"`
	Day2      string             `json:"day2"`
	Totals1   map[string]int64   `json:"totals1"`
	Percents1 map[string]float64 `json:"percents1"`
	Totals2   map[string]int64   `json:"totals2"`
	Percents2 map[string]float64 `json:"percents2"`
}

type statsPayload struct {
	OK        bool                 `json:"ok"`
	Day       *string              `json:"day"`
	Totals    map[string]int64     `json:"totals"`
	Percents  map[string]float64   `json:"percents"`
	ByWeekday []model.WeekdayCount `json:"by_weekday"`
	Last7     []model.DailyCount   `json:"last7"`
	Compare   *comparePayload      `json:"compare"`
}

func seedMondayFeedback(testingT *testing.T, api apiHarness) {
	testingT.Helper()
	insertFeedback(testingT, api.store, model.GradeVerySatisfied, testNow)
	insertFeedback(testingT, api.store, model.GradeVerySatisfied, testNow.Add(time.Minute))
	insertFeedback(testingT, api.store, model.GradeSatisfied, testNow.Add(2*time.Minute))
}

func TestPageCount(testingT *testing.T) {
	testCases := []struct {
		total    int64
		expected int
	}{
		{total: 0, expected: 0},
		{total: 1, expected: 1},
		{total: 10, expected: 1},
		{total: 11, expected: 2},
		{total: 23, expected: 3},
	}
	for _, testCase := range testCases {
		require.Equal(testingT, testCase.expected, httpapi.PageCount(testCase.total, httpapi.AdminPageSize))
	}
}

func TestRenderAdminPaginates(testingT *testing.T) {
	api := buildAPIHarness(testingT)
	for index := 0; index < 23; index++ {
		insertFeedback(testingT, api.store, model.GradeSatisfied, testNow.Add(time.Duration(index)*time.Minute))
	}
	cookies := loginCookies(testingT, api.router)

	testCases := []struct {
		name          string
		path          string
		expectedRows  int
		expectedLabel string
		expectNext    bool
		expectPrev    bool
	}{
		{name: "first page", path: "/admin", expectedRows: 10, expectedLabel: "Página 1 de 3", expectNext: true},
		{name: "last page", path: "/admin?page=3", expectedRows: 3, expectedLabel: "Página 3 de 3", expectPrev: true},
		{name: "non numeric page", path: "/admin?page=abc", expectedRows: 10, expectedLabel: "Página 1 de 3", expectNext: true},
		{name: "zero page", path: "/admin?page=0", expectedRows: 10, expectedLabel: "Página 1 de 3", expectNext: true},
		{name: "page beyond end", path: "/admin?page=9", expectedRows: 0, expectedLabel: "Página 9 de 3", expectPrev: true},
		{name: "page near int limit", path: "/admin?page=922337203685477582", expectedRows: 0, expectedLabel: "Página 214748365 de 3", expectPrev: true},
		{name: "page beyond int range", path: "/admin?page=99999999999999999999", expectedRows: 10, expectedLabel: "Página 1 de 3", expectNext: true},
	}

	for _, testCase := range testCases {
		testCase := testCase
		testingT.Run(testCase.name, func(testingT *testing.T) {
			recorder := performRequest(api.router, http.MethodGet, testCase.path, cookies)
			require.Equal(testingT, http.StatusOK, recorder.Code)

			body := recorder.Body.String()
			require.Equal(testingT, testCase.expectedRows, strings.Count(body, "<tr><td>"))
			require.Contains(testingT, body, testCase.expectedLabel)
			require.Contains(testingT, body, "Total: 23")
			require.Equal(testingT, testCase.expectNext, strings.Contains(body, `id="page-next"`))
			require.Equal(testingT, testCase.expectPrev, strings.Contains(body, `id="page-previous"`))
			if testCase.expectedRows == 0 {
				require.Contains(testingT, body, "Sem registos.")
			}
		})
	}
}

func TestRenderAdminShowsNewestFirst(testingT *testing.T) {
	api := buildAPIHarness(testingT)
	insertFeedback(testingT, api.store, model.GradeDissatisfied, testNow)
	insertFeedback(testingT, api.store, model.GradeVerySatisfied, testNow.Add(time.Hour))
	cookies := loginCookies(testingT, api.router)

	body := performRequest(api.router, http.MethodGet, httpapi.AdminPagePath, cookies).Body.String()
	newest := strings.Index(body, "2026-03-02T11:00:00")
	oldest := strings.Index(body, "2026-03-02T10:00:00")
	require.NotEqual(testingT, -1, newest)
	require.NotEqual(testingT, -1, oldest)
	require.Less(testingT, newest, oldest)
	require.Contains(testingT, body, httpapi.GradeLabel(model.GradeVerySatisfied))
}

func TestRenderAdminFiltersByDay(testingT *testing.T) {
	api := buildAPIHarness(testingT)
	seedMondayFeedback(testingT, api)
	insertFeedback(testingT, api.store, model.GradeDissatisfied, testNow.AddDate(0, 0, 1))
	cookies := loginCookies(testingT, api.router)

	recorder := performRequest(api.router, http.MethodGet, "/admin?day=2026-03-03", cookies)
	require.Equal(testingT, http.StatusOK, recorder.Code)
	body := recorder.Body.String()
	require.Contains(testingT, body, "Total: 1")
	require.Equal(testingT, 1, strings.Count(body, "<tr><td>"))
	require.Contains(testingT, body, `href="/admin/export.csv?day=2026-03-03"`)
}

func TestRenderAdminRejectsInvalidDay(testingT *testing.T) {
	api := buildAPIHarness(testingT)
	cookies := loginCookies(testingT, api.router)

	recorder := performRequest(api.router, http.MethodGet, "/admin?day=03-02-2026", cookies)
	require.Equal(testingT, http.StatusBadRequest, recorder.Code)
}

func TestStatsAggregatesFeedback(testingT *testing.T) {
	api := buildAPIHarness(testingT)
	seedMondayFeedback(testingT, api)
	cookies := loginCookies(testingT, api.router)

	recorder := performRequest(api.router, http.MethodGet, httpapi.StatsAPIPath, cookies)
	require.Equal(testingT, http.StatusOK, recorder.Code)

	var payload statsPayload
	decodeJSON(testingT, recorder, &payload)
	require.True(testingT, payload.OK)
	require.Nil(testingT, payload.Day)
	require.Nil(testingT, payload.Compare)
	require.Equal(testingT, map[string]int64{"VERY_SATISFIED": 2, "SATISFIED": 1, "DISSATISFIED": 0}, payload.Totals)
	require.Equal(testingT, map[string]float64{"VERY_SATISFIED": 66.7, "SATISFIED": 33.3, "DISSATISFIED": 0}, payload.Percents)
	require.Equal(testingT, []model.WeekdayCount{{Weekday: "Monday", Total: 3}}, payload.ByWeekday)
	require.Equal(testingT, []model.DailyCount{{Day: "2026-03-02", Total: 3}}, payload.Last7)
}

func TestStatsForEmptyDay(testingT *testing.T) {
	api := buildAPIHarness(testingT)
	seedMondayFeedback(testingT, api)
	cookies := loginCookies(testingT, api.router)

	recorder := performRequest(api.router, http.MethodGet, httpapi.StatsAPIPath+"?day=2026-03-05", cookies)
	require.Equal(testingT, http.StatusOK, recorder.Code)

	var payload statsPayload
	decodeJSON(testingT, recorder, &payload)
	require.NotNil(testingT, payload.Day)
	require.Equal(testingT, "2026-03-05", *payload.Day)
	require.Equal(testingT, map[string]int64{"VERY_SATISFIED": 0, "SATISFIED": 0, "DISSATISFIED": 0}, payload.Totals)
	require.Equal(testingT, map[string]float64{"VERY_SATISFIED": 0, "SATISFIED": 0, "DISSATISFIED": 0}, payload.Percents)
	require.NotNil(testingT, payload.ByWeekday)
	require.Empty(testingT, payload.ByWeekday)
	require.Len(testingT, payload.Last7, 1)
	require.Contains(testingT, recorder.Body.String(), `"by_weekday":[]`)
}

func TestStatsComparesDays(testingT *testing.T) {
	api := buildAPIHarness(testingT)
	seedMondayFeedback(testingT, api)
	insertFeedback(testingT, api.store, model.GradeDissatisfied, testNow.AddDate(0, 0, 1))
	cookies := loginCookies(testingT, api.router)

	recorder := performRequest(api.router, http.MethodGet, httpapi.StatsAPIPath+"?day1=2026-03-02&day2=2026-03-03", cookies)
	require.Equal(testingT, http.StatusOK, recorder.Code)

	var payload statsPayload
	decodeJSON(testingT, recorder, &payload)
	require.NotNil(testingT, payload.Compare)
	require.Equal(testingT, "2026-03-02", payload.Compare.Day1)
	require.Equal(testingT, "2026-03-03", payload.Compare.Day2)
	require.Equal(testingT, int64(2), payload.Compare.Totals1["VERY_SATISFIED"])
	require.Equal(testingT, 66.7, payload.Compare.Percents1["VERY_SATISFIED"])
	require.Equal(testingT, int64(1), payload.Compare.Totals2["DISSATISFIED"])
	require.Equal(testingT, 100.0, payload.Compare.Percents2["DISSATISFIED"])
	require.Equal(testingT, int64(4), payload.Totals["VERY_SATISFIED"]+payload.Totals["SATISFIED"]+payload.Totals["DISSATISFIED"])

	single := performRequest(api.router, http.MethodGet, httpapi.StatsAPIPath+"?day1=2026-03-02", cookies)
	var singlePayload statsPayload
	decodeJSON(testingT, single, &singlePayload)
	require.Nil(testingT, singlePayload.Compare)
}

func TestStatsRejectsInvalidDays(testingT *testing.T) {
	api := buildAPIHarness(testingT)
	cookies := loginCookies(testingT, api.router)

	for _, query := range []string{"?day=yesterday", "?day1=2026-13-01&day2=2026-03-02", "?day1=2026-03-02&day2=2026-02-30"} {
		recorder := performRequest(api.router, http.MethodGet, httpapi.StatsAPIPath+query, cookies)
		require.Equal(testingT, http.StatusBadRequest, recorder.Code, query)
		var response feedbackResponse
		decodeJSON(testingT, recorder, &response)
		require.False(testingT, response.OK)
	}
}

func TestStatsReportsStorageFailure(testingT *testing.T) {
	api := buildAPIHarness(testingT)
	cookies := loginCookies(testingT, api.router)
	closeDatabase(testingT, api.database)

	recorder := performRequest(api.router, http.MethodGet, httpapi.StatsAPIPath, cookies)
	require.Equal(testingT, http.StatusInternalServerError, recorder.Code)
}

func TestExportCSV(testingT *testing.T) {
	api := buildAPIHarness(testingT)
	cookies := loginCookies(testingT, api.router)

	empty := performRequest(api.router, http.MethodGet, httpapi.AdminExportCSVPath, cookies)
	require.Equal(testingT, http.StatusOK, empty.Code)
	require.Equal(testingT, "id,grau,created_at,weekday\n", empty.Body.String())
	require.Contains(testingT, empty.Header().Get("Content-Type"), "text/csv")
	require.Equal(testingT, `attachment; filename="feedback.csv"`, empty.Header().Get("Content-Disposition"))

	seedMondayFeedback(testingT, api)
	insertFeedback(testingT, api.store, model.GradeDissatisfied, testNow.AddDate(0, 0, 1))

	filtered := performRequest(api.router, http.MethodGet, httpapi.AdminExportCSVPath+"?day=2026-03-03", cookies)
	require.Equal(testingT, http.StatusOK, filtered.Code)
	require.Equal(testingT, "id,grau,created_at,weekday\n4,DISSATISFIED,2026-03-03T10:00:00,Tuesday\n", filtered.Body.String())
	require.Equal(testingT, `attachment; filename="feedback-2026-03-03.csv"`, filtered.Header().Get("Content-Disposition"))

	all := performRequest(api.router, http.MethodGet, httpapi.AdminExportCSVPath, cookies)
	lines := strings.Split(strings.TrimSpace(all.Body.String()), "\n")
	require.Len(testingT, lines, 5)
	require.Equal(testingT, "4,DISSATISFIED,2026-03-03T10:00:00,Tuesday", lines[1])
}

func TestExportText(testingT *testing.T) {
	api := buildAPIHarness(testingT)
	seedMondayFeedback(testingT, api)
	cookies := loginCookies(testingT, api.router)

	recorder := performRequest(api.router, http.MethodGet, httpapi.AdminExportTextPath+"?day=2026-03-02", cookies)
	require.Equal(testingT, http.StatusOK, recorder.Code)
	require.Contains(testingT, recorder.Header().Get("Content-Type"), "text/plain")
	require.Equal(testingT, `attachment; filename="feedback-2026-03-02.txt"`, recorder.Header().Get("Content-Disposition"))

	body := recorder.Body.String()
	require.True(testingT, strings.HasPrefix(body, "Feedback export\n"))
	require.Contains(testingT, body, "Filtered by day: 2026-03-02\n")
	require.Contains(testingT, body, "Total records: 3\n")
	require.Contains(testingT, body, "3 | SATISFIED | 2026-03-02T10:02:00 | Monday\n")
}

func TestExportRejectsInvalidDay(testingT *testing.T) {
	api := buildAPIHarness(testingT)
	cookies := loginCookies(testingT, api.router)

	recorder := performRequest(api.router, http.MethodGet, httpapi.AdminExportTextPath+"?day=2026/03/02", cookies)
	require.Equal(testingT, http.StatusBadRequest, recorder.Code)
}
