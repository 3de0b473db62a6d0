package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/feedback_kiosk/internal/clock"
	"github.com/MarkoPoloResearchLab/feedback_kiosk/internal/httpapi"
	"github.com/MarkoPoloResearchLab/feedback_kiosk/internal/model"
	"github.com/MarkoPoloResearchLab/feedback_kiosk/internal/ratelimit"
	"github.com/MarkoPoloResearchLab/feedback_kiosk/internal/report"
	"github.com/MarkoPoloResearchLab/feedback_kiosk/internal/storage"
	"github.com/MarkoPoloResearchLab/feedback_kiosk/internal/testutil"
)

const (
	testAdminPassword = "kiosk-admin-pass"
	testSessionSecret = "test-session-secret-0123456789abcdef"
	headerForwarded   = "X-Forwarded-For"
	headerLocation    = "Location"
)

var testNow = time.Date(2026, time.March, 2, 10, 0, 0, 0, time.Local)

type apiHarness struct {
	router   *gin.Engine
	database *gorm.DB
	store    *storage.FeedbackStore
	clock    *clock.ManagedClock
	limiter  *ratelimit.CooldownLimiter
	gate     *httpapi.AdminGate
}

func buildAPIHarness(testingT *testing.T) apiHarness {
	testingT.Helper()

	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	database := testutil.OpenMigratedDatabase(testingT)
	store := storage.NewFeedbackStore(database)
	managedClock := clock.NewManaged(testNow)
	limiter := ratelimit.NewCooldownLimiter(ratelimit.Config{Clock: managedClock})
	gate, gateErr := httpapi.NewAdminGate(logger, testAdminPassword, testSessionSecret)
	require.NoError(testingT, gateErr)

	publicHandlers := httpapi.NewPublicHandlers(store, limiter, managedClock, logger)
	adminHandlers := httpapi.NewAdminHandlers(store, report.NewEngine(store), managedClock, logger)
	loginHandlers := httpapi.NewLoginHandlers(gate, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpapi.RequestLogger(logger))
	router.GET(httpapi.KioskPagePath, publicHandlers.RenderKiosk)
	router.POST(httpapi.FeedbackAPIPath, publicHandlers.CreateFeedback)
	router.GET(httpapi.AdminLoginPath, loginHandlers.RenderLogin)
	router.POST(httpapi.AdminLoginPath, loginHandlers.SubmitLogin)
	router.GET(httpapi.AdminLogoutPath, loginHandlers.Logout)
	router.GET(httpapi.AdminPagePath, gate.RequireAdminWeb(), adminHandlers.RenderAdmin)
	router.GET(httpapi.AdminExportCSVPath, gate.RequireAdminWeb(), adminHandlers.ExportCSV)
	router.GET(httpapi.AdminExportTextPath, gate.RequireAdminWeb(), adminHandlers.ExportText)
	router.GET(httpapi.StatsAPIPath, gate.RequireAdminJSON(), adminHandlers.Stats)

	return apiHarness{
		router:   router,
		database: database,
		store:    store,
		clock:    managedClock,
		limiter:  limiter,
		gate:     gate,
	}
}

func performJSONRequest(testingT *testing.T, router *gin.Engine, method string, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	testingT.Helper()
	var requestBody io.Reader
	if body != nil {
		encoded, encodeErr := json.Marshal(body)
		require.NoError(testingT, encodeErr)
		requestBody = bytes.NewReader(encoded)
	}
	request := httptest.NewRequest(method, path, requestBody)
	for name, value := range headers {
		request.Header.Set(name, value)
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

func performRequest(router *gin.Engine, method string, path string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	request := httptest.NewRequest(method, path, nil)
	for _, cookie := range cookies {
		request.AddCookie(cookie)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

func submitLogin(router *gin.Engine, password string, next string) *httptest.ResponseRecorder {
	form := url.Values{}
	form.Set("password", password)
	form.Set("next", next)
	request := httptest.NewRequest(http.MethodPost, httpapi.AdminLoginPath, strings.NewReader(form.Encode()))
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

func loginCookies(testingT *testing.T, router *gin.Engine) []*http.Cookie {
	testingT.Helper()
	recorder := submitLogin(router, testAdminPassword, httpapi.AdminPagePath)
	require.Equal(testingT, http.StatusFound, recorder.Code)
	cookies := recorder.Result().Cookies()
	require.NotEmpty(testingT, cookies)
	return cookies
}

func insertFeedback(testingT *testing.T, store *storage.FeedbackStore, grade model.Grade, createdAt time.Time) model.FeedbackEvent {
	testingT.Helper()
	event, insertErr := store.Insert(context.Background(), grade, createdAt)
	require.NoError(testingT, insertErr)
	return event
}

func countFeedback(testingT *testing.T, store *storage.FeedbackStore) int64 {
	testingT.Helper()
	total, countErr := store.CountFiltered(context.Background(), "")
	require.NoError(testingT, countErr)
	return total
}

func decodeJSON(testingT *testing.T, recorder *httptest.ResponseRecorder, target any) {
	testingT.Helper()
	require.NoError(testingT, json.Unmarshal(recorder.Body.Bytes(), target))
}

func closeDatabase(testingT *testing.T, database *gorm.DB) {
	testingT.Helper()
	sqlDatabase, sqlErr := database.DB()
	require.NoError(testingT, sqlErr)
	require.NoError(testingT, sqlDatabase.Close())
}
