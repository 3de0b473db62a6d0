package main

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/MarkoPoloResearchLab/feedback_kiosk/internal/httpapi"
)

const (
	corsOriginWildcard    = "*"
	corsHeaderContentType = "Content-Type"
	corsHeaderRequestID   = httpapi.HeaderRequestID
	httpMethodPost        = "POST"
	httpMethodOptions     = "OPTIONS"
	corsMaxAge            = 12 * time.Hour
)

var (
	corsAllowedMethods = []string{httpMethodPost, httpMethodOptions}
	corsAllowedHeaders = []string{corsHeaderContentType, corsHeaderRequestID}
	corsExposedHeaders = []string{corsHeaderRequestID}
)

type routeHandlers struct {
	adminGate *httpapi.AdminGate
	public    *httpapi.PublicHandlers
	admin     *httpapi.AdminHandlers
	login     *httpapi.LoginHandlers
}

func registerRoutes(router *gin.Engine, handlers routeHandlers) {
	router.GET(httpapi.KioskPagePath, handlers.public.RenderKiosk)

	// Kiosk shells served from another origin may post submissions.
	feedbackGroup := router.Group(httpapi.FeedbackAPIPath)
	feedbackGroup.Use(cors.New(cors.Config{
		AllowOrigins:     []string{corsOriginWildcard},
		AllowMethods:     corsAllowedMethods,
		AllowHeaders:     corsAllowedHeaders,
		ExposeHeaders:    corsExposedHeaders,
		AllowCredentials: false,
		MaxAge:           corsMaxAge,
	}))
	feedbackGroup.POST("", handlers.public.CreateFeedback)
	feedbackGroup.OPTIONS("", func(context *gin.Context) {})

	router.GET(httpapi.AdminLoginPath, handlers.login.RenderLogin)
	router.POST(httpapi.AdminLoginPath, handlers.login.SubmitLogin)
	router.GET(httpapi.AdminLogoutPath, handlers.login.Logout)

	adminWeb := handlers.adminGate.RequireAdminWeb()
	router.GET(httpapi.AdminPagePath, adminWeb, handlers.admin.RenderAdmin)
	router.GET(httpapi.AdminExportCSVPath, adminWeb, handlers.admin.ExportCSV)
	router.GET(httpapi.AdminExportTextPath, adminWeb, handlers.admin.ExportText)

	router.GET(httpapi.StatsAPIPath, handlers.adminGate.RequireAdminJSON(), handlers.admin.Stats)
}
