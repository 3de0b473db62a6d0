package httpapi

import (
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	formKeyPassword = "password"

	messageWrongPassword = "Palavra-passe incorreta."

	logEventLogin      = "admin_login"
	logEventLoginSave  = "admin_login_session"
	logEventLogoutSave = "admin_logout_session"
)

// LoginHandlers render the password form and manage the admin session.
type LoginHandlers struct {
	gate     *AdminGate
	logger   *zap.Logger
	template *template.Template
}

type loginTemplateData struct {
	LoginPath    string
	Next         string
	ErrorMessage string
}

func NewLoginHandlers(gate *AdminGate, logger *zap.Logger) *LoginHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoginHandlers{
		gate:     gate,
		logger:   logger,
		template: parseTemplate(loginTemplateName, loginTemplateHTML),
	}
}

func (handlers *LoginHandlers) RenderLogin(context *gin.Context) {
	next := SafeRedirectTarget(context.Query(queryKeyNext))
	if handlers.gate.IsAuthorized(context.Request) {
		context.Redirect(http.StatusFound, next)
		return
	}
	handlers.render(context, http.StatusOK, next, "")
}

// SubmitLogin checks the posted password and, on success, redirects to the requested page.
func (handlers *LoginHandlers) SubmitLogin(context *gin.Context) {
	next := SafeRedirectTarget(context.PostForm(queryKeyNext))
	if !handlers.gate.Authenticate(context.PostForm(formKeyPassword)) {
		handlers.logger.Info(logEventLogin, zap.Bool("success", false), zap.String("ip", context.ClientIP()))
		handlers.render(context, http.StatusUnauthorized, next, messageWrongPassword)
		return
	}

	if loginErr := handlers.gate.Login(context.Writer, context.Request); loginErr != nil {
		handlers.logger.Error(logEventLoginSave, zap.Error(loginErr))
		context.String(http.StatusInternalServerError, messageServerError)
		return
	}
	handlers.logger.Info(logEventLogin, zap.Bool("success", true), zap.String("ip", context.ClientIP()))
	context.Redirect(http.StatusFound, next)
}

func (handlers *LoginHandlers) Logout(context *gin.Context) {
	if logoutErr := handlers.gate.Logout(context.Writer, context.Request); logoutErr != nil {
		handlers.logger.Warn(logEventLogoutSave, zap.Error(logoutErr))
	}
	context.Redirect(http.StatusFound, AdminLoginPath)
}

func (handlers *LoginHandlers) render(context *gin.Context, status int, next string, errorMessage string) {
	data := loginTemplateData{
		LoginPath:    AdminLoginPath,
		Next:         next,
		ErrorMessage: errorMessage,
	}
	if renderErr := renderHTML(context, status, handlers.template, data); renderErr != nil {
		handlers.logger.Error(logEventRenderTemplate, zap.String("template", loginTemplateName), zap.Error(renderErr))
	}
}
