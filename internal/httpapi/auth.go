package httpapi

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

const (
	// AdminSessionName is the cookie name of the admin session.
	AdminSessionName = "kiosk_admin"
	// AdminSessionMaxAge bounds how long an admin login stays valid.
	AdminSessionMaxAge = 12 * time.Hour

	sessionKeyIsAdmin     = "is_admin"
	queryKeyNext          = "next"
	logEventLoadSession   = "load_session"
	authMessageLoginFirst = "Sessão expirada. Inicie sessão novamente."

	errorMessageMissingSessionSecret = "auth: missing session secret"
	errorMessageSaveSession          = "auth: save session"
)

// ErrMissingSessionSecret indicates the gate was built without a cookie signing key.
var ErrMissingSessionSecret = errors.New("missing_session_secret")

// AdminGate guards the admin surface with a single shared password and a signed cookie session.
type AdminGate struct {
	logger       *zap.Logger
	passwordHash [sha256.Size]byte
	sessionStore *sessions.CookieStore
}

// NewAdminGate builds a gate checking password and signing sessions with sessionSecret.
func NewAdminGate(logger *zap.Logger, password string, sessionSecret string) (*AdminGate, error) {
	if strings.TrimSpace(sessionSecret) == "" {
		return nil, fmt.Errorf("%s: %w", errorMessageMissingSessionSecret, ErrMissingSessionSecret)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sessionStore := sessions.NewCookieStore([]byte(sessionSecret))
	sessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(AdminSessionMaxAge / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	return &AdminGate{
		logger:       logger,
		passwordHash: sha256.Sum256([]byte(password)),
		sessionStore: sessionStore,
	}, nil
}

// Authenticate reports whether password matches the shared admin password.
// The comparison takes the same time regardless of where the inputs differ.
func (gate *AdminGate) Authenticate(password string) bool {
	candidateHash := sha256.Sum256([]byte(password))
	return subtle.ConstantTimeCompare(candidateHash[:], gate.passwordHash[:]) == 1
}

// IsAuthorized reports whether request carries a valid admin session.
func (gate *AdminGate) IsAuthorized(request *http.Request) bool {
	sessionInstance, sessionErr := gate.sessionStore.Get(request, AdminSessionName)
	if sessionErr != nil {
		gate.logger.Debug(logEventLoadSession, zap.Error(sessionErr))
		return false
	}
	isAdmin, ok := sessionInstance.Values[sessionKeyIsAdmin].(bool)
	return ok && isAdmin
}

// Login marks the session of request as authenticated and writes the cookie.
func (gate *AdminGate) Login(writer http.ResponseWriter, request *http.Request) error {
	sessionInstance, _ := gate.sessionStore.Get(request, AdminSessionName)
	sessionInstance.Values[sessionKeyIsAdmin] = true
	if saveErr := sessionInstance.Save(request, writer); saveErr != nil {
		return fmt.Errorf("%s: %w", errorMessageSaveSession, saveErr)
	}
	return nil
}

// Logout clears the admin flag and expires the cookie.
func (gate *AdminGate) Logout(writer http.ResponseWriter, request *http.Request) error {
	sessionInstance, _ := gate.sessionStore.Get(request, AdminSessionName)
	delete(sessionInstance.Values, sessionKeyIsAdmin)
	sessionInstance.Options.MaxAge = -1
	if saveErr := sessionInstance.Save(request, writer); saveErr != nil {
		return fmt.Errorf("%s: %w", errorMessageSaveSession, saveErr)
	}
	return nil
}

// RequireAdminWeb redirects unauthenticated page requests to the login form,
// remembering the requested location.
func (gate *AdminGate) RequireAdminWeb() gin.HandlerFunc {
	return func(context *gin.Context) {
		if !gate.IsAuthorized(context.Request) {
			context.Redirect(http.StatusFound, loginRedirectLocation(context.Request))
			context.Abort()
			return
		}
		context.Next()
	}
}

// RequireAdminJSON rejects unauthenticated API requests with 401.
func (gate *AdminGate) RequireAdminJSON() gin.HandlerFunc {
	return func(context *gin.Context) {
		if !gate.IsAuthorized(context.Request) {
			context.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{jsonKeyOK: false, jsonKeyMessage: authMessageLoginFirst})
			return
		}
		context.Next()
	}
}

func loginRedirectLocation(request *http.Request) string {
	query := url.Values{}
	query.Set(queryKeyNext, request.URL.RequestURI())
	return AdminLoginPath + "?" + query.Encode()
}

// SafeRedirectTarget returns next when it is a path on this host, otherwise the admin page.
func SafeRedirectTarget(next string) string {
	trimmed := strings.TrimSpace(next)
	if !strings.HasPrefix(trimmed, "/") || strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "/\\") {
		return AdminPagePath
	}
	return trimmed
}
