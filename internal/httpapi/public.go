package httpapi

import (
	"errors"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/feedback_kiosk/internal/clock"
	"github.com/MarkoPoloResearchLab/feedback_kiosk/internal/model"
	"github.com/MarkoPoloResearchLab/feedback_kiosk/internal/ratelimit"
	"github.com/MarkoPoloResearchLab/feedback_kiosk/internal/storage"
)

const (
	kioskTitle = "Como avalia o nosso serviço?"

	messageFeedbackSaved   = "Obrigado!"
	messageInvalidRequest  = "Pedido inválido."
	messageInvalidGrade    = "Grau inválido."
	messageRateLimited     = "Aguarde um momento antes de voltar a avaliar."
	messageFeedbackNotSent = "Não foi possível registar."

	logEventSaveFeedback = "save_feedback"
	logEventRateLimited  = "rate_limited"
)

type gradeOption struct {
	Value string
	Label string
	Color string
}

var gradeColors = map[model.Grade]string{
	model.GradeVerySatisfied: "rgba(46,229,157,.75)",
	model.GradeSatisfied:     "rgba(255,214,74,.80)",
	model.GradeDissatisfied:  "rgba(255,77,109,.78)",
}

func gradeOptions() []gradeOption {
	grades := model.Grades()
	options := make([]gradeOption, 0, len(grades))
	for _, grade := range grades {
		options = append(options, gradeOption{
			Value: grade.String(),
			Label: GradeLabel(grade),
			Color: gradeColors[grade],
		})
	}
	return options
}

// PublicHandlers serve the kiosk page and accept submissions.
type PublicHandlers struct {
	store    *storage.FeedbackStore
	limiter  *ratelimit.CooldownLimiter
	clock    clock.Clock
	logger   *zap.Logger
	template *template.Template
}

type kioskTemplateData struct {
	Title        string
	FeedbackPath string
	LockMillis   int64
	Grades       []gradeOption
}

type createFeedbackRequest struct {
	Grade string `json:"grau"`
}

func NewPublicHandlers(store *storage.FeedbackStore, limiter *ratelimit.CooldownLimiter, serverClock clock.Clock, logger *zap.Logger) *PublicHandlers {
	if serverClock == nil {
		serverClock = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PublicHandlers{
		store:    store,
		limiter:  limiter,
		clock:    serverClock,
		logger:   logger,
		template: parseTemplate(kioskTemplateName, kioskTemplateHTML),
	}
}

func (handlers *PublicHandlers) RenderKiosk(context *gin.Context) {
	data := kioskTemplateData{
		Title:        kioskTitle,
		FeedbackPath: FeedbackAPIPath,
		LockMillis:   handlers.limiter.Cooldown().Milliseconds(),
		Grades:       gradeOptions(),
	}
	if renderErr := renderHTML(context, http.StatusOK, handlers.template, data); renderErr != nil {
		handlers.logger.Error(logEventRenderTemplate, zap.String("template", kioskTemplateName), zap.Error(renderErr))
	}
}

// CreateFeedback records one kiosk submission. The cooldown is consulted before the body is read.
func (handlers *PublicHandlers) CreateFeedback(context *gin.Context) {
	clientID := ratelimit.ClientIdentity(context.Request)
	if !handlers.limiter.Allow(clientID) {
		handlers.logger.Debug(logEventRateLimited, zap.String("client", clientID))
		respondJSON(context, http.StatusTooManyRequests, false, messageRateLimited)
		return
	}

	var payload createFeedbackRequest
	if bindErr := context.ShouldBindJSON(&payload); bindErr != nil {
		respondJSON(context, http.StatusBadRequest, false, messageInvalidRequest)
		return
	}

	grade, gradeErr := model.ParseGrade(payload.Grade)
	if gradeErr != nil {
		respondJSON(context, http.StatusBadRequest, false, messageInvalidGrade)
		return
	}

	event, insertErr := handlers.store.Insert(context.Request.Context(), grade, handlers.clock.Now())
	if insertErr != nil {
		if errors.Is(insertErr, model.ErrInvalidGrade) {
			respondJSON(context, http.StatusBadRequest, false, messageInvalidGrade)
			return
		}
		handlers.logger.Error(logEventSaveFeedback, zap.String("request_id", RequestIDFromContext(context)), zap.Error(insertErr))
		respondJSON(context, http.StatusInternalServerError, false, messageFeedbackNotSent)
		return
	}

	handlers.logger.Debug(logEventSaveFeedback, zap.Uint("id", event.ID), zap.String("grade", event.Grade.String()))
	respondJSON(context, http.StatusOK, true, messageFeedbackSaved)
}
