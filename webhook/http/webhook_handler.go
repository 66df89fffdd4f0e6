package http

import (
	"context"
	"net/http"

	"github.com/dfryer1193/cms/api"
	"github.com/dfryer1193/cms/blog/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/go-github/v75/github"
	"github.com/rs/zerolog/log"
)

// Rebuilder refreshes the published site
type Rebuilder interface {
	Rebuild(ctx context.Context) (*domain.Summary, error)
}

type WebhookHandler struct {
	webhookSecret []byte
	rebuilder     Rebuilder
}

func NewWebhookHandler(secret string, rebuilder Rebuilder) *WebhookHandler {
	return &WebhookHandler{
		webhookSecret: []byte(secret),
		rebuilder:     rebuilder,
	}
}

func (h *WebhookHandler) RegisterRoutes(r gin.IRouter) {
	r.POST("/webhook/git", h.HandleGitWebhook)
}

// HandleGitWebhook rebuilds the site when the default branch of the source repository is pushed
func (h *WebhookHandler) HandleGitWebhook(c *gin.Context) {
	payload, err := github.ValidatePayload(c.Request, h.webhookSecret)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.Error{Error: "invalid payload"})
		return
	}

	event, err := github.ParseWebHook(github.WebHookType(c.Request), payload)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.Error{Error: "invalid event"})
		return
	}

	evt, ok := event.(*github.PushEvent)
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}

	defaultRef := "refs/heads/" + evt.GetRepo().GetDefaultBranch()
	if evt.GetRef() != defaultRef {
		log.Debug().Str("ref", evt.GetRef()).Msg("Ignoring push outside the default branch")
		c.Status(http.StatusNoContent)
		return
	}

	// GitHub drops deliveries that take too long; the rebuild must still finish once the
	// publish directory has been cleared
	summary, err := h.rebuilder.Rebuild(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, api.Error{Error: "error handling event"})
		return
	}

	log.Info().Str("after", evt.GetAfter()).Int("published", summary.Published).Msg("Rebuilt site after push")
	c.Status(http.StatusNoContent)
}
