package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
)

const maxSlackBody = 1 << 20

// StatusFunc reports runtime state for GET /status.
type StatusFunc func(ctx context.Context) (map[string]any, error)

// HTTPConfig configures the HTTP receiver.
type HTTPConfig struct {
	Addr string
	// SigningSecret enables the /slack routes. Without it only health, status
	// and metrics are served.
	SigningSecret string
	Sink          Sink
	Status        StatusFunc
	Metrics       http.Handler
	Middleware    []gin.HandlerFunc
}

// HTTPReceiver serves Slack webhooks and operational endpoints.
type HTTPReceiver struct {
	cfg    HTTPConfig
	engine *gin.Engine
}

// NewHTTPReceiver builds the router.
func NewHTTPReceiver(cfg HTTPConfig) *HTTPReceiver {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cfg.Middleware...)

	r := &HTTPReceiver{cfg: cfg, engine: engine}
	engine.GET("/healthz", r.handleHealth)
	engine.GET("/status", r.handleStatus)
	if cfg.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(cfg.Metrics))
	}
	if strings.TrimSpace(cfg.SigningSecret) != "" {
		slackGroup := engine.Group("/slack", r.verifySignature)
		slackGroup.POST("/events", r.handleEvents)
		slackGroup.POST("/interactions", r.handleInteractions)
	}
	return r
}

// Name returns the receiver name.
func (r *HTTPReceiver) Name() string { return "http" }

// Handler exposes the router for tests and embedding.
func (r *HTTPReceiver) Handler() http.Handler { return r.engine }

// Start serves until ctx is cancelled, then shuts down gracefully.
func (r *HTTPReceiver) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              r.cfg.Addr,
		Handler:           r.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP receiver listening", "addr", r.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (r *HTTPReceiver) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (r *HTTPReceiver) handleStatus(c *gin.Context) {
	if r.cfg.Status == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	st, err := r.cfg.Status(c.Request.Context())
	if err != nil {
		slog.Warn("Status report failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "status unavailable"})
		return
	}
	c.JSON(http.StatusOK, st)
}

// verifySignature checks X-Slack-Signature and leaves the body readable.
func (r *HTTPReceiver) verifySignature(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxSlackBody))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "bad body"})
		return
	}
	if err := verifySlackSignature(c.Request.Header, body, r.cfg.SigningSecret); err != nil {
		slog.Warn("Slack request rejected", "path", c.Request.URL.Path, "error", err)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid slack signature"})
		return
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	c.Next()
}

func verifySlackSignature(header http.Header, body []byte, secret string) error {
	sv, err := slack.NewSecretsVerifier(header, secret)
	if err != nil {
		return err
	}
	if _, err := sv.Write(body); err != nil {
		return err
	}
	return sv.Ensure()
}

func (r *HTTPReceiver) handleEvents(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad body"})
		return
	}
	ev, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event payload"})
		return
	}
	switch ev.Type {
	case slackevents.URLVerification:
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid challenge"})
			return
		}
		c.String(http.StatusOK, challenge.Challenge)
	case slackevents.CallbackEvent:
		if msg, ok := ev.InnerEvent.Data.(*slackevents.MessageEvent); ok && msg != nil {
			if err := r.cfg.Sink.PublishMessage(MessageFromSlack(msg)); err != nil {
				slog.Warn("Slack event dropped", "error", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "busy"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	default:
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

func (r *HTTPReceiver) handleInteractions(c *gin.Context) {
	cb, err := slack.InteractionCallbackParse(c.Request)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid interaction payload"})
		return
	}
	ia, ok := InteractionFromSlack(cb)
	if !ok {
		c.Status(http.StatusOK)
		return
	}
	if err := r.cfg.Sink.PublishInteraction(ia); err != nil {
		slog.Warn("Slack interaction dropped", "user", ia.UserID, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "busy"})
		return
	}
	// The empty 200 is the acknowledgement Slack waits for.
	c.Status(http.StatusOK)
}
