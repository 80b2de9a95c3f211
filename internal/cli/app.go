package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KafClaw/tweetbot/internal/bus"
	"github.com/KafClaw/tweetbot/internal/channels"
	"github.com/KafClaw/tweetbot/internal/config"
	"github.com/KafClaw/tweetbot/internal/cooldown"
	"github.com/KafClaw/tweetbot/internal/metrics"
	"github.com/KafClaw/tweetbot/internal/postcache"
	"github.com/KafClaw/tweetbot/internal/publish"
	"github.com/KafClaw/tweetbot/internal/tweetflow"
)

// app is one wired bot process.
type app struct {
	cfg       *config.Config
	store     postcache.Store
	bus       *bus.MessageBus
	bot       *tweetflow.Bot
	http      *channels.HTTPReceiver
	receivers []channels.Receiver
	closers   []io.Closer
	started   time.Time
}

func newApp(cfg *config.Config) (*app, error) {
	store, err := postcache.Open(cfg.Server.StoreDriver)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:     cfg,
		store:   store,
		bus:     bus.NewMessageBus(bus.DefaultCapacity),
		closers: []io.Closer{store},
		started: time.Now(),
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewRecorder(reg)

	httpClient := &http.Client{Timeout: cfg.Server.HTTPTimeout.Std()}
	api := channels.NewSlackClient(cfg.Slack.BotToken, cfg.Slack.AppToken, cfg.Slack.APIBase, httpClient)

	a.bot = tweetflow.NewBot(tweetflow.Settings{
		Marker:           cfg.Trigger.Marker,
		MatchMode:        tweetflow.MatchMode(cfg.Trigger.Mode),
		Expiry:           cfg.Trigger.PostExpiry.Std(),
		Debug:            cfg.Trigger.Debug,
		AnnounceInThread: cfg.Trigger.AnnounceInThread,
	}, tweetflow.Deps{
		Store:     store,
		Chat:      channels.NewSlackChannel(api),
		Publisher: a.newPublisher(),
		Cooldown:  cooldown.New(cfg.Trigger.Cooldown.Std()),
		Observer:  recorder,
	})

	gin.SetMode(gin.ReleaseMode)
	a.http = channels.NewHTTPReceiver(channels.HTTPConfig{
		Addr:          cfg.Server.Addr(),
		SigningSecret: cfg.Slack.SigningSecret,
		Sink:          a.bus,
		Status:        a.status,
		Metrics:       promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Middleware:    []gin.HandlerFunc{recorder.Middleware()},
	})
	a.receivers = append(a.receivers, a.http)
	if strings.TrimSpace(cfg.Slack.AppToken) != "" {
		a.receivers = append(a.receivers, channels.NewSocketModeReceiver(api, a.bus))
	}
	return a, nil
}

func (a *app) newPublisher() publish.Publisher {
	var p publish.Publisher
	if a.cfg.Trigger.Debug {
		p = publish.NewEchoPublisher()
	} else {
		p = publish.NewTwitterPublisher(publish.TwitterCredentials{
			ConsumerKey:       a.cfg.Twitter.ConsumerKey,
			ConsumerSecret:    a.cfg.Twitter.ConsumerSecret,
			AccessTokenKey:    a.cfg.Twitter.AccessTokenKey,
			AccessTokenSecret: a.cfg.Twitter.AccessTokenSecret,
		}, a.cfg.Twitter.APIBase, a.cfg.Server.HTTPTimeout.Std())
	}
	if !a.cfg.Audit.Enabled() {
		return p
	}
	w := publish.NewKafkaWriter(strings.Join(a.cfg.Audit.Brokers, ","), a.cfg.Audit.Topic, a.cfg.Server.HTTPTimeout.Std())
	audit := publish.NewAuditPublisher(p, w)
	a.closers = append(a.closers, audit)
	slog.Info("Audit trail enabled", "topic", w.Topic, "brokers", a.cfg.Audit.Brokers)
	return audit
}

func (a *app) status(ctx context.Context) (map[string]any, error) {
	pending, err := a.store.Len(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(a.receivers))
	for _, r := range a.receivers {
		names = append(names, r.Name())
	}
	return map[string]any{
		"status":        "ok",
		"version":       version,
		"pending_posts": pending,
		"queued_events": a.bus.InboundSize(),
		"debug":         a.cfg.Trigger.Debug,
		"receivers":     names,
		"uptime":        time.Since(a.started).Round(time.Second).String(),
	}, nil
}

// run blocks until ctx is cancelled or a receiver fails.
func (a *app) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, len(a.receivers)+1)
	go func() { errCh <- a.bus.Run(ctx, a.bot) }()
	for _, r := range a.receivers {
		go func(r channels.Receiver) {
			if err := r.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("Receiver stopped", "receiver", r.Name(), "error", err)
				errCh <- err
				return
			}
			errCh <- nil
		}(r)
	}

	var err error
	select {
	case <-ctx.Done():
	case err = <-errCh:
	}
	a.bus.Stop()
	cancel()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			slog.Warn("Close failed", "error", err)
		}
	}
}
