package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"confluence-engine/config"
	"confluence-engine/internal/api"
	"confluence-engine/internal/bus"
	"confluence-engine/internal/engine"
	"confluence-engine/internal/execution"
	"confluence-engine/internal/gateway"
	"confluence-engine/internal/logger"
	"confluence-engine/internal/metrics"
	"confluence-engine/internal/model"
	"confluence-engine/internal/notification"
	"confluence-engine/internal/portfolio"
	redisstore "confluence-engine/internal/store/redis"
	"confluence-engine/internal/store/sqlite"
)

const (
	busBuffer       = 1024
	replaySize      = 512
	livenessEvery   = 15 * time.Second
	statsEvery      = 5 * time.Second
	shutdownTimeout = 10 * time.Second
)

func run(parent context.Context, cfg *config.Config, paper bool) error {
	lg := logger.Init(cfg.Service, logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Metrics & health ──
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)
	health := metrics.NewHealthStatus()

	metricsSrv := metrics.NewServer(cfg.HTTP.MetricsAddr, health, reg)
	metricsSrv.Start()

	// ── Redis ──
	rdb, err := redisstore.Connect(ctx, redisstore.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return err
	}
	defer rdb.Close()
	health.SetRedisConnected(true)

	breaker := redisstore.NewBreaker(5, 10*time.Second)
	breaker.OnStateChange = func(from, to redisstore.BreakerState) {
		m.PublisherBreakerState.Set(float64(to))
		if to == redisstore.BreakerOpen {
			m.PublisherBreakerTrips.Inc()
		}
		log.Printf("[redis] publisher breaker %s -> %s", from, to)
	}
	publisher := redisstore.NewPublisher(rdb, redisstore.PublisherConfig{
		Stream:     cfg.Redis.DecisionStream,
		MaxLen:     cfg.Redis.StreamMaxLen,
		CapitalKey: cfg.Redis.CapitalKey,
		Channel:    cfg.Redis.Channel,
	}, breaker)
	publisher.OnError = func(error) { m.PublishErrorsTotal.Inc() }

	// ── SQLite journal ──
	journal, err := sqlite.Open(sqlite.JournalConfig{
		DBPath:        cfg.SQLite.Path,
		BatchSize:     cfg.SQLite.BatchSize,
		FlushInterval: cfg.SQLite.FlushInterval,
	})
	if err != nil {
		return err
	}
	defer journal.Close()
	health.SetSQLiteOK(true)
	journal.OnCommit = func(n int, took time.Duration) {
		m.JournalWritesTotal.Add(float64(n))
		m.JournalCommitDur.Observe(took.Seconds())
	}

	// ── Notifications ──
	notifiers := notification.Multi{notification.NewLogNotifier(lg)}
	if cfg.Notify.WebhookURL != "" {
		notifiers = append(notifiers, notification.NewWebhookNotifier(cfg.Notify.WebhookURL))
	}
	if cfg.Notify.TelegramToken != "" {
		notifiers = append(notifiers, notification.NewTelegramNotifier(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}

	// ── Account source ──
	var (
		account model.AccountSource
		paperAc *execution.PaperAccount
	)
	if paper {
		paperAc = execution.NewPaperAccount(cfg.Paper.StartingBalance, cfg.Paper.SlippageBps)
		account = paperAc
		lg.Info("[confluence] paper mode", "balance", cfg.Paper.StartingBalance, "slippage_bps", cfg.Paper.SlippageBps)
	} else {
		account = redisstore.NewAccountReader(rdb, cfg.Redis.AccountKey)
	}

	// ── Engine ──
	eng, err := engine.New(cfg, engine.Deps{
		Market:   redisstore.NewBarReader(rdb, cfg.Redis.BarPrefix),
		Account:  account,
		Metrics:  m,
		Health:   health,
		Notifier: notifiers,
		Logger:   lg,
	})
	if err != nil {
		return err
	}
	if paperAc != nil {
		paperAc.SetReporter(eng)
	}

	// ── Decision fan-out ──
	hub := gateway.NewHub(replaySize)
	hub.OnClientsChanged = func(n int) { m.WSClients.Set(float64(n)) }
	eng.Guard().OnStateChange(func(c portfolio.StateChange) { hub.PublishCapital(c.Status) })

	// Sinks outlive the bus so they can drain their channels at shutdown.
	sinkCtx, cancelSinks := context.WithCancel(context.Background())
	defer cancelSinks()
	busCtx, stopBus := context.WithCancel(context.Background())
	defer stopBus()

	fan := bus.New(busBuffer)
	fan.OnDrop = func(name string, _ model.Decision) { m.FanoutDropsTotal.WithLabelValues(name).Inc() }
	done := []<-chan struct{}{
		fan.Attach(sinkCtx, "journal", journal),
		fan.Attach(sinkCtx, "publisher", publisher),
		fan.Attach(sinkCtx, "gateway", hub),
	}
	if paperAc != nil {
		done = append(done, fan.Attach(sinkCtx, "paper", paperAc))
	}
	busDone := make(chan struct{})
	go func() {
		defer close(busDone)
		fan.Run(busCtx, eng.Decisions())
	}()
	go reportChannelStats(ctx, fan, m)

	// ── HTTP ──
	apiSrv := &http.Server{
		Addr: cfg.HTTP.APIAddr,
		Handler: api.NewRouter(api.Options{
			Engine:  eng,
			History: journal,
			Health:  health,
			WS:      hub,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("[api] listening on %s", cfg.HTTP.APIAddr)
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[api] server error: %v", err)
		}
	}()

	health.StartLivenessChecker(ctx, rdb, journal.DB(), livenessEvery)

	// ── Run until signal or emergency ──
	runErr := eng.Run(ctx)
	if runErr != nil {
		lg.Error("[confluence] engine halted", "error", runErr, "capital", eng.CapitalStatus())
	} else {
		lg.Info("[confluence] shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[api] shutdown: %v", err)
	}

	// Stopping the bus forwards queued decisions, then closes every sink
	// channel; each sink returns once its channel is drained.
	stopBus()
	waitAll(shutdownCtx, append(done, busDone))
	cancelSinks()
	metricsSrv.Stop(shutdownCtx)

	if pending := publisher.Pending(); pending > 0 {
		log.Printf("[redis] %d decisions still buffered at shutdown", pending)
	}
	if runErr != nil {
		return fmt.Errorf("engine stopped: %w", runErr)
	}
	return nil
}

func reportChannelStats(ctx context.Context, fan *bus.FanOut, m *metrics.Metrics) {
	ticker := time.NewTicker(statsEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, s := range fan.ChannelStats() {
				if s.Cap > 0 {
					m.ChannelSaturationPct.WithLabelValues(s.Name).Set(float64(s.Len) / float64(s.Cap) * 100)
				}
			}
		}
	}
}

func waitAll(ctx context.Context, chans []<-chan struct{}) {
	for _, ch := range chans {
		select {
		case <-ch:
		case <-ctx.Done():
			slog.Warn("[confluence] shutdown timed out waiting for sinks")
			return
		}
	}
}
