package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vp-director/internal/catalog"
	"vp-director/internal/director"
	"vp-director/internal/mapping"
	"vp-director/internal/platform/config"
	"vp-director/internal/platform/logger"
	"vp-director/internal/platform/metrics"
	"vp-director/internal/playback"
	"vp-director/internal/sensor"
	"vp-director/internal/sse"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnvInt("PORT", 8001)
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")
	stagePath := config.GetEnv("STAGE_CONFIG", "stage.yaml")

	log := logger.New(logLevel, logFormat)

	stage, err := config.LoadStage(stagePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warn("no stage config found, using defaults", "path", stagePath)
			stage = config.DefaultStage()
		} else {
			log.Error("stage config error", "error", err)
			os.Exit(1)
		}
	}
	if broker := config.GetEnv("MQTT_BROKER", ""); broker != "" {
		stage.MQTT.Broker = broker
	}

	met := metrics.New()

	cat := catalog.New(stage.Backgrounds.Dir, stage.Backgrounds.DefaultDuration(), stage.Backgrounds.Durations(), log)
	if err := cat.Scan(); err != nil {
		log.Warn("background scan failed", "dir", stage.Backgrounds.Dir, "error", err)
	}

	repo := mapping.NewRepository(mapping.NewFileStore(stage.MappingPath), log)
	if err := repo.Load(); err != nil {
		log.Warn("mapping not loaded yet", "path", stage.MappingPath, "error", err)
	}

	hub := sse.NewHub(log)

	timing := stage.Playback.Config()
	sched := playback.NewScheduler(timing, log, director.StageHooks(hub, met, log))
	renderer := director.NewEventRenderer(hub, log)
	sched.AttachLayers(
		playback.NewTimedLayer(playback.LayerA, cat, sched, renderer, log),
		playback.NewTimedLayer(playback.LayerB, cat, sched, renderer, log),
	)

	d := director.New(repo, stage.Rules, sched, hub, timing, met, log)
	h := director.NewHandler(d, repo, stage.Rules, cat, log)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Run(runCtx)

	var sub *sensor.Subscriber
	if stage.MQTT.Broker != "" {
		sub = sensor.NewSubscriber(sensor.Config{
			Broker:         stage.MQTT.Broker,
			ClientID:       stage.MQTT.ClientID,
			BehaviorTopic:  stage.MQTT.BehaviorTopic,
			HeartbeatTopic: stage.MQTT.HeartbeatTopic,
		}, d, met, log)
		if err := sub.Connect(); err != nil {
			log.Warn("mqtt not connected yet, retrying in background",
				"broker", stage.MQTT.Broker, "error", err)
		}
	}

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		met.Handler(func() {
			met.SetSSEClients(hub.ClientCount())
			met.SetConnectedSensors(d.SensorCount())
		}).ServeHTTP(w, req)
	})
	r.Get("/", h.Index)
	r.Get("/health", h.Health)
	r.Get("/api/status", h.Status)
	r.Post("/api/heartbeat", h.Heartbeat)
	r.Post("/api/behavior", h.Behavior)
	r.Get("/sensor/available-actions", h.Actions)
	r.Route("/vp", func(r chi.Router) {
		r.Get("/current-background", h.CurrentBackground)
		r.Post("/change-scene", h.ChangeScene)
		r.Post("/simulate-action", h.SimulateAction)
		r.Get("/mapping", h.GetMapping)
		r.Post("/mapping/reload", h.ReloadMapping)
		r.Put("/mapping", h.UpdateMapping)
		r.Get("/transition-rules", h.TransitionRules)
		r.Get("/preview", h.Preview)
		r.Get("/backgrounds/{filename}", h.ServeBackground)
		r.Get("/player-events", hub.ServeHTTP)
	})

	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{
		Addr:    addr,
		Handler: cors.AllowAll().Handler(r),
		// Player event streams watch their request context, which derives
		// from here, so cancelling runCtx ends them and shutdown can drain.
		BaseContext: func(net.Listener) context.Context { return runCtx },
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", port,
		"backgrounds_dir", stage.Backgrounds.Dir,
		"mapping_path", stage.MappingPath,
		"mqtt_broker", stage.MQTT.Broker,
		"log_level", logLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")
	cancel()

	ctx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	if sub != nil {
		sub.Disconnect()
	}

	log.Info("server stopped")
}
