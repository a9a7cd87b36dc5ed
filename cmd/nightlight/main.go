// Command nightlight drives an RGB night light from a time-of-day schedule and
// publishes its state to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gosuri/uitable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sweeney/nightlight/internal/clock"
	"github.com/sweeney/nightlight/internal/config"
	"github.com/sweeney/nightlight/internal/control"
	"github.com/sweeney/nightlight/internal/db"
	"github.com/sweeney/nightlight/internal/ledger"
	"github.com/sweeney/nightlight/internal/logic"
	"github.com/sweeney/nightlight/internal/metrics"
	"github.com/sweeney/nightlight/internal/mqtt"
	"github.com/sweeney/nightlight/internal/network"
	"github.com/sweeney/nightlight/internal/output"
	"github.com/sweeney/nightlight/internal/status"
	"github.com/sweeney/nightlight/internal/web"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.StringVar(&configPath, "c", "config.yaml", "Path to configuration file (shorthand)")
	printSchedule := flag.Bool("print-schedule", false, "Print the alarm table and exit")
	evalAt := flag.String("eval", "", "Print which window wins at HH:MM and exit")
	flag.Parse()

	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	setupLogging(cfg.Log.Level, cfg.Log.JSON, cfg.Log.Colors)

	switch {
	case *printSchedule:
		writeSchedule(os.Stdout, cfg.Windows())
		return
	case *evalAt != "":
		if err := writeEval(os.Stdout, cfg, *evalAt); err != nil {
			log.Fatal().Err(err).Msg("eval failed")
		}
		return
	}

	log.Info().Str("config", configPath).Msg("starting nightlight")
	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}

// loadConfig reads path, falling back to the built-in defaults when the file
// does not exist.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn().Str("config", path).Msg("config file not found, using defaults")
		return config.Default(), nil
	}
	return cfg, err
}

func setupLogging(level string, useJSON bool, colors bool) {
	zerolog.TimeFieldFormat = time.RFC3339

	if useJSON {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
			NoColor:    !colors,
		})
	}

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// writeSchedule prints the alarm table in evaluation order.
func writeSchedule(w io.Writer, windows []logic.AlarmWindow) {
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow("#", "NAME", "FROM", "TO", "COLOR", "RATIO", "DISPLAYED", "ENABLED")
	for i, win := range windows {
		tbl.AddRow(i, win.Name, win.From, win.To, win.Appearance.Color.Hex(), win.Appearance.Ratio, win.Appearance.Dimmed().Hex(), win.Enabled)
	}
	fmt.Fprintln(w, tbl)
}

// writeEval prints the appearance the schedule yields at the given HH:MM,
// assuming trusted time.
func writeEval(w io.Writer, cfg *config.Config, at string) error {
	now, err := logic.ParseTimeOfDay(at)
	if err != nil {
		return err
	}
	m, ok := logic.NewSchedule(cfg.Windows()).Evaluate(now)
	if !ok {
		if logic.GapPolicy(cfg.GapPolicy) == logic.GapFallback {
			fb := cfg.FallbackAppearance()
			fmt.Fprintf(w, "%s  no window, fallback %s (displayed %s)\n", now, fb, fb.Dimmed().Hex())
			return nil
		}
		fmt.Fprintf(w, "%s  no window, holding current appearance\n", now)
		return nil
	}
	fmt.Fprintf(w, "%s  window #%d %q  %s (displayed %s)\n", now, m.Index, m.Name, m.Appearance, m.Appearance.Dimmed().Hex())
	return nil
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bootID := uuid.NewString()

	// MQTT first: the mqtt output driver publishes through the same client.
	var publisher mqtt.Publisher = noopPublisher{}
	var mqttStatus mqtt.ConnectionStatus
	var raw output.RawPublisher
	var realPub *mqtt.RealPublisher
	if cfg.MQTT.Broker != "" {
		realPub = mqtt.NewRealPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID)
		publisher = realPub
		mqttStatus = realPub
		raw = realPub
	}
	defer publisher.Close()

	out, err := newOutput(cfg, raw)
	if err != nil {
		return fmt.Errorf("init output: %w", err)
	}
	defer out.Close()

	ntpClock := clock.NewNTPClock(cfg.Resync.Server, cfg.Resync.Timeout.Duration(), cfg.Location(), cfg.Resync.MinYear)
	checker := network.NewChecker()

	runner := control.NewRunner(control.Config{
		Schedule:      logic.NewSchedule(cfg.Windows()),
		Controller:    logic.NewLightController(cfg.FallbackAppearance(), logic.GapPolicy(cfg.GapPolicy)),
		Resync:        logic.NewResyncScheduler(clock.TicksFor(cfg.Resync.Interval.Duration())),
		ResyncTimeout: cfg.Resync.Timeout.Duration(),
	}, ntpClock, checker, out, clock.NewMonotonic(), control.WithWallClock(ntpClock.Now))

	tracker := status.NewTracker(time.Now(), bootID, statusConfig(cfg))
	tracker.SetNetwork(checker.IsConnected(), toStatusNetwork(checker.Info()))

	var history *ledger.Ledger
	if cfg.Database.Path != "" {
		database, err := db.Open(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer database.Close()
		history = ledger.New(database.DB, bootID,
			ledger.WithNow(ntpClock.Now),
			ledger.WithFloor(ntpClock.MinValid()))
		go runLedgerCleanup(ctx, history, cfg.Database.CleanupInterval.Duration(), cfg.Database.Retention.Duration(), ntpClock.Trusted)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	if realPub != nil {
		realPub.OnReconnect(func() {
			publishStatus(publisher, tracker, mqttStatus, "RECONNECTED", "", false)
		})
	}
	publishStatus(publisher, tracker, mqttStatus, "STARTUP", "", true)

	if cfg.HTTP.Addr != "" {
		opts := []web.Option{web.WithMetrics(metrics.Handler(reg))}
		if history != nil {
			opts = append(opts, web.WithHistory(history))
		}
		srv := web.New(cfg.HTTP.Addr, tracker, opts...)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("http server error")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("http server shutdown error")
			}
		}()
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("http status server listening")
	}

	log.Info().
		Str("boot_id", bootID).
		Str("driver", cfg.Output.Driver).
		Str("ntp", cfg.Resync.Server).
		Str("timezone", cfg.Location().String()).
		Int("alarms", len(cfg.Windows())).
		Str("gap_policy", cfg.GapPolicy).
		Dur("tick", cfg.Tick.Duration()).
		Msg("started")

	ticker := time.NewTicker(cfg.Tick.Duration())
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	deps := loopDeps{
		runner:     runner,
		state:      logic.NewControllerState(),
		publisher:  publisher,
		mqttStatus: mqttStatus,
		tracker:    tracker,
		metrics:    m,
		network:    checker,
		lastSync:   ntpClock.LastSynced,
		heartbeat:  cfg.HeartbeatInterval(),
		now:        time.Now,
	}
	if history != nil {
		deps.history = history
	}
	return runLoop(ctx, deps, ticker.C, sigCh)
}

// eventRecorder persists light events.
type eventRecorder interface {
	Append(ctx context.Context, ev logic.Event) error
}

// networkSource reports connectivity and optional pi-helper details.
type networkSource interface {
	IsConnected() bool
	Info() *network.Info
}

// loopDeps are the collaborators of runLoop. Only runner, state, publisher
// and now are required.
type loopDeps struct {
	runner     *control.Runner
	state      *logic.ControllerState
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	history    eventRecorder
	metrics    *metrics.Metrics
	network    networkSource
	lastSync   func() time.Time
	heartbeat  time.Duration
	now        func() time.Time
}

func runLoop(ctx context.Context, d loopDeps, tick <-chan time.Time, sig <-chan os.Signal) error {
	hb := logic.NewHeartbeat(d.now())

	for {
		select {
		case <-ctx.Done():
			return nil

		case s := <-sig:
			log.Info().Str("signal", s.String()).Msg("shutting down")
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: d.now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if d.tracker != nil {
				refreshConnectivity(d)
				event.RawPayload = status.FormatStatusEvent(d.tracker.Snapshot(), "SHUTDOWN", signalName)
			}
			if err := d.publisher.PublishSystem(event); err != nil {
				log.Warn().Err(err).Msg("failed to publish shutdown event")
			} else {
				log.Info().Msg("published shutdown event")
			}
			return nil

		case <-tick:
			start := time.Now()
			rep := d.runner.Tick(ctx, d.state)
			if d.metrics != nil {
				d.metrics.Observe(rep, d.state, time.Since(start))
			}

			for _, ev := range rep.Events {
				if err := d.publisher.Publish(ev); err != nil {
					// Don't crash on publish failure
					log.Warn().Err(err).Str("event", string(ev.Type)).Msg("publish error")
				}
				if d.history != nil {
					if err := d.history.Append(ctx, ev); err != nil {
						log.Warn().Err(err).Str("event", string(ev.Type)).Msg("ledger append failed")
					}
				}
			}

			if d.tracker == nil {
				continue
			}
			d.tracker.Update(lightStatus(rep, d.state, d.runner.Counts()))
			if rep.ResyncAttempted && rep.ResyncErr == nil && d.lastSync != nil {
				d.tracker.SetLastSync(d.lastSync())
			}
			refreshConnectivity(d)

			if hbData := hb.Check(d.now(), d.heartbeat, d.runner.Counts()); hbData != nil {
				log.Info().
					Dur("uptime", hbData.Uptime).
					Int("writes", hbData.Counts.Writes).
					Int("resync_ok", hbData.Counts.ResyncOK).
					Int("resync_failed", hbData.Counts.ResyncFailed).
					Msg("heartbeat")
				hbEvent := mqtt.SystemEvent{
					Timestamp:  hbData.Timestamp,
					Event:      "HEARTBEAT",
					RawPayload: status.FormatStatusEvent(d.tracker.Snapshot(), "HEARTBEAT", ""),
				}
				if err := d.publisher.PublishSystem(hbEvent); err != nil {
					log.Warn().Err(err).Msg("heartbeat publish error")
				}
			}
		}
	}
}

func refreshConnectivity(d loopDeps) {
	if d.mqttStatus != nil {
		d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	}
	if d.network != nil {
		d.tracker.SetNetwork(d.network.IsConnected(), toStatusNetwork(d.network.Info()))
	}
}

func lightStatus(rep control.Report, st *logic.ControllerState, counts logic.EventCounts) status.Light {
	l := status.Light{
		Appearance: st.Current,
		Source:     rep.Decision.Source,
		TimeOfDay:  rep.TimeOfDay,
		Trusted:    rep.Trusted,
		Synced:     st.Synced,
		Counts:     counts,
	}
	if rep.Decision.Match != nil {
		l.Window = rep.Decision.Match.Name
	}
	return l
}

func publishStatus(pub mqtt.Publisher, tracker *status.Tracker, mqttStatus mqtt.ConnectionStatus, event, reason string, retained bool) {
	if mqttStatus != nil {
		tracker.SetMQTTConnected(mqttStatus.IsConnected())
	}
	snap := tracker.Snapshot()
	ev := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   retained,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := pub.PublishSystem(ev); err != nil {
		log.Warn().Err(err).Str("event", event).Msg("failed to publish system event")
		return
	}
	log.Info().Str("event", event).Msg("published system event")
}

type pruner interface {
	DeleteOlderThan(ctx context.Context, retention time.Duration) (int64, error)
}

func runLedgerCleanup(ctx context.Context, l pruner, interval, retention time.Duration, trusted func() bool) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pruneLedger(ctx, l, retention, trusted)
		}
	}
}

// pruneLedger runs one cleanup pass. The cutoff comes from the corrected
// clock, so passes are skipped until it is trusted.
func pruneLedger(ctx context.Context, l pruner, retention time.Duration, trusted func() bool) int64 {
	if !trusted() {
		log.Debug().Msg("ledger cleanup skipped, clock not trusted")
		return 0
	}
	n, err := l.DeleteOlderThan(ctx, retention)
	if err != nil {
		log.Warn().Err(err).Msg("ledger cleanup failed")
		return 0
	}
	if n > 0 {
		log.Info().Int64("deleted", n).Msg("ledger cleanup")
	}
	return n
}

func newOutput(cfg *config.Config, pub output.RawPublisher) (output.Writer, error) {
	switch cfg.Output.Driver {
	case output.DriverGPIO:
		g := cfg.Output.GPIO
		return output.NewGPIO(output.GPIOConfig{
			Chip:      g.Chip,
			Red:       g.Red,
			Green:     g.Green,
			Blue:      g.Blue,
			ActiveLow: g.ActiveLow,
			Threshold: uint8(g.Threshold),
		})
	case output.DriverMQTT:
		if pub == nil {
			return nil, errors.New("mqtt output needs an mqtt broker")
		}
		return output.NewMQTTLight(pub, cfg.Output.MQTT.Topic), nil
	case output.DriverHue:
		h := cfg.Output.Hue
		return output.NewHue(h.Bridge, h.User, h.Light), nil
	case output.DriverNone:
		return output.Discard{}, nil
	}
	return nil, fmt.Errorf("unknown output driver %q", cfg.Output.Driver)
}

func statusConfig(cfg *config.Config) status.Config {
	sc := status.Config{
		TickMs:           cfg.Tick.Duration().Milliseconds(),
		HeartbeatMs:      cfg.HeartbeatInterval().Milliseconds(),
		ResyncIntervalMs: cfg.Resync.Interval.Duration().Milliseconds(),
		NTPServer:        cfg.Resync.Server,
		Timezone:         cfg.Location().String(),
		Driver:           cfg.Output.Driver,
		Broker:           cfg.MQTT.Broker,
		HTTPPort:         cfg.HTTP.Addr,
		GapPolicy:        cfg.GapPolicy,
		Fallback:         cfg.FallbackAppearance().String(),
	}
	for _, w := range cfg.Windows() {
		sc.Alarms = append(sc.Alarms, status.AlarmInfo{
			Name:    w.Name,
			Enabled: w.Enabled,
			From:    w.From.String(),
			To:      w.To.String(),
			Color:   w.Appearance.Color.Hex(),
			Ratio:   w.Appearance.Ratio,
		})
	}
	return sc
}

func toStatusNetwork(info *network.Info) *status.NetworkInfo {
	if info == nil {
		return nil
	}
	n := status.NetworkInfo(*info)
	return &n
}

// noopPublisher is used when no broker is configured.
type noopPublisher struct{}

func (noopPublisher) Publish(logic.Event) error            { return nil }
func (noopPublisher) PublishSystem(mqtt.SystemEvent) error { return nil }
func (noopPublisher) Close() error                         { return nil }
