// Command espresso-dash shows live espresso machine telemetry from MQTT and
// sends heater commands back to the machine.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/sweeney/espresso-dash/internal/capture"
	"github.com/sweeney/espresso-dash/internal/config"
	"github.com/sweeney/espresso-dash/internal/dispatch"
	"github.com/sweeney/espresso-dash/internal/display"
	"github.com/sweeney/espresso-dash/internal/gpio"
	"github.com/sweeney/espresso-dash/internal/logic"
	"github.com/sweeney/espresso-dash/internal/mqtt"
	"github.com/sweeney/espresso-dash/internal/panel"
	"github.com/sweeney/espresso-dash/internal/status"
	"github.com/sweeney/espresso-dash/internal/topic"
	"github.com/sweeney/espresso-dash/internal/web"
)

// options holds command-line values. Only flags set explicitly override the file.
type options struct {
	configPath  string
	envFile     string
	broker      string
	deviceID    string
	headless    bool
	httpAddr    string
	capturePath string
	logLevel    string
	logFile     string
	printConfig bool

	set func(name string) bool
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := pflag.NewFlagSet("espresso-dash", pflag.ContinueOnError)
	fs.StringVarP(&o.configPath, "config", "c", "", "path to YAML config file")
	fs.StringVar(&o.envFile, "env-file", ".env", "dotenv file loaded before the config (missing is ignored)")
	fs.StringVar(&o.broker, "broker", "", "MQTT broker address (overrides mqtt.broker)")
	fs.StringVar(&o.deviceID, "device-id", "", "machine device id (overrides device.id)")
	fs.BoolVar(&o.headless, "headless", false, "run without the terminal dashboard")
	fs.StringVar(&o.httpAddr, "http", "", "HTTP status address, empty to disable (overrides http.addr)")
	fs.StringVar(&o.capturePath, "capture", "", "append inbound telemetry to this CBOR file (overrides capture.path)")
	fs.StringVar(&o.logLevel, "log-level", "", "debug, info, warn or error (overrides log.level)")
	fs.StringVar(&o.logFile, "log-file", "", "log destination in TUI mode (overrides log.file)")
	fs.BoolVar(&o.printConfig, "print-config", false, "print the effective config and exit")

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if fs.NArg() > 0 {
		return o, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	o.set = fs.Changed
	return o, nil
}

// loadConfig reads the file, applies flag overrides and validates.
func loadConfig(o options) (*config.Config, error) {
	if err := config.LoadEnvFile(o.envFile); err != nil {
		return nil, fmt.Errorf("load env file: %w", err)
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}

	set := o.set
	if set == nil {
		set = func(string) bool { return false }
	}
	if set("broker") {
		cfg.MQTT.Broker = o.broker
	}
	if set("device-id") {
		cfg.Device.ID = o.deviceID
	}
	if set("headless") {
		cfg.Display.Headless = o.headless
	}
	if set("http") {
		cfg.HTTP.Addr = o.httpAddr
	}
	if set("capture") {
		cfg.Capture.Path = o.capturePath
	}
	if set("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if set("log-file") {
		cfg.Log.File = o.logFile
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func printConfig(cfg *config.Config, w io.Writer) error {
	out, err := config.Marshal(cfg)
	if err != nil {
		return err
	}
	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// newLogger builds the process logger. Headless output is text on a
// terminal and JSON otherwise. In TUI mode logs go to cfg.Log.File or nowhere.
func newLogger(cfg *config.Config) (*slog.Logger, io.Closer, error) {
	opts := &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}
	if cfg.Display.Headless {
		if term.IsTerminal(int(os.Stderr.Fd())) {
			return slog.New(slog.NewTextHandler(os.Stderr, opts)), io.NopCloser(nil), nil
		}
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), io.NopCloser(nil), nil
	}

	if cfg.Log.File == "" {
		return slog.New(slog.NewTextHandler(io.Discard, opts)), io.NopCloser(nil), nil
	}
	f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return slog.New(slog.NewTextHandler(f, opts)), f, nil
}

func run(o options) error {
	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}

	if o.printConfig {
		return printConfig(cfg, os.Stdout)
	}
	if !cfg.Display.Headless && !term.IsTerminal(int(os.Stdout.Fd())) {
		// Nothing to draw on, so run the headless loop.
		cfg.Display.Headless = true
	}

	logger, logCloser, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	router := topic.NewRouter(cfg.Device.Namespace, cfg.Device.ID)
	tracker := status.NewTracker(time.Now(), status.Config{
		Broker:    cfg.MQTT.Broker,
		Namespace: cfg.Device.Namespace,
		DeviceID:  cfg.Device.ID,
		TickMs:    cfg.Display.Tick.Milliseconds(),
		QueueSize: cfg.Display.QueueSize,
		HTTPAddr:  cfg.HTTP.Addr,
	})

	var sink capture.Sink
	if cfg.Capture.Path != "" {
		session := uuid.NewString()
		w, err := capture.Create(cfg.Capture.Path, session)
		if err != nil {
			return fmt.Errorf("init capture: %w", err)
		}
		defer func() {
			if err := w.Err(); err != nil {
				logger.Warn("capture: write error", "err", err)
			}
			w.Close()
		}()
		sink = w
		logger.Info("capture: recording", "path", cfg.Capture.Path, "session", session)
	}

	// The MQTT handler needs the panel and the panel needs the client.
	var dash *panel.Panel
	client := mqtt.NewRealClient(mqtt.Options{
		Broker:             cfg.MQTT.Broker,
		ClientID:           cfg.MQTT.ClientID,
		Username:           cfg.MQTT.Username,
		Password:           cfg.MQTT.Password,
		Subscriptions:      router.Subscriptions(),
		HeaterTopic:        router.StateTopic(topic.HeaterKey),
		PresenceTopic:      cfg.MQTT.PresenceTopic,
		ConnectTimeout:     cfg.MQTT.ConnectTimeout,
		BufferSize:         cfg.MQTT.BufferSize,
		OnConnectionChange: tracker.SetMQTTConnected,
	}, func(t string, payload []byte) {
		dash.Ingest(t, payload)
	}, logger)

	dash = panel.New(panel.Config{
		Router:    router,
		Queue:     dispatch.New(cfg.Display.QueueSize, logger),
		Clock:     logic.MonotonicClock(time.Now()),
		Commander: client,
		Tracker:   tracker,
		Capture:   sink,
		Logger:    logger,
	})

	if err := client.Connect(); err != nil {
		logger.Warn("mqtt: initial connect failed, continuing offline", "broker", cfg.MQTT.Broker, "err", err)
	}
	defer client.Close()

	if cfg.GPIO.HeaterPin > 0 {
		reader, err := gpio.NewRealReader(cfg.GPIO.Chip, cfg.GPIO.HeaterPin)
		if err != nil {
			return fmt.Errorf("init gpio: %w", err)
		}
		defer reader.Close()
		watcher := gpio.NewWatcher(reader, cfg.GPIO.Poll, cfg.GPIO.Debounce, func(ev logic.Event) {
			dash.Submit(ev)
		}, logger)
		go watcher.Run(ctx)
		logger.Info("gpio: heater button enabled", "chip", cfg.GPIO.Chip, "pin", cfg.GPIO.HeaterPin)
	}

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, logger)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("http: server error", "err", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Info("http: status server listening", "addr", cfg.HTTP.Addr)
	}

	logger.Info("dash: started",
		"broker", cfg.MQTT.Broker,
		"device", cfg.Device.Namespace+"/"+cfg.Device.ID,
		"tick", cfg.Display.Tick,
		"queue", cfg.Display.QueueSize,
		"headless", cfg.Display.Headless)

	if !cfg.Display.Headless {
		m := newModel(dash, display.NewRenderer(), client, cfg.Display.Tick)
		_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
		return err
	}

	ticker := time.NewTicker(cfg.Display.Tick)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(dash, logger, ticker.C, sigCh)
}

// runLoop is the headless owner loop: one panel tick per timer tick, with
// status transitions logged.
func runLoop(dash *panel.Panel, logger *slog.Logger, tick <-chan time.Time, sig <-chan os.Signal) error {
	last := dash.Last().Display.Status

	for {
		select {
		case s := <-sig:
			logger.Info("dash: shutting down", "signal", s.String())
			return nil

		case <-tick:
			f := dash.Tick()
			if f.Display.Status != last {
				logger.Info("dash: status changed",
					"from", last,
					"to", f.Display.Status,
					"temp_c", f.State.CurrentTempC,
					"pressure_bar", f.State.PressureBar)
				last = f.Display.Status
			}
		}
	}
}
