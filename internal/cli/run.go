package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/AaronLay10/SentientJobs/internal/api"
	"github.com/AaronLay10/SentientJobs/internal/config"
	"github.com/AaronLay10/SentientJobs/internal/events"
	"github.com/AaronLay10/SentientJobs/internal/jobs"
	"github.com/AaronLay10/SentientJobs/internal/mqtt"
	"github.com/AaronLay10/SentientJobs/internal/sim"
	"github.com/AaronLay10/SentientJobs/internal/storage"
	"github.com/AaronLay10/SentientJobs/internal/storage/postgres"
	"github.com/AaronLay10/SentientJobs/internal/storage/sqlite"
	"github.com/AaronLay10/SentientJobs/internal/version"
)

func init() {
	runCmd.Flags().StringVarP(&runConfig, "config", "c", "engine.yaml", "Path to engine.yaml")
	runCmd.Flags().IntVar(&runPort, "port", 0, "Override network.ui_port")
	rootCmd.AddCommand(runCmd)
}

var (
	runConfig string
	runPort   int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the engine and its HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadEngineConfig(runConfig)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx, cfg)
	},
}

func run(ctx context.Context, cfg *config.EngineConfig) error {
	if err := api.InitAuth(); err != nil {
		return err
	}
	api.InitTLS()

	name := cfg.Name()
	hourLength, err := cfg.HourLength()
	if err != nil {
		return err
	}
	calendarStart, err := cfg.CalendarStart()
	if err != nil {
		return err
	}

	journal, err := openJournal(cfg, name)
	if err != nil {
		return err
	}
	api.SetJournalOptional(journal == nil)
	if journal != nil {
		defer journal.Close()
		defer events.SetJournal(nil)
		events.SetJournal(journal)
		events.SetSession(uuid.NewString())
		api.SetJournalConnected(true)
	}

	metrics := api.NewMetrics("jobengine", name)
	events.Observe(metrics.ObserveEvent)

	opts := sim.Options{
		Tick:          cfg.Tick(),
		Active:        cfg.Active(),
		Debug:         cfg.Engine.Debug,
		Seed:          cfg.Engine.Seed,
		HourLength:    hourLength,
		CalendarStart: calendarStart,
		QueueSize:     cfg.Engine.QueueSize,
		OnTick:        metrics.ObserveTick,
	}

	var (
		client     *mqtt.Client
		subscriber *mqtt.CommandSubscriber
	)
	if cfg.MQTT.Enabled {
		client = mqtt.NewClient(cfg.MQTT.URL, cfg.MQTTClientID(), func() {
			onBrokerConnect(subscriber)
		})
		opts.WrapHost = func(h jobs.Host) jobs.Host {
			return mqtt.NewBridge(h, client, cfg.TopicPrefix())
		}
	}
	api.SetMQTTOptional(!cfg.MQTT.Enabled)

	engine := sim.New(opts)
	if client != nil {
		subscriber = mqtt.NewCommandSubscriber(client, engine, cfg.TopicPrefix())
	}

	n, err := engine.LoadJobs(cfg.JobDirs()...)
	if err != nil {
		return fmt.Errorf("failed to load jobs: %w", err)
	}
	t, err := engine.LoadTriggers(cfg.TriggerFiles()...)
	if err != nil {
		return fmt.Errorf("failed to load triggers: %w", err)
	}

	events.Emit("info", "system.startup", "engine starting", map[string]interface{}{
		"service":  "jobengine",
		"version":  version.String(),
		"instance": name,
		"pid":      os.Getpid(),
		"jobs":     n,
		"triggers": t,
	})

	if client != nil && !client.StartWithRetry() {
		log.Printf("mqtt: continuing without broker, paho will keep retrying")
	}

	go engine.Run(ctx)
	api.SetEngineReady(true)

	go api.NewAlerter(name).Run(ctx, 5*time.Second)
	go monitor(ctx, journal, client)

	port := cfg.UIPort()
	if runPort > 0 {
		port = runPort
	}
	err = api.NewServer(engine, journal, metrics).ListenAndServe(ctx, port)

	api.SetEngineReady(false)
	events.Emit("info", "system.shutdown", "engine stopping", map[string]interface{}{
		"instance": name,
	})
	if client != nil {
		client.Disconnect()
	}
	return err
}

// onBrokerConnect runs on every (re)connect. paho drops subscriptions with the
// session, so the command topic is subscribed again each time.
func onBrokerConnect(subscriber *mqtt.CommandSubscriber) {
	api.SetMQTTConnected(true)
	if subscriber == nil {
		return
	}
	subscriber.Reset()
	if err := subscriber.Subscribe(); err != nil {
		log.Printf("mqtt: failed to subscribe to %s: %v", subscriber.Topic(), err)
	}
}

// openJournal returns nil when the storage driver is none.
func openJournal(cfg *config.EngineConfig, name string) (storage.Journal, error) {
	switch cfg.StorageDriver() {
	case config.DriverSQLite:
		j, err := sqlite.Open(cfg.SQLitePath(), name)
		if err != nil {
			return nil, err
		}
		log.Printf("Journal: sqlite %s", cfg.SQLitePath())
		return j, nil
	case config.DriverPostgres:
		password, err := config.PostgresPassword()
		if err != nil {
			return nil, err
		}
		j, err := postgres.New(postgres.Config{
			Host:     cfg.Postgres.Host,
			Port:     cfg.PostgresPort(),
			User:     cfg.Postgres.User,
			Password: password,
			Database: cfg.Postgres.Database,
			SSLMode:  cfg.Postgres.SSLMode,
		}, name)
		if err != nil {
			return nil, err
		}
		log.Printf("Journal: postgres %s/%s", cfg.Postgres.Host, cfg.Postgres.Database)
		return j, nil
	}
	return nil, nil
}

// monitor feeds journal and broker connectivity into the readiness state.
func monitor(ctx context.Context, journal storage.Journal, client *mqtt.Client) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if p, ok := journal.(storage.Pinger); ok {
			pingCtx, cancel := context.WithTimeout(ctx, time.Second)
			api.SetJournalConnected(p.Ping(pingCtx) == nil)
			cancel()
		}
		if client != nil {
			api.SetMQTTConnected(client.IsConnected())
		}
	}
}
