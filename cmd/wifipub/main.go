// wifipub joins a Wi-Fi network, waits for an address, then publishes an
// incrementing int32 on a fixed period through the messaging middleware.
//
// Configuration is read from configs/config.yaml, or the file named by
// WIFIPUB_CONFIG. Secrets (PSK, broker password, InfluxDB token) belong in
// environment variables.
package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nerrad567/wifipub/internal/app"
	"github.com/nerrad567/wifipub/internal/connectivity"
	"github.com/nerrad567/wifipub/internal/infrastructure/config"
	"github.com/nerrad567/wifipub/internal/infrastructure/database"
	"github.com/nerrad567/wifipub/internal/infrastructure/influxdb"
	"github.com/nerrad567/wifipub/internal/infrastructure/logging"
	"github.com/nerrad567/wifipub/internal/infrastructure/mqtt"
	"github.com/nerrad567/wifipub/internal/infrastructure/mqtt5"
	"github.com/nerrad567/wifipub/internal/journal"
	"github.com/nerrad567/wifipub/internal/middleware"
	"github.com/nerrad567/wifipub/internal/netmgmt"
	"github.com/nerrad567/wifipub/internal/publisher"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the components and blocks until ctx is cancelled. It returns
// nil on a clean shutdown.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting wifipub",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version).WithDevice(cfg.Device.ID)
	log.Info("configuration loaded",
		"path", configPath,
		"backend", cfg.Network.Backend,
		"transport", cfg.Middleware.Transport,
	)

	mgr, err := newNetworkManager(cfg.Network, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := mgr.Close(); closeErr != nil {
			log.Error("error closing network manager", "error", closeErr)
		}
	}()

	gate := connectivity.NewGate(mgr, connectivity.Config{
		Interface:       cfg.Network.Interface,
		SSID:            cfg.Network.SSID,
		PSK:             cfg.Network.PSK,
		Channel:         cfg.Network.Channel,
		Security:        netmgmt.Security(strings.ToLower(cfg.Network.Security)),
		RequestTimeout:  cfg.Network.RequestTimeout,
		WaitLogInterval: cfg.Network.WaitLogInterval,
	})
	gate.SetLogger(log.With("component", "connectivity"))

	sessions := &sessionTracker{}
	rt := middleware.NewRuntime(sessions.track(newSessionFactory(cfg, log)))
	pub := publisher.New(publisher.Config{
		NodeName:      cfg.Publisher.NodeName,
		Namespace:     cfg.Publisher.Namespace,
		Topic:         cfg.Publisher.Topic,
		Period:        cfg.Publisher.Period,
		SpinTimeout:   cfg.Publisher.SpinTimeout,
		YieldInterval: cfg.Publisher.YieldInterval,
		Policy:        publisher.ParseSetupPolicy(cfg.Middleware.SetupPolicy),
		TypeSupport:   middleware.Int32Support(middleware.Encoding(cfg.Middleware.Encoding)),
	}, rt, transportBinding(cfg))
	pub.SetLogger(log.With("component", "publisher"))

	opts := app.Options{
		Gate:      gate,
		Publisher: pub,
		Logger:    log,
		Health:    []app.HealthCheck{{Name: "session", Check: sessions.HealthCheck}},
	}
	var recorders []journal.Recorder

	if cfg.Database.Enabled {
		db, err := database.Open(ctx, database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		if err := db.Migrate(ctx, journal.Migrations()); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		log.Info("journal database ready", "path", db.Path())

		recorders = append(recorders, journal.NewSQLiteJournal(db.DB, cfg.Device.ID))
		opts.Health = append(opts.Health, app.HealthCheck{Name: "database", Check: db.HealthCheck})
	} else {
		log.Info("journal disabled")
	}

	if cfg.InfluxDB.Enabled {
		influxClient, err := influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetDeviceID(cfg.Device.ID)
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		pub.SetSampleSink(influxClient)
		recorders = append(recorders, influxClient)
		opts.Health = append(opts.Health, app.HealthCheck{Name: "influxdb", Check: influxClient.HealthCheck})
	} else {
		log.Info("InfluxDB disabled")
	}

	opts.Journal = journal.Multi(recorders...)
	if err := app.New(opts).Run(ctx); err != nil {
		return err
	}
	log.Info("wifipub stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// WIFIPUB_CONFIG overrides the default.
func getConfigPath() string {
	if path := os.Getenv("WIFIPUB_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// networkManager is a netmgmt.Manager that owns background resources.
type networkManager interface {
	netmgmt.Manager
	Close() error
}

func newNetworkManager(cfg config.NetworkConfig, log *logging.Logger) (networkManager, error) {
	mlog := log.With("component", "netmgmt", "backend", cfg.Backend)

	switch cfg.Backend {
	case config.BackendSimulated:
		opts := []netmgmt.SimulatedOption{netmgmt.WithRejectRequests(cfg.Simulated.RejectRequests)}
		if cfg.Simulated.AttachDelay != 0 {
			opts = append(opts, netmgmt.WithAttachDelay(cfg.Simulated.AttachDelay))
		}
		sim := netmgmt.NewSimulated(opts...)
		sim.SetLogger(mlog)
		return sim, nil
	case config.BackendNetworkManager:
		nm := netmgmt.NewNetworkManager(netmgmt.NetworkManagerConfig{
			Binary:       cfg.NetworkManager.Binary,
			PollInterval: cfg.NetworkManager.PollInterval,
			SecretsDir:   cfg.NetworkManager.SecretsDir,
		})
		nm.SetLogger(mlog)
		return nm, nil
	default:
		return nil, fmt.Errorf("unknown network backend %q", cfg.Backend)
	}
}

// transportBinding builds the stream binding to the broker or agent.
func transportBinding(cfg *config.Config) middleware.TransportBinding {
	params := middleware.TransportParams{
		Address:     cfg.BrokerAddress(),
		DialTimeout: cfg.Middleware.DialTimeout,
	}
	if cfg.MQTT.Broker.TLS {
		params.TLS = &tls.Config{
			ServerName: cfg.MQTT.Broker.Host,
			MinVersion: tls.VersionTLS12,
		}
	}
	return middleware.DefaultTransport(params)
}

// newSessionFactory returns the session factory for the configured
// transport. Each returns a nil interface on error so callers never see a
// typed nil Session.
func newSessionFactory(cfg *config.Config, log *logging.Logger) middleware.SessionFactory {
	mqttCfg := cfg.MQTT
	if mqttCfg.Broker.ClientID == "" {
		mqttCfg.Broker.ClientID = mqtt.DefaultClientID(cfg.Publisher.NodeName)
	}
	sessLog := log.With("component", "session", "transport", cfg.Middleware.Transport)

	if cfg.Middleware.Transport == config.TransportMQTT5 {
		return func(ctx context.Context, dial middleware.DialFunc) (middleware.Session, error) {
			c, err := mqtt5.Connect(ctx, mqttCfg, mqtt5.DialFunc(dial))
			if err != nil {
				return nil, err
			}
			sessLog.Info("session open", "broker", mqttCfg.BrokerAddress(), "client_id", c.ClientID())
			return c, nil
		}
	}

	return func(ctx context.Context, dial middleware.DialFunc) (middleware.Session, error) {
		c, err := mqtt.Connect(ctx, mqttCfg, mqtt.DialFunc(dial))
		if err != nil {
			return nil, err
		}
		c.SetLogger(sessLog)
		c.SetOnDisconnect(func(err error) {
			sessLog.Warn("session lost, publishes will fail until restart", "error", err)
		})
		sessLog.Info("session open", "broker", mqttCfg.BrokerAddress(), "client_id", c.ClientID())
		return c, nil
	}
}
