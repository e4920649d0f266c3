package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"solarwatch/config"
	"solarwatch/internal/alert"
	"solarwatch/internal/api"
	"solarwatch/internal/cloud"
	"solarwatch/internal/daylight"
	"solarwatch/internal/health"
	"solarwatch/internal/inverter"
	"solarwatch/internal/logging"
	"solarwatch/internal/monitor"
	"solarwatch/internal/mqtt"
	"solarwatch/internal/notify"
	"solarwatch/internal/simulate"
	"solarwatch/internal/storage"
	"solarwatch/internal/weather"
)

var (
	configPath string
	pretty     bool
)

func main() {
	root := &cobra.Command{
		Use:   "solarwatch",
		Short: "Health monitor and alert engine for SolarEdge inverter fleets",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	root.PersistentFlags().BoolVar(&pretty, "pretty", false, "human-readable log output")

	root.AddCommand(serveCmd(), checkCmd(), readCmd(), notifyTestCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the monitor loop and the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}

			db, err := storage.NewDatabase(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			publisher, err := mqtt.NewPublisher(mqtt.PublisherConfig{
				Broker:      cfg.MQTT.Broker,
				ClientID:    cfg.MQTT.ClientID,
				Username:    cfg.MQTT.Username,
				Password:    cfg.MQTT.Password,
				TopicPrefix: cfg.MQTT.TopicPrefix,
				Enabled:     cfg.MQTT.Enabled,
			}, log)
			if err != nil {
				return fmt.Errorf("connect mqtt: %w", err)
			}
			defer publisher.Close()

			mon := buildMonitor(cfg, db, publisher, log)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			errCh := make(chan error, 2)
			go func() {
				errCh <- mon.Start(ctx)
			}()

			var server *api.Server
			if cfg.API.Enabled {
				server = api.NewServer(api.ServerConfig{
					Port:     cfg.API.Port,
					Monitor:  mon,
					Database: db,
					Log:      log,
				})
				go func() {
					if err := server.Start(); err != nil {
						errCh <- err
					}
				}()
			}

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

			select {
			case s := <-sig:
				log.Info().Str("signal", s.String()).Msg("shutting down")
			case err := <-errCh:
				if err != nil {
					log.Error().Err(err).Msg("component failed")
				}
			}

			cancel()
			if server != nil {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := server.Stop(shutdownCtx); err != nil {
					log.Warn().Err(err).Msg("api shutdown failed")
				}
			}
			return nil
		},
	}
}

func checkCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run a single evaluation cycle and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}

			db, err := storage.NewDatabase(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			mon := buildMonitor(cfg, db, nil, log)

			result, err := mon.RunCycle(cmd.Context(), time.Now())
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			printCycle(result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the cycle result as JSON")
	return cmd
}

func readCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read",
		Short: "Read and print one snapshot from every configured inverter",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}

			var reader monitor.DeviceReader = inverter.NewFleetReader(cfg.Fleet, log)
			if cfg.Simulation.Enabled {
				reader = simulate.NewReader(cfg.Simulation, cfg.Fleet.Names(), log)
			}
			readings := reader.ReadAll()

			for _, name := range cfg.Fleet.Names() {
				snap := readings[name]
				if snap == nil {
					fmt.Printf("%-12s unreachable\n", name)
					continue
				}
				fmt.Printf("%-12s serial=%s status=%s pac=%s vdc=%s total=%s\n",
					name, snap.Serial, inverter.StatusString(snap.Status),
					fmtFloat(snap.PacW, "W"), fmtFloat(snap.VdcV, "V"), fmtFloat(snap.TotalWh, "Wh"))
			}
			return nil
		},
	}
}

func notifyTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notify-test",
		Short: "Send test messages on the configured notification channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}

			notify.NewManager(cfg.Pushover, cfg.Healthchecks, log).SendTest()
			return nil
		},
	}
}

func setup() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}
	log := logging.New(cfg.LogLevel, pretty)
	return cfg, log, nil
}

func buildMonitor(cfg *config.Config, db *storage.Database, publisher *mqtt.Publisher, log zerolog.Logger) *monitor.Monitor {
	var reader monitor.DeviceReader = inverter.NewFleetReader(cfg.Fleet, log)
	var inventory monitor.InventoryClient = cloud.NewClient(cfg.Cloud, log)
	if cfg.Simulation.Enabled {
		log.Info().Str("scenario", cfg.Simulation.Scenario).Msg("simulation mode: synthetic fleet and inventory")
		reader = simulate.NewReader(cfg.Simulation, cfg.Fleet.Names(), log)
		inventory = simulate.NewInventory(cfg.Simulation, cfg.Fleet.Names(), log)
	}

	return monitor.New(monitor.Deps{
		Config:    cfg,
		Reader:    reader,
		Policy:    daylight.NewPolicy(cfg.Daylight, log),
		Evaluator: health.NewEvaluator(cfg.Health, log),
		Gate:      alert.NewGate(db, cfg.Health.ConsecutiveRequired, log),
		Estimator: weather.NewEstimator(cfg.Weather, cfg.Daylight, cfg.Fleet.Inverters, log),
		Cloud:     inventory,
		Database:  db,
		Notifier:  notify.NewManager(cfg.Pushover, cfg.Healthchecks, log),
		Publisher: publisher,
		Log:       log,
	})
}

func printCycle(result *monitor.CycleResult) {
	fmt.Printf("phase: %s\n", result.Daylight.Phase)

	if result.Health == nil {
		fmt.Println("health: not evaluated (no readings)")
	} else if result.Health.OK {
		fmt.Println("health: OK")
	} else {
		fmt.Printf("health: NOT OK (%s)\n", result.Health.Reason)
	}

	if len(result.Alerts) == 0 {
		fmt.Println("alerts: none")
		return
	}
	fmt.Printf("alerts: %d\n", len(result.Alerts))
	for _, a := range result.Alerts {
		fmt.Printf("  [%s] %s\n", a.InverterName, a.Message)
	}
}

func fmtFloat(v *float64, unit string) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%s", *v, unit)
}
