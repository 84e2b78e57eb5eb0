package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"solis-monitor/config"
	"solis-monitor/internal/api"
	"solis-monitor/internal/metrics"
	"solis-monitor/internal/mqtt"
	"solis-monitor/internal/reporter"
	"solis-monitor/internal/sensor"
	"solis-monitor/internal/solis"
	"solis-monitor/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	configFile string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "solis-monitor",
		Short: "SolisCloud station monitor",
		Long:  "Polls a SolisCloud station and publishes battery, solar, net and load sensors",
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(readCmd())
	rootCmd.AddCommand(testCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newSolisClient(cfg *config.Config) *solis.Client {
	var opts []solis.Option
	if cfg.Solis.Timeout > 0 {
		opts = append(opts, solis.WithHTTPClient(&http.Client{Timeout: cfg.Solis.Timeout}))
	}
	return solis.NewClient(cfg.Solis.BaseURL, cfg.Solis.KeyID, cfg.Solis.KeySecret, opts...)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the monitoring service",
		Long:  "Start the reporter, API server, and MQTT publisher",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			state := sensor.NewState()
			sinks := sensor.MultiSink{state}

			// Create MQTT publisher
			publisher, err := mqtt.NewPublisher(mqtt.PublisherConfig{
				Broker:          cfg.MQTT.Broker,
				ClientID:        cfg.MQTT.ClientID,
				Username:        cfg.MQTT.Username,
				Password:        cfg.MQTT.Password,
				TopicPrefix:     cfg.MQTT.TopicPrefix,
				DiscoveryPrefix: cfg.MQTT.DiscoveryPrefix,
				StationID:       cfg.Solis.StationID,
				Enabled:         cfg.MQTT.Enabled,
			})
			if err != nil {
				log.Printf("Warning: MQTT connection failed: %v", err)
			} else {
				if cfg.MQTT.Enabled {
					log.Printf("MQTT connected to %s", cfg.MQTT.Broker)
				}
				sinks = append(sinks, publisher)
				defer publisher.Close()
			}

			rcfg := reporter.ReporterConfig{
				Client:      newSolisClient(cfg),
				Credentials: cfg.Solis,
				Publishers:  sensor.Enabled(cfg.Sensors.Battery, cfg.Sensors.Solar, cfg.Sensors.Net, cfg.Sensors.Load),
				Sink:        sinks,
				Interval:    cfg.Reporter.Interval,
				Debug:       verbose,
			}

			// Create database
			var db *storage.Database
			if cfg.Database.Enabled {
				db, err = storage.NewDatabase(cfg.Database.Path)
				if err != nil {
					return fmt.Errorf("failed to open database: %w", err)
				}
				defer db.Close()
				log.Printf("Database opened at %s", cfg.Database.Path)
				rcfg.Database = db

				if cfg.Database.Retention > 0 {
					if n, err := db.CleanOldReadings(cfg.Database.Retention); err != nil {
						log.Printf("Error cleaning old readings: %v", err)
					} else if n > 0 {
						log.Printf("Removed %d readings older than %s", n, cfg.Database.Retention)
					}
				}
			}

			rep := reporter.NewReporter(rcfg)

			registry := prometheus.NewRegistry()
			registry.MustRegister(metrics.NewCollector(state, rep, cfg.Solis.StationID))

			// Setup context for graceful shutdown
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			// Handle signals
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			// A configuration error ends the reporter only; the API keeps serving.
			go func() {
				if err := rep.Start(ctx); err != nil {
					log.Printf("Reporter error: %v", err)
				}
			}()

			var server *api.Server
			if cfg.API.Enabled {
				server = api.NewServer(api.ServerConfig{
					Port:     cfg.API.Port,
					Reporter: rep,
					State:    state,
					Database: db,
					Gatherer: registry,
				})

				go func() {
					if err := server.Start(); err != nil {
						log.Printf("API server error: %v", err)
					}
				}()
			}

			log.Println("Solis Monitor started. Press Ctrl+C to stop.")

			// Wait for signal
			<-sigChan
			log.Println("Shutting down...")
			rep.Stop()
			cancel()

			if server != nil {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := server.Stop(shutdownCtx); err != nil {
					log.Printf("API server shutdown error: %v", err)
				}
			}

			return nil
		},
	}
}

func readCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read",
		Short: "Read station data once",
		Long:  "Fetch the station detail once and print the reading and derived sensors",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := cfg.Solis.Validate(); err != nil {
				return err
			}

			client := newSolisClient(cfg)
			data, err := client.StationDetail(cmd.Context(), cfg.Solis.StationID)
			if err != nil {
				return fmt.Errorf("failed to read data: %w", err)
			}

			state := sensor.NewState()
			for _, p := range sensor.Enabled(cfg.Sensors.Battery, cfg.Sensors.Solar, cfg.Sensors.Net, cfg.Sensors.Load) {
				if err := p.Update(state, data); err != nil {
					return err
				}
			}

			output, _ := json.MarshalIndent(map[string]interface{}{
				"station": data,
				"sensors": state.Snapshot(),
			}, "", "  ")
			fmt.Println(string(output))

			return nil
		},
	}
}

func testCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Test the SolisCloud credentials",
		Long:  "Send one signed request to SolisCloud and report whether it was accepted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := cfg.Solis.Validate(); err != nil {
				return err
			}

			fmt.Printf("Testing SolisCloud access to station %s via %s...\n", cfg.Solis.StationID, cfg.Solis.BaseURL)

			data, err := newSolisClient(cfg).StationDetail(cmd.Context(), cfg.Solis.StationID)
			if err != nil {
				var statusErr *solis.StatusError
				if errors.As(err, &statusErr) && statusErr.Code == http.StatusUnauthorized {
					fmt.Println("Request rejected: check key_id and key_secret")
				}
				fmt.Printf("Connection FAILED: %v\n", err)
				return err
			}

			fmt.Println("Connection SUCCESS!")

			fmt.Printf("\nStation Info:\n")
			fmt.Printf("  Name:          %s\n", data.StationName)
			fmt.Printf("  Serial Number: %s\n", data.SerialNumber)
			fmt.Printf("  Data Time:     %s\n", data.DataTimestamp)
			fmt.Printf("\nCurrent Values:\n")
			fmt.Printf("  Battery:       %.0f %% (%g %s)\n", data.BatteryPercent, data.BatteryPower, data.BatteryPowerStr)
			fmt.Printf("  Solar:         %g %s\n", data.Power, data.PowerStr)
			fmt.Printf("  Net:           %g %s\n", data.Psum, data.PsumStr)
			fmt.Printf("  Load:          %.3f %s\n", sensor.TotalLoad(data), data.PsumStr)
			fmt.Printf("  Today:         %g %s\n", data.DayEnergy, data.DayEnergyStr)

			return nil
		},
	}
}
