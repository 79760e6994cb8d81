package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/kilianp07/connecteddrive/infra/logger"
	infmqtt "github.com/kilianp07/connecteddrive/infra/mqtt"
)

func main() {
	cfg := parseFlags()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	if cfg.Verbose {
		logger.SetLevel("debug")
	}
	logg := logger.New("simulator")

	availability := AlwaysOnline()
	if cfg.AvailabilityFile != "" {
		data, err := os.ReadFile(cfg.AvailabilityFile)
		if err != nil {
			log.Fatalf("availability file: %v", err)
		}
		if availability, err = LoadAvailabilityProfile(data); err != nil {
			log.Fatalf("availability file: %v", err)
		}
	}

	var vehicles []*SimulatedVehicle
	if cfg.FleetFile != "" {
		data, err := os.ReadFile(cfg.FleetFile)
		if err != nil {
			log.Fatalf("fleet file: %v", err)
		}
		if vehicles, err = LoadFleet(data, availability); err != nil {
			log.Fatalf("fleet file: %v", err)
		}
	} else {
		vehicles = GenerateFleet(FleetConfig{Size: cfg.FleetSize, Availability: availability}, rand.New(rand.NewSource(cfg.Seed)))
	}

	cli, err := infmqtt.NewPahoClient(infmqtt.Config{Broker: cfg.Broker, ClientID: cfg.ClientID})
	if err != nil {
		log.Fatalf("mqtt client: %v", err)
	}
	defer cli.Disconnect()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var strategy ResponseStrategy = Immediate{}
	if cfg.ResponseLatency > 0 || cfg.DropRate > 0 {
		strategy = NewRandomResponse(cfg.ResponseLatency, cfg.DropRate, cfg.Seed, clock.New())
	}
	sim := NewSimulator(cli, cfg, vehicles, strategy, clock.New(), logg)
	if err := sim.Run(ctx); err != nil {
		logg.Errorf("simulator: %v", err)
	}
}

func parseFlags() Config {
	var cfg Config
	flag.StringVar(&cfg.Broker, "broker", "tcp://localhost:1883", "MQTT broker URL")
	flag.StringVar(&cfg.ClientID, "client-id", "connecteddrive-sim", "MQTT client id")
	flag.IntVar(&cfg.FleetSize, "fleet-size", 0, "auto generated fleet size")
	flag.StringVar(&cfg.FleetFile, "fleet-file", "", "YAML list of vehicles")
	flag.StringVar(&cfg.AvailabilityFile, "availability-file", "", "hourly availability JSON or YAML")
	flag.DurationVar(&cfg.Interval, "interval", 30*time.Second, "simulation step and push interval")
	flag.BoolVar(&cfg.Push, "push", true, "publish status on every step")
	flag.DurationVar(&cfg.ResponseLatency, "response-latency", 0, "poll response latency")
	flag.Float64Var(&cfg.DropRate, "drop-rate", 0, "poll response drop rate")
	flag.Int64Var(&cfg.Seed, "seed", time.Now().UnixNano(), "random seed")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "enable debug logging")
	flag.StringVar(&cfg.StatePrefix, "state-prefix", "", "status push topic prefix")
	flag.StringVar(&cfg.RequestTopic, "request-topic", "", "poll request topic")
	flag.StringVar(&cfg.ResponsePrefix, "response-prefix", "", "poll response topic prefix")
	flag.Parse()
	return cfg
}
