package main

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/kilianp07/connecteddrive/core/logger"
	coremqtt "github.com/kilianp07/connecteddrive/core/mqtt"
	infmqtt "github.com/kilianp07/connecteddrive/infra/mqtt"
	"github.com/kilianp07/connecteddrive/infra/telemetry"
)

// Simulator plays a fleet of vehicles on an MQTT broker. It answers
// discovery broadcasts and poll requests and, in push mode, publishes the
// vehicle status on every tick.
type Simulator struct {
	cli      coremqtt.Client
	cfg      Config
	vehicles map[string]*SimulatedVehicle
	order    []string
	strategy ResponseStrategy
	clock    clock.Clock
	log      logger.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewSimulator prepares a simulator for vehicles.
func NewSimulator(cli coremqtt.Client, cfg Config, vehicles []*SimulatedVehicle, strategy ResponseStrategy, clk clock.Clock, log logger.Logger) *Simulator {
	cfg.SetDefaults()
	if strategy == nil {
		strategy = Immediate{}
	}
	if clk == nil {
		clk = clock.New()
	}
	s := &Simulator{
		cli:      cli,
		cfg:      cfg,
		vehicles: make(map[string]*SimulatedVehicle, len(vehicles)),
		strategy: strategy,
		clock:    clk,
		log:      log,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
	}
	for _, v := range vehicles {
		s.vehicles[v.VIN] = v
		s.order = append(s.order, v.VIN)
	}
	return s
}

// Run serves the fleet until ctx is done.
func (s *Simulator) Run(ctx context.Context) error {
	if err := s.cli.Subscribe(s.cfg.DiscoveryTopic, 0, s.onDiscovery); err != nil {
		return err
	}
	if err := s.cli.Subscribe(s.cfg.RequestTopic, 0, func(_ string, p []byte) { s.onPoll(ctx, p) }); err != nil {
		return err
	}
	defer func() {
		if err := s.cli.Unsubscribe(s.cfg.DiscoveryTopic, s.cfg.RequestTopic); err != nil {
			s.log.Warnf("unsubscribe: %v", err)
		}
	}()
	s.log.Infof("simulating %d vehicles", len(s.order))

	ticker := s.clock.Ticker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick advances every vehicle by one interval and pushes the status of the
// online ones when push is enabled.
func (s *Simulator) Tick() {
	hour := s.clock.Now().Hour()
	for _, vin := range s.order {
		v := s.vehicles[vin]
		s.rngMu.Lock()
		v.Step(s.cfg.Interval, s.rng)
		online := v.Online(hour, s.rng)
		s.rngMu.Unlock()
		if s.cfg.Push && online {
			s.publishStatus(coremqtt.Join(s.cfg.StatePrefix, vin), v, "")
		}
	}
}

func (s *Simulator) onDiscovery(_ string, payload []byte) {
	if string(payload) != s.cfg.MagicWord {
		return
	}
	for _, vin := range s.order {
		v := s.vehicles[vin]
		data, err := json.Marshal(infmqtt.VehicleAnnouncement{VIN: v.VIN, Name: v.Name, DriveTrain: v.DriveTrain.String()})
		if err != nil {
			s.log.Errorf("announce %s: %v", vin, err)
			continue
		}
		if err := s.cli.Publish(coremqtt.Join(s.cfg.DiscoveryResponse, vin), 0, false, data); err != nil {
			s.log.Errorf("announce %s: %v", vin, err)
		}
	}
}

func (s *Simulator) onPoll(ctx context.Context, payload []byte) {
	var req telemetry.PollRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.log.Errorf("decode poll request: %v", err)
		return
	}
	vins := req.VINs
	if len(vins) == 0 {
		vins = s.order
	}
	hour := s.clock.Now().Hour()
	for _, vin := range vins {
		v, ok := s.vehicles[vin]
		if !ok {
			continue
		}
		s.rngMu.Lock()
		online := v.Online(hour, s.rng)
		s.rngMu.Unlock()
		if !online {
			s.log.Debugf("%s offline, ignoring poll %s", vin, req.RequestID)
			continue
		}
		go s.strategy.Respond(ctx, func() {
			s.publishStatus(coremqtt.Join(s.cfg.ResponsePrefix, vin), v, req.RequestID)
		})
	}
}

// publishStatus sends the vehicle state. requestID is echoed in poll
// responses and empty for pushed states.
func (s *Simulator) publishStatus(topic string, v *SimulatedVehicle, requestID string) {
	doc := telemetry.Encode(v.VIN, v.State(s.clock.Now()))
	doc.RequestID = requestID
	data, err := json.Marshal(doc)
	if err != nil {
		s.log.Errorf("encode %s: %v", v.VIN, err)
		return
	}
	if err := s.cli.Publish(topic, 0, false, data); err != nil {
		s.log.Errorf("publish %s: %v", v.VIN, err)
	}
}
