package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/connecteddrive/api/sensors"
	"github.com/kilianp07/connecteddrive/app/plugins"
	"github.com/kilianp07/connecteddrive/config"
	"github.com/kilianp07/connecteddrive/core/account"
	"github.com/kilianp07/connecteddrive/core/entitystatus"
	coremetrics "github.com/kilianp07/connecteddrive/core/metrics"
	coremon "github.com/kilianp07/connecteddrive/core/monitoring"
	coremqtt "github.com/kilianp07/connecteddrive/core/mqtt"
	"github.com/kilianp07/connecteddrive/core/sensor"
	"github.com/kilianp07/connecteddrive/infra/hass"
	"github.com/kilianp07/connecteddrive/infra/logger"
	"github.com/kilianp07/connecteddrive/infra/metrics"
	"github.com/kilianp07/connecteddrive/infra/monitoring"
	"github.com/kilianp07/connecteddrive/infra/mqtt"
	"github.com/kilianp07/connecteddrive/infra/telemetry"
	"github.com/kilianp07/connecteddrive/internal/eventbus"
)

// Options overrides the resources New would otherwise create.
type Options struct {
	// MQTT replaces the paho client built from the configuration.
	MQTT       coremqtt.Client
	Registerer prometheus.Registerer
	Clock      clock.Clock
}

// Service wires accounts, sensors and their outputs together.
type Service struct {
	cfg        *config.Config
	log        logger.Logger
	paho       *mqtt.PahoClient
	cli        coremqtt.Client
	accounts   []*account.Account
	sensorOpts []sensor.Option
	bus        *eventbus.TypedBus[account.StateUpdate]
	sink       coremetrics.MetricsSink
	store      *entitystatus.MemoryStore
	hass       *hass.Publisher
	host       *Host
	telemetry  *telemetry.Manager

	closeOnce sync.Once
	closeErr  error
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	return NewWithOptions(cfg, Options{})
}

// NewWithOptions creates a Service, using opts where set.
func NewWithOptions(cfg *config.Config, opts Options) (*Service, error) {
	logger.SetLevel(cfg.Logging.Level)
	log := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	s := &Service{
		cfg:   cfg,
		log:   log,
		cli:   opts.MQTT,
		bus:   eventbus.NewTypedWithBuffer[account.StateUpdate](64),
		store: entitystatus.NewMemoryStore(),
	}
	if s.cli == nil && cfg.MQTT.Broker != "" {
		pc, err := mqtt.NewPahoClient(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		s.paho = pc
		s.cli = pc
	}

	s.sink, err = coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		s.closeClient()
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	deps := plugins.Deps{MQTT: s.cli, Logger: logger.New("provider")}
	for _, ac := range cfg.Accounts {
		p, err := plugins.NewProvider(ac, deps)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.accounts = append(s.accounts, account.New(ac.Name, p, logger.New("account")))
		attrs, err := ac.SensorAttributes()
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.sensorOpts = append(s.sensorOpts, sensor.WithAttributes(ac.Name, attrs...))
	}

	if cfg.Hass.Enabled && s.cli != nil {
		s.hass = hass.NewPublisher(s.cli, cfg.Hass, logger.New("hass"))
	}
	s.host = NewHost(s.store, s.sink, s.hass, opts.Clock, logger.New("host"))

	if cfg.Telemetry.Enabled && s.cli != nil {
		var rec coremetrics.PollRecorder
		if pr, ok := s.sink.(coremetrics.PollRecorder); ok {
			rec = pr
		}
		s.telemetry, err = telemetry.NewManager(s.cli, cfg.Telemetry, s.bus, telemetry.Options{
			Registerer: opts.Registerer,
			Clock:      opts.Clock,
			Recorder:   rec,
			Expected:   s.vins,
			Logger:     logger.New("telemetry"),
		})
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("telemetry: %w", err)
		}
	}
	return s, nil
}

// Accounts returns the configured accounts in configuration order.
func (s *Service) Accounts() []*account.Account { return s.accounts }

// Host returns the sensor platform.
func (s *Service) Host() *Host { return s.host }

// Store returns the entity status store.
func (s *Service) Store() entitystatus.Store { return s.store }

// SensorOptions returns the per account sensor restrictions.
func (s *Service) SensorOptions() []sensor.Option { return s.sensorOpts }

// Load fetches the vehicle list of every account.
func (s *Service) Load(ctx context.Context) error {
	for _, acc := range s.accounts {
		if err := acc.LoadVehicles(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Start loads the accounts, sets up the sensors and starts the background
// workers. They stop when ctx is done.
func (s *Service) Start(ctx context.Context) error {
	if err := s.Load(ctx); err != nil {
		return err
	}
	if _, err := sensor.Setup(s.accounts, s.host, logger.New("sensor"), s.sensorOpts...); err != nil {
		return err
	}
	if s.hass != nil {
		if err := s.hass.Online(); err != nil {
			s.log.Warnf("availability: %v", err)
		}
	}
	for _, acc := range s.accounts {
		ch := s.bus.Subscribe()
		go func(acc *account.Account) {
			defer coremon.Recover()
			acc.Listen(ctx, ch)
		}(acc)
	}
	if s.telemetry != nil {
		go func() {
			defer coremon.Recover()
			if err := s.telemetry.Start(ctx); err != nil {
				s.log.Errorf("telemetry: %v", err)
			}
		}()
	}
	if s.cfg.HTTP.Enabled {
		go func() {
			if err := metrics.StartServer(ctx, s.cfg.HTTP.Address, s.Handler()); err != nil {
				s.log.Errorf("http server: %v", err)
			}
		}()
	}
	return nil
}

// Run starts the service and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

// Handler returns the HTTP API.
func (s *Service) Handler() http.Handler {
	return metrics.NewServeMux(map[string]http.Handler{
		"/api/sensors":                 sensors.NewStatusHandler(s.store),
		"/api/sensors/history":         sensors.NewHistoryHandler(s.history(), s.cfg.HTTP.HistoryToken),
		"/api/sensors/history/summary": sensors.NewSummaryHandler(s.history(), s.cfg.HTTP.HistoryToken),
	})
}

func (s *Service) history() coremetrics.HistoryStore {
	if hs, ok := s.sink.(coremetrics.HistoryStore); ok {
		return hs
	}
	return noHistory{}
}

type noHistory struct{}

func (noHistory) Query(context.Context, coremetrics.HistoryQuery) ([]coremetrics.SensorStateEvent, error) {
	return nil, coremetrics.ErrNoHistory
}

func (s *Service) vins() []string {
	var out []string
	for _, acc := range s.accounts {
		for _, v := range acc.Vehicles() {
			out = append(out, v.VIN)
		}
	}
	return out
}

// Close releases resources held by the service. Further calls return the
// first result.
func (s *Service) Close() error {
	s.closeOnce.Do(func() { s.closeErr = s.close() })
	return s.closeErr
}

func (s *Service) close() error {
	if s.host != nil {
		s.host.RemoveAll()
	}
	if s.hass != nil {
		if err := s.hass.Offline(); err != nil {
			s.log.Warnf("availability: %v", err)
		}
	}
	s.bus.Close()
	var err error
	if c, ok := s.sink.(io.Closer); ok {
		err = c.Close()
	}
	s.closeClient()
	coremon.Flush(2 * time.Second)
	return err
}

func (s *Service) closeClient() {
	if s.paho != nil {
		s.paho.Disconnect()
	}
}
