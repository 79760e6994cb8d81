package telemetry

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/connecteddrive/config"
	"github.com/kilianp07/connecteddrive/core/account"
	coremetrics "github.com/kilianp07/connecteddrive/core/metrics"
	coremqtt "github.com/kilianp07/connecteddrive/core/mqtt"
	"github.com/kilianp07/connecteddrive/infra/logger"
	"github.com/kilianp07/connecteddrive/internal/eventbus"
)

// PollRequest is published on the request topic to ask vehicles for their status.
type PollRequest struct {
	RequestID string   `json:"request_id"`
	VINs      []string `json:"vins,omitempty"`
}

// Options customises a Manager. Zero values select defaults.
type Options struct {
	Registerer prometheus.Registerer
	Clock      clock.Clock
	Recorder   coremetrics.PollRecorder
	// Expected lists the VINs a poll waits for.
	Expected func() []string
	Logger   logger.Logger
}

// Manager collects vehicle status documents either via push or polling and
// publishes them as account state updates.
type Manager struct {
	cfg      config.TelemetryConfig
	cli      coremqtt.Client
	bus      *eventbus.TypedBus[account.StateUpdate]
	recorder coremetrics.PollRecorder
	expected func() []string
	clock    clock.Clock
	log      logger.Logger

	respCh chan telemetryMessage

	pushes      prometheus.Counter
	decodeErrs  prometheus.Counter
	pollReq     prometheus.Counter
	pollResp    prometheus.Counter
	pollTimeout prometheus.Counter
	pollStale   prometheus.Counter
	busDrops    prometheus.Counter
	lastCollect prometheus.Gauge
	latency     prometheus.Histogram
}

type telemetryMessage struct {
	Topic   string
	Payload []byte
	Arrived time.Time
}

// NewManager prepares telemetry collection on cli.
func NewManager(cli coremqtt.Client, cfg config.TelemetryConfig, bus *eventbus.TypedBus[account.StateUpdate], opts Options) (*Manager, error) {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Registerer == nil {
		opts.Registerer = prometheus.DefaultRegisterer
	}
	if opts.Logger == nil {
		opts.Logger = logger.New("telemetry")
	}
	if opts.Expected == nil {
		opts.Expected = func() []string { return nil }
	}
	m := &Manager{
		cfg:         cfg,
		cli:         cli,
		bus:         bus,
		recorder:    opts.Recorder,
		expected:    opts.Expected,
		clock:       opts.Clock,
		log:         opts.Logger,
		respCh:      make(chan telemetryMessage, 100),
		pushes:      prometheus.NewCounter(prometheus.CounterOpts{Name: "telemetry_push_messages_total", Help: "Number of pushed vehicle status documents"}),
		decodeErrs:  prometheus.NewCounter(prometheus.CounterOpts{Name: "telemetry_decode_errors_total", Help: "Number of undecodable vehicle status documents"}),
		pollReq:     prometheus.NewCounter(prometheus.CounterOpts{Name: "telemetry_poll_requests_total", Help: "Number of telemetry poll requests"}),
		pollResp:    prometheus.NewCounter(prometheus.CounterOpts{Name: "telemetry_poll_responses_total", Help: "Number of telemetry poll responses"}),
		pollTimeout: prometheus.NewCounter(prometheus.CounterOpts{Name: "telemetry_poll_timeout_total", Help: "Number of telemetry poll timeouts"}),
		pollStale:   prometheus.NewCounter(prometheus.CounterOpts{Name: "telemetry_poll_stale_responses_total", Help: "Number of poll responses answering an earlier request"}),
		busDrops:    prometheus.NewCounter(prometheus.CounterOpts{Name: "telemetry_updates_dropped_total", Help: "Number of state updates an account subscriber missed"}),
		lastCollect: prometheus.NewGauge(prometheus.GaugeOpts{Name: "telemetry_last_collect_timestamp_seconds", Help: "Unix timestamp of last telemetry collection"}),
		latency:     prometheus.NewHistogram(prometheus.HistogramOpts{Name: "telemetry_collect_latency_seconds", Help: "Latency of telemetry collection", Buckets: prometheus.DefBuckets}),
	}
	for _, c := range []prometheus.Collector{m.pushes, m.decodeErrs, m.pollReq, m.pollResp, m.pollTimeout, m.pollStale, m.busDrops, m.lastCollect, m.latency} {
		if err := opts.Registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Manager) stateFilter() string {
	return strings.TrimSuffix(m.cfg.StatePrefix, "/") + "/+"
}

func (m *Manager) responseFilter() string {
	return strings.TrimSuffix(m.cfg.ResponsePrefix, "/") + "/+"
}

// Start runs telemetry collection until context is done.
func (m *Manager) Start(ctx context.Context) error {
	mode := strings.ToLower(m.cfg.Mode)
	if mode == "" {
		mode = "push"
	}
	var filters []string
	if mode == "push" || mode == "hybrid" {
		if err := m.cli.Subscribe(m.stateFilter(), 0, m.onPush); err != nil {
			return err
		}
		filters = append(filters, m.stateFilter())
	}
	if mode == "pull" || mode == "hybrid" {
		if err := m.cli.Subscribe(m.responseFilter(), 0, m.onResponse); err != nil {
			return err
		}
		filters = append(filters, m.responseFilter())
		go m.pollLoop(ctx)
	}
	m.log.Infof("telemetry collection started in %s mode", mode)
	<-ctx.Done()
	if len(filters) > 0 {
		if err := m.cli.Unsubscribe(filters...); err != nil {
			m.log.Warnf("unsubscribe: %v", err)
		}
	}
	return nil
}

func (m *Manager) onPush(topic string, payload []byte) {
	m.pushes.Inc()
	if err := m.process(payload, topic); err != nil {
		m.log.Errorf("push decode: %v", err)
	}
}

func (m *Manager) onResponse(topic string, payload []byte) {
	select {
	case m.respCh <- telemetryMessage{Topic: topic, Payload: payload, Arrived: m.clock.Now()}:
	default:
		m.log.Warnf("dropping poll response from %s", topic)
	}
}

func (m *Manager) pollLoop(ctx context.Context) {
	ticker := m.clock.Ticker(time.Duration(m.cfg.Interval()) * time.Second)
	defer ticker.Stop()
	m.doPoll(ctx)
	for {
		select {
		case <-ticker.C:
			m.doPoll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// drainStale applies responses that arrived after the previous poll ended.
// Their data is still published but they do not answer the next request.
func (m *Manager) drainStale() {
	for {
		select {
		case resp := <-m.respCh:
			m.applyStale(resp)
		default:
			return
		}
	}
}

func (m *Manager) applyStale(resp telemetryMessage) {
	m.pollStale.Inc()
	if _, err := m.processAt(resp.Payload, resp.Topic, resp.Arrived); err != nil {
		m.log.Errorf("poll decode: %v", err)
	}
}

// doPoll publishes a poll request and collects responses until every
// expected vehicle answered or the timeout elapsed. Responses carrying the
// id of another request are applied but not counted.
func (m *Manager) doPoll(ctx context.Context) {
	m.drainStale()
	start := m.clock.Now()
	vins := m.expected()
	expected := make(map[string]struct{}, len(vins))
	for _, v := range vins {
		expected[v] = struct{}{}
	}
	req := PollRequest{RequestID: uuid.NewString(), VINs: vins}
	payload, err := json.Marshal(req)
	if err != nil {
		m.log.Errorf("poll request: %v", err)
		return
	}
	m.pollReq.Inc()
	if err := m.cli.Publish(m.cfg.RequestTopic, 0, false, payload); err != nil {
		m.log.Errorf("poll request %s: %v", req.RequestID, err)
		return
	}
	m.log.Debugw("poll requested", map[string]any{"request_id": req.RequestID, "vehicles": len(vins)})

	ev := coremetrics.PollEvent{Requested: len(vins)}
	defer func() {
		ev.Latency = m.clock.Since(start)
		ev.Time = m.clock.Now()
		if m.recorder != nil {
			if err := m.recorder.RecordPoll(ev); err != nil {
				m.log.Warnf("record poll: %v", err)
			}
		}
	}()

	timeout := m.clock.Timer(time.Duration(m.cfg.Timeout()) * time.Second)
	defer timeout.Stop()
	for {
		select {
		case resp := <-m.respCh:
			if id := responseID(resp.Payload); id != "" && id != req.RequestID {
				m.log.Debugw("stale poll response", map[string]any{"request_id": id, "topic": resp.Topic})
				m.applyStale(resp)
				continue
			}
			vin, err := m.processAt(resp.Payload, resp.Topic, resp.Arrived)
			if err != nil {
				m.log.Errorf("poll decode: %v", err)
				continue
			}
			ev.Responses++
			m.pollResp.Inc()
			m.latency.Observe(m.clock.Since(start).Seconds())
			delete(expected, vin)
			if len(vins) > 0 && len(expected) == 0 {
				return
			}
		case <-timeout.C:
			for range expected {
				m.pollTimeout.Inc()
			}
			ev.Timeouts = len(expected)
			if len(expected) > 0 {
				m.log.Warnf("poll %s: %d vehicles did not answer", req.RequestID, len(expected))
			}
			return
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) process(payload []byte, topic string) error {
	_, err := m.processAt(payload, topic, m.clock.Now())
	return err
}

func (m *Manager) processAt(payload []byte, topic string, arrived time.Time) (string, error) {
	u, err := Decode(payload, topic, arrived)
	if err != nil {
		m.decodeErrs.Inc()
		return "", err
	}
	m.lastCollect.Set(float64(m.clock.Now().Unix()))
	if n := m.bus.Publish(u); n > 0 {
		m.busDrops.Add(float64(n))
		m.log.Warnf("state update for %s missed by %d subscribers", u.VIN, n)
	}
	return u.VIN, nil
}
