package mqtt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"testing"
	"time"

	"fmt"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremqtt "github.com/kilianp07/connecteddrive/core/mqtt"
)

// helper to generate self-signed cert
func generateCert(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	tmpl := x509.Certificate{SerialNumber: big.NewInt(1), Subject: pkix.Name{CommonName: "test"}, NotBefore: time.Now(), NotAfter: time.Now().Add(time.Hour)}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("create cert: %v", err)
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	dir := t.TempDir()
	certFile = dir + "/cert.pem"
	keyFile = dir + "/key.pem"
	caFile = dir + "/ca.pem"
	if err := os.WriteFile(certFile, certPEM, 0644); err != nil {
		t.Fatalf("write cert: %v", err)
	}
	if err := os.WriteFile(keyFile, keyPEM, 0644); err != nil {
		t.Fatalf("write key: %v", err)
	}
	if err := os.WriteFile(caFile, certPEM, 0644); err != nil {
		t.Fatalf("write ca: %v", err)
	}
	return
}

func TestLoadTLSConfig(t *testing.T) {
	cert, key, ca := generateCert(t)
	cfg := Config{UseTLS: true, ClientCert: cert, ClientKey: key, CABundle: ca}
	tlsCfg, err := cfg.LoadTLSConfig()
	if err != nil {
		t.Fatalf("load tls: %v", err)
	}
	if len(tlsCfg.Certificates) == 0 {
		t.Fatalf("no certs loaded")
	}
	if tlsCfg.RootCAs == nil {
		t.Fatalf("no root CAs")
	}
}

func TestNewClientOptionsAuth(t *testing.T) {
	opts, err := NewClientOptions(Config{Broker: "tcp://localhost:1883", ClientID: "id", Username: "u", Password: "p"})
	if err != nil {
		t.Fatalf("opts: %v", err)
	}
	if opts.Username != "u" || opts.Password != "p" {
		t.Fatalf("auth not set")
	}
}

func TestNewClientOptionsCertOnly(t *testing.T) {
	opts, err := NewClientOptions(Config{Broker: "tcp://localhost:1883", ClientID: "id", Username: "u", AuthMethod: "cert"})
	require.NoError(t, err)
	assert.Empty(t, opts.Username)
}

func newTestClient(t *testing.T, mc *mockClient, cfg Config) *PahoClient {
	t.Helper()
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() { newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) } })
	if cfg.Broker == "" {
		cfg.Broker = "tcp://localhost:1883"
		cfg.ClientID = "id"
	}
	cli, err := NewPahoClient(cfg)
	require.NoError(t, err)
	return cli
}

func TestQoSSettings(t *testing.T) {
	mc := &mockClient{}
	cli := newTestClient(t, mc, Config{QoS: map[string]byte{"state": 1, "discovery": 2}})
	assert.Equal(t, byte(1), cli.QoS("state", 0))
	assert.Equal(t, byte(2), cli.QoS("discovery", 0))
	assert.Equal(t, byte(0), cli.QoS("telemetry", 0))

	require.NoError(t, cli.Publish("bmw/WBA1/mileage/state", cli.QoS("state", 0), true, []byte("42")))
	require.Len(t, mc.published, 1)
	assert.Equal(t, byte(1), mc.published[0].qos)
	assert.True(t, mc.published[0].retained)
	assert.Equal(t, "42", string(mc.published[0].payload))
}

func TestLWTConfigured(t *testing.T) {
	mc := &mockClient{}
	cli := newTestClient(t, mc, Config{Broker: "tcp://localhost:1883", ClientID: "id", LWTTopic: "lwt", LWTPayload: "bye", LWTQoS: 1})
	if !mc.opts.WillEnabled {
		t.Fatalf("will not enabled")
	}
	if mc.opts.WillTopic != "lwt" || string(mc.opts.WillPayload) != "bye" {
		t.Fatalf("will options incorrect")
	}
	cli.Disconnect()
	if len(mc.published) != 0 {
		t.Fatalf("unexpected publish on disconnect")
	}
}

func TestRetryLogic(t *testing.T) {
	mc := &mockClient{publishErrs: []error{fmt.Errorf("net fail"), nil}}
	cli := newTestClient(t, mc, Config{Broker: "tcp://localhost:1883", ClientID: "id", MaxRetries: 1, BackoffMS: 1})
	require.NoError(t, cli.Publish("t", 0, false, []byte("x")))
	assert.Len(t, mc.published, 2)
}

func TestPublishTimeout(t *testing.T) {
	mc := &mockClient{stall: true}
	cli := newTestClient(t, mc, Config{Broker: "tcp://localhost:1883", ClientID: "id", PublishTimeoutMS: 1, BackoffMS: 1})
	err := cli.Publish("t", 0, false, []byte("x"))
	assert.ErrorIs(t, err, coremqtt.ErrPublishTimeout)
}

func TestSubscribeDeliversAndResubscribes(t *testing.T) {
	mc := &mockClient{}
	cli := newTestClient(t, mc, Config{})

	var got []string
	require.NoError(t, cli.Subscribe("bmw/state/+", 1, func(topic string, payload []byte) {
		got = append(got, topic+"="+string(payload))
	}))
	require.Len(t, mc.subscribed, 1)
	mc.deliver("bmw/state/WBA1", []byte("{}"))
	assert.Equal(t, []string{"bmw/state/WBA1={}"}, got)

	// reconnect restores the subscription
	mc.opts.OnConnect(mc)
	assert.Len(t, mc.subscribed, 2)
	assert.Equal(t, "bmw/state/+", mc.subscribed[1].topic)

	require.NoError(t, cli.Unsubscribe("bmw/state/+"))
	mc.opts.OnConnect(mc)
	assert.Len(t, mc.subscribed, 2)
}

func TestSubscribeError(t *testing.T) {
	mc := &mockClient{subscribeErr: fmt.Errorf("denied")}
	cli := newTestClient(t, mc, Config{})
	err := cli.Subscribe("x", 0, func(string, []byte) {})
	require.Error(t, err)
	mc.subscribeErr = nil
	mc.opts.OnConnect(mc)
	assert.Empty(t, mc.subscribed)
}

// mockClient implements pahoClient for tests
type mockClient struct {
	opts       *paho.ClientOptions
	subscribed []struct {
		topic   string
		qos     byte
		handler paho.MessageHandler
	}
	published []struct {
		topic    string
		qos      byte
		retained bool
		payload  []byte
	}
	publishErrs  []error
	subscribeErr error
	stall        bool
}

func (m *mockClient) IsConnected() bool { return true }
func (m *mockClient) Connect() paho.Token {
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(m)
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) {}
func (m *mockClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	b, _ := payload.([]byte)
	m.published = append(m.published, struct {
		topic    string
		qos      byte
		retained bool
		payload  []byte
	}{topic, qos, retained, b})
	if m.stall {
		return &dummyToken{stall: true}
	}
	if len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		return &dummyToken{err: err}
	}
	return &dummyToken{}
}
func (m *mockClient) Subscribe(topic string, qos byte, h paho.MessageHandler) paho.Token {
	if m.subscribeErr != nil {
		return &dummyToken{err: m.subscribeErr}
	}
	m.subscribed = append(m.subscribed, struct {
		topic   string
		qos     byte
		handler paho.MessageHandler
	}{topic, qos, h})
	return &dummyToken{}
}
func (m *mockClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &dummyToken{}
}
func (m *mockClient) Unsubscribe(...string) paho.Token        { return &dummyToken{} }
func (m *mockClient) AddRoute(string, paho.MessageHandler)    {}
func (m *mockClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }
func (m *mockClient) IsConnectionOpen() bool                  { return true }

func (m *mockClient) deliver(topic string, payload []byte) {
	for _, s := range m.subscribed {
		if coremqtt.Match(s.topic, topic) {
			s.handler(m, mockMessage{topic: topic, p: payload})
		}
	}
}

type dummyToken struct {
	err   error
	stall bool
}

func (d dummyToken) Wait() bool                     { return !d.stall }
func (d dummyToken) WaitTimeout(time.Duration) bool { return !d.stall }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }

type mockMessage struct {
	topic string
	p     []byte
}

func (m mockMessage) Duplicate() bool   { return false }
func (m mockMessage) Qos() byte         { return 0 }
func (m mockMessage) Retained() bool    { return false }
func (m mockMessage) Topic() string     { return m.topic }
func (m mockMessage) MessageID() uint16 { return 0 }
func (m mockMessage) Payload() []byte   { return m.p }
func (m mockMessage) Ack()              {}
