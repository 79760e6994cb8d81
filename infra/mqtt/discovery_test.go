package mqtt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/connecteddrive/core/model"
	"github.com/kilianp07/connecteddrive/infra/logger"
)

func respondTo(b *MemoryBroker, magic string, payloads ...string) {
	_ = b.Subscribe("fleet/discover", 0, func(_ string, p []byte) {
		if string(p) != magic {
			return
		}
		for _, r := range payloads {
			_ = b.Publish("fleet/announce", 0, false, []byte(r))
		}
	})
}

func TestDiscoveryVehicles(t *testing.T) {
	b := NewMemoryBroker()
	respondTo(b, "ping",
		`{"vin":"WBA1","name":"i3","drive_train":"bev_rex"}`,
		`{"vin":"WBA1","name":"dup","drive_train":"BEV"}`,
		`{"vin":"WBA2","drive_train":"CONVENTIONAL"}`,
		`{"vin":"WBA3","drive_train":"HOVERCRAFT"}`,
		`not json`,
	)
	d := NewDiscovery(b, "fleet/discover", "fleet/announce", "ping", 20*time.Millisecond, logger.NopLogger{})

	vs, err := d.Vehicles(context.Background())
	require.NoError(t, err)
	require.Len(t, vs, 2)
	assert.Equal(t, "WBA1", vs[0].VIN)
	assert.Equal(t, "i3", vs[0].Name)
	assert.Equal(t, model.DriveTrainBEVRex, vs[0].DriveTrain)
	assert.Equal(t, "WBA2", vs[1].Name)
	assert.Equal(t, 1, b.Subscriptions(), "response subscription removed")
}

func TestDiscoveryContextCancel(t *testing.T) {
	b := NewMemoryBroker()
	d := NewDiscovery(b, "fleet/discover", "fleet/announce", "ping", time.Hour, logger.NopLogger{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	anns, err := d.Discover(ctx, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, anns)
}

func TestDiscoveryPublishError(t *testing.T) {
	b := NewMemoryBroker()
	b.FailOn["fleet/discover"] = true
	d := NewDiscovery(b, "fleet/discover", "fleet/announce", "ping", time.Millisecond, logger.NopLogger{})
	_, err := d.Vehicles(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 0, b.Subscriptions())
}
