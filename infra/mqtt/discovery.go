package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kilianp07/connecteddrive/core/logger"
	"github.com/kilianp07/connecteddrive/core/model"
	coremqtt "github.com/kilianp07/connecteddrive/core/mqtt"
)

// VehicleAnnouncement is the payload vehicles send in response to a
// discovery broadcast.
type VehicleAnnouncement struct {
	VIN        string `json:"vin"`
	Name       string `json:"name"`
	DriveTrain string `json:"drive_train"`
}

// Discovery lists vehicles by publishing a magic word on a broadcast topic
// and collecting announcements from a response topic for a short period.
type Discovery struct {
	cli            coremqtt.Client
	broadcastTopic string
	responseTopic  string
	magicWord      string
	timeout        time.Duration
	log            logger.Logger
}

// NewDiscovery creates a discovery provider on top of an existing client.
func NewDiscovery(cli coremqtt.Client, broadcastTopic, responseTopic, magicWord string, timeout time.Duration, log logger.Logger) *Discovery {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Discovery{
		cli:            cli,
		broadcastTopic: broadcastTopic,
		responseTopic:  responseTopic,
		magicWord:      magicWord,
		timeout:        timeout,
		log:            log,
	}
}

// Vehicles implements account.VehicleProvider.
func (d *Discovery) Vehicles(ctx context.Context) ([]*model.Vehicle, error) {
	anns, err := d.Discover(ctx, d.timeout)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(anns))
	vehicles := make([]*model.Vehicle, 0, len(anns))
	for _, a := range anns {
		if a.VIN == "" || seen[a.VIN] {
			continue
		}
		dt, err := model.ParseDriveTrain(a.DriveTrain)
		if err != nil {
			d.log.Warnf("vehicle %s: %v", a.VIN, err)
			continue
		}
		seen[a.VIN] = true
		name := a.Name
		if name == "" {
			name = a.VIN
		}
		vehicles = append(vehicles, model.NewVehicle(a.VIN, name, dt))
	}
	return vehicles, nil
}

// Discover broadcasts the magic word and collects announcements until the timeout.
func (d *Discovery) Discover(ctx context.Context, timeout time.Duration) ([]VehicleAnnouncement, error) {
	var (
		anns []VehicleAnnouncement
		ch   = make(chan VehicleAnnouncement, 16)
	)
	if err := d.cli.Subscribe(d.responseTopic, 0, func(_ string, payload []byte) {
		var a VehicleAnnouncement
		if err := json.Unmarshal(payload, &a); err != nil {
			d.log.Errorf("invalid discovery payload: %v", err)
			return
		}
		select {
		case ch <- a:
		default:
		}
	}); err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}
	defer func() {
		if err := d.cli.Unsubscribe(d.responseTopic); err != nil {
			d.log.Errorf("unsubscribe error: %v", err)
		}
	}()

	if err := d.cli.Publish(d.broadcastTopic, 0, false, []byte(d.magicWord)); err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case a := <-ch:
			anns = append(anns, a)
		case <-ctx.Done():
			return anns, nil
		case <-timer.C:
			return anns, nil
		}
	}
}
