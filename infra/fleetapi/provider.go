package fleetapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/kilianp07/connecteddrive/config"
	"github.com/kilianp07/connecteddrive/core/logger"
	"github.com/kilianp07/connecteddrive/core/model"
)

// VehicleInfo is one entry of the vehicle list.
type VehicleInfo struct {
	VIN        string `json:"vin"`
	Model      string `json:"model"`
	Name       string `json:"name"`
	DriveTrain string `json:"driveTrain"`
}

// VehiclesResponse is the body of the vehicle list endpoint.
type VehiclesResponse struct {
	Vehicles []VehicleInfo `json:"vehicles"`
}

// Provider lists the vehicles of an account from a REST endpoint
// protected by OAuth2 client credentials.
type Provider struct {
	url   string
	creds *ClientCred
	cli   *http.Client
	log   logger.Logger
}

// NewProvider returns a provider for cfg.
func NewProvider(cfg config.RESTConfig, log logger.Logger) *Provider {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	creds := NewClientCred(cfg)
	return &Provider{
		url:   cfg.URL,
		creds: creds,
		cli: &http.Client{
			Timeout:   timeout,
			Transport: &oauth2.Transport{Source: creds, Base: http.DefaultTransport},
		},
		log: log,
	}
}

// Vehicles implements account.VehicleProvider. Entries with an unknown
// drive train are skipped.
func (p *Provider) Vehicles(ctx context.Context) ([]*model.Vehicle, error) {
	resp, err := p.get(ctx)
	if err == nil && resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		if _, err = p.creds.ForceRefresh(ctx); err == nil {
			resp, err = p.get(ctx)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("vehicle list: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("vehicle list: unexpected status %d: %s", resp.StatusCode, body)
	}

	var body VehiclesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("vehicle list: %w", err)
	}
	out := make([]*model.Vehicle, 0, len(body.Vehicles))
	for _, v := range body.Vehicles {
		if v.VIN == "" {
			continue
		}
		dt, err := model.ParseDriveTrain(v.DriveTrain)
		if err != nil {
			p.log.Warnf("vehicle %s: %v", v.VIN, err)
			continue
		}
		name := v.Name
		if name == "" {
			name = v.Model
		}
		if name == "" {
			name = v.VIN
		}
		out = append(out, model.NewVehicle(v.VIN, name, dt))
	}
	return out, nil
}

func (p *Provider) get(ctx context.Context) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return p.cli.Do(req)
}
