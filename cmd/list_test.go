package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/connecteddrive/core/account"
	"github.com/kilianp07/connecteddrive/core/model"
	"github.com/kilianp07/connecteddrive/core/sensor"
	"github.com/kilianp07/connecteddrive/infra/logger"
)

func TestWriteSensors(t *testing.T) {
	v := model.NewVehicle("WBA12345", "Tesla-Killer", model.DriveTrainConventional)
	v.SetState(&model.State{Mileage: model.Int(12345), RemainingFuel: model.Float(40.5)})
	acc := account.New("home", account.StaticProvider{List: []*model.Vehicle{v}}, logger.NopLogger{})
	require.NoError(t, acc.LoadVehicles(context.Background()))
	adapters, err := sensor.Build([]*account.Account{acc})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeSensors(&buf, adapters))
	out := buf.String()
	assert.Contains(t, out, "WBA12345-mileage")
	assert.Contains(t, out, "Tesla-Killer mileage")
	assert.Contains(t, out, "12345")
	assert.Contains(t, out, "40.5")
	assert.Contains(t, out, "unknown")
	assert.Contains(t, out, "4 sensors")
}

func TestLoadConfigLogLevelOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`accounts:
  - name: home
    vehicles:
      - vin: WBA12345
        drive_train: BEV
`), 0o644))
	oldPath, oldLevel := cfgPath, logLevel
	t.Cleanup(func() { cfgPath, logLevel = oldPath, oldLevel })

	cfgPath, logLevel = path, ""
	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Logging.Level)

	logLevel = "debug"
	cfg, err = loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)

	logLevel = "loud"
	_, err = loadConfig()
	assert.Error(t, err)
}
