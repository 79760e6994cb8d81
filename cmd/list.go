package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/kilianp07/connecteddrive/app"
	"github.com/kilianp07/connecteddrive/core/sensor"
	"github.com/kilianp07/connecteddrive/infra/hass"
	"github.com/kilianp07/connecteddrive/infra/logger"
)

var vehiclesCmd = &cobra.Command{
	Use:   "vehicles",
	Short: "Vehicle related commands",
}

var vehiclesLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List the vehicles of every account",
	RunE:  runVehiclesLs,
}

var sensorsCmd = &cobra.Command{
	Use:   "sensors",
	Short: "Sensor related commands",
}

var sensorsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List the sensors that would be created, with their current value",
	RunE:  runSensorsLs,
}

func init() {
	vehiclesCmd.AddCommand(vehiclesLsCmd)
	sensorsCmd.AddCommand(sensorsLsCmd)
	rootCmd.AddCommand(vehiclesCmd, sensorsCmd)
}

// loadService builds a service for one-shot commands. The MQTT client id
// gets a suffix so a running instance is not disconnected.
func loadService(ctx context.Context) (*app.Service, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	cfg.MQTT.ClientID = fmt.Sprintf("%s-ls-%d", cfg.MQTT.ClientID, time.Now().UnixNano())
	cfg.MQTT.LWTTopic = ""
	cfg.Telemetry.Enabled = false
	cfg.Hass.Enabled = false
	svc, err := app.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := svc.Load(ctx); err != nil {
		_ = svc.Close()
		return nil, err
	}
	return svc, nil
}

func closeService(cmd *cobra.Command, svc *app.Service) {
	if err := svc.Close(); err != nil {
		logger.New("cli").Errorf("service close: %v", err)
		if _, ferr := fmt.Fprintf(cmd.ErrOrStderr(), "error while closing: %v\n", err); ferr != nil {
			fmt.Println("failed to write to stderr:", ferr)
		}
	}
}

func runVehiclesLs(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	svc, err := loadService(ctx)
	if err != nil {
		return err
	}
	defer closeService(cmd, svc)

	t := newTable(cmd.OutOrStdout(), "Account", "VIN", "Name", "Drive train")
	for _, acc := range svc.Accounts() {
		for _, v := range acc.Vehicles() {
			t.Append([]string{acc.Name(), v.VIN, v.Name, v.DriveTrain.String()})
		}
	}
	t.Render()
	return nil
}

func runSensorsLs(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	svc, err := loadService(ctx)
	if err != nil {
		return err
	}
	defer closeService(cmd, svc)

	adapters, err := sensor.Build(svc.Accounts(), svc.SensorOptions()...)
	if err != nil {
		return err
	}
	return writeSensors(cmd.OutOrStdout(), adapters)
}

func writeSensors(w io.Writer, adapters []*sensor.Adapter) error {
	t := newTable(w, "Unique ID", "Name", "State", "Unit", "Icon")
	for _, a := range adapters {
		if err := a.Refresh(); err != nil {
			return err
		}
		t.Append([]string{a.UniqueID(), a.Name(), hass.FormatState(a.Value()), a.Unit(), a.Icon()})
	}
	t.Render()
	_, err := fmt.Fprintln(w, strconv.Itoa(len(adapters))+" sensors")
	return err
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetHeader(header)
	t.SetAutoFormatHeaders(false)
	t.SetBorder(false)
	return t
}
