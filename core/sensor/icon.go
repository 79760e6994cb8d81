package sensor

import (
	"fmt"
	"math"
)

const iconBattery = "mdi:battery"

// BatteryIcon returns a battery icon scaled to level, in 20% steps while
// charging and 10% steps otherwise.
func BatteryIcon(level *int, charging bool) string {
	if level == nil {
		return iconBattery + "-unknown"
	}
	l := float64(*level)
	switch {
	case charging && l > 10:
		return fmt.Sprintf("%s-charging-%d", iconBattery, int(math.RoundToEven(l/20-0.01))*20)
	case charging:
		return iconBattery + "-outline"
	case l <= 5:
		return iconBattery + "-alert"
	case l < 95:
		return fmt.Sprintf("%s-%d", iconBattery, int(math.RoundToEven(l/10-0.01))*10)
	}
	return iconBattery
}
