package led

import (
	"log/slog"
	"os"
	"strings"
)

const deviceTreeModelPath = "/proc/device-tree/model"

// boardLEDs maps a device tree model substring to the sysfs name of the
// board's status LED.
var boardLEDs = []struct {
	model string
	sysfs string
}{
	{"Raspberry Pi", "ACT"},
	{"NanoPC-T6", "usr_led"},
	{"Orange Pi", "blue_led"},
}

// New creates a new LED controller based on board detection
// Falls back to no-op controller if LEDs are not available.
func New(logger *slog.Logger) Controller {
	return forModel(detectBoard(), logger)
}

func forModel(boardModel string, logger *slog.Logger) Controller {
	for _, b := range boardLEDs {
		if strings.Contains(boardModel, b.model) {
			logger.Info("Using sysfs LED controller", "board_model", boardModel, "led", b.sysfs)
			return newSysfs(sysfsLEDPath, map[string]string{StatusLED: b.sysfs})
		}
	}
	logger.Info("No LED support detected, using no-op controller", "board_model", boardModel)
	return newNoop(logger)
}

// detectBoard reads the device tree model to identify the board.
func detectBoard() string {
	data, err := os.ReadFile(deviceTreeModelPath)
	if err != nil {
		return "unknown"
	}

	// Device tree model contains null bytes, trim them
	return strings.TrimRight(string(data), "\x00")
}
