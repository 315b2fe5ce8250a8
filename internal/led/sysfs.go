package led

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

const sysfsLEDPath = "/sys/class/leds"

// sysfs implements Controller using Linux sysfs LED interface
type sysfs struct {
	root string
	leds map[string]string // LED type -> sysfs name mapping
}

func newSysfs(root string, leds map[string]string) *sysfs {
	return &sysfs{root: root, leds: leds}
}

// Set controls an LED's state and optional pattern. Blinking is delegated
// to the kernel heartbeat trigger; solid and off use manual brightness.
func (s *sysfs) Set(ledType string, enabled bool, pattern string) error {
	sysfsName, ok := s.leds[ledType]
	if !ok {
		return fmt.Errorf("LED type %q not supported on this board", ledType)
	}

	ledPath := filepath.Join(s.root, sysfsName)
	if _, err := os.Stat(ledPath); os.IsNotExist(err) {
		return fmt.Errorf("LED %q not found at %s", ledType, ledPath)
	}

	trigger := "none"
	if enabled && pattern == PatternBlink {
		trigger = "heartbeat"
	}
	if pattern != "" || !enabled {
		if err := write(filepath.Join(ledPath, "trigger"), trigger); err != nil {
			return fmt.Errorf("failed to set LED trigger: %w", err)
		}
	}
	if trigger == "heartbeat" {
		return nil
	}

	brightness := "0"
	if enabled {
		brightness = "1"
	}
	if err := write(filepath.Join(ledPath, "brightness"), brightness); err != nil {
		return fmt.Errorf("failed to set LED brightness: %w", err)
	}
	return nil
}

func write(path, value string) error {
	return os.WriteFile(path, []byte(value), 0o644)
}

// Available returns the list of LED types supported by this controller
func (s *sysfs) Available() []string {
	types := make([]string, 0, len(s.leds))
	for ledType := range s.leds {
		types = append(types, ledType)
	}
	slices.Sort(types)
	return types
}

// Patterns returns the list of patterns supported by this controller
func (s *sysfs) Patterns() []string {
	return []string{PatternSolid, PatternBlink}
}
