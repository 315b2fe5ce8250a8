package led

// StatusLED is the logical name every board maps to its status LED.
const StatusLED = "status"

// Patterns understood by Controller.Set.
const (
	PatternSolid = "solid"
	PatternBlink = "blink"
)

// Controller abstracts LED hardware control across different SBC boards.
// Implementations handle board-specific LED naming and capabilities.
type Controller interface {
	// Set controls an LED's state and optional pattern
	// Parameters:
	//   ledType: logical LED name (e.g., "status")
	//   enabled: whether the LED should be on or off
	//   pattern: "solid" or "blink"; empty string means no pattern change
	Set(ledType string, enabled bool, pattern string) error

	// Available returns the list of LED types supported by this controller
	Available() []string

	// Patterns returns the list of patterns supported by this controller
	Patterns() []string
}
