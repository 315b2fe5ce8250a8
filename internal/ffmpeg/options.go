package ffmpeg

import (
	"fmt"
	"strings"
)

// OptionType represents a strongly typed FFmpeg input option.
type OptionType string

// FFmpeg option constants
const (
	OptionGeneratePTS        OptionType = "genpts"
	OptionIgnoreDTS          OptionType = "igndts"
	OptionIgnoreErrors       OptionType = "ignore_err"
	OptionWallclockTimestamp OptionType = "wallclock_ts"
	OptionThreadQueue1024    OptionType = "thread_queue_1024"
	OptionThreadQueue4096    OptionType = "thread_queue_4096"
	OptionLowLatency         OptionType = "low_latency"
)

// ExclusiveGroup represents a group of mutually exclusive options
type ExclusiveGroup string

// GroupThreadQueue holds the thread queue size variants.
const GroupThreadQueue ExclusiveGroup = "thread_queue"

// Option describes one input flag set.
type Option struct {
	Key            OptionType
	Name           string
	Description    string
	AppDefault     bool
	ExclusiveGroup ExclusiveGroup
	ConflictsWith  []OptionType
}

// AllOptions lists every supported option.
var AllOptions = []Option{
	{
		Key:           OptionGeneratePTS,
		Name:          "Generate PTS",
		Description:   "Generate presentation timestamps",
		ConflictsWith: []OptionType{OptionWallclockTimestamp},
	},
	{
		Key:         OptionIgnoreDTS,
		Name:        "Ignore DTS",
		Description: "Ignore decode timestamps to handle corrupted streams",
	},
	{
		Key:         OptionIgnoreErrors,
		Name:        "Ignore Errors",
		Description: "Continue despite corrupt frames from the camera",
	},
	{
		Key:           OptionWallclockTimestamp,
		Name:          "Wallclock Timestamps",
		Description:   "Use wallclock as timestamps (helps with buffer issues)",
		ConflictsWith: []OptionType{OptionGeneratePTS},
	},
	{
		Key:            OptionThreadQueue1024,
		Name:           "Large Thread Queue",
		Description:    "Use 1024 thread queue size",
		AppDefault:     true,
		ExclusiveGroup: GroupThreadQueue,
	},
	{
		Key:            OptionThreadQueue4096,
		Name:           "Extra Large Thread Queue",
		Description:    "Use 4096 thread queue size (for problematic devices)",
		ExclusiveGroup: GroupThreadQueue,
	},
	{
		Key:         OptionLowLatency,
		Name:        "Low Latency Mode",
		Description: "Optimize for minimal latency",
		AppDefault:  true,
	},
}

// GetOptionByKey returns an option by its key
func GetOptionByKey(key OptionType) *Option {
	for i := range AllOptions {
		if AllOptions[i].Key == key {
			return &AllOptions[i]
		}
	}
	return nil
}

// GetDefaultOptions returns the options enabled when none are configured.
func GetDefaultOptions() []OptionType {
	var defaults []OptionType
	for _, option := range AllOptions {
		if option.AppDefault {
			defaults = append(defaults, option.Key)
		}
	}
	return defaults
}

// ParseOptions converts configured option names, rejecting unknown names and
// invalid combinations.
func ParseOptions(names []string) ([]OptionType, error) {
	options := make([]OptionType, 0, len(names))
	for _, name := range names {
		key := OptionType(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if GetOptionByKey(key) == nil {
			return nil, fmt.Errorf("unknown ffmpeg option %q", name)
		}
		options = append(options, key)
	}
	if err := ValidateOptions(options); err != nil {
		return nil, err
	}
	return options, nil
}

// ValidateOptions checks for conflicts and exclusive group violations
func ValidateOptions(selected []OptionType) error {
	groups := make(map[ExclusiveGroup][]string)
	selectedSet := make(map[OptionType]bool)

	for _, key := range selected {
		selectedSet[key] = true
		if option := GetOptionByKey(key); option != nil && option.ExclusiveGroup != "" {
			groups[option.ExclusiveGroup] = append(groups[option.ExclusiveGroup], option.Name)
		}
	}

	for group, names := range groups {
		if len(names) > 1 {
			return fmt.Errorf("multiple options from exclusive group '%s' selected: %s", group, strings.Join(names, ", "))
		}
	}

	for _, key := range selected {
		option := GetOptionByKey(key)
		if option == nil {
			continue
		}
		for _, conflict := range option.ConflictsWith {
			if selectedSet[conflict] {
				conflictName := string(conflict)
				if c := GetOptionByKey(conflict); c != nil {
					conflictName = c.Name
				}
				return fmt.Errorf("option '%s' conflicts with '%s'", option.Name, conflictName)
			}
		}
	}

	return nil
}

// ApplyOptionsToCommand writes the input flags for options to cmd and
// returns the options it applied.
func ApplyOptionsToCommand(options []OptionType, cmd *strings.Builder) []OptionType {
	var applied []OptionType
	var fflags []string

	for _, option := range options {
		switch option {
		case OptionGeneratePTS:
			fflags = append(fflags, "+genpts")
		case OptionIgnoreDTS:
			fflags = append(fflags, "+igndts")
		case OptionIgnoreErrors:
			cmd.WriteString(" -err_detect ignore_err")
		case OptionWallclockTimestamp:
			cmd.WriteString(" -use_wallclock_as_timestamps 1")
		case OptionThreadQueue1024:
			cmd.WriteString(" -thread_queue_size 1024")
		case OptionThreadQueue4096:
			cmd.WriteString(" -thread_queue_size 4096")
		case OptionLowLatency:
			fflags = append(fflags, "+nobuffer")
			cmd.WriteString(" -flags +low_delay")
		default:
			continue
		}
		applied = append(applied, option)
	}

	if len(fflags) > 0 {
		cmd.WriteString(" -fflags " + strings.Join(fflags, ""))
	}

	return applied
}
