package ffmpeg

import (
	"strings"
	"testing"
)

func TestApplyOptionsToCommand(t *testing.T) {
	tests := []struct {
		name    string
		options []OptionType
		want    string
	}{
		{"none", nil, ""},
		{"thread queue", []OptionType{OptionThreadQueue1024}, " -thread_queue_size 1024"},
		{"fflags merged", []OptionType{OptionGeneratePTS, OptionIgnoreDTS}, " -fflags +genpts+igndts"},
		{"low latency", []OptionType{OptionLowLatency}, " -flags +low_delay -fflags +nobuffer"},
		{"unknown skipped", []OptionType{"bogus", OptionIgnoreErrors}, " -err_detect ignore_err"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cmd strings.Builder
			applied := ApplyOptionsToCommand(tt.options, &cmd)
			if got := cmd.String(); got != tt.want {
				t.Errorf("command = %q, want %q", got, tt.want)
			}
			for _, a := range applied {
				if a == "bogus" {
					t.Error("unknown option reported as applied")
				}
			}
		})
	}
}

func TestValidateOptions(t *testing.T) {
	tests := []struct {
		name    string
		options []OptionType
		wantErr string
	}{
		{"defaults", GetDefaultOptions(), ""},
		{"exclusive group", []OptionType{OptionThreadQueue1024, OptionThreadQueue4096}, "exclusive group"},
		{"conflict", []OptionType{OptionGeneratePTS, OptionWallclockTimestamp}, "conflicts with"},
		{"empty", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOptions(tt.options)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseOptions(t *testing.T) {
	got, err := ParseOptions([]string{"low_latency", " ignore_err ", ""})
	if err != nil {
		t.Fatalf("ParseOptions() error = %v", err)
	}
	if len(got) != 2 || got[0] != OptionLowLatency || got[1] != OptionIgnoreErrors {
		t.Errorf("ParseOptions() = %v", got)
	}

	if _, err := ParseOptions([]string{"nope"}); err == nil {
		t.Error("expected error for unknown option")
	}
	if _, err := ParseOptions([]string{"thread_queue_1024", "thread_queue_4096"}); err == nil {
		t.Error("expected error for exclusive options")
	}
}

func TestGetDefaultOptions(t *testing.T) {
	defaults := GetDefaultOptions()
	if len(defaults) == 0 {
		t.Fatal("expected default options")
	}
	for _, d := range defaults {
		if opt := GetOptionByKey(d); opt == nil || !opt.AppDefault {
			t.Errorf("%s is not an app default", d)
		}
	}
}
