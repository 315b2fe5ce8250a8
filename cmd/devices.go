package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smazurov/mjpegnode/internal/v4l2"
)

// CreateDevicesCmd creates the devices command, which lists V4L2 capture
// devices and the modes each one offers.
func CreateDevicesCmd() *cobra.Command {
	var (
		device string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List capture devices and their modes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths := []string{device}
			if device == "" {
				devices, err := v4l2.List()
				if err != nil {
					return err
				}
				paths = paths[:0]
				for _, d := range devices {
					paths = append(paths, d.Path)
				}
			}

			all := make([]v4l2.Capabilities, 0, len(paths))
			for _, path := range paths {
				caps, err := v4l2.Probe(path)
				if err != nil {
					return err
				}
				all = append(all, caps)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(all)
			}
			if len(all) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no capture devices found")
				return nil
			}
			for _, caps := range all {
				printCapabilities(cmd.OutOrStdout(), caps)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&device, "device", "d", "", "Probe only this device")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func printCapabilities(w io.Writer, caps v4l2.Capabilities) {
	fmt.Fprintf(w, "%s: %s (%s, %s)\n", caps.Path, caps.Name, caps.Driver, caps.ID)
	for _, f := range caps.Formats {
		emulated := ""
		if f.Emulated {
			emulated = " [emulated]"
		}
		fmt.Fprintf(w, "  %s %s%s\n", f.FourCC, f.Description, emulated)
		for _, m := range f.Modes {
			rates := make([]string, len(m.Rates))
			for i, r := range m.Rates {
				rates[i] = fmt.Sprintf("%g", r)
			}
			fmt.Fprintf(w, "    %s %s\n", m.Size, strings.Join(rates, " "))
		}
	}
}
