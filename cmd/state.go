package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/smazurov/mjpegnode/internal/logging"
	"github.com/smazurov/mjpegnode/internal/state"
)

// CreateStateCmd creates the state command, which reads or rewrites the
// persisted camera state while the daemon is stopped.
func CreateStateCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "state",
		Short: "Show the persisted camera state",
		Long: `Prints whether the camera will be streaming after the next daemon start. ` +
			`A missing or corrupt state file reads as off and is repaired.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st := state.NewStore(file, logging.GetLogger("state")).Read()
			return printState(cmd.OutOrStdout(), file, st)
		},
	}

	set := &cobra.Command{
		Use:       "set on|off",
		Short:     "Rewrite the persisted camera state",
		Long:      `Changes the state the daemon restores on its next start. Has no effect on a running daemon.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			on, err := parseOnOff(args[0])
			if err != nil {
				return err
			}
			st := state.State{On: on}
			if err := state.NewStore(file, logging.GetLogger("state")).Write(st); err != nil {
				return err
			}
			return printState(cmd.OutOrStdout(), file, st)
		},
	}

	cmd.PersistentFlags().StringVarP(&file, "file", "f", state.DefaultPath, "Path to the state file")
	cmd.AddCommand(set)
	return cmd
}

func parseOnOff(arg string) (bool, error) {
	switch arg {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid state %q: want on or off", arg)
}

func printState(w io.Writer, file string, st state.State) error {
	value := "off"
	if st.On {
		value = "on"
	}
	_, err := fmt.Fprintf(w, "%s: %s\n", file, value)
	return err
}
