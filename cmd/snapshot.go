package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/mjpegnode/internal/capture"
	"github.com/smazurov/mjpegnode/internal/ffmpeg"
	"github.com/smazurov/mjpegnode/internal/frames"
	"github.com/smazurov/mjpegnode/internal/logging"
)

// snapshotOptions configures a one-shot capture.
type snapshotOptions struct {
	params  ffmpeg.Params
	command string
	output  string
	skip    int
	timeout time.Duration
}

// CreateSnapshotCmd creates the snapshot command, which starts the capture
// pipeline, saves one JPEG and stops. Use it to check the camera while the
// daemon is stopped.
func CreateSnapshotCmd() *cobra.Command {
	opts := snapshotOptions{
		params: ffmpeg.Params{Quality: ffmpeg.DefaultQuality, Options: ffmpeg.GetDefaultOptions()},
	}

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Capture a single JPEG from the camera",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			size, err := takeSnapshot(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", opts.output, size)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.params.DevicePath, "device", "/dev/video0", "V4L2 capture device")
	f.IntVar(&opts.params.Width, "width", 640, "Capture width")
	f.IntVar(&opts.params.Height, "height", 480, "Capture height")
	f.IntVar(&opts.params.FPS, "frame-rate", 30, "Capture frame rate")
	f.StringVar(&opts.params.InputFormat, "input-format", "", "V4L2 input pixel format")
	f.BoolVar(&opts.params.TestSource, "test-source", false, "Capture the test pattern instead of the device")
	f.StringVar(&opts.command, "command", "", "Capture command writing MJPEG to stdout; overrides ffmpeg")
	f.StringVarP(&opts.output, "output", "o", "snapshot.jpg", "Output file")
	f.IntVar(&opts.skip, "skip", 5, "Frames to discard while exposure settles")
	f.DurationVar(&opts.timeout, "timeout", 10*time.Second, "Give up after this long")

	return cmd
}

func takeSnapshot(ctx context.Context, opts snapshotOptions) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := logging.GetLogger("capture")

	pipelineOpts := []capture.FFmpegOption{
		capture.WithGracefulTimeout(2 * time.Second),
		capture.WithStartupTimeout(min(opts.timeout, time.Second)),
	}
	if opts.command != "" {
		pipelineOpts = append(pipelineOpts, capture.WithCommand(opts.command))
	}
	pipeline := capture.NewFFmpegPipeline(opts.params, logger, pipelineOpts...)
	if err := pipeline.ConfigureVideo(opts.params.Width, opts.params.Height, opts.params.FPS); err != nil {
		return 0, err
	}

	b := frames.NewBroadcaster()
	if err := pipeline.StartEncodingTo(b); err != nil {
		return 0, fmt.Errorf("start capture: %w", err)
	}
	defer pipeline.StopEncoding()

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	frame, err := b.WaitNext(ctx, uint64(max(opts.skip, 0)))
	if err != nil {
		return 0, fmt.Errorf("no frame after %d skipped within %s: %w", opts.skip, opts.timeout, err)
	}
	if err := os.WriteFile(opts.output, frame.Data, 0o644); err != nil {
		return 0, err
	}
	return len(frame.Data), nil
}
