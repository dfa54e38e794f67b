package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-run/conduit/internal/build"
	"github.com/conduit-run/conduit/internal/elements/transform"
	"github.com/conduit-run/conduit/internal/exec"
	"github.com/conduit-run/conduit/internal/parse"
	"github.com/conduit-run/conduit/internal/registry"
)

// stdoutWriter forwards Console-rendered lines straight to the process's
// real stdout, the CLI's fire-and-forget counterpart of the HTTP driver's
// per-request buffered sink.
type stdoutWriter struct{ w io.Writer }

func (s stdoutWriter) WriteLine(line string) { fmt.Fprintln(s.w, line) }

func newRunCmd() *cobra.Command {
	var argPairs []string

	cmd := &cobra.Command{
		Use:   "run [pipeline.yaml|-]",
		Short: "Build and run a pipeline to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readPipelineSource(args[0])
			if err != nil {
				return err
			}

			runArgs, err := parseArgPairs(argPairs)
			if err != nil {
				return err
			}

			descs, err := parse.Pipeline(raw, runArgs)
			if err != nil {
				return err
			}
			pipeline, err := build.Build(descs, build.Options{Registry: registry.Default, Args: runArgs})
			if err != nil {
				return err
			}

			ctx := transform.WithStdout(context.Background(), stdoutWriter{w: os.Stdout})
			_, stats, runErr := exec.Run(ctx, pipeline)
			if runErr != nil {
				return runErr
			}
			fmt.Fprintf(os.Stderr, "processed %d items in %s\n", stats.TotalItemsProcessed, stats.Duration)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&argPairs, "args", nil, "run argument as key=value, repeatable")
	return cmd
}

func readPipelineSource(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func parseArgPairs(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("--args must be key=value, got %q", p)
		}
		out[k] = v
	}
	return out, nil
}
