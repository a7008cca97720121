// Package main provides the entry point for the vision inspector.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"vision-inspector/internal/app"
	"vision-inspector/internal/cli"
	"vision-inspector/internal/config"
	"vision-inspector/internal/errcode"
	"vision-inspector/internal/logging"
	"vision-inspector/internal/report"
	"vision-inspector/internal/version"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const appName = "vision-inspector"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout)
	stop()
	os.Exit(code)
}

// execute runs the command line and returns the process exit code.
func execute(ctx context.Context, args []string, stdout io.Writer) int {
	exitCode := 0
	root := newRootCmd(stdout, &exitCode)
	root.SetArgs(args)
	root.SetOut(stdout)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return exitCode
}

func newRootCmd(stdout io.Writer, exitCode *int) *cobra.Command {
	root := &cobra.Command{
		Use:   appName + " <mode> [image] [--debug[=N]] [--outdir=PATH] [--serial=S] [--config=PATH] [x y w h]",
		Short: "Inspect a device status screen from a camera frame",
		Long: `Resolves a region of interest, reads the status text and classifies the
region, then prints the decided state as KEY=VALUE lines.

Modes: list, grab, ocr, grab_ocr, ai, grab_ai, grab_ai_ocr`,
		Args:               cobra.ArbitraryArgs,
		DisableFlagParsing: true,
		SilenceUsage:       true,
		SilenceErrors:      true,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp := inspect(cmd.Context(), args)
			*exitCode = resp.ExitCode()
			return report.Print(stdout, resp)
		},
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String(appName))
		},
	})
	return root
}

// inspect turns the positional arguments into a Request and runs it.
func inspect(ctx context.Context, args []string) report.Response {
	logging.Setup(0)

	a, err := cli.Parse(args)
	if err != nil {
		return usageFailure(args, err)
	}

	settings, err := config.Load(config.BaseDir(), a.ConfigPath)
	if err != nil {
		return usageFailure(args, err)
	}

	req := a.Apply(config.NewBuilder(settings)).Build()
	logging.Setup(req.DebugLevel)
	log.Debug().Str("args", a.String()).Str("outdir", req.OutDir).Msg("Request built")

	runner := app.NewDefault(req)
	defer runner.Close()
	return runner.Run(ctx, req)
}

func usageFailure(args []string, err error) report.Response {
	log.Error().Err(err).Msg("Invalid command line")

	var mode, image string
	if len(args) > 0 {
		mode = args[0]
	}
	if len(args) > 1 && config.Mode(mode) != config.ModeList {
		image = args[1]
	}
	return report.Fail(errcode.Of(err), mode, image, "", "")
}
