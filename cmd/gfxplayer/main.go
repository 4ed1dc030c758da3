// Command gfxplayer plays a video graph described by a YAML config in a window.
package main

import (
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:           "gfxplayer",
		Short:         "Plays and inspects real-time video graphs",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Opens a window and renders the graph of a config file",
		Args:  cobra.NoArgs,
		RunE:  runPlayer,
	}
	validateCmd = &cobra.Command{
		Use:   "validate [shader]",
		Short: "Compiles a filter or ISF shader and prints its input ports",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidate,
	}
	inspectCmd = &cobra.Command{
		Use:   "inspect [document]",
		Short: "Decodes a YAML or binary graph document and prints it as YAML",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspect,
	}

	configPath  string
	metricsAddr string
	watch       bool
	convertTo   string
)

func init() {
	// GLFW must run on the main thread.
	runtime.LockOSThread()

	runCmd.Flags().StringVarP(&configPath, "config", "c", "", "player config file (defaults are used when empty)")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on host:port, overrides the config")
	runCmd.Flags().BoolVarP(&watch, "watch", "w", false, "reload shader files when they change")
	inspectCmd.Flags().StringVarP(&convertTo, "output", "o", "", "also save the document to this path (.yaml or binary)")

	rootCmd.AddCommand(runCmd, validateCmd, inspectCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
