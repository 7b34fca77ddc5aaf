// Command 3mfinspect validates 3MF project files and prints the print profile
// and preview image found inside them.
//
// Usage:
//
//	3mfinspect validate part.3mf other.3mf
//	3mfinspect extract --jobs 8 projects/*.3mf
//	3mfinspect thumbnail part.3mf preview.png
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/printshelf/internal/logging"
	"github.com/JonMunkholm/printshelf/internal/profile"
)

// errReported means the command already printed its failures.
var errReported = errors.New("one or more files failed")

type rootFlags struct {
	maxEntrySize string
	logLevel     string
	jobs         int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "3mfinspect",
		Short:         "Inspect print profiles inside 3MF project files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.maxEntrySize, "max-entry-size", "64MiB", "largest archive entry read into memory")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(
		newValidateCmd(flags),
		newExtractCmd(flags),
		newThumbnailCmd(flags),
	)
	return root
}

// options builds extraction options from the persistent flags. Engine logs go
// to stderr so stdout stays machine readable.
func (f *rootFlags) options(cmd *cobra.Command) ([]profile.Option, error) {
	size, err := parseSize(f.maxEntrySize)
	if err != nil {
		return nil, err
	}
	logger := logging.New(cmd.ErrOrStderr(), f.logLevel, "text")
	slog.SetDefault(logger)
	return []profile.Option{
		profile.WithMaxEntrySize(size),
		profile.WithLogger(logger),
	}, nil
}
