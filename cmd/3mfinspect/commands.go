package main

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/printshelf/internal/config"
	"github.com/JonMunkholm/printshelf/internal/profile"
)

func newValidateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file.3mf>...",
		Short: "Check that files are structurally valid 3MF packages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options(cmd)
			if err != nil {
				return err
			}
			failed := false
			for _, path := range args {
				v := profile.Validate(path, opts...)
				if v.Valid {
					fmt.Fprintf(cmd.OutOrStdout(), "ok\t%s\n", path)
					continue
				}
				failed = true
				fmt.Fprintf(cmd.OutOrStdout(), "invalid\t%s\t%s\n", path, v.Reason)
			}
			if failed {
				return errReported
			}
			return nil
		},
	}
}

// extractLine is one NDJSON record of the extract command.
type extractLine struct {
	Path    string          `json:"path"`
	Result  *profile.Result `json:"result"`
	Summary profile.Summary `json:"summary"`
}

func newExtractCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <file.3mf>...",
		Short: "Print the settings, metadata and preview entry of each file as NDJSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options(cmd)
			if err != nil {
				return err
			}
			ex := profile.NewExtractor(opts...)

			// Workers fill their own slot so output keeps input order.
			lines := make([]extractLine, len(args))
			var g errgroup.Group
			g.SetLimit(max(flags.jobs, 1))
			for i, path := range args {
				g.Go(func() error {
					res := ex.Extract(path)
					lines[i] = extractLine{Path: path, Result: res, Summary: profile.Summarize(res.Settings)}
					return nil
				})
			}
			g.Wait()

			enc := json.NewEncoder(cmd.OutOrStdout())
			failed := false
			for _, line := range lines {
				if line.Result.Err != nil {
					failed = true
				}
				if err := enc.Encode(line); err != nil {
					return err
				}
			}
			if failed {
				return errReported
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&flags.jobs, "jobs", "j", runtime.NumCPU(), "files extracted in parallel")
	return cmd
}

func newThumbnailCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "thumbnail <file.3mf> <output>",
		Short: "Write the embedded preview image to output",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options(cmd)
			if err != nil {
				return err
			}
			if !profile.ExtractThumbnailFile(args[0], args[1], opts...) {
				return fmt.Errorf("no preview written for %s", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[1])
			return nil
		},
	}
}

func parseSize(s string) (int64, error) {
	n, err := config.ParseByteSize(s)
	if err != nil {
		return 0, fmt.Errorf("--max-entry-size: %w", err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("--max-entry-size must be positive")
	}
	return n, nil
}
