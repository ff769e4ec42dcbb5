package cmd

import (
	"fmt"
	"os"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanhub/internal/logging"
)

func newLogsCmd() *cobra.Command {
	var (
		follow  bool
		lines   int
		level   string
		pattern string
		file    string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View daemon logs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := logging.FindLogFile(file)
			if err != nil {
				return err
			}

			cfg := logging.ViewerConfig{Level: level, NoColor: flagNoColor}
			if pattern != "" {
				re, err := regexp.Compile(pattern)
				if err != nil {
					return fmt.Errorf("invalid --grep pattern: %w", err)
				}
				cfg.Pattern = re
			}

			viewer := logging.NewViewer(cfg, os.Stdout)
			entries, err := viewer.Tail(path, lines)
			if err != nil {
				return err
			}
			viewer.Print(entries)

			if !follow {
				return nil
			}
			stream := make(chan logging.LogEntry, 64)
			go func() {
				for entry := range stream {
					fmt.Println(viewer.FormatEntry(entry))
				}
			}()
			err = viewer.Follow(cmd.Context(), path, stream)
			close(stream)
			return err
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Stream new log lines")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().StringVar(&level, "level", "", "Minimum log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&pattern, "grep", "", "Only show lines matching this pattern")
	cmd.Flags().StringVar(&file, "file", "", "Explicit log file path")
	return cmd
}
