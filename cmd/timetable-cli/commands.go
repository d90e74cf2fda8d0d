package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/cms-timetable/internal/dto"
	"github.com/noah-isme/cms-timetable/internal/models"
	"github.com/noah-isme/cms-timetable/internal/service"
	"github.com/noah-isme/cms-timetable/pkg/cmsclient"
	"github.com/noah-isme/cms-timetable/pkg/config"
)

// rejectedError reports a CMS timetable that could not be normalized.
type rejectedError struct {
	kind string
	err  error
}

func (e *rejectedError) Error() string {
	return fmt.Sprintf("timetable rejected (%s): %v", e.kind, e.err)
}

func (e *rejectedError) Unwrap() error { return e.err }

// loadConfig is swapped in tests.
var loadConfig = config.Load

func newRootCommand(out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "timetable-cli",
		Short:         "Inspect and normalize school CMS timetables",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)
	cmd.AddCommand(
		newNormalizeCommand(),
		newFetchCommand(),
		newPeriodsCommand(),
		newHashPasswordCommand(),
	)
	return cmd
}

func newNormalizeCommand() *cobra.Command {
	var (
		file    string
		periods string
		date    string
	)
	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Normalize a saved CMS timetable payload",
		Long:  "Decode a CMS timetable JSON document and print the normalized week, or the schedule of one date with --date.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			table, loc, err := resolvePeriods(periods)
			if err != nil {
				return err
			}
			normalizer, err := service.NewTimetableNormalizer(table)
			if err != nil {
				return err
			}
			payload, err := cmsclient.DecodeTimetable(raw)
			if err != nil {
				return err
			}
			week, err := normalizer.Normalize(*payload)
			if err != nil {
				return rejection(err)
			}
			if date == "" {
				return printJSON(cmd.OutOrStdout(), week)
			}

			day, err := time.ParseInLocation("2006-01-02", date, loc)
			if err != nil {
				return fmt.Errorf("--date: %w", err)
			}
			info, err := os.Stat(file)
			if err != nil {
				return err
			}
			view := &dto.TimetableView{Week: week, Periods: normalizer.Periods(), FetchedAt: info.ModTime()}
			return printJSON(cmd.OutOrStdout(), service.BuildTodayView(view, day, loc))
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Path to a CMS timetable JSON payload")
	cmd.Flags().StringVar(&periods, "periods", "", "Period table as HH:MM-HH:MM,... (defaults to the configured table)")
	cmd.Flags().StringVar(&date, "date", "", "Print the schedule of this date (YYYY-MM-DD); the file time anchors the week type")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newFetchCommand() *cobra.Command {
	var year int
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch and normalize the timetable from the CMS",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if year <= 0 {
				year = cfg.CMS.Year
			}
			logr, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			defer logr.Sync() //nolint:errcheck

			client, err := cmsclient.New(cmsclient.Config{
				BaseURL:  cfg.CMS.BaseURL,
				Username: cfg.CMS.Username,
				Password: cfg.CMS.Password,
				Timeout:  cfg.CMS.Timeout,
				Retries:  cfg.CMS.Retries,
			}, cmsclient.WithLogger(logr))
			if err != nil {
				return err
			}
			normalizer, err := service.NewTimetableNormalizer(cfg.Timetable.Periods)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*cfg.CMS.Timeout)
			defer cancel()
			timetables := service.NewTimetableService(client, nil, normalizer, nil, nil, logr, service.TimetableServiceConfig{
				DefaultYear: year,
				Location:    cfg.Timetable.Location,
			})
			view, err := timetables.Refresh(ctx, year)
			if err != nil {
				if service.IsDataError(err) {
					return rejection(err)
				}
				return err
			}
			return printJSON(cmd.OutOrStdout(), view)
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "School year (defaults to CMS_YEAR)")
	return cmd
}

func newPeriodsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "periods",
		Short: "Print the configured period table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, period := range cfg.Timetable.Periods {
				fmt.Fprintf(out, "%2d  %s-%s\n", i+1, period.Start, period.End)
			}
			fmt.Fprintf(out, "time zone: %s\n", cfg.Timetable.Location)
			return nil
		},
	}
}

func newHashPasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for AUTH_PASSWORD_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(hash))
			return nil
		},
	}
}

// resolvePeriods parses an explicit table or falls back to the configuration.
func resolvePeriods(raw string) (models.PeriodTable, *time.Location, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if raw == "" {
		return cfg.Timetable.Periods, cfg.Timetable.Location, nil
	}
	table, err := models.ParsePeriodTable(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("--periods: %w", err)
	}
	return table, cfg.Timetable.Location, nil
}

func rejection(err error) error {
	kind := "UNKNOWN"
	var normErr *service.NormalizationError
	if errors.As(err, &normErr) {
		kind = string(normErr.Kind)
	}
	return &rejectedError{kind: kind, err: err}
}

func printJSON(out io.Writer, value interface{}) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
