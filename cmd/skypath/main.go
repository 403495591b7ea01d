package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/star/skywatch/internal/body"
	"github.com/star/skywatch/internal/catalog"
	"github.com/star/skywatch/internal/celestial"
	"github.com/star/skywatch/internal/dailypath"
	"github.com/star/skywatch/internal/ephemeris"
	"github.com/star/skywatch/internal/observer"
)

type options struct {
	bodies      []string
	date        string
	lat, lon    float64
	elevation   float64
	tz          string
	granularity int
	margin      int
	fullDay     bool
	asJSON      bool
	verbose     bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "skypath",
		Short: "Print the daily path of sky objects for one observer",
		Long: `skypath computes where the Sun, Moon, planets and bright stars are during
one local day, sampled on the hour grid, and prints the samples above the
horizon.

Examples:
  skypath --body Moon --date 2024-06-21
  skypath --body Mars,Vega --lat 51.4769 --lon 0 --tz Europe/London --json
  skypath --body Sun --full-day --granularity 15`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringSliceVarP(&opts.bodies, "body", "b", []string{"Moon"}, "Body names (repeatable or comma-separated)")
	f.StringVarP(&opts.date, "date", "d", "", "Local date YYYY-MM-DD (default: today)")
	f.Float64Var(&opts.lat, "lat", observer.DefaultLatitude, "Observer latitude in degrees")
	f.Float64Var(&opts.lon, "lon", observer.DefaultLongitude, "Observer longitude in degrees, east positive")
	f.Float64Var(&opts.elevation, "elevation", 0, "Observer elevation in meters")
	f.StringVar(&opts.tz, "tz", observer.DefaultTimezone, "IANA time zone of the observer")
	f.IntVarP(&opts.granularity, "granularity", "g", 30, "Minutes between samples (must divide 60)")
	f.IntVar(&opts.margin, "margin", 1, "Hours sampled before rise and after set")
	f.BoolVar(&opts.fullDay, "full-day", false, "Sample all 24 hours and keep samples below the horizon")
	f.BoolVar(&opts.asJSON, "json", false, "Emit JSON instead of text")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Log sampler diagnostics to stderr")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, opts *options) error {
	level := slog.LevelError
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	obs, err := observer.New(observer.Config{
		Latitude:  opts.lat,
		Longitude: opts.lon,
		Elevation: opts.elevation,
		Timezone:  opts.tz,
	})
	if err != nil {
		return err
	}

	at := time.Now()
	if opts.date != "" {
		day, err := time.ParseInLocation(time.DateOnly, opts.date, obs.Location())
		if err != nil {
			return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
		}
		at = obs.At(day, 12, 0)
	}

	stars, err := catalog.Embedded(logger)
	if err != nil {
		return err
	}
	bodies, err := body.DefaultRegistry(stars.Stars).Resolve(opts.bodies)
	if err != nil {
		return err
	}

	cfg := dailypath.Config{GranularityMinutes: opts.granularity, MarginHours: opts.margin}
	if opts.fullDay {
		cfg.Policy = dailypath.PolicyFullDay
	}
	calc := ephemeris.NewCalculator(ephemeris.Config{})
	sampler, err := dailypath.NewSampler(calc, cfg, logger)
	if err != nil {
		return err
	}
	assembler := celestial.NewAssembler(calc, sampler, 0, logger)

	results := assembler.ComputeAll(ctx, obs, bodies, at)
	if opts.asJSON {
		return writeJSON(cmd.OutOrStdout(), results)
	}
	writeText(cmd.OutOrStdout(), obs, results)
	return nil
}

func writeJSON(w io.Writer, results []celestial.Result) error {
	objects, failed := celestial.Collect(results)
	out := struct {
		Objects map[string]celestial.CelestialObject `json:"objects"`
		Failed  map[string]string                    `json:"failed,omitempty"`
	}{objects, failed}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func writeText(w io.Writer, obs observer.Observer, results []celestial.Result) {
	fmt.Fprintf(w, "Observer: %s\n", obs)
	for _, r := range results {
		fmt.Fprintln(w)
		if r.Err != nil {
			fmt.Fprintf(w, "%s: ERROR %v\n", r.Name, r.Err)
			continue
		}
		o := r.Object
		var extra []string
		if o.BaseData.Magnitude != nil {
			extra = append(extra, fmt.Sprintf("mag %.2f", *o.BaseData.Magnitude))
		}
		if o.BaseData.Constellation != nil {
			extra = append(extra, *o.BaseData.Constellation)
		}
		fmt.Fprintf(w, "%s (%s) %s\n", o.Name, o.Type, strings.Join(extra, ", "))
		fmt.Fprintf(w, "  %s\n", o.Visibility.Message)
		if len(o.DailyPath) == 0 {
			fmt.Fprintln(w, "  no samples")
			continue
		}
		for _, p := range o.DailyPath {
			fmt.Fprintf(w, "  %s  alt %6.2f°  az %6.2f°\n",
				p.Time.In(obs.Location()).Format("15:04"), p.Altitude, p.Azimuth)
		}
	}
}
