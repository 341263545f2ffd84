package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"tailscale.com/tsweb"

	"github.com/cvacare/gaitsession/internal/analysis"
	"github.com/cvacare/gaitsession/internal/apperrors"
	"github.com/cvacare/gaitsession/internal/config"
	"github.com/cvacare/gaitsession/internal/httputil"
	"github.com/cvacare/gaitsession/internal/imu"
	"github.com/cvacare/gaitsession/internal/quality"
	"github.com/cvacare/gaitsession/internal/sensor"
	"github.com/cvacare/gaitsession/internal/serialmux"
	"github.com/cvacare/gaitsession/internal/session"
	"github.com/cvacare/gaitsession/internal/timeutil"
	"github.com/cvacare/gaitsession/internal/units"
)

type recordOptions struct {
	source        string
	duration      time.Duration
	analyzeAnyway bool
	asJSON        bool
	debugListen   string
}

func newRecordCmd(g *globals) *cobra.Command {
	opts := recordOptions{}
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record one gait session and analyze it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runRecord(ctx, cmd.OutOrStdout(), cfg, g.userID, opts)
		},
	}
	cmd.Flags().StringVar(&opts.source, "source", "synthetic", "sensor source: synthetic|serial|mqtt")
	cmd.Flags().DurationVar(&opts.duration, "duration", 15*time.Second, "how long to record; Ctrl+C stops early")
	cmd.Flags().BoolVar(&opts.analyzeAnyway, "analyze-anyway", false, "analyze a recording that is shorter than recommended")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the report as JSON")
	cmd.Flags().StringVar(&opts.debugListen, "debug-listen", "", "serve the serial IMU /debug/ page on this address, e.g. localhost:8081")
	return cmd
}

// openSources returns the accelerometer and gyroscope sources for opts.source
// and a function releasing whatever they hold.
func openSources(ctx context.Context, out io.Writer, opts recordOptions, cfg *config.Config) (accel, gyro sensor.Source, closeFn func(), err error) {
	if opts.debugListen != "" && opts.source != "serial" {
		return nil, nil, nil, fmt.Errorf("%w: --debug-listen needs --source serial", apperrors.ErrBadInput)
	}

	switch name := opts.source; name {
	case "synthetic":
		clock := timeutil.RealClock{}
		return sensor.NewSyntheticSource(sensor.Accelerometer, clock),
			sensor.NewSyntheticSource(sensor.Gyroscope, clock),
			func() {}, nil

	case "serial":
		mux, err := serialmux.NewRealSerialMux(cfg.GetSerialPort(), cfg.GetSerial())
		if err != nil {
			return nil, nil, nil, fmt.Errorf("%w: %w", apperrors.ErrSensorUnavailable, err)
		}
		monitorCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := mux.Monitor(monitorCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("failed to monitor serial port: %v", err)
			}
		}()

		stopDebug := func() {}
		if opts.debugListen != "" {
			addr, stop, err := serveDebug(opts.debugListen, func(debug *tsweb.DebugHandler, m *http.ServeMux) {
				debug.KV("Serial port", cfg.GetSerialPort())
				debug.KVFunc("IMU subscribers", func() any { return mux.SubscriberCount() })
				mux.AttachAdminRoutes(m)
			})
			if err != nil {
				cancel()
				mux.Close()
				<-done
				return nil, nil, nil, fmt.Errorf("failed to serve debug page: %w", err)
			}
			stopDebug = stop
			_, _ = fmt.Fprintf(out, "serial debug page at http://%s/debug/\n", addr)
		}

		a, g := imu.NewSerialSources(mux)
		return a, g, func() {
			stopDebug()
			cancel()
			if err := mux.Close(); err != nil {
				log.Printf("failed to close serial port: %v", err)
			}
			<-done
		}, nil

	case "mqtt":
		sub, err := imu.ConnectMQTT(cfg.GetMQTTBroker(), cfg.GetMQTTClientID())
		if err != nil {
			return nil, nil, nil, fmt.Errorf("%w: %w", apperrors.ErrSensorUnavailable, err)
		}
		return imu.NewMQTTSource(sub, sensor.Accelerometer, cfg.GetMQTTTopicAccel()),
			imu.NewMQTTSource(sub, sensor.Gyroscope, cfg.GetMQTTTopicGyro()),
			sub.Disconnect, nil

	default:
		return nil, nil, nil, fmt.Errorf("%w: unknown source %q (want synthetic, serial or mqtt)", apperrors.ErrBadInput, name)
	}
}

func runRecord(ctx context.Context, out io.Writer, cfg *config.Config, userID string, opts recordOptions) error {
	if opts.duration <= 0 {
		return fmt.Errorf("%w: --duration must be positive", apperrors.ErrBadInput)
	}

	accel, gyro, closeSources, err := openSources(ctx, out, opts, cfg)
	if err != nil {
		return err
	}
	defer closeSources()

	analyzer := analysis.NewClient(cfg.GetAnalysisURL(), httputil.NewStandardClient(0), cfg.GetRequestTimeout())
	ctrl := session.New(sensor.NewCapture(accel, gyro, nil), analyzer, session.Options{
		Policy:    quality.Policy{MinSamples: cfg.GetMinSamples(), MinSeconds: cfg.GetMinSeconds()},
		Interval:  cfg.GetSampleInterval(),
		UserID:    userID,
		SpeedUnit: cfg.GetVelocityUnit(),
	})
	defer ctrl.Close()

	if err := ctrl.Start(ctx); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "recording %s from %s sensors, walk normally...\n", opts.duration, opts.source)

	select {
	case <-time.After(opts.duration):
	case <-ctx.Done():
		_, _ = fmt.Fprintln(out, "stopped early")
	}

	// The recording is stopped and analyzed even after an interrupt, so the
	// request must not inherit the cancelled context.
	reqCtx := context.WithoutCancel(ctx)
	report, err := ctrl.Stop(reqCtx)
	if errors.Is(err, apperrors.ErrTooShort) {
		_, _ = fmt.Fprintln(out, apperrors.UserMessage(err))
		if !opts.analyzeAnyway {
			printReport(out, report, opts.asJSON)
			return err
		}
		_, _ = fmt.Fprintln(out, "analyzing anyway")
		report, err = ctrl.Analyze(reqCtx)
	}
	printReport(out, report, opts.asJSON)
	return err
}

func printReport(out io.Writer, r session.Report, asJSON bool) {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			log.Printf("failed to encode report: %v", err)
		}
		return
	}

	_, _ = fmt.Fprintf(out, "session %s: %s after %ds\n", r.SessionID, r.State, r.ElapsedSeconds)
	_, _ = fmt.Fprintf(out, "verdict: %s, data quality: %s\n", r.Decision.Verdict, r.Grade)
	_, _ = fmt.Fprintf(out, "accelerometer: %d samples at %.1f Hz\n", r.AccelStats.Count, r.AccelStats.SamplingRate)
	_, _ = fmt.Fprintf(out, "gyroscope:     %d samples at %.1f Hz\n", r.GyroStats.Count, r.GyroStats.SamplingRate)
	if r.Interpretation == nil {
		return
	}
	_, _ = fmt.Fprintf(out, "steps: %d\n", r.Interpretation.StepCount)
	for _, rd := range r.Interpretation.Readings {
		_, _ = fmt.Fprintf(out, "  %-16s %-14s %s\n", rd.Metric, rd.Display, rd.Label)
	}
	_, _ = fmt.Fprintln(out, r.Interpretation.Narrative)
}

func newHealthCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the analysis service is reachable",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			client := analysis.NewClient(cfg.GetAnalysisURL(), httputil.NewStandardClient(0), cfg.GetRequestTimeout())
			if err := client.Health(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "analysis service at %s is up (speeds in %s)\n",
				cfg.GetAnalysisURL(), units.SpeedLabel(cfg.GetVelocityUnit()))
			return nil
		},
	}
}
