package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/hubble-cli/internal/model"
	"github.com/sells-group/hubble-cli/internal/present"
	"github.com/sells-group/hubble-cli/internal/render"
)

var (
	fetchTarget     string
	fetchType       string
	fetchInstrument string
	fetchRadius     string
	fetchOutput     string
	fetchPlotDir    string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Find, download and render HST data for a target",
	Long:  "Queries MAST for HST observations of a target, picks the calibrated product for the requested data type, downloads it and renders it.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		q, err := buildQuery(fetchTarget, fetchType, fetchInstrument, fetchRadius)
		if err != nil {
			return err
		}

		dir := fetchPlotDir
		if dir == "" {
			dir = cfg.Render.OutputDir
		}
		presenter, png, err := buildPresenter(fetchOutput, os.Stdout, dir)
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx, "fetch")
		if err != nil {
			return err
		}
		defer env.Close()

		run, runErr := env.Pipeline(presenter).Run(ctx, q)
		if run != nil && fetchOutput == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(run); err != nil {
				return eris.Wrap(err, "encode run")
			}
		}
		if png != nil {
			for _, f := range png.Files() {
				fmt.Fprintf(os.Stdout, "wrote %s\n", f)
			}
		}
		if runErr != nil {
			return eris.Wrap(runErr, "pipeline run")
		}

		zap.L().Info("fetch complete",
			zap.String("run_id", run.ID),
			zap.String("target", q.Target),
			zap.String("file", run.Result.ActiveFile),
		)
		return nil
	},
}

// buildQuery turns command-line values into an observation query.
func buildQuery(target, dataType, instrument, radius string) (model.ObservationQuery, error) {
	dt, err := model.ParseDataType(dataType)
	if err != nil {
		return model.ObservationQuery{}, err
	}
	return model.NewObservationQuery(target, dt, instrument, radius)
}

// buildPresenter returns the presenter for an output mode. The PNG presenter
// is returned separately so callers can list the files it wrote.
func buildPresenter(output string, w io.Writer, plotDir string) (render.Presenter, *present.PNG, error) {
	switch output {
	case "", "console":
		return present.NewConsole(w), nil, nil
	case "png":
		png := present.NewPNG(plotDir)
		return present.Multi{present.NewConsole(w), png}, png, nil
	case "json":
		return present.NewRecorder(), nil, nil
	default:
		return nil, nil, eris.Errorf("unknown output %q (want console, png or json)", output)
	}
}

func init() {
	fetchCmd.Flags().StringVar(&fetchTarget, "target", "trappist-1", "target name resolved by the archive")
	fetchCmd.Flags().StringVar(&fetchType, "type", "spectrum", "data type: spectrum, image or timeseries")
	fetchCmd.Flags().StringVar(&fetchInstrument, "instrument", "", "instrument filter, e.g. COS/FUV or WFC3/UVIS")
	fetchCmd.Flags().StringVar(&fetchRadius, "radius", "0.02 deg", "search radius")
	fetchCmd.Flags().StringVar(&fetchOutput, "output", "console", "output: console, png or json")
	fetchCmd.Flags().StringVar(&fetchPlotDir, "plot-dir", "", "directory for PNG charts (default from config)")
	rootCmd.AddCommand(fetchCmd)
}
