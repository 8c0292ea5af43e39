package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kass/go-blast-survey/pkg/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "blastctl",
		Short: "Blast survey analysis and drill pattern planning",
		Long: `blastctl stores blast hole surveys, summarizes drilled patterns,
computes average powder factors, lays out rectangular drill plans and
keeps GeoJSON map layers.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = zap.L().Sync()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.cfgPath, "config", "c", "", "Config file (default config.yaml, then config.yaml.example)")
	flags.StringVar(&a.driver, "db-driver", "", "Database driver override: sqlite or postgres")
	flags.StringVar(&a.dsn, "dsn", "", "Database DSN override")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level override")
	flags.BoolVar(&a.jsonOut, "json", false, "Print results as JSON")

	rootCmd.AddCommand(
		newMigrateCmd(a),
		newImportCmd(a),
		newBlastsCmd(a),
		newSummaryCmd(a),
		newPowderFactorCmd(a),
		newPlanCmd(a),
		newGridCmd(a),
		newNearestCmd(a),
		newLayerCmd(a),
		newBenchCmd(a),
	)
	return rootCmd
}

// setup loads configuration, applies flag overrides and starts the logger
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}

	if a.driver != "" {
		cfg.Database.Driver = a.driver
	}
	if a.dsn != "" {
		cfg.Database.DSN = a.dsn
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.InitLogger(cfg.Log); err != nil {
		return eris.Wrap(err, "blastctl: init logger")
	}

	a.cfg = cfg
	a.out = cmd.OutOrStdout()
	a.colors = newPalette(a.out)
	return nil
}
