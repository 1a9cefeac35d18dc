// Command nfp manages neural fingerprints: it generates the secret
// direction/code pairs from a config and inspects persisted fingerprint
// directories.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tongwu2020/mister-ed/fingerprint"
	"github.com/tongwu2020/mister-ed/pkg/log"
)

// envPrefix maps nested config keys to environment variables, so
// "fingerprint.epsilon" resolves to NFP_FINGERPRINT_EPSILON.
const envPrefix = "NFP"

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("fingerprint.profile", string(fingerprint.CIFARLike))
	v.SetDefault("fingerprint.directions", 10)
	v.SetDefault("fingerprint.classes", 10)
	v.SetDefault("fingerprint.input-dim", 3*32*32)
	v.SetDefault("fingerprint.epsilon", 0.1)
	v.SetDefault("fingerprint.seed", 0)
	return v
}

func newRootCommand() *cobra.Command {
	var configPath, logLevel string

	v := newViper()
	cmd := &cobra.Command{
		Use:     "nfp",
		Short:   "Generate and inspect neural fingerprints",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			log.SetupLogger(logLevel)
			if configPath == "" {
				return nil
			}
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return fmt.Errorf("reading config file %q: %w", configPath, err)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "config file path (YAML)")
	pf.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	cmd.AddCommand(newGenerateCommand(v))
	cmd.AddCommand(newShowCommand())
	return cmd
}

func fingerprintConfig(v *viper.Viper) fingerprint.Config {
	return fingerprint.Config{
		Profile:       fingerprint.Profile(v.GetString("fingerprint.profile")),
		NumDirections: v.GetInt("fingerprint.directions"),
		NumClasses:    v.GetInt("fingerprint.classes"),
		InputDim:      v.GetInt("fingerprint.input-dim"),
		Epsilon:       v.GetFloat64("fingerprint.epsilon"),
	}
}

func newGenerateCommand(v *viper.Viper) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a fingerprint and save it to a directory",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg := fingerprintConfig(v)
			seed := v.GetInt64("fingerprint.seed")
			logger := log.GetLoggerWithName("cli")
			logger.Info("generating fingerprint",
				"profile", string(cfg.Profile),
				log.DirectionsKey, cfg.NumDirections,
				log.ClassesKey, cfg.NumClasses,
				log.FeaturesKey, cfg.InputDim,
				log.SeedKey, seed,
			)

			fp, err := fingerprint.Generate(cfg, rand.New(rand.NewSource(seed)))
			if err != nil {
				return err
			}
			if err := fp.Save(outDir); err != nil {
				return err
			}
			logger.Info("fingerprint saved", "dir", outDir)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "fingerprints", "output directory")
	return cmd
}

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <dir>",
		Short: "Print a summary of a saved fingerprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fp, err := fingerprint.Load(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "profile:         %s\n", fp.Profile)
			fmt.Fprintf(out, "epsilon:         %g\n", fp.Epsilon)
			fmt.Fprintf(out, "directions:      %d x %d\n", fp.NumDirections, fp.InputDim)
			fmt.Fprintf(out, "target codes:    [%d, %d, %d]\n", fp.NumClasses, fp.NumDirections, fp.NumClasses)
			fmt.Fprintf(out, "code separation: %g\n", fp.Profile.Separation())
			fmt.Fprintf(out, "reg scale:       %g\n", fp.Profile.RegularizationScale(fp.NumDirections))
			return nil
		},
	}
}
