package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/scrumpo/scrumpo/internal/app"
)

const version = "1.0.0"

// rootFlags carries the flags shared by every subcommand.
type rootFlags struct {
	configPath string
	name       string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("SCRUMPO")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "scrumpo",
		Short:         "Collaborative planning poker in the terminal.",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	pfs := cmd.PersistentFlags()
	pfs.StringVar(&flags.configPath, "config", "", "path to config file (env: SCRUMPO_CONFIG)")
	pfs.StringVarP(&flags.name, "name", "n", "", "display name, 1-40 characters (env: SCRUMPO_NAME)")
	pfs.StringVar(&flags.logLevel, "log-level", "", "log level: trace|debug|info|warn|error (env: SCRUMPO_LOG_LEVEL)")

	pfs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	pfs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = pfs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.AddCommand(
		newCreateCmd(flags),
		newJoinCmd(flags),
		newDecksCmd(flags),
	)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("scrumpo v{{.Version}}\n")

	return cmd
}

// setup loads config and builds the app. The log-level flag overrides the
// config file's level.
func setup(flags *rootFlags) (*app.App, error) {
	cfg, err := app.LoadConfig(flags.configPath)
	if err != nil {
		return nil, err
	}
	level := cfg.Log.Level
	if flags.logLevel != "" {
		level = flags.logLevel
	}
	app.SetupLogging(level)
	return app.New(cfg)
}
