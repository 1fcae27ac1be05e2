package commands

import (
	"encoding/json"
	"fmt"

	"github.com/RezaEskandarii/datafire/app"
	"github.com/RezaEskandarii/datafire/internal/logger"
	"github.com/RezaEskandarii/datafire/jobmanager"
	"github.com/RezaEskandarii/datafire/types/config"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ConfigPath is bound to the root --config flag.
var ConfigPath string

var v = config.NewViper()

// LoadConfigFile merges the --config file, if any, over defaults and
// DATAFIRE_* environment variables.
func LoadConfigFile() error {
	if ConfigPath == "" {
		return nil
	}
	v.SetConfigFile(ConfigPath)
	if err := v.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "failed to read config file %s", ConfigPath)
	}
	return nil
}

func JSONLogs() bool {
	return v.GetBool("log.json")
}

// Viper exposes the command settings so flags can be bound to keys.
func Viper() *viper.Viper {
	return v
}

// withContainer opens storage, applies the schema and runs fn against the
// resulting container. Hints attached to fn's error are appended for the
// operator.
func withContainer(cmd *cobra.Command, fn func(c *app.Container) error) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	c, err := jobmanager.New(cmd.Context(), cfg, app.WithLogger(logger.Logger))
	if err != nil {
		return err
	}
	defer c.Close()

	if err := fn(c); err != nil {
		if hint := errors.FlattenHints(err); hint != "" {
			return fmt.Errorf("%w\nhint: %s", err, hint)
		}
		return err
	}
	return nil
}

func printJSON(cmd *cobra.Command, value any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
