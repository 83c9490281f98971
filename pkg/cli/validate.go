package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/getmockd/errorgen/pkg/cli/internal/output"
	"github.com/getmockd/errorgen/pkg/config"
)

var validateShow bool

// ValidateOutput is the JSON result of the validate command.
type ValidateOutput struct {
	Valid  bool                        `json:"valid"`
	File   string                      `json:"file,omitempty"`
	Error  string                      `json:"error,omitempty"`
	Config *config.ServerConfiguration `json:"config,omitempty"`
}

var validateCmd = &cobra.Command{
	Use:   "validate [config-file]",
	Short: "Validate a configuration file without starting the server",
	Long: `Validate a configuration file without starting the server.

The file is checked against the configuration schema, environment overrides
are applied, and the effective configuration is validated. With no argument,
` + config.EnvConfig + ` is used, or the defaults when it is unset.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			path = config.GetConfigFileFromEnv()
		}
		w := cmd.OutOrStdout()

		cfg, err := loadConfig(path)
		if err == nil {
			err = cfg.Validate()
		}

		if jsonOutput {
			out := ValidateOutput{Valid: err == nil, File: path}
			if err != nil {
				out.Error = err.Error()
			} else if validateShow {
				out.Config = cfg
			}
			if werr := output.JSON(w, out); werr != nil {
				return werr
			}
			if err != nil {
				return errors.New("configuration is invalid")
			}
			return nil
		}

		if err != nil {
			return fmt.Errorf("configuration is invalid:\n%w", err)
		}

		name := path
		if name == "" {
			name = "(defaults)"
		}
		fmt.Fprintf(w, "Configuration is valid: %s\n", name)
		if validateShow {
			data, err := config.ToYAML(cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "\n%s", data)
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().BoolVar(&validateShow, "show", false, "Print the effective configuration")
	rootCmd.AddCommand(validateCmd)
}
