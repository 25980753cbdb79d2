package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ppiankov/contractrag/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var initPath string

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage ContractRAG configuration",
	Long: `Manage ContractRAG configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (CONTRACTRAG_*, e.g. CONTRACTRAG_LLM_MODEL), .env included
3. Config file (~/.contractrag/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  `Display the configuration after merging defaults, config file and environment. API keys are masked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}

		if configFile := viper.ConfigFileUsed(); configFile != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", configFile)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults and environment)\n\n")
		}

		return writeConfig(cmd.OutOrStdout(), maskSecrets(*cfg))
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize default configuration file",
	Long:  `Create a default configuration file at ~/.contractrag/config.yaml with all available options.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := initPath
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("error finding home directory: %w", err)
			}
			path = filepath.Join(home, ".contractrag", "config.yaml")
		}

		if err := initConfigFile(path); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✓ Created default configuration: %s\n", path)
		fmt.Fprintf(cmd.OutOrStdout(), "\nTo view the effective configuration:\n  contractrag config show\n\n")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)

	configInitCmd.Flags().StringVar(&initPath, "path", "", "write the file here instead of ~/.contractrag/config.yaml")
}

// initConfigFile writes the documented default configuration; existing files are kept
func initConfigFile(path string) (err error) {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s\nUse 'contractrag config show' to view it, or delete it first to recreate", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating config file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close config file: %w", closeErr)
		}
	}()

	header := `# ContractRAG Configuration File
#
# Configuration hierarchy (highest to lowest priority):
#   1. CLI flags
#   2. Environment variables (CONTRACTRAG_*, nested keys joined with _)
#   3. This config file
#   4. Built-in defaults

`
	if _, err := io.WriteString(f, header); err != nil {
		return fmt.Errorf("error writing config: %w", err)
	}
	if err := writeConfig(f, *model.DefaultConfig()); err != nil {
		return err
	}

	footer := `
# API keys (recommended to use environment variables instead):
#   export OPENAI_API_KEY=sk-...
#   export ANTHROPIC_API_KEY=sk-ant-...
#   export GEMINI_API_KEY=...
#   export QDRANT_API_KEY=...
#   export OLLAMA_BASE_URL=http://localhost:11434
`
	if _, err := io.WriteString(f, footer); err != nil {
		return fmt.Errorf("error writing config: %w", err)
	}
	return nil
}

func writeConfig(w io.Writer, cfg model.Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}
	return enc.Close()
}

func maskSecrets(cfg model.Config) model.Config {
	cfg.Embedding.APIKey = mask(cfg.Embedding.APIKey)
	cfg.Index.APIKey = mask(cfg.Index.APIKey)
	cfg.LLM.APIKey = mask(cfg.LLM.APIKey)
	return cfg
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****" + secret[len(secret)-4:]
}
