// Command docchat is the terminal client for a docchat server. The format
// subcommand works offline; everything else talks to the HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docchat/internal/client"
	"github.com/dgallion1/docchat/internal/source"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "docchat",
	Short: "Chat with your documents",
	Long: `docchat uploads documents to a docchat server and asks questions about them.
Answers cite the document chunks they were drawn from.

Examples:
  docchat upload handbook.pdf notes.md
  docchat ask "how do I rotate the api keys?"
  docchat ask -s <session-id> "and for staging?"
  docchat sessions
  docchat history <session-id>
  cat reply.txt | docchat format -o html

Settings come from flags, DOCCHAT_* environment variables, or
~/.config/docchat/config.yaml (keys: server, api_key, user, citation_policy).`,
	SilenceUsage:      true,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
}

var configFile string

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "Config file (default ~/.config/docchat/config.yaml)")
	pf.String("server", "", "docchat server URL")
	pf.String("api-key", "", "API key for the server")
	pf.String("user", "", "User ID to act as")
	pf.String("citation-policy", "", "How to show citations past the source list: lenient or strict")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// settings is the resolved CLI configuration.
type settings struct {
	Server string
	APIKey string
	User   string
	Policy source.Policy
}

// loadSettings merges flags, DOCCHAT_* env and the config file, in that
// order of precedence.
func loadSettings() (settings, error) {
	v := viper.New()
	v.SetDefault("server", "http://localhost:8090")
	v.SetDefault("user", defaultUser())
	v.SetDefault("citation_policy", "lenient")

	v.SetEnvPrefix("DOCCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	pf := rootCmd.PersistentFlags()
	for key, flag := range map[string]string{
		"server":          "server",
		"api_key":         "api-key",
		"user":            "user",
		"citation_policy": "citation-policy",
	} {
		if err := v.BindPFlag(key, pf.Lookup(flag)); err != nil {
			return settings{}, fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "docchat"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return settings{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	policy := strings.ToLower(v.GetString("citation_policy"))
	if policy != "lenient" && policy != "strict" {
		return settings{}, fmt.Errorf("citation_policy must be lenient or strict, got %q", policy)
	}
	return settings{
		Server: strings.TrimRight(v.GetString("server"), "/"),
		APIKey: v.GetString("api_key"),
		User:   v.GetString("user"),
		Policy: source.ParsePolicy(policy),
	}, nil
}

func defaultUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "default"
}

// apiClient returns a client and a context carrying the API token.
func apiClient(ctx context.Context) (*client.Client, context.Context, settings, error) {
	s, err := loadSettings()
	if err != nil {
		return nil, nil, s, err
	}
	if s.APIKey == "" {
		return nil, nil, s, fmt.Errorf("no api key: set DOCCHAT_API_KEY, --api-key, or api_key in the config file")
	}
	return client.New(s.Server), client.WithToken(ctx, s.APIKey), s, nil
}
