package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"civicid/internal/agent"
	"civicid/internal/platform/config"
	"civicid/internal/platform/logger"
)

const envPrefix = "CIVICCTL"

// cli carries settings shared by every subcommand. Flags, CIVICCTL_* env vars
// and an optional config file all land in v.
type cli struct {
	v   *viper.Viper
	out io.Writer
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New(), out: os.Stdout}
	var cfgFile string

	root := &cobra.Command{
		Use:   "civicctl",
		Short: "Operator tool for civicid and its identity agent",
		Long: `
Operator tool for civicid and its identity agent.

Every flag can also be set with an environment variable, for example
--agent-url is CIVICCTL_AGENT_URL and link wait --interval is
CIVICCTL_LINK_INTERVAL.
	`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			c.out = cmd.OutOrStdout()
			return c.initConfig(cfgFile)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", flagInfo("configuration file", "config"))
	flags.String("server", "http://localhost:8080", flagInfo("civicid base URL", "server"))
	flags.String("token", "", flagInfo("bearer token for /link endpoints", "token"))
	flags.String("agent-url", config.DefaultAgentURL, flagInfo("identity agent base URL", "agent-url"))
	flags.String("agent-api-key", "", flagInfo("identity agent API key", "agent-api-key"))
	flags.Duration("timeout", 10*time.Second, flagInfo("per request timeout", "timeout"))
	flags.String("log-level", "warn", flagInfo("log level", "log-level"))
	c.bind("", flags)

	root.AddCommand(
		newAgentCmd(c),
		newLinkCmd(c),
		newTokenCmd(c),
		newEventsCmd(c),
	)
	return root
}

func (c *cli) initConfig(file string) error {
	c.v.SetEnvPrefix(envPrefix)
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	c.v.AutomaticEnv()

	if file == "" {
		file = os.Getenv(envName("config"))
	}
	if file == "" {
		return nil
	}
	c.v.SetConfigFile(file)
	if err := c.v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", file, err)
	}
	return nil
}

// bind registers flags under prefix so subcommands can reuse flag names.
func (c *cli) bind(prefix string, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		key := f.Name
		if prefix != "" {
			key = prefix + "." + f.Name
		}
		_ = c.v.BindPFlag(key, f)
	})
}

func (c *cli) logger() *slog.Logger {
	return logger.NewWithWriter(os.Stderr, c.v.GetString("log-level"))
}

func (c *cli) agent() *agent.Client {
	return agent.New(strings.TrimRight(c.v.GetString("agent-url"), "/"),
		agent.WithAPIKey(c.v.GetString("agent-api-key")),
		agent.WithTimeout(c.v.GetDuration("timeout")),
		agent.WithLogger(c.logger()),
	)
}

func (c *cli) api() *apiClient {
	return newAPIClient(c.v.GetString("server"), c.v.GetString("token"), c.v.GetDuration("timeout"))
}

func (c *cli) print(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func flagInfo(info, name string) string {
	return info + ", " + envName(name)
}

func envName(name string) string {
	return envPrefix + "_" + strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(name))
}
