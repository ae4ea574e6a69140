package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfigFile = "showsync.yaml"

var cfgFile string

// rootCmd syncs every tracked show, or a single remote path when one is given
var rootCmd = &cobra.Command{
	Use:   "showsync [path]",
	Short: "mirror tv shows from remote servers",
	Long: `showsync mirrors the episodes of tracked shows from remote servers into local directories.

Without arguments every configured show is synced. With a path, that remote file,
directory or playlist file is fetched once.`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return syncAll(cmd.Context())
		}
		return syncItem(cmd.Context(), args[0])
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default showsync.yaml when present)")
}

func initConfig() {
	switch {
	case cfgFile != "":
		viper.SetConfigFile(cfgFile)
	case fileExists(defaultConfigFile):
		viper.SetConfigFile(defaultConfigFile)
	}

	viper.SetEnvPrefix("SHOWSYNC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", ""))
	viper.AutomaticEnv()

	viper.SetDefault("state.file", "config.xml")
	viper.SetDefault("state.lockTimeout", 5*time.Second)

	viper.SetDefault("ssh.timeout", 30*time.Second)
	viper.SetDefault("ssh.knownHosts", "")
	viper.SetDefault("ssh.defaultPort", 22)

	viper.SetDefault("transfer.progress", true)
	viper.SetDefault("transfer.bufferSize", 32*1024)

	viper.SetDefault("journal.enabled", true)
	viper.SetDefault("journal.filePath", "showsync.sqlite")

	viper.SetDefault("emby.maxRetries", 3)
	viper.SetDefault("emby.backoff", 500*time.Millisecond)
	viper.SetDefault("emby.timeout", 30*time.Second)
	viper.SetDefault("emby.client", "showsync")
	viper.SetDefault("emby.device", "showsync-cli")

	viper.SetDefault("log.level", "")
	viper.SetDefault("log.json", false)
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
