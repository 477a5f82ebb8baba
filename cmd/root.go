package cmd

import (
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "threadmirror",
	Short: "Scrape social media threads into reports and durable archives",
	Long: `threadmirror fetches a thread (main post plus replies) through mirror
sites with automatic failover, extracts it into structured data, generates
an AI report with a multimodal-to-text fallback, and persists everything
exactly once per post: a SQLite row plus a JSON snapshot.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.threadmirror.yaml)")
	pf.StringSlice("instances", nil, "mirror instances to try in order")
	pf.String("provider", "anthropic", "AI backend (anthropic, gemini)")
	pf.String("model", "", "model name (backend default when empty)")
	pf.String("data-dir", "", "directory for the database and snapshots (default: ~/.threadmirror)")
	pf.Int("max-images", 10, "maximum images sent to the AI backend per run")
	pf.Int("retry-attempts", 3, "attempts per retryable operation")
	pf.Duration("retry-delay", 2*time.Second, "base delay between retries")
	pf.Int("requests-per-minute", 10, "AI call ceiling per sliding minute (0 disables)")
	pf.Bool("save-failed-html", false, "preserve raw HTML when parsing fails")
	pf.Bool("strict-report", false, "fail the run when report generation fails")
	pf.Bool("describe-images", false, "caption each image individually before reporting")
	pf.Bool("headless", true, "run the browser headless")
	pf.BoolP("verbose", "v", false, "enable debug logging")

	for _, name := range []string{
		"instances", "provider", "model", "data-dir", "max-images",
		"retry-attempts", "retry-delay", "requests-per-minute",
		"save-failed-html", "strict-report", "describe-images",
		"headless", "verbose",
	} {
		_ = viper.BindPFlag(name, pf.Lookup(name))
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".threadmirror")
	}

	viper.SetEnvPrefix("THREADMIRROR")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	_ = viper.ReadInConfig()
}

// newLogger builds the process logger from the verbose flag.
func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if viper.GetBool("verbose") {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}
