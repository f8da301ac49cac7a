package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/ntewolde/local-buyer-intelligence/internal/utils"
	"github.com/ntewolde/local-buyer-intelligence/pkg/api"
	"github.com/ntewolde/local-buyer-intelligence/pkg/guard"
	"github.com/ntewolde/local-buyer-intelligence/pkg/session"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "lbi",
	Short: "Operator console for the Local Buyer Intelligence platform.",
	Long: `lbi manages geographic areas, CSV data imports and intelligence
reports against a Local Buyer Intelligence server, right from your command
line: upload source data, register import jobs, watch them through their
status lifecycle, and generate and export ZIP-level demand reports.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.lbi.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("url", "u", "", "Base URL of the Local Buyer Intelligence API (default from config)")
	rootCmd.PersistentFlags().StringP("proxy", "", "", "HTTP Proxy (Useful for debugging. Example: http://127.0.0.1:8080)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".lbi")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("lbi")
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := home + "/.lbi.yaml"
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s", err)
			}
		}
	}

	// Set default empty values for all keys
	viper.SetDefault("api.base_url", api.DefaultBaseURL)
	viper.SetDefault("api.proxy", "")
	viper.SetDefault("auth.email", "")
	viper.SetDefault("auth.password", "")

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)
}

// newClient builds the session store and the API client every command goes
// through. The session is injected, never global.
func newClient() (*api.Client, error) {
	tokenPath, err := session.DefaultPath()
	if err != nil {
		return nil, err
	}
	sess, err := session.Open(tokenPath)
	if err != nil {
		return nil, err
	}

	baseURL, _ := rootCmd.PersistentFlags().GetString("url")
	if baseURL == "" {
		baseURL = viper.GetString("api.base_url")
	}

	var opts []api.Option
	proxy, _ := rootCmd.PersistentFlags().GetString("proxy")
	if proxy == "" {
		proxy = viper.GetString("api.proxy")
	}
	if proxy != "" {
		opts = append(opts, api.WithProxy(proxy))
	}

	return api.New(baseURL, sess, opts...), nil
}

// authedClient is the route guard for commands that need a session: it
// builds the client and refuses to proceed when no token is stored. The
// check is advisory; a revoked token still fails at the first API call.
func authedClient() (*api.Client, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	if err := guard.New(client.Session()).Check(); err != nil {
		return nil, err
	}
	return client, nil
}
