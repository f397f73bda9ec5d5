// Package cmd implements the pahkat-reposrv command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/divvun/pahkat-reposrv/pkg/httpd"
	"github.com/divvun/pahkat-reposrv/pkg/index"
	"github.com/divvun/pahkat-reposrv/pkg/logging"
	"github.com/divvun/pahkat-reposrv/pkg/store/gitstore"
	"github.com/divvun/pahkat-reposrv/pkg/web"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "pahkat-reposrv",
	Short: "Authenticated HTTP server managing pahkat package index repositories",
	Long: `pahkat-reposrv hosts one or more pahkat package index repositories,
each backed by its own git working tree, and exposes an authenticated
HTTP API to create and update package metadata.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config-path", "c", "",
		"path to a TOML config file")
	addServeFlags(rootCmd.Flags())
	cobra.OnInitialize(initConfig)
}

// addServeFlags registers flags that override their config file
// counterparts. Flags win over config values and environment variables.
func addServeFlags(flags *pflag.FlagSet) {
	flags.String("host", "", "address to bind the HTTP server to")
	flags.Int("port", 0, "port to bind the HTTP server to")
	flags.String("log-level", "", "log level (info, debug, none)")
	_ = viper.BindPFlag("host", flags.Lookup("host"))
	_ = viper.BindPFlag("port", flags.Lookup("port"))
	_ = viper.BindPFlag("log_level", flags.Lookup("log-level"))
}

func initConfig() {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("pahkat-reposrv")
		viper.SetConfigType("toml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/pahkat-reposrv")
	}

	viper.SetDefault("host", "127.0.0.1")
	viper.SetDefault("port", 3111)
	viper.SetDefault("index_interval", 60)
	viper.SetDefault("branch_name", "main")
	viper.SetDefault("log_level", logging.LevelInfo)
	viper.SetDefault("log_format", logging.FormatJSON)

	viper.SetEnvPrefix("pahkat")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintln(os.Stderr, "could not read config:", err)
			os.Exit(1)
		}
	}
}

func serve() error {
	config, err := newConfig()
	if err != nil {
		return err
	}

	logger, err := logging.New(config.LogLevel, config.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting pahkat-reposrv",
		zap.String("git_path", config.GitPath),
		zap.Strings("repos", config.Repos),
		zap.String("url", config.URL))

	backend := gitstore.New(
		gitstore.Logger(logger),
		gitstore.Branch(config.BranchName),
		gitstore.PushToOrigin(config.PushToOrigin),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry, err := index.NewRegistry(ctx, backend, config.GitPath, config.Repos,
		index.RegistryLogger(logger),
		index.SkipCleanup(config.SkipRepoCleanup),
	)
	if err != nil {
		return err
	}
	engine := index.NewEngine(registry, backend, index.EngineLogger(logger))

	if config.IndexInterval > 0 {
		go engine.RefreshForever(ctx, time.Duration(config.IndexInterval)*time.Second)
	}

	handler := web.InitRouter(web.NewServer(engine,
		web.ServerParams{APIToken: config.APIToken},
		web.Logger(logger),
	))

	server := httpd.New(
		httpd.HandlesRequestsWith(handler),
		httpd.LogsWith(logger),
		httpd.ListensOn(config.Host, config.Port),
		httpd.OnShutdown(cancel),
	)
	return server.Serve()
}
