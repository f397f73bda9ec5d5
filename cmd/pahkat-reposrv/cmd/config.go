package cmd

import (
	"github.com/spf13/viper"

	"github.com/divvun/pahkat-reposrv/pkg/errors"
)

var (
	errNoToken   = errors.New("missing configuration: api_token")
	errNoGitPath = errors.New("missing configuration: git_path")
	errNoRepos   = errors.New("missing configuration: repos")
)

// Config describes the server configuration.
type Config struct {
	// APIToken is the bearer token accepted for mutations
	APIToken string `mapstructure:"api_token"`

	// GitPath is the store root: one git working tree per repo name
	GitPath string `mapstructure:"git_path"`

	// Repos are the names of the repositories to host
	Repos []string `mapstructure:"repos"`

	// URL is the public base URL of this server
	URL string `mapstructure:"url"`

	// Host is the IP or hostname to bind (may differ from URL)
	Host string `mapstructure:"host"`

	// Port to bind
	Port int `mapstructure:"port"`

	// IndexInterval is how often (in seconds) snapshots are refreshed
	// from the store to pick up out-of-band commits
	IndexInterval int `mapstructure:"index_interval"`

	// BranchName is the branch pushed to origin after a commit
	BranchName string `mapstructure:"branch_name"`

	// PushToOrigin publishes commits to each repo's origin remote
	PushToOrigin bool `mapstructure:"push_to_origin"`

	// SkipRepoCleanup leaves working trees as found at startup
	// (useful for development)
	SkipRepoCleanup bool `mapstructure:"skip_repo_cleanup"`

	// LogLevel is one of debug, info, warn, error, none
	LogLevel string `mapstructure:"log_level"`

	// LogFormat is json or console
	LogFormat string `mapstructure:"log_format"`
}

func newConfig() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) validate() error {
	if c.APIToken == "" {
		return errNoToken
	}
	if c.GitPath == "" {
		return errNoGitPath
	}
	if len(c.Repos) == 0 {
		return errNoRepos
	}
	return nil
}
