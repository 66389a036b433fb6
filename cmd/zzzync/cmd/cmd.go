// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tabcat/zzzync/pkg/logging"
)

const (
	optionNameDataDir             = "data-dir"
	optionNamePassword            = "password"
	optionNamePasswordFile        = "password-file"
	optionNameDaemonKey           = "daemon-key"
	optionNamePublisherKey        = "publisher-key"
	optionNameP2PAddr             = "p2p-addr"
	optionNameP2PWSEnable         = "p2p-ws-enable"
	optionNameP2PQUICEnable       = "p2p-quic-enable"
	optionNameNATPortMap          = "nat-port-map"
	optionNameBootnodes           = "bootnode"
	optionNameDHTMode             = "dht-mode"
	optionNameDebugAPIAddr        = "debug-api-addr"
	optionCORSAllowedOrigins      = "cors-allowed-origins"
	optionNameAllowFile           = "allow-file"
	optionNameAllowReloadInterval = "allow-reload-interval"
	optionNameMaxArchiveSize      = "max-archive-size"
	optionNameAdvertiseScope      = "advertise-scope"
	optionNameRepublishInterval   = "republish-interval"
	optionNameRateLimitInterval   = "rate-limit-interval"
	optionNameRateLimitBurst      = "rate-limit-burst"
	optionNameTracingEnabled      = "tracing-enable"
	optionNameTracingEndpoint     = "tracing-endpoint"
	optionNameTracingServiceName  = "tracing-service-name"
	optionNameVerbosity           = "verbosity"
	optionNamePeer                = "peer"
	optionNameLifetime            = "lifetime"
	optionNameTTL                 = "ttl"
	optionNameHidden              = "hidden"
	optionNameKeyType             = "key-type"
)

func init() {
	cobra.EnableCommandSorting = false
}

type command struct {
	root           *cobra.Command
	config         *viper.Viper
	passwordReader passwordReader
	cfgFile        string
	homeDir        string
}

type option func(*command)

func newCommand(opts ...option) (c *command, err error) {
	c = &command{
		root: &cobra.Command{
			Use:           "zzzync",
			Short:         "Push named content to a pinning daemon",
			SilenceErrors: true,
			SilenceUsage:  true,
			PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
				return c.initConfig()
			},
		},
	}

	for _, o := range opts {
		o(c)
	}
	if c.passwordReader == nil {
		c.passwordReader = new(stdInPasswordReader)
	}

	// Find home directory.
	if err := c.setHomeDir(); err != nil {
		return nil, err
	}

	c.initGlobalFlags()

	if err := c.initDaemonCmd(); err != nil {
		return nil, err
	}

	if err := c.initPushCmd(); err != nil {
		return nil, err
	}

	if err := c.initGenerateCmd(); err != nil {
		return nil, err
	}

	c.initVersionCmd()

	return c, nil
}

func (c *command) Execute() (err error) {
	return c.root.Execute()
}

// Execute parses command line arguments and runs appropriate functions.
func Execute() (err error) {
	c, err := newCommand()
	if err != nil {
		return err
	}
	return c.Execute()
}

func (c *command) initGlobalFlags() {
	globalFlags := c.root.PersistentFlags()
	globalFlags.StringVar(&c.cfgFile, "config", "", "config file (default is $HOME/.zzzync.yaml)")
}

func (c *command) initConfig() (err error) {
	config := viper.New()
	configName := ".zzzync"
	if c.cfgFile != "" {
		// Use config file from the flag.
		config.SetConfigFile(c.cfgFile)
	} else {
		// Search config in home directory with name ".zzzync" (without extension).
		config.AddConfigPath(c.homeDir)
		config.SetConfigName(configName)
	}

	// Environment
	config.SetEnvPrefix("zzzync")
	config.AutomaticEnv() // read in environment variables that match
	config.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	if c.homeDir != "" && c.cfgFile == "" {
		c.cfgFile = filepath.Join(c.homeDir, configName+".yaml")
	}

	// If a config file is found, read it in.
	if err := config.ReadInConfig(); err != nil {
		var e viper.ConfigFileNotFoundError
		if !errors.As(err, &e) {
			return err
		}
	}
	c.config = config
	return nil
}

func (c *command) setHomeDir() (err error) {
	if c.homeDir != "" {
		return
	}
	dir, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	c.homeDir = dir
	return nil
}

func (c *command) setLoggerFlags(cmd *cobra.Command) {
	cmd.Flags().String(optionNameVerbosity, "info", "log verbosity level 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=trace")
	cmd.Flags().Bool(optionNameTracingEnabled, false, "enable tracing")
	cmd.Flags().String(optionNameTracingEndpoint, "127.0.0.1:6831", "endpoint to send tracing data")
	cmd.Flags().String(optionNameTracingServiceName, "zzzync", "service name identifier for tracing")
}

func newLogger(cmd *cobra.Command, verbosity string) (logging.Logger, error) {
	level, err := logging.ParseVerbosity(verbosity)
	if err != nil {
		return nil, err
	}
	if level == 0 {
		return logging.New(io.Discard, 0), nil
	}
	return logging.New(cmd.OutOrStdout(), level), nil
}

// password returns the password from the password option, the password file
// or the terminal, in that order. A new key asks for confirmation.
func (c *command) password(cmd *cobra.Command, exists bool) (string, error) {
	if p := c.config.GetString(optionNamePassword); p != "" {
		return p, nil
	}
	if f := c.config.GetString(optionNamePasswordFile); f != "" {
		b, err := os.ReadFile(f)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}

	if exists {
		return terminalPromptPassword(cmd, c.passwordReader, "Password")
	}

	cmd.Println("Daemon key is protected with a password. Please keep it safe.")
	p, err := terminalPromptCreatePassword(cmd, c.passwordReader)
	if err != nil {
		return "", fmt.Errorf("create password: %w", err)
	}
	return p, nil
}
