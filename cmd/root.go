// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ninecatalog/classicbridge/cfg"
)

// RunFunc is what the serve subcommand dispatches to once
// configuration has been parsed and validated; production wires this
// to the driver's construct-then-negotiate-then-serve sequence, tests
// substitute a stub. Reading mount_tag out of the virtio device's own
// config space is the MMIO-level concern spec.md §1 puts out of scope,
// so the command line is this module's only in-scope source for it.
type RunFunc func(c *cfg.Config, mountTag string) error

var (
	cfgFile string
	bindErr error
)

// NewRootCmd builds the "fsbridge" root command and its "serve"
// subcommand fresh, mirroring the teacher's root.go flag-bind-then-
// RunE shape but as a constructor so tests can build independent
// command trees instead of sharing package-level command state.
func NewRootCmd(run RunFunc) (*cobra.Command, error) {
	viper.Reset()
	bindErr = nil

	root := &cobra.Command{
		Use:   "fsbridge",
		Short: "Bridge a classic Mac OS catalog filesystem over virtio/9P",
	}

	serve := &cobra.Command{
		Use:   "serve <mount-tag>",
		Short: "Negotiate the virtio device and serve one volume",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if bindErr != nil {
				return bindErr
			}

			conf := cfg.GetDefaultConfig()
			if err := viper.Unmarshal(conf, viper.DecodeHook(cfg.DecodeHook()), func(dc *mapstructure.DecoderConfig) {
				dc.TagName = "yaml"
			}); err != nil {
				return fmt.Errorf("parsing configuration: %w", err)
			}
			if err := cfg.ValidateConfig(conf); err != nil {
				return err
			}

			defer recoverCrash(conf)
			return run(conf, args[0])
		},
	}

	serve.PersistentFlags().StringVar(&cfgFile, "config-file", "", "Path to a YAML configuration file")
	if bindErr = cfg.BindFlags(serve.PersistentFlags()); bindErr != nil {
		return nil, bindErr
	}

	cobra.OnInitialize(func() { loadConfigFile(cfgFile) })
	root.AddCommand(serve)
	return root, nil
}

func loadConfigFile(path string) {
	if path == "" {
		return
	}
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		bindErr = fmt.Errorf("reading config file: %w", err)
	}
}

// Execute runs the real root command against os.Args, wiring the
// serve subcommand to runServe.
func Execute() {
	root, err := NewRootCmd(runServe)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
