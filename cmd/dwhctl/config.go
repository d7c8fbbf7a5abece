// Copyright © 2020 Banzai Cloud
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

package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/banzaicloud/dwhctl/internal/dwh"
	"github.com/banzaicloud/dwhctl/internal/platform/log"
	"github.com/banzaicloud/dwhctl/pkg/providers/amazon"
)

// configuration holds any kind of configuration that comes from the outside world and
// is necessary for running the application.
type configuration struct {
	// Log configuration
	Log log.Config

	// AWS account and region
	AWS amazon.Config

	// Warehouse cluster shape and credentials
	DWH dwh.Config

	// Cluster state polling
	Poll dwh.PollConfig
}

// Validate validates the configuration.
func (c configuration) Validate() error {
	var errs error

	errs = errors.Append(errs, c.Log.Validate())
	errs = errors.Append(errs, c.AWS.Validate())
	errs = errors.Append(errs, c.DWH.Validate())
	errs = errors.Append(errs, c.Poll.Validate())

	return errs
}

// String renders the configuration with secrets masked.
func (c configuration) String() string {
	if c.AWS.Secret != "" {
		c.AWS.Secret = "***"
	}

	if c.DWH.DBPassword != "" {
		c.DWH.DBPassword = "***"
	}

	return fmt.Sprintf("%+v", struct {
		Log  log.Config
		AWS  amazon.Config
		DWH  dwh.Config
		Poll dwh.PollConfig
	}(c))
}

// legacyKeys maps the keys of the INI layout (AWS and DWH sections) to their current names.
// nolint: gochecknoglobals
var legacyKeys = map[string]string{
	"dwh.dwh_cluster_type":       "dwh.clusterType",
	"dwh.dwh_num_nodes":          "dwh.numNodes",
	"dwh.dwh_node_type":          "dwh.nodeType",
	"dwh.dwh_cluster_identifier": "dwh.clusterIdentifier",
	"dwh.dwh_db":                 "dwh.db",
	"dwh.dwh_db_user":            "dwh.dbUser",
	"dwh.dwh_db_password":        "dwh.dbPassword",
	"dwh.dwh_port":               "dwh.port",
	"dwh.dwh_iam_role_name":      "dwh.iamRoleName",
}

// configure configures some defaults in the Viper instance.
func configure(v *viper.Viper, p *pflag.FlagSet) {
	// Viper settings
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath(fmt.Sprintf("$%s_CONFIG_DIR/", strings.ToUpper(envPrefix)))

	// Environment variable settings
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	// Global configuration
	p.String("config", "", "Configuration file (toml, yaml or the legacy ini layout)")
	p.Bool("dump-config", false, "Dump configuration to the console (and exit)")
	_ = v.BindPFlag("config", p.Lookup("config"))
	_ = v.BindPFlag("dump-config", p.Lookup("dump-config"))

	// Log configuration
	v.SetDefault("log.format", "logfmt")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.noColor", false)

	// AWS configuration
	v.SetDefault("aws.key", "")
	v.SetDefault("aws.secret", "")
	v.SetDefault("aws.region", "us-west-2")
	v.SetDefault("aws.debug", false)

	// Warehouse configuration
	v.SetDefault("dwh.clusterType", "multi-node")
	v.SetDefault("dwh.numNodes", 4)
	v.SetDefault("dwh.nodeType", "dc2.large")
	v.SetDefault("dwh.clusterIdentifier", "")
	v.SetDefault("dwh.db", "dwh")
	v.SetDefault("dwh.dbUser", "dwhuser")
	v.SetDefault("dwh.dbPassword", "")
	v.SetDefault("dwh.port", 5439)
	v.SetDefault("dwh.iamRoleName", "")
	v.SetDefault("dwh.verifyConnection", false)

	// Poll configuration
	v.SetDefault("poll.interval", 60*time.Second)
	v.SetDefault("poll.maxAttempts", 60)
}

// readConfig reads the configuration file given with --config or found in the config paths.
func readConfig(v *viper.Viper) error {
	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)

		switch filepath.Ext(file) {
		case ".cfg", ".conf":
			v.SetConfigType("ini")
		}
	} else {
		v.SetConfigName("config")
	}

	err := v.ReadInConfig()
	if err != nil {
		return err
	}

	migrateLegacyKeys(v)

	return nil
}

// migrateLegacyKeys replaces the defaults of the current keys with the values of the legacy ones,
// so environment variables and current keys still take precedence.
func migrateLegacyKeys(v *viper.Viper) {
	for legacy, current := range legacyKeys {
		if v.IsSet(legacy) {
			v.SetDefault(current, v.Get(legacy))
		}
	}
}

func loadConfiguration(v *viper.Viper) (configuration, error) {
	var config configuration

	err := v.Unmarshal(&config, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return config, errors.WrapIf(err, "failed to unmarshal configuration")
	}

	return config, nil
}
