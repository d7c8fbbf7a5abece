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
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigure(t *testing.T) {
	v := viper.New()
	p := pflag.NewFlagSet("test", pflag.ContinueOnError)

	configure(v, p)

	require.NoError(t, p.Parse([]string{"--config", "../../config/config.toml.dist"}))

	err := readConfig(v)
	require.NoError(t, err)

	config, err := loadConfiguration(v)
	require.NoError(t, err)

	err = config.Validate()
	require.NoError(t, err)

	assert.Equal(t, "us-west-2", config.AWS.Region)
	assert.Equal(t, "dwhCluster", config.DWH.ClusterIdentifier)
	assert.Equal(t, 4, config.DWH.NumNodes)
	assert.Equal(t, 60*time.Second, config.Poll.Interval)
	assert.Equal(t, 60, config.Poll.MaxAttempts)
}

func TestConfigure_LegacyLayout(t *testing.T) {
	v := viper.New()
	p := pflag.NewFlagSet("test", pflag.ContinueOnError)

	configure(v, p)

	require.NoError(t, p.Parse([]string{"--config", "../../config/dwh.cfg.dist"}))

	err := readConfig(v)
	require.NoError(t, err)

	config, err := loadConfiguration(v)
	require.NoError(t, err)

	err = config.Validate()
	require.NoError(t, err)

	assert.Equal(t, "multi-node", config.DWH.ClusterType)
	assert.Equal(t, 4, config.DWH.NumNodes)
	assert.Equal(t, "dc2.large", config.DWH.NodeType)
	assert.Equal(t, "dwhCluster", config.DWH.ClusterIdentifier)
	assert.Equal(t, "dwhuser", config.DWH.DBUser)
	assert.Equal(t, 5439, config.DWH.Port)
	assert.Equal(t, "dwhRole", config.DWH.IAMRoleName)
	assert.Equal(t, "us-west-2", config.AWS.Region)
}

func TestConfigure_EnvOverridesLegacyLayout(t *testing.T) {
	t.Setenv("DWH_DWH_CLUSTERIDENTIFIER", "fromenv")

	v := viper.New()
	p := pflag.NewFlagSet("test", pflag.ContinueOnError)

	configure(v, p)

	require.NoError(t, p.Parse([]string{"--config", "../../config/dwh.cfg.dist"}))
	require.NoError(t, readConfig(v))

	config, err := loadConfiguration(v)
	require.NoError(t, err)

	assert.Equal(t, "fromenv", config.DWH.ClusterIdentifier)
}

func TestConfiguration_Validate(t *testing.T) {
	v := viper.New()
	p := pflag.NewFlagSet("test", pflag.ContinueOnError)

	configure(v, p)

	config, err := loadConfiguration(v)
	require.NoError(t, err)

	// cluster identifier and role name have no defaults
	assert.Error(t, config.Validate())
}

func TestConfiguration_StringMasksSecrets(t *testing.T) {
	var config configuration

	config.AWS.Secret = "topsecret"
	config.DWH.DBPassword = "Passw0rd"

	s := config.String()

	assert.NotContains(t, s, "topsecret")
	assert.NotContains(t, s, "Passw0rd")
	assert.Contains(t, s, "***")
}
