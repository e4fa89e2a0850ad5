// Copyright 2026 PingCAP, Inc.
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

package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/docker/go-units"
	aerrors "github.com/pingcap/layout-advisor/pkg/errors"
	"github.com/pingcap/layout-advisor/pkg/util/logutil"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	conf := NewConfig()
	require.NoError(t, conf.Valid())
	require.Equal(t, 10, conf.Estimator.RepartitionReadDivisor)
	require.Equal(t, 2, conf.Estimator.FileSkippingReadDivisor)
	require.Equal(t, SeedModeSession, conf.Estimator.SeedMode)
	require.Equal(t, ByteSize(256*units.MiB), conf.Source.RegionSize)
	require.Equal(t, runtime.GOMAXPROCS(0), conf.Estimator.GetConcurrency())

	// NewConfig must not share state with the defaults.
	conf.Estimator.SampleSize = 1
	require.Equal(t, DefaultSampleSize, NewConfig().Estimator.SampleSize)
}

func TestLoad(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(configFile, []byte(`
[log]
level = "debug"

[estimator]
sample-size = 50
repartition-read-divisor = 4
concurrency = 3
seed-mode = "content"

[storage]
uri = "s3://bucket/prefix"
[storage.s3]
region = "us-west-2"
force-path-style = true

[source]
region-size = "64MiB"
`), 0644))

	conf := NewConfig()
	require.NoError(t, conf.Load(configFile))
	require.NoError(t, conf.Valid())
	require.Equal(t, "debug", conf.Log.Level)
	require.Equal(t, 50, conf.Estimator.SampleSize)
	require.Equal(t, 4, conf.Estimator.RepartitionReadDivisor)
	// Untouched keys keep their defaults.
	require.Equal(t, 2, conf.Estimator.FileSkippingReadDivisor)
	require.Equal(t, 3, conf.Estimator.GetConcurrency())
	require.Equal(t, SeedModeContent, conf.Estimator.SeedMode)
	require.Equal(t, "s3://bucket/prefix", conf.Storage.URI)
	require.Equal(t, "us-west-2", conf.Storage.S3.Region)
	require.True(t, conf.Storage.S3.ForcePathStyle)
	require.Equal(t, ByteSize(64*units.MiB), conf.Source.RegionSize)

	logConf := conf.Log.ToLogConfig()
	require.Equal(t, "debug", logConf.Level)
	require.Equal(t, logutil.DefaultLogFormat, logConf.Format)
}

func TestLoadUnknownKey(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(configFile, []byte(`
[estimator]
sample-sise = 50
`), 0644))
	err := NewConfig().Load(configFile)
	require.Error(t, err)
	require.True(t, aerrors.ErrInvalidConfig.Equal(err))
	require.Contains(t, err.Error(), "estimator.sample-sise")
}

func TestValid(t *testing.T) {
	cases := []struct {
		modify func(*Config)
		ok     bool
	}{
		{func(*Config) {}, true},
		{func(c *Config) { c.Estimator.SampleSize = 0 }, true},
		{func(c *Config) { c.Estimator.SampleSize = -1 }, false},
		{func(c *Config) { c.Estimator.RepartitionReadDivisor = 0 }, false},
		{func(c *Config) { c.Estimator.FileSkippingReadDivisor = -2 }, false},
		{func(c *Config) { c.Estimator.Concurrency = -1 }, false},
		{func(c *Config) { c.Estimator.SeedMode = "random" }, false},
		{func(c *Config) { c.Source.RegionSize = 0 }, false},
	}
	for i, ca := range cases {
		conf := NewConfig()
		ca.modify(conf)
		err := conf.Valid()
		if ca.ok {
			require.NoError(t, err, "case %d", i)
		} else {
			require.Error(t, err, "case %d", i)
			require.True(t, aerrors.ErrInvalidConfig.Equal(err), "case %d", i)
		}
	}
}

func TestByteSize(t *testing.T) {
	var b ByteSize
	require.NoError(t, b.UnmarshalText([]byte("1KiB")))
	require.Equal(t, ByteSize(1024), b)
	require.Error(t, b.UnmarshalText([]byte("abc")))
}
