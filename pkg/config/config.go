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
	"fmt"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/docker/go-units"
	"github.com/pingcap/errors"
	aerrors "github.com/pingcap/layout-advisor/pkg/errors"
	"github.com/pingcap/layout-advisor/pkg/objstore"
	"github.com/pingcap/layout-advisor/pkg/util/logutil"
)

// Seed modes of the sampled collection identity.
const (
	// SeedModeSession assigns a fresh identity to every loaded collection.
	SeedModeSession = "session"
	// SeedModeContent derives the identity from the files of the collection.
	SeedModeContent = "content"
)

const (
	// DefaultSampleSize is the default reservoir size of one partition.
	DefaultSampleSize = 1000
	// DefaultRepartitionReadDivisor is the default read divisor of repartitioning candidates.
	DefaultRepartitionReadDivisor = 10
	// DefaultFileSkippingReadDivisor is the default read divisor of file-skipping candidates.
	DefaultFileSkippingReadDivisor = 2
	// DefaultRegionSize is the default byte size of a text region.
	DefaultRegionSize = 256 * units.MiB
)

// Config contains configuration options.
type Config struct {
	Log       Log       `toml:"log" json:"log"`
	Estimator Estimator `toml:"estimator" json:"estimator"`
	Storage   Storage   `toml:"storage" json:"storage"`
	Source    Source    `toml:"source" json:"source"`
}

// Log is the log section of config.
type Log struct {
	// Log level.
	Level string `toml:"level" json:"level"`
	// Log format. one of json, text, or console.
	Format string `toml:"format" json:"format"`
	// Disable automatic timestamps in output.
	DisableTimestamp bool `toml:"disable-timestamp" json:"disable-timestamp"`
	// File log config.
	File logutil.FileLogConfig `toml:"file" json:"file"`
}

// Estimator is the estimator section of config.
type Estimator struct {
	// SampleSize is the reservoir capacity of every partition.
	SampleSize int `toml:"sample-size" json:"sample-size"`
	// RepartitionReadDivisor divides the file count of a repartitioned source.
	RepartitionReadDivisor int `toml:"repartition-read-divisor" json:"repartition-read-divisor"`
	// FileSkippingReadDivisor divides the file count of an indexed source.
	FileSkippingReadDivisor int `toml:"file-skipping-read-divisor" json:"file-skipping-read-divisor"`
	// Concurrency bounds the number of partitions sampled at once. 0 means GOMAXPROCS.
	Concurrency int `toml:"concurrency" json:"concurrency"`
	// SeedMode is one of "session" or "content".
	SeedMode string `toml:"seed-mode" json:"seed-mode"`
}

// Storage is the storage section of config.
type Storage struct {
	// URI is the default storage backend, e.g. file:///data or s3://bucket/prefix.
	URI string `toml:"uri" json:"uri"`
	objstore.BackendOptions
}

// Source is the source section of config.
type Source struct {
	// RegionSize is the byte size a text file is split by, e.g. "256MiB".
	RegionSize ByteSize `toml:"region-size" json:"region-size"`
}

// ByteSize is a byte count which decodes from either an integer or a human readable size.
type ByteSize int64

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *ByteSize) UnmarshalText(text []byte) error {
	v, err := units.RAMInBytes(string(text))
	if err != nil {
		return errors.Trace(err)
	}
	*b = ByteSize(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (b ByteSize) MarshalText() ([]byte, error) {
	return []byte(units.BytesSize(float64(b))), nil
}

var defaultConf = Config{
	Log: Log{
		Level:  logutil.DefaultLogLevel,
		Format: logutil.DefaultLogFormat,
		File:   logutil.NewFileLogConfig(logutil.DefaultLogMaxSize),
	},
	Estimator: Estimator{
		SampleSize:              DefaultSampleSize,
		RepartitionReadDivisor:  DefaultRepartitionReadDivisor,
		FileSkippingReadDivisor: DefaultFileSkippingReadDivisor,
		SeedMode:                SeedModeSession,
	},
	Storage: Storage{
		URI: "file:///",
	},
	Source: Source{
		RegionSize: DefaultRegionSize,
	},
}

// NewConfig creates a new config instance with default value.
func NewConfig() *Config {
	conf := defaultConf
	return &conf
}

// Load loads config options from a toml file.
func (c *Config) Load(confFile string) error {
	meta, err := toml.DecodeFile(confFile, c)
	if err != nil {
		return errors.Trace(err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return aerrors.ErrInvalidConfig.GenWithStackByArgs(
			fmt.Sprintf("unknown keys in config file %s: %s", confFile, strings.Join(keys, ", ")))
	}
	return nil
}

// Valid checks if this config is valid.
func (c *Config) Valid() error {
	if err := c.Estimator.Valid(); err != nil {
		return err
	}
	if err := c.Storage.S3.Valid(); err != nil {
		return err
	}
	if c.Source.RegionSize <= 0 {
		return aerrors.ErrInvalidConfig.GenWithStackByArgs("source.region-size must be positive")
	}
	return nil
}

// Valid checks if the estimator section is valid.
func (e *Estimator) Valid() error {
	if e.SampleSize < 0 {
		return aerrors.ErrInvalidConfig.GenWithStackByArgs(
			fmt.Sprintf("estimator.sample-size should not be negative, got %d", e.SampleSize))
	}
	if e.RepartitionReadDivisor <= 0 {
		return aerrors.ErrInvalidConfig.GenWithStackByArgs(
			fmt.Sprintf("estimator.repartition-read-divisor must be positive, got %d", e.RepartitionReadDivisor))
	}
	if e.FileSkippingReadDivisor <= 0 {
		return aerrors.ErrInvalidConfig.GenWithStackByArgs(
			fmt.Sprintf("estimator.file-skipping-read-divisor must be positive, got %d", e.FileSkippingReadDivisor))
	}
	if e.Concurrency < 0 {
		return aerrors.ErrInvalidConfig.GenWithStackByArgs(
			fmt.Sprintf("estimator.concurrency should not be negative, got %d", e.Concurrency))
	}
	switch e.SeedMode {
	case SeedModeSession, SeedModeContent:
	default:
		return aerrors.ErrInvalidConfig.GenWithStackByArgs(
			fmt.Sprintf("estimator.seed-mode should be %q or %q, got %q", SeedModeSession, SeedModeContent, e.SeedMode))
	}
	return nil
}

// GetConcurrency returns the effective sampling concurrency.
func (e *Estimator) GetConcurrency() int {
	if e.Concurrency == 0 {
		return runtime.GOMAXPROCS(0)
	}
	return e.Concurrency
}

// ToLogConfig converts *Log to *logutil.LogConfig.
func (l *Log) ToLogConfig() *logutil.LogConfig {
	return logutil.NewLogConfig(l.Level, l.Format, l.File, l.DisableTimestamp)
}
