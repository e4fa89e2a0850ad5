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

package main

import (
	goerrors "errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"
	"github.com/pingcap/errors"
	"github.com/pingcap/layout-advisor/pkg/config"
	aerrors "github.com/pingcap/layout-advisor/pkg/errors"
	"github.com/pingcap/layout-advisor/pkg/metrics"
	"github.com/pingcap/layout-advisor/pkg/objstore"
	"github.com/pingcap/layout-advisor/pkg/source"
	"github.com/pingcap/layout-advisor/pkg/util/logutil"
	"github.com/pingcap/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

const (
	// FlagConfig is the name of config flag.
	FlagConfig = "config"
	// FlagLogLevel is the name of log-level flag.
	FlagLogLevel = "log-level"
	// FlagLogFile is the name of log-file flag.
	FlagLogFile = "log-file"
	// FlagLogFormat is the name of log-format flag.
	FlagLogFormat = "log-format"
	// FlagStatusAddr is the name of status-addr flag.
	FlagStatusAddr = "status-addr"

	flagStorage     = "storage"
	flagFormat      = "format"
	flagPath        = "path"
	flagColumn      = "column"
	flagHeader      = "header"
	flagDelimiter   = "delimiter"
	flagSampleSize  = "sample-size"
	flagConcurrency = "concurrency"
	flagSeedMode    = "seed-mode"
	flagRegionSize  = "region-size"
)

func timestampLogFileName() string {
	return filepath.Join(os.TempDir(), time.Now().Format("layout-advisor.log.2006-01-02T15.04.05Z0700"))
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:              "layout-advisor",
		Short:            "layout-advisor estimates the size of data layout candidates from samples.",
		TraverseChildren: true,
		SilenceUsage:     true,
	}
	defineCommonFlags(rootCmd)

	var statusServer *http.Server
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		addr, err := cmd.Flags().GetString(FlagStatusAddr)
		if err != nil || addr == "" {
			return errors.Trace(err)
		}
		statusServer, err = startStatusServer(addr)
		return err
	}
	rootCmd.PersistentPostRun = func(*cobra.Command, []string) {
		if statusServer != nil {
			_ = statusServer.Close()
		}
	}
	rootCmd.AddCommand(
		newEstimateCommand(),
		newSketchCommand(),
	)
	return rootCmd
}

// defineCommonFlags defines the flags shared by all commands.
func defineCommonFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringP(FlagConfig, "c", "",
		"Set the TOML config file path")
	cmd.PersistentFlags().StringP(FlagLogLevel, "L", "",
		"Set the log level, overrides log.level of the config file")
	cmd.PersistentFlags().String(FlagLogFile, "",
		"Set the log file path. If not set, logs will output to temp file")
	cmd.PersistentFlags().String(FlagLogFormat, "",
		"Set the log format, overrides log.format of the config file")
	cmd.PersistentFlags().String(FlagStatusAddr, "",
		"Set the HTTP listening address for the metrics of the run. Set to empty string to disable")
}

// startStatusServer serves the metrics on addr until the returned server is closed.
func startStatusServer(addr string) (*http.Server, error) {
	registry := prometheus.NewRegistry()
	metrics.RegisterMetrics(registry)
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Trace(err)
	}
	srv := &http.Server{Addr: l.Addr().String(), Handler: router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(l); err != nil && !goerrors.Is(err, http.ErrServerClosed) {
			log.Warn("status server stopped", zap.Error(err))
		}
	}()
	log.Info("status server started", zap.String("addr", srv.Addr))
	return srv, nil
}

// defineSourceFlags defines the flags describing a source dataset and how it is sampled.
func defineSourceFlags(flags *pflag.FlagSet) {
	flags.StringP(flagStorage, "s", "",
		"Set the storage URI of the source files, e.g. s3://bucket/prefix. Overrides storage.uri")
	flags.StringP(flagFormat, "f", string(source.FormatCSV),
		"Set the source file format, one of csv, jsonl and parquet")
	flags.StringArrayP(flagPath, "p", nil,
		"Add a source file path relative to the storage, can be repeated")
	flags.StringSlice(flagColumn, nil,
		"Set the source schema as name:type pairs, type is one of string, int, float and bool")
	flags.Bool(flagHeader, false,
		"Whether every csv file starts with a header line")
	flags.String(flagDelimiter, ",",
		"Set the csv field delimiter")
	flags.Int(flagSampleSize, config.DefaultSampleSize,
		"Set the reservoir size of every partition, overrides estimator.sample-size")
	flags.Int(flagConcurrency, 0,
		"Set the number of partitions sampled at once, overrides estimator.concurrency")
	flags.String(flagSeedMode, config.SeedModeSession,
		"Set how sampling is seeded, session or content. Overrides estimator.seed-mode")
	flags.String(flagRegionSize, "",
		"Set the size text files are split by, e.g. 64MiB. Overrides source.region-size")
}

// loadConfig reads the config file and applies the flags set on the command line.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()
	confFile, err := flags.GetString(FlagConfig)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if confFile != "" {
		if err := cfg.Load(confFile); err != nil {
			return nil, err
		}
	}

	overrideString := func(name string, target *string) error {
		if flags.Lookup(name) == nil || !flags.Changed(name) {
			return nil
		}
		v, err := flags.GetString(name)
		*target = v
		return errors.Trace(err)
	}
	overrideInt := func(name string, target *int) error {
		if flags.Lookup(name) == nil || !flags.Changed(name) {
			return nil
		}
		v, err := flags.GetInt(name)
		*target = v
		return errors.Trace(err)
	}
	var regionSize string
	for _, err := range []error{
		overrideString(FlagLogLevel, &cfg.Log.Level),
		overrideString(FlagLogFile, &cfg.Log.File.Filename),
		overrideString(FlagLogFormat, &cfg.Log.Format),
		overrideString(flagStorage, &cfg.Storage.URI),
		overrideString(flagSeedMode, &cfg.Estimator.SeedMode),
		overrideString(flagRegionSize, &regionSize),
		overrideInt(flagSampleSize, &cfg.Estimator.SampleSize),
		overrideInt(flagConcurrency, &cfg.Estimator.Concurrency),
	} {
		if err != nil {
			return nil, err
		}
	}
	if regionSize != "" {
		if err := cfg.Source.RegionSize.UnmarshalText([]byte(regionSize)); err != nil {
			return nil, err
		}
	}
	if cfg.Log.File.Filename == "" {
		cfg.Log.File.Filename = timestampLogFileName()
	}
	if err := cfg.Valid(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseDescriptor builds the source descriptor from the source flags.
func parseDescriptor(flags *pflag.FlagSet) (*source.Descriptor, error) {
	formatName, err := flags.GetString(flagFormat)
	if err != nil {
		return nil, errors.Trace(err)
	}
	format, err := source.ParseFormat(formatName)
	if err != nil {
		return nil, err
	}
	paths, err := flags.GetStringArray(flagPath)
	if err != nil {
		return nil, errors.Trace(err)
	}
	columns, err := flags.GetStringSlice(flagColumn)
	if err != nil {
		return nil, errors.Trace(err)
	}
	var schema source.Schema
	for _, s := range columns {
		col, err := source.ParseColumn(s)
		if err != nil {
			return nil, err
		}
		schema = append(schema, col)
	}
	header, err := flags.GetBool(flagHeader)
	if err != nil {
		return nil, errors.Trace(err)
	}
	delimiter, err := flags.GetString(flagDelimiter)
	if err != nil {
		return nil, errors.Trace(err)
	}
	runes := []rune(delimiter)
	if len(runes) != 1 {
		return nil, errors.Annotatef(aerrors.ErrInvalidArgument, "--%s should be a single character, got %q", flagDelimiter, delimiter)
	}

	desc := &source.Descriptor{
		Paths:  paths,
		Format: format,
		Schema: schema,
		CSV:    source.CSVOptions{Delimiter: runes[0], Header: header},
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	return desc, nil
}

// sourceEnv is everything a command needs to read a source dataset.
type sourceEnv struct {
	cfg    *config.Config
	scheme string
	desc   *source.Descriptor
	loader *source.Loader
}

func newSourceEnv(cmd *cobra.Command) (*sourceEnv, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := logutil.InitLogger(cfg.Log.ToLogConfig()); err != nil {
		return nil, err
	}
	desc, err := parseDescriptor(cmd.Flags())
	if err != nil {
		return nil, err
	}
	backend, err := objstore.ParseBackend(cfg.Storage.URI)
	if err != nil {
		return nil, err
	}
	store, err := objstore.New(cmd.Context(), backend, &cfg.Storage.BackendOptions)
	if err != nil {
		return nil, err
	}
	logutil.BgLogger().Info("source opened",
		zap.String(logutil.LogFieldCategory, "cli"),
		zap.String("storage", store.URI()),
		zap.Stringer("source", desc),
		zap.Int("sampleSize", cfg.Estimator.SampleSize))
	return &sourceEnv{
		cfg:    cfg,
		scheme: backend.Scheme,
		desc:   desc,
		loader: source.NewLoader(store, int64(cfg.Source.RegionSize), cfg.Estimator.SeedMode),
	}, nil
}
