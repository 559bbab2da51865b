//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package test builds sentinels wired for unit tests.
package test

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/manetu/datasentinel/internal/core/accesslog"
	"github.com/manetu/datasentinel/pkg/core"
	"github.com/manetu/datasentinel/pkg/core/config"
	"github.com/manetu/datasentinel/pkg/core/model"
	"github.com/manetu/datasentinel/pkg/core/options"
)

// TestConfigFilename is the name of the test configuration file (without extension).
const TestConfigFilename = "sentinel-config"

// GetTestdataPath returns the absolute path to the testdata directory.
// This uses runtime.Caller to locate the source file and compute the path
// relative to it, ensuring tests work regardless of the working directory.
func GetTestdataPath() string {
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		// Fallback to relative path if runtime.Caller fails
		return "testdata"
	}
	// thisFile is internal/core/test/instance.go
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(filepath.Dir(thisFile))))
	return filepath.Join(projectRoot, "testdata")
}

// SetupTestConfig points configuration loading at the test configuration, which disables
// the deception delay and pins the API key, and reloads it.
func SetupTestConfig() error {
	if err := os.Setenv(config.ConfigPathEnv, GetTestdataPath()); err != nil {
		return err
	}
	if err := os.Setenv(config.ConfigFileNameEnv, TestConfigFilename); err != nil {
		return err
	}
	config.ResetConfig()
	return nil
}

// NewTestSentinel instantiates a sentinel suitable for unit-testing.  Forensic records are
// delivered on the returned channel, which holds up to depth records; the channel is closed
// by the sentinel's Close.
func NewTestSentinel(depth int, opts ...options.EngineOptionsFunc) (core.Sentinel, chan *model.AccessRecord, error) {
	if err := SetupTestConfig(); err != nil {
		return nil, nil, err
	}

	ch := make(chan *model.AccessRecord, depth)
	opts = append([]options.EngineOptionsFunc{options.WithAccessLog(accesslog.NewChannelFactory(ch))}, opts...)
	s, err := core.NewSentinel(opts...)
	if err != nil {
		return nil, nil, err
	}

	return s, ch, nil
}
