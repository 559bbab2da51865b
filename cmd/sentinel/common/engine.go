//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package common holds helpers shared by the sentinel subcommands.
package common

import (
	"io"
	"os"

	"github.com/urfave/cli/v3"

	pkgcommon "github.com/manetu/datasentinel/pkg/common"
	"github.com/manetu/datasentinel/pkg/core"
	"github.com/manetu/datasentinel/pkg/core/accesslog"
	"github.com/manetu/datasentinel/pkg/core/config"
	"github.com/manetu/datasentinel/pkg/core/options"
)

// NewCliSentinel creates a sentinel for a CLI command.  Forensic records go to
// accessLogWriter; the --users flag, when set, overrides the configured users file.
func NewCliSentinel(cmd *cli.Command, accessLogWriter io.Writer, opts ...options.EngineOptionsFunc) (core.Sentinel, error) {
	if err := config.Load(); err != nil {
		return nil, err
	}
	if users := cmd.String("users"); users != "" {
		config.VConfig.Set(config.UsersFile, users)
	}

	opts = append([]options.EngineOptionsFunc{
		options.WithAccessLog(accesslog.NewIoWriterFactoryWithOptions(accessLogWriter, accesslog.Options{
			PrettyPrint: config.VConfig.GetBool(config.AccessLogPretty),
		})),
	}, opts...)
	return core.NewSentinel(opts...)
}

// ReadInput returns the contents of path, or of stdin when path is empty or "-".
func ReadInput(path string) ([]byte, error) {
	if path == "-" || path == "" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path) // #nosec G304 -- CLI tool intentionally reads user-provided paths
}

// Stdout returns the writer commands print results to.
func Stdout(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

// PrintJSON writes v as indented JSON.
func PrintJSON(w io.Writer, v interface{}) {
	pkgcommon.PrettyPrint(w, v)
}
