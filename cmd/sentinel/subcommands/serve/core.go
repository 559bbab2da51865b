//
//  Copyright © Manetu Inc. All rights reserved.
//

package serve

import (
	"context"
	"os"
	"os/signal"

	"github.com/urfave/cli/v3"

	"github.com/manetu/datasentinel/cmd/sentinel/common"
	"github.com/manetu/datasentinel/internal/logging"
	"github.com/manetu/datasentinel/pkg/core/config"
	"github.com/manetu/datasentinel/pkg/decisionpoint"
	"github.com/manetu/datasentinel/pkg/decisionpoint/envoy"
	"github.com/manetu/datasentinel/pkg/decisionpoint/generic"
)

var logger = logging.GetLogger("sentinel")

const agent string = "serve"

// Execute runs the serve command, starting a decision point server based on the configured protocol.
// It supports both "generic" and "envoy" protocols and gracefully shuts down on interrupt signals.
func Execute(ctx context.Context, cmd *cli.Command) error {
	s, err := common.NewCliSentinel(cmd, os.Stdout)
	if err != nil {
		return err
	}
	defer s.Close()

	port := config.VConfig.GetInt(config.ServerPort)
	if cmd.IsSet("port") {
		port = cmd.Int("port")
	}
	apiKey := config.VConfig.GetString(config.APIKey)

	var server decisionpoint.Server
	switch cmd.String("protocol") {
	case "generic":
		server, err = generic.CreateServer(s, port, apiKey)
	case "envoy":
		server, err = envoy.CreateServer(s, port, apiKey)
	}
	if err != nil {
		return err
	}
	logger.Infof(agent, "start", "serving %s protocol on port %d", cmd.String("protocol"), port)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	logger.Info(agent, "shutdown", "Shutting down server...")

	err = server.Stop(ctx)
	if err != nil {
		return err
	}

	logger.Info(agent, "shutdown", "Server exited gracefully.")
	return nil
}
