//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package decisionpoint provides the network front ends of the sentinel.
//
// # Available Implementations
//
// The following servers are available:
//   - [generic]: JSON/HTTP API for partners, users and administrators
//   - [envoy]: External authorization server for partner traffic proxied by Envoy
//
// # Usage
//
// Create and start a decision point server:
//
//	s, _ := core.NewSentinel()
//	server, _ := generic.CreateServer(s, 5000, apiKey)
//	defer server.Stop(ctx)
package decisionpoint

import "context"

// Server is the interface for decision point servers that can be gracefully stopped.
//
// Implementations must ensure that [Stop] completes any in-flight requests
// before returning.
type Server interface {
	// Stop gracefully shuts down the server, waiting for active requests
	// to complete or until the context is cancelled.
	Stop(context.Context) error
}
