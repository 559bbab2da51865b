//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package accesslog provides the forensic sink for access records.
//
// Every field the sentinel hands to a partner, real or synthetic, and every denial is
// recorded as a [model.AccessRecord].  Records are kept in the in-process journal for
// the administrative views and are also forwarded to a [Stream] so they survive in an
// external log pipeline.
//
// # Built-in Implementations
//
//   - [NewStdoutFactory]: JSON lines on stdout (default)
//   - [NewIoWriterFactory]: JSON lines on any io.Writer
//   - [NewNullFactory]: discards records
//
// # Custom Implementations
//
// Implement [Factory] and [Stream] and pass the factory with [options.WithAccessLog].
package accesslog

import (
	"github.com/manetu/datasentinel/pkg/core/model"
)

// Factory creates [Stream] instances.  Cheap setup belongs in the factory constructor;
// opening connections belongs in NewStream, which runs after configuration is loaded.
type Factory interface {
	NewStream() (Stream, error)
}

// Stream delivers forensic records.  Implementations must be safe for concurrent use:
// the decision pipeline fans out over users and sends from several goroutines.
type Stream interface {
	// Send delivers a record.  The sentinel logs send errors but never retries or fails a
	// decision because of them.
	Send(record *model.AccessRecord) error

	// Close flushes and releases resources.
	Close()
}
