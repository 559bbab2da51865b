//
//  Copyright © Manetu Inc. All rights reserved.
//

package accesslog

import (
	"github.com/manetu/datasentinel/pkg/core/model"
)

// NullFactory creates streams that drop every record.
type NullFactory struct{}

// NullStream drops records on the floor.
type NullStream struct{}

// NewNullFactory returns a [Factory] for [NullStream].
func NewNullFactory() Factory {
	return &NullFactory{}
}

// NewStream satisfies [Factory].
func (f *NullFactory) NewStream() (Stream, error) {
	return &NullStream{}, nil
}

// Send discards the record.
func (s *NullStream) Send(*model.AccessRecord) error {
	return nil
}

// Close is a no-op.
func (s *NullStream) Close() {}
