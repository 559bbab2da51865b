//
//  Copyright © Manetu Inc. All rights reserved.
//

// Package accesslog holds in-process access-log streams used by tests and embedded callers.
package accesslog

import (
	"github.com/manetu/datasentinel/pkg/core/accesslog"
	"github.com/manetu/datasentinel/pkg/core/model"
)

// ChannelFactory creates [ChannelStream] instances sharing one channel.
type ChannelFactory struct {
	ch chan *model.AccessRecord
}

// ChannelStream publishes forensic records on a channel.
type ChannelStream struct {
	ch chan *model.AccessRecord
}

// NewChannelFactory returns a factory whose streams publish to ch.
func NewChannelFactory(ch chan *model.AccessRecord) accesslog.Factory {
	return &ChannelFactory{ch: ch}
}

// NewStream satisfies accesslog.Factory.
func (f *ChannelFactory) NewStream() (accesslog.Stream, error) {
	return &ChannelStream{ch: f.ch}, nil
}

// Send blocks until the record is accepted by the channel.
func (s *ChannelStream) Send(m *model.AccessRecord) error {
	s.ch <- m
	return nil
}

// Close closes the channel.
func (s *ChannelStream) Close() {
	if s.ch != nil {
		close(s.ch)
	}
}
