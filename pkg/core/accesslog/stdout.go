//
//  Copyright © Manetu Inc. All rights reserved.
//

package accesslog

import (
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/manetu/datasentinel/pkg/core/model"
)

// Options configures writer-backed streams.
type Options struct {
	// PrettyPrint switches from one record per line to indented JSON.
	PrettyPrint bool
}

// IoWriterFactory creates [IoWriterStream] instances.
type IoWriterFactory struct {
	writer  io.Writer
	options Options
}

// IoWriterStream writes each record as JSON followed by a newline.  Writes are
// serialized so concurrent records never interleave.
type IoWriterStream struct {
	mu      sync.Mutex
	writer  io.Writer
	options Options
}

// NewStdoutFactory writes records to stdout.
func NewStdoutFactory() Factory {
	return NewIoWriterFactory(os.Stdout)
}

// NewIoWriterFactory writes records to w.
func NewIoWriterFactory(w io.Writer) Factory {
	return NewIoWriterFactoryWithOptions(w, Options{})
}

// NewIoWriterFactoryWithOptions writes records to w with the given formatting.
func NewIoWriterFactoryWithOptions(w io.Writer, opts Options) Factory {
	return &IoWriterFactory{writer: w, options: opts}
}

// NewStream satisfies [Factory].
func (f *IoWriterFactory) NewStream() (Stream, error) {
	return &IoWriterStream{writer: f.writer, options: f.options}, nil
}

// Send encodes and writes the record.  Write errors are ignored; the sentinel must not fail
// a decision because its log sink is unavailable.
func (s *IoWriterStream) Send(record *model.AccessRecord) error {
	var (
		out []byte
		err error
	)
	if s.options.PrettyPrint {
		out, err = json.MarshalIndent(record, "", "  ")
	} else {
		out, err = json.Marshal(record)
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.writer.Write(append(out, '\n'))
	return nil
}

// Close does not close the underlying writer.
func (s *IoWriterStream) Close() {}
