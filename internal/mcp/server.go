package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// maxLineBytes bounds a single newline-delimited request.
const maxLineBytes = 4 << 20

// Server reads newline-delimited JSON-RPC requests from the local peer and
// writes responses back, one object per line. Requests are handled
// concurrently; each in-flight call is independent, and the write side is
// serialized so responses never interleave mid-line.
type Server struct {
	in         io.Reader
	out        io.Writer
	dispatcher *Dispatcher
	logger     *logrus.Logger

	writeMu sync.Mutex
	wg      sync.WaitGroup
}

// NewServer creates a server over arbitrary reader/writer pairs, which tests
// use with pipes.
func NewServer(in io.Reader, out io.Writer, dispatcher *Dispatcher, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}

	return &Server{
		in:         in,
		out:        out,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// NewStdioServer creates a server on the process's stdin/stdout, the normal
// deployment where the bridge is spawned by the hosting session.
func NewStdioServer(dispatcher *Dispatcher, logger *logrus.Logger) *Server {
	return NewServer(os.Stdin, os.Stdout, dispatcher, logger)
}

// Serve runs the read loop until the input side closes or ctx is cancelled.
// Malformed lines are logged and dropped; a single bad line never tears the
// channel down.
func (s *Server) Serve(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil || req.Method == "" {
			s.logger.Warnf("Dropping malformed request line: %v", err)
			continue
		}

		s.wg.Add(1)
		go func(req Request) {
			defer s.wg.Done()

			resp := s.dispatcher.Handle(ctx, &req)
			if resp == nil || req.IsNotification() {
				return
			}
			s.write(resp)
		}(req)
	}

	s.wg.Wait()
	return scanner.Err()
}

func (s *Server) write(resp *Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Errorf("Failed to encode response: %v", err)
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.out.Write(append(data, '\n')); err != nil {
		s.logger.Errorf("Failed to write response: %v", err)
	}
}
