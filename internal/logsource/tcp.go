package logsource

import (
	"github.com/tinytelemetry/logsift/internal/model"
	"github.com/tinytelemetry/logsift/internal/tcpserver"
)

// TCPSource wraps a tcpserver.Server as a LogSource.
type TCPSource struct {
	server *tcpserver.Server
}

// NewTCPSource creates a TCPSource from an already-started TCP server.
func NewTCPSource(server *tcpserver.Server) *TCPSource {
	return &TCPSource{server: server}
}

func (t *TCPSource) Batches() <-chan model.LogBatch { return t.server.Batches() }
func (t *TCPSource) Stop()                          { _ = t.server.Stop() }
func (t *TCPSource) Name() string                   { return "tcp" }
