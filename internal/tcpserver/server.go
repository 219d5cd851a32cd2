// Package tcpserver accepts raw log blobs over TCP. Each connection carries one
// blob, terminated by the client closing its write side.
package tcpserver

import (
	"context"
	"io"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/tinytelemetry/logsift/internal/model"
)

const (
	// DefaultBatchChannelSize is the default buffer size for the incoming batch channel.
	DefaultBatchChannelSize = 256

	// DefaultMaxBatchBytes is the default maximum size (in bytes) of one blob.
	DefaultMaxBatchBytes = 16 * 1024 * 1024 // 16MB

	// DefaultReadTimeout bounds how long a connection may take to deliver its blob.
	DefaultReadTimeout = 30 * time.Second
)

// ServerConfig holds tunable parameters for the TCP server.
type ServerConfig struct {
	BatchChannelSize int
	MaxBatchBytes    int
	ReadTimeout      time.Duration
}

// Server listens for raw log text over TCP and emits one LogBatch per connection.
type Server struct {
	listener      net.Listener
	addr          string
	batchChan     chan model.LogBatch
	maxBatchBytes int
	readTimeout   time.Duration
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// NewServer creates a new TCP server. Default addr is "127.0.0.1:4000".
func NewServer(addr string, conf ...ServerConfig) *Server {
	if addr == "" {
		addr = "127.0.0.1:4000"
	}
	batchChannelSize := DefaultBatchChannelSize
	maxBatchBytes := DefaultMaxBatchBytes
	readTimeout := DefaultReadTimeout
	if len(conf) > 0 {
		if conf[0].BatchChannelSize > 0 {
			batchChannelSize = conf[0].BatchChannelSize
		}
		if conf[0].MaxBatchBytes > 0 {
			maxBatchBytes = conf[0].MaxBatchBytes
		}
		if conf[0].ReadTimeout > 0 {
			readTimeout = conf[0].ReadTimeout
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:          addr,
		batchChan:     make(chan model.LogBatch, batchChannelSize),
		maxBatchBytes: maxBatchBytes,
		readTimeout:   readTimeout,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Start begins accepting TCP connections.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
					continue
				}
			}
			s.wg.Add(1)
			go s.handleConnection(conn)
		}
	}()

	return nil
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	if err := conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
		log.Printf("tcpserver: set deadline for %s: %v", conn.RemoteAddr(), err)
		return
	}

	data, err := io.ReadAll(io.LimitReader(conn, int64(s.maxBatchBytes)+1))
	if err != nil {
		log.Printf("tcpserver: read error from %s: %v", conn.RemoteAddr(), err)
		return
	}
	if len(data) > s.maxBatchBytes {
		log.Printf("tcpserver: dropped connection %s due to blob exceeding max size (%d bytes)", conn.RemoteAddr(), s.maxBatchBytes)
		return
	}

	text := string(data)
	if strings.TrimSpace(text) == "" {
		return
	}

	select {
	case s.batchChan <- model.LogBatch{Source: sourceName(conn.RemoteAddr()), Text: text}:
	case <-s.ctx.Done():
	}
}

func sourceName(addr net.Addr) string {
	if addr == nil {
		return "tcp"
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return "tcp"
	}
	return "tcp:" + host
}

// Stop gracefully shuts down the TCP server.
func (s *Server) Stop() error {
	s.cancel()
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	close(s.batchChan)
	return nil
}

// Batches returns the channel of received log blobs.
func (s *Server) Batches() <-chan model.LogBatch {
	return s.batchChan
}

// Addr returns the active listen address.
// Before Start, it returns the configured address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}
