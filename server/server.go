package server

import (
	"fmt"
	"log"
	"net"
	"os"
	"sync"

	"github.com/nixxel-company-limited/escpos-bt-server/job"
	"github.com/sourcegraph/conc"
)

// Printer delivers a rendered job to the device
type Printer interface {
	Print(data []byte) error
}

// AckMode decides when a submitted job is acknowledged
type AckMode int

const (
	// AckOnReceipt answers 200 as soon as the body is read; print failures
	// are only logged
	AckOnReceipt AckMode = iota
	// AckOnCompletion answers after printing and reports failures as 500
	AckOnCompletion
)

// ParseAckMode accepts "receipt" or "completion"
func ParseAckMode(s string) (AckMode, error) {
	switch s {
	case "", "receipt":
		return AckOnReceipt, nil
	case "completion":
		return AckOnCompletion, nil
	default:
		return AckOnReceipt, fmt.Errorf("unknown ack mode %q", s)
	}
}

func (m AckMode) String() string {
	if m == AckOnCompletion {
		return "completion"
	}
	return "receipt"
}

// DefaultFeedLines is the paper fed before every cut
const DefaultFeedLines = 3

// Server accepts print jobs on a loopback TCP port and from in-process
// events and forwards them to a Printer
type Server struct {
	printer    Printer
	translator *job.Translator
	listener   net.Listener
	address    string
	ackMode    AckMode
	feedLines  byte
	mu         sync.Mutex
	running    bool
	wg         conc.WaitGroup
	logger     *log.Logger
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *log.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithAckMode sets when jobs are acknowledged
func WithAckMode(mode AckMode) Option {
	return func(s *Server) {
		s.ackMode = mode
	}
}

// WithFeedLines sets how many lines are fed before the cut
func WithFeedLines(n byte) Option {
	return func(s *Server) {
		s.feedLines = n
	}
}

// WithTranslator replaces the job translator
func WithTranslator(t *job.Translator) Option {
	return func(s *Server) {
		s.translator = t
	}
}

// New creates a new server instance
func New(printer Printer, address string, opts ...Option) *Server {
	s := &Server{
		printer:   printer,
		address:   address,
		feedLines: DefaultFeedLines,
		logger:    log.New(os.Stdout, "[SERVER] ", log.LstdFlags|log.Lmsgprefix),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.translator == nil {
		s.translator = job.NewTranslator()
	}
	return s
}

// Start starts the server and blocks until Stop is called
func (s *Server) Start() error {
	s.logger.Printf("Starting server on %s (blocking mode)", s.address)
	if err := s.listen(); err != nil {
		return err
	}

	s.logger.Println("Ready to accept connections")
	s.acceptConnections()
	return nil
}

// StartAsync starts the server in a goroutine (non-blocking)
func (s *Server) StartAsync() error {
	s.logger.Printf("Starting server on %s (async mode)", s.address)
	if err := s.listen(); err != nil {
		return err
	}

	s.wg.Go(s.acceptConnections)
	s.logger.Println("Server started in background, ready to accept connections")
	return nil
}

func (s *Server) listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Println("Error: Server already running")
		return fmt.Errorf("server already running")
	}

	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		s.logger.Printf("Error: Failed to start server: %v", err)
		return fmt.Errorf("failed to start server: %w", err)
	}

	s.listener = listener
	s.running = true
	s.logger.Printf("Server listening on %s", listener.Addr())
	return nil
}

// acceptConnections hands every client connection to its own worker
func (s *Server) acceptConnections() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			running := s.running
			s.mu.Unlock()

			if !running {
				s.logger.Println("Server shutting down, stopping accept loop")
				return
			}
			s.logger.Printf("Error accepting connection: %v", err)
			continue
		}

		s.logger.Printf("Client connected from %s", conn.RemoteAddr())
		s.wg.Go(func() {
			s.handleConnection(conn)
		})
	}
}

// Stop closes the listener and waits for in-flight jobs, including
// submitted events
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.logger.Println("Stop called but server is not running")
		s.wg.Wait()
		return nil
	}

	s.logger.Println("Stopping server...")
	s.running = false
	listener := s.listener
	s.mu.Unlock()

	if listener != nil {
		listener.Close()
	}

	s.logger.Println("Waiting for active jobs to finish...")
	s.wg.Wait()
	s.logger.Println("Server stopped successfully")
	return nil
}

// IsRunning returns whether the server is running
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Address returns the configured listen address
func (s *Server) Address() string {
	return s.address
}

// ListenAddr returns the bound address once started, which differs from
// Address when listening on port 0
func (s *Server) ListenAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}
