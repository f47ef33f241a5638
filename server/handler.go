package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nixxel-company-limited/escpos-bt-server/escpos"
)

const (
	readTimeout  = 30 * time.Second
	writeTimeout = 10 * time.Second

	maxHeaderLines = 100
	maxBodySize    = 8 << 20
)

type response struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// handleConnection reads one job from conn, acknowledges it and prints it
func (s *Server) handleConnection(conn net.Conn) {
	jobID := uuid.NewString()
	clientAddr := conn.RemoteAddr().String()
	closed := false
	closeConn := func() {
		if !closed {
			closed = true
			conn.Close()
			s.logger.Printf("[%s] Client disconnected: %s", jobID, clientAddr)
		}
	}
	defer closeConn()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Printf("[%s] Error handling client: %v", jobID, r)
			if !closed {
				writeResponse(conn, 500, response{Status: "error", Message: fmt.Sprint(r)})
			}
		}
	}()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	body, err := readRequest(bufio.NewReader(conn))
	if err != nil {
		s.logger.Printf("[%s] Error reading request from %s: %v", jobID, clientAddr, err)
		writeResponse(conn, 500, response{Status: "error", Message: err.Error()})
		return
	}
	s.logger.Printf("[%s] Received %d bytes from %s", jobID, len(body), clientAddr)

	if s.ackMode == AckOnReceipt {
		writeResponse(conn, 200, response{Status: "success"})
		closeConn()
		if err := s.printJob(jobID, body); err != nil {
			s.logger.Printf("[%s] Print error: %v", jobID, err)
		}
		return
	}

	if err := s.printJob(jobID, body); err != nil {
		s.logger.Printf("[%s] Print error: %v", jobID, err)
		writeResponse(conn, 500, response{Status: "error", Message: err.Error()})
		return
	}
	writeResponse(conn, 200, response{Status: "success"})
}

// printJob renders body and hands it to the printer. Empty bodies are
// accepted and print nothing.
func (s *Server) printJob(jobID string, body []byte) error {
	if len(body) == 0 {
		s.logger.Printf("[%s] Empty job, nothing to print", jobID)
		return nil
	}

	enc := escpos.NewEncoder().Init()
	s.translator.Translate(body, enc)
	return s.finish(jobID, enc)
}

// finish appends the feed and cut and prints the job
func (s *Server) finish(jobID string, enc *escpos.Encoder) error {
	data := enc.Feed(s.feedLines).Cut().Build()
	if err := s.printer.Print(data); err != nil {
		return err
	}
	s.logger.Printf("[%s] Printed %d bytes", jobID, len(data))
	return nil
}

// readRequest consumes header lines up to the blank line and returns the
// body announced by Content-Length. A peer that closes early yields the
// bytes received so far.
func readRequest(r *bufio.Reader) ([]byte, error) {
	contentLength := 0

	for i := 0; ; i++ {
		if i >= maxHeaderLines {
			return nil, errors.New("too many header lines")
		}
		line, err := r.ReadString('\n')
		eof := errors.Is(err, io.EOF)
		if err != nil && !eof {
			return nil, fmt.Errorf("read header: %w", err)
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}

		if name, value, ok := strings.Cut(line, ":"); ok && strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil || n < 0 {
				return nil, fmt.Errorf("invalid Content-Length %q", strings.TrimSpace(value))
			}
			if n > maxBodySize {
				return nil, fmt.Errorf("body of %d bytes exceeds limit of %d", n, maxBodySize)
			}
			contentLength = n
		}

		if eof {
			break
		}
	}

	body := make([]byte, contentLength)
	n, err := io.ReadFull(r, body)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body[:n], nil
}

func writeResponse(conn net.Conn, code int, resp response) {
	payload, err := json.Marshal(resp)
	if err != nil {
		payload = []byte(`{"status":"error"}`)
	}

	status := "200 OK"
	if code != 200 {
		status = "500 Internal Server Error"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "HTTP/1.1 %s\r\n", status)
	b.WriteString("Content-Type: application/json\r\n")
	fmt.Fprintf(&b, "Content-Length: %d\r\n", len(payload))
	b.WriteString("Connection: close\r\n\r\n")
	b.Write(payload)

	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	io.WriteString(conn, b.String())
}
