package mailbox

import (
	"bytes"
	"fmt"
	"log/slog"
	"net"
	"strings"

	pop3client "github.com/knadh/go-pop3"
)

// POP3Session is an authenticated POP3 connection.
//
// POP3 has no server-side search, so Search downloads every message and
// filters client-side; bodies are cached so Fetch does not download twice.
type POP3Session struct {
	conn   *pop3client.Conn
	bodies map[uint32][]byte
	logger *slog.Logger
}

// DialPOP3 connects and authenticates. The caller owns Logout on the
// returned session.
func DialPOP3(host string, port int, username, password string, useTLS bool, logger *slog.Logger) (*POP3Session, error) {
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))

	client := pop3client.New(pop3client.Opt{
		Host:       host,
		Port:       port,
		TLSEnabled: useTLS,
	})
	conn, err := client.NewConn()
	if err != nil {
		return nil, fmt.Errorf("pop3 connect %s: %w", addr, err)
	}

	if err := conn.Auth(username, password); err != nil {
		conn.Quit()
		return nil, fmt.Errorf("pop3 auth %s: %w", username, err)
	}

	logger.Debug("pop3 session established", "host", host)
	return &POP3Session{
		conn:   conn,
		bodies: make(map[uint32][]byte),
		logger: logger,
	}, nil
}

// Search lists every message and keeps the ids whose content contains
// query, case-insensitively. Retrieve failures skip that message.
func (s *POP3Session) Search(query string) ([]uint32, error) {
	msgs, err := s.conn.List(0)
	if err != nil {
		return nil, fmt.Errorf("pop3 list: %w", err)
	}

	needle := []byte(strings.ToLower(query))
	var ids []uint32
	for _, msg := range msgs {
		rawBuf, err := s.conn.RetrRaw(msg.ID)
		if err != nil {
			s.logger.Warn("pop3 retrieve failed, skipping message", "msg_id", msg.ID, "error", err)
			continue
		}
		raw := rawBuf.Bytes()
		if !bytes.Contains(bytes.ToLower(raw), needle) {
			continue
		}
		id := uint32(msg.ID)
		s.bodies[id] = raw
		ids = append(ids, id)
	}

	s.logger.Debug("pop3 search", "query", query, "matches", len(ids))
	return ids, nil
}

// Fetch returns a message cached during Search, downloading it again only
// if it was never listed.
func (s *POP3Session) Fetch(id uint32) ([]byte, error) {
	if raw, ok := s.bodies[id]; ok {
		return raw, nil
	}

	rawBuf, err := s.conn.RetrRaw(int(id))
	if err != nil {
		return nil, fmt.Errorf("pop3 retrieve %d: %w", id, err)
	}
	return rawBuf.Bytes(), nil
}

// Logout closes the POP3 connection.
func (s *POP3Session) Logout() error {
	if err := s.conn.Quit(); err != nil {
		return fmt.Errorf("pop3 quit: %w", err)
	}
	return nil
}
