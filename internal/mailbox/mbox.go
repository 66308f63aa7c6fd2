package mailbox

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/emersion/go-mbox"
)

// MboxSession reads messages from a local mbox file, useful for scanning an
// exported mailbox offline. Messages are numbered from 1 in file order.
type MboxSession struct {
	bodies map[uint32][]byte
	order  []uint32
	logger *slog.Logger
}

// OpenMbox loads the mbox file at path into memory.
func OpenMbox(path string, logger *slog.Logger) (*MboxSession, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mbox %s: %w", path, err)
	}
	defer f.Close()

	s := &MboxSession{
		bodies: make(map[uint32][]byte),
		logger: logger,
	}

	r := mbox.NewReader(f)
	var id uint32
	for {
		msg, err := r.NextMessage()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read mbox %s: %w", path, err)
		}
		raw, err := io.ReadAll(msg)
		if err != nil {
			return nil, fmt.Errorf("read mbox message: %w", err)
		}
		id++
		s.bodies[id] = raw
		s.order = append(s.order, id)
	}

	logger.Debug("mbox loaded", "path", path, "messages", len(s.order))
	return s, nil
}

// Search returns the ids of messages containing query, case-insensitively.
func (s *MboxSession) Search(query string) ([]uint32, error) {
	needle := []byte(strings.ToLower(query))
	var ids []uint32
	for _, id := range s.order {
		if bytes.Contains(bytes.ToLower(s.bodies[id]), needle) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Fetch returns one loaded message.
func (s *MboxSession) Fetch(id uint32) ([]byte, error) {
	raw, ok := s.bodies[id]
	if !ok {
		return nil, fmt.Errorf("mbox message %d not found", id)
	}
	return raw, nil
}

// Logout is a no-op; the file was read up front.
func (s *MboxSession) Logout() error {
	return nil
}
