package scanner

import (
	"fmt"
	"log/slog"

	"github.com/tracyhatemice/gounsub/internal/extractor"
	"github.com/tracyhatemice/gounsub/internal/mailbox"
)

// Scanner finds unsubscribe links across every matching message in a
// mailbox.
type Scanner struct {
	session     mailbox.Session
	query       string
	headerLinks bool
	logger      *slog.Logger
}

// New creates a Scanner over an established mailbox session. When
// headerLinks is set, List-Unsubscribe header targets are collected in
// addition to HTML anchors.
func New(session mailbox.Session, query string, headerLinks bool, logger *slog.Logger) *Scanner {
	return &Scanner{
		session:     session,
		query:       query,
		headerLinks: headerLinks,
		logger:      logger,
	}
}

// FindUnsubscribeLinks searches the mailbox, extracts unsubscribe links
// from each matching message and returns them in message order. The
// session is logged out exactly once before returning, whatever the
// outcome. A fetch failure skips that message only; an empty result is not
// an error.
func (s *Scanner) FindUnsubscribeLinks() ([]string, error) {
	defer func() {
		if err := s.session.Logout(); err != nil {
			s.logger.Warn("logout failed", "error", err)
		}
	}()

	ids, err := s.session.Search(s.query)
	if err != nil {
		return nil, fmt.Errorf("mailbox search: %w", err)
	}

	s.logger.Info("search matched messages", "count", len(ids))

	var links []string
	for _, id := range ids {
		raw, err := s.session.Fetch(id)
		if err != nil {
			s.logger.Warn("fetch failed, skipping message", "msg_id", id, "error", err)
			continue
		}

		found := extractor.Extract(raw)
		if s.headerLinks {
			found = append(found, extractor.ListUnsubscribe(raw)...)
		}
		if len(found) > 0 {
			s.logger.Debug("extracted links", "msg_id", id, "count", len(found))
		}
		links = append(links, found...)
	}

	return links, nil
}
