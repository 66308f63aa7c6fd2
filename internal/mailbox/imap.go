package mailbox

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// IMAPSession is a logged-in IMAP connection with a selected folder.
type IMAPSession struct {
	client *imapclient.Client
	logger *slog.Logger
}

// DialIMAP connects, authenticates and selects folder. Any failure here
// aborts the run; the caller owns Logout on the returned session.
func DialIMAP(host string, port int, username, password string, useTLS bool, folder string, logger *slog.Logger) (*IMAPSession, error) {
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))

	var client *imapclient.Client
	var err error

	if useTLS {
		client, err = imapclient.DialTLS(addr, &imapclient.Options{
			TLSConfig: &tls.Config{ServerName: host},
		})
	} else {
		client, err = imapclient.DialInsecure(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("imap connect %s: %w", addr, err)
	}

	if err := client.Login(username, password).Wait(); err != nil {
		client.Close()
		return nil, fmt.Errorf("imap login %s: %w", username, err)
	}

	if _, err := client.Select(folder, nil).Wait(); err != nil {
		client.Close()
		return nil, fmt.Errorf("imap select %s: %w", folder, err)
	}

	logger.Debug("imap session established", "host", host, "folder", folder)
	return &IMAPSession{client: client, logger: logger}, nil
}

// Search returns the UIDs of messages whose body contains query.
func (s *IMAPSession) Search(query string) ([]uint32, error) {
	criteria := &imap.SearchCriteria{
		Body: []string{query},
	}
	data, err := s.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("imap search: %w", err)
	}

	uids := data.AllUIDs()
	ids := make([]uint32, len(uids))
	for i, uid := range uids {
		ids[i] = uint32(uid)
	}

	s.logger.Debug("imap search", "query", query, "matches", len(ids))
	return ids, nil
}

// Fetch downloads one message by UID without marking it seen.
func (s *IMAPSession) Fetch(id uint32) ([]byte, error) {
	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOptions := &imap.FetchOptions{
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	buffers, err := s.client.Fetch(imap.UIDSetNum(imap.UID(id)), fetchOptions).Collect()
	if err != nil {
		return nil, fmt.Errorf("imap fetch uid %d: %w", id, err)
	}
	if len(buffers) == 0 {
		return nil, fmt.Errorf("imap fetch uid %d: no data returned", id)
	}

	content := buffers[0].FindBodySection(bodySection)
	if len(content) == 0 {
		return nil, fmt.Errorf("imap fetch uid %d: empty body", id)
	}
	return content, nil
}

// Logout ends the IMAP session and closes the connection.
func (s *IMAPSession) Logout() error {
	defer s.client.Close()
	if err := s.client.Logout().Wait(); err != nil {
		return fmt.Errorf("imap logout: %w", err)
	}
	return nil
}
