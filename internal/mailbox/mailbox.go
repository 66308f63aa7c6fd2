package mailbox

// Session is an authenticated connection to a mail store.
type Session interface {
	// Search returns the ids of messages whose content matches the query,
	// in the order the store reports them.
	Search(query string) ([]uint32, error)

	// Fetch returns the raw RFC 5322 bytes of one message.
	Fetch(id uint32) ([]byte, error)

	// Logout releases the connection. It must be called exactly once per
	// session.
	Logout() error
}
