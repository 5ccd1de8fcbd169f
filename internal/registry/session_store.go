package registry

import (
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/mowthos/mowthos-gateway/internal/cloud"
	"github.com/mowthos/mowthos-gateway/internal/models"
)

// AccountSession bundles everything the gateway holds for one authenticated
// account: the credential retained for recovery, the established cloud
// session, and the transport bound to it. Entries are immutable; mutation is
// a whole-entry replacement so observers never see a half-updated session.
type AccountSession struct {
	AccountID  string
	Token      string
	Credential models.Credential
	LoginInfo  *models.LoginInfo
	Session    *models.CloudSession
	Transport  cloud.Transport
	CreatedAt  time.Time
}

// SessionStore owns the per-account session state, keyed by account id with a
// secondary index by session token.
type SessionStore struct {
	byAccount cmap.ConcurrentMap[string, *AccountSession]
	byToken   cmap.ConcurrentMap[string, string]
}

// NewSessionStore creates an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		byAccount: cmap.New[*AccountSession](),
		byToken:   cmap.New[string](),
	}
}

// Put stores the entry, replacing any previous session for the account.
func (s *SessionStore) Put(entry *AccountSession) {
	if previous, ok := s.byAccount.Get(entry.AccountID); ok {
		s.byToken.Remove(previous.Token)
	}
	s.byAccount.Set(entry.AccountID, entry)
	s.byToken.Set(entry.Token, entry.AccountID)
}

// Get returns the session entry for an account.
func (s *SessionStore) Get(accountID string) (*AccountSession, bool) {
	return s.byAccount.Get(accountID)
}

// GetByToken resolves a session token to its entry.
func (s *SessionStore) GetByToken(token string) (*AccountSession, bool) {
	accountID, ok := s.byToken.Get(token)
	if !ok {
		return nil, false
	}
	return s.byAccount.Get(accountID)
}

// Credential returns the stored credential for an account.
func (s *SessionStore) Credential(accountID string) (models.Credential, bool) {
	entry, ok := s.byAccount.Get(accountID)
	if !ok {
		return models.Credential{}, false
	}
	return entry.Credential, true
}

// ReplaceSession swaps in a freshly established cloud session and transport
// for the account, keeping the credential, token and login info. It returns
// false if the account has no session entry.
func (s *SessionStore) ReplaceSession(accountID string, session *models.CloudSession, transport cloud.Transport) bool {
	previous, ok := s.byAccount.Get(accountID)
	if !ok {
		return false
	}
	s.byAccount.Set(accountID, &AccountSession{
		AccountID:  previous.AccountID,
		Token:      previous.Token,
		Credential: previous.Credential,
		LoginInfo:  previous.LoginInfo,
		Session:    session,
		Transport:  transport,
		CreatedAt:  previous.CreatedAt,
	})
	return true
}

// Remove drops the session for an account, disconnecting its transport.
func (s *SessionStore) Remove(accountID string) bool {
	entry, ok := s.byAccount.Get(accountID)
	if !ok {
		return false
	}
	s.byAccount.Remove(accountID)
	s.byToken.Remove(entry.Token)
	if entry.Transport != nil {
		entry.Transport.Disconnect(250)
	}
	return true
}
