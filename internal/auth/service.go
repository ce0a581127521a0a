package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/metaserver/metaserver/internal/store"
	"go.uber.org/zap"
)

// DuplicateLoginPolicy controls what happens when a user already has a
// live session at login time. spec.md §9 names two candidate policies
// found in the source; this spec commits to "kick old" (§4.2).
type DuplicateLoginPolicy int

const (
	PolicyKickOld DuplicateLoginPolicy = iota
	PolicyRejectNew
)

// LoginResult is returned by Service.Login.
type LoginResult struct {
	UserID       int64
	OrderID      int64
	Token        Token
	KickedConnID uint64 // non-zero if an old session was evicted
	HadOldSession bool
}

// Error codes surfaced to the client. The failure response for a missing
// user and a wrong password is identical by design (spec.md §4.2: "do
// not disclose existence").
var (
	ErrBadUserOrPassword = fmt.Errorf("auth: bad login name or password")
	ErrBanned            = fmt.Errorf("auth: account is banned")
	ErrAlreadyLoggedIn   = fmt.Errorf("auth: account already logged in")
)

// Service wires together password verification, token minting, and the
// session registry into the login/logout/change-password flows of
// spec.md §4.2.
type Service struct {
	Users    store.UserStore
	Bans     store.BanList
	Audit    store.AuditLog
	Tokens   *TokenRegistry
	Sessions *SessionRegistry
	Policy   DuplicateLoginPolicy
	Log      *zap.Logger
}

// Login verifies credentials and, on success, mints a token and binds
// connID to the resulting user id. clientIP is the connection's source
// address in 32-bit host order (spec.md §6).
func (s *Service) Login(ctx context.Context, connID uint64, login, password string, clientIP uint32, now time.Time) (LoginResult, error) {
	u, err := s.Users.GetByName(ctx, strings.ToLower(login))
	if err != nil {
		if err == store.ErrNotFound {
			return LoginResult{}, ErrBadUserOrPassword
		}
		s.Log.Error("user store lookup failed", zap.Error(err))
		return LoginResult{}, fmt.Errorf("auth: internal error: %w", err)
	}

	if u.Banned(now) {
		return LoginResult{}, ErrBanned
	}

	banned, err := s.Bans.IsLoginBanned(ctx, u.Login)
	if err != nil {
		s.Log.Error("ban list lookup failed", zap.Error(err))
		return LoginResult{}, fmt.Errorf("auth: internal error: %w", err)
	}
	if banned {
		return LoginResult{}, ErrBanned
	}

	if !VerifyPassword(s.Log, u.Scheme, u.PasswordHash, u.Salt, password) {
		return LoginResult{}, ErrBadUserOrPassword
	}

	result := LoginResult{UserID: u.ID, OrderID: u.OrderID}

	existing := s.Sessions.ConnectionsForUser(u.ID)
	if len(existing) > 0 {
		result.HadOldSession = true
		switch s.Policy {
		case PolicyRejectNew:
			return LoginResult{}, ErrAlreadyLoggedIn
		case PolicyKickOld:
			for _, old := range existing {
				s.Sessions.Unbind(old)
				result.KickedConnID = old
			}
		}
	}

	tok, err := s.Tokens.Issue(u.ID, clientIP, now)
	if err != nil {
		return LoginResult{}, fmt.Errorf("auth: mint token: %w", err)
	}
	result.Token = tok

	s.Sessions.Bind(connID, u.ID)

	u.LastLoginAt = now
	u.LastLoginIP = clientIP
	if err := s.Users.Update(ctx, u); err != nil {
		s.Log.Error("user store update failed after login", zap.Error(err))
	}

	if s.Audit != nil {
		_ = s.Audit.Record(ctx, store.AuditEntry{At: now, Actor: u.ID, Action: "login", Detail: fmt.Sprintf("ip=%d", clientIP)})
	}

	return result, nil
}

// Logout invalidates the token and unbinds the connection.
func (s *Service) Logout(connID uint64, tok Token) {
	s.Tokens.Invalidate(tok)
	s.Sessions.Unbind(connID)
}

// Disconnect is called by the transport layer on any connection close; it
// unbinds the connection without touching the token (the token remains
// valid until it naturally expires or the user logs out explicitly —
// spec.md only destroys tokens on logout, password change, or
// expiration, never on a bare disconnect).
func (s *Service) Disconnect(connID uint64) {
	s.Sessions.Unbind(connID)
}

// ChangePassword rehashes under DefaultScheme with a fresh salt and
// revokes every token for the user (spec.md §4.2). It returns the
// connection ids that were bound to the user so the transport layer can
// close them.
func (s *Service) ChangePassword(ctx context.Context, userID int64, newPassword string, now time.Time) ([]uint64, error) {
	u, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	hash, salt, err := HashPassword(DefaultScheme, newPassword)
	if err != nil {
		return nil, err
	}
	u.PasswordHash = hash
	u.Salt = salt
	u.Scheme = DefaultScheme
	if err := s.Users.Update(ctx, u); err != nil {
		return nil, err
	}

	s.Tokens.InvalidateAllForUser(userID)
	conns := s.Sessions.UnbindAllForUser(userID)

	if s.Audit != nil {
		_ = s.Audit.Record(ctx, store.AuditEntry{At: now, Actor: userID, Action: "password_change"})
	}
	return conns, nil
}

// ValidateToken is validate(token, client_ip, now) from spec.md §8.
func (s *Service) ValidateToken(tok Token, clientIP uint32, now time.Time) (int64, error) {
	return s.Tokens.Validate(tok, clientIP, now)
}
