package auth

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"sync"
	"time"
)

// TokenLifetime is the default bearer-token lifetime (spec.md §3).
const TokenLifetime = 2 * 24 * time.Hour

// TokenSize is the wire size of a token: host_ip(4) + user_id(4) +
// expiration(4) + random(20) (spec.md §6).
const TokenSize = 32

// Token is the 32-byte opaque bearer credential, bound to one user and
// one client IP for a bounded lifetime.
type Token [TokenSize]byte

func (t Token) HostIP() uint32 {
	return binary.LittleEndian.Uint32(t[0:4])
}

func (t Token) UserID() uint32 {
	return binary.LittleEndian.Uint32(t[4:8])
}

func (t Token) ExpirationUnix() uint32 {
	return binary.LittleEndian.Uint32(t[8:12])
}

// Mint builds a new token bound to userID and clientIP, expiring after
// lifetime from now.
func Mint(userID int64, clientIP uint32, now time.Time, lifetime time.Duration) (Token, error) {
	var t Token
	binary.LittleEndian.PutUint32(t[0:4], clientIP)
	binary.LittleEndian.PutUint32(t[4:8], uint32(userID))
	binary.LittleEndian.PutUint32(t[8:12], uint32(now.Add(lifetime).Unix()))
	if _, err := rand.Read(t[12:]); err != nil {
		return Token{}, err
	}
	return t, nil
}

// ErrInvalidToken is returned by TokenRegistry.Validate for any failure
// mode (unknown token, IP mismatch, expired) — the caller never learns
// which, mirroring the "identical response" discipline spec.md applies
// to login failures.
var ErrInvalidToken = errors.New("auth: invalid token")

// TokenRegistry is the in-memory authority mapping token -> (user, IP,
// expiration). It is authoritative even when a RedisTokenCache mirror is
// configured (SPEC_FULL.md's DOMAIN STACK).
type TokenRegistry struct {
	mu     sync.RWMutex
	tokens map[Token]tokenEntry
	cache  *RedisTokenCache // optional, may be nil
}

type tokenEntry struct {
	userID     int64
	clientIP   uint32
	expiration time.Time
}

func NewTokenRegistry(cache *RedisTokenCache) *TokenRegistry {
	return &TokenRegistry{
		tokens: make(map[Token]tokenEntry),
		cache:  cache,
	}
}

// Issue mints and registers a token for userID bound to clientIP.
func (r *TokenRegistry) Issue(userID int64, clientIP uint32, now time.Time) (Token, error) {
	t, err := Mint(userID, clientIP, now, TokenLifetime)
	if err != nil {
		return Token{}, err
	}
	entry := tokenEntry{userID: userID, clientIP: clientIP, expiration: now.Add(TokenLifetime)}

	r.mu.Lock()
	r.tokens[t] = entry
	r.mu.Unlock()

	if r.cache != nil {
		r.cache.Store(t, entry.userID, entry.clientIP, entry.expiration)
	}
	return t, nil
}

// Validate implements validate(token, client_ip, now) from spec.md §4.2/§8:
// reject on IP mismatch, reject on expiration, else return the user id.
func (r *TokenRegistry) Validate(t Token, clientIP uint32, now time.Time) (int64, error) {
	r.mu.RLock()
	entry, ok := r.tokens[t]
	r.mu.RUnlock()

	if !ok && r.cache != nil {
		cached, found := r.cache.Lookup(t)
		if found {
			entry = tokenEntry{userID: cached.userID, clientIP: cached.clientIP, expiration: cached.expiration}
			ok = true
		}
	}
	if !ok {
		return 0, ErrInvalidToken
	}
	if entry.clientIP != clientIP {
		return 0, ErrInvalidToken
	}
	if now.After(entry.expiration) {
		r.Invalidate(t)
		return 0, ErrInvalidToken
	}
	return entry.userID, nil
}

// Invalidate drops a token. Applying it twice is idempotent (spec.md §8).
func (r *TokenRegistry) Invalidate(t Token) {
	r.mu.Lock()
	delete(r.tokens, t)
	r.mu.Unlock()
	if r.cache != nil {
		r.cache.Delete(t)
	}
}

// InvalidateAllForUser revokes every token belonging to userID — used on
// password change and logout-everywhere (spec.md §3/§4.2).
func (r *TokenRegistry) InvalidateAllForUser(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for t, entry := range r.tokens {
		if entry.userID == userID {
			delete(r.tokens, t)
			if r.cache != nil {
				r.cache.Delete(t)
			}
		}
	}
}
