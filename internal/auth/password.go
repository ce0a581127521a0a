package auth

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"github.com/metaserver/metaserver/internal/store"
	"go.uber.org/zap"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// DefaultScheme is the scheme used for every newly minted password hash.
const DefaultScheme = store.SchemeBcrypt

// argon2Params are deliberately conservative defaults; they are not
// configurable per spec.md's "pluggable scheme is assumed" black box.
var argon2Params = struct {
	time    uint32
	memory  uint32
	threads uint8
	keyLen  uint32
}{time: 1, memory: 64 * 1024, threads: 4, keyLen: 32}

// HashPassword hashes a new password under the given scheme, returning the
// hash and the salt to store alongside it. Only bcrypt and argon2 are
// accepted: bcrypt embeds its salt in the hash string and returns an empty
// salt, argon2 returns its random salt hex-encoded; any other scheme
// returns an error.
func HashPassword(scheme store.PasswordScheme, password string) (hash string, salt string, err error) {
	switch scheme {
	case store.SchemeBcrypt:
		h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return "", "", err
		}
		return string(h), "", nil
	case store.SchemeArgon2:
		saltBytes := make([]byte, 16)
		if _, err := rand.Read(saltBytes); err != nil {
			return "", "", err
		}
		digest := argon2.IDKey([]byte(password), saltBytes, argon2Params.time, argon2Params.memory, argon2Params.threads, argon2Params.keyLen)
		return hex.EncodeToString(digest), hex.EncodeToString(saltBytes), nil
	default:
		return "", "", fmt.Errorf("auth: %v is not a valid scheme for new hashes", scheme)
	}
}

// VerifyPassword dispatches to the scheme recorded on the user (spec.md
// §4.2: "Verification dispatches on the scheme stored with the user").
func VerifyPassword(log *zap.Logger, scheme store.PasswordScheme, hash, salt, password string) bool {
	switch scheme {
	case store.SchemePlaintext:
		log.Warn("verifying password with PLAINTEXT scheme; test-only, never use in production")
		return subtle.ConstantTimeCompare([]byte(hash), []byte(password)) == 1
	case store.SchemeXORSalt:
		return verifyXORSalt(hash, salt, password)
	case store.SchemeMD5Salt:
		return verifyMD5Salt(hash, salt, password)
	case store.SchemeBcrypt:
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
	case store.SchemeArgon2:
		return verifyArgon2(hash, salt, password)
	default:
		return false
	}
}

func verifyMD5Salt(hash, salt, password string) bool {
	sum := md5.Sum([]byte(salt + password))
	return subtle.ConstantTimeCompare([]byte(hex.EncodeToString(sum[:])), []byte(hash)) == 1
}

// verifyXORSalt reimplements the legacy XOR+SALT scheme: the stored hash
// is hex(xor(password_bytes, repeating_salt_bytes)). Read-only — spec.md
// §4.2 forbids selecting it for new hashes.
func verifyXORSalt(hash, salt, password string) bool {
	want, err := hex.DecodeString(hash)
	if err != nil || len(want) != len(password) {
		return false
	}
	got := xorWithSalt([]byte(password), []byte(salt))
	return subtle.ConstantTimeCompare(got, want) == 1
}

func xorWithSalt(data, salt []byte) []byte {
	if len(salt) == 0 {
		return append([]byte(nil), data...)
	}
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ salt[i%len(salt)]
	}
	return out
}

func verifyArgon2(hash, salt, password string) bool {
	saltBytes, err := hex.DecodeString(salt)
	if err != nil {
		return false
	}
	want, err := hex.DecodeString(hash)
	if err != nil {
		return false
	}
	got := argon2.IDKey([]byte(password), saltBytes, argon2Params.time, argon2Params.memory, argon2Params.threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}
