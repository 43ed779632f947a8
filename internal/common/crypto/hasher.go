package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/AlibekovAA/fincore/internal/common/constants"
)

const (
	argon2Algorithm = "argon2id"

	minArgon2MemoryKB    uint32 = 8 * 1024
	minArgon2Time        uint32 = 1
	minArgon2Parallelism uint8  = 1
)

var (
	ErrEmptySecret      = errors.New("secret must not be empty")
	ErrInvalidHash      = errors.New("invalid argon2 hash")
	ErrWeakArgon2Config = errors.New("argon2 parameters below minimum")
)

// PasswordHasher hashes account passwords, OTPs and refresh tokens at rest.
// Verify compares in constant time and reports a mismatch as (false, nil).
type PasswordHasher interface {
	Hash(secret string) (string, error)
	Verify(digest, secret string) (bool, error)
}

type Argon2Params struct {
	MemoryKB    uint32
	Time        uint32
	Parallelism uint8
}

type Argon2Hasher struct {
	params Argon2Params
}

func NewArgon2Hasher(params Argon2Params) (*Argon2Hasher, error) {
	if params.MemoryKB < minArgon2MemoryKB || params.Time < minArgon2Time || params.Parallelism < minArgon2Parallelism {
		return nil, fmt.Errorf("%w: m=%d t=%d p=%d", ErrWeakArgon2Config, params.MemoryKB, params.Time, params.Parallelism)
	}
	return &Argon2Hasher{params: params}, nil
}

func (h *Argon2Hasher) Hash(secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}

	salt := make([]byte, constants.Argon2SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}

	key := argon2.IDKey([]byte(secret), salt, h.params.Time, h.params.MemoryKB, h.params.Parallelism, constants.Argon2KeyLength)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Algorithm,
		argon2.Version,
		h.params.MemoryKB,
		h.params.Time,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reads its cost parameters from the digest, so hashes made under older settings keep verifying.
func (h *Argon2Hasher) Verify(digest, secret string) (bool, error) {
	encoded, err := decodeArgon2(digest)
	if err != nil {
		return false, err
	}

	key := argon2.IDKey([]byte(secret), encoded.salt, encoded.params.Time, encoded.params.MemoryKB, encoded.params.Parallelism, uint32(len(encoded.key)))
	return subtle.ConstantTimeCompare(key, encoded.key) == 1, nil
}

type argon2Digest struct {
	params Argon2Params
	salt   []byte
	key    []byte
}

func decodeArgon2(digest string) (argon2Digest, error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != argon2Algorithm {
		return argon2Digest{}, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return argon2Digest{}, fmt.Errorf("%w: unsupported version", ErrInvalidHash)
	}

	var params Argon2Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.MemoryKB, &params.Time, &params.Parallelism); err != nil {
		return argon2Digest{}, fmt.Errorf("%w: bad parameters", ErrInvalidHash)
	}
	if params.MemoryKB == 0 || params.Time == 0 || params.Parallelism == 0 {
		return argon2Digest{}, fmt.Errorf("%w: zero parameter", ErrInvalidHash)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return argon2Digest{}, fmt.Errorf("%w: bad salt", ErrInvalidHash)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return argon2Digest{}, fmt.Errorf("%w: bad key", ErrInvalidHash)
	}

	return argon2Digest{params: params, salt: salt, key: key}, nil
}
