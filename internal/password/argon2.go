package password

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/sync/semaphore"
)

const algorithmID = "argon2id"

var (
	ErrMalformedHash = errors.New("malformed password hash")
	ErrBusy          = errors.New("password hashing capacity exhausted")
)

type Params struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func DefaultParams() Params {
	return Params{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Hasher hashes and verifies passwords with argon2id. Each stored hash is
// self-describing (PHC string format), so cost parameters can be raised
// without invalidating existing hashes. A weighted semaphore caps how many
// hash computations run at once so a burst of logins cannot starve the
// request pool.
type Hasher struct {
	params Params
	gate   *semaphore.Weighted
}

func NewHasher(params Params, maxConcurrent int) (*Hasher, error) {
	if params.Memory < 8*1024 {
		return nil, errors.New("argon2 memory must be >= 8192 KB")
	}
	if params.Time < 1 || params.Parallelism < 1 {
		return nil, errors.New("argon2 time and parallelism must be >= 1")
	}
	if params.SaltLength < 16 || params.KeyLength < 16 {
		return nil, errors.New("argon2 salt and key length must be >= 16")
	}
	if maxConcurrent < 1 {
		return nil, errors.New("max concurrent hashes must be >= 1")
	}
	return &Hasher{
		params: params,
		gate:   semaphore.NewWeighted(int64(maxConcurrent)),
	}, nil
}

func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	if err := h.acquire(ctx); err != nil {
		return "", err
	}
	defer h.gate.Release(1)

	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	digest := argon2.IDKey(
		[]byte(password),
		salt,
		h.params.Time,
		h.params.Memory,
		h.params.Parallelism,
		h.params.KeyLength,
	)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(digest),
	), nil
}

// Verify recomputes the digest with the parameters recorded in the stored
// hash and compares in constant time. A mismatch returns (false, nil);
// only a corrupt stored hash is an error.
func (h *Hasher) Verify(ctx context.Context, password, encodedHash string) (bool, error) {
	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	if err := h.acquire(ctx); err != nil {
		return false, err
	}
	defer h.gate.Release(1)

	computed := argon2.IDKey(
		[]byte(password),
		parsed.salt,
		parsed.time,
		parsed.memory,
		parsed.parallelism,
		uint32(len(parsed.digest)),
	)

	return subtle.ConstantTimeCompare(computed, parsed.digest) == 1, nil
}

// NeedsRehash reports whether a stored hash was produced with weaker
// parameters than the current configuration.
func (h *Hasher) NeedsRehash(encodedHash string) (bool, error) {
	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}
	if h.params.Memory > parsed.memory || h.params.Time > parsed.time {
		return true, nil
	}
	if h.params.Parallelism > parsed.parallelism {
		return true, nil
	}
	if h.params.KeyLength != uint32(len(parsed.digest)) {
		return true, nil
	}
	return false, nil
}

func (h *Hasher) acquire(ctx context.Context) error {
	if err := h.gate.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%w: %v", ErrBusy, err)
	}
	return nil
}

type phcParts struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	digest      []byte
}

func parsePHC(encoded string) (*phcParts, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithmID {
		return nil, ErrMalformedHash
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || !strings.HasPrefix(parts[2], "v=") || version != argon2.Version {
		return nil, ErrMalformedHash
	}

	out := &phcParts{}
	for _, pair := range strings.Split(parts[3], ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, ErrMalformedHash
		}
		switch kv[0] {
		case "m":
			v, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil || v == 0 {
				return nil, ErrMalformedHash
			}
			out.memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil || v == 0 {
				return nil, ErrMalformedHash
			}
			out.time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(kv[1], 10, 8)
			if err != nil || v == 0 {
				return nil, ErrMalformedHash
			}
			out.parallelism = uint8(v)
		default:
			return nil, ErrMalformedHash
		}
	}
	if out.memory == 0 || out.time == 0 || out.parallelism == 0 {
		return nil, ErrMalformedHash
	}

	if out.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil || len(out.salt) < 8 {
		return nil, ErrMalformedHash
	}
	if out.digest, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(out.digest) == 0 {
		return nil, ErrMalformedHash
	}
	return out, nil
}
