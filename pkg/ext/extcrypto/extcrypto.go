// Package extcrypto provides hashing and password-verification functions.
// Every function is deterministic; digests are lowercase hex strings.
//
// Security note: MD5 and SHA-1 are provided for compatibility/fingerprinting only
// and should NOT be used for cryptographic security purposes.
package extcrypto

import (
	"context"
	"crypto/hmac"
	"crypto/md5" //nolint:gosec // intentional: provided for non-security fingerprinting
	"crypto/sha1" //nolint:gosec // intentional
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"hash"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"

	"github.com/sandrolain/gocel/pkg/ext/extutil"
	"github.com/sandrolain/gocel/pkg/functions"
	"github.com/sandrolain/gocel/pkg/types"
)

const (
	s = types.KindString
	b = types.KindBytes
)

// Algorithms lists the names accepted by hash() and hmac().
var Algorithms = []string{
	"md5", "sha1", "sha256", "sha384", "sha512",
	"sha3-256", "sha3-512", "blake2b-256", "blake2b-512",
}

// All returns all cryptographic overloads.
func All() []functions.Overload {
	return extutil.Concat(
		Hash(),
		HMAC(),
		BcryptVerify(),
		BcryptCost(),
	)
}

// hasher returns the constructor for an algorithm. blake2b is used unkeyed.
func hasher(algorithm string) (func() hash.Hash, bool) {
	switch strings.ToLower(algorithm) {
	case "md5":
		return md5.New, true //nolint:gosec
	case "sha1":
		return sha1.New, true //nolint:gosec
	case "sha256":
		return sha256.New, true
	case "sha384":
		return sha512.New384, true
	case "sha512":
		return sha512.New, true
	case "sha3-256":
		return sha3.New256, true
	case "sha3-512":
		return sha3.New512, true
	case "blake2b-256":
		return func() hash.Hash { h, _ := blake2b.New256(nil); return h }, true
	case "blake2b-512":
		return func() hash.Hash { h, _ := blake2b.New512(nil); return h }, true
	}
	return nil, false
}

func unsupported(fn, algorithm string) error {
	return extutil.Errorf(fn, "unsupported algorithm %q; use one of %s", algorithm, strings.Join(Algorithms, ", "))
}

// Hash returns the overloads for hash(data, algorithm), where data is a
// string or bytes.
func Hash() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		data, _ := extutil.StrOrBytes(args[0])
		alg := extutil.Str(args[1])
		newHash, ok := hasher(alg)
		if !ok {
			return nil, unsupported("hash", alg)
		}
		h := newHash()
		h.Write(data)
		return types.String(hex.EncodeToString(h.Sum(nil))), nil
	}
	return []functions.Overload{
		extutil.Global("hash", "hash_string", fn, s, s),
		extutil.Global("hash", "hash_bytes", fn, b, s),
	}
}

// HMAC returns the overloads for hmac(data, key, algorithm).
func HMAC() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		data, _ := extutil.StrOrBytes(args[0])
		key, _ := extutil.StrOrBytes(args[1])
		alg := extutil.Str(args[2])
		newHash, ok := hasher(alg)
		if !ok {
			return nil, unsupported("hmac", alg)
		}
		mac := hmac.New(newHash, key)
		mac.Write(data)
		return types.String(hex.EncodeToString(mac.Sum(nil))), nil
	}
	return []functions.Overload{
		extutil.Global("hmac", "hmac_string", fn, s, s, s),
		extutil.Global("hmac", "hmac_bytes", fn, b, b, s),
	}
}

// BcryptVerify returns the overload for bcrypt.verify(password, hash). A
// mismatch is false; a malformed hash is an error.
func BcryptVerify() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		err := bcrypt.CompareHashAndPassword([]byte(extutil.Str(args[1])), []byte(extutil.Str(args[0])))
		switch {
		case err == nil:
			return types.True, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return types.False, nil
		}
		return nil, extutil.Errorf("bcrypt.verify", "%v", err).WithCause(err)
	}
	return []functions.Overload{extutil.Global("bcrypt.verify", "bcrypt_verify", fn, s, s)}
}

// BcryptCost returns the overload for bcrypt.cost(hash).
func BcryptCost() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		cost, err := bcrypt.Cost([]byte(extutil.Str(args[0])))
		if err != nil {
			return nil, extutil.Errorf("bcrypt.cost", "%v", err).WithCause(err)
		}
		return types.Int(cost), nil
	}
	return []functions.Overload{extutil.Global("bcrypt.cost", "bcrypt_cost", fn, s)}
}
