// Package extjwt provides JSON Web Token functions under the "jwt."
// namespace, backed by github.com/golang-jwt/jwt/v5.
//
// Only HMAC algorithms (HS256, HS384, HS512) are supported for signing and
// verification. Verification checks the signature alone: time-based claims
// are never compared against the wall clock, so evaluation stays
// deterministic. Use jwt.expired(token, ts) to check expiry against an
// explicit timestamp.
package extjwt

import (
	"context"
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sandrolain/gocel/pkg/ext/extutil"
	"github.com/sandrolain/gocel/pkg/functions"
	"github.com/sandrolain/gocel/pkg/types"
)

const (
	s  = types.KindString
	m  = types.KindMap
	ts = types.KindTimestamp
)

var hmacMethods = []string{"HS256", "HS384", "HS512"}

// All returns all JWT overloads.
func All() []functions.Overload {
	return extutil.Concat(
		Claims(),
		Header(),
		Verify(),
		Sign(),
		Expired(),
	)
}

func newParser(opts ...jwt.ParserOption) *jwt.Parser {
	return jwt.NewParser(append([]jwt.ParserOption{jwt.WithJSONNumber(), jwt.WithoutClaimsValidation()}, opts...)...)
}

// parseUnverified decodes a token without checking its signature.
func parseUnverified(fn, token string) (*jwt.Token, error) {
	tok, _, err := newParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return nil, types.Errorf(types.ErrConversion, "%s: malformed token: %v", fn, err).WithToken(fn).WithCause(err)
	}
	return tok, nil
}

// Claims returns the overload for jwt.claims(token): the payload as a map,
// without verifying the signature.
func Claims() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		tok, err := parseUnverified("jwt.claims", extutil.Str(args[0]))
		if err != nil {
			return nil, err
		}
		return types.NativeToValue(map[string]any(tok.Claims.(jwt.MapClaims)))
	}
	return []functions.Overload{extutil.Global("jwt.claims", "jwt_claims", fn, s)}
}

// Header returns the overload for jwt.header(token).
func Header() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		tok, err := parseUnverified("jwt.header", extutil.Str(args[0]))
		if err != nil {
			return nil, err
		}
		return types.NativeToValue(tok.Header)
	}
	return []functions.Overload{extutil.Global("jwt.header", "jwt_header", fn, s)}
}

// Verify returns the overload for jwt.verify(token, secret). It is true when
// the token carries a valid HMAC signature for secret, false otherwise.
func Verify() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		secret := []byte(extutil.Str(args[1]))
		p := newParser(jwt.WithValidMethods(hmacMethods))
		tok, err := p.Parse(extutil.Str(args[0]), func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrTokenUnverifiable
			}
			return secret, nil
		})
		if err != nil {
			if errors.Is(err, jwt.ErrTokenMalformed) {
				return nil, types.Errorf(types.ErrConversion, "jwt.verify: malformed token: %v", err).WithToken("jwt.verify").WithCause(err)
			}
			return types.False, nil
		}
		return types.Bool(tok.Valid), nil
	}
	return []functions.Overload{extutil.Global("jwt.verify", "jwt_verify", fn, s, s)}
}

// Sign returns the overloads for jwt.sign(claims, secret [, alg]). alg is
// HS256 by default. No claims are added, so equal inputs give equal tokens.
func Sign() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		alg := "HS256"
		if len(args) == 3 {
			alg = extutil.Str(args[2])
		}
		method, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
		if !ok {
			return nil, extutil.Errorf("jwt.sign", "unsupported algorithm %q", alg)
		}
		claims, ok := types.ToJSONCompatible(args[0]).(map[string]any)
		if !ok {
			return nil, extutil.Errorf("jwt.sign", "claims must be a map")
		}
		signed, err := jwt.NewWithClaims(method, jwt.MapClaims(claims)).SignedString([]byte(extutil.Str(args[1])))
		if err != nil {
			return nil, extutil.Errorf("jwt.sign", "%v", err).WithCause(err)
		}
		return types.String(signed), nil
	}
	return []functions.Overload{
		extutil.Global("jwt.sign", "jwt_sign", fn, m, s),
		extutil.Global("jwt.sign", "jwt_sign_alg", fn, m, s, s),
	}
}

// Expired returns the overload for jwt.expired(token, at). A token without
// an "exp" claim never expires.
func Expired() []functions.Overload {
	fn := func(_ context.Context, args ...types.Value) (types.Value, error) {
		tok, err := parseUnverified("jwt.expired", extutil.Str(args[0]))
		if err != nil {
			return nil, err
		}
		exp, err := tok.Claims.GetExpirationTime()
		if err != nil {
			return nil, extutil.Errorf("jwt.expired", "invalid exp claim: %v", err).WithCause(err)
		}
		if exp == nil {
			return types.False, nil
		}
		at := args[1].(types.Timestamp).Time
		return types.Bool(!at.Before(exp.Time)), nil
	}
	return []functions.Overload{extutil.Global("jwt.expired", "jwt_expired", fn, s, ts)}
}
