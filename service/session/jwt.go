package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"PNotify/tools/errs"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// JWTResolver accepts HMAC-signed bearer tokens and returns their "sub".
// Anything that does not look like a JWT is passed over as "no session" so
// a Chain can try the next resolver.
type JWTResolver struct {
	secret []byte
}

func NewJWTResolver(secret []byte) *JWTResolver {
	return &JWTResolver{secret: secret}
}

func (j *JWTResolver) Resolve(_ context.Context, credential string) (string, error) {
	if strings.Count(credential, ".") != 2 {
		return "", errs.ErrNoSession.WrapMsg("not a jwt")
	}
	parsed, err := jwtlib.Parse(credential, func(t *jwtlib.Token) (interface{}, error) {
		// 仅允许 HMAC 家族
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected alg: %v", t.Header["alg"])
		}
		return j.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", errs.ErrNoSession.WrapMsg("invalid token", "err", err)
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errs.ErrNoSession.WrapMsg("token without subject")
	}
	return sub, nil
}

// Issue signs an HS256 token for identity. The login flow owns issuing in
// production; this is here for the CLI and tests.
func (j *JWTResolver) Issue(identity string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	now := time.Now()
	tok := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"sub": identity,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	})
	return tok.SignedString(j.secret)
}
