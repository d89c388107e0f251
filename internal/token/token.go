package token

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrInvalidToken is returned for every malformed member token. The caller
// must not learn which part of the token failed.
var ErrInvalidToken = errors.New("invalid member token")

// Decode parses a member token of the form base64url(memberId ":" secret).
// Both padded and unpadded encodings are accepted.
func Decode(tokenStr string) (memberID int64, secret string, err error) {
	raw, err := base64.URLEncoding.DecodeString(tokenStr)
	if err != nil {
		raw, err = base64.RawURLEncoding.DecodeString(tokenStr)
		if err != nil {
			return 0, "", ErrInvalidToken
		}
	}

	if !utf8.Valid(raw) {
		return 0, "", ErrInvalidToken
	}

	parts := strings.Split(string(raw), ":")
	if len(parts) != 2 {
		return 0, "", ErrInvalidToken
	}

	memberID, err = strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, "", ErrInvalidToken
	}

	return memberID, parts[1], nil
}

// Encode builds a member token from its parts. Used by tests and tooling;
// the production tokens are issued by the auth service.
func Encode(memberID int64, secret string) string {
	return base64.URLEncoding.EncodeToString([]byte(strconv.FormatInt(memberID, 10) + ":" + secret))
}
