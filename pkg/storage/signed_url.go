package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrTokenInvalid = errors.New("invalid download token")
	ErrTokenExpired = errors.New("download token expired")
)

// Grant is the content of a signed download token.
type Grant struct {
	ExportID  string
	Path      string
	ExpiresAt time.Time
}

// SignedURLSigner creates and validates signed download tokens of the form
// id.expiry.path.signature.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL reports how long generated tokens stay valid.
func (s *SignedURLSigner) TTL() time.Duration {
	return s.ttl
}

// Generate signs a token granting access to path.
func (s *SignedURLSigner) Generate(exportID, path string) (string, Grant, error) {
	if exportID == "" || path == "" || strings.Contains(exportID, ".") {
		return "", Grant{}, fmt.Errorf("%w: export id and path required", ErrTokenInvalid)
	}
	if len(s.secret) == 0 {
		return "", Grant{}, errors.New("signing secret missing")
	}
	grant := Grant{ExportID: exportID, Path: path, ExpiresAt: s.now().Add(s.ttl).Truncate(time.Second)}
	expiry := strconv.FormatInt(grant.ExpiresAt.Unix(), 10)
	encodedPath := base64.RawURLEncoding.EncodeToString([]byte(path))
	token := strings.Join([]string{exportID, expiry, encodedPath, s.sign(exportID, expiry, encodedPath)}, ".")
	return token, grant, nil
}

// Parse validates a token. Expired tokens are rejected unless allowExpired is set.
func (s *SignedURLSigner) Parse(token string, allowExpired bool) (Grant, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return Grant{}, fmt.Errorf("%w: malformed", ErrTokenInvalid)
	}
	exportID, expiry, encodedPath, signature := parts[0], parts[1], parts[2], parts[3]

	if !hmac.Equal([]byte(s.sign(exportID, expiry, encodedPath)), []byte(signature)) {
		return Grant{}, fmt.Errorf("%w: bad signature", ErrTokenInvalid)
	}
	unix, err := strconv.ParseInt(expiry, 10, 64)
	if err != nil {
		return Grant{}, fmt.Errorf("%w: bad expiry", ErrTokenInvalid)
	}
	path, err := base64.RawURLEncoding.DecodeString(encodedPath)
	if err != nil {
		return Grant{}, fmt.Errorf("%w: bad path", ErrTokenInvalid)
	}

	grant := Grant{ExportID: exportID, Path: string(path), ExpiresAt: time.Unix(unix, 0)}
	if !allowExpired && s.now().After(grant.ExpiresAt) {
		return Grant{}, ErrTokenExpired
	}
	return grant, nil
}

func (s *SignedURLSigner) sign(exportID, expiry, encodedPath string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(exportID + "|" + expiry + "|" + encodedPath))
	return hex.EncodeToString(mac.Sum(nil))
}
