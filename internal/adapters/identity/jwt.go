// Package identity verifies tokens issued by the external identity provider.
package identity

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/anihangout/hangout/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the subset of provider claims the service understands.
type Claims struct {
	Email             string `json:"email,omitempty"`
	EmailVerified     bool   `json:"email_verified,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	Username          string `json:"username,omitempty"`
	Name              string `json:"name,omitempty"`
	Picture           string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

type JWTVerifier struct {
	keyFunc jwt.Keyfunc
	parser  *jwt.Parser
}

var _ domain.TokenVerifier = (*JWTVerifier)(nil)

type Options struct {
	Issuer   string
	Audience string
	Leeway   time.Duration
}

func (o Options) parserOptions(method string) []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{method}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(o.Leeway),
	}
	if o.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(o.Issuer))
	}
	if o.Audience != "" {
		opts = append(opts, jwt.WithAudience(o.Audience))
	}
	return opts
}

// NewHMACVerifier accepts HS256 tokens signed with secret.
func NewHMACVerifier(secret []byte, opts Options) (*JWTVerifier, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt secret is empty")
	}
	return &JWTVerifier{
		keyFunc: func(*jwt.Token) (any, error) { return secret, nil },
		parser:  jwt.NewParser(opts.parserOptions(jwt.SigningMethodHS256.Alg())...),
	}, nil
}

// NewRSAVerifier accepts RS256 tokens signed by the holder of key's private half.
func NewRSAVerifier(key *rsa.PublicKey, opts Options) (*JWTVerifier, error) {
	if key == nil {
		return nil, errors.New("rsa public key is nil")
	}
	return &JWTVerifier{
		keyFunc: func(*jwt.Token) (any, error) { return key, nil },
		parser:  jwt.NewParser(opts.parserOptions(jwt.SigningMethodRS256.Alg())...),
	}, nil
}

// LoadRSAVerifier reads a PEM encoded public key from path.
func LoadRSAVerifier(path string, opts Options) (*JWTVerifier, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(pem)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return NewRSAVerifier(key, opts)
}

func (v *JWTVerifier) Verify(token string) (domain.ExternalClaims, error) {
	var claims Claims
	if _, err := v.parser.ParseWithClaims(token, &claims, v.keyFunc); err != nil {
		return domain.ExternalClaims{}, err
	}
	if claims.Subject == "" {
		return domain.ExternalClaims{}, errors.New("token has no subject")
	}
	username := claims.PreferredUsername
	if username == "" {
		username = claims.Username
	}
	return domain.ExternalClaims{
		Subject:       claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Username:      username,
		DisplayName:   claims.Name,
		AvatarURL:     claims.Picture,
	}, nil
}
