// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package token issues and verifies signed identity tokens.

Tokens are HS256 signed JWTs carrying the subject id, the role set and an
expiry 24 hours after issuance. There is no refresh, an expired token forces a
new login.

The signing secret is resolved once by New, first match wins:

 1. Config.Secret
 2. the environment variable JWT_SECRET
 3. the file Config.SecretFile, a local path or s3://bucket/key
 4. a random secret, which does not survive a restart and is logged as such
*/
package token

import (
	"context"
	"crypto/rand"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/relabs-tech/gourd/core/access"
	"github.com/relabs-tech/gourd/core/failure"
	"github.com/relabs-tech/gourd/core/keystore"
	"github.com/relabs-tech/gourd/core/logger"
)

// Expiry is the lifetime of an issued token
const Expiry = 24 * time.Hour

// EnvSecret is the environment variable holding the signing secret
const EnvSecret = "JWT_SECRET"

// Config is the configuration of a token Service
type Config struct {
	// Secret is the explicitly configured signing secret
	Secret string
	// SecretFile is the location of a persisted secret, a file path or s3://bucket/key
	SecretFile string
	// S3 configures access to SecretFile on S3
	S3 keystore.S3Configuration
	// Getenv looks up environment variables. Defaults to os.Getenv
	Getenv func(string) string
}

// SecretSource tells where the signing secret came from
type SecretSource string

// all secret sources
const (
	SourceConfig SecretSource = "config"
	SourceEnv    SecretSource = "env"
	SourceFile   SecretSource = "file"
	SourceRandom SecretSource = "random"
)

// Service issues and verifies tokens. It is safe for concurrent use.
type Service struct {
	secret []byte
	source SecretSource
	now    func() time.Time
}

type claims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// New creates a token service and resolves its secret
func New(ctx context.Context, config Config) (*Service, error) {
	rlog := logger.FromContext(ctx)
	getenv := config.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	s := &Service{now: time.Now}
	switch {
	case config.Secret != "":
		s.secret, s.source = []byte(config.Secret), SourceConfig
	case getenv(EnvSecret) != "":
		s.secret, s.source = []byte(getenv(EnvSecret)), SourceEnv
	}

	if s.secret == nil && config.SecretFile != "" {
		data, err := keystore.Read(ctx, config.SecretFile, config.S3)
		switch {
		case err == nil && len(strings.TrimSpace(string(data))) > 0:
			s.secret, s.source = []byte(strings.TrimSpace(string(data))), SourceFile
		case err == nil, failure.IsType(err, failure.TypeNotFound):
			rlog.Warnf("token secret file %s is missing or empty", config.SecretFile)
		default:
			return nil, err
		}
	}

	if s.secret == nil {
		s.secret = make([]byte, 32)
		if _, err := rand.Read(s.secret); err != nil {
			return nil, failure.Wrap(err, failure.TypeInternal, "cannot generate token secret")
		}
		s.source = SourceRandom
		rlog.Warnln("no token secret configured, using a random secret. Tokens will not survive a restart")
	}
	rlog.Debugln("token secret source:", s.source)
	return s, nil
}

// Source returns where the signing secret came from
func (s *Service) Source() SecretSource {
	return s.source
}

// Issue returns a signed token for identity. The expiry of identity is ignored,
// every token is valid for Expiry from now.
func (s *Service) Issue(identity access.Identity) (string, error) {
	now := s.now()
	c := &claims{
		Roles: identity.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.Subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(Expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", failure.Wrap(err, failure.TypeInternal, "cannot sign token")
	}
	return token, nil
}

// Verify checks signature and expiry of token and returns the identity it
// carries. Every failure is an authentication failure.
func (s *Service) Verify(token string) (*access.Identity, error) {
	c := &claims{}
	parsed, err := jwt.ParseWithClaims(token, c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, failure.Newf(failure.TypeAuthentication, "unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, failure.Wrap(err, failure.TypeAuthentication, "invalid token")
	}
	if !parsed.Valid || c.ExpiresAt == nil || c.Subject == "" {
		return nil, failure.New(failure.TypeAuthentication, "invalid token")
	}
	return &access.Identity{
		Subject:   c.Subject,
		Roles:     c.Roles,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}
