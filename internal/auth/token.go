// Package auth provides bearer-token sources for outbound service calls.
// The tool never stores or generates credentials itself; tokens come from
// an external capability such as the cloud SDK's print-access-token command.
package auth

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrorEmptyToken = errors.New("token provider returned an empty token")

// TokenSource yields a bearer token for an outbound request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource always returns the same token. Useful in tests and for
// short runs with a pre-minted token.
type StaticTokenSource struct {
	token string
}

func NewStaticTokenSource(token string) *StaticTokenSource {
	return &StaticTokenSource{token: token}
}

func (s *StaticTokenSource) Token(ctx context.Context) (string, error) {
	if s.token == "" {
		return "", ErrorEmptyToken
	}
	return s.token, nil
}

// runCommand is a test seam for exec.CommandContext.
var runCommand = func(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// CommandTokenSource mints a token by running an external command and
// reading its trimmed stdout, e.g. "gcloud auth print-access-token".
type CommandTokenSource struct {
	command string
}

func NewCommandTokenSource(command string) *CommandTokenSource {
	return &CommandTokenSource{command: command}
}

func (s *CommandTokenSource) Token(ctx context.Context) (string, error) {
	parts := strings.Fields(s.command)
	if len(parts) == 0 {
		return "", errors.New("token command is not configured")
	}

	out, err := runCommand(ctx, parts[0], parts[1:]...)
	if err != nil {
		return "", fmt.Errorf("token command failed: %w", err)
	}

	token := strings.TrimSpace(string(out))
	if token == "" {
		return "", ErrorEmptyToken
	}
	return token, nil
}

// opaqueTokenTTL bounds how long a token without a readable expiry claim is
// reused before re-minting.
const opaqueTokenTTL = 5 * time.Minute

// expiryLeeway refreshes tokens slightly before their actual expiry so a
// request does not leave with a token that lapses in flight.
const expiryLeeway = 30 * time.Second

// CachedTokenSource wraps another source and reuses its token until shortly
// before expiry. For JWTs the expiry comes from the exp claim (parsed
// without signature verification; the service validates the token, the
// client only schedules refreshes). Opaque tokens are refreshed after a
// fixed TTL. Long runs therefore survive token expiry mid-run.
type CachedTokenSource struct {
	src TokenSource

	mu     sync.Mutex
	token  string
	expiry time.Time
}

func NewCachedTokenSource(src TokenSource) *CachedTokenSource {
	return &CachedTokenSource{src: src}
}

func (c *CachedTokenSource) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.expiry.Add(-expiryLeeway)) {
		return c.token, nil
	}

	token, err := c.src.Token(ctx)
	if err != nil {
		return "", err
	}

	c.token = token
	if exp, ok := tokenExpiry(token); ok {
		c.expiry = exp
	} else {
		c.expiry = time.Now().Add(opaqueTokenTTL)
	}

	return c.token, nil
}

// tokenExpiry extracts the exp claim from a JWT without verifying the
// signature. The second return value is false for opaque tokens or JWTs
// without an expiry.
func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()

	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}

	return exp.Time, true
}
