package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

type ContextKey string

const CallerKey ContextKey = "caller"

// Caller is whoever is behind a request: an administrator, a player holding a
// token, a scoring board presenting its access code, or nobody.
type Caller struct {
	IsAdmin    bool
	PlayerID   *uuid.UUID
	BoardCode  string
	RemoteAddr string
}

func (c Caller) Anonymous() bool {
	return !c.IsAdmin && c.PlayerID == nil && c.BoardCode == ""
}

func (c Caller) IsPlayer(id uuid.UUID) bool {
	return c.PlayerID != nil && *c.PlayerID == id
}

// RateLimitKey identifies the caller for per-caller limits.
func (c Caller) RateLimitKey() string {
	switch {
	case c.PlayerID != nil:
		return "player:" + c.PlayerID.String()
	case c.BoardCode != "":
		sum := sha256.Sum256([]byte(NormalizeBoardCode(c.BoardCode)))
		return "board:" + hex.EncodeToString(sum[:8])
	case c.IsAdmin:
		return "admin:" + c.RemoteAddr
	}
	return "ip:" + c.RemoteAddr
}

// NormalizeBoardCode makes board credentials case-insensitive.
func NormalizeBoardCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, CallerKey, c)
}

func CallerFromContext(ctx context.Context) Caller {
	c, _ := ctx.Value(CallerKey).(Caller)
	return c
}
