package ports

import (
	"context"
	"time"
)

// IdentityDirectory resolves an account identifier to its creation
// timestamp. Unsupported identifier schemes, "not found" answers and
// unreachable directories all surface as core.ErrUnresolved so the
// access gate can fail closed.
type IdentityDirectory interface {
	CreatedAt(ctx context.Context, did string) (time.Time, error)
}
