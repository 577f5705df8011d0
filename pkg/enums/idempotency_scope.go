package enums

import "fmt"

// IdempotencyScope labels which engine operation consumed a key.
// Keys are globally unique; the scope exists for auditing and debugging.
type IdempotencyScope string

const (
	IdempotencyScopeIssue    IdempotencyScope = "issue"
	IdempotencyScopeTransfer IdempotencyScope = "transfer"
	IdempotencyScopeRedeem   IdempotencyScope = "redeem"
)

var validIdempotencyScopes = []IdempotencyScope{
	IdempotencyScopeIssue,
	IdempotencyScopeTransfer,
	IdempotencyScopeRedeem,
}

// IsValid reports whether the value matches the canonical scope enum.
func (s IdempotencyScope) IsValid() bool {
	for _, candidate := range validIdempotencyScopes {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseIdempotencyScope converts raw input into IdempotencyScope.
func ParseIdempotencyScope(value string) (IdempotencyScope, error) {
	for _, candidate := range validIdempotencyScopes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid idempotency scope %q", value)
}
