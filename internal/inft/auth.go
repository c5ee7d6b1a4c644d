package inft

import (
	"context"
	"fmt"
	"strings"
)

// OwnershipLookupError marks a failed registry read. It is distinct from an
// authorization denial: a lookup that errors must never be reported as
// "not authorized".
type OwnershipLookupError struct {
	TokenId uint64
	Err     error
}

func (e *OwnershipLookupError) Error() string {
	return fmt.Sprintf("ownership lookup failed for token %d: %v", e.TokenId, e.Err)
}

func (e *OwnershipLookupError) Unwrap() error {
	return e.Err
}

// IsAuthorizedOrOwner reports whether wallet owns the token or holds a
// non-empty authorization record for it. The presence of a record grants
// access regardless of its contents; this mirrors the contract's coarse
// permission model.
func IsAuthorizedOrOwner(ctx context.Context, registry Registry, tokenId uint64, wallet string) (bool, error) {
	owner, err := registry.OwnerOf(ctx, tokenId)
	if err != nil {
		return false, &OwnershipLookupError{TokenId: tokenId, Err: err}
	}

	if strings.EqualFold(owner, wallet) {
		return true, nil
	}

	authorization, err := registry.Authorization(ctx, tokenId, wallet)
	if err != nil {
		return false, &OwnershipLookupError{TokenId: tokenId, Err: err}
	}

	return len(authorization) > 0, nil
}
