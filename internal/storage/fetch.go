// Package storage talks to the content-addressed storage network: it fetches
// encrypted judge metadata and uploads finished scorecards.
package storage

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

var (
	urlPattern  = regexp.MustCompile(`(?i)^https?://`)
	hashPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
)

// RetrievalError reports a non-2xx response while fetching a metadata URL.
type RetrievalError struct {
	StatusCode int
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("failed to fetch encrypted payload: status %d", e.StatusCode)
}

// MisconfiguredPointerError reports a pointer that holds a content hash where
// the encrypted payload was expected. The contract was minted with the wrong
// field; no amount of resolution will recover the payload.
type MisconfiguredPointerError struct {
	Pointer string
}

func (e *MisconfiguredPointerError) Error() string {
	return fmt.Sprintf("pointer %q is a content hash, not an encrypted payload: the registry entry is misconfigured", e.Pointer)
}

// Fetcher resolves a judge profile's storage pointer to its encrypted bytes.
type Fetcher interface {
	FetchEncryptedPayload(ctx context.Context, pointer string) (string, error)
}

type HTTPFetcher struct {
	client *resty.Client
}

func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{client: resty.New().SetTimeout(30 * time.Second)}
}

// FetchEncryptedPayload dispatches on the pointer shape, in this order: an
// HTTP(S) URL is fetched, a 32-byte hex digest is rejected as misconfigured,
// and anything else is treated as the inline payload itself. The URL check
// must run first since a hash also fails the URL match.
func (f *HTTPFetcher) FetchEncryptedPayload(ctx context.Context, pointer string) (string, error) {
	if urlPattern.MatchString(pointer) {
		res, err := f.client.R().SetContext(ctx).Get(pointer)
		if err != nil {
			return "", fmt.Errorf("error fetching encrypted payload: %w", err)
		}
		if !res.IsSuccess() {
			return "", &RetrievalError{StatusCode: res.StatusCode()}
		}
		return strings.TrimSpace(res.String()), nil
	}

	if hashPattern.MatchString(pointer) {
		return "", &MisconfiguredPointerError{Pointer: pointer}
	}

	return pointer, nil
}
