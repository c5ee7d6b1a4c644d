// Package compute talks to the decentralized inference marketplace: provider
// discovery, prepaid ledger management, request signing and response
// verification, plus the chat-completion dispatch itself.
package compute

import (
	"context"
	"math/big"
	"time"

	"judge-backend/pkg/api"
)

// Ledger is the caller's prepaid balance on the marketplace, in wei.
type Ledger struct {
	TotalBalance *big.Int
}

// ServiceMetadata resolves a provider to its serving endpoint and model.
type ServiceMetadata struct {
	Endpoint string
	Model    string
}

// Broker is the narrow surface of the marketplace consumed by the scoring
// pipeline. The marketplace itself is an opaque external collaborator.
type Broker interface {
	ListServices(ctx context.Context) ([]api.Service, error)
	GetLedger(ctx context.Context) (Ledger, error)
	DepositFund(ctx context.Context, amount *big.Int) error
	AddLedger(ctx context.Context, amount *big.Int) error
	AcknowledgeProviderSigner(ctx context.Context, provider string) error
	GetServiceMetadata(ctx context.Context, provider string) (ServiceMetadata, error)
	GetRequestHeaders(ctx context.Context, provider, body string) (map[string]string, error)
	ProcessResponse(ctx context.Context, provider, content, chatId string) (bool, error)
}

// FallbackServices is the published provider list used when marketplace
// discovery is unreachable.
func FallbackServices() []api.Service {
	now := time.Now().UnixMilli()
	return []api.Service{
		{
			Provider:      "0xf07240Efa67755B5311bc75784a061eDB47165Dd",
			ServiceType:   "inference",
			URL:           "",
			InputPrice:    "0",
			OutputPrice:   "0",
			UpdatedAt:     now,
			Model:         "gpt-oss-120b",
			Verifiability: "TeeML",
		},
		{
			Provider:      "0x3feE5a4dd5FDb8a32dDA97Bed899830605dBD9D3",
			ServiceType:   "inference",
			URL:           "",
			InputPrice:    "0",
			OutputPrice:   "0",
			UpdatedAt:     now,
			Model:         "deepseek-r1-70b",
			Verifiability: "TeeML",
		},
	}
}
