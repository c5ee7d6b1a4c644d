package compute

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"judge-backend/pkg/api"

	"github.com/go-resty/resty/v2"
)

// GatewayClient implements Broker against the marketplace's HTTP gateway.
// The gateway fronts the on-chain ledger and provider contracts and issues
// the single-use billing headers each inference request must carry.
type GatewayClient struct {
	client *resty.Client
}

func NewGatewayClient(gatewayURL string) *GatewayClient {
	return &GatewayClient{client: resty.New().SetBaseURL(gatewayURL).SetTimeout(60 * time.Second)}
}

func (g *GatewayClient) ListServices(ctx context.Context) ([]api.Service, error) {
	var out struct {
		Services []api.Service `json:"services"`
	}
	res, err := g.client.R().SetContext(ctx).SetResult(&out).Get("/v1/services")
	if err != nil {
		return nil, fmt.Errorf("error listing services: %w", err)
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("service discovery returned status %d", res.StatusCode())
	}
	return out.Services, nil
}

func (g *GatewayClient) GetLedger(ctx context.Context) (Ledger, error) {
	var out struct {
		TotalBalance string `json:"totalBalance"`
	}
	res, err := g.client.R().SetContext(ctx).SetResult(&out).Get("/v1/ledger")
	if err != nil {
		return Ledger{}, fmt.Errorf("error reading ledger: %w", err)
	}
	if !res.IsSuccess() {
		return Ledger{}, fmt.Errorf("ledger lookup returned status %d", res.StatusCode())
	}

	balance, ok := new(big.Int).SetString(out.TotalBalance, 10)
	if !ok {
		return Ledger{}, fmt.Errorf("ledger returned unparseable balance %q", out.TotalBalance)
	}
	return Ledger{TotalBalance: balance}, nil
}

func (g *GatewayClient) DepositFund(ctx context.Context, amount *big.Int) error {
	return g.postAmount(ctx, "/v1/ledger/deposit", amount)
}

func (g *GatewayClient) AddLedger(ctx context.Context, amount *big.Int) error {
	return g.postAmount(ctx, "/v1/ledger", amount)
}

func (g *GatewayClient) postAmount(ctx context.Context, path string, amount *big.Int) error {
	res, err := g.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"amount": amount.String()}).
		Post(path)
	if err != nil {
		return fmt.Errorf("error funding ledger: %w", err)
	}
	if !res.IsSuccess() {
		return fmt.Errorf("ledger funding returned status %d: %s", res.StatusCode(), res.String())
	}
	return nil
}

func (g *GatewayClient) AcknowledgeProviderSigner(ctx context.Context, provider string) error {
	res, err := g.client.R().SetContext(ctx).Post("/v1/providers/" + provider + "/acknowledge")
	if err != nil {
		return fmt.Errorf("error acknowledging provider: %w", err)
	}
	// Conflict means the signer was acknowledged by a prior run.
	if res.StatusCode() == http.StatusConflict {
		return nil
	}
	if !res.IsSuccess() {
		return fmt.Errorf("provider acknowledgement returned status %d", res.StatusCode())
	}
	return nil
}

func (g *GatewayClient) GetServiceMetadata(ctx context.Context, provider string) (ServiceMetadata, error) {
	var out struct {
		Endpoint string `json:"endpoint"`
		Model    string `json:"model"`
	}
	res, err := g.client.R().SetContext(ctx).SetResult(&out).Get("/v1/providers/" + provider + "/metadata")
	if err != nil {
		return ServiceMetadata{}, fmt.Errorf("error fetching service metadata: %w", err)
	}
	if !res.IsSuccess() {
		return ServiceMetadata{}, fmt.Errorf("service metadata returned status %d", res.StatusCode())
	}
	return ServiceMetadata{Endpoint: out.Endpoint, Model: out.Model}, nil
}

func (g *GatewayClient) GetRequestHeaders(ctx context.Context, provider, body string) (map[string]string, error) {
	var out struct {
		Headers map[string]string `json:"headers"`
	}
	res, err := g.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"body": body}).
		SetResult(&out).
		Post("/v1/providers/" + provider + "/headers")
	if err != nil {
		return nil, fmt.Errorf("error generating request headers: %w", err)
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("header generation returned status %d", res.StatusCode())
	}
	return out.Headers, nil
}

func (g *GatewayClient) ProcessResponse(ctx context.Context, provider, content, chatId string) (bool, error) {
	var out struct {
		Valid bool `json:"valid"`
	}
	res, err := g.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"content": content, "chatId": chatId}).
		SetResult(&out).
		Post("/v1/providers/" + provider + "/verify")
	if err != nil {
		return false, fmt.Errorf("error verifying response: %w", err)
	}
	if !res.IsSuccess() {
		return false, fmt.Errorf("response verification returned status %d", res.StatusCode())
	}
	return out.Valid, nil
}
