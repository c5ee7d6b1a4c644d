package compute

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Ledger thresholds in wei: top up by 0.1 when the balance drops below 0.001.
var (
	minLedgerBalance = big.NewInt(1_000_000_000_000_000)
	topUpAmount      = big.NewInt(100_000_000_000_000_000)
)

// UpstreamUnavailableError means the marketplace ledger could not be reached.
// This aborts the invocation; there is nothing to retry against.
type UpstreamUnavailableError struct {
	Err error
}

func (e *UpstreamUnavailableError) Error() string {
	return fmt.Sprintf("compute network is currently unavailable: %v", e.Err)
}

func (e *UpstreamUnavailableError) Unwrap() error {
	return e.Err
}

// InferenceFailureError reports a non-2xx response from the provider's
// completion endpoint.
type InferenceFailureError struct {
	StatusCode int
	Status     string
}

func (e *InferenceFailureError) Error() string {
	return fmt.Sprintf("inference failed: %d %s", e.StatusCode, e.Status)
}

// InferenceResult carries the provider's answer plus the attestation flag.
// Verified=false with a non-nil result means the answer is usable but the
// marketplace could not attest it.
type InferenceResult struct {
	Answer   string
	Verified bool
	Model    string
	Endpoint string
}

// Invoker drives one inference invocation through its fixed step sequence:
// account check, conditional top-up, provider acknowledgement, metadata
// fetch, header generation, dispatch, extraction, verification. Every
// external call is attempted exactly once.
type Invoker struct {
	broker BrokerProvider
}

func NewInvoker(broker BrokerProvider) *Invoker {
	return &Invoker{broker: broker}
}

func (inv *Invoker) RunInference(ctx context.Context, providerAddress, prompt string) (InferenceResult, error) {
	broker, err := inv.broker()
	if err != nil {
		return InferenceResult{}, &UpstreamUnavailableError{Err: err}
	}

	ledger, err := broker.GetLedger(ctx)
	if err != nil {
		return InferenceResult{}, &UpstreamUnavailableError{Err: err}
	}

	if ledger.TotalBalance.Cmp(minLedgerBalance) < 0 {
		if err := broker.DepositFund(ctx, topUpAmount); err != nil {
			slog.Warn("ledger deposit failed, falling back to addLedger", "error", err)
			if err := broker.AddLedger(ctx, topUpAmount); err != nil {
				return InferenceResult{}, fmt.Errorf("error funding compute ledger: %w", err)
			}
		}
	}

	// Already-acknowledged shows up as success; anything else is logged and
	// tolerated since a prior run may have acknowledged this provider.
	if err := broker.AcknowledgeProviderSigner(ctx, providerAddress); err != nil {
		slog.Warn("provider acknowledgement failed, continuing", "provider", providerAddress, "error", err)
	}

	meta, err := broker.GetServiceMetadata(ctx, providerAddress)
	if err != nil {
		return InferenceResult{}, fmt.Errorf("error resolving service metadata for %s: %w", providerAddress, err)
	}

	// Headers are single-use and tied to billing: generate them immediately
	// before the request they authorize, bound to the exact messages array
	// the completion call will send.
	signedBody, err := serializeMessages(prompt)
	if err != nil {
		return InferenceResult{}, err
	}
	headers, err := broker.GetRequestHeaders(ctx, providerAddress, signedBody)
	if err != nil {
		return InferenceResult{}, fmt.Errorf("error generating request headers: %w", err)
	}

	answer, chatId, err := inv.dispatch(ctx, meta, headers, prompt)
	if err != nil {
		return InferenceResult{}, err
	}

	verified := false
	valid, err := broker.ProcessResponse(ctx, providerAddress, answer, chatId)
	if err != nil {
		slog.Warn("response verification failed, returning unverified result", "provider", providerAddress, "error", err)
	} else {
		verified = valid
	}

	return InferenceResult{Answer: answer, Verified: verified, Model: meta.Model, Endpoint: meta.Endpoint}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// serializeMessages renders the messages array the marketplace signs billing
// headers over. It must match the array dispatched to the provider.
func serializeMessages(prompt string) (string, error) {
	body, err := json.Marshal([]chatMessage{{Role: "user", Content: prompt}})
	if err != nil {
		return "", fmt.Errorf("error serializing messages for header signing: %w", err)
	}
	return string(body), nil
}

func (inv *Invoker) dispatch(ctx context.Context, meta ServiceMetadata, headers map[string]string, prompt string) (string, string, error) {
	opts := []option.RequestOption{
		option.WithBaseURL(strings.TrimSuffix(meta.Endpoint, "/") + "/"),
		option.WithMaxRetries(0),
	}
	for key, value := range headers {
		opts = append(opts, option.WithHeader(key, value))
	}

	client := openai.NewClient(opts...)

	res, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		Model:    meta.Model,
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", "", &InferenceFailureError{StatusCode: apiErr.StatusCode, Status: http.StatusText(apiErr.StatusCode)}
		}
		return "", "", fmt.Errorf("inference request failed: %w", err)
	}

	if len(res.Choices) == 0 {
		return "", "", fmt.Errorf("provider returned no choices")
	}

	return res.Choices[0].Message.Content, res.ID, nil
}
