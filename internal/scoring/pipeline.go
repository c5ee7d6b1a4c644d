package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"judge-backend/internal/compute"
	"judge-backend/internal/crypto"
	"judge-backend/internal/inft"
	"judge-backend/internal/storage"
	"judge-backend/pkg/api"
)

// ErrNoServices means neither discovery nor the fallback list produced a
// provider to score with.
var ErrNoServices = errors.New("no inference services available")

// Pipeline wires the scoring collaborators together. All dependencies are
// injected at construction; concurrent requests share nothing but these
// handles, so independent pipeline runs may interleave freely.
type Pipeline struct {
	Registry    inft.Registry
	Fetcher     storage.Fetcher
	MetadataKey string
	Broker      compute.BrokerProvider
	Uploader    storage.Uploader
}

// Authorize gates every profile read and scoring run.
func (p *Pipeline) Authorize(ctx context.Context, tokenId uint64, wallet string) (bool, error) {
	return inft.IsAuthorizedOrOwner(ctx, p.Registry, tokenId, wallet)
}

// LoadProfile resolves the token's storage pointer, fetches the encrypted
// payload, and decrypts it into a judge profile.
func (p *Pipeline) LoadProfile(ctx context.Context, tokenId uint64) (api.JudgeProfile, error) {
	pointer, err := p.Registry.EncryptedURI(ctx, tokenId)
	if err != nil {
		return api.JudgeProfile{}, err
	}

	payload, err := p.Fetcher.FetchEncryptedPayload(ctx, pointer)
	if err != nil {
		return api.JudgeProfile{}, err
	}

	plaintext, err := crypto.Decrypt(payload, p.MetadataKey)
	if err != nil {
		return api.JudgeProfile{}, err
	}

	var profile api.JudgeProfile
	if err := json.Unmarshal([]byte(plaintext), &profile); err != nil {
		return api.JudgeProfile{}, fmt.Errorf("invalid metadata JSON after decryption: %w", err)
	}

	return profile, nil
}

// ListServices discovers marketplace providers. Discovery failure degrades
// to the published fallback list rather than surfacing an error.
func (p *Pipeline) ListServices(ctx context.Context) []api.Service {
	broker, err := p.Broker()
	if err != nil {
		slog.Warn("broker unavailable, using fallback providers", "error", err)
		return compute.FallbackServices()
	}

	services, err := broker.ListServices(ctx)
	if err != nil {
		slog.Warn("service discovery failed, using fallback providers", "error", err)
		return compute.FallbackServices()
	}

	return services
}

func (p *Pipeline) selectProvider(ctx context.Context, profile api.JudgeProfile, chosen string) (string, error) {
	if chosen != "" {
		return chosen, nil
	}

	services := p.ListServices(ctx)
	if len(services) == 0 {
		return "", ErrNoServices
	}

	for _, service := range services {
		if service.Model == profile.ModelHint {
			return service.Provider, nil
		}
	}
	return services[0].Provider, nil
}

// Score runs one judging invocation end to end and returns the scorecard in
// memory. Persistence is a separate, explicit step.
func (p *Pipeline) Score(ctx context.Context, tokenId uint64, submissionId, text, chosenProvider string) (api.Scorecard, error) {
	profile, err := p.LoadProfile(ctx, tokenId)
	if err != nil {
		return api.Scorecard{}, err
	}

	providerAddress, err := p.selectProvider(ctx, profile, chosenProvider)
	if err != nil {
		return api.Scorecard{}, err
	}

	prompt := BuildPrompt(profile, text)

	result, err := compute.NewInvoker(p.Broker).RunInference(ctx, providerAddress, prompt)
	if err != nil {
		return api.Scorecard{}, err
	}

	normalized := Normalize(result.Answer, profile.Rubric)

	return api.Scorecard{
		TokenId:            tokenId,
		SubmissionId:       submissionId,
		Scores:             normalized.Scores,
		TotalWeightedScore: normalized.TotalWeightedScore,
		Justification:      normalized.Justification,
		Provider:           providerAddress,
		Model:              result.Model,
		Verified:           result.Verified,
		CreatedAt:          time.Now().UnixMilli(),
	}, nil
}

// PersistScorecard writes a finished scorecard to the storage network.
// Identical scorecards produce identical root hashes, so re-invoking after a
// failure is safe.
func (p *Pipeline) PersistScorecard(ctx context.Context, scorecard api.Scorecard) (storage.UploadReceipt, error) {
	return storage.UploadJSON(ctx, p.Uploader, scorecard)
}
