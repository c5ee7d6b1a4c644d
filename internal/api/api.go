package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"judge-backend/internal/database"
	"judge-backend/internal/scoring"
	"judge-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JudgeService exposes the judging API: provider discovery, profile
// metadata, scoring runs, and scorecard persistence.
type JudgeService struct {
	db       *gorm.DB
	pipeline *scoring.Pipeline
}

func NewJudgeService(db *gorm.DB, pipeline *scoring.Pipeline) *JudgeService {
	return &JudgeService{db: db, pipeline: pipeline}
}

func (s *JudgeService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(func(r *http.Request) (any, error) { return nil, nil }))
	r.Route("/judge", func(r chi.Router) {
		r.Get("/services", RestHandler(s.ListServices))
		r.Route("/{token_id}", func(r chi.Router) {
			r.Get("/metadata", RestHandler(s.GetMetadata))
			r.Post("/score", RestHandler(s.ScoreSubmission))
			r.Post("/scorecard/upload", RestHandler(s.UploadScorecard))
			r.Get("/scorecards", RestHandler(s.ListScorecards))
		})
	})
}

func (s *JudgeService) ListServices(r *http.Request) (any, error) {
	return api.ServicesResponse{Services: s.pipeline.ListServices(r.Context())}, nil
}

func (s *JudgeService) GetMetadata(r *http.Request) (any, error) {
	tokenId, err := URLParamTokenId(r)
	if err != nil {
		return nil, err
	}

	query, err := ParseRequestQueryParams[api.MetadataQuery](r)
	if err != nil {
		return nil, err
	}
	if query.Wallet == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "wallet query param required")
	}

	ctx := r.Context()

	authorized, err := s.pipeline.Authorize(ctx, tokenId, query.Wallet)
	if err != nil {
		return nil, DetailedError(http.StatusInternalServerError, "failed to process request", err)
	}
	if !authorized {
		return nil, CodedErrorf(http.StatusUnauthorized, "not owner or authorized")
	}

	profile, err := s.pipeline.LoadProfile(ctx, tokenId)
	if err != nil {
		return nil, DetailedError(http.StatusInternalServerError, "failed to process request", err)
	}

	return api.MetadataResponse{Metadata: profile}, nil
}

func (s *JudgeService) ScoreSubmission(r *http.Request) (any, error) {
	tokenId, err := URLParamTokenId(r)
	if err != nil {
		return nil, err
	}

	req, err := ParseRequest[api.ScoreRequest](r)
	if err != nil {
		return nil, err
	}
	if req.Wallet == "" || req.SubmissionId == "" || req.Text == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "wallet, submissionId, text are required")
	}

	ctx := r.Context()

	authorized, err := s.pipeline.Authorize(ctx, tokenId, req.Wallet)
	if err != nil {
		return nil, DetailedError(http.StatusInternalServerError, "failed to process request", err)
	}
	if !authorized {
		return nil, CodedErrorf(http.StatusUnauthorized, "not owner or authorized")
	}

	scorecard, err := s.pipeline.Score(ctx, tokenId, req.SubmissionId, req.Text, req.ChosenProviderAddress)
	if err != nil {
		if errors.Is(err, scoring.ErrNoServices) {
			return nil, CodedErrorf(http.StatusBadRequest, "no inference services available")
		}
		return nil, DetailedError(http.StatusInternalServerError, "failed to process request", err)
	}

	s.recordScorecard(ctx, scorecard)

	return api.ScoreResponse{Scorecard: scorecard}, nil
}

// recordScorecard keeps a local copy for the judge's history view. The run
// already succeeded; a bookkeeping failure is logged, not surfaced.
func (s *JudgeService) recordScorecard(ctx context.Context, scorecard api.Scorecard) {
	record, err := scorecardRecordFromApi(scorecard)
	if err != nil {
		slog.Error("error converting scorecard for record", "error", err)
		return
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		slog.Error("error recording scorecard", "token_id", scorecard.TokenId, "error", err)
	}
}

func (s *JudgeService) UploadScorecard(r *http.Request) (any, error) {
	tokenId, err := URLParamTokenId(r)
	if err != nil {
		return nil, err
	}

	req, err := ParseRequest[api.UploadScorecardRequest](r)
	if err != nil {
		return nil, err
	}
	if req.Scorecard.TokenId != tokenId {
		return nil, CodedErrorf(http.StatusBadRequest, "scorecard tokenId mismatch")
	}

	ctx := r.Context()

	receipt, err := s.pipeline.PersistScorecard(ctx, req.Scorecard)
	if err != nil {
		return nil, DetailedError(http.StatusInternalServerError, "failed to process request", err)
	}

	// Best effort: link the stored root hash back to the local record.
	result := s.db.WithContext(ctx).
		Model(&database.ScorecardRecord{}).
		Where("token_id = ? AND submission_id = ? AND root_hash IS NULL", tokenId, req.Scorecard.SubmissionId).
		Update("root_hash", receipt.RootHash)
	if result.Error != nil {
		slog.Error("error linking root hash to scorecard record", "token_id", tokenId, "error", result.Error)
	}

	return api.UploadScorecardResponse{RootHash: receipt.RootHash, TxHash: receipt.TxHash}, nil
}

func (s *JudgeService) ListScorecards(r *http.Request) (any, error) {
	tokenId, err := URLParamTokenId(r)
	if err != nil {
		return nil, err
	}

	var records []database.ScorecardRecord
	if err := s.db.WithContext(r.Context()).
		Where("token_id = ?", tokenId).
		Order("created_at DESC").
		Find(&records).Error; err != nil {
		slog.Error("error listing scorecard records", "token_id", tokenId, "error", err)
		return nil, DetailedError(http.StatusInternalServerError, "failed to process request", err)
	}

	runs := make([]api.ScorecardRun, 0, len(records))
	for _, record := range records {
		run, err := scorecardRunFromRecord(record)
		if err != nil {
			slog.Error("error converting scorecard record", "record_id", record.Id, "error", err)
			continue
		}
		runs = append(runs, run)
	}

	return runs, nil
}

func scorecardRecordFromApi(scorecard api.Scorecard) (database.ScorecardRecord, error) {
	scores, err := json.Marshal(scorecard.Scores)
	if err != nil {
		return database.ScorecardRecord{}, err
	}

	return database.ScorecardRecord{
		Id:                 uuid.New(),
		TokenId:            scorecard.TokenId,
		SubmissionId:       scorecard.SubmissionId,
		Scores:             scores,
		TotalWeightedScore: scorecard.TotalWeightedScore,
		Justification:      scorecard.Justification,
		Provider:           scorecard.Provider,
		Model:              scorecard.Model,
		Verified:           scorecard.Verified,
	}, nil
}

func scorecardRunFromRecord(record database.ScorecardRecord) (api.ScorecardRun, error) {
	var scores []api.ScoreEntry
	if len(record.Scores) > 0 {
		if err := json.Unmarshal(record.Scores, &scores); err != nil {
			return api.ScorecardRun{}, err
		}
	}

	return api.ScorecardRun{
		Id:                 record.Id,
		TokenId:            record.TokenId,
		SubmissionId:       record.SubmissionId,
		Scores:             scores,
		TotalWeightedScore: record.TotalWeightedScore,
		Justification:      record.Justification,
		Provider:           record.Provider,
		Model:              record.Model,
		Verified:           record.Verified,
		RootHash:           record.RootHash.String,
		CreatedAt:          record.CreatedAt,
	}, nil
}
