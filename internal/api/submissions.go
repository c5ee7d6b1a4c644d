package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"judge-backend/internal/database"
	"judge-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SubmissionService stores hacker submissions and their disputes.
type SubmissionService struct {
	db *gorm.DB
}

func NewSubmissionService(db *gorm.DB) *SubmissionService {
	return &SubmissionService{db: db}
}

func (s *SubmissionService) AddRoutes(r chi.Router) {
	r.Route("/submissions", func(r chi.Router) {
		r.Post("/", RestHandler(s.CreateSubmission))
		r.Get("/", RestHandler(s.ListSubmissions))
		r.Get("/{submission_id}", RestHandler(s.GetSubmission))
		r.Post("/{submission_id}/disputes", RestHandler(s.CreateDispute))
	})
	r.Get("/disputes", RestHandler(s.ListDisputes))
}

func (s *SubmissionService) CreateSubmission(r *http.Request) (any, error) {
	req, err := ParseRequest[api.CreateSubmissionRequest](r)
	if err != nil {
		return nil, err
	}
	if req.Team == "" || req.Title == "" || req.Text == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "team, title, text are required")
	}

	submission := database.Submission{
		Id:        uuid.New(),
		Team:      req.Team,
		Title:     req.Title,
		Text:      req.Text,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.db.WithContext(r.Context()).Create(&submission).Error; err != nil {
		slog.Error("error creating submission", "error", err)
		return nil, DetailedError(http.StatusInternalServerError, "failed to create submission", err)
	}

	return submissionFromRecord(submission), nil
}

func (s *SubmissionService) ListSubmissions(r *http.Request) (any, error) {
	var records []database.Submission
	if err := s.db.WithContext(r.Context()).Order("created_at DESC").Find(&records).Error; err != nil {
		slog.Error("error listing submissions", "error", err)
		return nil, DetailedError(http.StatusInternalServerError, "failed to list submissions", err)
	}

	submissions := make([]api.Submission, len(records))
	for i, record := range records {
		submissions[i] = submissionFromRecord(record)
	}
	return submissions, nil
}

func (s *SubmissionService) GetSubmission(r *http.Request) (any, error) {
	submissionId, err := urlParamUUID(r, "submission_id")
	if err != nil {
		return nil, err
	}

	var record database.Submission
	if err := s.db.WithContext(r.Context()).First(&record, "id = ?", submissionId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "submission not found")
		}
		slog.Error("error getting submission", "error", err)
		return nil, DetailedError(http.StatusInternalServerError, "failed to retrieve submission", err)
	}

	return submissionFromRecord(record), nil
}

func (s *SubmissionService) CreateDispute(r *http.Request) (any, error) {
	submissionId, err := urlParamUUID(r, "submission_id")
	if err != nil {
		return nil, err
	}

	req, err := ParseRequest[api.CreateDisputeRequest](r)
	if err != nil {
		return nil, err
	}
	if req.Reason == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "reason is required")
	}

	ctx := r.Context()

	var submission database.Submission
	if err := s.db.WithContext(ctx).First(&submission, "id = ?", submissionId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "submission not found")
		}
		slog.Error("error getting submission for dispute", "error", err)
		return nil, DetailedError(http.StatusInternalServerError, "failed to retrieve submission", err)
	}

	dispute := database.Dispute{
		Id:           uuid.New(),
		SubmissionId: submissionId,
		Reason:       req.Reason,
		Status:       database.DisputeOpen,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.db.WithContext(ctx).Create(&dispute).Error; err != nil {
		slog.Error("error creating dispute", "error", err)
		return nil, DetailedError(http.StatusInternalServerError, "failed to create dispute", err)
	}

	return disputeFromRecord(dispute), nil
}

func (s *SubmissionService) ListDisputes(r *http.Request) (any, error) {
	var records []database.Dispute
	if err := s.db.WithContext(r.Context()).Order("created_at DESC").Find(&records).Error; err != nil {
		slog.Error("error listing disputes", "error", err)
		return nil, DetailedError(http.StatusInternalServerError, "failed to list disputes", err)
	}

	disputes := make([]api.Dispute, len(records))
	for i, record := range records {
		disputes[i] = disputeFromRecord(record)
	}
	return disputes, nil
}

func urlParamUUID(r *http.Request, key string) (uuid.UUID, error) {
	param := chi.URLParam(r, key)

	if len(param) == 0 {
		return uuid.Nil, CodedErrorf(http.StatusBadRequest, "missing {%v} url parameter", key)
	}

	id, err := uuid.Parse(param)
	if err != nil {
		return uuid.Nil, CodedErrorf(http.StatusBadRequest, "invalid uuid '%v' url parameter provided", key)
	}

	return id, nil
}

func submissionFromRecord(record database.Submission) api.Submission {
	return api.Submission{
		Id:        record.Id,
		Team:      record.Team,
		Title:     record.Title,
		Text:      record.Text,
		CreatedAt: record.CreatedAt,
	}
}

func disputeFromRecord(record database.Dispute) api.Dispute {
	return api.Dispute{
		Id:           record.Id,
		SubmissionId: record.SubmissionId,
		Reason:       record.Reason,
		Status:       record.Status,
		CreatedAt:    record.CreatedAt,
	}
}
