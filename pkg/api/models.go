package api

import (
	"time"

	"github.com/google/uuid"
)

// RubricCriterion is one weighted judging criterion. Weights are fractions
// chosen by the profile author; they are not required to sum to 1.
type RubricCriterion struct {
	Criterion   string  `json:"criterion"`
	Weight      float64 `json:"weight"`
	Description string  `json:"description,omitempty"`
}

type JudgePrompts struct {
	System       string `json:"system"`
	UserTemplate string `json:"userTemplate,omitempty"`
}

// JudgeProfile is the decrypted rubric document bound to a judge token.
// It is decrypted on demand and never persisted in plaintext.
type JudgeProfile struct {
	Version   string            `json:"version"`
	Rubric    []RubricCriterion `json:"rubric"`
	Prompts   JudgePrompts      `json:"prompts"`
	ModelHint string            `json:"modelHint,omitempty"`
}

type ScoreEntry struct {
	Criterion string  `json:"criterion"`
	Score     float64 `json:"score"`
	Weight    float64 `json:"weight"`
}

// Scorecard is the result of one judging run against one submission. It is
// immutable after creation and only persisted by an explicit upload call.
type Scorecard struct {
	TokenId            uint64       `json:"tokenId"`
	SubmissionId       string       `json:"submissionId"`
	Scores             []ScoreEntry `json:"scores"`
	TotalWeightedScore float64      `json:"totalWeightedScore"`
	Justification      string       `json:"justification"`
	Provider           string       `json:"provider"`
	Model              string       `json:"model"`
	Verified           bool         `json:"verified"`
	CreatedAt          int64        `json:"createdAt"`
}

// Service describes an inference provider on the compute marketplace.
// Prices are decimal wei strings since they exceed int64 range.
type Service struct {
	Provider      string `json:"provider"`
	ServiceType   string `json:"serviceType"`
	URL           string `json:"url"`
	InputPrice    string `json:"inputPrice"`
	OutputPrice   string `json:"outputPrice"`
	UpdatedAt     int64  `json:"updatedAt"`
	Model         string `json:"model"`
	Verifiability string `json:"verifiability"`
}

type ServicesResponse struct {
	Services []Service `json:"services"`
}

type MetadataQuery struct {
	Wallet string `schema:"wallet"`
}

type MetadataResponse struct {
	Metadata JudgeProfile `json:"metadata"`
}

type ScoreRequest struct {
	Wallet                string `json:"wallet"`
	SubmissionId          string `json:"submissionId"`
	Text                  string `json:"text"`
	ChosenProviderAddress string `json:"chosenProviderAddress,omitempty"`
}

type ScoreResponse struct {
	Scorecard Scorecard `json:"scorecard"`
}

type UploadScorecardRequest struct {
	Scorecard Scorecard `json:"scorecard"`
}

type UploadScorecardResponse struct {
	RootHash string `json:"rootHash"`
	TxHash   string `json:"txHash"`
}

type ScorecardRun struct {
	Id                 uuid.UUID    `json:"id"`
	TokenId            uint64       `json:"tokenId"`
	SubmissionId       string       `json:"submissionId"`
	Scores             []ScoreEntry `json:"scores"`
	TotalWeightedScore float64      `json:"totalWeightedScore"`
	Justification      string       `json:"justification"`
	Provider           string       `json:"provider"`
	Model              string       `json:"model"`
	Verified           bool         `json:"verified"`
	RootHash           string       `json:"rootHash,omitempty"`
	CreatedAt          time.Time    `json:"createdAt"`
}

type CreateSubmissionRequest struct {
	Team  string `json:"team"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

type Submission struct {
	Id        uuid.UUID `json:"id"`
	Team      string    `json:"team"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

type CreateDisputeRequest struct {
	Reason string `json:"reason"`
}

type Dispute struct {
	Id           uuid.UUID `json:"id"`
	SubmissionId uuid.UUID `json:"submissionId"`
	Reason       string    `json:"reason"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
}
