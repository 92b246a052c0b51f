package marketplaceadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"aegis/contexts/model-governance/governance-service/ports"
)

// Client submits training jobs to the external compute marketplace over
// HTTP. Job acceptance is asynchronous on the marketplace side; the returned
// job id is the only contract the governance service records.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

func NewClient(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

type trainingJobRequestDTO struct {
	ProposalID     string `json:"proposal_id"`
	ArtifactRef    string `json:"artifact_ref"`
	TrainingParams string `json:"training_params"`
	ProofRequired  bool   `json:"proof_required"`
}

type trainingJobResponseDTO struct {
	JobID string `json:"job_id"`
}

func (c *Client) RequestTrainingJob(ctx context.Context, request ports.TrainingJobRequest) (string, error) {
	payload, err := json.Marshal(trainingJobRequestDTO{
		ProposalID:     request.ProposalID,
		ArtifactRef:    request.ArtifactRef,
		TrainingParams: request.TrainingParams,
		ProofRequired:  request.ProofRequired,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/jobs", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("request training job: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("request training job: marketplace returned %d", resp.StatusCode)
	}

	var body trainingJobResponseDTO
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode training job response: %w", err)
	}
	if strings.TrimSpace(body.JobID) == "" {
		return "", fmt.Errorf("decode training job response: empty job id")
	}

	c.logger.Info("training job accepted by marketplace",
		"event", "marketplace_job_accepted",
		"module", "model-governance/governance-service",
		"layer", "adapter",
		"proposal_id", request.ProposalID,
		"job_id", body.JobID,
	)
	return body.JobID, nil
}

var _ ports.ComputeMarketplace = (*Client)(nil)
