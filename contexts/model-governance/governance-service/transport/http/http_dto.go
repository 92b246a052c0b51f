package httptransport

type CreateProposalRequest struct {
	Description          string `json:"description"`
	TargetParam          string `json:"target_param"`
	ArtifactRef          string `json:"artifact_ref"`
	ProofRef             string `json:"proof_ref,omitempty"`
	CompressionTag       string `json:"compression_tag,omitempty"`
	QuorumThreshold      int64  `json:"quorum_threshold"`
	Deadline             string `json:"deadline"`
	RequiresVerification bool   `json:"requires_verification"`
}

type ProposalDTO struct {
	ProposalID           string `json:"proposal_id"`
	CreatorID            string `json:"creator_id"`
	Description          string `json:"description"`
	TargetParam          string `json:"target_param"`
	ProposedArtifactRef  string `json:"proposed_artifact_ref"`
	ProposedProofRef     string `json:"proposed_proof_ref,omitempty"`
	ProposedCompression  string `json:"proposed_compression,omitempty"`
	QuorumThreshold      int64  `json:"quorum_threshold"`
	Deadline             string `json:"deadline"`
	RequiresVerification bool   `json:"requires_verification"`
	VotesFor             int64  `json:"votes_for"`
	VotesAgainst         int64  `json:"votes_against"`
	Status               string `json:"status"`
	TrainingJobID        string `json:"training_job_id,omitempty"`
	CreatedAt            string `json:"created_at"`
	TalliedAt            string `json:"tallied_at,omitempty"`
	ExecutedAt           string `json:"executed_at,omitempty"`
}

type CreateProposalResponse struct {
	Item     ProposalDTO `json:"item"`
	Replayed bool        `json:"replayed,omitempty"`
}

type GetProposalResponse struct {
	Item ProposalDTO `json:"item"`
}

type ListProposalsResponse struct {
	Items []ProposalDTO `json:"items"`
}

type CancelProposalResponse struct {
	Item ProposalDTO `json:"item"`
}

type CastVoteRequest struct {
	Direction string `json:"direction"`
}

type VoteDTO struct {
	ProposalID string `json:"proposal_id"`
	VoterID    string `json:"voter_id"`
	Direction  string `json:"direction"`
	Weight     int64  `json:"weight"`
	CastAt     string `json:"cast_at"`
}

type CastVoteResponse struct {
	Vote     VoteDTO     `json:"vote"`
	Proposal ProposalDTO `json:"proposal"`
	Replayed bool        `json:"replayed,omitempty"`
}

type ListVotesResponse struct {
	Items []VoteDTO `json:"items"`
}

type TallyResponse struct {
	Item    ProposalDTO `json:"item"`
	Changed bool        `json:"changed"`
}

type SubmitAttestationRequest struct {
	Verified bool   `json:"verified"`
	ProofRef string `json:"proof_ref"`
}

type AttestationResponse struct {
	ProposalID string `json:"proposal_id"`
	Verified   bool   `json:"verified"`
	ProofRef   string `json:"proof_ref"`
	AttestorID string `json:"attestor_id"`
	RecordedAt string `json:"recorded_at"`
}

type ExecuteProposalRequest struct {
	ExpectedRegistryVersion uint64 `json:"expected_registry_version"`
}

type ModelDTO struct {
	ArtifactRef    string `json:"artifact_ref"`
	ProofRef       string `json:"proof_ref,omitempty"`
	CompressionTag string `json:"compression_tag,omitempty"`
	Version        uint64 `json:"version"`
	UpdatedAt      string `json:"updated_at"`
}

type ExecuteProposalResponse struct {
	Registry        ModelDTO    `json:"registry"`
	Item            ProposalDTO `json:"item"`
	AlreadyExecuted bool        `json:"already_executed,omitempty"`
}

type GetModelResponse struct {
	Item ModelDTO `json:"item"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
