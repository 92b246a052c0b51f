package commands

import (
	"encoding/json"
	"time"

	"aegis/contexts/model-governance/governance-service/ports"
)

// Governance events are partitioned by proposal so proposal-scoped
// consumers observe a stable order. Registry events partition on the
// registry singleton key.
func newGovernanceEnvelope(
	eventID string,
	eventType string,
	partitionKey string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:       eventID,
		EventType:     eventType,
		OccurredAt:    occurredAt.UTC(),
		SourceService: "governance-service",
		TraceID:       eventID,
		SchemaVersion: 1,
		PartitionKey:  partitionKey,
		Data:          payload,
	}, nil
}
