package queries

import (
	"context"

	"aegis/contexts/model-governance/governance-service/domain/entities"
	"aegis/contexts/model-governance/governance-service/ports"
)

// RegistryUseCase serves the read side of the model registry.
type RegistryUseCase struct {
	Registry ports.RegistryRepository
}

// CurrentModel returns the registry singleton. It always succeeds once the
// genesis record exists.
func (uc RegistryUseCase) CurrentModel(ctx context.Context) (entities.ModelRecord, error) {
	return uc.Registry.GetRegistry(ctx)
}
