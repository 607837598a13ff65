package ports

import (
	"time"

	"github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/domain"
)

type Metrics interface {
	ObserveDisclosure(kind domain.FieldKind, decision domain.Disclosure)
	ObserveOperation(operation, outcome string, start time.Time)
}
