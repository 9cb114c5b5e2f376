package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/resumelab/cv-optimizer/entity"
)

// Job Record field names accepted by JobStore.Update. They match the Postgres
// column names; the redis backend maps them to hash fields one to one.
const (
	FieldStatus       = "status"
	FieldProgress     = "progress"
	FieldStep         = "step"
	FieldResult       = "result"
	FieldErrorMessage = "error_message"
	FieldErrorCode    = "error_code"
	FieldCancelled    = "cancelled"
	FieldCompletedAt  = "completed_at"
)

// JobStore is the Job Record store. Two backends exist (Postgres rows and
// redis hashes); both provide the same semantics:
//
//   - Update merges fields into the record and always touches last_updated.
//     There is no optimistic locking: concurrent updates interleave at field
//     granularity, last writer wins. Updates against a terminal record are
//     refused (ErrTerminalState), so completed/error states never regress.
//   - Get is owner-scoped and fails closed: a record belonging to a different
//     owner is indistinguishable from a missing one.
type JobStore interface {
	Create(ctx context.Context, job *entity.OptimizationJob) error
	Update(ctx context.Context, jobID uuid.UUID, fields map[string]interface{}) error
	Get(ctx context.Context, jobID, ownerID uuid.UUID) (*entity.OptimizationJob, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]entity.OptimizationJob, error)
}
