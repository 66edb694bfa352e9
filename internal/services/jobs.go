package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"peregrine/internal/store"
)

var (
	// ErrProjectNotFound is returned when an enqueue names an unknown project.
	ErrProjectNotFound = errors.New("project not found")
	// ErrJobAlreadyActive is returned when the project already has a pending
	// or processing job. One audit per site at a time.
	ErrJobAlreadyActive = errors.New("project already has an active job")
	// ErrJobNotFound is returned when a cancel names an unknown job.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobNotCancellable is returned when the job is already terminal.
	ErrJobNotCancellable = errors.New("job is not pending or processing")
)

// JobService encapsulates job enqueue and cancel so HTTP handlers do not
// depend directly on the store implementation.
type JobService interface {
	Enqueue(ctx context.Context, projectID uuid.UUID, settings json.RawMessage) (uuid.UUID, error)
	Cancel(ctx context.Context, id uuid.UUID) error
}

type jobService struct {
	st *store.Store
}

func NewJobService(st *store.Store) JobService {
	return &jobService{st: st}
}

// Enqueue creates a pending job for the project. When the request carries no
// settings, the project's stored crawl settings become the snapshot; the
// worker layers its own defaults under whatever is missing at dispatch time.
func (s *jobService) Enqueue(ctx context.Context, projectID uuid.UUID, settings json.RawMessage) (uuid.UUID, error) {
	project, err := s.st.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, ErrProjectNotFound
		}
		return uuid.Nil, err
	}

	active, err := s.st.HasActiveJob(ctx, project.ID)
	if err != nil {
		return uuid.Nil, err
	}
	if active {
		return uuid.Nil, ErrJobAlreadyActive
	}

	if len(settings) == 0 && project.CrawlSettings.Valid {
		settings = json.RawMessage(project.CrawlSettings.RawMessage)
	}

	return s.st.CreateJob(ctx, project.ID, settings, uuid.NullUUID{})
}

// Cancel flips a pending or processing job to cancelled. A processing job
// stops cooperatively via the status notification.
func (s *jobService) Cancel(ctx context.Context, id uuid.UUID) error {
	ok, err := s.st.CancelJob(ctx, id)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	if _, err := s.st.GetJobStatus(ctx, id); errors.Is(err, sql.ErrNoRows) {
		return ErrJobNotFound
	}
	return ErrJobNotCancellable
}
