package store

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"peregrine/internal/logger"
)

// JobEvent is one decoded crawl_jobs_events notification.
type JobEvent struct {
	Kind      string    `json:"kind"`
	JobID     uuid.UUID `json:"id"`
	Status    string    `json:"status"`
	ProjectID uuid.UUID `json:"project_id"`
}

// Listener holds a dedicated pgx connection subscribed to the job events
// channel. The connection is separate from the pooled *sql.DB because LISTEN
// pins a session.
type Listener struct {
	conn *pgx.Conn
	log  logger.Logger
}

// NewListener connects and subscribes. The caller owns reconnection: when
// Events returns, the listener is dead and must be replaced.
func NewListener(ctx context.Context, dsn string, log logger.Logger) (*Listener, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Exec(ctx, "LISTEN crawl_jobs_events"); err != nil {
		_ = conn.Close(ctx)
		return nil, err
	}
	return &Listener{conn: conn, log: log}, nil
}

// Events delivers notifications until the context is cancelled or the
// connection breaks, then closes the channel.
func (l *Listener) Events(ctx context.Context) <-chan JobEvent {
	events := make(chan JobEvent)

	go func() {
		defer close(events)
		for {
			notification, err := l.conn.WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					l.log.Warn("job event listener disconnected", logger.Err(err))
				}
				return
			}

			var event JobEvent
			if err := json.Unmarshal([]byte(notification.Payload), &event); err != nil {
				l.log.Warn("malformed job event payload",
					logger.String("payload", notification.Payload),
					logger.Err(err))
				continue
			}

			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events
}

// Close tears the listening session down.
func (l *Listener) Close(ctx context.Context) error {
	return l.conn.Close(ctx)
}
