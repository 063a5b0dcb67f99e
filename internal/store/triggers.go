package store

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/archipel-project/vmagent/internal/models"
)

// TriggerStore persists triggers for a single VM's agent instance.
type TriggerStore struct {
	db *QueryInterceptor
}

func NewTriggerStore(db *QueryInterceptor) *TriggerStore {
	return &TriggerStore{db: db}
}

// Save inserts or updates a trigger.
func (s *TriggerStore) Save(ctx context.Context, t models.Trigger) error {
	_, err := s.db.ExecContext(ctx, queryInsertTrigger,
		t.Name, t.Description, int(t.Mode), t.CheckMethod, t.CheckInterval, int(t.State))
	return err
}

// Delete removes a trigger by name.
func (s *TriggerStore) Delete(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, queryDeleteTrigger, name)
	return err
}

// LoadAll replays every persisted trigger, in name order, for the agent to
// rebuild its in-memory trigger registry at startup.
func (s *TriggerStore) LoadAll(ctx context.Context) ([]models.Trigger, error) {
	q, args, err := sq.Select("name", "description", "mode", "check_method", "check_interval", "state").
		From("triggers").
		OrderBy("name ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Trigger
	for rows.Next() {
		var t models.Trigger
		var mode, state int
		if err := rows.Scan(&t.Name, &t.Description, &mode, &t.CheckMethod, &t.CheckInterval, &state); err != nil {
			return nil, err
		}
		t.Mode = models.TriggerMode(mode)
		t.State = models.OnOff(state)
		out = append(out, t)
	}
	return out, rows.Err()
}
