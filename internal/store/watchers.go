package store

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"github.com/archipel-project/vmagent/internal/models"
)

// WatcherStore persists watcher subscriptions for a single VM's agent
// instance. A watcher's on/off action names are resolved against the
// agent's handler registry by the caller; this store only knows strings.
type WatcherStore struct {
	db *QueryInterceptor
}

func NewWatcherStore(db *QueryInterceptor) *WatcherStore {
	return &WatcherStore{db: db}
}

func (s *WatcherStore) Save(ctx context.Context, w models.Watcher) error {
	_, err := s.db.ExecContext(ctx, queryInsertWatcher,
		w.Name, w.TargetJID, w.TriggerName, w.OnAction, w.OffAction, int(w.State))
	return err
}

func (s *WatcherStore) Delete(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, queryDeleteWatcher, name)
	return err
}

// LoadAll replays every persisted watcher, in name order. Resolving
// OnAction/OffAction against the handler registry, and skipping rows that
// fail to resolve, is the caller's responsibility.
func (s *WatcherStore) LoadAll(ctx context.Context) ([]models.Watcher, error) {
	q, args, err := sq.Select("name", "targetjid", "triggername", "triggeronaction", "triggeroffaction", "state").
		From("watchers").
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

	var out []models.Watcher
	for rows.Next() {
		var w models.Watcher
		var state int
		if err := rows.Scan(&w.Name, &w.TargetJID, &w.TriggerName, &w.OnAction, &w.OffAction, &state); err != nil {
			return nil, err
		}
		w.State = models.OnOff(state)
		out = append(out, w)
	}
	return out, rows.Err()
}
