package store

const (
	queryInsertTrigger = `
		INSERT INTO triggers (name, description, mode, check_method, check_interval, state)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			description    = excluded.description,
			mode           = excluded.mode,
			check_method   = excluded.check_method,
			check_interval = excluded.check_interval,
			state          = excluded.state
	`

	queryDeleteTrigger = `DELETE FROM triggers WHERE name = ?`

	queryInsertWatcher = `
		INSERT INTO watchers (name, targetjid, triggername, triggeronaction, triggeroffaction, state)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			targetjid        = excluded.targetjid,
			triggername      = excluded.triggername,
			triggeronaction  = excluded.triggeronaction,
			triggeroffaction = excluded.triggeroffaction,
			state            = excluded.state
	`

	queryDeleteWatcher = `DELETE FROM watchers WHERE name = ?`

	queryUpsertPermission = `
		INSERT INTO permissions (subject, action, granted)
		VALUES (?, ?, ?)
		ON CONFLICT (subject, action) DO UPDATE SET
			granted = excluded.granted
	`

	queryGetPermission = `
		SELECT granted FROM permissions
		WHERE subject = ? AND action = ?
	`
)
