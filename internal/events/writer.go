package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"timeclock/internal/repo"
)

type Writer struct {
	Now func() time.Time
}

type EventPayload map[string]any

// Append records an audit event inside the caller's transaction.
func (w Writer) Append(ctx context.Context, q repo.Querier, evtType, userID, entityKind, entityID, actorID string, payload EventPayload) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := repo.FormatTime(w.Now())
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = q.ExecContext(ctx, `INSERT INTO events(ts,type,user_id,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`,
		ts, evtType, nullable(userID), entityKind, nullable(entityID), actorID, string(data))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
