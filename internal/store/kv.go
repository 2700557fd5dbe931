package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// KV stores JSON values by key.
type KV struct {
	db *sqlx.DB
}

func NewKV(db *DB) *KV {
	return &KV{db: db.DB}
}

// Get decodes the value stored under key into dest. It reports false when the
// key is absent.
func (kv *KV) Get(ctx context.Context, key string, dest any) (bool, error) {
	var raw string
	err := kv.db.GetContext(ctx, &raw, kv.db.Rebind(`SELECT value FROM agent_state WHERE key = ?`), key)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false, err
	}
	return true, nil
}

func (kv *KV) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = kv.db.ExecContext(ctx, kv.db.Rebind(`
		INSERT INTO agent_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`), key, string(raw), time.Now().UTC())
	return err
}

func (kv *KV) Delete(ctx context.Context, key string) error {
	_, err := kv.db.ExecContext(ctx, kv.db.Rebind(`DELETE FROM agent_state WHERE key = ?`), key)
	return err
}
