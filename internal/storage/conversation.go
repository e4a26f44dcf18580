package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// SaveConversationState upserts the per-user checkpoint. Replace-on-write
// keeps exactly one live row per user email.
func (s *Store) SaveConversationState(cs ConversationState) error {
	data := cs.CollectedData
	if data == nil {
		data = map[string]string{}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling collected data: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO conversation_state (user_email, process_type, current_step, collected_data, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_email) DO UPDATE SET
			process_type = excluded.process_type,
			current_step = excluded.current_step,
			collected_data = excluded.collected_data,
			updated_at = excluded.updated_at`,
		cs.UserEmail, cs.ProcessType, cs.CurrentStep, string(b),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetConversationState(userEmail string) (ConversationState, error) {
	var cs ConversationState
	var data, updatedAt string
	err := s.db.QueryRow(`
		SELECT user_email, process_type, current_step, collected_data, updated_at
		FROM conversation_state WHERE user_email = ?`, userEmail,
	).Scan(&cs.UserEmail, &cs.ProcessType, &cs.CurrentStep, &data, &updatedAt)
	if err == sql.ErrNoRows {
		return ConversationState{}, ErrNotFound
	}
	if err != nil {
		return ConversationState{}, err
	}
	if err := json.Unmarshal([]byte(data), &cs.CollectedData); err != nil {
		return ConversationState{}, fmt.Errorf("unmarshaling collected data: %w", err)
	}
	t, err := time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return ConversationState{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	cs.UpdatedAt = t
	return cs, nil
}

// ClearConversationState deletes the user's checkpoint. Clearing a missing
// row is a no-op.
func (s *Store) ClearConversationState(userEmail string) error {
	_, err := s.db.Exec(`DELETE FROM conversation_state WHERE user_email = ?`, userEmail)
	return err
}
