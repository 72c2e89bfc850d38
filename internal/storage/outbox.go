package storage

import "time"

// OutboxEntry is a queued outgoing message.
type OutboxEntry struct {
	ID             int64
	ClientMsgID    string
	ConversationID string
	Content        string
	MessageType    string
	Status         string // queued, sending, sent, failed
	ErrorMessage   string
	ServerMsgID    string
	CreatedAt      int64
}

// EnqueueOutbox queues a message for sending. Idempotent on client_msg_id.
func (db *DB) EnqueueOutbox(e *OutboxEntry) error {
	if e.MessageType == "" {
		e.MessageType = "text"
	}
	_, err := db.Exec(`
		INSERT INTO outbox (client_msg_id, conversation_id, content, message_type, status, created_at)
		VALUES (?, ?, ?, ?, 'queued', ?)
		ON CONFLICT(client_msg_id) DO NOTHING`,
		e.ClientMsgID, e.ConversationID, e.Content, e.MessageType, time.Now().UnixMilli())
	return err
}

// PendingOutbox returns queued entries oldest first.
func (db *DB) PendingOutbox() ([]OutboxEntry, error) {
	rows, err := db.Query(`
		SELECT id, client_msg_id, conversation_id, content, message_type, status, error_message, server_msg_id, created_at
		FROM outbox WHERE status = 'queued' ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := rows.Scan(&e.ID, &e.ClientMsgID, &e.ConversationID, &e.Content, &e.MessageType, &e.Status, &e.ErrorMessage, &e.ServerMsgID, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MarkOutboxSending marks an entry as in flight.
func (db *DB) MarkOutboxSending(clientMsgID string) error {
	_, err := db.Exec(`UPDATE outbox SET status = 'sending' WHERE client_msg_id = ?`, clientMsgID)
	return err
}

// MarkOutboxSent records the server-assigned message id.
func (db *DB) MarkOutboxSent(clientMsgID, serverMsgID string) error {
	_, err := db.Exec(`UPDATE outbox SET status = 'sent', server_msg_id = ? WHERE client_msg_id = ?`, serverMsgID, clientMsgID)
	return err
}

// MarkOutboxFailed records a permanent send failure.
func (db *DB) MarkOutboxFailed(clientMsgID, errMsg string) error {
	_, err := db.Exec(`UPDATE outbox SET status = 'failed', error_message = ? WHERE client_msg_id = ?`, errMsg, clientMsgID)
	return err
}

// RequeueOutbox returns a single in-flight entry to 'queued' after a
// transient send failure.
func (db *DB) RequeueOutbox(clientMsgID string) error {
	_, err := db.Exec(`UPDATE outbox SET status = 'queued' WHERE client_msg_id = ? AND status = 'sending'`, clientMsgID)
	return err
}

// RequeueStuckOutbox returns 'sending' entries to 'queued'. Called on daemon
// start: an entry stuck in sending means the previous process died mid-send.
func (db *DB) RequeueStuckOutbox() (int64, error) {
	res, err := db.Exec(`UPDATE outbox SET status = 'queued' WHERE status = 'sending'`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
