package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/xid"

	"github.com/nabil/devstash/internal/model"
	"github.com/nabil/devstash/internal/repository"
)

var _ repository.BackupRepository = (*BackupRepo)(nil)

// BackupRepo implements repository.BackupRepository on the shared
// connection.
type BackupRepo struct {
	conn *sql.DB
}

// NewBackupRepo creates the backup repository over an open database.
func NewBackupRepo(db *DB) *BackupRepo {
	return &BackupRepo{conn: db.conn}
}

// Create records one exported snapshot.
func (r *BackupRepo) Create(ctx context.Context, backup *model.Backup) error {
	backup.ID = xid.New().String()

	_, err := r.conn.ExecContext(ctx,
		`INSERT INTO backups (id, user_id, file_name, timestamp, download_url)
		 VALUES (?, ?, ?, ?, ?)`,
		backup.ID,
		backup.UserID,
		backup.FileName,
		backup.Timestamp,
		backup.DownloadURL,
	)
	if err != nil {
		return fmt.Errorf("sqlite: recording backup: %w", err)
	}

	return nil
}

// ListByUser returns a user's backup records, newest first.
func (r *BackupRepo) ListByUser(ctx context.Context, userID string) ([]model.Backup, error) {
	rows, err := r.conn.QueryContext(ctx,
		`SELECT id, user_id, file_name, timestamp, download_url
		 FROM backups WHERE user_id = ? ORDER BY timestamp DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing backups: %w", err)
	}
	defer rows.Close()

	backups := make([]model.Backup, 0, 8)
	for rows.Next() {
		var b model.Backup
		if err := rows.Scan(&b.ID, &b.UserID, &b.FileName, &b.Timestamp,
			&b.DownloadURL); err != nil {
			return nil, fmt.Errorf("sqlite: scanning backup row: %w", err)
		}
		backups = append(backups, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating backups: %w", err)
	}

	return backups, nil
}
