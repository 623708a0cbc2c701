package model

import "time"

// Backup records one exported snapshot blob in the file store. The blob
// itself lives at backups/{userId}/{fileName}; DownloadURL is how a client
// retrieves it.
type Backup struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	FileName    string    `json:"fileName"`
	Timestamp   time.Time `json:"timestamp"`
	DownloadURL string    `json:"downloadUrl"`
}
