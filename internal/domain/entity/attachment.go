package entity

import "time"

// Attachment is a binary document linked to a bill or invoice
type Attachment struct {
	ID        int64     `json:"id"`
	ResModel  string    `json:"res_model"`
	ResID     int64     `json:"res_id"`
	Name      string    `json:"name"`
	FilePath  string    `json:"file_path"`
	MimeType  string    `json:"mime_type"`
	FileSize  int64     `json:"file_size"`
	PageCount int       `json:"page_count"`
	CreatedAt time.Time `json:"created_at"`
}
