package models

import "time"

// RejectedRow describes a CSV row that was not committed
type RejectedRow struct {
	Row    int    `json:"row"`
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason"`
}

// Upload represents one processed CSV payload
type Upload struct {
	ID           string        `json:"id"`
	FileName     string        `json:"file_name"`
	Checksum     string        `json:"checksum"`
	UploadedBy   string        `json:"uploaded_by"`
	Processed    int           `json:"processed_clients"`
	RejectedRows []RejectedRow `json:"rejected_rows"`
	CreatedAt    time.Time     `json:"created_at"`
}
