package models

import "time"

// HubRecord is the persisted entity for one hub, stored as a JSON string
// under a single expiring key. Files and Whiteboard only ever grow; the
// bytes behind Files live in the object store, not here.
type HubRecord struct {
	ID         string       `json:"id"`
	Content    string       `json:"content"`
	CreatedAt  time.Time    `json:"createdAt"`
	Files      []FileInfo   `json:"files"`
	Whiteboard []PathStroke `json:"whiteboard"`
}

// NewHubRecord returns an empty record. Slices are allocated so the wire
// form is [] rather than null.
func NewHubRecord(id string, createdAt time.Time) *HubRecord {
	return &HubRecord{
		ID:         id,
		CreatedAt:  createdAt,
		Files:      make([]FileInfo, 0),
		Whiteboard: make([]PathStroke, 0),
	}
}
