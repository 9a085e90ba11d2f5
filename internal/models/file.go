package models

type FileInfo struct {
	Filename string `json:"filename"`
	Size     uint64 `json:"size"`
}
