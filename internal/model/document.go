package model

const (
	DocumentStatusPending    = "pending"
	DocumentStatusProcessing = "processing"
	DocumentStatusReady      = "ready"
	DocumentStatusError      = "error"
)

const (
	FileTypePDF  = "pdf"
	FileTypeDocx = "docx"
	FileTypeDoc  = "doc"
	FileTypeTxt  = "txt"
)

type Document struct {
	ID                  string `json:"id"`
	UserID              string `json:"user_id"`
	Name                string `json:"name"`
	FileKey             string `json:"file_key"`
	FileType            string `json:"file_type"`
	FileSize            int64  `json:"file_size"`
	Status              string `json:"status"`
	ErrorMessage        string `json:"error_message,omitempty"`
	ProcessingStartedAt *int64 `json:"processing_started_at,omitempty"`
	ProcessingProgress  int    `json:"processing_progress"`
	ProcessingInfo      string `json:"processing_info"`
	PageCount           int    `json:"page_count"`
	ContentPreview      string `json:"content_preview"`
	Ctime               int64  `json:"ctime"`
	Mtime               int64  `json:"mtime"`
}

// Terminal reports whether the document's job has finished, one way or the
// other. The sweeper must never touch a terminal document.
func (d *Document) Terminal() bool {
	return d.Status == DocumentStatusReady || d.Status == DocumentStatusError
}
