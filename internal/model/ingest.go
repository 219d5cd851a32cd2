package model

// LogBatch carries one raw log blob with source metadata.
// It is the transport contract between intake (TCP, stdin, files, HTTP) and analysis.
type LogBatch struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}
