package snmsmodels

// FileUpload is a raw binary payload submitted through a file-type field.
type FileUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// RawField is one unvalidated submitted field: either a number or a file,
// depending on what the type schema declares for it.
type RawField struct {
	Number *float64
	File   *FileUpload
}

// RawSubmission is the unvalidated payload of a value submission before
// normalization: field name to raw value, plus the optional client time.
type RawSubmission struct {
	Fields map[string]RawField
	// Time is the client-supplied timestamp string, empty when absent.
	Time string
}

// AlertSignal distinguishes the alert-evaluator invocation modes.
type AlertSignal struct {
	// Backup marks the recovery signal sent when a previously inactive
	// sensor receives a new reading; Seconds carries the silence duration.
	Backup  bool
	Seconds float64
}
