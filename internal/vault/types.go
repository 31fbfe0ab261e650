package vault

// ReadRequest asks for the content of one file.
type ReadRequest struct {
	FilePath string
}

// ReadResult is the file content plus the placeholders found in it.
type ReadResult struct {
	Content   string
	Variables []string
}

// WriteRequest creates, overwrites or appends to a file.
//
// At least one of Content or TemplatePath must be non-empty. When both are
// set, the rendered template is written first and Content is appended
// after it.
type WriteRequest struct {
	FilePath     string
	Content      string
	TemplatePath string
	Append       bool
	Variables    map[string]string
}

// WriteResult reports a successful write.
type WriteResult struct {
	Message string
	Path    string // confined vault path that was written
	Bytes   int
}

// MoveRequest renames a file inside the vault.
type MoveRequest struct {
	SourcePath      string
	DestinationPath string
}

// MoveResult reports a successful move.
type MoveResult struct {
	Message     string
	Source      string
	Destination string
}

// DeleteRequest removes one file.
type DeleteRequest struct {
	FilePath string
}

// DeleteResult reports a successful delete and whether the containing
// folder was removed as well.
type DeleteResult struct {
	Message       string
	Path          string
	FolderRemoved bool
}

// Success messages.
const (
	MsgWritten           = "File written successfully"
	MsgMoved             = "File moved successfully"
	MsgDeleted           = "File deleted successfully"
	MsgDeletedWithFolder = "File and empty folder deleted successfully"
)
