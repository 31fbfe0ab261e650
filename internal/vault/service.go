// Package vault implements the read, write, move and delete operations on a
// sandboxed notes vault.
package vault

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/tphakala/vaultd/internal/logger"
	"github.com/tphakala/vaultd/internal/observability/metrics"
	"github.com/tphakala/vaultd/internal/placeholder"
	"github.com/tphakala/vaultd/internal/securefs"
)

// MetricsRecorder receives per-operation measurements.
type MetricsRecorder interface {
	metrics.Recorder
	RecordBytesWritten(mode string, n int)
	RecordTemplateApplied()
	RecordFolderRemoved()
}

type nopMetrics struct{ metrics.NopRecorder }

func (nopMetrics) RecordBytesWritten(string, int) {}
func (nopMetrics) RecordTemplateApplied() {}
func (nopMetrics) RecordFolderRemoved() {}

// Write modes used for the bytes-written metric.
const (
	modeOverwrite = "overwrite"
	modeAppend    = "append"
)

// Service runs file operations against one vault root.
type Service struct {
	fs      *securefs.SecureFS
	log     logger.Logger
	metrics MetricsRecorder
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. Defaults to the global "vault" module logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics sets the metrics recorder. Defaults to a no-op recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// NewService creates a Service over sfs.
func NewService(sfs *securefs.SecureFS, opts ...Option) *Service {
	s := &Service{
		fs:      sfs,
		log:     logger.Global().Module("vault"),
		metrics: nopMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// isMarkdown reports whether the target gets a separating newline on append.
func isMarkdown(vaultPath string) bool {
	return strings.EqualFold(path.Ext(vaultPath), ".md")
}

// appendBlock returns text as it should be appended to target.
func appendBlock(target, text string) string {
	if isMarkdown(target) {
		return "\n" + text
	}
	return text
}

// finish records metrics and logs the outcome of one operation.
func (s *Service) finish(ctx context.Context, operation string, start time.Time, err error, fields ...logger.Field) {
	elapsed := time.Since(start)
	log := s.log.WithContext(ctx)
	s.metrics.RecordDuration(operation, elapsed.Seconds())

	if err == nil {
		s.metrics.RecordOperation(operation, metrics.StatusSuccess)
		log.Debug("file operation completed",
			append(fields, logger.String("operation", operation), logger.Duration("elapsed", elapsed))...)
		return
	}

	reason := ReasonOf(err)
	s.metrics.RecordOperation(operation, metrics.StatusError)
	s.metrics.RecordError(operation, string(reason))

	fields = append(fields,
		logger.String("operation", operation),
		logger.String("reason", string(reason)),
		logger.Duration("elapsed", elapsed),
		logger.Error(err))
	if reason == ReasonInvalidRequest || reason == ReasonNotFound {
		log.Warn("file operation rejected", fields...)
		return
	}
	log.Error("file operation failed", fields...)
}

// Read returns the content of a file and the placeholders it contains.
func (s *Service) Read(ctx context.Context, req ReadRequest) (result *ReadResult, err error) {
	start := time.Now()
	target := securefs.Confine(req.FilePath)
	fail := failure{operation: metrics.OpRead, message: MsgReadFailed, target: target, start: start}
	defer func() {
		s.finish(ctx, metrics.OpRead, start, err, logger.String("path", target))
	}()

	if req.FilePath == "" {
		return nil, invalidRequest(MsgFilePathRequired)
	}
	if err := ctx.Err(); err != nil {
		return nil, fail.wrap(err)
	}

	data, readErr := s.fs.ReadFile(target)
	if readErr != nil {
		return nil, fail.wrap(readErr)
	}

	content := string(data)
	return &ReadResult{
		Content:   content,
		Variables: placeholder.FindVariables(content),
	}, nil
}

// Write creates, overwrites or appends to a file, optionally from a template.
// Validation happens before any filesystem access.
func (s *Service) Write(ctx context.Context, req WriteRequest) (result *WriteResult, err error) {
	start := time.Now()
	target := securefs.Confine(req.FilePath)
	written := 0
	fail := failure{operation: metrics.OpWrite, message: MsgWriteFailed, target: target, start: start}
	defer func() {
		s.finish(ctx, metrics.OpWrite, start, err,
			logger.String("path", target),
			logger.Bool("append", req.Append),
			logger.Bool("template", req.TemplatePath != ""),
			logger.Int("bytes", written))
	}()

	if req.FilePath == "" {
		return nil, invalidRequest(MsgFilePathRequired)
	}
	if req.Content == "" && req.TemplatePath == "" {
		return nil, invalidRequest(MsgContentRequired)
	}
	if err := ctx.Err(); err != nil {
		return nil, fail.wrap(err)
	}

	if err := s.fs.MkdirAll(securefs.ParentPath(target), securefs.DirPermissions); err != nil {
		return nil, fail.wrap(err)
	}

	put := func(text string, appending bool) error {
		var err error
		if appending {
			err = s.fs.AppendFile(target, []byte(text), securefs.FilePermissions)
		} else {
			err = s.fs.WriteFile(target, []byte(text), securefs.FilePermissions)
		}
		if err != nil {
			return err
		}
		written += len(text)
		if appending {
			s.metrics.RecordBytesWritten(modeAppend, len(text))
		} else {
			s.metrics.RecordBytesWritten(modeOverwrite, len(text))
		}
		return nil
	}

	if req.TemplatePath != "" {
		tpl, err := s.fs.ReadFile(securefs.Confine(req.TemplatePath))
		if err != nil {
			return nil, fail.wrap(err)
		}
		rendered := placeholder.Substitute(string(tpl), req.Variables)

		if req.Append {
			err = put(appendBlock(target, rendered), true)
		} else {
			err = put(rendered, false)
		}
		if err != nil {
			return nil, fail.wrap(err)
		}
		s.metrics.RecordTemplateApplied()

		// Content after a template is always appended; the separator only
		// applies when the whole request is an append.
		if req.Content != "" {
			text := req.Content
			if req.Append {
				text = appendBlock(target, text)
			}
			if err := put(text, true); err != nil {
				return nil, fail.wrap(err)
			}
		}
	} else {
		var err error
		if req.Append {
			err = put(appendBlock(target, req.Content), true)
		} else {
			err = put(req.Content, false)
		}
		if err != nil {
			return nil, fail.wrap(err)
		}
	}

	return &WriteResult{
		Message: MsgWritten,
		Path:    target,
		Bytes:   written,
	}, nil
}

// Move renames a file, creating the destination's parent directories.
func (s *Service) Move(ctx context.Context, req MoveRequest) (result *MoveResult, err error) {
	start := time.Now()
	source := securefs.Confine(req.SourcePath)
	destination := securefs.Confine(req.DestinationPath)
	fail := failure{operation: metrics.OpMove, message: MsgMoveFailed, target: source, start: start}
	defer func() {
		s.finish(ctx, metrics.OpMove, start, err,
			logger.String("source", source),
			logger.String("destination", destination))
	}()

	if req.SourcePath == "" || req.DestinationPath == "" {
		return nil, invalidRequest(MsgMovePathRequired)
	}
	if err := ctx.Err(); err != nil {
		return nil, fail.wrap(err)
	}

	if err := s.fs.MkdirAll(securefs.ParentPath(destination), securefs.DirPermissions); err != nil {
		return nil, fail.wrap(err)
	}

	if err := s.fs.Rename(source, destination); err != nil {
		return nil, fail.wrap(err)
	}

	return &MoveResult{
		Message:     MsgMoved,
		Source:      source,
		Destination: destination,
	}, nil
}

// Delete removes a file, then removes its folder if that left it empty.
// The vault root itself is never removed.
func (s *Service) Delete(ctx context.Context, req DeleteRequest) (result *DeleteResult, err error) {
	start := time.Now()
	target := securefs.Confine(req.FilePath)
	folderRemoved := false
	fail := failure{operation: metrics.OpDelete, message: MsgDeleteFailed, target: target, start: start}
	defer func() {
		s.finish(ctx, metrics.OpDelete, start, err,
			logger.String("path", target),
			logger.Bool("folder_removed", folderRemoved))
	}()

	if req.FilePath == "" {
		return nil, invalidRequest(MsgFilePathRequired)
	}
	if err := ctx.Err(); err != nil {
		return nil, fail.wrap(err)
	}

	if err := s.fs.RemoveFile(target); err != nil {
		return nil, fail.wrap(err)
	}

	parent := securefs.ParentPath(target)
	if parent != "/" {
		entries, err := s.fs.ReadDir(parent)
		if err != nil {
			return nil, fail.wrap(err)
		}
		if len(entries) == 0 {
			if err := s.fs.Remove(parent); err != nil {
				return nil, fail.wrap(err)
			}
			folderRemoved = true
			s.metrics.RecordFolderRemoved()
		}
	}

	message := MsgDeleted
	if folderRemoved {
		message = MsgDeletedWithFolder
	}

	return &DeleteResult{
		Message:       message,
		Path:          target,
		FolderRemoved: folderRemoved,
	}, nil
}
