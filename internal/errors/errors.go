// Package errors provides centralized error handling with optional telemetry integration
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"path"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ErrorCategory represents the type of error for better categorization
type ErrorCategory string

// CategorizedError is an interface for errors that can specify their own category
type CategorizedError interface {
	error
	ErrorCategory() ErrorCategory
}

const (
	CategoryValidation    ErrorCategory = "validation"
	CategoryFileIO        ErrorCategory = "file-io"
	CategoryNotFound      ErrorCategory = "not-found"
	CategoryPermission    ErrorCategory = "permission"
	CategoryPathSecurity  ErrorCategory = "path-security"
	CategoryTemplate      ErrorCategory = "template"
	CategoryHTTP          ErrorCategory = "http-request"
	CategoryConfiguration ErrorCategory = "configuration"
	CategorySystem        ErrorCategory = "system-resource"
	CategoryCancellation  ErrorCategory = "cancellation"
	CategoryGeneric       ErrorCategory = "generic"
)

// Priority levels. An explicit priority overrides the category's default
// Sentry level.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// ComponentUnknown is used when the component cannot be determined.
const ComponentUnknown = "unknown"

// modulePrefix is stripped from function names during component detection.
const modulePrefix = "github.com/tphakala/vaultd/"

// hasActiveReporting is flipped on when a telemetry reporter is installed.
// While false, Build skips stack walking entirely.
var hasActiveReporting atomic.Bool

// EnhancedError wraps an error with additional context and metadata
type EnhancedError struct {
	Err       error          // Original error
	component string         // Component where error occurred
	Category  ErrorCategory  // Error category for better grouping
	Priority  string         // Explicit priority override (optional)
	Context   map[string]any // Additional context data
	Timestamp time.Time      // When the error occurred
	reported  bool
	mu        sync.RWMutex
}

func (ee *EnhancedError) Error() string {
	return ee.Err.Error()
}

func (ee *EnhancedError) Unwrap() error {
	return ee.Err
}

// Is matches another EnhancedError by category and anything else through
// the wrapped error.
func (ee *EnhancedError) Is(target error) bool {
	if other, ok := target.(*EnhancedError); ok {
		return ee.Category == other.Category
	}
	return stderrors.Is(ee.Err, target)
}

// GetComponent returns the component the error was raised in.
func (ee *EnhancedError) GetComponent() string {
	return ee.component
}

func (ee *EnhancedError) GetCategory() string {
	return string(ee.Category)
}

// GetPriority returns the explicit priority if set, empty string otherwise
func (ee *EnhancedError) GetPriority() string {
	return ee.Priority
}

// GetContext returns a copy of the error context
func (ee *EnhancedError) GetContext() map[string]any {
	ee.mu.RLock()
	defer ee.mu.RUnlock()
	if ee.Context == nil {
		return nil
	}
	return maps.Clone(ee.Context)
}

func (ee *EnhancedError) GetMessage() string {
	if ee.Err == nil {
		return ""
	}
	return ee.Err.Error()
}

// MarkReported records that telemetry has seen this error.
func (ee *EnhancedError) MarkReported() {
	ee.mu.Lock()
	defer ee.mu.Unlock()
	ee.reported = true
}

func (ee *EnhancedError) IsReported() bool {
	ee.mu.RLock()
	defer ee.mu.RUnlock()
	return ee.reported
}

// ErrorBuilder provides a fluent interface for creating enhanced errors
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	priority  string
	context   map[string]any
}

// New starts an enhanced error around err.
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf starts an enhanced error from a format string.
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

// Component sets the component name (auto-detected if not set)
func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

// Category sets the error category (detected from the message if not set)
func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

// Priority sets an explicit priority. Unrecognised values become medium.
func (eb *ErrorBuilder) Priority(priority string) *ErrorBuilder {
	switch priority {
	case "":
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		eb.priority = priority
	default:
		eb.priority = PriorityMedium
	}
	return eb
}

// Context adds one key to the error context.
func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any)
	}
	eb.context[key] = value
	return eb
}

// FileContext describes a vault path without revealing it: only its
// extension and how deep it sits below the root are kept.
func (eb *ErrorBuilder) FileContext(vaultPath string) *ErrorBuilder {
	if vaultPath == "" {
		return eb
	}
	return eb.
		Context("file_extension", fileExtension(vaultPath)).
		Context("path_depth", pathDepth(vaultPath))
}

// Timing records which operation failed and how long it had been running.
func (eb *ErrorBuilder) Timing(operation string, elapsed time.Duration) *ErrorBuilder {
	return eb.
		Context("operation", operation).
		Context("duration_ms", elapsed.Milliseconds())
}

// Build creates the EnhancedError and hands it to telemetry when a reporter
// is active.
func (eb *ErrorBuilder) Build() *EnhancedError {
	ee := &EnhancedError{
		Err:       eb.err,
		component: eb.component,
		Category:  eb.category,
		Priority:  eb.priority,
		Context:   eb.context,
		Timestamp: time.Now(),
	}

	if !hasActiveReporting.Load() {
		if ee.component == "" {
			ee.component = ComponentUnknown
		}
		if ee.Category == "" {
			ee.Category = CategoryGeneric
		}
		return ee
	}

	if ee.component == "" {
		ee.component = detectComponent()
	}
	if ee.Category == "" {
		ee.Category = detectCategory(eb.err, ee.component)
	}

	reportToTelemetry(ee)
	return ee
}

// componentByPackage maps a package path below the module to a component.
var componentByPackage = map[string]string{
	"internal/securefs":      "securefs",
	"internal/placeholder":   "placeholder",
	"internal/vault":         "vault",
	"internal/conf":          "configuration",
	"internal/api":           "api",
	"internal/observability": "observability",
	"internal/telemetry":     "telemetry",
	"cmd":                    "cli",
}

// detectComponent walks the caller stack and returns the component of the
// first frame outside this package.
func detectComponent() string {
	pcs := make([]uintptr, 32)
	frames := runtime.CallersFrames(pcs[:runtime.Callers(2, pcs)])
	for {
		frame, more := frames.Next()
		if component := componentOf(frame.Function); component != "" {
			return component
		}
		if !more {
			return ComponentUnknown
		}
	}
}

// componentOf returns the component owning a fully qualified function name,
// or "" for frames that do not belong to a known package.
func componentOf(funcName string) string {
	rel, ok := strings.CutPrefix(funcName, modulePrefix)
	if !ok || strings.HasPrefix(rel, "internal/errors.") {
		return ""
	}

	// "internal/api/middleware.NewMetrics.func1" -> "internal/api/middleware"
	pkg := rel
	if slash := strings.LastIndex(pkg, "/"); slash >= 0 {
		if dot := strings.Index(pkg[slash:], "."); dot >= 0 {
			pkg = pkg[:slash+dot]
		}
	} else if dot := strings.Index(pkg, "."); dot >= 0 {
		pkg = pkg[:dot]
	}

	for p := pkg; p != "." && p != ""; p = path.Dir(p) {
		if component, ok := componentByPackage[p]; ok {
			return component
		}
	}
	return ""
}

// messageCategories are checked in order; the first keyword hit wins.
var messageCategories = []struct {
	category ErrorCategory
	keywords []string
}{
	{CategoryCancellation, []string{"context canceled", "deadline exceeded"}},
	{CategoryNotFound, []string{"no such file", "not exist"}},
	{CategoryPermission, []string{"permission denied"}},
	{CategoryPathSecurity, []string{"escapes", "traversal"}},
	{CategoryValidation, []string{"required", "invalid", "validation"}},
	{CategoryFileIO, []string{"file", "read", "write", "open", "rename"}},
}

// componentCategories is the fallback when the message says nothing useful.
var componentCategories = map[string]ErrorCategory{
	"securefs":      CategoryFileIO,
	"vault":         CategoryFileIO,
	"placeholder":   CategoryTemplate,
	"api":           CategoryHTTP,
	"configuration": CategoryConfiguration,
}

// detectCategory derives a category from the error itself, its message, or
// the component that raised it.
func detectCategory(err error, component string) ErrorCategory {
	var catErr CategorizedError
	if stderrors.As(err, &catErr) {
		return catErr.ErrorCategory()
	}
	var enhErr *EnhancedError
	if stderrors.As(err, &enhErr) && enhErr.Category != "" {
		return enhErr.Category
	}

	msg := strings.ToLower(err.Error())
	for _, mc := range messageCategories {
		for _, kw := range mc.keywords {
			if strings.Contains(msg, kw) {
				return mc.category
			}
		}
	}

	if category, ok := componentCategories[component]; ok {
		return category
	}
	return CategoryGeneric
}

// fileExtension returns the lower-cased extension without the dot, or
// "none".
func fileExtension(vaultPath string) string {
	ext := strings.TrimPrefix(path.Ext(path.Base(vaultPath)), ".")
	if ext == "" {
		return "none"
	}
	return strings.ToLower(ext)
}

// pathDepth counts the directories between the root and the file.
func pathDepth(vaultPath string) int {
	trimmed := strings.Trim(path.Clean("/"+vaultPath), "/")
	if trimmed == "" {
		return 0
	}
	return strings.Count(trimmed, "/")
}

// Standard library passthroughs, so callers only import this package.

func NewStd(text string) error {
	return stderrors.New(text)
}

func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

func As(err error, target any) bool {
	return stderrors.As(err, target)
}

func Unwrap(err error) error {
	return stderrors.Unwrap(err)
}

func Join(errs ...error) error {
	return stderrors.Join(errs...)
}
