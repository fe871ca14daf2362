// Package errors provides the error taxonomy for gittimemachine. It defines
// sentinel errors, typed errors for each failure the rewrite engine can
// report, and classification helpers used by the CLI when deciding how to
// present a failure.
//
// # Error Types
//
// Engine errors describe a failed step of a history rewrite:
//   - CommandError: a git invocation exited non-zero
//   - GitError: a higher level git operation failed (branch, repository context)
//   - IneligibleCommitError: the commit is reachable from the upstream
//   - DirtyWorkingTreeError: uncommitted changes are present
//   - BackupCreationFailedError: the safety branch could not be created
//   - RewriteCommandFailedError: a rebase or amend step failed mid-session
//   - IdentityResolutionAmbiguousError: a target could not be located after a rewrite
//   - UnsupportedOperationError: the requested edit cannot be performed
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - AlreadyExistsError: resource already exists
//   - ValidationError: invalid input or state
//
// # Usage
//
//	err := errors.NewGitError("backup failed", cause).WithBranch("main")
//
//	if errors.Is(err, errors.ErrCommitPushed) { ... }
//
//	var rewriteErr *errors.RewriteCommandFailedError
//	if errors.As(err, &rewriteErr) {
//	    fmt.Println("restore from", rewriteErr.BackupBranch)
//	}
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions so callers only import this package.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
	// SeverityCritical is reserved for failures that leave the repository
	// without its safety net.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Repository sentinel errors
var (
	// ErrNotGitRepository indicates that the directory is not a git repository.
	ErrNotGitRepository = New("not a git repository")
	// ErrDetachedHead indicates that HEAD does not point at a branch.
	ErrDetachedHead = New("HEAD is detached")
	// ErrGitVersionUnsupported indicates the installed git is too old.
	ErrGitVersionUnsupported = New("unsupported git version")
)

// Rewrite sentinel errors
var (
	// ErrCommitPushed indicates that a commit is already on the upstream.
	ErrCommitPushed = New("commit exists on remote")
	// ErrDirtyWorkingTree indicates uncommitted changes in the working tree.
	ErrDirtyWorkingTree = New("working tree has uncommitted changes")
	// ErrRebaseInProgress indicates a rebase left behind by another process.
	ErrRebaseInProgress = New("rebase in progress")
	// ErrRootCommit indicates the target commit has no parent.
	ErrRootCommit = New("commit has no parent")
	// ErrSessionInProgress indicates a rewrite is already running on this engine.
	ErrSessionInProgress = New("rewrite session already in progress")
	// ErrConfirmationRequired indicates a destructive operation was not confirmed.
	ErrConfirmationRequired = New("confirmation required")
)

// General sentinel errors
var (
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// ClassifiedError is implemented by every typed error in this package.
type ClassifiedError interface {
	error
	Unwrap() error
	Is(target error) bool
	Severity() Severity
	// IsRetryable returns true if the operation may succeed when repeated
	// without any change by the user.
	IsRetryable() bool
	// IsUserFacing returns true if the message is safe to print as-is.
	IsUserFacing() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Unwrap() error {
	return e.cause
}

func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

func (e *baseError) Severity() Severity {
	return e.severity
}

func (e *baseError) IsRetryable() bool {
	return e.retryable
}

func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// formatWithContext renders "<kind> [k=v, ...]: message: cause".
func formatWithContext(kind string, parts []string, message string, cause error) string {
	prefix := kind
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", kind, strings.Join(parts, ", "))
	}
	if cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, message, cause)
	}
	return fmt.Sprintf("%s: %s", prefix, message)
}

// -----------------------------------------------------------------------------
// Git Errors
// -----------------------------------------------------------------------------

// CommandError is returned by the command gateway when git exits non-zero
// or cannot be started.
//
// Example:
//
//	err := errors.NewCommandError([]string{"rebase", "--continue"}, "could not apply", 1)
//	fmt.Println(err) // "git rebase --continue failed (exit 1): could not apply"
type CommandError struct {
	baseError
	Args     []string
	Stderr   string
	ExitCode int
}

// NewCommandError creates a new CommandError.
func NewCommandError(args []string, stderr string, exitCode int) *CommandError {
	return &CommandError{
		baseError: baseError{
			message:    "git command failed",
			severity:   SeverityError,
			userFacing: true,
		},
		Args:     append([]string(nil), args...),
		Stderr:   strings.TrimSpace(stderr),
		ExitCode: exitCode,
	}
}

// WithCause adds a cause to the error.
func (e *CommandError) WithCause(cause error) *CommandError {
	e.cause = cause
	return e
}

// Command returns the command line that failed.
func (e *CommandError) Command() string {
	return "git " + strings.Join(e.Args, " ")
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s failed (exit %d)", e.Command(), e.ExitCode)
	if e.Stderr != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Stderr)
	} else if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

func (e *CommandError) Is(target error) bool {
	if _, ok := target.(*CommandError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// GitError represents a failed repository-level operation.
//
// Example:
//
//	err := errors.NewGitError("failed to resolve upstream", cause).WithBranch("feature-x")
type GitError struct {
	baseError
	Branch     string
	Repository string
	GitOutput  string
}

// NewGitError creates a new GitError.
func NewGitError(message string, cause error) *GitError {
	return &GitError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithBranch adds a branch name to the error context.
func (e *GitError) WithBranch(branch string) *GitError {
	e.Branch = branch
	return e
}

// WithRepository adds a repository path to the error context.
func (e *GitError) WithRepository(path string) *GitError {
	e.Repository = path
	return e
}

// WithGitOutput adds git command output to the error context.
func (e *GitError) WithGitOutput(output string) *GitError {
	e.GitOutput = output
	return e
}

// WithSeverity sets the error severity.
func (e *GitError) WithSeverity(s Severity) *GitError {
	e.severity = s
	return e
}

func (e *GitError) Error() string {
	var parts []string
	if e.Branch != "" {
		parts = append(parts, fmt.Sprintf("branch=%s", e.Branch))
	}
	if e.Repository != "" {
		parts = append(parts, fmt.Sprintf("repo=%s", e.Repository))
	}

	msg := formatWithContext("git error", parts, e.message, e.cause)
	if e.GitOutput != "" {
		msg = fmt.Sprintf("%s\ngit output: %s", msg, e.GitOutput)
	}
	return msg
}

func (e *GitError) Is(target error) bool {
	if _, ok := target.(*GitError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Rewrite Errors
// -----------------------------------------------------------------------------

// IneligibleCommitError reports a commit that is reachable from the upstream
// branch. There is no override for this condition.
type IneligibleCommitError struct {
	baseError
	Hash     string
	Upstream string
}

// NewIneligibleCommitError creates a new IneligibleCommitError.
func NewIneligibleCommitError(hash, upstream string) *IneligibleCommitError {
	return &IneligibleCommitError{
		baseError: baseError{
			message:    "commit has already been pushed and cannot be rewritten",
			cause:      ErrCommitPushed,
			severity:   SeverityError,
			userFacing: true,
		},
		Hash:     hash,
		Upstream: upstream,
	}
}

func (e *IneligibleCommitError) Error() string {
	var parts []string
	if e.Hash != "" {
		parts = append(parts, fmt.Sprintf("commit=%s", shortHash(e.Hash)))
	}
	if e.Upstream != "" {
		parts = append(parts, fmt.Sprintf("upstream=%s", e.Upstream))
	}
	return formatWithContext("ineligible commit", parts, e.message, nil)
}

func (e *IneligibleCommitError) Is(target error) bool {
	if _, ok := target.(*IneligibleCommitError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// DirtyWorkingTreeError reports uncommitted changes. It is advisory: callers
// may proceed once the user accepts the risk.
type DirtyWorkingTreeError struct {
	baseError
	Entries []string
}

// NewDirtyWorkingTreeError creates a new DirtyWorkingTreeError from
// porcelain status lines.
func NewDirtyWorkingTreeError(entries []string) *DirtyWorkingTreeError {
	return &DirtyWorkingTreeError{
		baseError: baseError{
			message:    "commit or stash your changes first",
			cause:      ErrDirtyWorkingTree,
			severity:   SeverityWarning,
			userFacing: true,
		},
		Entries: entries,
	}
}

func (e *DirtyWorkingTreeError) Error() string {
	var parts []string
	if len(e.Entries) > 0 {
		parts = append(parts, fmt.Sprintf("changes=%d", len(e.Entries)))
	}
	return formatWithContext("dirty working tree", parts, e.message, nil)
}

func (e *DirtyWorkingTreeError) Is(target error) bool {
	if _, ok := target.(*DirtyWorkingTreeError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// BackupCreationFailedError reports that the safety branch could not be
// created or confirmed. No rewrite may start after this error.
type BackupCreationFailedError struct {
	baseError
	Branch string
}

// NewBackupCreationFailedError creates a new BackupCreationFailedError.
func NewBackupCreationFailedError(branch string, cause error) *BackupCreationFailedError {
	return &BackupCreationFailedError{
		baseError: baseError{
			message:    "failed to create backup branch",
			cause:      cause,
			severity:   SeverityCritical,
			retryable:  IsRetryable(cause),
			userFacing: true,
		},
		Branch: branch,
	}
}

func (e *BackupCreationFailedError) Error() string {
	var parts []string
	if e.Branch != "" {
		parts = append(parts, fmt.Sprintf("backup=%s", e.Branch))
	}
	return formatWithContext("backup error", parts, e.message, e.cause)
}

func (e *BackupCreationFailedError) Is(target error) bool {
	if _, ok := target.(*BackupCreationFailedError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// RewriteCommandFailedError reports a failed rebase or amend during a
// session. BackupBranch names the branch the user can restore from.
//
// Example:
//
//	err := errors.NewRewriteCommandFailedError("reword", cause).
//	    WithCommit(hash).
//	    WithBackupBranch("main-backup-1700000000000")
type RewriteCommandFailedError struct {
	baseError
	Step         string
	Hash         string
	BackupBranch string
	Command      string
}

// NewRewriteCommandFailedError creates a new RewriteCommandFailedError.
func NewRewriteCommandFailedError(step string, cause error) *RewriteCommandFailedError {
	e := &RewriteCommandFailedError{
		baseError: baseError{
			message:    fmt.Sprintf("%s failed", step),
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
		Step: step,
	}
	var cmdErr *CommandError
	if As(cause, &cmdErr) {
		e.Command = cmdErr.Command()
	}
	return e
}

// WithCommit adds the target commit hash to the error context.
func (e *RewriteCommandFailedError) WithCommit(hash string) *RewriteCommandFailedError {
	e.Hash = hash
	return e
}

// WithBackupBranch adds the backup branch to the error context.
func (e *RewriteCommandFailedError) WithBackupBranch(branch string) *RewriteCommandFailedError {
	e.BackupBranch = branch
	return e
}

func (e *RewriteCommandFailedError) Error() string {
	var parts []string
	if e.Hash != "" {
		parts = append(parts, fmt.Sprintf("commit=%s", shortHash(e.Hash)))
	}
	if e.BackupBranch != "" {
		parts = append(parts, fmt.Sprintf("backup=%s", e.BackupBranch))
	}
	return formatWithContext("rewrite error", parts, e.message, e.cause)
}

func (e *RewriteCommandFailedError) Is(target error) bool {
	if _, ok := target.(*RewriteCommandFailedError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// IdentityResolutionAmbiguousError reports that a request target could not
// be located unambiguously after an earlier rewrite changed hashes.
type IdentityResolutionAmbiguousError struct {
	baseError
	OriginalHash string
	Subject      string
	Ordinal      int
	Candidates   int
}

// NewIdentityResolutionAmbiguousError creates a new IdentityResolutionAmbiguousError.
func NewIdentityResolutionAmbiguousError(originalHash, subject string, ordinal, candidates int) *IdentityResolutionAmbiguousError {
	return &IdentityResolutionAmbiguousError{
		baseError: baseError{
			message:    "cannot locate commit after rewrite",
			severity:   SeverityError,
			userFacing: true,
		},
		OriginalHash: originalHash,
		Subject:      subject,
		Ordinal:      ordinal,
		Candidates:   candidates,
	}
}

func (e *IdentityResolutionAmbiguousError) Error() string {
	parts := []string{
		fmt.Sprintf("commit=%s", shortHash(e.OriginalHash)),
		fmt.Sprintf("ordinal=%d", e.Ordinal),
		fmt.Sprintf("candidates=%d", e.Candidates),
	}
	return formatWithContext("identity error", parts, fmt.Sprintf("%s %q", e.message, e.Subject), nil)
}

func (e *IdentityResolutionAmbiguousError) Is(target error) bool {
	_, ok := target.(*IdentityResolutionAmbiguousError)
	return ok
}

// UnsupportedOperationError reports an edit the engine refuses to perform,
// such as rewording the root commit.
type UnsupportedOperationError struct {
	baseError
	Operation string
	Hash      string
}

// NewUnsupportedOperationError creates a new UnsupportedOperationError.
func NewUnsupportedOperationError(operation, hash string, cause error) *UnsupportedOperationError {
	return &UnsupportedOperationError{
		baseError: baseError{
			message:    fmt.Sprintf("%s is not supported for this commit", operation),
			cause:      cause,
			severity:   SeverityWarning,
			userFacing: true,
		},
		Operation: operation,
		Hash:      hash,
	}
}

func (e *UnsupportedOperationError) Error() string {
	var parts []string
	if e.Hash != "" {
		parts = append(parts, fmt.Sprintf("commit=%s", shortHash(e.Hash)))
	}
	return formatWithContext("unsupported operation", parts, e.message, e.cause)
}

func (e *UnsupportedOperationError) Is(target error) bool {
	if _, ok := target.(*UnsupportedOperationError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("backup branch", "main-backup-1")
//	fmt.Println(err) // "backup branch 'main-backup-1' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity:   SeverityWarning,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// AlreadyExistsError represents a resource that already exists.
type AlreadyExistsError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewAlreadyExistsError creates a new AlreadyExistsError.
func NewAlreadyExistsError(resourceType, resourceID string) *AlreadyExistsError {
	return &AlreadyExistsError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' already exists", resourceType, resourceID),
			severity:   SeverityWarning,
			retryable:  true,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

func (e *AlreadyExistsError) Is(target error) bool {
	if _, ok := target.(*AlreadyExistsError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("commit message cannot be empty").WithField("message")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}
	return formatWithContext("validation error", parts, e.message, e.cause)
}

func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var classified ClassifiedError
	if As(err, &classified) {
		return classified.IsRetryable()
	}
	return false
}

// IsUserFacing returns true if the error message is safe to display to end
// users without further wrapping.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	var classified ClassifiedError
	if As(err, &classified) {
		return classified.IsUserFacing()
	}
	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement ClassifiedError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}
	var classified ClassifiedError
	if As(err, &classified) {
		return classified.Severity()
	}
	return SeverityError
}

// IsSafetyError returns true for errors raised before any write: the
// eligibility check, the working tree check and request validation.
func IsSafetyError(err error) bool {
	if err == nil {
		return false
	}
	var ineligible *IneligibleCommitError
	var dirty *DirtyWorkingTreeError
	var validation *ValidationError
	return As(err, &ineligible) || As(err, &dirty) || As(err, &validation)
}

// BackupBranchOf returns the backup branch carried by err, if any.
func BackupBranchOf(err error) (string, bool) {
	var rewriteErr *RewriteCommandFailedError
	if As(err, &rewriteErr) && rewriteErr.BackupBranch != "" {
		return rewriteErr.BackupBranch, true
	}
	return "", false
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func shortHash(hash string) string {
	if len(hash) > 7 {
		return hash[:7]
	}
	return hash
}
