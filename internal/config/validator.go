package config

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "logging.max_size_mb")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// backupPrefixRegex limits the prefix to characters that are safe in a
// ref name component without quoting
var backupPrefixRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateBackup()...)
	errors = append(errors, c.validateScan()...)
	errors = append(errors, c.validateGit()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validateBackup() []ValidationError {
	var errors []ValidationError

	if c.Backup.Prefix == "" {
		errors = append(errors, ValidationError{
			Field:   "backup.prefix",
			Value:   c.Backup.Prefix,
			Message: "must not be empty",
		})
	} else if !backupPrefixRegex.MatchString(c.Backup.Prefix) {
		errors = append(errors, ValidationError{
			Field:   "backup.prefix",
			Value:   c.Backup.Prefix,
			Message: "must start with a letter and contain only letters, digits, '-' or '_'",
		})
	}

	const maxPrefixLength = 50
	if len(c.Backup.Prefix) > maxPrefixLength {
		errors = append(errors, ValidationError{
			Field:   "backup.prefix",
			Value:   c.Backup.Prefix,
			Message: fmt.Sprintf("exceeds maximum length of %d", maxPrefixLength),
		})
	}

	return errors
}

func (c *Config) validateScan() []ValidationError {
	var errors []ValidationError

	if c.Scan.MaxCommits < 0 {
		errors = append(errors, ValidationError{
			Field:   "scan.max_commits",
			Value:   c.Scan.MaxCommits,
			Message: "must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateGit() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Git.Binary) == "" {
		errors = append(errors, ValidationError{
			Field:   "git.binary",
			Value:   c.Git.Binary,
			Message: "must not be empty",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	const maxLogSizeMB = 1000
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
