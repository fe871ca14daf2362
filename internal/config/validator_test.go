package config

import (
	"strings"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{
		Field:   "test.field",
		Value:   123,
		Message: "must be greater than zero",
	}

	expected := "test.field: must be greater than zero (got: 123)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	t.Run("empty errors", func(t *testing.T) {
		var errs ValidationErrors
		if errs.Error() != "" {
			t.Errorf("Error() for empty = %q, want empty string", errs.Error())
		}
	})

	t.Run("single error", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "test.field", Value: 123, Message: "is invalid"},
		}
		expected := "test.field: is invalid (got: 123)"
		if errs.Error() != expected {
			t.Errorf("Error() = %q, want %q", errs.Error(), expected)
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "field1", Value: "bad", Message: "is invalid"},
			{Field: "field2", Value: -1, Message: "must be positive"},
		}
		result := errs.Error()
		if !strings.Contains(result, "2 validation errors") {
			t.Errorf("Error() should mention 2 errors: %s", result)
		}
		if !strings.Contains(result, "field1") || !strings.Contains(result, "field2") {
			t.Errorf("Error() should mention both fields: %s", result)
		}
	})
}

func TestConfig_Validate_DefaultConfig(t *testing.T) {
	if errs := Default().Validate(); len(errs) != 0 {
		t.Errorf("Default config should be valid, got %v", errs)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{
			name:      "empty backup prefix",
			mutate:    func(c *Config) { c.Backup.Prefix = "" },
			wantField: "backup.prefix",
		},
		{
			name:      "backup prefix with slash",
			mutate:    func(c *Config) { c.Backup.Prefix = "a/b" },
			wantField: "backup.prefix",
		},
		{
			name:      "backup prefix starting with digit",
			mutate:    func(c *Config) { c.Backup.Prefix = "1backup" },
			wantField: "backup.prefix",
		},
		{
			name:      "backup prefix too long",
			mutate:    func(c *Config) { c.Backup.Prefix = "b" + strings.Repeat("x", 60) },
			wantField: "backup.prefix",
		},
		{
			name:      "negative max commits",
			mutate:    func(c *Config) { c.Scan.MaxCommits = -1 },
			wantField: "scan.max_commits",
		},
		{
			name:      "blank git binary",
			mutate:    func(c *Config) { c.Git.Binary = "  " },
			wantField: "git.binary",
		},
		{
			name:      "unknown log level",
			mutate:    func(c *Config) { c.Logging.Level = "trace" },
			wantField: "logging.level",
		},
		{
			name:      "zero log size",
			mutate:    func(c *Config) { c.Logging.MaxSizeMB = 0 },
			wantField: "logging.max_size_mb",
		},
		{
			name:      "huge log size",
			mutate:    func(c *Config) { c.Logging.MaxSizeMB = 5000 },
			wantField: "logging.max_size_mb",
		},
		{
			name:      "negative log backups",
			mutate:    func(c *Config) { c.Logging.MaxBackups = -2 },
			wantField: "logging.max_backups",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			errs := cfg.Validate()
			if len(errs) != 1 {
				t.Fatalf("got %d errors, want 1: %v", len(errs), errs)
			}
			if errs[0].Field != tt.wantField {
				t.Errorf("Field = %q, want %q", errs[0].Field, tt.wantField)
			}
		})
	}
}

func TestConfig_Validate_AcceptsValidPrefixes(t *testing.T) {
	for _, prefix := range []string{"backup", "gittimemachine", "undo_point", "B-2"} {
		cfg := Default()
		cfg.Backup.Prefix = prefix
		if errs := cfg.Validate(); len(errs) != 0 {
			t.Errorf("prefix %q rejected: %v", prefix, errs)
		}
	}
}
