// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

package validation

import (
	"strings"
	"testing"
)

func TestGetValidator_Singleton(t *testing.T) {
	v1 := GetValidator()
	v2 := GetValidator()

	if v1 == nil {
		t.Fatal("GetValidator() should not return nil")
	}
	if v1 != v2 {
		t.Error("GetValidator() should return the same singleton instance")
	}
}

type testEntry struct {
	Name   string `koanf:"name" validate:"required"`
	Source string `koanf:"source" validate:"required,max=16"`
}

type testConfig struct {
	Port    int         `koanf:"port" validate:"min=1,max=65535"`
	Level   string      `koanf:"level" validate:"oneof=debug info warn"`
	Limit   int         `json:"limit" validate:"gte=0"`
	Entries []testEntry `koanf:"entries" validate:"min=1,unique=Name,dive"`
	Hidden  string      `koanf:"-"`
}

func validTestConfig() testConfig {
	return testConfig{
		Port:    8080,
		Level:   "info",
		Entries: []testEntry{{Name: "cam1", Source: "rtsp://a"}},
	}
}

func TestValidateStruct_Valid(t *testing.T) {
	cfg := validTestConfig()
	if err := ValidateStruct(&cfg); err != nil {
		t.Fatalf("ValidateStruct() = %v, want nil", err)
	}
}

func TestValidateStruct_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*testConfig)
		wantField string
		wantTag   string
		wantMsg   string
	}{
		{
			name:      "port below minimum",
			mutate:    func(c *testConfig) { c.Port = 0 },
			wantField: "port",
			wantTag:   "min",
			wantMsg:   "port must be at least 1",
		},
		{
			name:      "unknown level",
			mutate:    func(c *testConfig) { c.Level = "trace" },
			wantField: "level",
			wantTag:   "oneof",
			wantMsg:   "level must be one of: debug info warn",
		},
		{
			name:      "json tag used when koanf tag missing",
			mutate:    func(c *testConfig) { c.Limit = -1 },
			wantField: "limit",
			wantTag:   "gte",
			wantMsg:   "limit must be greater than or equal to 0",
		},
		{
			name:      "no entries",
			mutate:    func(c *testConfig) { c.Entries = nil },
			wantField: "entries",
			wantTag:   "min",
			wantMsg:   "entries must be at least 1 entries",
		},
		{
			name: "nested entry path",
			mutate: func(c *testConfig) {
				c.Entries = append(c.Entries, testEntry{Name: "cam2"})
			},
			wantField: "entries[1].source",
			wantTag:   "required",
			wantMsg:   "entries[1].source is required",
		},
		{
			name: "nested string length",
			mutate: func(c *testConfig) {
				c.Entries[0].Source = strings.Repeat("x", 17)
			},
			wantField: "entries[0].source",
			wantTag:   "max",
			wantMsg:   "entries[0].source must be at most 16 characters",
		},
		{
			name: "duplicate names",
			mutate: func(c *testConfig) {
				c.Entries = append(c.Entries, testEntry{Name: "cam1", Source: "rtsp://b"})
			},
			wantField: "entries",
			wantTag:   "unique",
			wantMsg:   "entries must not repeat Name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(&cfg)

			errs := ValidateStruct(&cfg)
			if errs == nil {
				t.Fatal("ValidateStruct() = nil, want error")
			}
			if len(errs) != 1 {
				t.Fatalf("got %d errors (%v), want 1", len(errs), errs)
			}
			got := errs[0]
			if got.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", got.Field, tt.wantField)
			}
			if got.Tag != tt.wantTag {
				t.Errorf("Tag = %q, want %q", got.Tag, tt.wantTag)
			}
			if got.Error() != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got.Error(), tt.wantMsg)
			}
		})
	}
}

func TestErrors_Details(t *testing.T) {
	t.Run("single error is flattened", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Port = 70000

		errs := ValidateStruct(&cfg)
		if got := errs.Error(); got != "port must be at most 65535" {
			t.Errorf("Error() = %q", got)
		}
		details := errs.Details()
		if details["field"] != "port" {
			t.Errorf("Details[field] = %v, want port", details["field"])
		}
		if details["value"] != 70000 {
			t.Errorf("Details[value] = %v, want 70000", details["value"])
		}
	})

	t.Run("multiple errors are listed", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Port = 0
		cfg.Level = ""

		errs := ValidateStruct(&cfg)
		fields, ok := errs.Details()["fields"].([]map[string]interface{})
		if !ok || len(fields) != 2 {
			t.Fatalf("Details[fields] = %v, want two entries", errs.Details()["fields"])
		}
		if !strings.Contains(errs.Error(), "; ") {
			t.Errorf("Error() %q should join messages", errs.Error())
		}
	})

	t.Run("empty", func(t *testing.T) {
		var errs Errors
		if errs.Error() != "validation failed" {
			t.Errorf("Error() = %q", errs.Error())
		}
		if errs.Details() != nil {
			t.Errorf("Details() = %v, want nil", errs.Details())
		}
	})
}

func TestValidateStruct_NonStruct(t *testing.T) {
	errs := ValidateStruct("not a struct")
	if errs == nil {
		t.Fatal("ValidateStruct(string) = nil, want error")
	}
	if got := errs[0].Field; got != "unknown" {
		t.Errorf("Field = %q, want unknown", got)
	}
}

func TestValidateStruct_UnknownTagMessage(t *testing.T) {
	type tagged struct {
		Addr string `koanf:"addr" validate:"email"`
	}
	errs := ValidateStruct(&tagged{Addr: "nope"})
	if len(errs) != 1 {
		t.Fatalf("got %v, want one error", errs)
	}
	if got := errs[0].Message; got != "addr failed email validation" {
		t.Errorf("Message = %q", got)
	}
}
