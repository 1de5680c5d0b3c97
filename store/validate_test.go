package store_test

import (
	"errors"
	"testing"

	"objectstore/models"
	"objectstore/store"
)

func TestIsValidName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"", true},
		{"alpha", true},
		{"alpha-beta_gamma:delta+epsilon/zeta~eta#theta", true},
		{"123", true},
		{"has space", false},
		{"quote'd", false},
		{"semi;colon", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := store.IsValidName(tt.name); got != tt.want {
				t.Errorf("IsValidName(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestParseTagList(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []string
		wantErr bool
	}{
		{"empty", "", nil, false},
		{"comma", "alpha,beta,gamma", []string{"alpha", "beta", "gamma"}, false},
		{"comma with spaces", "alpha, beta , gamma", []string{"alpha", "beta", "gamma"}, false},
		{"json array", `["alpha","beta"]`, []string{"alpha", "beta"}, false},
		{"invalid char rejected", "has space,ok", nil, true},
		{"malformed json array", `["alpha",`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ParseTagList(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseTagList(%q) = %v, want error", tt.raw, got)
				}
				if !errors.Is(err, models.ErrInvalidArgument) {
					t.Errorf("ParseTagList(%q) error = %v, want ErrInvalidArgument", tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTagList(%q) unexpected error: %v", tt.raw, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseTagList(%q) = %v, want %v", tt.raw, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ParseTagList(%q)[%d] = %q, want %q", tt.raw, i, got[i], tt.want[i])
				}
			}
		})
	}
}

// TestParseTagListDoesNotNormalizeSingleQuotes exercises the deliberate
// behavioral correction for Open Question 3: single-quoted JSON-array-like
// input is never rewritten to double quotes before parsing, so it fails
// strict JSON parsing outright rather than silently succeeding with
// corrupted tag text.
func TestParseTagListDoesNotNormalizeSingleQuotes(t *testing.T) {
	_, err := store.ParseTagList(`['alpha','beta']`)
	if err == nil {
		t.Fatal("expected malformed-JSON error for single-quoted array, got none")
	}
	if !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("error = %v, want ErrInvalidArgument", err)
	}
}
