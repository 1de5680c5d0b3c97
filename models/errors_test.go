package models_test

import (
	"errors"
	"fmt"
	"testing"

	"objectstore/models"
)

func TestClassOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want models.Kind
	}{
		{"invalid argument", fmt.Errorf("bad tag: %w", models.ErrInvalidArgument), models.KindInvalidArgument},
		{"unauthenticated", fmt.Errorf("no token: %w", models.ErrUnauthenticated), models.KindUnauthenticated},
		{"not found", fmt.Errorf("missing: %w", models.ErrNotFound), models.KindNotFound},
		{"conflict", fmt.Errorf("race: %w", models.ErrConflict), models.KindConflict},
		{"internal", fmt.Errorf("boom: %w", models.ErrInternal), models.KindInternal},
		{"unwrapped", errors.New("plain error"), models.KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := models.ClassOf(tt.err); got != tt.want {
				t.Errorf("ClassOf(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
