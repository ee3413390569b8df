package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"validation", fmt.Errorf("%w: unknown bet kind", ErrValidation), KindValidation},
		{"insufficient funds", fmt.Errorf("debit 50: %w", ErrInsufficientFunds), KindInsufficientFunds},
		{"precondition", fmt.Errorf("%w: no bets placed", ErrPrecondition), KindPrecondition},
		{"tagged infrastructure", fmt.Errorf("%w: connection reset", ErrInfrastructure), KindInfrastructure},
		{"untagged", errors.New("boom"), KindInfrastructure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}
