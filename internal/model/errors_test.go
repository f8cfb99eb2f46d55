package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, ""},
		{"plain", errors.New("boom"), ""},
		{"parse", ParseError(errors.New("bad")), ErrParse},
		{"data wrapped by eris", eris.Wrap(DataError(errors.New("empty")), "load"), ErrData},
		{"serialization wrapped by fmt", fmt.Errorf("outer: %w", SerializationError(errors.New("nan"))), ErrSerialization},
		{"stage error", &StageError{Stage: StageParse, Kind: ErrParse, Err: errors.New("x")}, ErrParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestNewStageError_UsesChainKind(t *testing.T) {
	t.Parallel()

	cause := ParseError(errors.New("truncated"))
	se := NewStageError(StageParse, ErrData, eris.Wrap(cause, "dxf"))

	assert.Equal(t, ErrParse, se.Kind)
	assert.Equal(t, StageParse, se.Stage)
	assert.Contains(t, se.Error(), "parse: ParseError")
	assert.True(t, IsKind(se, ErrParse))
	require.ErrorIs(t, se, cause)
}

func TestNewStageError_Fallback(t *testing.T) {
	t.Parallel()

	se := NewStageError(StageAnnotate, ErrSerialization, errors.New("disk full"))
	assert.Equal(t, ErrSerialization, se.Kind)
	assert.False(t, IsKind(se, ErrData))
}
