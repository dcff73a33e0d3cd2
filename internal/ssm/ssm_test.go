package ssm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinearSuccess(t *testing.T) {
	var entered []int
	var s *SSM
	s = New("t", 3, func(s *SSM) { entered = append(entered, s.CurrentStep()) })

	done := false
	s.Start(func(s *SSM) {
		done = true
		assert.NoError(t, s.Err())
	})
	assert.Equal(t, []int{0}, entered)

	s.Next()
	s.Next()
	s.Next() // from the final step 2: reaches N=3, completes
	assert.True(t, done)
	assert.True(t, s.Completed())
	assert.Equal(t, []int{0, 1, 2}, entered)
}

func TestAbort(t *testing.T) {
	s := New("t", 5, func(s *SSM) {})
	var gotErr error
	s.Start(func(s *SSM) { gotErr = s.Err() })

	boom := errors.New("boom")
	s.MarkAborted(boom)
	assert.Equal(t, boom, gotErr)
	assert.True(t, s.Completed())
}

func TestJumpTo(t *testing.T) {
	var entered []int
	s := New("t", 4, func(s *SSM) { entered = append(entered, s.CurrentStep()) })
	s.Start(nil)
	s.JumpTo(2)
	assert.Equal(t, []int{0, 2}, entered)
}

func TestRestartAfterCompletion(t *testing.T) {
	s := New("t", 1, func(s *SSM) {})
	s.Start(nil)
	s.Next() // completes (N=1)
	require.True(t, s.Completed())

	s.Start(nil) // restart is legal on a completed SSM
	assert.False(t, s.Completed())
}

func TestNextAfterCompletionPanics(t *testing.T) {
	s := New("t", 1, func(s *SSM) {})
	s.Start(nil)
	s.Next()
	assert.Panics(t, func() { s.Next() })
}

func TestStartSubSuccessAdvancesParent(t *testing.T) {
	var parentSteps []int
	parent := New("parent", 2, func(s *SSM) { parentSteps = append(parentSteps, s.CurrentStep()) })
	parentDone := false
	parent.Start(func(s *SSM) {
		parentDone = true
		assert.NoError(t, s.Err())
	})

	child := New("child", 1, func(s *SSM) {})
	StartSub(parent, child)
	child.Next() // child succeeds -> parent.Next()

	assert.Equal(t, []int{0, 1}, parentSteps)

	parent.Next() // advancing from the final step completes the parent
	assert.True(t, parentDone)
}

func TestStartSubFailureAbortsParentWithSameError(t *testing.T) {
	parent := New("parent", 3, func(s *SSM) {})
	var parentErr error
	parent.Start(func(s *SSM) { parentErr = s.Err() })

	child := New("child", 2, func(s *SSM) {})
	StartSub(parent, child)

	boom := errors.New("child failed")
	child.MarkAborted(boom)

	assert.Equal(t, boom, parentErr)
	assert.True(t, parent.Completed())
}
