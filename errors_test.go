package groupcomm

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestKindSurvivesWrapping(t *testing.T) {
	err := errors.Wrapf(ErrCapacityExceeded, "group %q holds %d tasks", "G", 3)
	err = errors.WithMessage(err, "adding m3")

	assert.True(t, errors.Is(err, ErrCapacityExceeded))
	assert.False(t, errors.Is(err, ErrIncompleteGroup))
	assert.Equal(t, CapacityViolation, KindOf(err))
	assert.Contains(t, err.Error(), "group capacity exceeded")
}

func TestKindsAreDistinct(t *testing.T) {
	kinds := map[ErrorKind]error{
		ProtocolViolation: ErrGroupSealed,
		CapacityViolation: ErrCapacityExceeded,
		MembershipError:   ErrDuplicateMember,
		IncompleteState:   ErrIncompleteGroup,
	}
	for kind, err := range kinds {
		assert.Equal(t, kind, KindOf(err), kind.String())
	}
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestOnlyIncompleteStateIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(errors.Wrap(ErrIncompleteGroup, "m1")))
	assert.False(t, IsRetryable(ErrCapacityExceeded))
	assert.False(t, IsRetryable(ErrGroupNotSealed))
	assert.False(t, IsRetryable(ErrUnknownTask))
}

func TestTaskConfigDirections(t *testing.T) {
	bcastRoot := &TaskConfig{Kind: Broadcast, Role: RoleRoot, Children: []string{"m1", "m2"}}
	assert.Equal(t, []string{"m1", "m2"}, bcastRoot.Targets())
	assert.Nil(t, bcastRoot.Sources())

	reduceLeaf := &TaskConfig{Kind: Reduce, Role: RoleLeaf, Parent: "m0"}
	assert.Equal(t, []string{"m0"}, reduceLeaf.Targets())
	assert.Empty(t, reduceLeaf.Sources())

	reduceRoot := &TaskConfig{Kind: Reduce, Role: RoleRoot, Children: []string{"m1"}}
	assert.Nil(t, reduceRoot.Targets())
	assert.Equal(t, []string{"m1"}, reduceRoot.Sources())
}
