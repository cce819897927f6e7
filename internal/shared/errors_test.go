package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("%w: quantity", ErrValidation), "validation"},
		{fmt.Errorf("wrap: %w", fmt.Errorf("%w: id 4", ErrNotFound)), "not_found"},
		{fmt.Errorf("%w: already approved", ErrConflict), "conflict"},
		{fmt.Errorf("%w: connection reset", ErrPersistence), "persistence"},
		{errors.New("boom"), "internal"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Kind(tc.err))
	}
}

func TestUserSafeMessageHidesInternalErrors(t *testing.T) {
	require.Equal(t, "internal error", UserSafeMessage(errors.New("pq: password authentication failed")))
	require.Equal(t, "conflict: stale", UserSafeMessage(fmt.Errorf("%w: stale", ErrConflict)))
	require.Empty(t, UserSafeMessage(nil))
}
