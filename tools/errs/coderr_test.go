package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsMatchesByCode(t *testing.T) {
	require.ErrorIs(t, ErrValidation.Wrap(), ErrValidation)
	require.ErrorIs(t, ErrValidation.WrapMsg("missing sender"), ErrValidation)
	require.NotErrorIs(t, ErrValidation.Wrap(), ErrPersistence)

	// 经过 fmt 再包一层仍按 code 命中
	wrapped := fmt.Errorf("submit: %w", ErrPersistence.WrapMsg("mongo down"))
	require.ErrorIs(t, wrapped, ErrPersistence)
	require.NotErrorIs(t, wrapped, ErrValidation)
}

func TestWrapMsgAccumulatesDetail(t *testing.T) {
	err := ErrValidation.WrapMsg("unknown messageType", "messageType", "sticker")
	var ce *CodeError
	require.True(t, errors.As(err, &ce))
	require.Equal(t, 1001, ce.Code)
	require.Contains(t, ce.Detail, "messageType=sticker")

	// WrapMsg 不污染共享的哨兵值
	require.Empty(t, ErrValidation.Detail)
}

func TestWithDetailChains(t *testing.T) {
	e := ErrDelivery.WithDetail("conn=c1").WithDetail("user=bob")
	require.Equal(t, ErrDelivery.Code, e.Code)
	require.Equal(t, "conn=c1, user=bob", e.Detail)
	require.Empty(t, ErrDelivery.Detail)
}

func TestErrorStringContainsCode(t *testing.T) {
	require.Contains(t, ErrUnauthenticated.Error(), "1101")
	require.Contains(t, ErrUnauthenticated.Error(), "unauthenticated")
}
