package source

import (
	"context"
	"errors"
	"testing"

	"github.com/salonbook/mapsync/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic_ReturnsCopy(t *testing.T) {
	s := Static{{ID: "a"}, {ID: "b"}}

	got, err := s.Descriptors(context.Background())
	require.NoError(t, err)
	got[0].ID = "z"

	assert.Equal(t, "a", s[0].ID)
}

func TestFunc(t *testing.T) {
	want := errors.New("backend down")
	var src Source = Func(func(ctx context.Context) ([]core.MarkerDescriptor, error) {
		return nil, want
	})

	_, err := src.Descriptors(context.Background())
	assert.ErrorIs(t, err, want)
}
