// SPDX-License-Identifier: Apache-2.0

package points

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgtest/injection-points/injection/shmem"
)

func TestRunInvokesAttachedCallback(t *testing.T) {
	f := New(shmem.NewHeapProvider())

	var fired []string
	f.RegisterCallback("lib", "record", func(ctx context.Context, name string) error {
		fired = append(fired, name)
		return nil
	})

	require.NoError(t, f.Attach("p1", "lib", "record"))
	require.NoError(t, f.Run(context.Background(), "p1"))
	require.NoError(t, f.Run(context.Background(), "p1"))
	assert.Equal(t, []string{"p1", "p1"}, fired)
}

func TestRunUnattachedIsNoop(t *testing.T) {
	f := New(shmem.NewHeapProvider())
	assert.NoError(t, f.Run(context.Background(), "nobody"))
}

func TestRunPropagatesCallbackError(t *testing.T) {
	f := New(shmem.NewHeapProvider())
	boom := errors.New("boom")
	f.RegisterCallback("lib", "fail", func(context.Context, string) error { return boom })

	require.NoError(t, f.Attach("p1", "lib", "fail"))
	assert.Equal(t, boom, f.Run(context.Background(), "p1"))
}

func TestRunResolvesCallbackInRunningProcess(t *testing.T) {
	provider := shmem.NewHeapProvider()
	attacher := New(provider)
	runner := New(provider)

	require.NoError(t, attacher.Attach("p1", "lib", "record"))

	err := runner.Run(context.Background(), "p1")
	assert.True(t, errors.Is(err, ErrUnknownCallback))

	called := false
	runner.RegisterCallback("lib", "record", func(context.Context, string) error {
		called = true
		return nil
	})
	require.NoError(t, runner.Run(context.Background(), "p1"))
	assert.True(t, called)
}

func TestAttachValidation(t *testing.T) {
	f := New(shmem.NewHeapProvider())

	assert.True(t, errors.Is(f.Attach("", "lib", "fn"), ErrInvalidName))
	assert.True(t, errors.Is(f.Attach(strings.Repeat("n", NameMaxLen), "lib", "fn"), ErrInvalidName))
	assert.True(t, errors.Is(f.Attach("p", strings.Repeat("l", LibraryMaxLen), "fn"), ErrInvalidName))
	assert.True(t, errors.Is(f.Attach("p", "lib", strings.Repeat("f", FunctionMaxLen)), ErrInvalidName))
	assert.True(t, errors.Is(f.Attach("p\x00hidden", "lib", "fn"), ErrInvalidName))
	assert.True(t, errors.Is(f.Attach("p", "li\x00b", "fn"), ErrInvalidName))
	assert.True(t, errors.Is(f.Attach("p", "lib", "f\x00n"), ErrInvalidName))

	assert.NoError(t, f.Attach(strings.Repeat("n", NameMaxLen-1), "lib", "fn"))
	list, err := f.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestAttachDuplicate(t *testing.T) {
	f := New(shmem.NewHeapProvider())
	require.NoError(t, f.Attach("p1", "lib", "fn"))
	assert.True(t, errors.Is(f.Attach("p1", "lib", "other"), ErrPointExists))

	list, err := f.List()
	require.NoError(t, err)
	assert.Equal(t, []Point{{Name: "p1", Library: "lib", Function: "fn"}}, list)
}

func TestAttachFull(t *testing.T) {
	f := New(shmem.NewHeapProvider())
	for i := 0; i < MaxPoints; i++ {
		require.NoError(t, f.Attach(fmt.Sprintf("p%d", i), "lib", "fn"))
	}
	assert.True(t, errors.Is(f.Attach("overflow", "lib", "fn"), ErrRegistryFull))

	require.NoError(t, f.Detach("p7"))
	assert.NoError(t, f.Attach("overflow", "lib", "fn"))
}

func TestDetach(t *testing.T) {
	f := New(shmem.NewHeapProvider())
	called := false
	f.RegisterCallback("lib", "fn", func(context.Context, string) error {
		called = true
		return nil
	})

	require.NoError(t, f.Attach("p1", "lib", "fn"))
	require.NoError(t, f.Detach("p1"))
	require.NoError(t, f.Run(context.Background(), "p1"))
	assert.False(t, called)

	assert.True(t, errors.Is(f.Detach("p1"), ErrPointNotFound))

	list, err := f.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}
