package audio

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	sync.Mutex
	played [][]byte
	err    error
	closed bool
}

func (f *fakeSink) Play(ctx context.Context, data []byte) error {
	f.Lock()
	defer f.Unlock()
	f.played = append(f.played, data)
	return f.err
}

func (f *fakeSink) Close() error {
	f.Lock()
	defer f.Unlock()
	f.closed = true
	return nil
}

func TestRouterPlay(t *testing.T) {
	dac := &fakeSink{}
	monitor := &fakeSink{}
	off := &fakeSink{}

	r := NewRouter()
	r.AddSink("dac", dac, true)
	r.AddSink("monitor", monitor, true)
	r.AddSink("off", off, false)

	require.NoError(t, r.Play(context.Background(), []byte{1, 2, 3}))
	assert.Len(t, dac.played, 1)
	assert.Len(t, monitor.played, 1)
	assert.Empty(t, off.played)

	// a sink added under an existing name replaces it
	r.AddSink("monitor", off, true)
	require.NoError(t, r.Play(context.Background(), []byte{4}))
	assert.Len(t, dac.played, 2)
	assert.Len(t, monitor.played, 1)
	assert.Len(t, off.played, 1)
}

func TestRouterErrors(t *testing.T) {
	boom := errors.New("boom")
	r := NewRouter()
	r.AddSink("b", &fakeSink{err: boom}, true)
	r.AddSink("a", &fakeSink{}, true)

	err := r.Play(context.Background(), []byte{1})
	require.Error(t, err)

	var errs SinkErrors
	require.True(t, errors.As(err, &errs))
	require.Len(t, errs, 1)
	assert.Equal(t, "b", errs[0].Name)
	assert.ErrorIs(t, errs[0], boom)
	assert.Equal(t, "sink b: boom", err.Error())
}

func TestRouterClose(t *testing.T) {
	a := &fakeSink{}
	off := &fakeSink{}
	r := NewRouter()
	r.AddSink("a", a, true)
	r.AddSink("off", off, false)

	require.NoError(t, r.Close())
	assert.True(t, a.closed)
	assert.True(t, off.closed)
}
