package scheduler

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func noop(context.Context) error { return nil }

func TestAdd(t *testing.T) {
	s := New(quietLogger())
	require.NoError(t, s.Add("key_rate", "@hourly", noop))
	require.NoError(t, s.Add("redecide", "@every 15m", noop))
	require.NoError(t, s.Add("disabled", "", noop))
	assert.Len(t, s.cron.Entries(), 2)

	err := s.Add("broken", "every now and then", noop)
	assert.ErrorContains(t, err, "failed to schedule broken")
}

func TestWrapLogsFailures(t *testing.T) {
	log, hook := test.NewNullLogger()
	s := New(log)

	calls := 0
	s.wrap("key_rate", func(ctx context.Context) error {
		calls++
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return errors.New("cbr down")
	})()

	assert.Equal(t, 1, calls)
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "key_rate", entry.Data["job"])
}

func TestStartStop(t *testing.T) {
	s := New(quietLogger())
	require.NoError(t, s.Add("redecide", "@every 1h", noop))
	s.Start()
	s.Stop(context.Background())
}
