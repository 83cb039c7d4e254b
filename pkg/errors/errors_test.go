package errors

import (
	"fmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"testing"
	"time"
)

func TestWrapKeepsCause(t *testing.T) {
	cause := New("boom")
	err := Wrap(cause, "dial frame")
	require.Error(t, err)
	assert.True(t, Is(err, cause))
	assert.Equal(t, "dial frame: boom", err.Error())
	assert.Nil(t, Wrap(nil, "nothing"))
	assert.Nil(t, WrapAndReport(nil, "nothing"))
}

func TestReportHelpersInvokeReporters(t *testing.T) {
	require.NoError(t, os.Unsetenv(debugMode))
	ResetReporters()
	defer ResetReporters()

	var got []error
	RegisterReporter(ReporterFunc(func(err error) {
		got = append(got, err)
	}))

	_ = NewWithReport("first")
	_ = ErrorfAndReport("second %d", 2)
	_ = WrapfAndReport(fmt.Errorf("cause"), "third %s", "wrap")
	_ = WithStackAndReport(fmt.Errorf("fourth"))

	require.Len(t, got, 4)
	assert.Equal(t, "first", got[0].Error())
	assert.Equal(t, "second 2", got[1].Error())
	assert.Equal(t, "third wrap: cause", got[2].Error())
	assert.Equal(t, "fourth", got[3].Error())
}

func TestReportDisabledInDebugMode(t *testing.T) {
	require.NoError(t, os.Setenv(debugMode, "1"))
	defer os.Unsetenv(debugMode)
	ResetReporters()
	defer ResetReporters()

	called := false
	RegisterReporter(ReporterFunc(func(error) { called = true }))
	_ = NewWithReport("quiet")
	assert.False(t, called)
}

func TestStackBasedRateLimited(t *testing.T) {
	now := time.Unix(1700000000, 0)
	limiter := newRateLimiter(time.Minute)
	limiter.now = func() time.Time { return now }

	limited, stats := limiter.StackBasedRateLimited("a")
	assert.False(t, limited)
	assert.Nil(t, stats.lastReportTime)

	now = now.Add(10 * time.Second)
	limited, _ = limiter.StackBasedRateLimited("a")
	assert.True(t, limited)

	limited, _ = limiter.StackBasedRateLimited("b")
	assert.False(t, limited)

	now = now.Add(time.Minute)
	limited, stats = limiter.StackBasedRateLimited("a")
	assert.False(t, limited)
	assert.Equal(t, 1, stats.occurCountSinceLastReport)
	assert.Equal(t, 2, stats.totalOccurCount)
}

func TestFullStackNotEmpty(t *testing.T) {
	stacks := callers().fullStack()
	require.NotEmpty(t, stacks)
	assert.Contains(t, stacks[0], "TestFullStackNotEmpty")
}
