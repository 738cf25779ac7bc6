package clip

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withStubs(t *testing.T, native, osc52 error) {
	t.Helper()
	origNative, origOSC := nativeWriteAll, osc52WriteAll
	nativeWriteAll = func(string) error { return native }
	osc52WriteAll = func(string) error { return osc52 }
	t.Cleanup(func() {
		nativeWriteAll, osc52WriteAll = origNative, origOSC
	})
}

func TestWriteAllPrefersNative(t *testing.T) {
	withStubs(t, nil, errors.New("should not be tried"))

	res, err := WriteAll("/wt/feature-x")
	require.NoError(t, err)
	assert.Equal(t, MethodNative, res.Method)
	assert.Empty(t, res.FilePath)
}

func TestWriteAllFallsBackToOSC52(t *testing.T) {
	withStubs(t, errors.New("no display"), nil)

	res, err := WriteAll("https://github.com/o/r/pull/7")
	require.NoError(t, err)
	assert.Equal(t, MethodOSC52, res.Method)
}

func TestWriteAllFallsBackToTempFile(t *testing.T) {
	withStubs(t, errors.New("no display"), errors.New("not a tty"))

	res, err := WriteAll("feature/fix-auth")
	require.NoError(t, err)
	assert.Equal(t, MethodFile, res.Method)
	require.NotEmpty(t, res.FilePath)
	t.Cleanup(func() { _ = os.Remove(res.FilePath) })

	data, err := os.ReadFile(res.FilePath)
	require.NoError(t, err)
	assert.Equal(t, "feature/fix-auth", string(data))
	assert.True(t, strings.Contains(res.FilePath, "flock-clipboard-"))
}

func TestOSC52RejectsEmptyAndHuge(t *testing.T) {
	assert.Error(t, writeAllOSC52(""))
	assert.Error(t, writeAllOSC52(strings.Repeat("x", osc52LimitBytes+1)))
}
