//go:build !windows

package processstate

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/core-tools/hsu-platform/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StateMockLogger is a simple mock implementation of Logger for testing
type StateMockLogger struct{}

func (m *StateMockLogger) LogLevelf(level int, format string, args ...interface{}) {}
func (m *StateMockLogger) Debugf(format string, args ...interface{})               {}
func (m *StateMockLogger) Infof(format string, args ...interface{})                {}
func (m *StateMockLogger) Warnf(format string, args ...interface{})                {}
func (m *StateMockLogger) Errorf(format string, args ...interface{})               {}

func startSleeper(t *testing.T, argv0 string) *exec.Cmd {
	t.Helper()
	cmd := &exec.Cmd{
		Path: "/bin/sleep",
		Args: []string{argv0, "30"},
	}
	require.NoError(t, cmd.Start())
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_, _ = cmd.Process.Wait()
	})
	return cmd
}

func TestIsProcessRunning(t *testing.T) {
	running, err := IsProcessRunning(os.Getpid())
	require.NoError(t, err)
	assert.True(t, running)

	_, err = IsProcessRunning(0)
	assert.Error(t, err)

	cmd := exec.Command("/bin/sh", "-c", "exit 0")
	require.NoError(t, cmd.Run())
	running, err = IsProcessRunning(cmd.Process.Pid)
	require.NoError(t, err)
	assert.False(t, running)
}

func TestInspect_LiveProcess(t *testing.T) {
	inspector := NewInspector(&StateMockLogger{})
	cmd := startSleeper(t, "platform-test-sleeper")

	handle, err := inspector.Inspect(cmd.Process.Pid)
	require.NoError(t, err)

	username, err := inspector.CurrentUser()
	require.NoError(t, err)

	assert.Equal(t, cmd.Process.Pid, handle.PID)
	assert.Equal(t, "platform-test-sleeper", handle.Argv0)
	assert.Equal(t, username, handle.Username)
	assert.False(t, handle.Zombie)
	assert.True(t, handle.Matches(username, "platform-test-sleeper"))
	assert.False(t, handle.Matches(username, "something-else"))
	assert.False(t, handle.Matches("nobody-at-all", "platform-test-sleeper"))

	alive, err := inspector.Alive(cmd.Process.Pid)
	require.NoError(t, err)
	assert.True(t, alive)
}

func TestInspect_ZombieAndGone(t *testing.T) {
	inspector := NewInspector(&StateMockLogger{})
	cmd := &exec.Cmd{Path: "/bin/sleep", Args: []string{"sleep", "30"}}
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid

	// killed but not reaped: a zombie child of the test
	require.NoError(t, cmd.Process.Kill())
	assert.Eventually(t, func() bool {
		handle, err := inspector.Inspect(pid)
		return err == nil && handle.Zombie
	}, 5*time.Second, 20*time.Millisecond)

	handle, err := inspector.Inspect(pid)
	require.NoError(t, err)
	assert.True(t, handle.Matches("anyone", "anything"))

	alive, err := inspector.Alive(pid)
	require.NoError(t, err)
	assert.False(t, alive)

	_, _ = cmd.Process.Wait()

	_, err = inspector.Inspect(pid)
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))

	alive, err = inspector.Alive(pid)
	require.NoError(t, err)
	assert.False(t, alive)
}

func TestInspect_InvalidPID(t *testing.T) {
	_, err := NewInspector(&StateMockLogger{}).Inspect(-1)
	assert.True(t, errors.IsValidationError(err))
}

func TestFindByName(t *testing.T) {
	inspector := NewInspector(&StateMockLogger{})
	cmd := startSleeper(t, "sleep")

	pids, err := inspector.FindByName("/bin/sleep")
	require.NoError(t, err)
	assert.Contains(t, pids, cmd.Process.Pid)
}

func TestListeningAddresses(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	port := listener.Addr().(*net.TCPAddr).Port

	addresses, err := NewInspector(&StateMockLogger{}).ListeningAddresses(os.Getpid())
	require.NoError(t, err)
	assert.Contains(t, addresses, fmt.Sprintf("127.0.0.1:%d", port))

	seen := make(map[string]bool)
	for _, address := range addresses {
		assert.False(t, seen[address], "duplicate %s", address)
		seen[address] = true
	}
}
