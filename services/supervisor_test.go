package services

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"polar-keeper/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSupervisor(t *testing.T, executable string, args ...string) *ServiceSupervisor {
	t.Helper()
	dir := t.TempDir()
	s := NewServiceSupervisor(models.ServiceHandle{
		Name:       "polar-cloud",
		PidFile:    filepath.Join(dir, "run", "polar-cloud.pid"),
		Executable: executable,
		Args:       args,
		LogFile:    filepath.Join(dir, "logs", "polar_cloud.log"),
		WorkDir:    dir,
	})
	s.GracefulTimeout = 3 * time.Second
	s.ForcefulTimeout = 3 * time.Second
	return s
}

/**
 * Test the full start/status/stop lifecycle
 * @param {*testing.T} t - Testing framework instance
 * @description
 * - Start spawns a detached process and records its PID in the PID file
 * - Status reports running while the process is alive
 * - Stop terminates gracefully and removes the PID file unconditionally
 */
func TestSupervisorLifecycle(t *testing.T) {
	s := testSupervisor(t, "sleep", "60")

	result, err := s.Start(context.Background())
	require.NoError(t, err)
	assert.False(t, result.AlreadyRunning)
	assert.Greater(t, result.Pid, 0)

	// PID文件内容就是进程号
	data, err := os.ReadFile(s.Handle().PidFile)
	require.NoError(t, err)
	pid, err := strconv.Atoi(string(data[:len(data)-1]))
	require.NoError(t, err)
	assert.Equal(t, result.Pid, pid)

	state := s.Status()
	assert.Equal(t, models.StatusRunning, state.Status)
	assert.Equal(t, result.Pid, state.Pid)

	stop, err := s.Stop()
	require.NoError(t, err)
	assert.False(t, stop.NotRunning)
	assert.False(t, stop.Forced)
	assert.Equal(t, result.Pid, stop.Pid)

	// 停止后PID文件必须消失
	assert.NoFileExists(t, s.Handle().PidFile)
	assert.Equal(t, models.StatusStopped, s.Status().Status)
}

/**
 * Test that a second start is a no-op while the process lives
 * @param {*testing.T} t - Testing framework instance
 */
func TestSupervisorStartAlreadyRunning(t *testing.T) {
	s := testSupervisor(t, "sleep", "60")
	defer s.Stop()

	first, err := s.Start(context.Background())
	require.NoError(t, err)

	second, err := s.Start(context.Background())
	require.NoError(t, err)
	assert.True(t, second.AlreadyRunning)
	assert.Equal(t, first.Pid, second.Pid)
}

// 没有PID文件时stop是空转，不是错误
func TestSupervisorStopNotRunning(t *testing.T) {
	s := testSupervisor(t, "sleep", "60")

	result, err := s.Stop()
	require.NoError(t, err)
	assert.True(t, result.NotRunning)
}

/**
 * Test stale PID file self-healing
 * @param {*testing.T} t - Testing framework instance
 * @description
 * - A PID file pointing at a dead process must be removed on status query
 * - Start after a crash must succeed instead of claiming already-running
 */
func TestSupervisorStalePidFile(t *testing.T) {
	s := testSupervisor(t, "sleep", "60")

	// 跑一个立即结束的进程拿到一个确定已死的PID
	cmd := exec.Command("true")
	require.NoError(t, cmd.Start())
	deadPid := cmd.Process.Pid
	require.NoError(t, cmd.Wait())

	require.NoError(t, os.MkdirAll(filepath.Dir(s.Handle().PidFile), 0755))
	require.NoError(t, os.WriteFile(s.Handle().PidFile, []byte(strconv.Itoa(deadPid)+"\n"), 0644))

	state := s.Status()
	assert.Equal(t, models.StatusStopped, state.Status)
	assert.NoFileExists(t, s.Handle().PidFile)

	// 陈旧PID不阻碍新启动
	require.NoError(t, os.WriteFile(s.Handle().PidFile, []byte(strconv.Itoa(deadPid)+"\n"), 0644))
	result, err := s.Start(context.Background())
	require.NoError(t, err)
	assert.False(t, result.AlreadyRunning)
	defer s.Stop()
	assert.NotEqual(t, deadPid, result.Pid)
}

// 内容损坏的PID文件同样自愈删除
func TestSupervisorCorruptPidFile(t *testing.T) {
	s := testSupervisor(t, "sleep", "60")
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Handle().PidFile), 0755))
	require.NoError(t, os.WriteFile(s.Handle().PidFile, []byte("not-a-pid\n"), 0644))

	assert.Equal(t, models.StatusStopped, s.Status().Status)
	assert.NoFileExists(t, s.Handle().PidFile)
}

/**
 * Test escalation to forceful termination
 * @param {*testing.T} t - Testing framework instance
 * @description
 * - The victim ignores the graceful termination signal
 * - Stop must escalate after the graceful window and still return in
 *   bounded time with the PID file removed
 */
func TestSupervisorStopForced(t *testing.T) {
	s := testSupervisor(t, "sh", "-c", `trap "" TERM; sleep 60`)
	s.GracefulTimeout = 500 * time.Millisecond
	s.ForcefulTimeout = 3 * time.Second

	_, err := s.Start(context.Background())
	require.NoError(t, err)

	start := time.Now()
	stop, err := s.Stop()
	elapsed := time.Since(start)
	require.NoError(t, err)
	assert.True(t, stop.Forced)
	// 有界: 优雅窗口+确认窗口之内必须返回
	assert.Less(t, elapsed, s.GracefulTimeout+s.ForcefulTimeout+2*time.Second)
	assert.NoFileExists(t, s.Handle().PidFile)
}

// stdout/stderr重定向到日志文件
func TestSupervisorLogCapture(t *testing.T) {
	s := testSupervisor(t, "sh", "-c", "echo hello-from-service")

	result, err := s.Start(context.Background())
	require.NoError(t, err)

	// 进程很快退出，轮询等日志落盘
	deadline := time.Now().Add(3 * time.Second)
	var content []byte
	for time.Now().Before(deadline) {
		content, _ = os.ReadFile(s.Handle().LogFile)
		if len(content) > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	assert.Contains(t, string(content), "hello-from-service")
	assert.Greater(t, result.Pid, 0)
}

/**
 * Test restart behaviour
 * @param {*testing.T} t - Testing framework instance
 */
func TestSupervisorRestart(t *testing.T) {
	s := testSupervisor(t, "sleep", "60")
	defer s.Stop()

	first, err := s.Start(context.Background())
	require.NoError(t, err)

	second, err := s.Restart(context.Background())
	require.NoError(t, err)
	assert.False(t, second.AlreadyRunning)
	assert.NotEqual(t, first.Pid, second.Pid)
	assert.Equal(t, models.StatusRunning, s.Status().Status)
}
