//go:build unix || linux || darwin

package utils

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
)

// SetNewPG 设置进程属性，使子进程在父进程退出后继续运行
func SetNewPG(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

/**
 * IsProcessRunning 检查进程是否存活
 * @param {int} pid - 进程ID
 * @returns {bool} 进程存活返回true
 * @description
 * - 用信号0探测，不实际发送信号
 * - EPERM表示进程存在但无权限，同样视为存活
 * - 已退出但尚未被回收的僵尸进程视为不存活(/proc可用时)
 */
func IsProcessRunning(pid int) (bool, error) {
	if pid <= 0 {
		return false, fmt.Errorf("invalid pid: %d", pid)
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false, nil
	}
	err = process.Signal(syscall.Signal(0))
	if err != nil && err != syscall.EPERM {
		return false, nil
	}
	if isZombie(pid) {
		return false, nil
	}
	return true, nil
}

// isZombie 通过/proc/<pid>/stat判断进程是否是僵尸态，/proc不可用时返回false
func isZombie(pid int) bool {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return false
	}
	// stat格式: pid (comm) state ...，comm可能含空格，定位到右括号之后
	text := string(data)
	idx := strings.LastIndex(text, ")")
	if idx < 0 || idx+2 >= len(text) {
		return false
	}
	return text[idx+2] == 'Z'
}

// TerminateProcess 发送SIGTERM请求进程优雅退出
func TerminateProcess(pid int) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process with PID %d: %v", pid, err)
	}
	return process.Signal(syscall.SIGTERM)
}

// KillProcessByPID 发送SIGKILL强制终止进程
func KillProcessByPID(pid int) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process with PID %d: %v", pid, err)
	}
	return process.Signal(syscall.SIGKILL)
}
