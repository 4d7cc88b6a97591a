//go:build !unix && !linux && !darwin

package utils

import "os/exec"

// SetNewPG 设置进程属性，使子进程在父进程退出后继续运行
// 默认实现，用于不支持的构建目标
func SetNewPG(cmd *exec.Cmd) {
	// 默认不做任何处理
}

// IsProcessRunning 检查进程是否存活
func IsProcessRunning(pid int) (bool, error) {
	panic("IsProcessRunning not implemented for this platform")
}

// TerminateProcess 发送优雅终止请求
func TerminateProcess(pid int) error {
	panic("TerminateProcess not implemented for this platform")
}

// KillProcessByPID 强制终止进程
func KillProcessByPID(pid int) error {
	panic("KillProcessByPID not implemented for this platform")
}
