package services

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"polar-keeper/internal/config"
	"polar-keeper/internal/logger"
	"polar-keeper/internal/models"
	"polar-keeper/internal/utils"
)

/**
 * ServiceSupervisor 被管理进程的生命周期控制器
 * @property {models.ServiceHandle} handle - 进程句柄(路径全部来自主机档案)
 * @property {time.Duration} gracefulTimeout - SIGTERM后等待退出的时限
 * @property {time.Duration} forcefulTimeout - SIGKILL后确认退出的时限
 * @description
 * - 建立在PID文件契约上，有无systemd行为完全一致
 * - 两次调用之间只有PID文件是事实来源，不持有任何内存句柄
 * - 陈旧PID文件(进程已死)在status/start时自愈删除
 */
type ServiceSupervisor struct {
	handle          models.ServiceHandle
	GracefulTimeout time.Duration
	ForcefulTimeout time.Duration
}

func NewServiceSupervisor(handle models.ServiceHandle) *ServiceSupervisor {
	return &ServiceSupervisor{
		handle:          handle,
		GracefulTimeout: 10 * time.Second,
		ForcefulTimeout: 5 * time.Second,
	}
}

/**
 * NewSupervisorFromProfile 按主机档案构造被管理进程的监督器
 * @description
 * - 启动命令可由配置覆盖(service.command/args)，默认用python3跑安装目录下的连接器脚本
 * - 超时时限来自配置(service.graceful_timeout/forceful_timeout)
 */
func NewSupervisorFromProfile(profile *models.HostProfile, cfg *config.AppConfig) *ServiceSupervisor {
	command := cfg.Service.Command
	args := cfg.Service.Args
	if command == "" {
		command = "python3"
		args = []string{filepath.Join(profile.InstallRoot, "polar_cloud.py")}
	}
	s := NewServiceSupervisor(models.ServiceHandle{
		Name:       "polar-cloud",
		PidFile:    profile.PidFile(),
		Executable: command,
		Args:       args,
		LogFile:    profile.ServiceLogFile(),
		WorkDir:    profile.InstallRoot,
	})
	if cfg.Service.GracefulTimeout > 0 {
		s.GracefulTimeout = time.Duration(cfg.Service.GracefulTimeout) * time.Second
	}
	if cfg.Service.ForcefulTimeout > 0 {
		s.ForcefulTimeout = time.Duration(cfg.Service.ForcefulTimeout) * time.Second
	}
	return s
}

func (s *ServiceSupervisor) Handle() models.ServiceHandle {
	return s.handle
}

/**
 * Start 启动被管理进程
 * @returns {*models.StartResult} AlreadyRunning=true表示进程此前已在运行(提示性，不是错误)
 * @description
 * - PID文件指向存活进程时直接返回AlreadyRunning
 * - stdout/stderr重定向到日志文件，新进程组脱离本进程生命周期
 * - 新PID写入PID文件后才返回
 */
func (s *ServiceSupervisor) Start(ctx context.Context) (*models.StartResult, error) {
	if pid, live := s.readLivePid(); live {
		logger.Infof("Service '%s' already running (PID: %d)", s.handle.Name, pid)
		return &models.StartResult{Pid: pid, AlreadyRunning: true}, nil
	}

	if err := os.MkdirAll(filepath.Dir(s.handle.LogFile), 0755); err != nil {
		return nil, fmt.Errorf("create log directory failed: %w", err)
	}
	logFile, err := os.OpenFile(s.handle.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file '%s' failed: %w", s.handle.LogFile, err)
	}
	defer logFile.Close()

	// 不用CommandContext: 子进程必须比本次调用活得久
	cmd := exec.Command(s.handle.Executable, s.handle.Args...)
	cmd.Dir = s.handle.WorkDir
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	// 新进程组，父进程退出后子进程继续运行
	utils.SetNewPG(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start '%s' failed: %w", s.handle.Executable, err)
	}
	pid := cmd.Process.Pid

	if err := s.writePidFile(pid); err != nil {
		// PID文件写不进去等于失去对进程的追踪，立即收回
		cmd.Process.Kill()
		cmd.Process.Release()
		return nil, err
	}
	cmd.Process.Release()

	logger.Infof("Service '%s' started (PID: %d)", s.handle.Name, pid)
	return &models.StartResult{Pid: pid}, nil
}

/**
 * Stop 停止被管理进程
 * @returns {*models.StopResult} NotRunning表示本来就没在跑；Forced表示优雅终止超时后强杀
 * @description
 * - 先SIGTERM，在gracefulTimeout内轮询等待退出；超时升级SIGKILL
 * - 无论哪条路径返回，PID文件都已删除
 */
func (s *ServiceSupervisor) Stop() (*models.StopResult, error) {
	pid, live := s.readLivePid()
	if pid == 0 {
		return &models.StopResult{NotRunning: true}, nil
	}
	// 返回前无条件清掉PID文件
	defer os.Remove(s.handle.PidFile)

	if !live {
		logger.Infof("Stale PID file for '%s' (PID: %d not alive), cleaning up", s.handle.Name, pid)
		return &models.StopResult{NotRunning: true}, nil
	}

	logger.Infof("Stopping service '%s' (PID: %d)", s.handle.Name, pid)
	if err := utils.TerminateProcess(pid); err == nil {
		if s.waitForExit(pid, s.GracefulTimeout) {
			logger.Infof("Service '%s' (PID: %d) terminated gracefully", s.handle.Name, pid)
			return &models.StopResult{Pid: pid}, nil
		}
	}

	// 优雅终止超时，升级为强制终止
	logger.Warnf("Service '%s' (PID: %d) ignored graceful termination, force killing", s.handle.Name, pid)
	if err := utils.KillProcessByPID(pid); err != nil {
		return nil, fmt.Errorf("force kill PID %d failed: %w", pid, err)
	}
	if !s.waitForExit(pid, s.ForcefulTimeout) {
		return nil, fmt.Errorf("process %d still alive after SIGKILL", pid)
	}
	return &models.StopResult{Pid: pid, Forced: true}, nil
}

/**
 * Restart 重启被管理进程(stop之后start)
 */
func (s *ServiceSupervisor) Restart(ctx context.Context) (*models.StartResult, error) {
	if _, err := s.Stop(); err != nil {
		return nil, err
	}
	return s.Start(ctx)
}

/**
 * Status 查询被管理进程状态
 * @description
 * - PID文件存在且进程存活: Running
 * - PID文件存在但进程已死: 删除陈旧PID文件并返回Stopped(自愈)
 * - PID文件不存在: Stopped
 */
func (s *ServiceSupervisor) Status() *models.ServiceState {
	data, err := os.ReadFile(s.handle.PidFile)
	if err != nil {
		return &models.ServiceState{Status: models.StatusStopped}
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		// 内容损坏的PID文件同样视为陈旧
		logger.Warnf("PID file '%s' is corrupt, removing", s.handle.PidFile)
		os.Remove(s.handle.PidFile)
		return &models.ServiceState{Status: models.StatusStopped}
	}
	if running, _ := utils.IsProcessRunning(pid); running {
		return &models.ServiceState{Status: models.StatusRunning, Pid: pid}
	}
	logger.Infof("Removing stale PID file '%s' (PID: %d not alive)", s.handle.PidFile, pid)
	os.Remove(s.handle.PidFile)
	return &models.ServiceState{Status: models.StatusStopped}
}

// readLivePid 读取PID文件；返回(pid, 进程是否存活)，文件不存在或损坏时pid为0
func (s *ServiceSupervisor) readLivePid() (int, bool) {
	data, err := os.ReadFile(s.handle.PidFile)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		os.Remove(s.handle.PidFile)
		return 0, false
	}
	running, _ := utils.IsProcessRunning(pid)
	return pid, running
}

func (s *ServiceSupervisor) writePidFile(pid int) error {
	if err := os.MkdirAll(filepath.Dir(s.handle.PidFile), 0755); err != nil {
		return fmt.Errorf("create run directory failed: %w", err)
	}
	if err := os.WriteFile(s.handle.PidFile, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return fmt.Errorf("write PID file '%s' failed: %w", s.handle.PidFile, err)
	}
	return nil
}

// waitForExit 轮询等待进程退出，返回是否在时限内退出
func (s *ServiceSupervisor) waitForExit(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if running, _ := utils.IsProcessRunning(pid); !running {
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	running, _ := utils.IsProcessRunning(pid)
	return !running
}
