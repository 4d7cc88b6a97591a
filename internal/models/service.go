package models

type RunStatus string

const (
	// PID文件存在且进程存活
	StatusRunning RunStatus = "running"
	// PID文件不存在，或PID文件指向的进程已死(读取时自愈删除)
	StatusStopped RunStatus = "stopped"
	// PID文件无法读取/解析，状态不可判定
	StatusUnknown RunStatus = "unknown"
)

/**
 * ServiceHandle 被管理进程的句柄，全部由探测出的路径构造
 * @property {string} name - 服务名，用于日志和报告
 * @property {string} pidFile - PID文件路径，跨调用期间唯一的持久记录
 * @property {string} executable - 可执行文件
 * @property {[]string} args - 启动参数
 * @property {string} logFile - stdout/stderr重定向目标
 * @property {string} workDir - 工作目录
 * @description
 * - 句柄本身不跨进程保存，两次调用之间只有PID文件是事实来源
 */
type ServiceHandle struct {
	Name       string   `json:"name"`
	PidFile    string   `json:"pidFile"`
	Executable string   `json:"executable"`
	Args       []string `json:"args"`
	LogFile    string   `json:"logFile"`
	WorkDir    string   `json:"workDir"`
}

// ServiceState status查询的结果
type ServiceState struct {
	Status RunStatus `json:"status"`
	Pid    int       `json:"pid,omitempty"`
}

/**
 * StartResult 启动操作的结果
 * @property {int} pid - 进程ID
 * @property {bool} alreadyRunning - 进程此前已在运行(提示性结果，不是错误)
 */
type StartResult struct {
	Pid            int  `json:"pid"`
	AlreadyRunning bool `json:"alreadyRunning"`
}

/**
 * StopResult 停止操作的结果
 * @property {bool} notRunning - 本来就没有运行(提示性结果，不是错误)
 * @property {bool} forced - 优雅终止超时，升级为强制终止(需作为警告上报)
 */
type StopResult struct {
	Pid        int  `json:"pid,omitempty"`
	NotRunning bool `json:"notRunning"`
	Forced     bool `json:"forced"`
}
