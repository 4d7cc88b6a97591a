package models

import "path/filepath"

// ProfileKind 主机档案类型
type ProfileKind string

const (
	// Creality K1/K1C/K1 Max系列，无systemd，文件系统挂载在/usr/data
	ProfileK1 ProfileKind = "creality-k1"
	// 创想Sonic Pad，无systemd，文件系统挂载在/mnt/UDISK
	ProfileSonicPad ProfileKind = "sonic-pad"
	// 标准桌面/树莓派安装，有systemd，printer_data在用户主目录
	ProfileStandard ProfileKind = "standard-systemd"
)

// PackageManager 主机可用的包管理器
type PackageManager string

const (
	AptGet           PackageManager = "apt-get"
	Opkg             PackageManager = "opkg"
	NoPackageManager PackageManager = "none"
)

/**
 * HostProfile 主机档案
 * @property {ProfileKind} kind - 档案类型，探测一次后全程下发，下游组件只看kind不再探测文件系统
 * @property {string} installRoot - polar-cloud连接器的安装根目录
 * @property {string} serviceDataRoot - printer_data目录(config/logs等生成物的归属地)
 * @property {string} pluginHostRoot - Moonraker安装根目录
 * @property {string} pluginComponentsDir - Moonraker组件目录，插件文件复制到这里
 * @property {[]string} proxyConfCandidates - 反向代理配置文件候选路径，按顺序取第一个存在的
 * @property {string} proxyFallbackPath - 候选都不存在时生成独立配置的路径
 * @property {PackageManager} packageManager - 该档案可用的包管理器
 * @property {bool} hasSystemd - 是否有systemd(仅用于诊断输出，核心流程统一走PID文件)
 */
type HostProfile struct {
	Kind                ProfileKind    `json:"kind"`
	InstallRoot         string         `json:"installRoot"`
	ServiceDataRoot     string         `json:"serviceDataRoot"`
	PluginHostRoot      string         `json:"pluginHostRoot"`
	PluginComponentsDir string         `json:"pluginComponentsDir"`
	ProxyConfCandidates []string       `json:"proxyConfCandidates"`
	ProxyFallbackPath   string         `json:"proxyFallbackPath"`
	PackageManager      PackageManager `json:"packageManager"`
	HasSystemd          bool           `json:"hasSystemd"`
}

// ConfigDir printer_data下的config目录
func (p *HostProfile) ConfigDir() string {
	return filepath.Join(p.ServiceDataRoot, "config")
}

// LogDir printer_data下的logs目录
func (p *HostProfile) LogDir() string {
	return filepath.Join(p.ServiceDataRoot, "logs")
}

// RunDir PID文件所在目录
func (p *HostProfile) RunDir() string {
	return filepath.Join(p.ServiceDataRoot, "run")
}

// PluginHostConf Moonraker主配置文件路径
func (p *HostProfile) PluginHostConf() string {
	return filepath.Join(p.ConfigDir(), "moonraker.conf")
}

// ConnectorConf 连接器自身的配置文件(polar_cloud.conf)路径
func (p *HostProfile) ConnectorConf() string {
	return filepath.Join(p.ConfigDir(), "polar_cloud.conf")
}

// PanelDir 控制面板静态页面目录
func (p *HostProfile) PanelDir() string {
	return filepath.Join(p.InstallRoot, "panel")
}

// PidFile 被管理进程的PID文件路径
func (p *HostProfile) PidFile() string {
	return filepath.Join(p.RunDir(), "polar-cloud.pid")
}

// ServiceLogFile 被管理进程的日志文件路径
func (p *HostProfile) ServiceLogFile() string {
	return filepath.Join(p.LogDir(), "polar_cloud.log")
}

// StatusFile 被管理进程写入的实时状态文件路径
func (p *HostProfile) StatusFile() string {
	return filepath.Join(p.LogDir(), "polar_cloud_status.json")
}
