package models

/**
 * InstallCandidate 依赖的一个候选安装包
 * @property {PackageManager} manager - 该候选包对应的包管理器
 * @property {string} package - 包标识符(apt/opkg的包名)
 */
type InstallCandidate struct {
	Manager PackageManager `json:"manager"`
	Package string         `json:"package"`
}

/**
 * DependencySpec 运行时依赖声明，与主机档案无关
 * @property {string} name - 依赖名称，用于报告和错误提示
 * @property {[][]string} checks - 检查命令列表，任意一条命令执行成功即认为依赖满足
 * @property {[]string} importProbes - python模块探测列表，任意一个模块可导入即认为满足
 * @property {[]InstallCandidate} candidates - 候选安装包，按顺序取第一个与档案包管理器匹配的
 * @description
 * - checks/importProbes先于任何安装动作执行，因此同一能力存在多个互斥实现时，
 *   已经在位的实现天然优先，不会往受限主机上再装一份
 */
type DependencySpec struct {
	Name         string             `json:"name"`
	Checks       [][]string         `json:"checks,omitempty"`
	ImportProbes []string           `json:"importProbes,omitempty"`
	Candidates   []InstallCandidate `json:"candidates,omitempty"`
}
