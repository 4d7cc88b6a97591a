package models

// InsertionStrategy 配置块的插入策略
type InsertionStrategy string

const (
	// 在文件最后一个顶层闭合花括号之前插入(nginx server块)
	BeforeFinalCloseBrace InsertionStrategy = "before-final-close-brace"
	// 在第一个匹配指令行之前插入
	BeforeFirstMatchingDirective InsertionStrategy = "before-first-matching-directive"
	// 追加到文件末尾(moonraker.conf这类节式配置)
	AppendToEnd InsertionStrategy = "append-to-end"
)

/**
 * ConfigBlock 允许插入到外部配置文件的唯一文本单元
 * @property {string} markerBegin - 块起始标记注释，幂等检测的依据，必须逐字节稳定
 * @property {string} markerEnd - 块结束标记注释，无备份时按标记删除的依据
 * @property {string} body - 块正文模板(text/template)，渲染后整体插入，正文自带两个标记行
 * @property {[]string} targetCandidates - 目标文件候选路径，按顺序取第一个存在的
 * @property {InsertionStrategy} strategy - 插入策略
 * @property {string} directivePattern - strategy为BeforeFirstMatchingDirective时的行匹配正则
 * @property {string} fallbackPath - 候选都不存在时生成独立配置文件的路径，为空表示不允许降级
 * @property {string} fallbackBody - 独立配置文件的正文模板
 */
type ConfigBlock struct {
	MarkerBegin      string            `json:"markerBegin"`
	MarkerEnd        string            `json:"markerEnd"`
	Body             string            `json:"body"`
	TargetCandidates []string          `json:"targetCandidates"`
	Strategy         InsertionStrategy `json:"strategy"`
	DirectivePattern string            `json:"directivePattern,omitempty"`
	FallbackPath     string            `json:"fallbackPath,omitempty"`
	FallbackBody     string            `json:"fallbackBody,omitempty"`
}

/**
 * MutationRecord 一次配置变更的结果，仅在单次调用内用于驱动回滚
 * @property {string} targetFile - 实际被修改(或生成)的文件
 * @property {string} backupPath - 变更前的备份文件路径，卸载时的恢复来源，未做备份时为空
 * @property {bool} applied - 本次调用是否实际写入了块(false表示块已存在，幂等空转)
 * @property {bool} fallback - 是否走了独立配置降级路径(调用方需报告"fallback"而非"integrated")
 */
type MutationRecord struct {
	TargetFile string `json:"targetFile"`
	BackupPath string `json:"backupPath,omitempty"`
	Applied    bool   `json:"applied"`
	Fallback   bool   `json:"fallback"`
}
