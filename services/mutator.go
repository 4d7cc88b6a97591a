package services

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"polar-keeper/internal/logger"
	"polar-keeper/internal/models"
	"polar-keeper/internal/utils"
)

// MutationReason 配置变更失败的原因分类
type MutationReason string

const (
	// 目标文件自带的校验器拒绝了变更后的文件，已自动回滚
	ValidationRejected MutationReason = "validation-rejected"
	// 找不到安全的插入点(文件结构不符合预期，如花括号不配对)
	NoInsertionPoint MutationReason = "no-insertion-point"
)

/**
 * MutationError 配置变更失败
 * @property {string} path - 涉及的目标文件
 * @property {MutationReason} reason - 失败原因分类
 */
type MutationError struct {
	Path   string
	Reason MutationReason
	Err    error
}

func (e *MutationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mutation of '%s' failed (%s): %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("mutation of '%s' failed (%s)", e.Path, e.Reason)
}

func (e *MutationError) Unwrap() error { return e.Err }

/**
 * ConfigMutator 外部配置文件的幂等可逆变更器
 * @description
 * - 只负责一件事: 把一个带标记的文本块插入/移除一个不归本系统所有的配置文件
 * - 标记检测、备份、回滚三件事绑定为一个操作，与具体目标文件的语法无关
 * - 不支持对同一目标文件并发调用，流程内串行使用
 */
type ConfigMutator struct {
	// 备份文件命名使用的时钟，测试时可固定
	Now func() time.Time
}

func NewConfigMutator() *ConfigMutator {
	return &ConfigMutator{Now: time.Now}
}

/**
 * Apply 向目标配置文件插入配置块
 * @param {*models.ConfigBlock} block - 待插入的配置块
 * @param {interface{}} data - 正文模板的渲染上下文(路径/端口等)
 * @param {func} validate - 变更后的外部语法校验，nil表示无校验器
 * @param {func} reload - 校验通过后通知文件消费方重载，nil表示不需要
 * @returns {*models.MutationRecord} 变更记录，驱动同一次调用内的回滚和卸载时的恢复
 * @description
 * - 候选文件都不存在时降级生成独立配置文件(记录里Fallback=true)
 * - 目标文件已含起始标记时幂等空转(Applied=false)
 * - 任何写入前先做带时间戳的备份；校验失败立即用备份恢复，绝不留下半成品
 */
func (m *ConfigMutator) Apply(block *models.ConfigBlock, data interface{}, validate func(path string) error, reload func() error) (*models.MutationRecord, error) {
	target := firstExistingFile(block.TargetCandidates)
	if target == "" {
		return m.applyFallback(block, data, validate)
	}

	content, err := os.ReadFile(target)
	if err != nil {
		return nil, fmt.Errorf("read '%s' failed: %w", target, err)
	}

	// 幂等: 块已经在了就不再插入
	if strings.Contains(string(content), block.MarkerBegin) {
		logger.Infof("Config block already present in '%s', nothing to do", target)
		return &models.MutationRecord{TargetFile: target, Applied: false}, nil
	}

	body, err := utils.RenderTemplate(block.Body, data)
	if err != nil {
		return nil, fmt.Errorf("render config block failed: %w", err)
	}

	lines := strings.Split(string(content), "\n")
	insertAt, err := findInsertionPoint(lines, block)
	if err != nil {
		return nil, &MutationError{Path: target, Reason: NoInsertionPoint, Err: err}
	}

	backup, err := m.makeBackup(target, content)
	if err != nil {
		return nil, err
	}

	mutated := spliceLines(lines, insertAt, strings.Split(strings.TrimRight(body, "\n"), "\n"))
	if err := writeLikeOriginal(target, mutated, content); err != nil {
		return nil, fmt.Errorf("write '%s' failed: %w", target, err)
	}
	logger.Infof("Inserted config block into '%s' (backup: %s)", target, backup)

	if validate != nil {
		if verr := validate(target); verr != nil {
			// 校验被拒，立即恢复备份，目标文件回到逐字节一致的原状
			if rerr := os.WriteFile(target, content, filePerm(target)); rerr != nil {
				return nil, fmt.Errorf("restore '%s' from backup failed after validation error: %v (validation: %v)", target, rerr, verr)
			}
			os.Remove(backup)
			logger.Warnf("Validation rejected mutation of '%s', restored original", target)
			return nil, &MutationError{Path: target, Reason: ValidationRejected, Err: verr}
		}
	}

	if reload != nil {
		if err := reload(); err != nil {
			// 重载失败不回滚: 配置本身已通过校验，消费方下次重启会生效
			logger.Warnf("Reload after mutating '%s' failed: %v", target, err)
		}
	}

	return &models.MutationRecord{TargetFile: target, BackupPath: backup, Applied: true}, nil
}

// applyFallback 候选文件都不存在，生成最小的独立配置文件
func (m *ConfigMutator) applyFallback(block *models.ConfigBlock, data interface{}, validate func(path string) error) (*models.MutationRecord, error) {
	if block.FallbackPath == "" || block.FallbackBody == "" {
		return nil, &MutationError{
			Path:   strings.Join(block.TargetCandidates, ", "),
			Reason: NoInsertionPoint,
			Err:    fmt.Errorf("no target file exists and no fallback is defined"),
		}
	}

	body, err := utils.RenderTemplate(block.FallbackBody, data)
	if err != nil {
		return nil, fmt.Errorf("render fallback config failed: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(block.FallbackPath), 0755); err != nil {
		return nil, fmt.Errorf("create fallback directory failed: %w", err)
	}
	if err := os.WriteFile(block.FallbackPath, []byte(body), 0644); err != nil {
		return nil, fmt.Errorf("write fallback config '%s' failed: %w", block.FallbackPath, err)
	}
	logger.Warnf("No target config found, generated standalone fallback '%s'", block.FallbackPath)

	if validate != nil {
		if verr := validate(block.FallbackPath); verr != nil {
			os.Remove(block.FallbackPath)
			return nil, &MutationError{Path: block.FallbackPath, Reason: ValidationRejected, Err: verr}
		}
	}

	return &models.MutationRecord{TargetFile: block.FallbackPath, Applied: true, Fallback: true}, nil
}

/**
 * Revert 撤销一次变更
 * @param {*models.MutationRecord} record - Apply返回的变更记录
 * @param {*models.ConfigBlock} block - 对应的配置块(备份缺失时按标记删除)
 * @param {func} validate - 恢复后的外部语法校验，nil表示无校验器
 * @description
 * - 优先用备份整体恢复；备份不存在时退化为按标记逐行删除(高风险路径，仅限无备份可用)
 * - 降级生成的独立配置文件直接删除
 */
func (m *ConfigMutator) Revert(record *models.MutationRecord, block *models.ConfigBlock, validate func(path string) error) error {
	if record == nil || !record.Applied {
		return nil
	}
	if record.Fallback {
		if err := os.Remove(record.TargetFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove fallback config '%s' failed: %w", record.TargetFile, err)
		}
		return nil
	}

	if record.BackupPath != "" {
		if data, err := os.ReadFile(record.BackupPath); err == nil {
			if err := os.WriteFile(record.TargetFile, data, filePerm(record.TargetFile)); err != nil {
				return fmt.Errorf("restore '%s' from backup failed: %w", record.TargetFile, err)
			}
			os.Remove(record.BackupPath)
			if validate != nil {
				if verr := validate(record.TargetFile); verr != nil {
					return fmt.Errorf("restored '%s' but validation still fails: %v", record.TargetFile, verr)
				}
			}
			return nil
		}
	}

	_, err := RemoveBlock(record.TargetFile, block)
	return err
}

/**
 * RemoveBlock 按标记从目标文件中删除配置块
 * @returns {bool} 是否实际删除了块(文件或标记不存在时false，不算错误)
 * @description
 * - 删除起始标记行到结束标记行(含两端)之间的全部行
 * - 起始标记在而结束标记不在说明文件被人工改坏，拒绝操作
 */
func RemoveBlock(path string, block *models.ConfigBlock) (bool, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read '%s' failed: %w", path, err)
	}
	if !strings.Contains(string(content), block.MarkerBegin) {
		return false, nil
	}

	lines := strings.Split(string(content), "\n")
	begin, end := -1, -1
	for i, line := range lines {
		if begin < 0 && strings.Contains(line, block.MarkerBegin) {
			begin = i
			continue
		}
		if begin >= 0 && strings.Contains(line, block.MarkerEnd) {
			end = i
			break
		}
	}
	if begin < 0 {
		return false, nil
	}
	if end < 0 {
		return false, fmt.Errorf("begin marker found in '%s' but end marker '%s' is missing, refusing to edit", path, block.MarkerEnd)
	}

	kept := append([]string{}, lines[:begin]...)
	kept = append(kept, lines[end+1:]...)
	if err := writeLikeOriginal(path, kept, content); err != nil {
		return false, fmt.Errorf("write '%s' failed: %w", path, err)
	}
	logger.Infof("Removed config block from '%s'", path)
	return true, nil
}

// makeBackup 变更前生成带时间戳的备份文件，同时是卸载时的恢复来源
func (m *ConfigMutator) makeBackup(target string, content []byte) (string, error) {
	stamp := m.Now().Format("20060102-150405")
	backup := fmt.Sprintf("%s.polar-bak.%s", target, stamp)
	if err := os.WriteFile(backup, content, filePerm(target)); err != nil {
		return "", fmt.Errorf("create backup '%s' failed: %w", backup, err)
	}
	return backup, nil
}

/**
 * findInsertionPoint 按策略确定插入位置(行号，块插在该行之前)
 * @description
 * - BeforeFinalCloseBrace: 扫描全文件定位最后一个回到顶层的闭合花括号行；
 *   花括号不配对(缺失或多余)一律拒绝，绝不凭猜测写入
 * - BeforeFirstMatchingDirective: 第一个匹配指令行之前
 * - AppendToEnd: 文件末尾
 * - 计数时忽略"#"注释之后的内容
 */
func findInsertionPoint(lines []string, block *models.ConfigBlock) (int, error) {
	switch block.Strategy {
	case models.BeforeFinalCloseBrace:
		depth := 0
		last := -1
		for i, line := range lines {
			code := stripComment(line)
			opens := strings.Count(code, "{")
			closes := strings.Count(code, "}")
			depth += opens - closes
			if depth < 0 {
				return 0, fmt.Errorf("unbalanced braces at line %d", i+1)
			}
			if depth == 0 && closes > opens {
				last = i
			}
		}
		if depth != 0 {
			return 0, fmt.Errorf("unbalanced braces: %d unclosed", depth)
		}
		if last < 0 {
			return 0, fmt.Errorf("no top-level closing brace found")
		}
		return last, nil

	case models.BeforeFirstMatchingDirective:
		re, err := regexp.Compile(block.DirectivePattern)
		if err != nil {
			return 0, fmt.Errorf("bad directive pattern '%s': %v", block.DirectivePattern, err)
		}
		for i, line := range lines {
			if re.MatchString(line) {
				return i, nil
			}
		}
		return 0, fmt.Errorf("no line matches directive pattern '%s'", block.DirectivePattern)

	case models.AppendToEnd:
		// 末尾换行产生的空尾行之前，保证按标记移除后能精确还原
		if n := len(lines); n > 0 && lines[n-1] == "" {
			return n - 1, nil
		}
		return len(lines), nil

	default:
		return 0, fmt.Errorf("unknown insertion strategy '%s'", block.Strategy)
	}
}

func stripComment(line string) string {
	if idx := strings.Index(line, "#"); idx >= 0 {
		return line[:idx]
	}
	return line
}

// spliceLines 在at行之前插入block行
func spliceLines(lines []string, at int, blockLines []string) []string {
	result := make([]string, 0, len(lines)+len(blockLines))
	result = append(result, lines[:at]...)
	result = append(result, blockLines...)
	result = append(result, lines[at:]...)
	return result
}

// writeLikeOriginal 写回行序列，沿用原文件的换行结尾习惯和权限
func writeLikeOriginal(path string, lines []string, original []byte) error {
	text := strings.Join(lines, "\n")
	if len(original) > 0 && original[len(original)-1] == '\n' && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return os.WriteFile(path, []byte(text), filePerm(path))
}

func filePerm(path string) os.FileMode {
	if info, err := os.Stat(path); err == nil {
		return info.Mode().Perm()
	}
	return 0644
}

func firstExistingFile(candidates []string) string {
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.Mode().IsRegular() {
			return c
		}
	}
	return ""
}
