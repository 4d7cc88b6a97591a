package env

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"polar-keeper/internal/models"
)

/**
 * EnvironmentUnresolvedError 没有任何主机档案标记匹配
 * @property {[]string} markers - 全部尝试过的标记路径，用于诊断输出
 * @description
 * - 探测失败是致命错误，绝不猜测默认档案，否则后续组件会写错文件系统树
 */
type EnvironmentUnresolvedError struct {
	Markers []string
}

func (e *EnvironmentUnresolvedError) Error() string {
	return fmt.Sprintf("no supported host profile matched, markers tried: %s",
		strings.Join(e.Markers, ", "))
}

/**
 * Prober 主机环境探测器，只做只读的文件系统探测
 * @property {string} rootfs - 探测根目录，空表示"/"，测试时指向临时目录
 * @property {string} home - 用户主目录，空表示当前用户主目录
 * @property {func} prompt - 服务数据目录无法按惯例解析时的交互回退(核心中唯一允许的交互点)
 */
type Prober struct {
	Rootfs string
	Home   string
	Prompt func(question string) (string, error)
}

func NewProber() *Prober {
	return &Prober{}
}

func (p *Prober) rootfs() string {
	if p.Rootfs == "" {
		return "/"
	}
	return p.Rootfs
}

func (p *Prober) home() string {
	if p.Home != "" {
		return p.Home
	}
	home, _ := os.UserHomeDir()
	return home
}

// 一条探测规则: 标记目录存在则选中对应档案
type probeRule struct {
	marker  func(p *Prober) string
	profile func(p *Prober) *models.HostProfile
}

// 探测顺序即策略: 嵌入式档案在前，标准档案兜底。混合系统上两种标记可能
// 同时存在，顺序必须保持不变。
var probeRules = []probeRule{
	{
		marker:  func(p *Prober) string { return filepath.Join(p.rootfs(), "usr/data/printer_data") },
		profile: (*Prober).k1Profile,
	},
	{
		marker:  func(p *Prober) string { return filepath.Join(p.rootfs(), "mnt/UDISK/printer_data") },
		profile: (*Prober).sonicPadProfile,
	},
	// 标准档案以systemd目录为标记兜底，printer_data位置再由ResolveDataRoot解析
	{
		marker:  func(p *Prober) string { return filepath.Join(p.rootfs(), "etc/systemd/system") },
		profile: (*Prober).standardProfile,
	},
}

/**
 * Probe 探测主机档案
 * @returns {*models.HostProfile} 第一个标记目录存在的档案
 * @returns {error} 无任何标记匹配时返回EnvironmentUnresolvedError
 * @description
 * - 按固定顺序逐条检查标记目录是否存在(必须是目录)
 * - 选中后档案在整个流程内不再变化，下游组件只消费档案不再探测
 * - 返回的ServiceDataRoot还未定，需要再调用ResolveDataRoot
 */
func (p *Prober) Probe() (*models.HostProfile, error) {
	var tried []string
	for _, rule := range probeRules {
		marker := rule.marker(p)
		tried = append(tried, marker)
		if isDir(marker) {
			return rule.profile(p), nil
		}
	}
	return nil, &EnvironmentUnresolvedError{Markers: tried}
}

/**
 * ResolveDataRoot 解析服务数据目录(printer_data)
 * @param {*models.HostProfile} profile - 已探测出的主机档案
 * @returns {string} 第一个存在的惯例路径；都不存在时走交互回退
 * @description
 * - 候选路径用完后，若配置了Prompt则询问调用方；否则直接报错
 * - 成功后把结果写回profile.ServiceDataRoot
 */
func (p *Prober) ResolveDataRoot(profile *models.HostProfile) (string, error) {
	for _, candidate := range p.dataRootCandidates(profile) {
		if isDir(candidate) {
			profile.ServiceDataRoot = candidate
			return candidate, nil
		}
	}
	if p.Prompt == nil {
		return "", fmt.Errorf("service data directory not found for profile '%s', specify it manually", profile.Kind)
	}
	answer, err := p.Prompt("printer_data directory not found, enter its path")
	if err != nil {
		return "", err
	}
	answer = strings.TrimSpace(answer)
	if !isDir(answer) {
		return "", fmt.Errorf("'%s' is not a directory", answer)
	}
	profile.ServiceDataRoot = answer
	return answer, nil
}

func (p *Prober) dataRootCandidates(profile *models.HostProfile) []string {
	switch profile.Kind {
	case models.ProfileK1:
		return []string{filepath.Join(p.rootfs(), "usr/data/printer_data")}
	case models.ProfileSonicPad:
		return []string{filepath.Join(p.rootfs(), "mnt/UDISK/printer_data")}
	default:
		// 较老的标准安装把配置放在klipper_config
		return []string{
			filepath.Join(p.home(), "printer_data"),
			filepath.Join(p.home(), "klipper_config"),
		}
	}
}

func (p *Prober) k1Profile() *models.HostProfile {
	root := p.rootfs()
	return &models.HostProfile{
		Kind:                models.ProfileK1,
		InstallRoot:         filepath.Join(root, "usr/data/polar-cloud"),
		PluginHostRoot:      filepath.Join(root, "usr/data/moonraker"),
		PluginComponentsDir: filepath.Join(root, "usr/data/moonraker/moonraker/components"),
		ProxyConfCandidates: []string{
			filepath.Join(root, "usr/data/nginx/nginx/nginx.conf"),
		},
		ProxyFallbackPath: filepath.Join(root, "usr/data/nginx/nginx/conf.d/polar-cloud.conf"),
		PackageManager:    models.Opkg,
		HasSystemd:        false,
	}
}

func (p *Prober) sonicPadProfile() *models.HostProfile {
	root := p.rootfs()
	return &models.HostProfile{
		Kind:                models.ProfileSonicPad,
		InstallRoot:         filepath.Join(root, "mnt/UDISK/polar-cloud"),
		PluginHostRoot:      filepath.Join(root, "mnt/UDISK/moonraker"),
		PluginComponentsDir: filepath.Join(root, "mnt/UDISK/moonraker/moonraker/components"),
		ProxyConfCandidates: []string{
			filepath.Join(root, "etc/nginx/nginx.conf"),
		},
		ProxyFallbackPath: filepath.Join(root, "etc/nginx/conf.d/polar-cloud.conf"),
		PackageManager:    models.Opkg,
		HasSystemd:        false,
	}
}

func (p *Prober) standardProfile() *models.HostProfile {
	root := p.rootfs()
	home := p.home()
	return &models.HostProfile{
		Kind:                models.ProfileStandard,
		InstallRoot:         filepath.Join(home, "polar-cloud"),
		PluginHostRoot:      filepath.Join(home, "moonraker"),
		PluginComponentsDir: filepath.Join(home, "moonraker/moonraker/components"),
		ProxyConfCandidates: []string{
			filepath.Join(root, "etc/nginx/sites-available/mainsail"),
			filepath.Join(root, "etc/nginx/sites-available/fluidd"),
			filepath.Join(root, "etc/nginx/conf.d/default.conf"),
		},
		ProxyFallbackPath: filepath.Join(root, "etc/nginx/conf.d/polar-cloud.conf"),
		PackageManager:    models.AptGet,
		HasSystemd:        true,
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
