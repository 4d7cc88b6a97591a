package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"polar-keeper/internal/config"
	"polar-keeper/internal/env"
	"polar-keeper/internal/logger"
	"polar-keeper/internal/models"
	"polar-keeper/internal/utils"
)

/**
 * Provisioner 端到端安装/卸载流程的编排器
 * @description
 * - 串行单线程: 安装是操作员一次性触发的动作，不存在并发客户端
 * - 每个步骤幂等，流程被打断后从头重跑即可恢复
 * - probe/依赖/载荷/插件宿主配置失败即中止(后续步骤依赖其后置条件)；
 *   反向代理集成失败只降级不中止(没有代理集成服务本身完全可用)
 */
type Provisioner struct {
	cfg      *config.AppConfig
	prober   *env.Prober
	resolver *DependencyResolver
	mutator  *ConfigMutator

	// 依赖声明，测试可替换
	Dependencies []models.DependencySpec
	// 反向代理配置的外部校验/重载钩子，默认走nginx命令
	ValidateProxy func(path string) error
	ReloadProxy   func() error

	profile    *models.HostProfile
	supervisor *ServiceSupervisor
}

func NewProvisioner(cfg *config.AppConfig, prober *env.Prober) *Provisioner {
	p := &Provisioner{
		cfg:          cfg,
		prober:       prober,
		resolver:     NewDependencyResolver(),
		mutator:      NewConfigMutator(),
		Dependencies: DefaultDependencies(),
	}
	p.ValidateProxy = func(path string) error {
		_, err := utils.RunCommand(context.Background(), 30*time.Second, "nginx", "-t")
		return err
	}
	p.ReloadProxy = func() error {
		_, err := utils.RunCommand(context.Background(), 30*time.Second, "nginx", "-s", "reload")
		return err
	}
	return p
}

// Profile 本次流程探测出的主机档案(probe步骤之前为nil)
func (p *Provisioner) Profile() *models.HostProfile {
	return p.profile
}

/**
 * Install 执行完整安装流程
 * @returns {*models.ProvisionReport} 最终报告，区分成功/降级成功/失败
 * @description
 * - 流水线: probe → 依赖 → 载荷文件 → 插件宿主配置 → 反向代理配置 → 启动服务
 * - 报告里每个失败步骤都带具体路径/命令和建议的手工补救措施
 */
func (p *Provisioner) Install(ctx context.Context) *models.ProvisionReport {
	report := &models.ProvisionReport{Outcome: models.RunSucceeded, StartTime: time.Now()}
	defer func() { report.EndTime = time.Now() }()

	if !p.runStep(report, "probe", true, func() (string, error) {
		return p.stepProbe()
	}) {
		return report
	}
	report.Profile = p.profile

	if !p.runStep(report, "dependencies", true, func() (string, error) {
		if err := p.resolver.Ensure(ctx, p.Dependencies, p.profile); err != nil {
			return "", err
		}
		return fmt.Sprintf("%d dependencies satisfied", len(p.Dependencies)), nil
	}) {
		return report
	}

	if !p.runStep(report, "payload", true, func() (string, error) {
		return p.stepInstallPayload()
	}) {
		return report
	}

	if !p.runStep(report, "plugin-host-config", true, func() (string, error) {
		return p.stepPluginHostConfig()
	}) {
		return report
	}

	// 反向代理集成是尽力而为: 失败记录为降级，不中止
	p.runStep(report, "proxy-config", false, func() (string, error) {
		return p.stepProxyConfig()
	})

	if !p.runStep(report, "start-service", true, func() (string, error) {
		result, err := p.supervisor.Start(ctx)
		if err != nil {
			return "", err
		}
		if result.AlreadyRunning {
			return fmt.Sprintf("already running (PID %d)", result.Pid), nil
		}
		return fmt.Sprintf("started (PID %d)", result.Pid), nil
	}) {
		return report
	}

	return report
}

/**
 * Uninstall 执行镜像卸载流程
 * @description
 * - 顺序与安装相反: 停服务 → 摘代理配置 → 摘插件宿主配置 → 删载荷 → 清理生成物
 * - 每个步骤的前置条件不存在时退化为空转(skipped)，从不因此失败——
 *   没装完的系统也要能干净卸载
 * - 日志和连接器配置(注册数据)保留，避免重装后丢失云端身份
 */
func (p *Provisioner) Uninstall(ctx context.Context) *models.ProvisionReport {
	report := &models.ProvisionReport{Outcome: models.RunSucceeded, StartTime: time.Now()}
	defer func() { report.EndTime = time.Now() }()

	if !p.runStep(report, "probe", true, func() (string, error) {
		return p.stepProbe()
	}) {
		return report
	}
	report.Profile = p.profile

	p.runStep(report, "stop-service", false, func() (string, error) {
		result, err := p.supervisor.Stop()
		if err != nil {
			return "", err
		}
		if result.NotRunning {
			return "was not running", nil
		}
		if result.Forced {
			return fmt.Sprintf("terminated forcefully (PID %d)", result.Pid), nil
		}
		return fmt.Sprintf("stopped (PID %d)", result.Pid), nil
	})

	p.runStep(report, "proxy-config", false, func() (string, error) {
		return p.stepRemoveProxyConfig()
	})

	p.runStep(report, "plugin-host-config", false, func() (string, error) {
		return p.stepRemovePluginHostConfig()
	})

	p.runStep(report, "payload", false, func() (string, error) {
		return p.stepRemovePayload()
	})

	p.runStep(report, "cleanup", false, func() (string, error) {
		return p.stepCleanup()
	})

	return report
}

/**
 * runStep 执行一个流程步骤并记录结果
 * @param {bool} critical - true表示失败中止整个流程(fail-fast)；false表示失败只降级
 * @returns {bool} 流程是否继续
 */
func (p *Provisioner) runStep(report *models.ProvisionReport, name string, critical bool, fn func() (string, error)) bool {
	detail, err := fn()
	if err == nil {
		outcome := models.StepOK
		if detail == "" {
			detail = "ok"
		}
		if detail == "was not running" || detail == "nothing to remove" {
			outcome = models.StepSkipped
		}
		report.AddStep(models.StepResult{Name: name, Outcome: outcome, Detail: detail})
		RecordStep(name, string(outcome))
		logger.Infof("Step '%s': %s", name, detail)
		return true
	}

	if critical {
		report.AddStep(models.StepResult{Name: name, Outcome: models.StepFailed, Detail: err.Error(), Remedy: remedyFor(err)})
		report.Outcome = models.RunFailed
		RecordStep(name, string(models.StepFailed))
		logger.Errorf("Step '%s' failed: %v", name, err)
		return false
	}

	report.AddStep(models.StepResult{Name: name, Outcome: models.StepDegraded, Detail: err.Error(), Remedy: remedyFor(err)})
	if report.Outcome == models.RunSucceeded {
		report.Outcome = models.RunDegraded
	}
	RecordStep(name, string(models.StepDegraded))
	logger.Warnf("Step '%s' degraded: %v", name, err)
	return true
}

// stepProbe 探测主机档案并解析数据目录，生成目录结构
func (p *Provisioner) stepProbe() (string, error) {
	profile, err := p.prober.Probe()
	if err != nil {
		return "", err
	}
	if _, err := p.prober.ResolveDataRoot(profile); err != nil {
		return "", err
	}
	for _, dir := range []string{profile.ConfigDir(), profile.LogDir(), profile.RunDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("create '%s' failed: %w", dir, err)
		}
	}
	p.profile = profile
	p.supervisor = NewSupervisorFromProfile(profile, p.cfg)
	return fmt.Sprintf("profile '%s', data root '%s'", profile.Kind, profile.ServiceDataRoot), nil
}

// stepInstallPayload 把载荷文件复制到档案解析出的目标位置
func (p *Provisioner) stepInstallPayload() (string, error) {
	payloadDir := p.cfg.Payload.Dir
	if payloadDir == "" {
		return "", fmt.Errorf("payload directory is not configured (payload.dir)")
	}
	if _, err := os.Stat(payloadDir); err != nil {
		return "", fmt.Errorf("payload directory '%s' is not accessible: %w", payloadDir, err)
	}

	copies := []struct {
		src, dst string
	}{
		{filepath.Join(payloadDir, "polar_cloud.py"), filepath.Join(p.profile.InstallRoot, "polar_cloud.py")},
		{filepath.Join(payloadDir, "polar_cloud_moonraker.py"), filepath.Join(p.profile.PluginComponentsDir, "polar_cloud.py")},
	}
	for _, c := range copies {
		if err := copyFile(c.src, c.dst); err != nil {
			return "", err
		}
	}
	if err := copyDir(filepath.Join(payloadDir, "panel"), p.profile.PanelDir()); err != nil {
		return "", err
	}
	return fmt.Sprintf("payload installed under '%s'", p.profile.InstallRoot), nil
}

// stepPluginHostConfig 向moonraker.conf追加组件节和自更新描述节
func (p *Provisioner) stepPluginHostConfig() (string, error) {
	block := PluginHostConfigBlock(p.profile)
	record, err := p.mutator.Apply(block, NewBlockContext(p.profile, p.cfg), nil, nil)
	if err != nil {
		return "", err
	}
	if !record.Applied {
		return fmt.Sprintf("section already present in '%s'", record.TargetFile), nil
	}
	if record.Fallback {
		return fmt.Sprintf("created '%s'", record.TargetFile), nil
	}
	return fmt.Sprintf("section added to '%s'", record.TargetFile), nil
}

// stepProxyConfig 向反向代理配置插入面板路由块
func (p *Provisioner) stepProxyConfig() (string, error) {
	block := ProxyConfigBlock(p.profile)
	record, err := p.mutator.Apply(block, NewBlockContext(p.profile, p.cfg), p.ValidateProxy, p.ReloadProxy)
	if err != nil {
		return "", err
	}
	if !record.Applied {
		return fmt.Sprintf("block already present in '%s'", record.TargetFile), nil
	}
	if record.Fallback {
		// 降级生成的独立配置要在报告里与集成配置区分开
		return fmt.Sprintf("fallback config generated at '%s'", record.TargetFile), nil
	}
	return fmt.Sprintf("integrated into '%s'", record.TargetFile), nil
}

// stepRemoveProxyConfig 从所有候选文件里摘掉面板路由块，删除降级生成的独立配置
func (p *Provisioner) stepRemoveProxyConfig() (string, error) {
	block := ProxyConfigBlock(p.profile)
	removed := 0
	for _, candidate := range block.TargetCandidates {
		ok, err := RemoveBlock(candidate, block)
		if err != nil {
			return "", err
		}
		if ok {
			removed++
			removeStaleBackups(candidate)
		}
	}
	if block.FallbackPath != "" {
		if hasMarker(block.FallbackPath, block.MarkerBegin) {
			if err := os.Remove(block.FallbackPath); err != nil && !os.IsNotExist(err) {
				return "", err
			}
			removed++
		}
	}
	if removed == 0 {
		return "nothing to remove", nil
	}
	if p.ReloadProxy != nil {
		if err := p.ReloadProxy(); err != nil {
			logger.Warnf("Proxy reload after removal failed: %v", err)
		}
	}
	return fmt.Sprintf("removed from %d file(s)", removed), nil
}

// stepRemovePluginHostConfig 摘掉moonraker.conf里的组件节；文件只剩空白时整个删除
func (p *Provisioner) stepRemovePluginHostConfig() (string, error) {
	block := PluginHostConfigBlock(p.profile)
	target := p.profile.PluginHostConf()
	ok, err := RemoveBlock(target, block)
	if err != nil {
		return "", err
	}
	if !ok {
		return "nothing to remove", nil
	}
	removeStaleBackups(target)
	if data, err := os.ReadFile(target); err == nil && len(bytes.TrimSpace(data)) == 0 {
		os.Remove(target)
	}
	return fmt.Sprintf("section removed from '%s'", target), nil
}

// stepRemovePayload 删除安装过的载荷文件
func (p *Provisioner) stepRemovePayload() (string, error) {
	targets := []string{
		filepath.Join(p.profile.PluginComponentsDir, "polar_cloud.py"),
		filepath.Join(p.profile.InstallRoot, "polar_cloud.py"),
	}
	removed := 0
	for _, t := range targets {
		if err := os.Remove(t); err == nil {
			removed++
		} else if !os.IsNotExist(err) {
			return "", fmt.Errorf("remove '%s' failed: %w", t, err)
		}
	}
	if err := os.RemoveAll(p.profile.PanelDir()); err != nil {
		return "", err
	}
	// 安装根目录只在空了之后才删，别人放进去的东西不动
	os.Remove(p.profile.InstallRoot)
	if removed == 0 {
		return "nothing to remove", nil
	}
	return fmt.Sprintf("%d payload file(s) removed", removed), nil
}

// stepCleanup 清理生成物(PID文件/运行目录)，日志和注册数据保留
func (p *Provisioner) stepCleanup() (string, error) {
	os.Remove(p.profile.PidFile())
	os.Remove(p.profile.StatusFile())
	os.Remove(p.profile.RunDir())
	return "runtime artifacts removed (logs and registration kept)", nil
}

// remedyFor 为致命错误给出建议的手工补救措施(部分主机没有会读调用栈的管理员)
func remedyFor(err error) string {
	var envErr *env.EnvironmentUnresolvedError
	if errors.As(err, &envErr) {
		return "none of the known printer filesystem layouts was found; create the printer_data directory or run on a supported host"
	}
	var depErr *MissingDependencyError
	if errors.As(err, &depErr) {
		if depErr.AttemptedCandidate != "" {
			return fmt.Sprintf("install '%s' manually with your package manager, then re-run", depErr.AttemptedCandidate)
		}
		return fmt.Sprintf("install '%s' manually, then re-run", depErr.Name)
	}
	var mutErr *MutationError
	if errors.As(err, &mutErr) {
		switch mutErr.Reason {
		case ValidationRejected:
			return fmt.Sprintf("'%s' was restored unchanged; fix its pre-existing syntax problems and re-run", mutErr.Path)
		case NoInsertionPoint:
			return fmt.Sprintf("'%s' has an unexpected structure (check for unbalanced braces); fix it or add the block manually", mutErr.Path)
		}
	}
	return ""
}

func hasMarker(path, marker string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return strings.Contains(string(data), marker)
}

// removeStaleBackups 卸载后顺手清掉本工具生成的备份文件
func removeStaleBackups(target string) {
	matches, err := filepath.Glob(target + ".polar-bak.*")
	if err != nil {
		return
	}
	for _, m := range matches {
		os.Remove(m)
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open payload file '%s' failed: %w", src, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("create '%s' failed: %w", filepath.Dir(dst), err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create '%s' failed: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy '%s' to '%s' failed: %w", src, dst, err)
	}
	if info, err := in.Stat(); err == nil {
		os.Chmod(dst, info.Mode().Perm())
	}
	return nil
}

// copyDir 递归复制目录；源目录不存在时跳过(面板页面是可选载荷)
func copyDir(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if !info.IsDir() {
		return copyFile(src, dst)
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dst, 0755); err != nil {
		return err
	}
	for _, entry := range entries {
		s := filepath.Join(src, entry.Name())
		d := filepath.Join(dst, entry.Name())
		if entry.IsDir() {
			if err := copyDir(s, d); err != nil {
				return err
			}
		} else if err := copyFile(s, d); err != nil {
			return err
		}
	}
	return nil
}
