package services

import (
	"context"
	"fmt"
	"time"

	"polar-keeper/internal/logger"
	"polar-keeper/internal/models"
	"polar-keeper/internal/utils"
)

/**
 * MissingDependencyError 依赖在一次安装尝试后仍然缺失
 * @property {string} name - 依赖名称
 * @property {string} attemptedCandidate - 尝试安装过的包标识，空表示没有可用候选
 */
type MissingDependencyError struct {
	Name               string
	AttemptedCandidate string
}

func (e *MissingDependencyError) Error() string {
	if e.AttemptedCandidate == "" {
		return fmt.Sprintf("dependency '%s' is missing and no install candidate fits this host", e.Name)
	}
	return fmt.Sprintf("dependency '%s' is still missing after installing '%s'", e.Name, e.AttemptedCandidate)
}

/**
 * DependencyResolver 运行时依赖的检查与安装
 * @property {time.Duration} checkTimeout - 单条检查命令的时限
 * @property {time.Duration} installTimeout - 单次安装(含网络下载)的时限
 * @description
 * - 整个系统中唯一允许改动主机包状态的组件
 * - 安装机制由主机档案决定，依赖声明本身与档案无关
 */
type DependencyResolver struct {
	CheckTimeout   time.Duration
	InstallTimeout time.Duration
}

func NewDependencyResolver() *DependencyResolver {
	return &DependencyResolver{
		CheckTimeout:   30 * time.Second,
		InstallTimeout: 10 * time.Minute,
	}
}

/**
 * Ensure 确保所有声明的依赖就位
 * @param {[]models.DependencySpec} specs - 依赖声明列表
 * @param {*models.HostProfile} profile - 主机档案(决定安装机制)
 * @returns {error} 依赖安装后仍缺失时返回MissingDependencyError，立即中止
 * @description
 * - 每个依赖: 先检查，缺失则装第一个与档案包管理器匹配的候选包，再复查
 * - 只尝试一次安装，失败即报错，不做静默跳过(下游步骤假定依赖在位)
 */
func (r *DependencyResolver) Ensure(ctx context.Context, specs []models.DependencySpec, profile *models.HostProfile) error {
	for _, spec := range specs {
		if err := r.ensureOne(ctx, &spec, profile); err != nil {
			return err
		}
	}
	return nil
}

func (r *DependencyResolver) ensureOne(ctx context.Context, spec *models.DependencySpec, profile *models.HostProfile) error {
	if r.isSatisfied(ctx, spec) {
		logger.Debugf("Dependency '%s' already satisfied", spec.Name)
		return nil
	}

	candidate := r.pickCandidate(spec, profile)
	if candidate == nil {
		return &MissingDependencyError{Name: spec.Name}
	}

	logger.Infof("Dependency '%s' missing, installing '%s' via %s", spec.Name, candidate.Package, candidate.Manager)
	if err := r.install(ctx, candidate); err != nil {
		logger.Errorf("Install of '%s' failed: %v", candidate.Package, err)
		return &MissingDependencyError{Name: spec.Name, AttemptedCandidate: candidate.Package}
	}

	if !r.isSatisfied(ctx, spec) {
		return &MissingDependencyError{Name: spec.Name, AttemptedCandidate: candidate.Package}
	}
	logger.Infof("Dependency '%s' installed", spec.Name)
	return nil
}

/**
 * isSatisfied 检查依赖是否满足
 * @description
 * - 任一检查命令成功、或任一python模块可导入，即认为满足
 * - 检查先于安装执行，因此同一能力的多个互斥实现里已在位的那个天然胜出，
 *   不会往受限主机上再装一份新实现
 */
func (r *DependencyResolver) isSatisfied(ctx context.Context, spec *models.DependencySpec) bool {
	for _, check := range spec.Checks {
		if len(check) == 0 {
			continue
		}
		if _, err := utils.RunCommand(ctx, r.CheckTimeout, check[0], check[1:]...); err == nil {
			return true
		}
	}
	for _, module := range spec.ImportProbes {
		probe := fmt.Sprintf("import %s", module)
		if _, err := utils.RunCommand(ctx, r.CheckTimeout, "python3", "-c", probe); err == nil {
			return true
		}
	}
	return false
}

// pickCandidate 取第一个与档案包管理器匹配的候选包
func (r *DependencyResolver) pickCandidate(spec *models.DependencySpec, profile *models.HostProfile) *models.InstallCandidate {
	for i := range spec.Candidates {
		if spec.Candidates[i].Manager == profile.PackageManager {
			return &spec.Candidates[i]
		}
	}
	return nil
}

func (r *DependencyResolver) install(ctx context.Context, candidate *models.InstallCandidate) error {
	var output string
	var err error
	switch candidate.Manager {
	case models.AptGet:
		output, err = utils.RunCommand(ctx, r.InstallTimeout, "apt-get", "install", "-y", candidate.Package)
	case models.Opkg:
		output, err = utils.RunCommand(ctx, r.InstallTimeout, "opkg", "install", candidate.Package)
	default:
		return fmt.Errorf("no package manager available for candidate '%s'", candidate.Package)
	}
	if err != nil {
		logger.Debugf("Install output: %s", output)
	}
	return err
}

/**
 * DefaultDependencies 连接器运行所需的依赖声明
 * @description
 * - websocket能力存在两个互斥实现(python-socketio与websocket-client)，两个探测都列出，
 *   已在位的实现优先于新安装
 */
func DefaultDependencies() []models.DependencySpec {
	return []models.DependencySpec{
		{
			Name:   "python3",
			Checks: [][]string{{"python3", "--version"}},
			Candidates: []models.InstallCandidate{
				{Manager: models.AptGet, Package: "python3"},
				{Manager: models.Opkg, Package: "python3"},
			},
		},
		{
			Name:   "pip",
			Checks: [][]string{{"python3", "-m", "pip", "--version"}},
			Candidates: []models.InstallCandidate{
				{Manager: models.AptGet, Package: "python3-pip"},
				{Manager: models.Opkg, Package: "python3-pip"},
			},
		},
		{
			Name:         "websocket-support",
			ImportProbes: []string{"socketio", "websocket"},
			Candidates: []models.InstallCandidate{
				{Manager: models.AptGet, Package: "python3-websocket"},
				{Manager: models.Opkg, Package: "python3-websocket-client"},
			},
		},
		{
			Name:   "curl",
			Checks: [][]string{{"curl", "--version"}},
			Candidates: []models.InstallCandidate{
				{Manager: models.AptGet, Package: "curl"},
				{Manager: models.Opkg, Package: "curl"},
			},
		},
	}
}
