package models

import "time"

// StepOutcome 单个安装/卸载步骤的结果
type StepOutcome string

const (
	StepOK StepOutcome = "ok"
	// 前置条件本来就不存在，步骤退化成空转(仅卸载流程)
	StepSkipped StepOutcome = "skipped"
	// 步骤失败但按策略不中止流程(反向代理集成)
	StepDegraded StepOutcome = "degraded"
	StepFailed   StepOutcome = "failed"
)

// RunOutcome 整个安装/卸载流程的总结果
type RunOutcome string

const (
	RunSucceeded RunOutcome = "succeeded"
	// 核心功能就绪，但反向代理集成失败，控制面板可达性降级
	RunDegraded RunOutcome = "degraded"
	RunFailed   RunOutcome = "failed"
)

/**
 * StepResult 步骤执行记录
 * @property {string} name - 步骤名称
 * @property {StepOutcome} outcome - 执行结果
 * @property {string} detail - 人类可读的结果描述(含涉及的路径/命令)
 * @property {string} remedy - 失败时建议的手工补救措施
 */
type StepResult struct {
	Name    string      `json:"name"`
	Outcome StepOutcome `json:"outcome"`
	Detail  string      `json:"detail,omitempty"`
	Remedy  string      `json:"remedy,omitempty"`
}

/**
 * ProvisionReport 一次完整安装/卸载流程的最终报告
 * @property {RunOutcome} outcome - 总结果
 * @property {[]StepResult} steps - 各步骤的执行记录，按执行顺序排列
 * @property {HostProfile} profile - 本次流程选中的主机档案(探测失败时为nil)
 */
type ProvisionReport struct {
	Outcome   RunOutcome   `json:"outcome"`
	Steps     []StepResult `json:"steps"`
	Profile   *HostProfile `json:"profile,omitempty"`
	StartTime time.Time    `json:"startTime"`
	EndTime   time.Time    `json:"endTime"`
}

// AddStep 追加一条步骤记录
func (r *ProvisionReport) AddStep(step StepResult) {
	r.Steps = append(r.Steps, step)
}
