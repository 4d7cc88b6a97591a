package utils

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"text/template"
	"time"
)

/**
 * RunCommand 执行外部命令并收集输出
 * @param {context.Context} ctx - 上下文
 * @param {time.Duration} timeout - 超时时间，0表示不限制
 * @returns {string} 命令的stdout+stderr合并输出
 * @description
 * - 超时通过子上下文实现，到期后命令被杀死并返回错误
 */
func RunCommand(ctx context.Context, timeout time.Duration, name string, args ...string) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, name, args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	output := strings.TrimSpace(buf.String())
	if err != nil {
		return output, fmt.Errorf("command '%s %s' failed: %v", name, strings.Join(args, " "), err)
	}
	return output, nil
}

/**
 * RenderTemplate 渲染文本模板
 * @param {string} text - text/template模板文本
 * @param {interface{}} data - 模板上下文
 * @returns {string} 渲染结果
 */
func RenderTemplate(text string, data interface{}) (string, error) {
	tmpl, err := template.New("block").Parse(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}
