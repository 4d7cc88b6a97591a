package install

import (
	"context"
	"fmt"

	"polar-keeper/cmd/root"
	"polar-keeper/internal/config"
	"polar-keeper/internal/env"
	"polar-keeper/internal/models"
	"polar-keeper/services"

	"github.com/spf13/cobra"
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "卸载Polar Cloud连接器",
	Long:  "停止连接器服务，摘除Moonraker和反向代理里的生成配置，删除载荷文件。日志和注册数据保留。",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUninstall(context.Background())
	},
}

/**
 * runUninstall 执行卸载流程并打印最终报告
 * @description
 * - 每个步骤的目标不存在时退化为空转，没装完的系统也能干净卸载
 */
func runUninstall(ctx context.Context) error {
	prober := env.NewProber()
	provisioner := services.NewProvisioner(&config.Config, prober)
	report := provisioner.Uninstall(ctx)
	printReport("uninstall", report)

	if report.Outcome == models.RunFailed {
		return fmt.Errorf("uninstall failed")
	}
	return nil
}

func init() {
	root.RootCmd.AddCommand(uninstallCmd)

	uninstallCmd.Example = `  polar-keeper uninstall`
}
