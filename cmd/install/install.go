package install

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"polar-keeper/cmd/root"
	"polar-keeper/internal/config"
	"polar-keeper/internal/env"
	"polar-keeper/internal/models"
	"polar-keeper/services"

	"github.com/spf13/cobra"
)

var installPayloadDir string

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "安装Polar Cloud连接器",
	Long:  "探测主机档案，安装依赖和载荷文件，接入Moonraker和反向代理配置，并启动连接器服务。",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInstall(context.Background())
	},
}

/**
 * runInstall 执行安装流程并打印最终报告
 * @description
 * - 数据目录无法按惯例解析时在终端询问(核心中唯一的交互点)
 * - 退出码: 成功/降级成功为0，失败为非0
 */
func runInstall(ctx context.Context) error {
	cfg := config.Config
	if installPayloadDir != "" {
		cfg.Payload.Dir = installPayloadDir
	}

	prober := env.NewProber()
	prober.Prompt = promptStdin

	provisioner := services.NewProvisioner(&cfg, prober)
	report := provisioner.Install(ctx)
	printReport("install", report)

	if report.Outcome == models.RunFailed {
		return fmt.Errorf("install failed")
	}
	return nil
}

// promptStdin 终端交互回退
func promptStdin(question string) (string, error) {
	fmt.Printf("%s: ", question)
	reader := bufio.NewReader(os.Stdin)
	return reader.ReadString('\n')
}

/**
 * printReport 打印流程报告
 * @description
 * - 成功、降级成功(反向代理集成失败)、失败三种总结果要能一眼区分
 * - 失败步骤附带建议的手工补救措施
 */
func printReport(action string, report *models.ProvisionReport) {
	fmt.Printf("=== %s report ===\n", action)
	if report.Profile != nil {
		fmt.Printf("主机档案: %s\n", report.Profile.Kind)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "步骤\t结果\t说明")
	for _, step := range report.Steps {
		fmt.Fprintf(w, "%s\t%s\t%s\n", step.Name, step.Outcome, step.Detail)
	}
	w.Flush()
	for _, step := range report.Steps {
		if step.Remedy != "" {
			fmt.Printf("建议(%s): %s\n", step.Name, step.Remedy)
		}
	}

	switch report.Outcome {
	case models.RunSucceeded:
		fmt.Printf("%s succeeded (%.1fs)\n", action, report.EndTime.Sub(report.StartTime).Seconds())
	case models.RunDegraded:
		fmt.Printf("%s succeeded with degraded proxy integration (%.1fs)\n", action, report.EndTime.Sub(report.StartTime).Seconds())
	default:
		fmt.Printf("%s FAILED (%.1fs)\n", action, report.EndTime.Sub(report.StartTime).Seconds())
	}
}

func init() {
	root.RootCmd.AddCommand(installCmd)

	installCmd.Flags().StringVar(&installPayloadDir, "payload-dir", "", "载荷目录(默认取配置文件里的payload.dir)")
	installCmd.Example = `  # install connector using the payload shipped alongside the binary
  polar-keeper install --payload-dir ./payload`
}
