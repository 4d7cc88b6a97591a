package service

import (
	"polar-keeper/cmd/root"
	"polar-keeper/internal/config"
	"polar-keeper/internal/env"
	"polar-keeper/services"

	"github.com/spf13/cobra"
)

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Service operations (start/stop/restart/status)",
	Long:  `Service operations (start/stop/restart/status)`,
}

const serviceExample = `  # start connector service
  polar-keeper service start`

/**
 * newSupervisor 探测主机档案并构造被管理进程的监督器
 * @description
 * - 所有service子命令共用，路径一律来自探测结果，不硬编码
 */
func newSupervisor() (*services.ServiceSupervisor, error) {
	prober := env.NewProber()
	profile, err := prober.Probe()
	if err != nil {
		return nil, err
	}
	if _, err := prober.ResolveDataRoot(profile); err != nil {
		return nil, err
	}
	return services.NewSupervisorFromProfile(profile, &config.Config), nil
}

func init() {
	root.RootCmd.AddCommand(serviceCmd)

	serviceCmd.Example = serviceExample
}
