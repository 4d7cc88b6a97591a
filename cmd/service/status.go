package service

import (
	"fmt"

	"polar-keeper/internal/models"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "查看连接器服务状态",
	Long:  "查看连接器服务的运行状态。PID文件指向已死进程时顺带清理掉它。",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return showServiceStatus()
	},
}

/**
 * Show connector service status
 * @returns {error} Returns error if status checking fails, nil on success
 * @description
 * - PID文件是唯一的事实来源: 存在且进程存活为running，否则stopped
 * - 陈旧PID文件在查询过程中自愈删除
 */
func showServiceStatus() error {
	sup, err := newSupervisor()
	if err != nil {
		return err
	}
	state := sup.Status()
	if state.Status == models.StatusRunning {
		fmt.Printf("Service polar-cloud is running (PID %d)\n", state.Pid)
	} else {
		fmt.Println("Service polar-cloud is stopped")
	}
	return nil
}

func init() {
	serviceCmd.AddCommand(statusCmd)
}
