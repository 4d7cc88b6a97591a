package service

import (
	"fmt"

	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "停止连接器服务",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopService()
	},
}

/**
 * Stop connector service
 * @returns {error} Returns error if service stop fails, nil on success
 * @description
 * - 优雅终止超时后升级强杀，强杀作为警告打印
 * - 返回时PID文件必定已删除
 */
func stopService() error {
	sup, err := newSupervisor()
	if err != nil {
		return err
	}
	result, err := sup.Stop()
	if err != nil {
		return fmt.Errorf("停止服务失败: %v", err)
	}
	if result.NotRunning {
		fmt.Println("Service polar-cloud is not running")
		return nil
	}
	if result.Forced {
		fmt.Printf("Service polar-cloud did not stop gracefully, killed (PID %d)\n", result.Pid)
		return nil
	}
	fmt.Printf("Service polar-cloud stopped (PID %d)\n", result.Pid)
	return nil
}

func init() {
	serviceCmd.AddCommand(stopCmd)
}
