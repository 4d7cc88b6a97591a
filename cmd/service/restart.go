package service

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "重启连接器服务",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return restartService(context.Background())
	},
}

/**
 * Restart connector service
 * @param {context.Context} ctx - Context for request cancellation and timeout
 * @returns {error} Returns error if service restart fails, nil on success
 */
func restartService(ctx context.Context) error {
	sup, err := newSupervisor()
	if err != nil {
		return err
	}
	result, err := sup.Restart(ctx)
	if err != nil {
		return fmt.Errorf("重启服务失败: %v", err)
	}
	fmt.Printf("Service polar-cloud restarted (PID %d)\n", result.Pid)
	return nil
}

func init() {
	serviceCmd.AddCommand(restartCmd)
}
