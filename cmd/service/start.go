package service

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start connector service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return startService(context.Background())
	},
}

/**
 * Start connector service
 * @param {context.Context} ctx - Context for request cancellation and timeout
 * @returns {error} Returns error if service start fails, nil on success
 * @description
 * - 进程已在运行时报告AlreadyRunning并以0退出(提示性结果，不是错误)
 */
func startService(ctx context.Context) error {
	sup, err := newSupervisor()
	if err != nil {
		return err
	}
	result, err := sup.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start service: %v", err)
	}
	if result.AlreadyRunning {
		fmt.Printf("Service polar-cloud is already running (PID %d)\n", result.Pid)
		return nil
	}
	fmt.Printf("Service polar-cloud started (PID %d)\n", result.Pid)
	return nil
}

func init() {
	serviceCmd.AddCommand(startCmd)
}
