package root

import (
	"github.com/spf13/cobra"
)

var RootCmd = &cobra.Command{
	Use:   "polar-keeper",
	Short: "Polar Cloud连接器的安装与守护工具",
	Long:  `polar-keeper负责在打印机主机上安装、配置、启动和守护Polar Cloud连接器，覆盖K1/Sonic Pad/标准systemd主机`,
	// 子命令自己返回错误，这里不再重复打印用法
	SilenceUsage: true,
}
