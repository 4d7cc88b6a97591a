package main

import (
	"os"

	_ "polar-keeper/cmd"
	"polar-keeper/cmd/root"
	"polar-keeper/internal/config"
	"polar-keeper/internal/logger"
)

func main() {
	// 检查是否是服务器模式
	isServerMode := len(os.Args) > 1 && os.Args[1] == "server"

	// 根据运行模式初始化日志系统
	logger.InitLogger(config.Config.Log.Level, config.Config.Log.Path, isServerMode)

	if err := root.RootCmd.Execute(); err != nil {
		logger.Fatal(err)
	}
	os.Exit(0)
}
