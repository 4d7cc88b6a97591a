package server

import (
	"polar-keeper/cmd/root"
	"polar-keeper/controllers"
	"polar-keeper/internal/config"
	"polar-keeper/internal/env"
	"polar-keeper/internal/middleware"
	"polar-keeper/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动控制面板API服务",
	Long:  "为控制面板页面提供状态/注册/配置接口，同时暴露prometheus指标。",
	RunE: func(cmd *cobra.Command, args []string) error {
		return startServer()
	},
}

/**
 * startServer 启动控制面板API服务
 * @description
 * - 路径来自主机档案探测，档案探测失败无法服务
 * - /metrics暴露prometheus指标，所有请求经过统计中间件
 */
func startServer() error {
	prober := env.NewProber()
	profile, err := prober.Probe()
	if err != nil {
		return err
	}
	if _, err := prober.ResolveDataRoot(profile); err != nil {
		return err
	}

	if config.Config.Server.Mode != "" {
		gin.SetMode(config.Config.Server.Mode)
	}
	router := gin.Default()
	router.Use(middleware.MetricsMiddleware())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	sup := services.NewSupervisorFromProfile(profile, &config.Config)
	apiController := controllers.NewAPIController(profile, sup, config.Version)
	apiController.RegisterRoutes(router)

	return router.Run(config.Config.Server.Address)
}

func init() {
	root.RootCmd.AddCommand(serverCmd)
}
