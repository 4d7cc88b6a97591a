package controllers

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"polar-keeper/internal/config"
	"polar-keeper/internal/logger"
	"polar-keeper/internal/models"
	"polar-keeper/services"

	"github.com/gin-gonic/gin"
)

/**
 * APIController 控制面板API
 * @description
 * - 实现状态/注册接口契约: 读端点返回连接与注册状态，写端点接受凭据和机器分类触发注册
 * - 注册数据写入连接器自己的配置文件后重启被管理进程让其生效，
 *   云端握手本身由被管理进程完成，这里不碰协议
 */
type APIController struct {
	profile   *models.HostProfile
	sup       *services.ServiceSupervisor
	startTime time.Time
	version   string
}

func NewAPIController(profile *models.HostProfile, sup *services.ServiceSupervisor, version string) *APIController {
	return &APIController{
		profile:   profile,
		sup:       sup,
		startTime: time.Now(),
		version:   version,
	}
}

/**
 * Register all API routes to Gin engine
 * @param {*gin.Engine} r - Gin router instance
 */
func (a *APIController) RegisterRoutes(r *gin.Engine) {
	r.GET("/polar/api/v1/status", a.Status)
	r.POST("/polar/api/v1/register", a.RegisterPrinter)
	r.POST("/polar/api/v1/unregister", a.UnregisterPrinter)
	r.GET("/polar/api/v1/config", a.GetConfig)
	r.POST("/polar/api/v1/config", a.UpdateConfig)
	r.GET("/polar/api/v1/logs", a.ExportLogs)
	r.GET("/healthz", a.Healthz)
}

// @Summary 查询连接器状态
// @Description 返回被管理进程的运行状态、云端连接/注册状态
// @Tags Status
// @Produce json
// @Success 200 {object} models.StatusResponse
// @Router /polar/api/v1/status [get]
func (a *APIController) Status(c *gin.Context) {
	cfg, err := config.LoadConnectorConfig(a.profile.ConnectorConf())
	if err != nil {
		c.JSON(500, models.ErrorResponse{Code: "status.config_unreadable", Error: err.Error()})
		return
	}

	state := a.sup.Status()
	resp := models.StatusResponse{
		ServiceStatus: state.Status,
		Pid:           state.Pid,
		Registered:    cfg.SerialNumber != "",
		SerialNumber:  cfg.SerialNumber,
		Username:      cfg.Username,
		MachineType:   cfg.MachineType,
		PrinterType:   cfg.PrinterType,
		Manufacturer:  cfg.Manufacturer,
	}

	// 被管理进程会把实时连接状态写进状态文件，读得到就以它为准
	if data, err := os.ReadFile(a.profile.StatusFile()); err == nil {
		var realtime struct {
			Connected  bool   `json:"connected"`
			LastUpdate string `json:"last_update"`
			LastError  string `json:"last_error"`
		}
		if json.Unmarshal(data, &realtime) == nil {
			resp.Connected = realtime.Connected
			resp.LastUpdate = realtime.LastUpdate
			resp.LastError = realtime.LastError
		}
	}

	c.JSON(200, resp)
}

// @Summary 注册打印机
// @Description 写入凭据和机器分类并重启被管理进程，由它完成云端注册握手
// @Tags Registration
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /polar/api/v1/register [post]
func (a *APIController) RegisterPrinter(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, models.ErrorResponse{Code: "register.bad_request", Error: "username and pin are required"})
		return
	}

	// 先重读配置，保留被管理进程写入的serial_number等字段
	cfg, err := config.LoadConnectorConfig(a.profile.ConnectorConf())
	if err != nil {
		c.JSON(500, models.ErrorResponse{Code: "register.config_unreadable", Error: err.Error()})
		return
	}
	cfg.Username = req.Username
	cfg.Pin = req.Pin
	if req.MachineType != "" {
		cfg.MachineType = req.MachineType
	}
	if req.PrinterType != "" {
		cfg.PrinterType = req.PrinterType
	}
	if req.Manufacturer != "" {
		cfg.Manufacturer = req.Manufacturer
	}
	if err := cfg.Save(a.profile.ConnectorConf()); err != nil {
		c.JSON(500, models.ErrorResponse{Code: "register.save_failed", Error: err.Error()})
		return
	}

	if err := a.restartService(c); err != nil {
		return
	}
	c.JSON(200, gin.H{"success": true, "message": "Registration initiated"})
}

// @Summary 取消注册
// @Tags Registration
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} models.ErrorResponse
// @Router /polar/api/v1/unregister [post]
func (a *APIController) UnregisterPrinter(c *gin.Context) {
	cfg, err := config.LoadConnectorConfig(a.profile.ConnectorConf())
	if err != nil {
		c.JSON(500, models.ErrorResponse{Code: "unregister.config_unreadable", Error: err.Error()})
		return
	}
	cfg.Username = ""
	cfg.Pin = ""
	cfg.SerialNumber = ""
	if err := cfg.Save(a.profile.ConnectorConf()); err != nil {
		c.JSON(500, models.ErrorResponse{Code: "unregister.save_failed", Error: err.Error()})
		return
	}

	if err := a.restartService(c); err != nil {
		return
	}
	c.JSON(200, gin.H{"success": true, "message": "Unregistered successfully"})
}

// @Summary 查询连接器配置
// @Tags Config
// @Produce json
// @Success 200 {object} models.ConnectorConfigResponse
// @Router /polar/api/v1/config [get]
func (a *APIController) GetConfig(c *gin.Context) {
	cfg, err := config.LoadConnectorConfig(a.profile.ConnectorConf())
	if err != nil {
		c.JSON(500, models.ErrorResponse{Code: "config.unreadable", Error: err.Error()})
		return
	}
	c.JSON(200, models.ConnectorConfigResponse{
		ServerURL:    cfg.ServerURL,
		Username:     cfg.Username,
		MachineType:  cfg.MachineType,
		PrinterType:  cfg.PrinterType,
		Manufacturer: cfg.Manufacturer,
		MaxImageSize: cfg.MaxImageSize,
		Verbose:      cfg.Verbose,
		SerialNumber: cfg.SerialNumber,
	})
}

// @Summary 更新连接器配置
// @Description 只接受白名单内的键，凭据走注册接口
// @Tags Config
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} models.ErrorResponse
// @Router /polar/api/v1/config [post]
func (a *APIController) UpdateConfig(c *gin.Context) {
	var req map[string]string
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, models.ErrorResponse{Code: "config.bad_request", Error: err.Error()})
		return
	}
	cfg, err := config.LoadConnectorConfig(a.profile.ConnectorConf())
	if err != nil {
		c.JSON(500, models.ErrorResponse{Code: "config.unreadable", Error: err.Error()})
		return
	}
	for key, value := range req {
		switch key {
		case "server_url":
			cfg.ServerURL = value
		case "machine_type":
			cfg.MachineType = value
		case "printer_type":
			cfg.PrinterType = value
		case "manufacturer":
			cfg.Manufacturer = value
		case "max_image_size":
			cfg.MaxImageSize = value
		case "verbose":
			cfg.Verbose = value
		}
	}
	if err := cfg.Save(a.profile.ConnectorConf()); err != nil {
		c.JSON(500, models.ErrorResponse{Code: "config.save_failed", Error: err.Error()})
		return
	}

	if err := a.restartService(c); err != nil {
		return
	}
	c.JSON(200, gin.H{"success": true, "message": "Configuration updated"})
}

// 日志导出一次最多返回的字节数
const maxLogExportBytes = 64 * 1024

// @Summary 导出连接器日志
// @Description 返回被管理进程日志文件的尾部，供面板排障使用
// @Tags System
// @Produce plain
// @Success 200 {string} string
// @Router /polar/api/v1/logs [get]
func (a *APIController) ExportLogs(c *gin.Context) {
	data, err := os.ReadFile(a.profile.ServiceLogFile())
	if err != nil {
		if os.IsNotExist(err) {
			c.String(200, "")
			return
		}
		c.JSON(500, models.ErrorResponse{Code: "logs.unreadable", Error: err.Error()})
		return
	}
	if len(data) > maxLogExportBytes {
		data = data[len(data)-maxLogExportBytes:]
	}
	c.Data(200, "text/plain; charset=utf-8", data)
}

// @Summary 业务就绪探针
// @Tags System
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Router /healthz [get]
func (a *APIController) Healthz(c *gin.Context) {
	c.JSON(200, models.HealthResponse{
		Status:        "ok",
		Version:       a.version,
		StartTime:     a.startTime.Format(time.RFC3339),
		TotalRequests: services.GetTotalRequestCount(),
		ErrorRequests: services.GetTotalErrorCount(),
	})
}

// restartService 配置变更后重启被管理进程让其生效；失败时直接回写错误响应
func (a *APIController) restartService(c *gin.Context) error {
	if _, err := a.sup.Restart(context.Background()); err != nil {
		logger.Errorf("Restart after config change failed: %v", err)
		c.JSON(500, models.ErrorResponse{Code: "service.restart_failed", Error: "Failed to restart service"})
		return err
	}
	return nil
}
