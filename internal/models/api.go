package models

// ErrorResponse defines API error response format
type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

/**
 * StatusResponse 控制面板状态查询的响应
 * @property {string} serviceStatus - 被管理进程状态(running/stopped/unknown)
 * @property {bool} registered - 是否已在云端注册(serial_number非空)
 * @property {bool} connected - 实时状态文件报告的云端连接状态
 */
type StatusResponse struct {
	ServiceStatus RunStatus `json:"service_status"`
	Pid           int       `json:"pid,omitempty"`
	Registered    bool      `json:"registered"`
	Connected     bool      `json:"connected"`
	SerialNumber  string    `json:"serial_number"`
	Username      string    `json:"username"`
	MachineType   string    `json:"machine_type"`
	PrinterType   string    `json:"printer_type"`
	Manufacturer  string    `json:"manufacturer"`
	LastUpdate    string    `json:"last_update,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
}

// RegisterRequest 注册请求，凭据与机器分类
type RegisterRequest struct {
	Username     string `json:"username" binding:"required"`
	Pin          string `json:"pin" binding:"required"`
	MachineType  string `json:"machine_type"`
	PrinterType  string `json:"printer_type"`
	Manufacturer string `json:"manufacturer"`
}

// ConnectorConfigResponse 连接器配置查询/更新的响应
type ConnectorConfigResponse struct {
	ServerURL    string `json:"server_url"`
	Username     string `json:"username"`
	MachineType  string `json:"machine_type"`
	PrinterType  string `json:"printer_type"`
	Manufacturer string `json:"manufacturer"`
	MaxImageSize string `json:"max_image_size"`
	Verbose      string `json:"verbose"`
	SerialNumber string `json:"serial_number"`
}

// HealthResponse 就绪探针响应
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	StartTime     string `json:"startTime"`
	TotalRequests int64  `json:"totalRequests"`
	ErrorRequests int64  `json:"errorRequests"`
}
