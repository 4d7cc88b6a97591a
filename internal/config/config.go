package config

import (
	"github.com/spf13/viper"
)

/**
 * Server configuration parameters
 * @property {string} address - Server listening address (e.g. "127.0.0.1:7213")
 * @property {string} mode - Application mode (debug/release/test)
 */
type ServerConfig struct {
	Address string `mapstructure:"address"`
	Mode    string `mapstructure:"mode"`
}

/**
 * Logging configuration
 * @property {string} level - Log level (debug/info/warn/error)
 * @property {string} path - Log file path ("console" for stdout)
 */
type LogConfig struct {
	Level string `mapstructure:"level"`
	Path  string `mapstructure:"path"`
}

/**
 * Payload configuration 安装载荷的来源与自更新描述
 * @property {string} dir - 载荷目录(连接器脚本/插件组件/控制面板页面)
 * @property {string} origin - 载荷来源仓库URL，写入update_manager节供插件宿主自更新
 * @property {string} branch - 仓库主分支
 * @property {string} installScript - 仓库内安装入口脚本名
 */
type PayloadConfig struct {
	Dir           string `mapstructure:"dir"`
	Origin        string `mapstructure:"origin"`
	Branch        string `mapstructure:"branch"`
	InstallScript string `mapstructure:"install_script"`
}

/**
 * Service configuration 被管理进程的启动方式与停止时限
 * @property {string} command - 启动命令，空表示用默认的python3+安装目录脚本
 * @property {[]string} args - 启动参数
 * @property {int} graceful_timeout - 优雅终止等待秒数
 * @property {int} forceful_timeout - 强制终止后确认退出的等待秒数
 */
type ServiceConfig struct {
	Command         string   `mapstructure:"command"`
	Args            []string `mapstructure:"args"`
	GracefulTimeout int      `mapstructure:"graceful_timeout"`
	ForcefulTimeout int      `mapstructure:"forceful_timeout"`
}

/**
 * Proxy configuration 反向代理集成参数
 * @property {string} location - 控制面板在代理上的URL前缀
 * @property {int} panel_port - 控制面板API的本地端口
 */
type ProxyConfig struct {
	Location  string `mapstructure:"location"`
	PanelPort int    `mapstructure:"panel_port"`
}

type AppConfig struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Payload PayloadConfig `mapstructure:"payload"`
	Service ServiceConfig `mapstructure:"service"`
	Proxy   ProxyConfig   `mapstructure:"proxy"`
}

/**
 * Load application configuration from YAML file
 */
func LoadConfig() (*AppConfig, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.polar-keeper")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg AppConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

var Config AppConfig

// Version 由链接期注入，控制面板接口对外报告
var Version = ""

func collectConfig(cfg *AppConfig) *AppConfig {
	if cfg.Server.Address == "" {
		cfg.Server.Address = "127.0.0.1:7213"
	}
	if cfg.Payload.Origin == "" {
		cfg.Payload.Origin = "https://github.com/polar3d/polar-cloud-klipper.git"
	}
	if cfg.Payload.Branch == "" {
		cfg.Payload.Branch = "main"
	}
	if cfg.Payload.InstallScript == "" {
		cfg.Payload.InstallScript = "install.sh"
	}
	if cfg.Service.GracefulTimeout <= 0 {
		cfg.Service.GracefulTimeout = 10
	}
	if cfg.Service.ForcefulTimeout <= 0 {
		cfg.Service.ForcefulTimeout = 5
	}
	if cfg.Proxy.Location == "" {
		cfg.Proxy.Location = "/polar/"
	}
	if cfg.Proxy.PanelPort <= 0 {
		cfg.Proxy.PanelPort = 7213
	}
	return cfg
}

func init() {
	cfg, err := LoadConfig()
	if err == nil {
		Config = *cfg
	}
	collectConfig(&Config)
}
