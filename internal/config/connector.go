package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// 连接器配置文件里的节名，与被管理进程读取的保持一致
const connectorSection = "polar_cloud"

/**
 * ConnectorConfig 连接器进程自身的配置(polar_cloud.conf)
 * @description
 * - 文件是configparser风格的INI("key = value")，被管理进程和Moonraker插件都直接读它
 * - serial_number由被管理进程在云端注册成功后写入，保存时必须保留
 */
type ConnectorConfig struct {
	ServerURL    string
	Username     string
	Pin          string
	MachineType  string
	PrinterType  string
	Manufacturer string
	SerialNumber string
	Verbose      string
	MaxImageSize string
	// 未识别的键按原样保留，避免覆盖被管理进程写入的新字段
	Extra map[string]string
}

// DefaultConnectorConfig 与被管理进程的出厂默认值一致
func DefaultConnectorConfig() *ConnectorConfig {
	return &ConnectorConfig{
		ServerURL:    "https://printer4.polar3d.com",
		MachineType:  "Cartesian",
		PrinterType:  "Cartesian",
		Manufacturer: "generic",
		Verbose:      "false",
		MaxImageSize: "150000",
		Extra:        map[string]string{},
	}
}

/**
 * LoadConnectorConfig 读取连接器配置
 * @param {string} path - polar_cloud.conf路径
 * @returns {*ConnectorConfig} 文件不存在时返回默认配置(不报错)
 * @description
 * - 只解析[polar_cloud]节，其他节忽略
 * - viper 1.20起不再支持INI，这里按行解析
 */
func LoadConnectorConfig(path string) (*ConnectorConfig, error) {
	cfg := DefaultConnectorConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read '%s' failed: %w", path, err)
	}

	inSection := false
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			inSection = strings.TrimSpace(line[1:len(line)-1]) == connectorSection
			continue
		}
		if !inSection {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		cfg.set(strings.TrimSpace(key), strings.TrimSpace(value))
	}
	return cfg, nil
}

func (c *ConnectorConfig) set(key, value string) {
	switch key {
	case "server_url":
		c.ServerURL = value
	case "username":
		c.Username = value
	case "pin":
		c.Pin = value
	case "machine_type":
		c.MachineType = value
	case "printer_type":
		c.PrinterType = value
	case "manufacturer":
		c.Manufacturer = value
	case "serial_number":
		c.SerialNumber = value
	case "verbose":
		c.Verbose = value
	case "max_image_size":
		c.MaxImageSize = value
	default:
		if c.Extra == nil {
			c.Extra = map[string]string{}
		}
		c.Extra[key] = value
	}
}

/**
 * Save 写回连接器配置
 * @param {string} path - polar_cloud.conf路径
 * @description
 * - 目录不存在时自动创建
 * - 未识别的键排序后追加在已知键之后，保证输出稳定
 */
func (c *ConnectorConfig) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory failed: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s]\n", connectorSection)
	fmt.Fprintf(&b, "server_url = %s\n", c.ServerURL)
	fmt.Fprintf(&b, "username = %s\n", c.Username)
	fmt.Fprintf(&b, "pin = %s\n", c.Pin)
	fmt.Fprintf(&b, "machine_type = %s\n", c.MachineType)
	fmt.Fprintf(&b, "printer_type = %s\n", c.PrinterType)
	fmt.Fprintf(&b, "manufacturer = %s\n", c.Manufacturer)
	fmt.Fprintf(&b, "verbose = %s\n", c.Verbose)
	fmt.Fprintf(&b, "max_image_size = %s\n", c.MaxImageSize)
	if c.SerialNumber != "" {
		fmt.Fprintf(&b, "serial_number = %s\n", c.SerialNumber)
	}

	keys := make([]string, 0, len(c.Extra))
	for k := range c.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s = %s\n", k, c.Extra[k])
	}

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("write '%s' failed: %w", path, err)
	}
	return nil
}
