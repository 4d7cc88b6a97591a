package services

import (
	"polar-keeper/internal/config"
	"polar-keeper/internal/models"
)

// 生成块的起止标记。幂等检测逐字节比对起始标记，任何改动都会让
// 已部署主机上的旧块失去识别，必须保持原样。
const (
	MarkerBegin = "# POLAR-CLOUD-BEGIN (generated by polar-keeper, do not edit)"
	MarkerEnd   = "# POLAR-CLOUD-END"
)

/**
 * BlockContext 配置块模板的渲染上下文
 * @description
 * - 一个不可变的值从探测结果出发贯穿整个流程，组件之间不传全局变量
 */
type BlockContext struct {
	PanelDir      string
	PanelPort     int
	Location      string
	InstallRoot   string
	Origin        string
	Branch        string
	InstallScript string
}

// NewBlockContext 从主机档案和应用配置构造渲染上下文
func NewBlockContext(profile *models.HostProfile, cfg *config.AppConfig) *BlockContext {
	return &BlockContext{
		PanelDir:      profile.PanelDir(),
		PanelPort:     cfg.Proxy.PanelPort,
		Location:      cfg.Proxy.Location,
		InstallRoot:   profile.InstallRoot,
		Origin:        cfg.Payload.Origin,
		Branch:        cfg.Payload.Branch,
		InstallScript: cfg.Payload.InstallScript,
	}
}

const proxyBlockBody = `    ` + MarkerBegin + `
    location {{.Location}} {
        alias {{.PanelDir}}/;
        index index.html;
    }
    location {{.Location}}api/ {
        proxy_pass http://127.0.0.1:{{.PanelPort}}{{.Location}}api/;
        proxy_set_header Host $host;
        proxy_set_header X-Real-IP $remote_addr;
    }
    ` + MarkerEnd + `
`

// 候选文件都不存在时生成的独立站点配置(自带server块，不插入任何人的文件)
const proxyFallbackBody = MarkerBegin + `
server {
    listen 7214;
    server_name _;

    location {{.Location}} {
        alias {{.PanelDir}}/;
        index index.html;
    }
    location {{.Location}}api/ {
        proxy_pass http://127.0.0.1:{{.PanelPort}}{{.Location}}api/;
        proxy_set_header Host $host;
        proxy_set_header X-Real-IP $remote_addr;
    }
}
` + MarkerEnd + `
`

/**
 * ProxyConfigBlock 反向代理(nginx)配置块
 * @description
 * - 插在目标文件最后一个顶层闭合花括号(server块尾部)之前
 * - 把控制面板路径路由到静态页面目录，API前缀转发到本地面板端口
 */
func ProxyConfigBlock(profile *models.HostProfile) *models.ConfigBlock {
	return &models.ConfigBlock{
		MarkerBegin:      MarkerBegin,
		MarkerEnd:        MarkerEnd,
		Body:             proxyBlockBody,
		TargetCandidates: profile.ProxyConfCandidates,
		Strategy:         models.BeforeFinalCloseBrace,
		FallbackPath:     profile.ProxyFallbackPath,
		FallbackBody:     proxyFallbackBody,
	}
}

const pluginHostBlockBody = MarkerBegin + `
[polar_cloud]

[update_manager polar_cloud]
type: git_repo
path: {{.InstallRoot}}
origin: {{.Origin}}
primary_branch: {{.Branch}}
install_script: {{.InstallScript}}
managed_services: polar_cloud
` + MarkerEnd + `
`

/**
 * PluginHostConfigBlock 插件宿主(moonraker.conf)配置块
 * @description
 * - [polar_cloud]节启用组件，[update_manager]节记录载荷来源供宿主提供自更新
 * - 节式配置追加到文件末尾；moonraker.conf不存在时整个文件就是这个块
 */
func PluginHostConfigBlock(profile *models.HostProfile) *models.ConfigBlock {
	return &models.ConfigBlock{
		MarkerBegin:      MarkerBegin,
		MarkerEnd:        MarkerEnd,
		Body:             pluginHostBlockBody,
		TargetCandidates: []string{profile.PluginHostConf()},
		Strategy:         models.AppendToEnd,
		FallbackPath:     profile.PluginHostConf(),
		FallbackBody:     pluginHostBlockBody,
	}
}
