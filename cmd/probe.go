package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"polar-keeper/cmd/root"
	"polar-keeper/internal/env"

	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "探测主机档案",
	Long:  "只读探测主机文件系统，显示识别出的主机档案和各项解析路径，不做任何修改。",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return showProfile()
	},
}

func showProfile() error {
	prober := env.NewProber()
	profile, err := prober.Probe()
	if err != nil {
		return err
	}
	if _, err := prober.ResolveDataRoot(profile); err != nil {
		fmt.Printf("警告: %v\n", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "档案类型\t%s\n", profile.Kind)
	fmt.Fprintf(w, "包管理器\t%s\n", profile.PackageManager)
	fmt.Fprintf(w, "systemd\t%v\n", profile.HasSystemd)
	fmt.Fprintf(w, "安装根目录\t%s\n", profile.InstallRoot)
	fmt.Fprintf(w, "数据目录\t%s\n", profile.ServiceDataRoot)
	fmt.Fprintf(w, "插件宿主目录\t%s\n", profile.PluginHostRoot)
	fmt.Fprintf(w, "插件组件目录\t%s\n", profile.PluginComponentsDir)
	fmt.Fprintf(w, "代理配置候选\t%s\n", strings.Join(profile.ProxyConfCandidates, ", "))
	w.Flush()
	return nil
}

func init() {
	root.RootCmd.AddCommand(probeCmd)

	probeCmd.Example = `  polar-keeper probe`
}
