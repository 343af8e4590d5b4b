package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/yuqie6/LifeMirror/internal/eventbus"
	"go.yaml.in/yaml/v3"
)

// rulesCmd 查看 / 替换评分规则
func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "查看或替换评分规则",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "输出当前评分规则",
		Run: func(cmd *cobra.Command, args []string) {
			r, err := core.Rules.Provider.Get(context.Background())
			exitOnErr("加载规则失败", err)
			if printJSON(r.Tree()) {
				return
			}
			b, err := yaml.Marshal(r.Tree())
			exitOnErr("序列化规则失败", err)
			fmt.Print(string(b))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [file]",
		Short: "用 YAML/JSON 文件替换评分规则",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			data, err := os.ReadFile(args[0])
			exitOnErr("读取文件失败", err)

			var tree map[string]any
			if strings.EqualFold(filepath.Ext(args[0]), ".json") {
				err = json.Unmarshal(data, &tree)
			} else {
				err = yaml.Unmarshal(data, &tree)
			}
			exitOnErr("解析规则文件失败", err)

			r, err := core.Rules.Provider.SetRaw(context.Background(), tree)
			exitOnErr("保存规则失败", err)
			core.Hub.Publish(eventbus.Event{Type: eventbus.TypeRulesReloaded})
			fmt.Printf("✅ 规则已更新，画像: %s\n", strings.Join(r.ProfileNames(), ", "))
		},
	})

	return cmd
}
