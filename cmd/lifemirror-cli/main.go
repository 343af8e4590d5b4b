package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/yuqie6/LifeMirror/internal/bootstrap"
	"github.com/yuqie6/LifeMirror/internal/pkg/buildinfo"
	"github.com/yuqie6/LifeMirror/internal/schema"
)

var (
	cfgFile string
	userID  string
	asJSON  bool
	core    *bootstrap.Core
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "lifemirror",
		Short:   "LifeMirror - 个人生活数据评分与趋势分析",
		Long:    `LifeMirror 对记录的生活事件打分，生成每日快照、风险评估、数字孪生预测与行为模式洞察。`,
		Version: buildinfo.String(),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			var err error
			core, err = bootstrap.NewCore(cfgFile)
			if err != nil {
				slog.Error("初始化失败", "error", err)
				os.Exit(1)
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if core != nil {
				_ = core.Close()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "", "用户 ID")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "以 JSON 输出")

	rootCmd.AddCommand(scoreDayCmd())
	rootCmd.AddCommand(snapshotCmd())
	rootCmd.AddCommand(riskCmd())
	rootCmd.AddCommand(twinCmd())
	rootCmd.AddCommand(insightsCmd())
	rootCmd.AddCommand(mosaicCmd())
	rootCmd.AddCommand(trendsCmd())
	rootCmd.AddCommand(rescoreCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(rulesCmd())
	rootCmd.AddCommand(seedDemoCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func requireUser() {
	if userID == "" {
		fmt.Println("❌ 请通过 --user 指定用户")
		os.Exit(1)
	}
}

func today() string {
	return time.Now().UTC().Format(schema.DateLayout)
}

func dateOr(v string) string {
	if v == "" {
		return today()
	}
	return v
}

func exitOnErr(msg string, err error) {
	if err != nil {
		fmt.Printf("❌ %s: %v\n", msg, err)
		os.Exit(1)
	}
}

// printJSON --json 时输出并返回 true
func printJSON(v any) bool {
	if !asJSON {
		return false
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
	return true
}
