package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/yuqie6/LifeMirror/internal/repository"
	"github.com/yuqie6/LifeMirror/internal/service"
)

// scoreDayCmd 计算并保存每日评分
func scoreDayCmd() *cobra.Command {
	var date string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "score-day",
		Short: "计算某日的四项评分",
		Run: func(cmd *cobra.Command, args []string) {
			requireUser()
			ctx := context.Background()
			day := dateOr(date)

			if _, err := core.Services.Movement.UpdateDaily(ctx, userID, day); err != nil {
				exitOnErr("运动聚合失败", err)
			}
			var scores *service.DailyScores
			var err error
			if dryRun {
				scores, err = core.Services.Daily.Compute(ctx, userID, day)
			} else {
				scores, err = core.Services.Daily.Save(ctx, userID, day)
			}
			exitOnErr("计算评分失败", err)
			if printJSON(scores) {
				return
			}

			fmt.Printf("📅 %s 评分\n", day)
			fmt.Println(strings.Repeat("─", 30))
			fmt.Printf("💰 钱包:     %6.2f\n", scores.WalletScore)
			fmt.Printf("💚 健康:     %6.2f\n", scores.WellnessScore)
			fmt.Printf("🌱 可持续:   %6.2f\n", scores.SustainabilityScore)
			fmt.Printf("🏃 运动:     %6.2f\n", scores.MovementScore)
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "日期 (YYYY-MM-DD)，默认今天")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "只计算不保存")
	return cmd
}

// snapshotCmd 批量刷新近期活跃用户的快照
func snapshotCmd() *cobra.Command {
	var date string
	var lookback int

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "为近期活跃用户刷新运动聚合、每日评分与风险快照",
		Run: func(cmd *cobra.Command, args []string) {
			if lookback <= 0 {
				lookback = core.Cfg.Jobs.SnapshotLookbackDays
			}
			res, err := core.Services.SnapshotJob.Run(context.Background(), date, lookback)
			exitOnErr("批量快照失败", err)
			if printJSON(res) {
				return
			}
			fmt.Printf("✅ %s: %d 个用户，成功 %d，耗时 %s\n", res.Date, res.Users, res.Succeeded, res.Duration)
			for u, e := range res.Failed {
				fmt.Printf("   ⚠️  %s: %s\n", u, e)
			}
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "日期 (YYYY-MM-DD)，默认今天")
	cmd.Flags().IntVar(&lookback, "lookback", 0, "回看天数，默认取配置")
	return cmd
}

// riskCmd 四类风险评估
func riskCmd() *cobra.Command {
	var asOf string
	var days int
	var save bool

	cmd := &cobra.Command{
		Use:   "risk",
		Short: "查看倦怠 / 受伤 / 孤立 / 财务风险",
		Run: func(cmd *cobra.Command, args []string) {
			requireUser()
			ctx := context.Background()
			day := dateOr(asOf)
			rs := core.Services.Risk

			if save {
				snap, err := rs.SaveSnapshot(ctx, userID, day)
				exitOnErr("保存风险快照失败", err)
				if printJSON(snap) {
					return
				}
				fmt.Printf("✅ 已保存 %s 风险快照\n", day)
				return
			}

			type item struct {
				name string
				fn   func(context.Context, string, string, int) (*service.RiskAssessment, error)
			}
			all := map[string]*service.RiskAssessment{}
			for _, it := range []item{
				{"burnout", rs.Burnout},
				{"injury", rs.Injury},
				{"isolation", rs.Isolation},
				{"financial", rs.Financial},
			} {
				a, err := it.fn(ctx, userID, day, days)
				exitOnErr("风险评估失败", err)
				all[it.name] = a
			}
			if printJSON(all) {
				return
			}

			for _, name := range []string{"burnout", "injury", "isolation", "financial"} {
				a := all[name]
				fmt.Printf("⚠️  %-10s %5.1f  [%s]\n", name, a.Risk, a.Level)
				for _, f := range a.Factors {
					fmt.Printf("      • %s (+%.0f) %s\n", f.Name, f.Impact, f.Details)
				}
			}
		},
	}

	cmd.Flags().StringVar(&asOf, "as-of", "", "评估日期 (YYYY-MM-DD)，默认今天")
	cmd.Flags().IntVar(&days, "days", 0, "回看天数，0 取各风险默认值")
	cmd.Flags().BoolVar(&save, "save", false, "计算并保存当日风险快照")
	return cmd
}

// twinCmd 数字孪生预测
func twinCmd() *cobra.Command {
	var days, months int
	var metric string
	var scenarios []string

	cmd := &cobra.Command{
		Use:   "twin",
		Short: "钱包 / 健康 / 可持续性预测与情景对比",
		Run: func(cmd *cobra.Command, args []string) {
			requireUser()
			ctx := context.Background()

			if metric != "" {
				var in []service.Scenario
				for _, name := range scenarios {
					in = append(in, service.Scenario{Name: name})
				}
				cmp, err := core.Services.Twin.CompareScenarios(ctx, userID, in, metric, days)
				exitOnErr("情景对比失败", err)
				if printJSON(cmp) {
					return
				}
				for _, s := range cmp.Scenarios {
					fmt.Printf("📈 %-16s 终值 %.2f\n", s.Name, s.FinalValue)
				}
				for _, d := range cmp.DivergencePoints {
					fmt.Printf("   ↔ %s 差距 %.2f\n", d.Date, d.Impact)
				}
				return
			}

			all, err := core.Services.Twin.ProjectAll(ctx, userID, days, months)
			exitOnErr("生成预测失败", err)
			if printJSON(all) {
				return
			}
			fmt.Printf("💰 当前余额 %.2f，可节省 %.2f\n", all.Wallet.CurrentBalance, all.Wallet.SavingsPotential)
			for _, r := range all.Wallet.RecurringExpenses {
				fmt.Printf("   ↻ %+v\n", r)
			}
			fmt.Printf("💚 健康 当前 %.2f\n", all.Wellness.CurrentScore)
			for _, rc := range all.Wellness.RecommendedChanges {
				fmt.Printf("   • %s\n", rc)
			}
			fmt.Printf("🌱 碳足迹 当前 %.2f → 预测 %.2f（改善空间 %.0f%%）\n",
				all.Sustainability.CurrentFootprint, all.Sustainability.ProjectedFootprint, all.Sustainability.ImprovementPotential)
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "预测天数")
	cmd.Flags().IntVar(&months, "months", 6, "长期钱包预测月数")
	cmd.Flags().StringVar(&metric, "compare", "", "情景对比指标 (wallet|wellness|sustainability)")
	cmd.Flags().StringSliceVar(&scenarios, "scenario", nil, "情景名称，可重复")
	return cmd
}

// insightsCmd 模式洞察
func insightsCmd() *cobra.Command {
	var lookback int
	var pattern string

	cmd := &cobra.Command{
		Use:   "insights",
		Short: "相关性、触发因素、通知与正向模式",
		Run: func(cmd *cobra.Command, args []string) {
			requireUser()
			ctx := context.Background()
			ps := core.Services.Patterns

			if pattern != "" {
				rep, err := ps.Triggers(ctx, userID, pattern, lookback)
				exitOnErr("触发因素分析失败", err)
				if printJSON(rep) {
					return
				}
				fmt.Printf("🔍 %s 触发因素\n", rep.NegativePattern)
				for _, tr := range rep.Triggers {
					fmt.Printf("   • %+v\n", tr)
				}
				for _, r := range rep.Recommendations {
					fmt.Printf("   💡 %s\n", r)
				}
				return
			}

			corr, err := ps.Correlations(ctx, userID, lookback)
			exitOnErr("相关性分析失败", err)
			notes, err := ps.Notifications(ctx, userID)
			exitOnErr("生成通知失败", err)
			pos, err := ps.PositivePatterns(ctx, userID, lookback)
			exitOnErr("正向模式分析失败", err)

			if printJSON(map[string]any{"correlations": corr, "notifications": notes, "positive": pos}) {
				return
			}
			fmt.Println("🔗 相关性")
			for _, c := range corr {
				fmt.Printf("   • %s: %s（置信度 %.2f）\n", c.Pattern, c.ImpactDescription, c.Confidence)
			}
			fmt.Println("🔔 通知")
			for _, n := range notes {
				fmt.Printf("   [%s] %s: %s\n", n.Severity, n.Title, n.Message)
			}
			fmt.Println("🌟 正向模式")
			for _, p := range pos {
				fmt.Printf("   • %s\n", p.Message)
			}
		},
	}

	cmd.Flags().IntVar(&lookback, "lookback", 30, "回看天数")
	cmd.Flags().StringVar(&pattern, "triggers", "", "分析负面模式的触发因素 (overspending|skipped workouts|poor food|low mood)")
	return cmd
}

// mosaicCmd 生活马赛克
func mosaicCmd() *cobra.Command {
	var date string
	var week bool

	cmd := &cobra.Command{
		Use:   "mosaic",
		Short: "查看每日生活马赛克",
		Run: func(cmd *cobra.Command, args []string) {
			requireUser()
			ctx := context.Background()

			var days []service.DailyMosaic
			if week {
				out, err := core.Services.Mosaic.Week(ctx, userID, date)
				exitOnErr("生成马赛克失败", err)
				days = out
			} else {
				out, err := core.Services.Mosaic.Daily(ctx, userID, dateOr(date))
				exitOnErr("生成马赛克失败", err)
				days = []service.DailyMosaic{*out}
			}
			if printJSON(days) {
				return
			}

			for _, d := range days {
				fmt.Printf("🧩 %s  总分 %.1f\n", d.Date, d.OverallScore)
				for _, t := range d.Tiles {
					fmt.Printf("   %-10s %5.1f %-6s %s\n", t.Name, t.Score, t.Color, t.Detail)
				}
				fmt.Printf("   %s\n\n", d.Story)
			}
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "日期 (YYYY-MM-DD)；--week 时为起始日")
	cmd.Flags().BoolVar(&week, "week", false, "连续 7 天")
	return cmd
}

// trendsCmd 指标趋势与分类构成
func trendsCmd() *cobra.Command {
	var metric, granularity, breakdown, start, end, period string

	cmd := &cobra.Command{
		Use:   "trends",
		Short: "查看指标趋势、分类构成与仪表盘",
		Run: func(cmd *cobra.Command, args []string) {
			requireUser()
			ctx := context.Background()
			as := core.Services.Analytics
			end = dateOr(end)
			if start == "" {
				start = shiftDate(end, -29)
			}

			switch {
			case breakdown != "":
				out, err := as.Breakdown(ctx, userID, breakdown, start, end)
				exitOnErr("分类构成失败", err)
				if printJSON(out) {
					return
				}
				for _, s := range out {
					fmt.Printf("   %+v\n", s)
				}
			case metric != "":
				out, err := as.Trend(ctx, userID, metric, start, end, granularity)
				exitOnErr("趋势计算失败", err)
				if printJSON(out) {
					return
				}
				fmt.Printf("📈 %s (%s)\n", metric, granularity)
				for _, p := range out {
					fmt.Printf("   %s  %10.2f\n", p.Date, p.Value)
				}
			default:
				out, err := as.DashboardStats(ctx, userID, period)
				exitOnErr("仪表盘统计失败", err)
				if printJSON(out) {
					return
				}
				fmt.Printf("📊 仪表盘 (%s)\n", out.Period)
				for k, v := range out.Stats {
					fmt.Printf("   %-14s %+v\n", k, v)
				}
			}
		},
	}

	cmd.Flags().StringVar(&metric, "metric", "", "指标 (spending|wellness|sustainability|movement_minutes|steps|wallet)")
	cmd.Flags().StringVar(&granularity, "granularity", "day", "分桶 (day|week|month)")
	cmd.Flags().StringVar(&breakdown, "breakdown", "", "分类构成 (spending_by_category|food_by_quality|time_by_activity)")
	cmd.Flags().StringVar(&start, "start", "", "开始日期，默认结束日前 29 天")
	cmd.Flags().StringVar(&end, "end", "", "结束日期，默认今天")
	cmd.Flags().StringVar(&period, "period", "week", "仪表盘周期 (day|week|month)")
	return cmd
}

// rescoreCmd 用当前规则重算历史事件
func rescoreCmd() *cobra.Command {
	var start, end, profile string
	var types []string

	cmd := &cobra.Command{
		Use:   "rescore",
		Short: "按当前评分规则重算事件分数",
		Run: func(cmd *cobra.Command, args []string) {
			q := service.RescoreQuery{UserID: userID, Types: types, Profile: profile}
			if start != "" {
				s, e, err := repository.DateRange(start, dateOr(end))
				exitOnErr("日期不合法", err)
				q.Start, q.End = s, e
			}
			n, err := core.Services.Events.Rescore(context.Background(), q)
			exitOnErr("重算失败", err)
			fmt.Printf("✅ 已重算 %d 个事件\n", n)
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "开始日期 (YYYY-MM-DD)，为空不限")
	cmd.Flags().StringVar(&end, "end", "", "结束日期，默认今天")
	cmd.Flags().StringVar(&profile, "profile", "", "评分画像")
	cmd.Flags().StringSliceVar(&types, "type", nil, "只重算这些事件类型")
	return cmd
}

// importCmd 从 JSON 文件批量导入事件
func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [file.json]",
		Short: "批量导入事件（JSON 数组）",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			data, err := os.ReadFile(args[0])
			exitOnErr("读取文件失败", err)
			inputs, err := decodeEvents(data, userID)
			exitOnErr("解析事件失败", err)
			n, err := core.Services.Events.Import(context.Background(), inputs)
			exitOnErr("导入失败", err)
			fmt.Printf("✅ 已导入 %d 个事件\n", n)
		},
	}
}
