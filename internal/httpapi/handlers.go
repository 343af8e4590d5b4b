package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yuqie6/LifeMirror/internal/repository"
	"github.com/yuqie6/LifeMirror/internal/schema"
	"github.com/yuqie6/LifeMirror/internal/service"
)

var nowFunc = time.Now

func today() string {
	return nowFunc().UTC().Format(schema.DateLayout)
}

func daysAgo(n int) string {
	return nowFunc().UTC().AddDate(0, 0, -n).Format(schema.DateLayout)
}

func queryDate(c *gin.Context, key, def string) string {
	if v := strings.TrimSpace(c.Query(key)); v != "" {
		return v
	}
	return def
}

// ========== 事件 ==========

func (a *api) handleCreateEvent(c *gin.Context) {
	var in service.CreateEventInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, badRequest("body", "JSON 格式错误"))
		return
	}
	in.UserID = userID(c)
	res, err := a.Events.Create(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (a *api) handleImportEvents(c *gin.Context) {
	var req struct {
		Events []service.CreateEventInput `json:"events"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, badRequest("body", "JSON 格式错误"))
		return
	}
	uid := userID(c)
	for i := range req.Events {
		req.Events[i].UserID = uid
	}
	n, err := a.Events.Import(c.Request.Context(), req.Events)
	if err != nil {
		fail(c, err)
		return
	}
	respondOK(c, gin.H{"imported": n})
}

func (a *api) handleRescore(c *gin.Context) {
	var req struct {
		StartDate  string   `json:"start_date"`
		EndDate    string   `json:"end_date"`
		Types      []string `json:"types"`
		Categories []string `json:"categories"`
		Profile    string   `json:"profile"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, badRequest("body", "JSON 格式错误"))
		return
	}
	q := service.RescoreQuery{UserID: userID(c), Types: req.Types, Categories: req.Categories, Profile: req.Profile}
	if req.StartDate != "" || req.EndDate != "" {
		start, end, err := repository.DateRange(queryDefault(req.StartDate, "1970-01-01"), queryDefault(req.EndDate, today()))
		if err != nil {
			fail(c, badRequest("date", "必须是 YYYY-MM-DD"))
			return
		}
		q.Start, q.End = start, end
	}
	n, err := a.Events.Rescore(c.Request.Context(), q)
	if err != nil {
		fail(c, err)
		return
	}
	respondOK(c, gin.H{"rescored": n})
}

func queryDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func (a *api) handleEventStats(c *gin.Context) {
	start, end, err := repository.DateRange(queryDate(c, "start", daysAgo(29)), queryDate(c, "end", today()))
	if err != nil {
		fail(c, badRequest("date", "必须是 YYYY-MM-DD"))
		return
	}
	stats, err := a.Events.Stats(c.Request.Context(), userID(c), start, end)
	if err != nil {
		fail(c, err)
		return
	}
	respondOK(c, stats)
}

// ========== 每日评分 / 运动 ==========

func (a *api) handleDailyScore(c *gin.Context) {
	out, err := a.Daily.Compute(c.Request.Context(), userID(c), queryDate(c, "date", today()))
	if err != nil {
		fail(c, err)
		return
	}
	respondOK(c, out)
}

func (a *api) handleSaveDailyScore(c *gin.Context) {
	out, err := a.Daily.Save(c.Request.Context(), userID(c), queryDate(c, "date", today()))
	if err != nil {
		fail(c, err)
		return
	}
	respondOK(c, out)
}

func (a *api) handleScoreHistory(c *gin.Context) {
	out, err := a.Daily.History(c.Request.Context(), userID(c), queryDate(c, "start", daysAgo(29)), queryDate(c, "end", today()))
	if err != nil {
		fail(c, err)
		return
	}
	respondOK(c, out)
}

func (a *api) handleUpdateMovement(c *gin.Context) {
	out, err := a.Movement.UpdateDaily(c.Request.Context(), userID(c), queryDate(c, "date", today()))
	if err != nil {
		fail(c, err)
		return
	}
	respondOK(c, out)
}

func (a *api) handleMovementHistory(c *gin.Context) {
	out, err := a.Movement.History(c.Request.Context(), userID(c), queryDate(c, "start", daysAgo(29)), queryDate(c, "end", today()))
	if err != nil {
		fail(c, err)
		return
	}
	respondOK(c, out)
}

func (a *api) handleMovementStats(c *gin.Context) {
	days, err := queryInt(c, "days", 7)
	if err != nil {
		fail(c, err)
		return
	}
	out, err := a.Movement.Stats(c.Request.Context(), userID(c), days)
	if err != nil {
		fail(c, err)
		return
	}
	respondOK(c, out)
}

// ========== 分析 ==========

func (a *api) handleTrend(c *gin.Context) {
	out, err := a.Analytics.Trend(
		c.Request.Context(),
		userID(c),
		c.Query("metric"),
		queryDate(c, "start", daysAgo(29)),
		queryDate(c, "end", today()),
		queryDefault(c.Query("granularity"), "day"),
	)
	if err != nil {
		fail(c, err)
		return
	}
	respondOK(c, out)
}

func (a *api) handleBreakdown(c *gin.Context) {
	out, err := a.Analytics.Breakdown(
		c.Request.Context(),
		userID(c),
		c.Query("type"),
		queryDate(c, "start", daysAgo(29)),
		queryDate(c, "end", today()),
	)
	if err != nil {
		fail(c, err)
		return
	}
	respondOK(c, out)
}

func (a *api) handleDashboard(c *gin.Context) {
	out, err := a.Analytics.DashboardStats(c.Request.Context(), userID(c), queryDefault(c.Query("period"), "week"))
	if err != nil {
		fail(c, err)
		return
	}
	respondOK(c, out)
}

func (a *api) handleBeforeAfter(c *gin.Context) {
	date := strings.TrimSpace(c.Query("date"))
	if date == "" {
		fail(c, badRequest("date", "缺失"))
		return
	}
	out, err := a.Analytics.BeforeAfter(c.Request.Context(), userID(c), date, c.Query("metric"))
	if err != nil {
		fail(c, err)
		return
	}
	respondOK(c, out)
}

// ========== 风险 ==========

func (a *api) handleRisk(c *gin.Context) {
	days, err := queryInt(c, "days", 0)
	if err != nil {
		fail(c, err)
		return
	}
	ctx, uid, asOf := c.Request.Context(), userID(c), queryDate(c, "as_of", today())

	var out *service.RiskAssessment
	switch strings.ToLower(c.Param("kind")) {
	case "burnout":
		out, err = a.Risk.Burnout(ctx, uid, asOf, days)
	case "injury":
		out, err = a.Risk.Injury(ctx, uid, asOf, days)
	case "isolation":
		out, err = a.Risk.Isolation(ctx, uid, asOf, days)
	case "financial":
		out, err = a.Risk.Financial(ctx, uid, asOf, days)
	default:
		err = &service.ValidationError{Field: "kind", Value: c.Param("kind"), Reason: "不受支持", Err: service.ErrUnsupported}
	}
	if err != nil {
		fail(c, err)
		return
	}
	respondOK(c, out)
}

func (a *api) handleSaveRiskSnapshot(c *gin.Context) {
	out, err := a.Risk.SaveSnapshot(c.Request.Context(), userID(c), queryDate(c, "date", today()))
	if err != nil {
		fail(c, err)
		return
	}
	respondOK(c, out)
}

func (a *api) handleRiskHistory(c *gin.Context) {
	days, err := queryInt(c, "days", 30)
	if err != nil {
		fail(c, err)
		return
	}
	out, err := a.Risk.History(c.Request.Context(), userID(c), days, queryList(c, "types"))
	if err != nil {
		fail(c, err)
		return
	}
	respondOK(c, out)
}

// ========== 数字孪生 ==========

func (a *api) handleTwinWallet(c *gin.Context) {
	days, err := queryInt(c, "days", 30)
	if err != nil {
		fail(c, err)
		return
	}
	out, err := a.Twin.WalletShortTerm(c.Request.Context(), userID(c), days)
	if err != nil {
		fail(c, err)
		return
	}
	respondOK(c, out)
}

func (a *api) handleTwinWalletLongTerm(c *gin.Context) {
	months, err := queryInt(c, "months", 6)
	if err != nil {
		fail(c, err)
		return
	}
	out, err := a.Twin.WalletLongTerm(c.Request.Context(), userID(c), months)
	if err != nil {
		fail(c, err)
		return
	}
	respondOK(c, out)
}

func (a *api) handleTwinWellness(c *gin.Context) {
	days, err := queryInt(c, "days", 30)
	if err != nil {
		fail(c, err)
		return
	}
	out, err := a.Twin.Wellness(c.Request.Context(), userID(c), days)
	if err != nil {
		fail(c, err)
		return
	}
	respondOK(c, out)
}

func (a *api) handleTwinSustainability(c *gin.Context) {
	days, err := queryInt(c, "days", 30)
	if err != nil {
		fail(c, err)
		return
	}
	out, err := a.Twin.Sustainability(c.Request.Context(), userID(c), days)
	if err != nil {
		fail(c, err)
		return
	}
	respondOK(c, out)
}

func (a *api) handleTwinAll(c *gin.Context) {
	days, err := queryInt(c, "days", 30)
	if err != nil {
		fail(c, err)
		return
	}
	months, err := queryInt(c, "months", 6)
	if err != nil {
		fail(c, err)
		return
	}
	out, err := a.Twin.ProjectAll(c.Request.Context(), userID(c), days, months)
	if err != nil {
		fail(c, err)
		return
	}
	respondOK(c, out)
}

func (a *api) handleCompareScenarios(c *gin.Context) {
	var req struct {
		Metric    string             `json:"metric"`
		Days      int                `json:"days"`
		Scenarios []service.Scenario `json:"scenarios"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, badRequest("body", "JSON 格式错误"))
		return
	}
	out, err := a.Twin.CompareScenarios(c.Request.Context(), userID(c), req.Scenarios, req.Metric, req.Days)
	if err != nil {
		fail(c, err)
		return
	}
	respondOK(c, out)
}

// ========== 洞察 / 马赛克 ==========

func (a *api) handleCorrelations(c *gin.Context) {
	lookback, err := queryInt(c, "lookback", 30)
	if err != nil {
		fail(c, err)
		return
	}
	out, err := a.Patterns.Correlations(c.Request.Context(), userID(c), lookback)
	if err != nil {
		fail(c, err)
		return
	}
	respondOK(c, out)
}

func (a *api) handleTriggers(c *gin.Context) {
	lookback, err := queryInt(c, "lookback", 30)
	if err != nil {
		fail(c, err)
		return
	}
	out, err := a.Patterns.Triggers(c.Request.Context(), userID(c), c.Query("pattern"), lookback)
	if err != nil {
		fail(c, err)
		return
	}
	respondOK(c, out)
}

func (a *api) handleNotifications(c *gin.Context) {
	out, err := a.Patterns.Notifications(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, err)
		return
	}
	respondOK(c, out)
}

func (a *api) handlePositivePatterns(c *gin.Context) {
	days, err := queryInt(c, "days", 30)
	if err != nil {
		fail(c, err)
		return
	}
	out, err := a.Patterns.PositivePatterns(c.Request.Context(), userID(c), days)
	if err != nil {
		fail(c, err)
		return
	}
	respondOK(c, out)
}

func (a *api) handleMosaicDaily(c *gin.Context) {
	out, err := a.Mosaic.Daily(c.Request.Context(), userID(c), queryDate(c, "date", today()))
	if err != nil {
		fail(c, err)
		return
	}
	respondOK(c, out)
}

func (a *api) handleMosaicWeek(c *gin.Context) {
	out, err := a.Mosaic.Week(c.Request.Context(), userID(c), c.Query("start"))
	if err != nil {
		fail(c, err)
		return
	}
	respondOK(c, out)
}

// ========== 管理 ==========

func (a *api) handleRunSnapshotJob(c *gin.Context) {
	lookback, err := queryInt(c, "lookback", a.SnapshotLookbackDays)
	if err != nil {
		fail(c, err)
		return
	}
	out, err := a.SnapshotJob.Run(c.Request.Context(), c.Query("date"), lookback)
	if err != nil {
		fail(c, err)
		return
	}
	respondOK(c, out)
}
