package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yuqie6/LifeMirror/internal/repository"
	"github.com/yuqie6/LifeMirror/internal/schema"
)

var errEventNotFound = errors.New("事件不存在")

// handleListEvents 指定 date 时返回当天事件，否则按 start/end/type/category 过滤
func (a *api) handleListEvents(c *gin.Context) {
	ctx, uid := c.Request.Context(), userID(c)

	var events []schema.Event
	var err error
	if date := strings.TrimSpace(c.Query("date")); date != "" {
		if _, _, perr := repository.DayRange(date); perr != nil {
			fail(c, badRequest("date", "必须是 YYYY-MM-DD"))
			return
		}
		events, err = a.EventStore.GetByDate(ctx, uid, date)
	} else {
		start, end, perr := repository.DateRange(queryDate(c, "start", daysAgo(6)), queryDate(c, "end", today()))
		if perr != nil {
			fail(c, badRequest("date", "必须是 YYYY-MM-DD"))
			return
		}
		events, err = a.EventStore.Query(ctx, repository.EventQuery{
			UserID:     uid,
			Start:      start,
			End:        end,
			Types:      queryList(c, "type"),
			Categories: queryList(c, "category"),
		})
	}
	if err != nil {
		fail(c, err)
		return
	}
	total, err := a.EventStore.Count(ctx, uid)
	if err != nil {
		fail(c, err)
		return
	}
	respondOK(c, gin.H{"events": events, "total": total})
}

func (a *api) handleGetEvent(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, badRequest("id", "必须是正整数"))
		return
	}
	ev, err := a.EventStore.GetByID(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	if ev == nil || ev.UserID != userID(c) {
		respondError(c, http.StatusNotFound, "not_found", errEventNotFound)
		return
	}
	respondOK(c, ev)
}

func (a *api) handleListAlerts(c *gin.Context) {
	limit, err := queryInt(c, "limit", 20)
	if err != nil {
		fail(c, err)
		return
	}
	out, err := a.Alerts.ListRecent(c.Request.Context(), userID(c), limit)
	if err != nil {
		fail(c, err)
		return
	}
	respondOK(c, out)
}

func (a *api) handleMarkAlertRead(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, badRequest("id", "必须是 UUID"))
		return
	}
	if err := a.Alerts.MarkRead(c.Request.Context(), userID(c), id); err != nil {
		fail(c, err)
		return
	}
	respondOK(c, gin.H{"id": id, "read": true})
}

// handleCreateActivity 记录时间段型活动（专注时段等）
func (a *api) handleCreateActivity(c *gin.Context) {
	var req struct {
		ActivityType string `json:"activity_type"`
		StartTime    int64  `json:"start_time"`
		EndTime      int64  `json:"end_time"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, badRequest("body", "JSON 格式错误"))
		return
	}
	if req.ActivityType == "" {
		req.ActivityType = schema.ActivityTypeFocusSession
	}
	if req.StartTime <= 0 || req.EndTime < req.StartTime {
		fail(c, badRequest("end_time", "必须不早于 start_time"))
		return
	}

	log := &schema.ActivityLog{
		UserID:          userID(c),
		ActivityType:    req.ActivityType,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		DurationMinutes: float64(req.EndTime-req.StartTime) / float64(time.Minute/time.Millisecond),
	}
	if err := a.Activities.Create(c.Request.Context(), log); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, log)
}

// handleCreateMovementTest 记录动作测评并刷新当日运动聚合
func (a *api) handleCreateMovementTest(c *gin.Context) {
	var req struct {
		TestType        string   `json:"test_type"`
		DurationSeconds float64  `json:"duration_seconds"`
		Timestamp       int64    `json:"timestamp"`
		FormScore       *float64 `json:"form_score"`
		Notes           string   `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, badRequest("body", "JSON 格式错误"))
		return
	}
	if req.DurationSeconds < 0 {
		fail(c, badRequest("duration_seconds", "不能为负数"))
		return
	}
	if req.Timestamp <= 0 {
		req.Timestamp = nowFunc().UnixMilli()
	}

	test := &schema.MovementTest{
		UserID:          userID(c),
		TestType:        req.TestType,
		DurationSeconds: req.DurationSeconds,
		Timestamp:       req.Timestamp,
	}
	if req.FormScore != nil || req.Notes != "" {
		test.Insight = &schema.MovementTestInsight{FormScore: req.FormScore, Notes: req.Notes}
	}

	ctx := c.Request.Context()
	if err := a.MovementStore.CreateTest(ctx, test); err != nil {
		fail(c, err)
		return
	}
	day := time.UnixMilli(req.Timestamp).UTC().Format(schema.DateLayout)
	agg, err := a.Movement.UpdateDaily(ctx, test.UserID, day)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"test": test, "daily": agg})
}
