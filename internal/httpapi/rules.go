package httpapi

import (
	"github.com/gin-gonic/gin"
	"github.com/yuqie6/LifeMirror/internal/eventbus"
	"github.com/yuqie6/LifeMirror/internal/rules"
)

func (a *api) handleGetRules(c *gin.Context) {
	r, err := a.Rules.Get(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	respondOK(c, gin.H{"profiles": r.ProfileNames(), "rules": r.Tree()})
}

// handlePutRules 整棵规则树替换；不合法的树返回 400 且不写入
func (a *api) handlePutRules(c *gin.Context) {
	var tree map[string]any
	if err := c.ShouldBindJSON(&tree); err != nil {
		fail(c, badRequest("body", "JSON 格式错误"))
		return
	}
	parsed, err := rules.Parse(tree)
	if err != nil {
		fail(c, badRequest("rules", err.Error()))
		return
	}
	if err := a.Rules.Save(c.Request.Context(), parsed); err != nil {
		fail(c, err)
		return
	}
	a.Hub.Publish(eventbus.Event{Type: eventbus.TypeRulesReloaded})
	respondOK(c, gin.H{"profiles": parsed.ProfileNames(), "rules": parsed.Tree()})
}
