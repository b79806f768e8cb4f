package service

import (
	stderrors "errors"
	"net/http"

	"PChat/logger"
	mid "PChat/middleware/security"
	"PChat/module/chat/store"
	"PChat/tools/errs"

	"github.com/gin-gonic/gin"
)

// HistoryService 历史拉取与频道管理的 REST 面。
// 实时掉线/离线期间的消息都靠这里补偿（至少一次投递的兜底路径）。
type HistoryService struct {
	msgs  *store.MessageStore
	chans *store.ChannelStore
}

func NewHistoryService(msgs *store.MessageStore, chans *store.ChannelStore) *HistoryService {
	return &HistoryService{msgs: msgs, chans: chans}
}

// RegisterRoutes 挂到已带认证中间件的分组下。
func (s *HistoryService) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/messages/direct", s.DirectHistory)
	rg.GET("/channel/:channelId/messages", s.ChannelHistory)
	rg.POST("/channel", s.CreateChannel)
	rg.GET("/channel/user", s.UserChannels)
}

// DirectHistory POST {id}: 当前用户与 id 的全部单聊消息，时间戳升序。
func (s *HistoryService) DirectHistory(c *gin.Context) {
	var req struct {
		ID string `json:"id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errs.ErrValidation.WithDetail("peer id is required"))
		return
	}

	msgs, err := s.msgs.DirectHistory(c.Request.Context(), mid.UserID(c), req.ID)
	if err != nil {
		abortStoreErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// ChannelHistory 频道全部消息，时间戳升序。
func (s *HistoryService) ChannelHistory(c *gin.Context) {
	msgs, err := s.msgs.ChannelHistory(c.Request.Context(), c.Param("channelId"))
	if err != nil {
		abortStoreErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// CreateChannel POST {name, members}: 建频道，创建者自动入成员集合。
func (s *HistoryService) CreateChannel(c *gin.Context) {
	var req struct {
		Name    string   `json:"name" binding:"required"`
		Members []string `json:"members"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errs.ErrValidation.WithDetail("channel name is required"))
		return
	}

	ch, err := s.chans.CreateChannel(c.Request.Context(), req.Name, mid.UserID(c), req.Members)
	if err != nil {
		abortStoreErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"channel": ch})
}

// UserChannels 当前用户参与的频道列表。
func (s *HistoryService) UserChannels(c *gin.Context) {
	chs, err := s.chans.ChannelsForUser(c.Request.Context(), mid.UserID(c))
	if err != nil {
		abortStoreErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"channels": chs})
}

func abortStoreErr(c *gin.Context, err error) {
	var ce *errs.CodeError
	if stderrors.As(err, &ce) && ce.Code == errs.ErrValidation.Code {
		c.JSON(http.StatusBadRequest, ce)
		return
	}
	logger.Errorf("[history] store error path=%s err=%v", c.FullPath(), err)
	c.JSON(http.StatusInternalServerError, errs.ErrPersistence)
}
