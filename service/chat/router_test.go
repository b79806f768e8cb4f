package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"PChat/module/chat/model"
	"PChat/tools/errs"

	"github.com/stretchr/testify/require"
)

// fakeStore 按插入顺序分配ID与时间戳，可注入失败。
type fakeStore struct {
	mu       sync.Mutex
	seq      int64
	failNext bool
	saved    []*model.Message
}

func (s *fakeStore) PersistMessage(_ context.Context, in *model.MessageIntent) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext {
		s.failNext = false
		return nil, errs.ErrPersistence.WrapMsg("injected failure")
	}
	s.seq++
	m := &model.Message{
		ID:        fmt.Sprintf("m%d", s.seq),
		Sender:    in.Sender,
		Recipient: in.Recipient,
		ChannelID: in.ChannelID,
		Type:      in.Type,
		Content:   in.Content,
		FileURL:   in.FileURL,
		VoiceURL:  in.VoiceURL,
		Timestamp: s.seq,
	}
	s.saved = append(s.saved, m)
	return m, nil
}

func (s *fakeStore) lastSaved() *model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.saved) == 0 {
		return nil
	}
	return s.saved[len(s.saved)-1]
}

func (s *fakeStore) savedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

type fakeResolver struct {
	mu      sync.Mutex
	members map[string][]string
	calls   int
}

func (r *fakeResolver) MembersOf(_ context.Context, channelID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.members[channelID], nil
}

func (r *fakeResolver) set(channelID string, members []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[channelID] = members
}

func newTestRouter(t *testing.T) (*Router, *Registry, *fakeStore, *fakeResolver) {
	t.Helper()
	reg := NewRegistry()
	store := &fakeStore{}
	resolver := &fakeResolver{members: map[string][]string{}}
	router := NewRouter(reg, store, resolver)
	t.Cleanup(router.Close)
	return router, reg, store, resolver
}

func recvMsg(t *testing.T, c *Client) *model.Message {
	t.Helper()
	select {
	case raw := <-c.Send:
		frame, err := ParseFrame(raw)
		require.NoError(t, err)
		var m model.Message
		require.NoError(t, json.Unmarshal(frame.Data, &m))
		return &m
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
		return nil
	}
}

func TestDirectFanOutToEveryRecipientConn(t *testing.T) {
	router, reg, store, _ := newTestRouter(t)

	bob1 := NewClient("bob", nil)
	bob2 := NewClient("bob", nil)
	alice := NewClient("alice", nil)
	for _, c := range []*Client{bob1, bob2, alice} {
		require.NoError(t, reg.Register(c))
	}

	msg, err := router.Submit(context.Background(), &model.MessageIntent{
		Sender: "alice", Recipient: "bob", Type: model.MessageText, Content: "hi",
	})
	require.NoError(t, err)

	// 对端每条连接恰好一次，负载等于已落库的消息
	for _, c := range []*Client{bob1, bob2} {
		got := recvMsg(t, c)
		require.Equal(t, *msg, *got)
		require.Empty(t, c.Send)
	}

	// 单聊不回显发送方：用一条反向消息做屏障，alice 收到的第一帧就是它
	back, err := router.Submit(context.Background(), &model.MessageIntent{
		Sender: "bob", Recipient: "alice", Type: model.MessageText, Content: "ack",
	})
	require.NoError(t, err)
	require.Equal(t, back.ID, recvMsg(t, alice).ID)
	require.Empty(t, alice.Send)

	require.Equal(t, 2, store.savedCount())
}

func TestDirectOfflineRecipientPersistsWithoutDelivery(t *testing.T) {
	router, _, store, _ := newTestRouter(t)

	// A 完全离线：提交成功、落库返回带时间戳的消息、没有任何实时投递
	msg, err := router.Submit(context.Background(), &model.MessageIntent{
		Sender: "b", Recipient: "a", Type: model.MessageText, Content: "hi",
	})
	require.NoError(t, err)
	require.NotEmpty(t, msg.ID)
	require.NotZero(t, msg.Timestamp)

	// 下次历史拉取能看到：落库序列的最后一条就是它
	require.Equal(t, msg, store.lastSaved())
}

func TestChannelFanOutScenario(t *testing.T) {
	router, reg, _, resolver := newTestRouter(t)
	resolver.set("c1", []string{"x", "y", "z"})

	x1 := NewClient("x", nil)
	y1 := NewClient("y", nil)
	y2 := NewClient("y", nil)
	z1 := NewClient("z", nil)
	for _, c := range []*Client{x1, y1, y2, z1} {
		require.NoError(t, reg.Register(c))
	}

	msg, err := router.Submit(context.Background(), &model.MessageIntent{
		Sender: "x", ChannelID: "c1", Type: model.MessageText, Content: "all hands",
	})
	require.NoError(t, err)

	// 成员全部在内，发送方自己的连接也算：共 4 次投递，每条连接恰好一次
	for _, c := range []*Client{x1, y1, y2, z1} {
		require.Equal(t, msg.ID, recvMsg(t, c).ID)
		require.Empty(t, c.Send)
	}
}

func TestChannelMembershipReadFreshEachSubmit(t *testing.T) {
	router, reg, _, resolver := newTestRouter(t)
	resolver.set("c1", []string{"x", "z"})

	x1 := NewClient("x", nil)
	z1 := NewClient("z", nil)
	require.NoError(t, reg.Register(x1))
	require.NoError(t, reg.Register(z1))

	first, err := router.Submit(context.Background(), &model.MessageIntent{
		Sender: "x", ChannelID: "c1", Type: model.MessageText, Content: "one",
	})
	require.NoError(t, err)
	require.Equal(t, first.ID, recvMsg(t, z1).ID)

	// Z 在两条消息之间被移出频道：第二条不能再投给他
	resolver.set("c1", []string{"x"})
	_, err = router.Submit(context.Background(), &model.MessageIntent{
		Sender: "x", ChannelID: "c1", Type: model.MessageText, Content: "two",
	})
	require.NoError(t, err)

	// 用一条发给 Z 的单聊做屏障，证明频道消息没有先到
	barrier, err := router.Submit(context.Background(), &model.MessageIntent{
		Sender: "x", Recipient: "z", Type: model.MessageText, Content: "direct",
	})
	require.NoError(t, err)
	require.Equal(t, barrier.ID, recvMsg(t, z1).ID)
	require.Empty(t, z1.Send)

	require.GreaterOrEqual(t, resolver.calls, 2)
}

func TestChannelEmptyMembership(t *testing.T) {
	router, _, store, resolver := newTestRouter(t)
	resolver.set("ghost", nil)

	// 没有成员：落库照常成功，投给零个目标
	msg, err := router.Submit(context.Background(), &model.MessageIntent{
		Sender: "x", ChannelID: "ghost", Type: model.MessageText, Content: "anyone?",
	})
	require.NoError(t, err)
	require.Equal(t, msg, store.lastSaved())
}

func TestValidationRejectsBeforePersistence(t *testing.T) {
	router, _, store, _ := newTestRouter(t)

	_, err := router.Submit(context.Background(), &model.MessageIntent{
		Sender: "a", Recipient: "b", ChannelID: "c1", Type: model.MessageText, Content: "hi",
	})
	require.Error(t, err)
	require.True(t, errors.Is(err, errs.ErrValidation))
	require.Zero(t, store.savedCount())
}

func TestPersistenceFailureDeliversNothing(t *testing.T) {
	router, reg, store, _ := newTestRouter(t)
	store.failNext = true

	bob := NewClient("bob", nil)
	require.NoError(t, reg.Register(bob))

	_, err := router.Submit(context.Background(), &model.MessageIntent{
		Sender: "alice", Recipient: "bob", Type: model.MessageText, Content: "hi",
	})
	require.Error(t, err)
	require.True(t, errors.Is(err, errs.ErrPersistence))

	// 屏障消息先于任何失败消息到达（失败消息根本不会到）
	barrier, err := router.Submit(context.Background(), &model.MessageIntent{
		Sender: "alice", Recipient: "bob", Type: model.MessageText, Content: "retry",
	})
	require.NoError(t, err)
	require.Equal(t, barrier.ID, recvMsg(t, bob).ID)
	require.Empty(t, bob.Send)
}

func TestSequentialSubmitsArriveInOrder(t *testing.T) {
	router, reg, _, _ := newTestRouter(t)

	bob := NewClient("bob", nil)
	require.NoError(t, reg.Register(bob))

	var want []string
	for i := 0; i < 10; i++ {
		msg, err := router.Submit(context.Background(), &model.MessageIntent{
			Sender: "alice", Recipient: "bob", Type: model.MessageText, Content: fmt.Sprintf("n%d", i),
		})
		require.NoError(t, err)
		want = append(want, msg.ID)
	}
	for _, id := range want {
		require.Equal(t, id, recvMsg(t, bob).ID)
	}
}

func TestSlowConnDroppedOthersUnaffected(t *testing.T) {
	router, reg, _, _ := newTestRouter(t)

	slow := NewClient("bob", nil)
	fast := NewClient("bob", nil)
	require.NoError(t, reg.Register(slow))
	require.NoError(t, reg.Register(fast))

	// 塞满慢连接的发送队列，模拟写泵卡死
	for i := 0; i < cap(slow.Send); i++ {
		slow.Send <- []byte("x")
	}

	msg, err := router.Submit(context.Background(), &model.MessageIntent{
		Sender: "alice", Recipient: "bob", Type: model.MessageText, Content: "hi",
	})
	require.NoError(t, err)

	// 快连接照常收到
	require.Equal(t, msg.ID, recvMsg(t, fast).ID)

	// 慢连接按死连接处理：注销并关闭
	require.Eventually(t, func() bool {
		return reg.CountFor("bob") == 1
	}, time.Second, 10*time.Millisecond)
	select {
	case <-slow.Done():
	case <-time.After(time.Second):
		t.Fatal("slow conn was not closed")
	}
}
