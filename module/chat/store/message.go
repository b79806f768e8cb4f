package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"PChat/module/chat/model"
	"PChat/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MessageStore 消息落库与历史查询（mongo）。
// 身份与服务端时间戳都在这里分配；同一会话内时间戳不回退。
type MessageStore struct {
	coll *mongo.Collection

	mu     sync.Mutex
	lastTS map[string]int64 // conversation key -> 最近分配的时间戳
}

func NewMessageStore(db *mongo.Database) *MessageStore {
	return &MessageStore{
		coll:   db.Collection(model.MsgTableName),
		lastTS: make(map[string]int64),
	}
}

// conversationKey 单聊用无序对，频道用频道ID。
func conversationKey(in *model.MessageIntent) string {
	if !in.IsDirect() {
		return "ch:" + in.ChannelID
	}
	a, b := in.Sender, in.Recipient
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return "dm:" + a + ":" + b
}

// nextTimestamp 分配会话内非递减时间戳（Unix ms）。
// 本地时钟回拨时沿用上一条的时间戳，排序稳定性优先。
func (s *MessageStore) nextTimestamp(key string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := time.Now().UnixMilli()
	if last, ok := s.lastTS[key]; ok && ts < last {
		ts = last
	}
	s.lastTS[key] = ts
	return ts
}

// PersistMessage 校验并写入一条消息。校验失败或写入失败都不会产生半成品记录。
func (s *MessageStore) PersistMessage(ctx context.Context, in *model.MessageIntent) (*model.Message, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	msg := &model.Message{
		ID:        primitive.NewObjectID().Hex(),
		Sender:    in.Sender,
		Recipient: in.Recipient,
		ChannelID: in.ChannelID,
		Type:      in.Type,
		Content:   in.Content,
		FileURL:   in.FileURL,
		VoiceURL:  in.VoiceURL,
		Timestamp: s.nextTimestamp(conversationKey(in)),
	}

	if _, err := s.coll.InsertOne(ctx, msg); err != nil {
		return nil, errs.ErrPersistence.WrapMsg("insert message", "err", err)
	}
	return msg, nil
}

// DirectHistory 返回两个用户之间的全部单聊消息，时间戳升序。
func (s *MessageStore) DirectHistory(ctx context.Context, user, peer string) ([]*model.Message, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"sender": user, "recipient": peer},
		bson.M{"sender": peer, "recipient": user},
	}}
	return s.findSorted(ctx, filter)
}

// ChannelHistory 返回频道内全部消息，时间戳升序。
func (s *MessageStore) ChannelHistory(ctx context.Context, channelID string) ([]*model.Message, error) {
	return s.findSorted(ctx, bson.M{"channel_id": channelID})
}

func (s *MessageStore) findSorted(ctx context.Context, filter bson.M) ([]*model.Message, error) {
	cur, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "time_stamp", Value: 1}}))
	if err != nil {
		return nil, errs.ErrPersistence.WrapMsg("find messages", "err", err)
	}
	defer func() { _ = cur.Close(ctx) }()

	out := make([]*model.Message, 0)
	for cur.Next(ctx) {
		var m model.Message
		if err := cur.Decode(&m); err != nil {
			return nil, errs.ErrPersistence.WrapMsg("decode message", "err", err)
		}
		out = append(out, &m)
	}
	if err := cur.Err(); err != nil {
		return nil, errs.ErrPersistence.WrapMsg("iterate messages", "err", err)
	}
	return out, nil
}

// EnsureIndexes 建立历史查询用的二级索引，启动时调用一次。
func (s *MessageStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "sender", Value: 1}, {Key: "recipient", Value: 1}, {Key: "time_stamp", Value: 1}}},
		{Keys: bson.D{{Key: "channel_id", Value: 1}, {Key: "time_stamp", Value: 1}}},
	})
	return errs.Wrap(err)
}
