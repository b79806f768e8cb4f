package store

import (
	"context"
	stderrors "errors"
	"time"

	"PChat/module/chat/model"
	"PChat/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ChannelStore 频道与成员关系（mongo）。
type ChannelStore struct {
	coll *mongo.Collection
}

func NewChannelStore(db *mongo.Database) *ChannelStore {
	return &ChannelStore{coll: db.Collection(model.ChannelTableName)}
}

// CreateChannel 建频道；creator 一定在成员集合里，成员去重。
func (s *ChannelStore) CreateChannel(ctx context.Context, name, creator string, members []string) (*model.Channel, error) {
	if name == "" {
		return nil, errs.ErrValidation.WrapMsg("channel name is required")
	}
	if creator == "" {
		return nil, errs.ErrValidation.WrapMsg("channel creator is required")
	}

	seen := map[string]struct{}{creator: {}}
	set := []string{creator}
	for _, m := range members {
		if m == "" {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		set = append(set, m)
	}

	ch := &model.Channel{
		ID:        primitive.NewObjectID().Hex(),
		Name:      name,
		Members:   set,
		CreatedAt: time.Now(),
	}
	if _, err := s.coll.InsertOne(ctx, ch); err != nil {
		return nil, errs.ErrPersistence.WrapMsg("insert channel", "err", err)
	}
	return ch, nil
}

// MembersOf 读取当前成员集合。每次投递前都要调这里，调用方不得缓存。
// 频道不存在或没有成员时返回空集合，不是错误。
func (s *ChannelStore) MembersOf(ctx context.Context, channelID string) ([]string, error) {
	var ch model.Channel
	err := s.coll.FindOne(ctx, bson.M{"_id": channelID},
		options.FindOne().SetProjection(bson.M{"members": 1})).Decode(&ch)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return []string{}, nil
	}
	if err != nil {
		return nil, errs.ErrPersistence.WrapMsg("load channel members", "channel", channelID, "err", err)
	}
	if ch.Members == nil {
		return []string{}, nil
	}
	return ch.Members, nil
}

// ChannelsForUser 返回 user 参与的全部频道，建频道时间倒序。
func (s *ChannelStore) ChannelsForUser(ctx context.Context, user string) ([]*model.Channel, error) {
	cur, err := s.coll.Find(ctx, bson.M{"members": user},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, errs.ErrPersistence.WrapMsg("find channels", "err", err)
	}
	defer func() { _ = cur.Close(ctx) }()

	out := make([]*model.Channel, 0)
	for cur.Next(ctx) {
		var ch model.Channel
		if err := cur.Decode(&ch); err != nil {
			return nil, errs.ErrPersistence.WrapMsg("decode channel", "err", err)
		}
		out = append(out, &ch)
	}
	return out, errs.Wrap(cur.Err())
}
