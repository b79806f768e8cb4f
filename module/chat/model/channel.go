package model

import "time"

const ChannelTableName = "channels"

// Channel 频道（群组）。Members 语义上是集合，无序、不重复。
// 成员增删由频道管理接口负责，路由器每次投递前都重新读取。
type Channel struct {
	ID        string    `bson:"_id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	Members   []string  `bson:"members" json:"members"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}

func (*Channel) TableName() string { return ChannelTableName }

// HasMember 判断 user 是否为当前成员。
func (c *Channel) HasMember(user string) bool {
	for _, m := range c.Members {
		if m == user {
			return true
		}
	}
	return false
}
