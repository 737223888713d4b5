package models

import "time"

// Follow represents a follow relationship
type Follow struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	FollowerID  uint      `json:"followerId" gorm:"index;uniqueIndex:idx_follower_following"`
	FollowingID uint      `json:"followingId" gorm:"index;uniqueIndex:idx_follower_following"`
	CreatedAt   time.Time `json:"createdAt"`
}

// RelationshipRequest is the body of the follow/unfollow endpoints.
type RelationshipRequest struct {
	ActorID uint `json:"actorId" validate:"required"`
}
