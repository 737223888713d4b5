package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/anonto42/followpulse/backend/internal/models"
	"gorm.io/gorm"
)

// DemoUsers are the accounts created by Seed.
var DemoUsers = []models.User{
	{Name: "Alice Johnson", Email: "alice@example.com"},
	{Name: "Bob Smith", Email: "bob@example.com"},
	{Name: "Carol Davis", Email: "carol@example.com"},
	{Name: "David Wilson", Email: "david@example.com"},
	{Name: "Eva Brown", Email: "eva@example.com"},
	{Name: "Frank Miller", Email: "frank@example.com"},
	{Name: "Grace Lee", Email: "grace@example.com"},
	{Name: "Henry Taylor", Email: "henry@example.com"},
}

// demoFollows index into DemoUsers: follower, following.
var demoFollows = [][2]int{{0, 1}, {0, 2}, {1, 0}, {2, 3}, {3, 0}}

// SeedResult counts what Seed created.
type SeedResult struct {
	Users         int
	Follows       int
	Notifications int
}

// Seed creates the demo users and a few relationships. Users are matched by
// email, so running it twice only creates what is missing. A notification
// is written for every follow that did not exist yet.
func Seed(ctx context.Context, db *gorm.DB, follows FollowRepository, notifications NotificationRepository) (SeedResult, error) {
	var res SeedResult
	users := make([]models.User, len(DemoUsers))

	for i, demo := range DemoUsers {
		user := demo
		tx := db.WithContext(ctx).Where(models.User{Email: demo.Email}).FirstOrCreate(&user)
		if tx.Error != nil {
			return res, fmt.Errorf("seeding user %s: %w", demo.Email, tx.Error)
		}
		res.Users += int(tx.RowsAffected)
		users[i] = user
	}

	for _, f := range demoFollows {
		follower, following := users[f[0]], users[f[1]]
		err := follows.CreateFollow(ctx, follower.ID, following.ID)
		if errors.Is(err, ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return res, err
		}
		res.Follows++

		if _, err := notifications.Create(ctx, models.FollowNotification(following.ID, follower.Name)); err != nil {
			return res, fmt.Errorf("seeding notification: %w", err)
		}
		res.Notifications++
	}
	return res, nil
}
