// Copyright (c) 2026 Helios. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"

	"github.com/taibuivan/helios/internal/platform/cache"
	"github.com/taibuivan/helios/internal/platform/constants"
)

// snapshotCache keeps the public view of recently active users in the cache.
// Every call is best effort.
type snapshotCache struct {
	cache cache.Cache
}

func snapshotKey(userID string) string {
	return constants.RedisPrefixUserSnapshot + userID
}

func (snapshots snapshotCache) put(context context.Context, user *User) {
	cache.SetJSON(context, snapshots.cache, snapshotKey(user.ID), user.View(), UserSnapshotTTL)
}

func (snapshots snapshotCache) get(context context.Context, userID string) (*UserView, bool) {
	view := &UserView{}
	if !cache.GetJSON(context, snapshots.cache, snapshotKey(userID), view) {
		return nil, false
	}
	return view, true
}

func (snapshots snapshotCache) invalidate(context context.Context, userID string) {
	snapshots.cache.Delete(context, snapshotKey(userID))
}
