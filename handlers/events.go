package handlers

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"rata-backend/apperrors"
	"rata-backend/database"
	"rata-backend/logger"
	"rata-backend/utils"
)

const keepAliveInterval = 25 * time.Second

// snapshotFunc loads the document a stream starts from, with its revision.
type snapshotFunc func(ctx context.Context) (interface{}, int64, error)

// openStream subscribes before loading the snapshot, so a write landing in
// between is either part of the snapshot or waiting on the channel. Changes
// the snapshot already covers are dropped. The stream ends when ctx is done.
func openStream(ctx context.Context, feed database.ChangeFeed, kind, id string, load snapshotFunc) (<-chan database.Change, interface{}, error) {
	changes, err := feed.Subscribe(ctx, kind, id)
	if err != nil {
		return nil, nil, apperrors.Upstream(err, "failed to subscribe to updates")
	}

	snapshot, revision, err := load(ctx)
	if err != nil {
		return nil, nil, err
	}

	out := make(chan database.Change)
	go func() {
		defer close(out)
		for change := range changes {
			if !change.Deleted && change.Revision <= revision {
				continue
			}
			select {
			case out <- change:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, snapshot, nil
}

// streamChanges sends the snapshot first, then every later change to kind/id
// as a server-sent event until the client leaves or the entity is deleted.
func (h *Handler) streamChanges(c *gin.Context, kind, id string, load snapshotFunc) {
	if h.feed == nil {
		utils.Fail(c, apperrors.New(apperrors.UpstreamError, "live updates are not enabled", ""))
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	changes, snapshot, err := openStream(ctx, h.feed, kind, id, load)
	if err != nil {
		utils.Fail(c, err)
		return
	}

	log := logger.GetLogger()
	log.Debugw("Change stream opened", "kind", kind, "id", id)
	defer log.Debugw("Change stream closed", "kind", kind, "id", id)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.SSEvent("snapshot", snapshot)
	c.Writer.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case change, ok := <-changes:
			if !ok {
				return false
			}
			c.SSEvent("change", change)
			return !change.Deleted
		case <-ticker.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		}
	})
}
