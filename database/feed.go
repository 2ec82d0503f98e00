package database

import (
	"context"
	"encoding/json"
	"sync"

	"rata-backend/logger"
	"rata-backend/models"
)

const (
	KindGroup = "group"
	KindBill  = "bill"
)

// Change is the snapshot pushed to subscribers after every committed write.
type Change struct {
	Kind     string          `json:"kind"`
	ID       string          `json:"id"`
	Revision int64           `json:"revision"`
	Deleted  bool            `json:"deleted,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// ChangeFeed fans document changes out to live subscribers.
type ChangeFeed interface {
	Publish(ctx context.Context, c Change) error
	// Subscribe delivers changes for one document until ctx is cancelled,
	// then closes the channel.
	Subscribe(ctx context.Context, kind, id string) (<-chan Change, error)
}

func Topic(kind, id string) string {
	return kind + ":" + id
}

func GroupChange(g *models.Group) Change {
	data, _ := json.Marshal(g)
	return Change{Kind: KindGroup, ID: g.ID, Revision: g.Revision, Data: data}
}

func BillChange(b *models.Bill) Change {
	data, _ := json.Marshal(b)
	return Change{Kind: KindBill, ID: b.ID, Revision: b.Revision, Data: data}
}

func DeletedChange(kind, id string) Change {
	return Change{Kind: kind, ID: id, Deleted: true}
}

// publish is best-effort: a failed notification never fails the write.
func publish(ctx context.Context, feed ChangeFeed, c Change) {
	if feed == nil {
		return
	}
	if err := feed.Publish(ctx, c); err != nil {
		logger.GetLogger().Warnw("Failed to publish change", "topic", Topic(c.Kind, c.ID), "error", err)
	}
}

const subscriberBuffer = 16

// LocalFeed is an in-process ChangeFeed for single-instance deployments and tests.
type LocalFeed struct {
	mu   sync.Mutex
	subs map[string]map[chan Change]struct{}
}

func NewLocalFeed() *LocalFeed {
	return &LocalFeed{subs: make(map[string]map[chan Change]struct{})}
}

func (f *LocalFeed) Publish(ctx context.Context, c Change) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs[Topic(c.Kind, c.ID)] {
		select {
		case ch <- c:
		default:
			// slow subscriber; it will catch up on the next change
		}
	}
	return nil
}

func (f *LocalFeed) Subscribe(ctx context.Context, kind, id string) (<-chan Change, error) {
	topic := Topic(kind, id)
	ch := make(chan Change, subscriberBuffer)

	f.mu.Lock()
	if f.subs[topic] == nil {
		f.subs[topic] = make(map[chan Change]struct{})
	}
	f.subs[topic][ch] = struct{}{}
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.subs[topic], ch)
		if len(f.subs[topic]) == 0 {
			delete(f.subs, topic)
		}
		close(ch)
		f.mu.Unlock()
	}()
	return ch, nil
}
