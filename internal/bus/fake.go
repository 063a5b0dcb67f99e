package bus

import (
	"context"
	"sync"

	"github.com/archipel-project/vmagent/internal/models"
)

// FakeClient is an in-memory Client recording every outbound call, for
// internal/agent's test suite.
type FakeClient struct {
	mu sync.Mutex

	Replies    []Reply
	Presences  []models.Presence
	Changes    []struct {
		Channel Channel
		Label   string
	}
	Broadcasts []string

	// PeerReply, if set, is returned by every SendPeerRequest call.
	PeerReply Reply
	PeerErr   error

	Vocabulary []models.VocabularyEntry
}

func NewFakeClient() *FakeClient { return &FakeClient{} }

func (c *FakeClient) Reply(ctx context.Context, req Request, reply Reply) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Replies = append(c.Replies, reply)
	return nil
}

func (c *FakeClient) PublishPresence(ctx context.Context, p models.Presence) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Presences = append(c.Presences, p)
	return nil
}

func (c *FakeClient) PublishChange(ctx context.Context, channel Channel, label string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Changes = append(c.Changes, struct {
		Channel Channel
		Label   string
	}{channel, label})
	return nil
}

func (c *FakeClient) Broadcast(ctx context.Context, groupJID, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Broadcasts = append(c.Broadcasts, message)
	return nil
}

func (c *FakeClient) SendPeerRequest(ctx context.Context, targetJID, action string, args map[string]string) (Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.PeerReply, c.PeerErr
}

func (c *FakeClient) RegisterVocabulary(entries []models.VocabularyEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Vocabulary = entries
	return nil
}

// LastReply returns the most recently recorded reply, or the zero value.
func (c *FakeClient) LastReply() Reply {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Replies) == 0 {
		return Reply{}
	}
	return c.Replies[len(c.Replies)-1]
}
