package routing

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"commrouter/internal/models"

	"github.com/google/uuid"
)

// threadNamespace seeds the name-based thread ids of call and SMS conversations.
var threadNamespace = uuid.MustParse("6f1c3a52-9b7e-4d0c-8a43-2f5e9d1b7c60")

// ComputeThreadID is stable for a channel and a set of persons regardless of order.
func ComputeThreadID(channel models.Channel, personIDs []string) string {
	sorted := append([]string(nil), personIDs...)
	sort.Strings(sorted)
	return uuid.NewSHA1(threadNamespace, []byte(string(channel)+":"+strings.Join(sorted, ","))).String()
}

// ThreadRequest is the input to thread resolution
type ThreadRequest struct {
	Channel         models.Channel
	RedialForCommID string
	PersonIDs       []string
	Prior           *models.Communication
	RelayThreadID   string
}

// ThreadResolver computes or reuses a conversation thread id
type ThreadResolver struct {
	comms CommunicationStore
	newID func() string
}

// NewThreadResolver creates a thread resolver minting random UUIDs
func NewThreadResolver(comms CommunicationStore) *ThreadResolver {
	return &ThreadResolver{comms: comms, newID: uuid.NewString}
}

// Resolve returns the thread id for the message.
func (r *ThreadResolver) Resolve(ctx context.Context, req ThreadRequest) (string, error) {
	if req.RelayThreadID != "" {
		return req.RelayThreadID, nil
	}

	if req.RedialForCommID != "" {
		comm, err := r.comms.GetCommunication(ctx, req.RedialForCommID)
		if err != nil {
			return "", fmt.Errorf("failed to load redialed communication: %w", err)
		}
		if comm != nil && comm.ThreadID != "" {
			return comm.ThreadID, nil
		}
	}

	switch {
	case req.Channel == models.ChannelEmail:
		if req.Prior != nil && req.Prior.ThreadID != "" {
			return req.Prior.ThreadID, nil
		}
		return r.newID(), nil
	case req.Channel.IsPhoneBased() && len(req.PersonIDs) > 0:
		return ComputeThreadID(req.Channel, req.PersonIDs), nil
	default:
		return r.newID(), nil
	}
}
