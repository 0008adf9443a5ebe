package routing

import (
	"context"
	"testing"

	apperrors "commrouter/internal/errors"
	"commrouter/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantName string
		wantAddr string
		wantOK   bool
	}{
		{"named", `Jane Doe <Jane@Example.com>`, "Jane Doe", "jane@example.com", true},
		{"quoted name", `"Doe, Jane" <jane@example.com>`, "Doe, Jane", "jane@example.com", true},
		{"bare", "jane@example.com", "", "jane@example.com", true},
		{"angle only", "<jane@example.com>", "", "jane@example.com", true},
		{"not an address", "Jane Doe", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, addr, ok := ParseAddress(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantAddr, addr)
		})
	}
}

func TestParseForwardedSender(t *testing.T) {
	body := "FYI\n\n---------- Forwarded message ---------\nFrom: Bob Smith <Bob@Mail.com>\nDate: today\n"
	fwd, ok := ParseForwardedSender(body)
	require.True(t, ok)
	assert.Equal(t, "bob@mail.com", fwd.ForwardedFrom)
	assert.Equal(t, "Bob Smith", fwd.ForwardedFromName)

	_, ok = ParseForwardedSender("no header here")
	assert.False(t, ok)
}

func TestPhoneHelpers(t *testing.T) {
	assert.Equal(t, "15551234567", DigitsOnly("+1 (555) 123-4567"))
	assert.True(t, LooksLikePhone("+1 (555) 123-4567"))
	assert.False(t, LooksLikePhone("12345"))
	assert.False(t, LooksLikePhone("leasing"))
	assert.True(t, IsNoReply("no-reply@example.com"))
	assert.True(t, IsNoReply("MAILER-DAEMON@example.com"))
	assert.False(t, IsNoReply("jane@example.com"))
	assert.Equal(t, "jane", LocalPart("jane@example.com"))
}

func TestValidateSender(t *testing.T) {
	n := NewNormalizer(&mockStore{}, "tenant.com")

	err := n.ValidateSender(&models.InboundMessage{Channel: models.ChannelEmail, From: "agent@tenant.com"})
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeSenderDomainRejected))

	err = n.ValidateSender(&models.InboundMessage{Channel: models.ChannelEmail, From: "bot@mail.tenant.com"})
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeSenderDomainRejected))

	assert.NoError(t, n.ValidateSender(&models.InboundMessage{Channel: models.ChannelEmail, From: "jane@othertenant.com"}))
	assert.NoError(t, n.ValidateSender(&models.InboundMessage{Channel: models.ChannelSMS, From: "agent@tenant.com"}))
}

func TestNormalizePhoneChannels(t *testing.T) {
	n := NewNormalizer(&mockStore{}, "tenant.com")
	out, err := n.Normalize(context.Background(), &models.InboundMessage{
		Channel: models.ChannelSMS,
		From:    "+1 (555) 000-1111",
		To:      []string{"+1 555 222 3333", "---"},
	})
	require.NoError(t, err)
	assert.Equal(t, "15550001111", out.From)
	assert.Equal(t, []string{"15552223333"}, models.Values(out.To))
}

func TestNormalizeEmailRecipients(t *testing.T) {
	store := &mockStore{}
	emptyDirectory(store)
	n := NewNormalizer(store, "tenant.com")

	out, err := n.Normalize(context.Background(), &models.InboundMessage{
		Channel: models.ChannelEmail,
		From:    "Jane <jane@gmail.com>",
		To:      []string{"Parkview <parkview@tenant.com>", "friend@gmail.com", "noreply@tenant.com"},
		Cc:      []string{"agent.smith@tenant.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, "jane@gmail.com", out.From)
	assert.Equal(t, "Jane", out.FromName)
	assert.Equal(t, []string{"parkview"}, models.Values(out.To))
	assert.Equal(t, []string{"agent.smith"}, models.Values(out.Cc))
	assert.Nil(t, out.Forward)
}

func TestNormalizeEmailForwardedHeader(t *testing.T) {
	store := &mockStore{}
	emptyDirectory(store)
	n := NewNormalizer(store, "tenant.com")

	out, err := n.Normalize(context.Background(), &models.InboundMessage{
		Channel: models.ChannelEmail,
		From:    "jane@gmail.com",
		To:      []string{"someone@gmail.com"},
		Headers: map[string]string{"X-Forwarded-To": "leasing@tenant.com"},
	})
	require.NoError(t, err)
	require.Len(t, out.To, 1)
	assert.Equal(t, "leasing", out.To[0].Value)
	assert.Equal(t, models.ProvenanceForwardedHeader, out.To[0].Provenance)
}

func TestNormalizeEmailOutsideDedicated(t *testing.T) {
	store := &mockStore{}
	store.On("GetOutsideDedicatedEmailTarget", context.Background(), "manager@partner.com").Return("parkview", nil)
	n := NewNormalizer(store, "tenant.com")

	out, err := n.Normalize(context.Background(), &models.InboundMessage{
		Channel: models.ChannelEmail,
		From:    "manager@partner.com",
		To:      []string{"parkview@tenant.com"},
		Text:    "See below\n\nFrom: Bob Smith <bob@mail.com>\nSubject: apartment",
	})
	require.NoError(t, err)
	require.Len(t, out.To, 1)
	assert.Equal(t, models.ProvenanceOutsideDedicatedEmail, out.To[0].Provenance)
	assert.Equal(t, "parkview", out.To[0].Value)
	assert.Equal(t, "bob@mail.com", out.From)
	require.NotNil(t, out.Forward)
	assert.Equal(t, "Bob Smith", out.Forward.ForwardedFromName)
	assert.Equal(t, "parkview", out.Forward.ForwardedTo)
	store.AssertExpectations(t)
}

func TestNormalizeWeb(t *testing.T) {
	n := NewNormalizer(&mockStore{}, "tenant.com")
	out, err := n.Normalize(context.Background(), &models.InboundMessage{
		Channel: models.ChannelWeb,
		To:      []string{"(555) 222-3333", "Parkview@tenant.com", "  "},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"5552223333", "parkview"}, models.Values(out.To))
}

func TestNormalizeUnsupportedChannel(t *testing.T) {
	n := NewNormalizer(&mockStore{}, "tenant.com")
	_, err := n.Normalize(context.Background(), &models.InboundMessage{Channel: "FAX"})
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeValidationFailed))
}
