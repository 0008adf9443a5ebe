package routing

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	apperrors "commrouter/internal/errors"
	"commrouter/internal/models"
)

// HeaderForwardedTo is set by mail providers on automatically forwarded mail
const HeaderForwardedTo = "x-forwarded-to"

var (
	noReplyPattern         = regexp.MustCompile(`(?i)(noreply|no-reply|mailer-daemon)`)
	namedAddressPattern    = regexp.MustCompile(`^(.*)<(.+@.+)>$`)
	bareAddressPattern     = regexp.MustCompile(`(\S+@\S+)`)
	forwardedSenderPattern = regexp.MustCompile(`(?im)^\s*(?:>\s*)*\*?From:\*?\s*"?([^"<\r\n]*?)"?\s*<([^<>\s]+@[^<>\s]+)>`)
)

// ParseAddress splits "NAME <EMAIL>" into its parts, falling back to a bare
// address anywhere in the value.
func ParseAddress(raw string) (name, address string, ok bool) {
	raw = strings.TrimSpace(raw)
	if m := namedAddressPattern.FindStringSubmatch(raw); m != nil {
		name = strings.Trim(strings.TrimSpace(m[1]), `"'`)
		return name, strings.ToLower(strings.TrimSpace(m[2])), true
	}
	if m := bareAddressPattern.FindStringSubmatch(raw); m != nil {
		return "", strings.ToLower(strings.Trim(m[1], "<>,;")), true
	}
	return "", "", false
}

// ParseForwardedSender finds the original sender in the body of a manually
// forwarded mail ("From: NAME <EMAIL>").
func ParseForwardedSender(body string) (models.ParsedForward, bool) {
	m := forwardedSenderPattern.FindStringSubmatch(body)
	if m == nil {
		return models.ParsedForward{}, false
	}
	return models.ParsedForward{
		ForwardedFrom:     strings.ToLower(m[2]),
		ForwardedFromName: strings.TrimSpace(m[1]),
	}, true
}

// LocalPart returns the address without its domain.
func LocalPart(address string) string {
	if at := strings.LastIndex(address, "@"); at >= 0 {
		return address[:at]
	}
	return address
}

func domainOf(address string) string {
	if at := strings.LastIndex(address, "@"); at >= 0 {
		return strings.ToLower(address[at+1:])
	}
	return ""
}

// IsNoReply reports automated senders that never get routed.
func IsNoReply(address string) bool {
	return noReplyPattern.MatchString(LocalPart(address))
}

// DigitsOnly strips everything but digits from a phone number.
func DigitsOnly(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// LooksLikePhone accepts formatted numbers with 7 to 15 digits and nothing but punctuation besides.
func LooksLikePhone(value string) bool {
	digits := 0
	for _, r := range value {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case strings.ContainsRune("+-() .", r):
		default:
			return false
		}
	}
	return digits >= 7 && digits <= 15
}

// Normalizer turns raw inbound addresses into canonical identifiers
type Normalizer struct {
	store      DirectoryStore
	mailDomain string
}

// NewNormalizer creates a normalizer for the tenant's mail domain
func NewNormalizer(store DirectoryStore, mailDomain string) *Normalizer {
	return &Normalizer{store: store, mailDomain: strings.ToLower(strings.TrimSpace(mailDomain))}
}

// ValidateSender rejects mail that originates from the tenant's own domain.
func (n *Normalizer) ValidateSender(msg *models.InboundMessage) error {
	if msg.Channel != models.ChannelEmail || n.mailDomain == "" {
		return nil
	}
	_, address, ok := ParseAddress(msg.From)
	if !ok {
		return nil
	}
	if n.onTenantDomain(address) {
		return apperrors.NewSenderDomainRejectedError(address, n.mailDomain)
	}
	return nil
}

// Normalize produces identifiers for the recipients and a canonical sender.
func (n *Normalizer) Normalize(ctx context.Context, msg *models.InboundMessage) (*models.NormalizedAddresses, error) {
	switch msg.Channel {
	case models.ChannelSMS, models.ChannelCall:
		return &models.NormalizedAddresses{
			From:     DigitsOnly(msg.From),
			FromName: msg.FromName,
			To:       phoneIdentifiers(msg.To),
			Cc:       phoneIdentifiers(msg.Cc),
		}, nil
	case models.ChannelEmail:
		return n.normalizeEmail(ctx, msg)
	case models.ChannelWeb:
		return &models.NormalizedAddresses{
			From:     msg.From,
			FromName: msg.FromName,
			To:       webIdentifiers(msg.To),
			Cc:       webIdentifiers(msg.Cc),
		}, nil
	}
	return nil, apperrors.NewValidationError("channel", string(msg.Channel), "unsupported channel")
}

func (n *Normalizer) normalizeEmail(ctx context.Context, msg *models.InboundMessage) (*models.NormalizedAddresses, error) {
	fromName, from, _ := ParseAddress(msg.From)
	if msg.FromName != "" {
		fromName = msg.FromName
	}
	out := &models.NormalizedAddresses{
		From:     from,
		FromName: fromName,
		Cc:       n.relevantIdentifiers(msg.Cc, models.ProvenanceDirect),
	}

	var target string
	if from != "" {
		var err error
		target, err = n.store.GetOutsideDedicatedEmailTarget(ctx, from)
		if err != nil {
			return nil, fmt.Errorf("failed to check outside dedicated email: %w", err)
		}
	}
	if target != "" {
		out.To = []models.Identifier{{Value: target, Provenance: models.ProvenanceOutsideDedicatedEmail}}
		forward := models.ParsedForward{ForwardedTo: target}
		if parsed, ok := ParseForwardedSender(msg.Text); ok {
			forward.ForwardedFrom = parsed.ForwardedFrom
			forward.ForwardedFromName = parsed.ForwardedFromName
			out.From = parsed.ForwardedFrom
		}
		out.Forward = &forward
		return out, nil
	}

	if header := msg.Header(HeaderForwardedTo); header != "" {
		if ids := n.relevantIdentifiers(strings.Split(header, ","), models.ProvenanceForwardedHeader); len(ids) > 0 {
			out.To = ids
			return out, nil
		}
	}
	out.To = n.relevantIdentifiers(msg.To, models.ProvenanceDirect)
	return out, nil
}

// relevantIdentifiers keeps tenant-domain addresses that are not automated senders.
func (n *Normalizer) relevantIdentifiers(raw []string, provenance models.Provenance) []models.Identifier {
	ids := make([]models.Identifier, 0, len(raw))
	for _, r := range raw {
		_, address, ok := ParseAddress(r)
		if !ok || IsNoReply(address) {
			continue
		}
		if n.mailDomain != "" && !n.onTenantDomain(address) {
			continue
		}
		ids = append(ids, models.Identifier{Value: LocalPart(address), Provenance: provenance})
	}
	return ids
}

func (n *Normalizer) onTenantDomain(address string) bool {
	domain := domainOf(address)
	return domain == n.mailDomain || strings.HasSuffix(domain, "."+n.mailDomain)
}

func phoneIdentifiers(raw []string) []models.Identifier {
	ids := make([]models.Identifier, 0, len(raw))
	for _, r := range raw {
		if digits := DigitsOnly(r); digits != "" {
			ids = append(ids, models.Identifier{Value: digits, Provenance: models.ProvenanceDirect})
		}
	}
	return ids
}

func webIdentifiers(raw []string) []models.Identifier {
	ids := make([]models.Identifier, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		switch {
		case r == "":
			continue
		case LooksLikePhone(r):
			r = DigitsOnly(r)
		case strings.Contains(r, "@"):
			r = LocalPart(strings.ToLower(r))
		}
		ids = append(ids, models.Identifier{Value: r, Provenance: models.ProvenanceDirect})
	}
	return ids
}
