package privacy

import (
	"strings"
)

// MaskPhoneNumber masks a phone number showing only the last 4 digits
// Example: "+15551234567" -> "+*******4567"
func MaskPhoneNumber(phone string) string {
	if phone == "" {
		return ""
	}
	if strings.HasPrefix(phone, "+") {
		return "+" + maskString(phone[1:], 4)
	}
	return maskString(phone, 4)
}

// MaskEmail keeps the first character of the local part and the domain
// Example: "jane.doe@example.com" -> "j*******@example.com"
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return maskString(email, 2)
	}
	local, domain := email[:at], email[at:]
	return local[:1] + strings.Repeat("*", len(local)-1) + domain
}

// MaskIdentifier picks email or phone masking based on the value's shape.
func MaskIdentifier(identifier string) string {
	switch {
	case identifier == "":
		return ""
	case strings.Contains(identifier, "@"):
		return MaskEmail(identifier)
	case isPhoneLike(identifier):
		return MaskPhoneNumber(identifier)
	default:
		return maskString(identifier, 3)
	}
}

// MaskMessageID shows the last 8 characters of a provider message id
func MaskMessageID(messageID string) string {
	return maskString(strings.Trim(messageID, "<>"), 8)
}

// maskString masks a string showing only the last n characters
func maskString(s string, keepLast int) string {
	if s == "" {
		return ""
	}
	if len(s) <= keepLast {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-keepLast) + s[len(s)-keepLast:]
}

func isPhoneLike(s string) bool {
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' || r == '-' || r == ' ' || r == '(' || r == ')' || r == '.':
		default:
			return false
		}
	}
	return digits >= 7
}

// MaskSensitiveFields applies appropriate masking to common logging fields
func MaskSensitiveFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}

	masked := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		s, ok := v.(string)
		if !ok {
			masked[k] = v
			continue
		}
		switch k {
		case "from", "to", "cc", "identifier", "forwarded_to", "received_from":
			masked[k] = MaskIdentifier(s)
		case "phone", "phone_number":
			masked[k] = MaskPhoneNumber(s)
		case "email":
			masked[k] = MaskEmail(s)
		case "message_id", "in_reply_to":
			masked[k] = MaskMessageID(s)
		default:
			masked[k] = v
		}
	}
	return masked
}
