package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskPhoneNumber(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"+15551234567", "+*******4567"},
		{"15551234567", "*******4567"},
		{"123", "***"},
		{"+12", "+**"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MaskPhoneNumber(tt.in), tt.in)
	}
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "j*******@example.com", MaskEmail("jane.doe@example.com"))
	assert.Equal(t, "a@x.io", MaskEmail("a@x.io"))
	assert.Equal(t, "*******ng", MaskEmail("nodomaing"))
}

func TestMaskIdentifier(t *testing.T) {
	assert.Equal(t, "l******@tenant.mail", MaskIdentifier("leasing@tenant.mail"))
	assert.Equal(t, "*******4567", MaskIdentifier("15551234567"))
	assert.Equal(t, "****ing", MaskIdentifier("leasing"))
	assert.Equal(t, "", MaskIdentifier(""))
}

func TestMaskSensitiveFields(t *testing.T) {
	masked := MaskSensitiveFields(map[string]interface{}{
		"from":       "+15551234567",
		"email":      "bob@example.com",
		"message_id": "<abcdefghijkl@mail>",
		"channel":    "SMS",
		"count":      3,
	})

	assert.Equal(t, "+*******4567", masked["from"])
	assert.Equal(t, "b**@example.com", masked["email"])
	assert.Equal(t, "*********jkl@mail", masked["message_id"])
	assert.Equal(t, "SMS", masked["channel"])
	assert.Equal(t, 3, masked["count"])
	assert.Nil(t, MaskSensitiveFields(nil))
}
