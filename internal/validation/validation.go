package validation

import (
	"fmt"
	"strings"

	"commrouter/internal/constants"
	"commrouter/internal/errors"
	"commrouter/internal/models"
)

// ValidateInboundEnvelope checks the size and shape of an inbound message
// before it reaches the routing pipeline. Routing semantics such as sender
// rules and channel support are left to the pipeline itself.
func ValidateInboundEnvelope(msg *models.InboundMessage) error {
	if msg == nil {
		return errors.New(errors.ErrCodeInvalidInput, "message cannot be empty")
	}

	if n := len(msg.To) + len(msg.Cc); n > constants.MaxRecipients {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("too many recipients: %d (max %d)", n, constants.MaxRecipients))
	}
	if err := ValidateAddress(msg.From, "from"); err != nil {
		return err
	}
	for _, addr := range msg.To {
		if err := ValidateAddress(addr, "to"); err != nil {
			return err
		}
	}
	for _, addr := range msg.Cc {
		if err := ValidateAddress(addr, "cc"); err != nil {
			return err
		}
	}

	if err := ValidateStringLength(msg.Subject, "subject", 0, constants.MaxSubjectLength); err != nil {
		return err
	}
	if err := ValidateStringLength(msg.Text, "text", 0, constants.MaxTextBytes); err != nil {
		return err
	}
	if err := ValidateNumericRange(len(msg.Headers), "header count", 0, constants.MaxHeaderCount); err != nil {
		return err
	}
	if err := ValidateNumericRange(len(msg.LeadInformation), "lead information field count", 0, constants.MaxLeadFieldCount); err != nil {
		return err
	}

	for field, value := range map[string]string{
		"to_team_id":               msg.ToTeamID,
		"to_user_id":               msg.ToUserID,
		"transferred_from_comm_id": msg.TransferredFromCommID,
		"redial_for_comm_id":       msg.RedialForCommID,
	} {
		if err := ValidateIdentifier(value, field); err != nil {
			return err
		}
	}

	if wc := msg.WebContact; wc != nil {
		if err := ValidateAddress(wc.Email, "web_contact.email"); err != nil {
			return err
		}
		if err := ValidateAddress(wc.Phone, "web_contact.phone"); err != nil {
			return err
		}
	}
	return nil
}

// ValidateAddress bounds an email address or phone number. Empty values pass.
func ValidateAddress(addr, fieldName string) error {
	if err := ValidateStringLength(addr, fieldName, 0, constants.MaxAddressLength); err != nil {
		return err
	}
	if strings.ContainsAny(addr, "\x00\r\n") {
		return errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("%s contains invalid characters", fieldName))
	}
	return nil
}

// ValidateIdentifier bounds an optional entity ID supplied by the transport
func ValidateIdentifier(id, fieldName string) error {
	if err := ValidateStringLength(id, fieldName, 0, constants.MaxIdentifierLength); err != nil {
		return err
	}
	for _, char := range id {
		if char < 0x20 || char == 0x7f {
			return errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("%s contains invalid characters", fieldName))
		}
	}
	return nil
}

// ValidateStringLength validates string length against bounds
func ValidateStringLength(value, fieldName string, minLength, maxLength int) error {
	if len(value) < minLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s too short (min %d characters)", fieldName, minLength))
	}

	if len(value) > maxLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s too long (max %d characters)", fieldName, maxLength))
	}

	return nil
}

// ValidateNumericRange validates numeric values against bounds
func ValidateNumericRange(value int, fieldName string, min, max int) error {
	if value < min {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s too small (min %d)", fieldName, min))
	}

	if value > max {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("%s too large (max %d)", fieldName, max))
	}

	return nil
}
