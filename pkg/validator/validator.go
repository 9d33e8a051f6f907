package validator

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

type ValidationErrors map[string]string

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

func (v ValidationErrors) Add(field, message string) {
	v[field] = message
}

const (
	MaxContentLength    = 5000
	MaxAttachmentLength = 255
	MaxGroupNameLength  = 100
	MaxDescriptionLen   = 500
	MaxAvatarLength     = 255
)

// ValidateMessageBody checks the length limits of an already trimmed body.
// Presence of content or attachment is checked by the caller.
func ValidateMessageBody(content, attachment *string) ValidationErrors {
	errs := make(ValidationErrors)

	if content != nil && utf8.RuneCountInString(*content) > MaxContentLength {
		errs.Add("content", fmt.Sprintf("Content must be at most %d characters", MaxContentLength))
	}
	if attachment != nil && len(*attachment) > MaxAttachmentLength {
		errs.Add("attachment", fmt.Sprintf("Attachment name must be at most %d characters", MaxAttachmentLength))
	}

	return errs
}

// ValidateGroup checks group fields. A nil name is skipped, so the same rules
// serve both create and partial update.
func ValidateGroup(name, description, avatar *string) ValidationErrors {
	errs := make(ValidationErrors)

	if name != nil {
		n := strings.TrimSpace(*name)
		if n == "" {
			errs.Add("name", "Group name is required")
		} else if utf8.RuneCountInString(n) < 2 {
			errs.Add("name", "Group name must be at least 2 characters")
		} else if utf8.RuneCountInString(n) > MaxGroupNameLength {
			errs.Add("name", "Group name is too long")
		}
	}

	if description != nil && utf8.RuneCountInString(*description) > MaxDescriptionLen {
		errs.Add("description", "Description is too long")
	}

	if avatar != nil && len(*avatar) > MaxAvatarLength {
		errs.Add("avatar", "Avatar name is too long")
	}

	return errs
}
