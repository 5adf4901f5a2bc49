package model

// NotificationKind selects the message template sent to a recipient.
type NotificationKind string

const (
	NotificationVerification  NotificationKind = "verification"
	NotificationPasswordReset NotificationKind = "password_reset"
)

// Notification carries a raw single-use token to its recipient. It is the only place
// besides the generator's return value where the raw token exists.
type Notification struct {
	Kind           NotificationKind
	RecipientEmail string
	RecipientName  string
	RawToken       string
	ReturnURLBase  string
}
