package domain

// ActionKind enumerates the deferred actions the confirmation engine knows
// about. The string value is the external key embedded in confirmation links.
type ActionKind string

const (
	SignUp          ActionKind = "sign_up"
	RestorePassword ActionKind = "restore_password"
	ChangeEmail     ActionKind = "change_email"
	ChangePassword  ActionKind = "change_password"
	Spam            ActionKind = "spam"
	Notification    ActionKind = "notification"
)

// ActionKindFromKey resolves an external key to its kind.
func ActionKindFromKey(key string) (ActionKind, bool) {
	switch ActionKind(key) {
	case SignUp, RestorePassword, ChangeEmail, ChangePassword, Spam, Notification:
		return ActionKind(key), true
	}
	return "", false
}

func (k ActionKind) Key() string {
	return string(k)
}

// RequiresConfirmation reports whether the kind participates in the
// confirmation flow. Spam and notification mail is sent immediately.
func (k ActionKind) RequiresConfirmation() bool {
	switch k {
	case SignUp, RestorePassword, ChangeEmail, ChangePassword:
		return true
	}
	return false
}

// ProcessDescription is the human-readable phrase used in confirmation mail.
func (k ActionKind) ProcessDescription() string {
	switch k {
	case SignUp:
		return "to sign up"
	case RestorePassword:
		return "to restore your password"
	case ChangeEmail:
		return "to change your email address"
	case ChangePassword:
		return "to change your password"
	case Spam:
		return "spam"
	default:
		return "notification"
	}
}
