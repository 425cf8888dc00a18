package mailbox

import "errors"

// Error kinds surfaced by mailbox operations. Callers classify with
// errors.Is; the boundary layer decides whether a kind renders as
// "no data" or as an actionable failure.
var (
	ErrConnection      = errors.New("mail server unreachable")
	ErrAuthentication  = errors.New("mail server rejected credentials")
	ErrFolderNotFound  = errors.New("folder not found")
	ErrFolderExists    = errors.New("folder already exists")
	ErrFolderProtected = errors.New("folder is a system folder")
	ErrMessageNotFound = errors.New("message not found")
	ErrDelivery        = errors.New("message delivery rejected")
)
