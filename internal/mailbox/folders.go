package mailbox

import (
	"context"
	"fmt"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/sirupsen/logrus"

	"github.com/corvomail/corvo/internal/provider"
)

// Logical folder names accepted by every operation. Anything else is
// treated as a custom folder and passed through to the server as-is.
const (
	FolderInbox  = "收件箱"
	FolderSent   = "已发送"
	FolderTrash  = "已删除"
	FolderDrafts = "草稿箱"
	FolderJunk   = "垃圾箱"
)

// folderTable maps (provider, logical) to the server folder name.
// Inbox is the protocol-standard root on every provider.
var folderTable = map[provider.Provider]map[string]string{
	provider.QQ: {
		FolderSent:   "Sent Messages",
		FolderTrash:  "Deleted Messages",
		FolderDrafts: "Drafts",
		FolderJunk:   "Junk",
	},
	provider.NetEase: {
		FolderSent:   "已发送",
		FolderTrash:  "已删除",
		FolderDrafts: "草稿箱",
		FolderJunk:   "垃圾邮件",
	},
	provider.HUST: {
		FolderSent:   "Sent Items",
		FolderTrash:  "Trash",
		FolderDrafts: "Drafts",
		FolderJunk:   "Junk E-mail",
	},
}

// fallbackTable lists alternate server names to try, in order, when a
// resolved folder turns out not to exist on the connected server.
var fallbackTable = map[string][]string{
	"Sent Messages":    {"Sent", "已发送"},
	"Deleted Messages": {"Trash", "已删除"},
	"已删除":              {"Trash"},
}

// Resolve maps a logical folder name to the provider-specific server
// name. Custom names pass through unchanged. It never substitutes the
// inbox for an unknown name.
func Resolve(p provider.Provider, logical string) string {
	if logical == FolderInbox {
		return "INBOX"
	}
	if table, ok := folderTable[p]; ok {
		if name, ok := table[logical]; ok {
			return name
		}
	}
	return logical
}

// fallbackCandidates returns the full ordered candidate list for a
// resolved folder name: the name itself, then its documented
// alternates.
func fallbackCandidates(resolved string) []string {
	return append([]string{resolved}, fallbackTable[resolved]...)
}

// systemFolderNames is the set of server names reserved for system
// folders on this provider, including fallback alternates.
func systemFolderNames(p provider.Provider) map[string]bool {
	names := map[string]bool{"INBOX": true}
	for _, resolved := range folderTable[p] {
		for _, candidate := range fallbackCandidates(resolved) {
			names[candidate] = true
		}
	}
	return names
}

// selectFolder selects the resolved folder, walking the fallback chain
// when the primary name is absent. It returns the mailbox status and
// the server name that actually opened.
func (s *session) selectFolder(ctx context.Context, p provider.Provider, logical string, readOnly bool) (*imap.MailboxStatus, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrConnection, err)
	}

	resolved := Resolve(p, logical)
	var lastErr error
	for _, candidate := range fallbackCandidates(resolved) {
		status, err := s.client.Select(candidate, readOnly)
		if err == nil {
			if candidate != resolved {
				s.logger.WithFields(logrus.Fields{
					"folder":   resolved,
					"fallback": candidate,
				}).Info("Resolved folder via fallback name")
			}
			return status, candidate, nil
		}
		lastErr = err
	}

	return nil, "", fmt.Errorf("%w: %q: %v", ErrFolderNotFound, resolved, lastErr)
}

// listFolders returns every folder name on the server.
func (s *session) listFolders() ([]string, error) {
	mailboxes := make(chan *imap.MailboxInfo, 10)
	done := make(chan error, 1)

	go func() {
		done <- s.client.List("", "*", mailboxes)
	}()

	var folders []string
	for m := range mailboxes {
		folders = append(folders, m.Name)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}

	return folders, nil
}

// folderExists reports whether name is present on the server.
func (s *session) folderExists(name string) (bool, error) {
	folders, err := s.listFolders()
	if err != nil {
		return false, err
	}
	for _, folder := range folders {
		if folder == name {
			return true, nil
		}
	}
	return false, nil
}

// Folders lists every folder on the account's server.
func (s *Service) Folders(ctx context.Context, account provider.Account) ([]string, error) {
	sess, err := openSession(ctx, account, s.connectTimeout, s.accountLogger(account))
	if err != nil {
		return nil, err
	}
	defer sess.close()

	folders, err := sess.listFolders()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return folders, nil
}

// CustomFolders lists the account's folders excluding system folders.
func (s *Service) CustomFolders(ctx context.Context, account provider.Account) ([]string, error) {
	folders, err := s.Folders(ctx, account)
	if err != nil {
		return nil, err
	}

	system := systemFolderNames(account.Provider)
	custom := make([]string, 0, len(folders))
	for _, folder := range folders {
		if system[folder] {
			continue
		}
		// Some servers expose system folders under a namespace prefix.
		if idx := strings.LastIndex(folder, "/"); idx >= 0 && system[folder[idx+1:]] {
			continue
		}
		custom = append(custom, folder)
	}
	return custom, nil
}

// CreateFolder creates a custom folder on the server.
func (s *Service) CreateFolder(ctx context.Context, account provider.Account, name string) error {
	sess, err := openSession(ctx, account, s.connectTimeout, s.accountLogger(account))
	if err != nil {
		return err
	}
	defer sess.close()

	exists, err := sess.folderExists(name)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	if exists {
		return fmt.Errorf("%w: %q", ErrFolderExists, name)
	}

	if err := sess.client.Create(name); err != nil {
		return fmt.Errorf("failed to create folder %q: %w", name, err)
	}
	return nil
}

// DeleteFolder removes a custom folder. System folders are protected.
func (s *Service) DeleteFolder(ctx context.Context, account provider.Account, name string) error {
	if systemFolderNames(account.Provider)[name] || name == FolderInbox || Resolve(account.Provider, name) != name {
		return fmt.Errorf("%w: %q", ErrFolderProtected, name)
	}

	sess, err := openSession(ctx, account, s.connectTimeout, s.accountLogger(account))
	if err != nil {
		return err
	}
	defer sess.close()

	exists, err := sess.folderExists(name)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	if !exists {
		return fmt.Errorf("%w: %q", ErrFolderNotFound, name)
	}

	if err := sess.client.Delete(name); err != nil {
		return fmt.Errorf("failed to delete folder %q: %w", name, err)
	}
	return nil
}
