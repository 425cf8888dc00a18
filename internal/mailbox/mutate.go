package mailbox

import (
	"context"
	"fmt"

	"github.com/emersion/go-imap"

	"github.com/corvomail/corvo/internal/provider"
)

// uidExists reports whether the UID still resolves in the selected
// folder. Flagging a vanished UID would silently succeed on most
// servers, so mutations check first.
func (s *session) uidExists(uid uint32) (bool, error) {
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)

	go func() {
		done <- s.client.UidFetch(seqSet, []imap.FetchItem{imap.FetchUid}, messages)
	}()

	found := false
	for range messages {
		found = true
	}

	if err := <-done; err != nil {
		return false, fmt.Errorf("failed to probe uid %d: %w", uid, err)
	}
	return found, nil
}

func (s *session) copyTo(uid uint32, folder string) error {
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	if err := s.client.UidCopy(seqSet, folder); err != nil {
		return fmt.Errorf("failed to copy uid %d to %q: %w", uid, folder, err)
	}
	return nil
}

func (s *session) flagDeleted(uid uint32) error {
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	operation := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.DeletedFlag}
	if err := s.client.UidStore(seqSet, operation, flags, nil); err != nil {
		return fmt.Errorf("failed to flag uid %d deleted: %w", uid, err)
	}
	return nil
}

func (s *session) expunge() error {
	if err := s.client.Expunge(nil); err != nil {
		return fmt.Errorf("failed to expunge folder: %w", err)
	}
	return nil
}

// MoveToTrash copies the message into the provider's trash folder,
// then flags it deleted and expunges the source.
//
// The copy is best-effort: a missing trash folder or failed copy is
// logged and the flag+expunge proceeds anyway, because the caller's
// contract is "remove from this view", not "guarantee a trash copy".
func (s *Service) MoveToTrash(ctx context.Context, account provider.Account, folder string, uid uint32) error {
	logger := s.accountLogger(account).WithField("folder", folder).WithField("uid", uid)

	sess, err := openSession(ctx, account, s.connectTimeout, logger)
	if err != nil {
		return err
	}
	defer sess.close()

	_, resolved, err := sess.selectFolder(ctx, account.Provider, folder, false)
	if err != nil {
		return err
	}

	exists, err := sess.uidExists(uid)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	if !exists {
		return fmt.Errorf("%w: uid %d", ErrMessageNotFound, uid)
	}

	copied := false
	for _, candidate := range fallbackCandidates(Resolve(account.Provider, FolderTrash)) {
		if candidate == resolved {
			// Already in the trash; flag and expunge only.
			copied = true
			break
		}
		if err := sess.copyTo(uid, candidate); err == nil {
			copied = true
			break
		}
	}
	if !copied {
		logger.Warn("Trash copy failed on every candidate folder, removing without a copy")
	}

	if err := sess.flagDeleted(uid); err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	if err := sess.expunge(); err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return nil
}

// DeleteForever flags the message deleted and expunges the folder. No
// copy is made anywhere.
func (s *Service) DeleteForever(ctx context.Context, account provider.Account, folder string, uid uint32) error {
	logger := s.accountLogger(account).WithField("folder", folder).WithField("uid", uid)

	sess, err := openSession(ctx, account, s.connectTimeout, logger)
	if err != nil {
		return err
	}
	defer sess.close()

	if _, _, err := sess.selectFolder(ctx, account.Provider, folder, false); err != nil {
		return err
	}

	exists, err := sess.uidExists(uid)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	if !exists {
		return fmt.Errorf("%w: uid %d", ErrMessageNotFound, uid)
	}

	if err := sess.flagDeleted(uid); err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	if err := sess.expunge(); err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return nil
}

// MoveBetween moves a message into another folder. Unlike MoveToTrash
// the target must exist and the copy must succeed before the original
// is removed.
func (s *Service) MoveBetween(ctx context.Context, account provider.Account, fromFolder, toFolder string, uid uint32) error {
	logger := s.accountLogger(account).
		WithField("folder", fromFolder).
		WithField("target", toFolder).
		WithField("uid", uid)

	sess, err := openSession(ctx, account, s.connectTimeout, logger)
	if err != nil {
		return err
	}
	defer sess.close()

	target := Resolve(account.Provider, toFolder)
	exists, err := sess.folderExists(target)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	if !exists {
		return fmt.Errorf("%w: %q", ErrFolderNotFound, target)
	}

	if _, _, err := sess.selectFolder(ctx, account.Provider, fromFolder, false); err != nil {
		return err
	}

	present, err := sess.uidExists(uid)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	if !present {
		return fmt.Errorf("%w: uid %d", ErrMessageNotFound, uid)
	}

	if err := sess.copyTo(uid, target); err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	if err := sess.flagDeleted(uid); err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	if err := sess.expunge(); err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return nil
}
