package mailbox

import (
	"fmt"

	"github.com/emersion/go-imap"
)

// fetchEnvelopeWindow fetches envelopes for a contiguous sequence
// number range in one batch call. The selected folder must have at
// least end messages.
func (s *session) fetchEnvelopeWindow(start, end uint32) ([]*imap.Message, error) {
	seqSet := new(imap.SeqSet)
	seqSet.AddRange(start, end)

	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid}

	messages := make(chan *imap.Message, end-start+1)
	done := make(chan error, 1)

	go func() {
		done <- s.client.Fetch(seqSet, items, messages)
	}()

	var result []*imap.Message
	for msg := range messages {
		result = append(result, msg)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch envelopes: %w", err)
	}

	return result, nil
}

// fetchAllEnvelopes fetches every envelope in the selected folder.
func (s *session) fetchAllEnvelopes(total uint32) ([]*imap.Message, error) {
	if total == 0 {
		return nil, nil
	}
	return s.fetchEnvelopeWindow(1, total)
}

// fetchFullMessage fetches the envelope and complete body of one
// message by UID. Returns nil when the UID no longer resolves.
func (s *session) fetchFullMessage(uid uint32) (*imap.Message, error) {
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)

	go func() {
		done <- s.client.UidFetch(seqSet, items, messages)
	}()

	var result *imap.Message
	for msg := range messages {
		result = msg
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch message %d: %w", uid, err)
	}

	return result, nil
}
