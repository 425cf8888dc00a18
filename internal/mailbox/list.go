package mailbox

import (
	"context"
	"fmt"
	"mime"
	"sort"
	"strings"

	"github.com/emersion/go-imap"

	"github.com/corvomail/corvo/internal/models"
	"github.com/corvomail/corvo/internal/provider"
)

type SortField string

const (
	SortByDate   SortField = "date"
	SortBySender SortField = "sender"
	SortByTitle  SortField = "title"
)

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

type SearchScope string

const (
	ScopeAll    SearchScope = "all"
	ScopeSender SearchScope = "sender"
	ScopeTitle  SearchScope = "title"
	ScopeDate   SearchScope = "date"
)

// ListOptions controls pagination, sorting, and keyword search for a
// folder listing. Zero values mean page 1, page size 10, date
// descending, no search.
type ListOptions struct {
	Page     int
	PageSize int
	Sort     SortField
	Order    SortOrder
	Keyword  string
	Scope    SearchScope
}

func (o *ListOptions) normalize() {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.PageSize < 1 {
		o.PageSize = 10
	}
	if o.Sort == "" {
		o.Sort = SortByDate
	}
	if o.Order == "" {
		o.Order = SortDesc
	}
	if o.Scope == "" {
		o.Scope = ScopeAll
	}
}

// fastPathEligible reports whether the listing can be served by a
// windowed sequence fetch instead of fetching every envelope.
func (o ListOptions) fastPathEligible() bool {
	return o.Keyword == "" && o.Sort == SortByDate && o.Order == SortDesc
}

const displayDateFormat = "2006-01-02 15:04"

// Placeholder strings for absent envelope headers.
const (
	unknownSubject   = "无标题"
	unknownSender    = "未知发件人"
	unknownRecipient = "未知收件人"
	unknownDate      = "未知时间"
)

// List fetches one page of message summaries from a folder.
//
// The fast path applies when there is no keyword and the sort is the
// default date-descending: the page window is computed from the total
// message count and only that window's envelopes are fetched, newest
// first. Any search or non-default sort falls back to fetching every
// envelope, then filtering, sorting, and slicing in memory.
//
// The returned count is the folder's total size on the fast path and
// the post-filter count otherwise. A page past the end yields an empty
// slice and no error.
func (s *Service) List(ctx context.Context, account provider.Account, folder string, opts ListOptions) ([]models.MessageSummary, int, error) {
	opts.normalize()

	logger := s.accountLogger(account).WithField("folder", folder)
	sess, err := openSession(ctx, account, s.connectTimeout, logger)
	if err != nil {
		return nil, 0, err
	}
	defer sess.close()

	status, resolved, err := sess.selectFolder(ctx, account.Provider, folder, true)
	if err != nil {
		logger.WithError(err).Warn("Failed to open folder for listing")
		return nil, 0, err
	}

	sentView := isSentFolder(account.Provider, folder, resolved)
	total := status.Messages

	if opts.fastPathEligible() {
		summaries, err := s.listWindow(sess, total, opts, sentView)
		if err != nil {
			logger.WithError(err).Error("Windowed envelope fetch failed")
			return nil, 0, fmt.Errorf("%w: %v", ErrConnection, err)
		}
		return summaries, int(total), nil
	}

	summaries, err := s.listFiltered(sess, total, opts, sentView)
	if err != nil {
		logger.WithError(err).Error("Full envelope fetch failed")
		return nil, 0, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	matched := len(summaries)
	start := (opts.Page - 1) * opts.PageSize
	if start >= matched {
		return []models.MessageSummary{}, matched, nil
	}
	end := start + opts.PageSize
	if end > matched {
		end = matched
	}
	return summaries[start:end], matched, nil
}

// listWindow serves the fast path: one sequence-range fetch covering
// exactly the requested page, returned newest first.
func (s *Service) listWindow(sess *session, total uint32, opts ListOptions, sentView bool) ([]models.MessageSummary, error) {
	end := int(total) - (opts.Page-1)*opts.PageSize
	if end < 1 {
		return []models.MessageSummary{}, nil
	}
	start := end - opts.PageSize + 1
	if start < 1 {
		start = 1
	}

	messages, err := sess.fetchEnvelopeWindow(uint32(start), uint32(end))
	if err != nil {
		return nil, err
	}

	// Higher sequence numbers are newer; present newest first.
	sort.Slice(messages, func(i, j int) bool {
		return messages[i].SeqNum > messages[j].SeqNum
	})

	summaries := make([]models.MessageSummary, 0, len(messages))
	for _, msg := range messages {
		summaries = append(summaries, summaryFromEnvelope(msg, sentView))
	}
	return summaries, nil
}

// listFiltered serves search and non-default sorts: fetch everything,
// filter, sort.
func (s *Service) listFiltered(sess *session, total uint32, opts ListOptions, sentView bool) ([]models.MessageSummary, error) {
	messages, err := sess.fetchAllEnvelopes(total)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.MessageSummary, 0, len(messages))
	for _, msg := range messages {
		summary := summaryFromEnvelope(msg, sentView)
		if opts.Keyword == "" || matchesKeyword(summary, opts.Keyword, opts.Scope) {
			summaries = append(summaries, summary)
		}
	}

	sortSummaries(summaries, opts.Sort, opts.Order)
	return summaries, nil
}

// matchesKeyword reports whether the summary's targeted field contains
// the keyword, case-insensitively.
func matchesKeyword(summary models.MessageSummary, keyword string, scope SearchScope) bool {
	keyword = strings.ToLower(keyword)
	contains := func(field string) bool {
		return strings.Contains(strings.ToLower(field), keyword)
	}

	switch scope {
	case ScopeSender:
		return contains(summary.Sender) || contains(summary.Address)
	case ScopeTitle:
		return contains(summary.Subject)
	case ScopeDate:
		return contains(summary.SentAt)
	default:
		return contains(summary.Subject) || contains(summary.Sender) ||
			contains(summary.Address) || contains(summary.SentAt)
	}
}

// sortSummaries orders summaries in place. Text fields compare
// case-insensitively; the formatted date compares lexicographically,
// which is date-correct for the fixed "2006-01-02 15:04" layout.
func sortSummaries(summaries []models.MessageSummary, field SortField, order SortOrder) {
	less := func(a, b models.MessageSummary) bool {
		switch field {
		case SortBySender:
			return strings.ToLower(a.Sender) < strings.ToLower(b.Sender)
		case SortByTitle:
			return strings.ToLower(a.Subject) < strings.ToLower(b.Subject)
		default:
			return a.SentAt < b.SentAt
		}
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		if order == SortDesc {
			return less(summaries[j], summaries[i])
		}
		return less(summaries[i], summaries[j])
	})
}

// isSentFolder reports whether a listing should display the first
// recipient instead of the sender.
func isSentFolder(p provider.Provider, logical, resolved string) bool {
	if logical == FolderSent {
		return true
	}
	sent := Resolve(p, FolderSent)
	for _, candidate := range fallbackCandidates(sent) {
		if resolved == candidate {
			return true
		}
	}
	return false
}

// summaryFromEnvelope builds a display-ready summary. For sent-folder
// views the (name, address) pair is the first recipient; everywhere
// else it is the first sender.
func summaryFromEnvelope(msg *imap.Message, sentView bool) models.MessageSummary {
	summary := models.MessageSummary{
		UID:     msg.Uid,
		Subject: unknownSubject,
		SentAt:  unknownDate,
	}
	if sentView {
		summary.Sender = unknownRecipient
	} else {
		summary.Sender = unknownSender
	}

	env := msg.Envelope
	if env == nil {
		return summary
	}

	if subject := decodeHeader(env.Subject); subject != "" {
		summary.Subject = subject
	}

	var party *imap.Address
	if sentView {
		if len(env.To) > 0 {
			party = env.To[0]
		}
	} else if len(env.From) > 0 {
		party = env.From[0]
	}
	if party != nil {
		address := party.Address()
		if name := decodeHeader(party.PersonalName); name != "" {
			summary.Sender = name
		} else if address != "" {
			summary.Sender = address
		}
		summary.Address = address
	}

	if !env.Date.IsZero() {
		summary.SentAt = env.Date.Format(displayDateFormat)
	}

	return summary
}

// decodeHeader decodes MIME encoded-word header values, returning the
// raw value when decoding fails.
func decodeHeader(value string) string {
	if value == "" {
		return ""
	}
	decoder := &mime.WordDecoder{}
	decoded, err := decoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}
