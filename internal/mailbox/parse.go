package mailbox

import (
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/jhillyerd/enmime"
	"github.com/sirupsen/logrus"

	"github.com/corvomail/corvo/internal/attachments"
)

// partClass is the closed classification of a MIME part driving the
// recursive walk. Classification happens once per part; everything
// after it is a switch on this value, not on content-type strings.
type partClass int

const (
	partAttachment partClass = iota
	partText
	partHTML
	partAlternative
	partMultipart
	partOpaque
)

func classify(p *enmime.Part) partClass {
	if p.Disposition == "attachment" || p.FileName != "" {
		return partAttachment
	}

	contentType := strings.ToLower(p.ContentType)
	switch {
	case contentType == "text/plain":
		return partText
	case contentType == "text/html":
		return partHTML
	case contentType == "multipart/alternative":
		return partAlternative
	case strings.HasPrefix(contentType, "multipart/"):
		return partMultipart
	default:
		return partOpaque
	}
}

// contentParser accumulates the flattened body and saved attachment
// names while walking one message's part tree.
type contentParser struct {
	store       *attachments.Store
	logger      *logrus.Entry
	html        strings.Builder
	attachments []string
}

// parseContent reads a raw message and flattens its MIME tree into an
// HTML body plus a list of attachment filenames persisted to the
// store. A failure on one part never aborts its siblings.
func parseContent(body io.Reader, store *attachments.Store, logger *logrus.Entry) (string, []string, error) {
	root, err := enmime.ReadParts(body)
	if err != nil {
		return "", nil, fmt.Errorf("failed to parse message body: %w", err)
	}

	for _, partErr := range root.Errors {
		logger.WithField("detail", partErr.Error()).Debug("Recovered from MIME part defect")
	}

	parser := &contentParser{store: store, logger: logger}
	parser.walk(root)
	return parser.html.String(), parser.attachments, nil
}

func (p *contentParser) walk(part *enmime.Part) {
	if part == nil {
		return
	}

	switch classify(part) {
	case partAttachment:
		p.saveAttachment(part)
	case partText:
		p.writeText(string(part.Content))
	case partHTML:
		p.html.Write(part.Content)
	case partAlternative:
		p.walkAlternative(part)
	case partMultipart:
		p.walkChildren(part)
	case partOpaque:
		p.logger.WithField("content_type", part.ContentType).Debug("Skipping unrenderable part")
	}
}

func (p *contentParser) walkChildren(part *enmime.Part) {
	for child := part.FirstChild; child != nil; child = child.NextSibling {
		p.walk(child)
	}
}

// walkAlternative selects exactly one representation: the HTML child
// if present, else the first plain-text child. When neither type
// exists the container is malformed, so recurse into everything rather
// than drop content.
func (p *contentParser) walkAlternative(part *enmime.Part) {
	var text *enmime.Part
	for child := part.FirstChild; child != nil; child = child.NextSibling {
		switch classify(child) {
		case partHTML:
			p.walk(child)
			return
		case partText:
			if text == nil {
				text = child
			}
		}
	}
	if text != nil {
		p.walk(text)
		return
	}
	p.walkChildren(part)
}

// writeText renders a plain-text part as HTML. Markup characters are
// escaped so text bodies cannot inject elements into the rendered
// document.
func (p *contentParser) writeText(text string) {
	p.html.WriteString(`<div style="white-space: pre-wrap;">`)
	p.html.WriteString(html.EscapeString(text))
	p.html.WriteString(`</div>`)
}

func (p *contentParser) saveAttachment(part *enmime.Part) {
	name := part.FileName
	if name == "" {
		p.logger.Debug("Skipping attachment part without a filename")
		return
	}

	saved, err := p.store.Save(attachments.Sanitize(name), part.Content)
	if err != nil {
		p.logger.WithError(err).WithField("filename", name).Warn("Failed to save attachment")
		return
	}
	p.attachments = append(p.attachments, saved)
}
