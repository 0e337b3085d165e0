package entity

import (
	"strings"

	"github.com/joseph-ayodele/labcert-validator/constants"
)

// Document is one PDF submitted for validation. Pages is filled by the
// text provider; Data is never modified after construction.
type Document struct {
	Path        string `json:"path"`
	Data        []byte `json:"-"`
	ContentHash []byte `json:"content_hash"`
	PageCount   int    `json:"page_count"`
	Pages       []Page `json:"pages,omitempty"`
}

// Page holds the recognized text of one page, 1-based.
type Page struct {
	Number int     `json:"number"`
	Text   string  `json:"text"`
	Images []Image `json:"-"`
}

// Lines splits the page text into lines with trailing spaces removed.
func (p Page) Lines() []string {
	raw := strings.Split(strings.ReplaceAll(p.Text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		out = append(out, strings.TrimRight(l, " \t"))
	}
	return out
}

// Image is one candidate signature image.
type Image struct {
	PageNumber int                   `json:"page_number"`
	Data       []byte                `json:"-"`
	MIMEType   string                `json:"mime_type"`
	Source     constants.ImageSource `json:"source"`
	// Ref identifies the image inside its channel (object number, figure id).
	Ref    string `json:"ref"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// PagesText joins page texts with form feeds, the separator pdftotext uses.
func PagesText(pages []Page) string {
	var b strings.Builder
	for i, p := range pages {
		if i > 0 {
			b.WriteString("\f")
		}
		b.WriteString(p.Text)
	}
	return b.String()
}
