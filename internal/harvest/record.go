// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"regexp"
	"strings"
	"time"

	"github.com/pdiddy/patent-harvester/pkg/types"
)

// RecordBuilder collects the fields of one patent page. Freeze hands out
// an independent copy; Reset clears the builder for the next page.
type RecordBuilder struct {
	rec types.PatentRecord
}

// Reset discards everything collected so far.
func (b *RecordBuilder) Reset() {
	b.rec = types.PatentRecord{}
}

// Start resets the builder and records the page link.
func (b *RecordBuilder) Start(link string) {
	b.Reset()
	b.rec.Link = link
}

func (b *RecordBuilder) SetTitle(v string)               { b.rec.Title = v }
func (b *RecordBuilder) SetClassificationCodes(v string) { b.rec.ClassificationCodes = v }
func (b *RecordBuilder) SetCountry(v string)             { b.rec.Country = v }
func (b *RecordBuilder) SetPriorityDate(v string)        { b.rec.PriorityDate = v }
func (b *RecordBuilder) SetPublicationDate(v string)     { b.rec.PublicationDate = v }
func (b *RecordBuilder) SetPatentCode(v string)          { b.rec.PatentCode = v }
func (b *RecordBuilder) SetAbstract(v string)            { b.rec.Abstract = v }
func (b *RecordBuilder) SetDocumentPath(v string)        { b.rec.PathToPDFFile = v }

// AddInventor appends a non-empty inventor name.
func (b *RecordBuilder) AddInventor(name string) {
	if name != "" {
		b.rec.Inventors = append(b.rec.Inventors, name)
	}
}

// AddAssignee appends a non-empty assignee name.
func (b *RecordBuilder) AddAssignee(name string) {
	if name != "" {
		b.rec.CurrentAssignee = append(b.rec.CurrentAssignee, name)
	}
}

// PatentCode returns the code collected so far.
func (b *RecordBuilder) PatentCode() string { return b.rec.PatentCode }

// Link returns the page link of the record being built.
func (b *RecordBuilder) Link() string { return b.rec.Link }

// Freeze returns a deep copy of the current record.
func (b *RecordBuilder) Freeze() types.PatentRecord {
	return b.rec.Clone()
}

// isoDate finds a YYYY-MM-DD date inside arbitrary text.
var isoDate = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// ReformatDate converts the first YYYY-MM-DD date in text to DD.MM.YYYY.
// Text without a valid date yields "".
func ReformatDate(text string) string {
	m := isoDate.FindString(strings.TrimSpace(text))
	if m == "" {
		return ""
	}
	t, err := time.Parse("2006-01-02", m)
	if err != nil {
		return ""
	}
	return t.Format("02.01.2006")
}
