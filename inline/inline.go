// Package inline rewrites HTML so that stylesheet rules end up as style
// attributes on the elements they target. Most email clients drop or ignore
// style blocks, inlining is the only reliable way to ship CSS in an email.
package inline

import (
	"github.com/vanng822/go-premailer/premailer"
)

// Premailer inlines CSS using go-premailer. The zero value is not usable,
// call New.
type Premailer struct {
	opts *premailer.Options
}

// New creates an inliner with defaults suited for emails: classes are kept
// on the elements so direct styles can still be layered by clients that do
// support them.
func New() *Premailer {
	opts := premailer.NewOptions()
	opts.RemoveClasses = false
	return &Premailer{opts: opts}
}

// Inline returns the document with styles moved onto the elements.
func (p *Premailer) Inline(html string) (string, error) {
	prem, err := premailer.NewPremailerFromString(html, p.opts)
	if err != nil {
		return "", err
	}
	return prem.Transform()
}
