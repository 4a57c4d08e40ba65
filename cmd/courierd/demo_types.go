package main

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"path"

	"github.com/go-pdf/fpdf"

	"courier"
	"courier/backend"
	"courier/locale"
)

// registerDemoTypes wires the built-in message types. They double as
// working examples for writing new ones.
func registerDemoTypes(c *courier.Courier) {
	c.RegisterEmail("welcome", func(rec *courier.Email) courier.EmailType {
		return &welcomeEmail{rec: rec}
	})
	c.RegisterEmail("receipt", func(rec *courier.Email) courier.EmailType {
		return &receiptEmail{rec: rec}
	})
	c.RegisterSms("come-home", func(rec *courier.Sms) courier.SmsType {
		return &comeHomeSms{rec: rec}
	})
}

// demoTranslations fills the French catalogue for the demo types. Locales
// the deployment does not enable simply never match.
func demoTranslations(b *locale.Bundle) error {
	pairs := [][2]string{
		{"Welcome aboard, %s", "Bienvenue à bord, %s"},
		{"Glad to have you with us, %s!", "Ravi de vous compter parmi nous, %s !"},
		{"Get started", "Commencer"},
		{"Your receipt for order %s", "Votre reçu pour la commande %s"},
		{"Hi %s, your order %s is confirmed. The receipt is attached.", "Bonjour %s, votre commande %s est confirmée. Le reçu est en pièce jointe."},
		{"Come home %s, dinner is ready: %s", "Rentre %s, le dîner est prêt : %s"},
	}
	for _, p := range pairs {
		if err := b.Define("fr", p[0], p[1]); err != nil {
			return err
		}
	}
	return nil
}

// styleFunc loads a stylesheet from the template tree into a style tag. The
// CSS inliner later moves the rules onto the elements they target.
func styleFunc(assets fs.FS) func(string) (template.HTML, error) {
	return func(name string) (template.HTML, error) {
		css, err := fs.ReadFile(assets, path.Join("css", name+".css"))
		if err != nil {
			return "", fmt.Errorf("stylesheet %q: %w", name, err)
		}
		return template.HTML("<style>" + string(css) + "</style>"), nil
	}
}

// stringField reads a string from the frozen context first, falling back to
// the initial payload before the first send froze anything.
func stringField(frozen, data courier.Context, key string) string {
	if v, ok := frozen[key].(string); ok {
		return v
	}
	v, _ := data[key].(string)
	return v
}

func floatField(frozen, data courier.Context, key string) float64 {
	if v, ok := frozen[key].(float64); ok {
		return v
	}
	v, _ := data[key].(float64)
	return v
}

// welcomeEmail greets a fresh user. Data: email, name, locale.
type welcomeEmail struct {
	rec *courier.Email
}

func (e *welcomeEmail) str(key string) string {
	return stringField(e.rec.Context, e.rec.Data, key)
}

func (e *welcomeEmail) Locale() string {
	if loc := e.str("locale"); loc != "" {
		return loc
	}
	return "en"
}

func (e *welcomeEmail) To(context.Context) (string, error) {
	to, _ := e.rec.Data["email"].(string)
	if to == "" {
		return "", fmt.Errorf("the welcome email needs an email in its data")
	}
	return to, nil
}

func (e *welcomeEmail) Subject(ctx context.Context) (string, error) {
	return locale.Sprintf(ctx, "Welcome aboard, %s", e.str("name")), nil
}

func (e *welcomeEmail) Context(context.Context) (courier.Context, error) {
	return courier.Context{"name": e.str("name"), "locale": e.Locale()}, nil
}

func (e *welcomeEmail) TemplateHTML() string { return "welcome.html.tmpl" }

func (e *welcomeEmail) TemplateText() string { return "welcome.txt.tmpl" }

// receiptEmail confirms an order, with the receipt attached as a PDF.
// Data: email, name, order_id, total.
type receiptEmail struct {
	rec *courier.Email
}

func (e *receiptEmail) str(key string) string {
	return stringField(e.rec.Context, e.rec.Data, key)
}

func (e *receiptEmail) Locale() string {
	if loc := e.str("locale"); loc != "" {
		return loc
	}
	return "en"
}

func (e *receiptEmail) To(context.Context) (string, error) {
	to, _ := e.rec.Data["email"].(string)
	if to == "" {
		return "", fmt.Errorf("the receipt email needs an email in its data")
	}
	return to, nil
}

func (e *receiptEmail) Subject(ctx context.Context) (string, error) {
	return locale.Sprintf(ctx, "Your receipt for order %s", e.str("order_id")), nil
}

func (e *receiptEmail) Context(context.Context) (courier.Context, error) {
	return courier.Context{
		"name":     e.str("name"),
		"order_id": e.str("order_id"),
		"total":    floatField(e.rec.Context, e.rec.Data, "total"),
		"locale":   e.Locale(),
	}, nil
}

func (e *receiptEmail) ContentText(ctx context.Context) (string, error) {
	return locale.Sprintf(ctx, "Hi %s, your order %s is confirmed. The receipt is attached.",
		e.str("name"), e.str("order_id")) + "\n", nil
}

func (e *receiptEmail) Attachments(context.Context) ([]backend.Attachment, error) {
	total := floatField(e.rec.Context, e.rec.Data, "total")
	pdf, err := buildReceiptPDF(e.str("name"), e.str("order_id"), total)
	if err != nil {
		return nil, fmt.Errorf("build receipt: %w", err)
	}
	return []backend.Attachment{{
		Filename:    "receipt-" + e.str("order_id") + ".pdf",
		ContentType: "application/pdf",
		Content:     pdf,
	}}, nil
}

func (e *receiptEmail) Headers(context.Context) (map[string]string, error) {
	return map[string]string{"X-Order-ID": e.str("order_id")}, nil
}

func buildReceiptPDF(name, orderID string, total float64) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 16)
	pdf.Cell(0, 10, "Receipt")
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 8, fmt.Sprintf("Order: %s", orderID))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Billed to: %s", name))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Total: %.2f EUR", total))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// comeHomeSms tells someone dinner is ready. Data: phone, name, locale.
type comeHomeSms struct {
	rec *courier.Sms
}

func (s *comeHomeSms) str(key string) string {
	return stringField(s.rec.Context, s.rec.Data, key)
}

func (s *comeHomeSms) Locale() string {
	if loc := s.str("locale"); loc != "" {
		return loc
	}
	return "en"
}

func (s *comeHomeSms) To(context.Context) (string, error) {
	to, _ := s.rec.Data["phone"].(string)
	if to == "" {
		return "", fmt.Errorf("the come-home SMS needs a phone in its data")
	}
	return to, nil
}

func (s *comeHomeSms) Content(ctx context.Context) (string, error) {
	url, err := courier.MakeAbsolute(ctx, "/")
	if err != nil {
		return "", err
	}
	return locale.Sprintf(ctx, "Come home %s, dinner is ready: %s", s.str("name"), url), nil
}

func (s *comeHomeSms) Context(context.Context) (courier.Context, error) {
	return courier.Context{"name": s.str("name"), "locale": s.Locale()}, nil
}
