package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/voyagen/fiootv/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

// Brand is the footer and header content shared by every e-mail.
type Brand struct {
	Name         string
	SiteURL      string
	SupportEmail string
	SupportPhone string
}

// DefaultBrand is used when the notifier is not given one.
var DefaultBrand = Brand{
	Name:         "fiootv",
	SiteURL:      "https://www.fiootv.com",
	SupportEmail: "support@fiootv.com",
	SupportPhone: "+1-855-561-4578",
}

// Template names.
const (
	tmplOrderNotification   = "order_notification.html"
	tmplOrderConfirmation   = "order_confirmation.html"
	tmplContactNotification = "contact_notification.html"
	tmplContactConfirmation = "contact_confirmation.html"
)

var templateFuncs = template.FuncMap{
	"paymentLabel": PaymentLabel,
	"address":      Address,
	"orDash": func(s *string) string {
		if s == nil || *s == "" {
			return "—"
		}
		return *s
	},
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
	"lines": func(s string) template.HTML {
		return template.HTML(strings.ReplaceAll(template.HTMLEscapeString(s), "\n", "<br />"))
	},
}

// templates holds one parsed set per e-mail, each combining the layout with
// that e-mail's "content" block.
var templates = mustParse(tmplOrderNotification, tmplOrderConfirmation, tmplContactNotification, tmplContactConfirmation)

func mustParse(names ...string) map[string]*template.Template {
	out := make(map[string]*template.Template, len(names))
	for _, name := range names {
		out[name] = template.Must(template.New(name).Funcs(templateFuncs).
			ParseFS(templateFS, "templates/layout.html", "templates/"+name))
	}
	return out
}

// templateData is the root object passed to every template.
type templateData struct {
	Brand   Brand
	Year    int
	Order   *models.Order
	Contact *models.ContactSubmission
}

func render(name string, data templateData) (string, error) {
	t, ok := templates[name]
	if !ok {
		return "", fmt.Errorf("unknown template %s", name)
	}
	if data.Year == 0 {
		data.Year = time.Now().Year()
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// PaymentLabel returns the display name of a payment method.
func PaymentLabel(method string) string {
	if method == models.PaymentCashOnDelivery {
		return "Cash on Delivery"
	}
	return method
}

// Address joins the order's non-empty address parts, or returns "—".
func Address(o *models.Order) string {
	var parts []string
	for _, p := range []*string{o.AddressLine1, o.City, o.State, o.Country, o.ZipCode} {
		if p != nil && *p != "" {
			parts = append(parts, *p)
		}
	}
	if len(parts) == 0 {
		return "—"
	}
	return strings.Join(parts, ", ")
}
