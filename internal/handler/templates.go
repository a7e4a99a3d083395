package handler

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	twmerge "github.com/Oudwins/tailwind-merge-go"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/DukeRupert/notebook/internal/csrf"
)

// providerNames overrides the title-cased registration id where the brand
// spelling differs.
var providerNames = map[string]string{
	"github": "GitHub",
	"local":  "Username",
}

// ProviderName returns the display name of a login provider.
func ProviderName(id string) string {
	if name, ok := providerNames[strings.ToLower(id)]; ok {
		return name
	}
	return cases.Title(language.English).String(id)
}

// TemplateFuncs returns a FuncMap with custom template functions
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		// Date/Time functions
		"year": func() int {
			return time.Now().Year()
		},
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("Jan 2, 2006")
		},
		"formatDateTime": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("Jan 2, 2006 3:04 PM")
		},

		// String functions
		"lower": strings.ToLower,
		"upper": strings.ToUpper,
		"title": func(v interface{}) string {
			return cases.Title(language.English).String(fmt.Sprint(v))
		},
		"initials": func(name string) string {
			var b strings.Builder
			for _, f := range strings.Fields(name) {
				b.WriteString(strings.ToUpper(string([]rune(f)[0])))
				if b.Len() >= 2 {
					break
				}
			}
			return b.String()
		},
		"providerName": func(v interface{}) string {
			return ProviderName(fmt.Sprint(v))
		},

		// cls merges Tailwind class lists; later classes win conflicts.
		"cls": func(classes ...string) string {
			return twmerge.Merge(classes...)
		},

		// Conditional/Logic functions
		"default": func(defaultVal, val interface{}) interface{} {
			if val == nil || val == "" || val == 0 {
				return defaultVal
			}
			return val
		},

		// Collection functions
		"dict": func(values ...interface{}) map[string]interface{} {
			if len(values)%2 != 0 {
				return nil
			}
			dict := make(map[string]interface{}, len(values)/2)
			for i := 0; i < len(values); i += 2 {
				key, ok := values[i].(string)
				if !ok {
					return nil
				}
				dict[key] = values[i+1]
			}
			return dict
		},

		// Form helpers
		"csrfField": func(token string) template.HTML {
			if token == "" {
				return ""
			}
			return template.HTML(fmt.Sprintf(`<input type="hidden" name="%s" value="%s">`,
				csrf.FormFieldName, template.HTMLEscapeString(token)))
		},
	}
}
