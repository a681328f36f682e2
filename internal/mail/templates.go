package mail

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Template names.
const (
	TemplateEmailCheck = "emailCheck.html"
	TemplateForgotPass = "forgotPass.html"
)

const placeholder = "{recipientName}"

// Templates loads HTML templates from a primary directory and falls back
// to a default directory.
type Templates struct {
	primary  string
	fallback string
}

func NewTemplates(primary, fallback string) *Templates {
	return &Templates{primary: primary, fallback: fallback}
}

// Render reads the template name and substitutes the first placeholder
// with value.
func (t *Templates) Render(name, value string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid template name %q", name)
	}

	var errs []error
	for _, dir := range []string{t.primary, t.fallback} {
		if dir == "" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		return strings.Replace(string(data), placeholder, value, 1), nil
	}
	if len(errs) == 0 {
		return "", fmt.Errorf("template %s: no template directory configured", name)
	}
	return "", fmt.Errorf("template %s: %w", name, errors.Join(errs...))
}
