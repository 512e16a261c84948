package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"

	"gopkg.in/yaml.v3"
)

//go:embed locales
var LocalesFS embed.FS

// FallbackLang is used for keys missing from the selected locale.
const FallbackLang = "en"

type Translator struct {
	lang         string
	translations map[string]string
	fallback     map[string]string
}

// NewTranslator loads locales/<langCode>.yaml from fsys. Keys missing there are
// looked up in the English file when present.
func NewTranslator(fsys fs.FS, langCode string) (*Translator, error) {
	translations, err := load(fsys, langCode)
	if err != nil {
		return nil, err
	}
	t := &Translator{lang: langCode, translations: translations}
	if langCode != FallbackLang {
		if fb, err := load(fsys, FallbackLang); err == nil {
			t.fallback = fb
		}
	}
	return t, nil
}

func load(fsys fs.FS, langCode string) (map[string]string, error) {
	filePath := path.Join("locales", fmt.Sprintf("%s.yaml", langCode))
	data, err := fs.ReadFile(fsys, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read translation file %s: %w", filePath, err)
	}
	var translations map[string]string
	if err := yaml.Unmarshal(data, &translations); err != nil {
		return nil, fmt.Errorf("failed to parse translation file %s: %w", filePath, err)
	}
	return translations, nil
}

func newTranslatorFromBytes(b []byte) (*Translator, error) {
	var translations map[string]string
	if err := yaml.Unmarshal(b, &translations); err != nil {
		return nil, err
	}
	return &Translator{translations: translations}, nil
}

func (t *Translator) Lang() string { return t.lang }

// T returns the formatted text for key, or the key itself when it is unknown.
func (t *Translator) T(key string, args ...interface{}) string {
	format, ok := t.translations[key]
	if !ok {
		format, ok = t.fallback[key]
	}
	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(format, args...)
	}
	return format
}

// Keys lists every key of the loaded locale.
func (t *Translator) Keys() []string {
	out := make([]string, 0, len(t.translations))
	for k := range t.translations {
		out = append(out, k)
	}
	return out
}
