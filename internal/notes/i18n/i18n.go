// Package i18n содержит каталоги сообщений интерфейса для en и id.
//
// Ключи записываются через точку ("topbar.deleteAll"). Поиск идет в каталоге
// запрошенного языка, затем в английском, затем возвращается сам ключ.
// Ключ "langCode" возвращает код языка.
package i18n

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Поддерживаемые языки.
const (
	English    = "en"
	Indonesian = "id"

	// LangCodeKey возвращает код языка вместо сообщения.
	LangCodeKey = "langCode"
)

// Ошибки пакета.
var (
	ErrUnsupportedLocale = errors.New("unsupported locale")
	ErrLoadCatalog       = errors.New("failed to load message catalog")
)

//go:embed locales/*.json
var localeFS embed.FS

var supported = []language.Tag{language.English, language.Indonesian}

// Catalogs holds the flattened message tables of every supported locale.
type Catalogs struct {
	messages map[string]map[string]string
	matcher  language.Matcher
}

// Load читает встроенные каталоги.
func Load() (*Catalogs, error) {
	c := &Catalogs{
		messages: make(map[string]map[string]string, len(supported)),
		matcher:  language.NewMatcher(supported),
	}

	for _, locale := range []string{English, Indonesian} {
		raw, err := localeFS.ReadFile(path.Join("locales", locale+".json"))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadCatalog, locale, err)
		}
		var tree map[string]any
		if err := json.Unmarshal(raw, &tree); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadCatalog, locale, err)
		}
		flat := make(map[string]string)
		flatten("", tree, flat)
		c.messages[locale] = flat
	}

	return c, nil
}

// MustLoad как Load, но паникует при ошибке. Каталоги встроены в бинарник,
// поэтому ошибка означает поврежденную сборку.
func MustLoad() *Catalogs {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case string:
			out[key] = val
		case map[string]any:
			flatten(key, val, out)
		}
	}
}

// Supported reports whether locale has a catalog.
func (c *Catalogs) Supported(locale string) bool {
	_, ok := c.messages[locale]
	return ok
}

// Locales returns the supported locale codes in sorted order.
func (c *Catalogs) Locales() []string {
	out := make([]string, 0, len(c.messages))
	for l := range c.messages {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// T переводит ключ для locale. Неизвестный язык трактуется как английский.
func (c *Catalogs) T(locale, key string) string {
	if !c.Supported(locale) {
		locale = English
	}
	if key == LangCodeKey {
		return locale
	}
	if msg, ok := c.messages[locale][key]; ok {
		return msg
	}
	if msg, ok := c.messages[English][key]; ok {
		return msg
	}
	return key
}

// Translator returns a lookup bound to locale.
func (c *Catalogs) Translator(locale string) func(key string) string {
	return func(key string) string { return c.T(locale, key) }
}

// Messages возвращает полный каталог locale с подстановкой английских
// сообщений для отсутствующих ключей.
func (c *Catalogs) Messages(locale string) (map[string]string, error) {
	if !c.Supported(locale) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLocale, locale)
	}
	out := make(map[string]string, len(c.messages[English]))
	for k, v := range c.messages[English] {
		out[k] = v
	}
	for k, v := range c.messages[locale] {
		out[k] = v
	}
	return out, nil
}

// Negotiate выбирает язык по заголовку Accept-Language. Пустой или
// нераспознанный заголовок дает английский.
func (c *Catalogs) Negotiate(acceptLanguage string) string {
	acceptLanguage = strings.TrimSpace(acceptLanguage)
	if acceptLanguage == "" {
		return English
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return English
	}
	_, idx, confidence := c.matcher.Match(tags...)
	if confidence == language.No {
		return English
	}
	base, _ := supported[idx].Base()
	return base.String()
}

// DateLocale возвращает BCP 47 тег для форматирования дат на клиенте.
func DateLocale(locale string) string {
	if locale == Indonesian {
		return "id-ID"
	}
	return "en-US"
}

var indonesianMonths = [...]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

// FormatDate форматирует дату на выбранном языке: "March 5, 2024" или "5 Maret 2024".
func FormatDate(locale string, t time.Time) string {
	if locale == Indonesian {
		return fmt.Sprintf("%d %s %d", t.Day(), indonesianMonths[t.Month()-1], t.Year())
	}
	return t.Format("January 2, 2006")
}
