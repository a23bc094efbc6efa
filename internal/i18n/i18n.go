package i18n

import (
	"embed"
	"encoding/json"
	"net/http"
	"path"
	"strings"
	"sync"
)

const DefaultLang = "en"

//go:embed locales/*.json
var localeFS embed.FS

// Table is one language's nested string table.
type Table struct {
	lang string
	root map[string]any
}

type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var (
	loadOnce sync.Once
	tables   map[string]Table
)

func load() {
	tables = map[string]Table{}
	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		panic("i18n: " + err.Error())
	}
	for _, e := range entries {
		b, err := localeFS.ReadFile(path.Join("locales", e.Name()))
		if err != nil {
			panic("i18n: " + err.Error())
		}
		var root map[string]any
		if err := json.Unmarshal(b, &root); err != nil {
			panic("i18n: " + e.Name() + ": " + err.Error())
		}
		lang := strings.TrimSuffix(e.Name(), ".json")
		tables[lang] = Table{lang: lang, root: root}
	}
}

func Supported(lang string) bool {
	loadOnce.Do(load)
	_, ok := tables[lang]
	return ok
}

// Lookup resolves a language code to its table, falling back to DefaultLang.
func Lookup(lang string) Table {
	loadOnce.Do(load)
	if t, ok := tables[strings.ToLower(lang)]; ok {
		return t
	}
	return tables[DefaultLang]
}

func (t Table) Lang() string { return t.lang }

// T returns the string at a dotted key such as "messages.noClient".
// Missing keys come back verbatim so gaps show up in the UI instead of blank text.
func (t Table) T(key string) string {
	if s, ok := t.value(key).(string); ok {
		return s
	}
	return key
}

func (t Table) Categories() []Category {
	raw, ok := t.value("productCategoryInfo.categories").([]any)
	if !ok {
		return nil
	}
	out := make([]Category, 0, len(raw))
	for _, r := range raw {
		m, ok := r.(map[string]any)
		if !ok {
			continue
		}
		c := Category{}
		c.ID, _ = m["id"].(string)
		c.Name, _ = m["name"].(string)
		c.Description, _ = m["description"].(string)
		out = append(out, c)
	}
	return out
}

func (t Table) value(key string) any {
	var cur any = t.root
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[part]
		if !ok {
			return nil
		}
	}
	return cur
}

// FromRequest picks the language from ?lang=, then the "lang" cookie, then Accept-Language.
func FromRequest(r *http.Request, def string) string {
	if v := r.URL.Query().Get("lang"); Supported(v) {
		return v
	}
	if c, err := r.Cookie("lang"); err == nil && Supported(c.Value) {
		return c.Value
	}
	for _, part := range strings.Split(r.Header.Get("Accept-Language"), ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		base := strings.ToLower(strings.SplitN(tag, "-", 2)[0])
		if Supported(base) {
			return base
		}
	}
	if Supported(def) {
		return def
	}
	return DefaultLang
}
