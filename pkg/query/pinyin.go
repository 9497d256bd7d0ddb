package query

import (
	"strings"
	"sync"

	gopinyin "github.com/mozillazg/go-pinyin"
)

var pinyinArgs = func() gopinyin.Args {
	a := gopinyin.NewArgs()
	// Non-Han runes pass through lowercased so transliteration covers
	// mixed-script titles.
	a.Fallback = func(r rune, _ gopinyin.Args) []string {
		return []string{strings.ToLower(string(r))}
	}
	return a
}()

// Transliterations are memoized per process; titles and keywords repeat
// heavily across queries.
var (
	pinyinCache   sync.Map // string -> string
	initialsCache sync.Map // string -> string
)

// toPinyin transliterates text to space-separated pinyin syllables
// without tones. Non-Han characters become their own lowercase
// syllables.
func toPinyin(text string) string {
	if cached, ok := pinyinCache.Load(text); ok {
		return cached.(string)
	}

	syllables := gopinyin.Pinyin(text, pinyinArgs)
	parts := make([]string, 0, len(syllables))
	for _, options := range syllables {
		if len(options) == 0 {
			continue
		}
		s := strings.TrimSpace(options[0])
		if s != "" {
			parts = append(parts, s)
		}
	}
	out := strings.Join(parts, " ")
	pinyinCache.Store(text, out)
	return out
}

// toPinyinInitials reduces text to the first letter of each syllable.
func toPinyinInitials(text string) string {
	if cached, ok := initialsCache.Load(text); ok {
		return cached.(string)
	}

	var b strings.Builder
	for _, word := range strings.Fields(toPinyin(text)) {
		b.WriteString(strings.ToLower(word[:1]))
	}
	out := b.String()
	initialsCache.Store(text, out)
	return out
}

// isPinyinText reports whether the keyword consists only of lowercase
// ascii letters and spaces, i.e. could be a pinyin spelling.
func isPinyinText(text string) bool {
	for _, r := range text {
		if (r < 'a' || r > 'z') && r != ' ' {
			return false
		}
	}
	return true
}

// pinyinMatch reports whether text matches the keyword: directly, via
// the text's spaceless pinyin, via its pinyin initials, or via the
// keyword's own transliteration appearing in the text's.
func pinyinMatch(text, keyword string) bool {
	if strings.Contains(text, keyword) {
		return true
	}

	kw := strings.ToLower(keyword)
	if !isPinyinText(kw) {
		return false
	}
	kwNoSpace := strings.ReplaceAll(kw, " ", "")

	textPinyin := strings.ReplaceAll(toPinyin(text), " ", "")
	if strings.Contains(textPinyin, kwNoSpace) {
		return true
	}

	if strings.Contains(toPinyinInitials(text), kwNoSpace) {
		return true
	}

	kwPinyin := strings.ReplaceAll(toPinyin(keyword), " ", "")
	if kwPinyin != "" && strings.Contains(textPinyin, kwPinyin) {
		return true
	}

	return false
}
