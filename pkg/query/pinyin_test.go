package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToPinyin(t *testing.T) {
	assert.Equal(t, "ni hao", toPinyin("你好"))
	assert.Equal(t, "zhong guo", toPinyin("中国"))
	assert.Equal(t, "h e l l o", toPinyin("Hello"))
}

func TestToPinyinInitials(t *testing.T) {
	assert.Equal(t, "nh", toPinyinInitials("你好"))
	assert.Equal(t, "zgr", toPinyinInitials("中国人"))
	assert.Equal(t, "hello", toPinyinInitials("Hello"))
}

func TestPinyinMatch(t *testing.T) {
	tests := []struct {
		text    string
		keyword string
		want    bool
	}{
		// full pinyin
		{"你好", "nihao", true},
		{"你好", "ni hao", true},
		// initials
		{"你好世界", "nhsj", true},
		// mixed-script targets
		{"hello你好", "nihao", true},
		{"hello你好", "he llo", true},
		// no match
		{"你好", "hello", false},
		{"hello", "世界", false},
		// non-pinyin keywords skip transliteration entirely
		{"你好", "ni123", false},
		{"你好", "ni@hao", false},
		{"你好", "中文", false},
		// direct substring always matches
		{"ABC-123", "C-1", true},
	}

	for _, tt := range tests {
		t.Run(tt.text+"/"+tt.keyword, func(t *testing.T) {
			assert.Equal(t, tt.want, pinyinMatch(tt.text, tt.keyword))
		})
	}
}
