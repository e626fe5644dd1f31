package stream

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "empty string",
			input: "",
			want:  nil,
		},
		{
			name:  "no delimiters",
			input: "阴阳",
			want:  []string{"阴阳"},
		},
		{
			name:  "cjk delimiters kept as own pieces",
			input: "你好，世界。",
			want:  []string{"你好", "，", "世界", "。"},
		},
		{
			name:  "ascii sentence",
			input: "Hello, world.",
			want:  []string{"Hello", ",", " ", "world", "."},
		},
		{
			name:  "whitespace run is a single piece",
			input: "a  b",
			want:  []string{"a", "  ", "b"},
		},
		{
			name:  "mixed punctuation",
			input: "一？二！三；四",
			want:  []string{"一", "？", "二", "！", "三", "；", "四"},
		},
		{
			name:  "trailing text after delimiter",
			input: "先这样。然后那样",
			want:  []string{"先这样", "。", "然后那样"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(tt.input)
			assert.Equal(t, tt.want, got)
		})
	}
}

// 拼接所有片段必须还原出原文，一个字节都不能差
func TestSplitRoundTrip(t *testing.T) {
	inputs := []string{
		"你好，世界。",
		"阴阳是中国古代哲学的一对范畴，代表一切事物中对立统一的两面。",
		"line one\nline two\tend",
		"No punctuation at all",
		"。。。",
		"   ",
	}

	for _, input := range inputs {
		pieces := Split(input)
		assert.Equal(t, input, strings.Join(pieces, ""), "round trip failed for %q", input)
	}
}
