package stream

import "regexp"

// 切分点：空白串，以及中英文的逗号/句号/分号/叹号/问号。
// 分隔符保留为独立片段，拼回去必须与原文完全一致。
var delimiterPattern = regexp.MustCompile(`\s+|，|。|；|！|？|,|\.|;|!|\?`)

// Split 把后端一次性返回的完整回答切成片段，供假流式播放。
// 片段按自然停顿断开，视觉节奏接近真实流式。
func Split(s string) []string {
	if s == "" {
		return nil
	}

	var pieces []string
	last := 0

	for _, loc := range delimiterPattern.FindAllStringIndex(s, -1) {
		if loc[0] > last {
			pieces = append(pieces, s[last:loc[0]])
		}
		pieces = append(pieces, s[loc[0]:loc[1]])
		last = loc[1]
	}

	if last < len(s) {
		pieces = append(pieces, s[last:])
	}

	return pieces
}
