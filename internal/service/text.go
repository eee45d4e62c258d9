package service

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	plainTextPolicy = bluemonday.StrictPolicy()
	angleStripper   = strings.NewReplacer("<", "", ">", "")
)

// cleanText 得到入库用的纯文本：先还原实体再清洗标签，避免 &lt;script&gt; 这类转义后的标记
// 在还原后重新出现；纯文本字段不保留尖括号。
func cleanText(raw string) string {
	unescaped := html.UnescapeString(strings.TrimSpace(raw))
	stripped := html.UnescapeString(plainTextPolicy.Sanitize(unescaped))
	return strings.TrimSpace(angleStripper.Replace(stripped))
}
