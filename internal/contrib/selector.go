package contrib

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// getVal 解析选择器表达式，支持使用 "||" 作为回退分隔，例如："@data-date||span@title"。
func getVal(scope *goquery.Selection, expr string) string {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return ""
	}
	for _, p := range strings.Split(expr, "||") {
		if v := getValSingle(scope, strings.TrimSpace(p)); v != "" {
			return v
		}
	}
	return ""
}

// getValSingle 解析单个表达式：
// - "." 取当前节点文本
// - "@attr" 取当前节点属性，"sel@attr" 取子节点属性
// - 其余按选择器取首个子节点文本
func getValSingle(scope *goquery.Selection, expr string) string {
	if expr == "" {
		return ""
	}
	if expr == "." {
		return strings.TrimSpace(scope.Text())
	}
	if at := strings.Index(expr, "@"); at != -1 {
		sel := strings.TrimSpace(expr[:at])
		attr := strings.TrimSpace(expr[at+1:])
		target := scope
		if sel != "" {
			target = scope.Find(sel).First()
		}
		if target.Length() == 0 {
			return ""
		}
		val, _ := target.Attr(attr)
		return strings.TrimSpace(val)
	}
	if el := scope.Find(expr).First(); el.Length() > 0 {
		return strings.TrimSpace(el.Text())
	}
	return ""
}
