package util

import (
	"net/url"
	"strings"
)

// BuildAccessLink 返回设置了 student 参数的访问链接，已有的同名参数会被替换。
// 其余查询参数按原样保留，包括无法解码的签名或令牌参数。
// 对同一个链接重复调用只会保留最后一次的值。
func BuildAccessLink(base, studentID string) string {
	rest, fragment := base, ""
	if i := strings.IndexByte(rest, '#'); i >= 0 {
		rest, fragment = rest[:i], rest[i:]
	}
	path, rawQuery, _ := strings.Cut(rest, "?")

	pairs := make([]string, 0, strings.Count(rawQuery, "&")+2)
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" || isStudentPair(pair) {
			continue
		}
		pairs = append(pairs, pair)
	}
	pairs = append(pairs, AccessLinkStudentParam+"="+url.QueryEscape(studentID))

	return path + "?" + strings.Join(pairs, "&") + fragment
}

func isStudentPair(pair string) bool {
	key, _, _ := strings.Cut(pair, "=")
	if unescaped, err := url.QueryUnescape(key); err == nil {
		key = unescaped
	}
	return key == AccessLinkStudentParam
}

// AccessLinkMatchesCourse 判断访问链接的路径中是否有一段等于课程 ID，主机与查询参数不参与匹配
func AccessLinkMatchesCourse(link, courseID string) bool {
	if courseID == "" {
		return false
	}

	path := link
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if u, err := url.Parse(path); err == nil {
		path = u.EscapedPath()
	}

	for _, seg := range strings.Split(path, "/") {
		if unescaped, err := url.PathUnescape(seg); err == nil {
			seg = unescaped
		}
		if seg == courseID {
			return true
		}
	}
	return false
}
