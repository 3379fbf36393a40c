package service

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var slugInvalidRuns = regexp.MustCompile(`[^a-z0-9]+`)

// DeriveSlug 将标题转换为 URL-safe slug：小写、非字母数字的连续片段折叠为
// 单个连字符、去掉首尾连字符。纯函数且幂等。
func DeriveSlug(title string) string {
	slug := strings.ToLower(title)
	slug = slugInvalidRuns.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// StampSlug appends a short base36 time suffix to a derived slug. Used
// by the machine-generated slug flow to avoid front-running collisions;
// the unique index on posts.slug remains the source of truth.
func StampSlug(slug string) string {
	stamp := strconv.FormatInt(time.Now().Unix(), 36)
	if slug == "" {
		return stamp
	}
	return slug + "-" + stamp
}
