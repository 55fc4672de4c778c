package i18n

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
)

// 支持的语言
const (
	LocalePT = "pt-BR"
	LocaleEN = "en-US"
)

// DefaultLocale 默认语言
const DefaultLocale = LocalePT

var catalogs = map[string]map[string]string{
	LocalePT: messagesPT,
	LocaleEN: messagesEN,
}

// T 翻译消息 key，缺失时回退到默认语言，再回退到 key 本身
func T(locale, key string) string {
	if catalog, ok := catalogs[NormalizeLocale(locale)]; ok {
		if msg, ok := catalog[key]; ok {
			return msg
		}
	}
	if msg, ok := catalogs[DefaultLocale][key]; ok {
		return msg
	}
	return key
}

// Sprintf 翻译并格式化消息
func Sprintf(locale, key string, args ...interface{}) string {
	return fmt.Sprintf(T(locale, key), args...)
}

// NormalizeLocale 规范化语言标识
func NormalizeLocale(locale string) string {
	value := strings.ToLower(strings.TrimSpace(locale))
	switch {
	case value == "":
		return DefaultLocale
	case strings.HasPrefix(value, "pt"):
		return LocalePT
	case strings.HasPrefix(value, "en"):
		return LocaleEN
	default:
		return DefaultLocale
	}
}

// ResolveLocale 从请求中解析语言（lang 参数优先，其次 Accept-Language）
func ResolveLocale(c *gin.Context) string {
	if c == nil || c.Request == nil {
		return DefaultLocale
	}
	if lang := strings.TrimSpace(c.Query("lang")); lang != "" {
		return NormalizeLocale(lang)
	}
	header := c.GetHeader("Accept-Language")
	if header == "" {
		return DefaultLocale
	}
	first := strings.Split(header, ",")[0]
	first = strings.Split(first, ";")[0]
	return NormalizeLocale(first)
}
