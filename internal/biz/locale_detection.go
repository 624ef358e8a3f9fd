package biz

import (
	"context"
	"strings"

	"github.com/go-kratos/kratos/v2/log"
)

// LocaleDetectionService 结算页语言推断服务接口
// 根据请求头推断托管结算页应展示的语言
type LocaleDetectionService interface {
	// DetectLocale 推断结算页语言
	// 优先级：
	// 1. HTTP 头 X-Language (客户端显式指定)
	// 2. HTTP 头 Accept-Language
	// 3. 默认值 "auto" (由支付服务按浏览器自行判断)
	DetectLocale(ctx context.Context, acceptLanguage, xLanguage string) string
}

// localeDetectionService 结算页语言推断服务实现
type localeDetectionService struct {
	log *log.Helper
}

// NewLocaleDetectionService 创建结算页语言推断服务
func NewLocaleDetectionService(logger log.Logger) LocaleDetectionService {
	return &localeDetectionService{
		log: log.NewHelper(logger),
	}
}

// 支付服务托管结算页支持的语言
var supportedCheckoutLocales = map[string]bool{
	"zh": true, "zh-HK": true, "zh-TW": true,
	"en": true, "en-GB": true,
	"ja": true, "ko": true,
	"de": true, "fr": true, "es": true, "it": true,
	"pt": true, "pt-BR": true,
	"ru": true, "nl": true, "pl": true, "sv": true,
	"da": true, "nb": true, "fi": true,
	"cs": true, "hu": true, "ro": true, "el": true,
	"tr": true, "th": true, "vi": true, "id": true, "ms": true,
}

// DetectLocale 推断结算页语言
func (s *localeDetectionService) DetectLocale(ctx context.Context, acceptLanguage, xLanguage string) string {
	if xLanguage != "" {
		if locale := s.extractLocale(xLanguage); locale != "" {
			s.log.WithContext(ctx).Infof("Detected checkout locale from X-Language: %s", locale)
			return locale
		}
	}

	if acceptLanguage != "" {
		if locale := s.extractLocale(acceptLanguage); locale != "" {
			s.log.WithContext(ctx).Infof("Detected checkout locale from Accept-Language: %s", locale)
			return locale
		}
	}

	return "auto"
}

// extractLocale 从语言字符串中提取支持的结算页语言
// 支持 Accept-Language 格式：可能包含多个语言，如 "zh-CN,zh;q=0.9,en;q=0.8"
func (s *localeDetectionService) extractLocale(langStr string) string {
	langs := strings.Split(langStr, ",")
	if len(langs) == 0 {
		return ""
	}

	// 取第一个语言（优先级最高）
	firstLang := strings.TrimSpace(langs[0])
	// 移除权重信息，如 "zh-CN;q=0.9" -> "zh-CN"
	if idx := strings.Index(firstLang, ";"); idx > 0 {
		firstLang = firstLang[:idx]
	}
	firstLang = strings.TrimSpace(firstLang)

	// 精确匹配
	if supportedCheckoutLocales[firstLang] {
		return firstLang
	}

	// 提取基础语言代码（如 "zh-CN" -> "zh"）
	if idx := strings.Index(firstLang, "-"); idx > 0 {
		baseLang := firstLang[:idx]
		if supportedCheckoutLocales[baseLang] {
			return baseLang
		}
	}

	return ""
}
