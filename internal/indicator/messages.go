package indicator

import (
	"os"
	"strings"
)

type locale string

const (
	localeEnglish locale = "en"
	localeArabic  locale = "ar"
)

type messages struct {
	title            string
	unsupported      string
	permissionDenied string
	recognizerFailed string
}

func messagesFromEnv() messages {
	return localized(resolveLocale(os.Getenv("LANG")))
}

func resolveLocale(raw string) locale {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(raw, "ar") {
		return localeArabic
	}
	return localeEnglish
}

func localized(tag locale) messages {
	switch tag {
	case localeArabic:
		return messages{
			title:            "حفظ",
			unsupported:      "التعرف على الكلام غير متاح على هذا النظام",
			permissionDenied: "تم رفض الوصول إلى الميكروفون أو خدمة التعرف على الكلام",
			recognizerFailed: "توقف التعرف على الكلام",
		}
	default:
		return messages{
			title:            "hifz",
			unsupported:      "Speech recognition is not available on this system",
			permissionDenied: "Microphone or speech service access was denied",
			recognizerFailed: "Speech recognition stopped",
		}
	}
}

func (m messages) notice(kind NoticeKind) string {
	switch kind {
	case NoticeUnsupported:
		return m.unsupported
	case NoticePermissionDenied:
		return m.permissionDenied
	default:
		return m.recognizerFailed
	}
}
