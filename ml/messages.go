package ml

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys double as the English text.
const (
	msgInvalidNumber    = "Please enter a valid vehicle weight (a number)"
	msgNotPositive      = "Vehicle weight must be greater than 0"
	msgTooHeavy         = "Vehicle weight is too large (max %d lbs)"
	msgModelUnavailable = "Model is not available"
	msgInternal         = "An error occurred: %s"

	labelLow    = "Low fuel efficiency"
	labelMedium = "Medium fuel efficiency"
	labelHigh   = "High fuel efficiency"
)

var supportedLanguages = []language.Tag{
	language.English,
	language.Indonesian,
}

var messageCatalog = buildCatalog()

func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))

	for _, key := range []string{
		msgInvalidNumber, msgNotPositive, msgTooHeavy, msgModelUnavailable, msgInternal,
		labelLow, labelMedium, labelHigh,
	} {
		_ = b.SetString(language.English, key, key)
	}

	id := language.Indonesian
	_ = b.SetString(id, msgInvalidNumber, "Masukkan berat mobil yang valid (angka)")
	_ = b.SetString(id, msgNotPositive, "Berat mobil harus lebih dari 0")
	_ = b.SetString(id, msgTooHeavy, "Berat mobil terlalu besar (maksimal %d lbs)")
	_ = b.SetString(id, msgModelUnavailable, "Model tidak tersedia")
	_ = b.SetString(id, msgInternal, "Terjadi kesalahan: %s")
	_ = b.SetString(id, labelLow, "Efisiensi bahan bakar rendah")
	_ = b.SetString(id, labelMedium, "Efisiensi bahan bakar sedang")
	_ = b.SetString(id, labelHigh, "Efisiensi bahan bakar tinggi")

	return b
}

// Messages renders user-facing text in one language.
type Messages struct {
	tag language.Tag
}

// NewMessages picks the closest supported language for lang ("en", "id",
// "id-ID", ...). Unknown or empty values fall back to English.
func NewMessages(lang string) Messages {
	if lang == "" {
		return Messages{tag: language.English}
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return Messages{tag: language.English}
	}
	matcher := language.NewMatcher(supportedLanguages)
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return Messages{tag: language.English}
	}
	return Messages{tag: supportedLanguages[idx]}
}

// Language returns the BCP 47 tag in use.
func (m Messages) Language() string {
	return m.tag.String()
}

func (m Messages) sprintf(key string, args ...interface{}) string {
	tag := m.tag
	if tag == language.Und {
		tag = language.English
	}
	return message.NewPrinter(tag, message.Catalog(messageCatalog)).Sprintf(key, args...)
}
