// Package langreg is the static locale registry (C1): a single lookup table
// mapping a canonical locale to the ASR dialect code, the MT language code,
// and the TTS voice to use when synthesizing into that locale.
package langreg

// Pivot is the canonical pivot language for two-hop translation.
const Pivot = "en"

// Voice describes a Polly voice selection for one locale.
type Voice struct {
	ID     string
	Engine string
}

// entry is one row of the registry, unifying what the teacher split across
// three parallel maps (transcribeLangCodes, translateLangCodes, defaultVoices).
type entry struct {
	asrCode string
	mtCode  string
	voice   Voice
	hasTTS  bool
}

var table = map[string]entry{
	"ko": {asrCode: "ko-KR", mtCode: "ko", voice: Voice{ID: "Seoyeon", Engine: "neural"}, hasTTS: true},
	"en": {asrCode: "en-US", mtCode: "en", voice: Voice{ID: "Matthew", Engine: "neural"}, hasTTS: true},
	"ja": {asrCode: "ja-JP", mtCode: "ja", voice: Voice{ID: "Takumi", Engine: "neural"}, hasTTS: true},
	"zh": {asrCode: "zh-CN", mtCode: "zh", voice: Voice{ID: "Zhiyu", Engine: "neural"}, hasTTS: true},
	"es": {asrCode: "es-US", mtCode: "es", voice: Voice{ID: "Lucia", Engine: "neural"}, hasTTS: true},
	"fr": {asrCode: "fr-FR", mtCode: "fr", voice: Voice{ID: "Lea", Engine: "neural"}, hasTTS: true},
	"de": {asrCode: "de-DE", mtCode: "de", voice: Voice{ID: "Vicki", Engine: "neural"}, hasTTS: true},
	"hi": {asrCode: "hi-IN", mtCode: "hi", hasTTS: false},
}

// Resolved is what a caller needs to drive ASR/MT/TTS for one locale.
type Resolved struct {
	ASRCode string
	MTCode  string
	Voice   Voice
	HasTTS  bool
}

// Resolve looks up a locale. Unknown locales fall back to the pivot.
func Resolve(locale string) Resolved {
	e, ok := table[locale]
	if !ok {
		e = table[Pivot]
	}
	return Resolved{ASRCode: e.asrCode, MTCode: e.mtCode, Voice: e.voice, HasTTS: e.hasTTS}
}

// MTFromASR maps a recognizer dialect code (e.g. "en-US") back to its MT
// language code (e.g. "en"). Unknown codes fall back to the pivot.
func MTFromASR(asrCode string) string {
	for _, e := range table {
		if e.asrCode == asrCode {
			return e.mtCode
		}
	}
	return Pivot
}

// MT is a convenience for the common case of going straight from locale to
// MT code.
func MT(locale string) string {
	return Resolve(locale).MTCode
}

// Known reports whether a locale has a registry entry (as opposed to falling
// back to the pivot).
func Known(locale string) bool {
	_, ok := table[locale]
	return ok
}
