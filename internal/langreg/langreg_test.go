package langreg

import "testing"

func TestResolveKnown(t *testing.T) {
	r := Resolve("ko")
	if r.ASRCode != "ko-KR" {
		t.Errorf("expected ko-KR, got %s", r.ASRCode)
	}
	if r.MTCode != "ko" {
		t.Errorf("expected ko, got %s", r.MTCode)
	}
	if !r.HasTTS {
		t.Errorf("expected ko to have TTS")
	}
}

func TestResolveUnknownFallsBackToPivot(t *testing.T) {
	r := Resolve("xx-not-a-locale")
	if r.MTCode != Pivot {
		t.Errorf("expected fallback to pivot %s, got %s", Pivot, r.MTCode)
	}
}

func TestMTFromASRRoundTrip(t *testing.T) {
	for _, locale := range []string{"ko", "en", "ja", "zh", "es", "fr", "de"} {
		r := Resolve(locale)
		if got := MTFromASR(r.ASRCode); got != MT(locale) {
			t.Errorf("locale %s: MTFromASR(%s) = %s, want %s", locale, r.ASRCode, got, MT(locale))
		}
	}
}

func TestMTFromASRUnknownFallsBackToPivot(t *testing.T) {
	if got := MTFromASR("xx-XX"); got != Pivot {
		t.Errorf("expected pivot fallback, got %s", got)
	}
}

func TestHasTTSFalseForNoVoiceLocale(t *testing.T) {
	r := Resolve("hi")
	if r.HasTTS {
		t.Errorf("expected hi to have no TTS voice configured")
	}
}
