package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"lingobridge/internal/asr"
	"lingobridge/internal/cache"
	"lingobridge/internal/langreg"
	"lingobridge/internal/model"
	"lingobridge/internal/registry"
)

// partner returns the speaker's live meeting partner, or nil if alone.
func (p *Pipeline) partner() *ParticipantSession {
	s, ok := p.deps.Registry.Partner(p.session.MeetingID, p.session.ConnIDValue)
	if !ok {
		return nil
	}
	ps, ok := s.(*ParticipantSession)
	if !ok {
		return nil
	}
	return ps
}

// handleTranscript runs the eight-step algorithm in SPEC_FULL.md §4.6 for
// one TranscriptSegment emitted by the ASR Session.
func (p *Pipeline) handleTranscript(seg asr.TranscriptSegment) {
	srcMt := langreg.MTFromASR(seg.SourceLangCode)

	partner := p.partner()
	var dstMt string
	if partner != nil {
		dstMt = langreg.MT(partner.SpokenLocale)
	} else {
		dstMt = langreg.MT(p.session.DeclaredTargetLocale)
	}

	// Step 3: partial throttle.
	if !seg.IsFinal {
		now := time.Now()
		if now.Sub(p.lastPartialEmitAt) < partialThrottle {
			return
		}
		p.lastPartialEmitAt = now
	}

	// Step 4: translation, with partial/final cache reuse.
	var translated string
	switch {
	case srcMt == dstMt:
		translated = seg.OriginalText
	case seg.IsFinal && p.partialOriginal == seg.OriginalText && p.partialTranslated != "":
		translated = p.partialTranslated
	default:
		translated = p.translate(seg.OriginalText, srcMt, dstMt)
	}

	if !seg.IsFinal {
		p.partialOriginal = seg.OriginalText
		p.partialTranslated = translated
	} else {
		p.partialOriginal = ""
		p.partialTranslated = ""
	}

	// Step 5: emit caption to partner.
	if partner != nil && partner.IsOpen() {
		ev := CaptionEvent{
			SpeakerAttendeeID:  p.session.AttendeeID,
			SpeakerName:        p.session.DisplayName,
			OriginalText:       seg.OriginalText,
			TranslatedText:     translated,
			IsFinal:            seg.IsFinal,
			DetectedSourceLang: srcMt,
			TargetLang:         dstMt,
			StartMs:            seg.StartMs,
			EndMs:              seg.EndMs,
		}
		if err := partner.Transport.SendCaption(ev); err != nil {
			p.log.Printf("send caption failed: %v", err)
		}
	}

	if seg.IsFinal {
		p.archiveTranscript(seg.OriginalText, translated, srcMt, dstMt)
	}

	if partner == nil {
		// No one to synthesize audio for; captions (if any) already handled.
		return
	}

	if !seg.IsFinal {
		p.handlePartialAudio(translated, dstMt, partner)
		return
	}

	p.handleFinalAudio(translated, dstMt, partner)
}

// translate consults the cross-connection PipelineCache before delegating
// to the Translator, since the same phrase is common across many
// connections (greetings, filler words) and the network hop is the
// dominant cost.
func (p *Pipeline) translate(text, srcMt, dstMt string) string {
	if p.deps.Cache != nil {
		if cached, ok := p.deps.Cache.GetTranslation(text, srcMt, dstMt); ok {
			return cached
		}
	}
	out := p.deps.Translator.Translate(p.ctx, text, srcMt, dstMt)
	if p.deps.Cache != nil {
		p.deps.Cache.SetTranslation(text, srcMt, dstMt, out)
	}
	return out
}

// synthesize consults the PipelineCache before delegating to TTS, for the
// same reason as translate.
func (p *Pipeline) synthesize(text, locale string) []byte {
	if p.deps.Cache != nil {
		if cached, ok := p.deps.Cache.GetTTS(text, locale); ok {
			return cached
		}
	}
	audio := p.deps.TTS.Synthesize(p.ctx, text, locale)
	if audio != nil && p.deps.Cache != nil {
		p.deps.Cache.SetTTS(text, locale, audio)
	}
	return audio
}

// handlePartialAudio implements steps 6 and 7: speculative pre-synthesis
// and stale-partial single-shot scheduling.
func (p *Pipeline) handlePartialAudio(translated, dstMt string, partner *ParticipantSession) {
	if len(translated) <= minTranslatedLen {
		return
	}

	// Step 6: pre-synthesis, throttled to once per second. Runs on the
	// shared TTS worker pool when one is configured, falling back to its
	// own goroutine if the pool is absent (tests) or its queue is full —
	// either way the slot is always set so step 8 has somewhere to read
	// the result from.
	now := time.Now()
	if now.Sub(p.lastPreSynthAt) >= preSynthThrottle {
		p.lastPreSynthAt = now
		audioCh := make(chan []byte, 1)
		p.preSynth = &preSynthSlot{translated: translated, audio: audioCh}
		task := func() { audioCh <- p.synthesize(translated, dstMt) }
		if p.deps.Workers == nil || !p.deps.Workers.Submit(task) {
			go task()
		}
	}

	// Step 7: (re)schedule the stale-partial timer, unless it already fired
	// for this utterance.
	if p.interimPollyFired {
		return
	}
	p.latestPartialText = translated
	if p.stalePartialTimer != nil {
		p.stalePartialTimer.Stop()
	}
	p.timerGen++
	gen := p.timerGen
	p.stalePartialTimer = time.AfterFunc(stalePartialDelay, func() {
		p.enqueue(evStaleTimer{gen: gen})
	})
}

// handleStaleTimer fires when no final arrived within 5s of the latest
// partial: synthesizes the latest partial's translation and sends it as an
// interim TranslatedAudioEvent.
func (p *Pipeline) handleStaleTimer(gen uint64) {
	if gen != p.timerGen || p.interimPollyFired {
		return // superseded by a newer partial, a final, or a stop/disconnect
	}
	p.interimPollyFired = true

	text := p.latestPartialText
	partner := p.partner()
	if partner == nil || !partner.IsOpen() {
		return
	}

	audio := p.synthesize(text, langreg.MT(partner.SpokenLocale))
	if audio == nil {
		return
	}
	p.sendAudio(partner, audio)
}

// handleFinalAudio implements step 8: consumes any matching pre-synthesis
// slot or synthesizes fresh, unless an interim already covered this
// utterance.
func (p *Pipeline) handleFinalAudio(translated, dstMt string, partner *ParticipantSession) {
	if p.stalePartialTimer != nil {
		p.stalePartialTimer.Stop()
		p.stalePartialTimer = nil
	}
	p.timerGen++
	p.latestPartialText = ""

	if p.interimPollyFired {
		p.preSynth = nil
		p.interimPollyFired = false
		return
	}

	var audio []byte
	if slot := p.preSynth; slot != nil {
		p.preSynth = nil
		if slot.translated == translated {
			audio = <-slot.audio
		}
	}
	if audio == nil {
		audio = p.synthesize(translated, dstMt)
	}
	if audio == nil {
		return
	}
	p.sendAudio(partner, audio)
}

func (p *Pipeline) sendAudio(partner *ParticipantSession, audio []byte) {
	if !partner.IsOpen() {
		return
	}
	ev := TranslatedAudioEvent{
		SpeakerAttendeeID: p.session.AttendeeID,
		AudioData:         audio,
		TargetLang:        langreg.MT(partner.SpokenLocale),
	}
	if err := partner.Transport.SendAudio(ev); err != nil {
		p.log.Printf("send audio failed: %v", err)
	}
}

// archiveTranscript buffers one final caption line in Redis, to be flushed
// to Postgres by archiveOnTeardown once the meeting empties out. Runs off
// the pipeline goroutine on its own timeout-bounded context so a slow or
// unreachable Redis never backs up translation.
func (p *Pipeline) archiveTranscript(original, translated, srcMt, dstMt string) {
	if p.deps.Transcripts == nil {
		return
	}
	entry := cache.TranscriptEntry{
		SpeakerAttendeeID: p.session.AttendeeID,
		OriginalText:      original,
		TranslatedText:    translated,
		SourceLang:        srcMt,
		TargetLang:        dstMt,
		At:                time.Now(),
	}
	meetingID := p.session.MeetingID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := p.deps.Transcripts.AddTranscript(ctx, meetingID, entry); err != nil {
			p.log.Printf("buffer transcript for archival failed: %v", err)
		}
	}()
}

// archiveOnTeardown drains the meeting's buffered Redis transcripts into
// voice_records and clears the buffer, grounded on the teacher's
// saveTranscriptsToDatabase. Called once the last participant has left.
func (p *Pipeline) archiveOnTeardown(meetingID string) {
	if p.deps.Transcripts == nil || p.deps.DB == nil {
		return
	}
	log := p.log
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		entries, err := p.deps.Transcripts.GetTranscripts(ctx, meetingID)
		if err != nil {
			log.Printf("load buffered transcripts for archive failed: %v", err)
			return
		}
		if len(entries) == 0 {
			return
		}

		mid, err := uuid.Parse(meetingID)
		if err != nil {
			log.Printf("archive skipped, invalid meeting id %q: %v", meetingID, err)
			return
		}

		records := make([]model.VoiceRecord, 0, len(entries))
		for _, e := range entries {
			aid, err := uuid.Parse(e.SpeakerAttendeeID)
			if err != nil {
				continue
			}
			records = append(records, model.VoiceRecord{
				MeetingID:      mid,
				AttendeeID:     aid,
				OriginalText:   e.OriginalText,
				TranslatedText: e.TranslatedText,
				SourceLangCode: e.SourceLang,
				TargetLangCode: e.TargetLang,
				SpokenAt:       e.At,
			})
		}
		if len(records) > 0 {
			if err := p.deps.DB.Create(&records).Error; err != nil {
				log.Printf("archive transcripts to postgres failed: %v", err)
				return
			}
		}
		if err := p.deps.Transcripts.FlushRoom(ctx, meetingID); err != nil {
			log.Printf("flush redis transcript buffer failed: %v", err)
		}
	}()
}

var _ registry.Session = (*ParticipantSession)(nil)
