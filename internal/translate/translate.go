// Package translate defines text translation between English and Vietnamese.
package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vietnamexplorer/explorer/internal/failure"
)

// User-facing messages.
const (
	MessageEmptyText = "Please enter some text to translate"
	MessageFailed    = "Failed to translate text. Please check your internet connection and try again."
)

// ErrUnsupportedPair is returned for language pairs other than en|vi and vi|en.
var ErrUnsupportedPair = errors.New("unsupported language pair")

// Language is an ISO 639-1 code.
type Language string

const (
	English    Language = "en"
	Vietnamese Language = "vi"
)

// Pair is a source/target language pair.
type Pair struct {
	From Language
	To   Language
}

// DefaultPair translates English to Vietnamese.
var DefaultPair = Pair{From: English, To: Vietnamese}

// String formats the pair the way MyMemory's langpair parameter expects.
func (p Pair) String() string {
	return string(p.From) + "|" + string(p.To)
}

// Validate accepts en|vi and vi|en.
func (p Pair) Validate() error {
	if (p.From == English && p.To == Vietnamese) || (p.From == Vietnamese && p.To == English) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedPair, p)
}

// Translator performs a single translation request.
type Translator interface {
	Translate(ctx context.Context, text string, pair Pair) (string, error)
}

// Service applies input validation and user-facing error messages around a Translator.
type Service struct {
	translator Translator
}

// NewService creates a translation service.
func NewService(t Translator) *Service {
	return &Service{translator: t}
}

// Translate validates the input and translates it. A zero pair means DefaultPair.
// Returned errors carry one of the user-facing messages.
func (s *Service) Translate(ctx context.Context, text string, pair Pair) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", failure.Validation("translate", MessageEmptyText)
	}
	if pair == (Pair{}) {
		pair = DefaultPair
	}
	if err := pair.Validate(); err != nil {
		return "", failure.Validation("translate", err.Error())
	}

	out, err := s.translator.Translate(ctx, text, pair)
	if err != nil {
		return "", &failure.Error{
			Provider: "translate",
			Code:     string(failure.KindOf(err)),
			Message:  MessageFailed,
			Err:      kindSentinel(err),
		}
	}
	return out, nil
}

func kindSentinel(err error) error {
	switch failure.KindOf(err) {
	case failure.KindValidation:
		return failure.ErrValidation
	case failure.KindNotFound:
		return failure.ErrNotFound
	case failure.KindNetworkUnavailable:
		return failure.ErrNetworkUnavailable
	case failure.KindTimeout:
		return failure.ErrTimeout
	default:
		return failure.ErrServer
	}
}
