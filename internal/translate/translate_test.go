package translate_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietnamexplorer/explorer/internal/failure"
	"github.com/vietnamexplorer/explorer/internal/translate"
)

type fakeTranslator struct {
	calls int
	pair  translate.Pair
	out   string
	err   error
}

func (f *fakeTranslator) Translate(_ context.Context, _ string, pair translate.Pair) (string, error) {
	f.calls++
	f.pair = pair
	return f.out, f.err
}

func TestService_Translate_EmptyText(t *testing.T) {
	fake := &fakeTranslator{}
	svc := translate.NewService(fake)

	_, err := svc.Translate(context.Background(), "   ", translate.DefaultPair)
	require.Error(t, err)
	assert.True(t, errors.Is(err, failure.ErrValidation))
	assert.Equal(t, translate.MessageEmptyText, failure.Detail(err))
	assert.Zero(t, fake.calls)
}

func TestService_Translate_DefaultPair(t *testing.T) {
	fake := &fakeTranslator{out: "Xin chào"}
	svc := translate.NewService(fake)

	out, err := svc.Translate(context.Background(), "Hello", translate.Pair{})
	require.NoError(t, err)
	assert.Equal(t, "Xin chào", out)
	assert.Equal(t, "en|vi", fake.pair.String())
}

func TestService_Translate_UnsupportedPair(t *testing.T) {
	svc := translate.NewService(&fakeTranslator{})

	_, err := svc.Translate(context.Background(), "Bonjour", translate.Pair{From: "fr", To: "vi"})
	assert.True(t, errors.Is(err, failure.ErrValidation))
}

func TestService_Translate_FailureMessage(t *testing.T) {
	fake := &fakeTranslator{err: failure.FromTransport("mymemory", errors.New("dial tcp: refused"))}
	svc := translate.NewService(fake)

	_, err := svc.Translate(context.Background(), "Hello", translate.DefaultPair)
	require.Error(t, err)
	assert.Equal(t, translate.MessageFailed, failure.Detail(err))
	assert.True(t, errors.Is(err, failure.ErrNetworkUnavailable))
}
