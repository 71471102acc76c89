package translate

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/worklist-harvester/internal/harvest"
)

type fakeFetcher struct {
	last harvest.FetchRequest
	body string
	err  error
}

func (f *fakeFetcher) Fetch(_ context.Context, req harvest.FetchRequest) (harvest.FetchResponse, error) {
	f.last = req
	if f.err != nil {
		return harvest.FetchResponse{}, f.err
	}
	return harvest.FetchResponse{StatusCode: http.StatusOK, Body: []byte(f.body)}, nil
}

func TestTranslateBuildsRequestAndParses(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{body: `[[["Hello. ","안녕하세요. ",null,null,10],["World","세계",null,null,10]],null,"ko"]`}
	client, err := New(fetcher, Config{SourceLang: "ko", TargetLang: "en"})
	require.NoError(t, err)

	out, err := client.Translate(context.Background(), "안녕하세요. 세계")
	require.NoError(t, err)
	require.Equal(t, "Hello. World", out)

	require.Equal(t, http.MethodPost, fetcher.last.Method)
	u, err := url.Parse(fetcher.last.URL)
	require.NoError(t, err)
	require.Equal(t, "translate.googleapis.com", u.Host)
	require.Equal(t, "ko", u.Query().Get("sl"))
	require.Equal(t, "en", u.Query().Get("tl"))
	form, err := url.ParseQuery(string(fetcher.last.Body))
	require.NoError(t, err)
	require.Equal(t, "안녕하세요. 세계", form.Get("q"))
}

func TestTranslateFetchError(t *testing.T) {
	t.Parallel()

	boom := &harvest.FetchError{URL: "x", Err: errors.New("429")}
	client, err := New(&fakeFetcher{err: boom}, Config{TargetLang: "en"})
	require.NoError(t, err)
	_, err = client.Translate(context.Background(), "text")
	require.ErrorIs(t, err, harvest.ErrFetch)
}

func TestParseResponseErrors(t *testing.T) {
	t.Parallel()

	for name, body := range map[string]string{
		"not json":      `<html>`,
		"empty array":   `[]`,
		"no sentences":  `[null]`,
		"no text":       `[[[null,"x"]]]`,
		"wrong nesting": `[["a"]]`,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := parseResponse([]byte(body))
			require.Error(t, err)
		})
	}
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{TargetLang: "en"})
	require.Error(t, err)
	_, err = New(&fakeFetcher{}, Config{})
	require.Error(t, err)
}
