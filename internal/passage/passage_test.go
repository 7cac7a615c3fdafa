package passage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const ikhlasPayload = `{
  "code": 200,
  "status": "OK",
  "data": {
    "number": 112,
    "name": "سُورَةُ الإِخۡلَاصِ",
    "englishName": "Al-Ikhlaas",
    "numberOfAyahs": 4,
    "edition": {"identifier": "quran-uthmani"},
    "ayahs": [
      {"number": 6222, "numberInSurah": 1, "text": "\ufeffبِسْمِ ٱللَّهِ ٱلرَّحْمَٰنِ ٱلرَّحِيمِ قُلْ هُوَ ٱللَّهُ أَحَدٌ"},
      {"number": 6223, "numberInSurah": 2, "text": "ٱللَّهُ ٱلصَّمَدُ"},
      {"number": 6224, "numberInSurah": 3, "text": "لَمْ يَلِدْ وَلَمْ يُولَدْ"},
      {"number": 6225, "numberInSurah": 4, "text": "وَلَمْ يَكُن لَّهُۥ كُفُوًا أَحَدٌۢ"}
    ]
  }
}`

func TestDecodeSurahStripsPrefixedBasmala(t *testing.T) {
	p, err := decodeSurah([]byte(ikhlasPayload))
	require.NoError(t, err)
	require.Equal(t, 112, p.Surah)
	require.Equal(t, "quran-uthmani", p.Edition)
	require.Len(t, p.Verses, 4)
	require.Equal(t, "قُلْ هُوَ ٱللَّهُ أَحَدٌ", p.Verses[0].Text)
	require.Equal(t, 4, p.Verses[3].Number)
}

func TestDecodeSurahKeepsFatihaBasmala(t *testing.T) {
	payload := `{"code":200,"data":{"number":1,"ayahs":[{"numberInSurah":1,"text":"بِسْمِ ٱللَّهِ ٱلرَّحْمَٰنِ ٱلرَّحِيمِ"}]}}`
	p, err := decodeSurah([]byte(payload))
	require.NoError(t, err)
	require.Equal(t, "بِسْمِ ٱللَّهِ ٱلرَّحْمَٰنِ ٱلرَّحِيمِ", p.Verses[0].Text)
}

func TestDecodeSurahErrors(t *testing.T) {
	_, err := decodeSurah([]byte(`{"code":404,"status":"Not Found","data":{}}`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "404")

	_, err = decodeSurah([]byte(`{"code":200,"data":{"number":2,"ayahs":[]}}`))
	require.ErrorIs(t, err, ErrNoVerses)

	_, err = decodeSurah([]byte(`not json`))
	require.Error(t, err)
}

func TestStripBasmala(t *testing.T) {
	require.Equal(t, "الم", StripBasmala("بسم الله الرحمن الرحيم الم"))
	require.Equal(t, "الٓمٓ", StripBasmala("بِسْمِ ٱللَّهِ ٱلرَّحْمَٰنِ ٱلرَّحِيمِ الٓمٓ"))
	require.Equal(t, "قل هو الله احد", StripBasmala("قل هو الله احد"))
}

func TestRangeClampsSelection(t *testing.T) {
	p := Passage{Surah: 112, Verses: []Verse{{Number: 1}, {Number: 2}, {Number: 3}, {Number: 4}}}

	tests := []struct {
		name      string
		from, to  int
		wantFirst int
		wantLast  int
	}{
		{name: "full surah when to is zero", from: 1, to: 0, wantFirst: 1, wantLast: 4},
		{name: "inner range", from: 2, to: 3, wantFirst: 2, wantLast: 3},
		{name: "from below one", from: -5, to: 2, wantFirst: 1, wantLast: 2},
		{name: "to past end", from: 3, to: 99, wantFirst: 3, wantLast: 4},
		{name: "to before from", from: 3, to: 1, wantFirst: 3, wantLast: 3},
		{name: "from past end", from: 9, to: 9, wantFirst: 4, wantLast: 4},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Range(p, tc.from, tc.to)
			require.NoError(t, err)
			require.Equal(t, tc.wantFirst, got.Verses[0].Number)
			require.Equal(t, tc.wantLast, got.Verses[len(got.Verses)-1].Number)
		})
	}

	_, err := Range(Passage{}, 1, 1)
	require.ErrorIs(t, err, ErrNoVerses)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "112.json")
	require.NoError(t, os.WriteFile(path, []byte(ikhlasPayload), 0o600))

	p, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, p.Verses, 4)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestClientSurah(t *testing.T) {
	var gotPath, gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(ikhlasPayload))
	}))
	t.Cleanup(server.Close)

	client := NewClient(server.URL+"/v1/", time.Second)
	client.UserAgent = "hifz/test"
	p, err := client.Surah(context.Background(), 112, "quran-uthmani")
	require.NoError(t, err)
	require.Equal(t, "/v1/surah/112/quran-uthmani", gotPath)
	require.Equal(t, "hifz/test", gotAgent)
	require.Len(t, p.Verses, 4)
}

func TestClientSurahHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	_, err := NewClient(server.URL, time.Second).Surah(context.Background(), 2, "quran-simple")
	require.Error(t, err)
	require.Contains(t, err.Error(), "HTTP 502")
}

func TestClientSurahValidatesInput(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", time.Second)

	_, err := client.Surah(context.Background(), 0, "quran-simple")
	require.Error(t, err)
	_, err = client.Surah(context.Background(), 115, "quran-simple")
	require.Error(t, err)
	_, err = client.Surah(context.Background(), 1, " ")
	require.Error(t, err)
}

func TestClientPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/surah" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"code":200}`))
	}))
	t.Cleanup(server.Close)

	require.NoError(t, NewClient(server.URL, time.Second).Ping(context.Background()))
	require.Error(t, NewClient(server.URL+"/nope", time.Second).Ping(context.Background()))
}
