package geo_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"smile-preview-backend/internal/geo"
	"smile-preview-backend/internal/session"
)

type stubResolver struct {
	code  string
	err   error
	calls int
}

func (s *stubResolver) CountryCode(ctx context.Context, ip string) (string, error) {
	s.calls++
	return s.code, s.err
}

func TestCallingCode(t *testing.T) {
	code, ok := geo.CallingCode("tr")
	assert.True(t, ok)
	assert.Equal(t, "+90", code)

	code, _ = geo.CallingCode("FI")
	assert.Equal(t, "+358", code)

	_, ok = geo.CallingCode("AQ")
	assert.False(t, ok)
}

func TestLocator_CachesIntoVisitorState(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore(time.Minute)
	resolver := &stubResolver{code: "DE"}
	locator := geo.NewLocator(resolver, store, zerolog.Nop())

	info := locator.Locate(ctx, "v1", "203.0.113.7")
	assert.Equal(t, geo.Info{CountryCode: "DE", DialCode: "+49"}, info)

	info = locator.Locate(ctx, "v1", "203.0.113.7")
	assert.Equal(t, "+49", info.DialCode)
	assert.Equal(t, 1, resolver.calls)

	st, err := store.Load(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "DE", st.CountryCode)
}

func TestLocator_DefaultsOnFailure(t *testing.T) {
	locator := geo.NewLocator(&stubResolver{err: errors.New("down")}, nil, zerolog.Nop())
	assert.Equal(t, geo.Info{CountryCode: "US", DialCode: "+1"}, locator.Locate(context.Background(), "", "1.2.3.4"))

	unmapped := geo.NewLocator(&stubResolver{code: "AQ"}, nil, zerolog.Nop())
	assert.Equal(t, "+1", unmapped.Locate(context.Background(), "", "1.2.3.4").DialCode)

	none := geo.NewLocator(nil, nil, zerolog.Nop())
	assert.Equal(t, "US", none.Locate(context.Background(), "", "").CountryCode)
}

func TestHTTPResolver(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/198.51.100.1/json/":
			w.Write([]byte(`{"ip":"198.51.100.1","country_code":"GB"}`))
		default:
			w.Write([]byte(`{"error":true,"reason":"Reserved IP Address"}`))
		}
	}))
	defer server.Close()

	resolver := geo.NewHTTPResolver(server.URL)

	code, err := resolver.CountryCode(context.Background(), "198.51.100.1")
	require.NoError(t, err)
	assert.Equal(t, "GB", code)

	_, err = resolver.CountryCode(context.Background(), "127.0.0.1")
	assert.ErrorContains(t, err, "Reserved IP Address")
}

func TestChain_FallsThrough(t *testing.T) {
	chain := geo.Chain{&stubResolver{err: errors.New("no db")}, &stubResolver{code: "FR"}}

	code, err := chain.CountryCode(context.Background(), "1.1.1.1")
	require.NoError(t, err)
	assert.Equal(t, "FR", code)
}

func TestResolver_NilIsUnavailable(t *testing.T) {
	r, err := geo.NewResolver("")
	require.NoError(t, err)

	_, err = r.CountryCode(context.Background(), "1.1.1.1")
	assert.ErrorIs(t, err, geo.ErrUnavailable)
}
