package spotify_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"reviewharvest/internal/services"
	"reviewharvest/internal/spotify"
)

type catalogServer struct {
	*httptest.Server
	tokenRequests int
	tracksPages   int
	rejectBearer  bool
}

func newCatalogServer(t *testing.T) *catalogServer {
	t.Helper()
	cs := &catalogServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
		cs.tokenRequests++
		id, secret, ok := r.BasicAuth()
		if !ok || id != "id" || secret != "secret" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
			return
		}
		if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "client_credentials" {
			t.Errorf("unexpected token form: %v", r.PostForm)
		}
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":3600}`))
	})
	authorized := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if cs.rejectBearer || r.Header.Get("Authorization") != "Bearer tok" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":{"status":401,"message":"The access token expired"}}`))
				return
			}
			next(w, r)
		}
	}
	mux.HandleFunc("/v1/search", authorized(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("type") != "album" || q.Get("q") == "" {
			t.Errorf("unexpected search query %q", r.URL.RawQuery)
		}
		if q.Get("q") == "nothing" {
			_, _ = w.Write([]byte(`{"albums":{"items":[],"total":0}}`))
			return
		}
		_, _ = w.Write([]byte(`{"albums":{"items":[
			{"id":"alb1","name":"OK Computer","album_type":"album","artists":[{"id":"art1","name":"Radiohead"}]},
			{"id":"alb2","name":"OK Computer OKNOTOK","artists":[{"id":"art1","name":"Radiohead"}]}],"total":2}}`))
	}))
	mux.HandleFunc("/v1/albums/alb1/tracks", authorized(func(w http.ResponseWriter, r *http.Request) {
		cs.tracksPages++
		if r.URL.Query().Get("offset") == "" {
			fmt.Fprintf(w, `{"items":[{"id":"t1","name":"Airbag","track_number":1}],"next":"%s/v1/albums/alb1/tracks?offset=1&limit=50","total":2}`, cs.URL)
			return
		}
		_, _ = w.Write([]byte(`{"items":[{"id":"t2","name":"Paranoid Android","track_number":2}],"next":null,"total":2}`))
	}))
	mux.HandleFunc("/v1/audio-features", authorized(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("ids") != "t1,t2" {
			t.Errorf("ids = %q", r.URL.Query().Get("ids"))
		}
		_, _ = w.Write([]byte(`{"audio_features":[{"id":"t1","tempo":116.5,"energy":0.6},null]}`))
	}))
	mux.HandleFunc("/v1/artists/art1", authorized(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"art1","name":"Radiohead","genres":["art rock"],"popularity":80,"followers":{"total":100}}`))
	}))
	mux.HandleFunc("/v1/artists/missing", authorized(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"status":404,"message":"non existing id"}}`))
	}))
	mux.HandleFunc("/v1/artists/busy", authorized(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	cs.Server = httptest.NewServer(mux)
	t.Cleanup(cs.Close)
	return cs
}

func newClient(t *testing.T, cs *catalogServer, secret string) *spotify.Client {
	t.Helper()
	client, err := spotify.New("id", secret, cs.URL+"/v1", cs.URL+"/api/token")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return client
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := spotify.New("", "secret", "https://api.example.com", "https://auth.example.com")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestSearchAlbumsCachesToken(t *testing.T) {
	cs := newCatalogServer(t)
	client := newClient(t, cs, "secret")

	for range 2 {
		albums, err := client.SearchAlbums(context.Background(), "Radiohead - OK Computer")
		if err != nil {
			t.Fatalf("SearchAlbums returned error: %v", err)
		}
		if len(albums) != 2 || albums[0].ID != "alb1" {
			t.Fatalf("unexpected albums: %#v", albums)
		}
		if artist, ok := albums[0].PrimaryArtist(); !ok || artist.ID != "art1" {
			t.Fatalf("PrimaryArtist = %#v, %v", artist, ok)
		}
	}
	if cs.tokenRequests != 1 {
		t.Fatalf("token requests = %d, want 1", cs.tokenRequests)
	}
}

func TestSearchAlbumsNoResults(t *testing.T) {
	cs := newCatalogServer(t)
	client := newClient(t, cs, "secret")
	albums, err := client.SearchAlbums(context.Background(), "nothing")
	if err != nil {
		t.Fatalf("SearchAlbums returned error: %v", err)
	}
	if len(albums) != 0 {
		t.Fatalf("expected no albums, got %d", len(albums))
	}
}

func TestSearchAlbumsEmptyQuery(t *testing.T) {
	cs := newCatalogServer(t)
	client := newClient(t, cs, "secret")
	if _, err := client.SearchAlbums(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestAlbumTracksFollowsPagination(t *testing.T) {
	cs := newCatalogServer(t)
	client := newClient(t, cs, "secret")
	tracks, err := client.AlbumTracks(context.Background(), "alb1")
	if err != nil {
		t.Fatalf("AlbumTracks returned error: %v", err)
	}
	if len(tracks) != 2 || tracks[1].Name != "Paranoid Android" {
		t.Fatalf("unexpected tracks: %#v", tracks)
	}
	if cs.tracksPages != 2 {
		t.Fatalf("track pages = %d, want 2", cs.tracksPages)
	}
}

func TestAudioFeaturesSkipsNullEntries(t *testing.T) {
	cs := newCatalogServer(t)
	client := newClient(t, cs, "secret")
	features, err := client.AudioFeatures(context.Background(), []string{"t1", "t2"})
	if err != nil {
		t.Fatalf("AudioFeatures returned error: %v", err)
	}
	if len(features) != 1 || features[0].Tempo != 116.5 {
		t.Fatalf("unexpected features: %#v", features)
	}
}

func TestArtist(t *testing.T) {
	cs := newCatalogServer(t)
	client := newClient(t, cs, "secret")
	artist, err := client.Artist(context.Background(), "art1")
	if err != nil {
		t.Fatalf("Artist returned error: %v", err)
	}
	if artist.Name != "Radiohead" || artist.Followers.Total != 100 || len(artist.Genres) != 1 {
		t.Fatalf("unexpected artist: %#v", artist)
	}
}

func TestStatusClassification(t *testing.T) {
	cs := newCatalogServer(t)
	client := newClient(t, cs, "secret")

	_, err := client.Artist(context.Background(), "missing")
	if !errors.Is(err, services.ErrUnavailable) {
		t.Fatalf("404 err = %v, want unavailable", err)
	}
	_, err = client.Artist(context.Background(), "busy")
	if !errors.Is(err, services.ErrRateLimited) {
		t.Fatalf("429 err = %v, want rate limited", err)
	}
}

func TestBadCredentialsAreConfigurationErrors(t *testing.T) {
	cs := newCatalogServer(t)
	client := newClient(t, cs, "wrong")
	_, err := client.SearchAlbums(context.Background(), "anything")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("err = %v, want configuration error", err)
	}
}

func TestUnauthorizedDropsCachedToken(t *testing.T) {
	cs := newCatalogServer(t)
	client := newClient(t, cs, "secret")
	if _, err := client.SearchAlbums(context.Background(), "x"); err != nil {
		t.Fatalf("SearchAlbums returned error: %v", err)
	}

	cs.rejectBearer = true
	_, err := client.SearchAlbums(context.Background(), "x")
	if !services.IsItemLocal(err) {
		t.Fatalf("401 err = %v, want item-local", err)
	}

	cs.rejectBearer = false
	if _, err := client.SearchAlbums(context.Background(), "x"); err != nil {
		t.Fatalf("SearchAlbums after refresh returned error: %v", err)
	}
	if cs.tokenRequests != 2 {
		t.Fatalf("token requests = %d, want 2", cs.tokenRequests)
	}
}
