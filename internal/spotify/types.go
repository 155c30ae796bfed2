package spotify

// ArtistRef is the abbreviated artist embedded in albums and tracks.
type ArtistRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Album is a simplified album object from search results.
type Album struct {
	ID                   string            `json:"id"`
	Name                 string            `json:"name"`
	AlbumType            string            `json:"album_type"`
	ReleaseDate          string            `json:"release_date"`
	ReleaseDatePrecision string            `json:"release_date_precision"`
	TotalTracks          int               `json:"total_tracks"`
	Artists              []ArtistRef       `json:"artists"`
	ExternalURLs         map[string]string `json:"external_urls,omitempty"`
	URI                  string            `json:"uri"`
}

// PrimaryArtist returns the first credited artist.
func (a Album) PrimaryArtist() (ArtistRef, bool) {
	if len(a.Artists) == 0 {
		return ArtistRef{}, false
	}
	return a.Artists[0], true
}

// Track is a simplified track object from an album's track listing.
type Track struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	TrackNumber  int               `json:"track_number"`
	DiscNumber   int               `json:"disc_number"`
	DurationMS   int               `json:"duration_ms"`
	Explicit     bool              `json:"explicit"`
	Artists      []ArtistRef       `json:"artists"`
	PreviewURL   string            `json:"preview_url,omitempty"`
	ExternalURLs map[string]string `json:"external_urls,omitempty"`
	URI          string            `json:"uri"`
}

// AudioFeatures is the acoustic analysis summary of one track.
type AudioFeatures struct {
	ID               string  `json:"id"`
	Danceability     float64 `json:"danceability"`
	Energy           float64 `json:"energy"`
	Key              int     `json:"key"`
	Loudness         float64 `json:"loudness"`
	Mode             int     `json:"mode"`
	Speechiness      float64 `json:"speechiness"`
	Acousticness     float64 `json:"acousticness"`
	Instrumentalness float64 `json:"instrumentalness"`
	Liveness         float64 `json:"liveness"`
	Valence          float64 `json:"valence"`
	Tempo            float64 `json:"tempo"`
	TimeSignature    int     `json:"time_signature"`
	DurationMS       int     `json:"duration_ms"`
}

// Artist is a full artist profile.
type Artist struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Genres     []string `json:"genres"`
	Popularity int      `json:"popularity"`
	Followers  struct {
		Total int `json:"total"`
	} `json:"followers"`
	ExternalURLs map[string]string `json:"external_urls,omitempty"`
	URI          string            `json:"uri"`
}

type searchResponse struct {
	Albums struct {
		Items []Album `json:"items"`
		Total int     `json:"total"`
	} `json:"albums"`
}

type tracksPage struct {
	Items []Track `json:"items"`
	Next  string  `json:"next"`
	Total int     `json:"total"`
}

type audioFeaturesResponse struct {
	AudioFeatures []*AudioFeatures `json:"audio_features"`
}
