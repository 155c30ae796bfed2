package youtube

import (
	"context"

	"reviewharvest/internal/pager"
)

// PlaylistSource pages through a playlist and resolves every listed entry to
// its full video resource with a second bulk call.
type PlaylistSource struct {
	Lister     Lister
	PlaylistID string
}

var _ pager.PageSource[Video] = (*PlaylistSource)(nil)

// FetchPage lists one page of playlist items and resolves their videos.
func (s *PlaylistSource) FetchPage(ctx context.Context, token string, maxResults int) (pager.Page[Video], error) {
	listing, err := s.Lister.ListPlaylistItems(ctx, s.PlaylistID, token, maxResults)
	if err != nil {
		return pager.Page[Video]{}, err
	}
	videos, err := s.Lister.ListVideos(ctx, listing.VideoIDs())
	if err != nil {
		return pager.Page[Video]{}, err
	}
	return pager.Page[Video]{Items: videos, NextToken: listing.NextPageToken}, nil
}
