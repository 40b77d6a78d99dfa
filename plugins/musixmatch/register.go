package musixmatch

import (
	"fmt"

	"github.com/liuran001/TrackFetch-Go/engine/metadata"
)

func init() {
	if err := metadata.Register("musixmatch", buildContribution); err != nil {
		panic(err)
	}
}

func buildContribution(deps metadata.Deps) (*metadata.Contribution, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config required")
	}
	apiKey := deps.Config.GetProviderString("musixmatch", "api_key")
	if apiKey == "" {
		return nil, nil
	}
	client := New(Options{
		BaseURL:    deps.Config.GetProviderString("musixmatch", "base_url"),
		APIKey:     apiKey,
		HTTPClient: deps.HTTPClient,
		UserAgent:  deps.UserAgent,
		Rank:       deps.Config.GetProviderIntOr("musixmatch", "rank", 2),
		Logger:     deps.Logger,
	})
	return &metadata.Contribution{Lyrics: client}, nil
}
