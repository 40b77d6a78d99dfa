package lrclib

import (
	"fmt"

	"github.com/liuran001/TrackFetch-Go/engine/metadata"
)

func init() {
	if err := metadata.Register("lrclib", buildContribution); err != nil {
		panic(err)
	}
}

func buildContribution(deps metadata.Deps) (*metadata.Contribution, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config required")
	}
	client := New(Options{
		BaseURL:    deps.Config.GetProviderString("lrclib", "base_url"),
		HTTPClient: deps.HTTPClient,
		UserAgent:  deps.UserAgent,
		Rank:       deps.Config.GetProviderIntOr("lrclib", "rank", 0),
		Logger:     deps.Logger,
	})
	return &metadata.Contribution{Lyrics: client}, nil
}
