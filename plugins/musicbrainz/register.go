package musicbrainz

import (
	"fmt"
	"time"

	"github.com/liuran001/TrackFetch-Go/engine/metadata"
)

func init() {
	if err := metadata.Register("musicbrainz", buildContribution); err != nil {
		panic(err)
	}
}

func buildContribution(deps metadata.Deps) (*metadata.Contribution, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config required")
	}
	userAgent := deps.Config.GetProviderString("musicbrainz", "user_agent")
	if userAgent == "" {
		userAgent = "TrackFetch-Go/1.0 ( https://github.com/liuran001/TrackFetch-Go )"
	}
	interval := time.Duration(deps.Config.GetProviderInt("musicbrainz", "interval_ms")) * time.Millisecond

	client := New(Options{
		BaseURL:    deps.Config.GetProviderString("musicbrainz", "base_url"),
		HTTPClient: deps.HTTPClient,
		UserAgent:  userAgent,
		Limit:      deps.Config.GetProviderInt("musicbrainz", "limit"),
		Interval:   interval,
		Logger:     deps.Logger,
	})
	return &metadata.Contribution{Metadata: client}, nil
}
