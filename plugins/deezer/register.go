package deezer

import (
	"fmt"

	"github.com/liuran001/TrackFetch-Go/engine/metadata"
)

func init() {
	if err := metadata.Register("deezer", buildContribution); err != nil {
		panic(err)
	}
}

func buildContribution(deps metadata.Deps) (*metadata.Contribution, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config required")
	}
	client := New(Options{
		BaseURL:    deps.Config.GetProviderString("deezer", "base_url"),
		HTTPClient: deps.HTTPClient,
		UserAgent:  deps.UserAgent,
		Limit:      deps.Config.GetProviderInt("deezer", "limit"),
		Logger:     deps.Logger,
	})
	return &metadata.Contribution{Metadata: client}, nil
}
