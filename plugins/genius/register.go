package genius

import (
	"fmt"

	"github.com/liuran001/TrackFetch-Go/engine/metadata"
)

func init() {
	if err := metadata.Register("genius", buildContribution); err != nil {
		panic(err)
	}
}

func buildContribution(deps metadata.Deps) (*metadata.Contribution, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config required")
	}
	token := deps.Config.GetProviderString("genius", "token")
	if token == "" {
		return nil, nil
	}
	client := New(Options{
		BaseURL:    deps.Config.GetProviderString("genius", "base_url"),
		Token:      token,
		HTTPClient: deps.HTTPClient,
		UserAgent:  deps.UserAgent,
		Rank:       deps.Config.GetProviderIntOr("genius", "rank", 3),
		Logger:     deps.Logger,
	})
	return &metadata.Contribution{Lyrics: client}, nil
}
