package spotify

import (
	"fmt"

	"github.com/liuran001/TrackFetch-Go/engine/metadata"
)

func init() {
	if err := metadata.Register("spotify", buildContribution); err != nil {
		panic(err)
	}
}

// buildContribution disables the provider when no credentials are configured.
func buildContribution(deps metadata.Deps) (*metadata.Contribution, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config required")
	}
	id := deps.Config.GetProviderString("spotify", "client_id")
	secret := deps.Config.GetProviderString("spotify", "client_secret")
	if id == "" || secret == "" {
		return nil, nil
	}
	client, err := New(Options{
		ClientID:     id,
		ClientSecret: secret,
		HTTPClient:   deps.HTTPClient,
		Limit:        deps.Config.GetProviderInt("spotify", "limit"),
		Logger:       deps.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &metadata.Contribution{Metadata: client}, nil
}
