package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"minecraft-tracker-backend/config"
	"minecraft-tracker-backend/internal/model"
	"minecraft-tracker-backend/internal/store"
)

// Fetcher retrieves point-in-time server snapshots from the status API.
type Fetcher struct {
	baseURL string
	client  *http.Client
}

// New creates a Fetcher from the tracker configuration.
func New(cfg *config.TrackerConfig) *Fetcher {
	var transport http.RoundTripper = &http.Transport{}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			log.Printf("Warning: Invalid proxy URL %q: %v. Fetcher will not use a proxy.", cfg.HTTPProxy, err)
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	return &Fetcher{
		baseURL: cfg.APIBaseURL,
		client: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

// Fetch performs one status API call for the server. Every failure path
// (transport error, non-200, parse error, server reported offline)
// normalizes to a nil snapshot; the caller skips the server this cycle.
func (f *Fetcher) Fetch(ctx context.Context, server model.Server) *store.Snapshot {
	apiURL := fmt.Sprintf("%s/%s", f.baseURL, server.Endpoint())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		log.Printf("Failed to build status request for %s: %v", server.Endpoint(), err)
		return nil
	}

	resp, err := f.client.Do(req)
	if err != nil {
		log.Printf("Status API request failed for %s: %v", server.Endpoint(), err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("Status API returned %d for %s", resp.StatusCode, server.Endpoint())
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("Failed to read status response for %s: %v", server.Endpoint(), err)
		return nil
	}

	var status statusResponse
	if err := json.Unmarshal(body, &status); err != nil {
		log.Printf("Failed to parse status response for %s: %v", server.Endpoint(), err)
		return nil
	}

	if !status.Online {
		if len(status.Debug.Error) > 0 {
			log.Printf("Server %s connection failed. Errors: %v", server.Endpoint(), status.Debug.Error)
		}
		return nil
	}

	players := make([]string, 0, len(status.Players.List))
	for _, p := range status.Players.List {
		players = append(players, p.Name)
	}

	var motd string
	if len(status.MOTD.Clean) > 0 {
		motd = status.MOTD.Clean[0]
	}

	return &store.Snapshot{
		Online:      true,
		PlayerCount: status.Players.Online,
		MaxPlayers:  status.Players.Max,
		Players:     players,
		Version:     status.Version,
		MOTD:        motd,
		Core:        status.Software,
	}
}
