// Package pga reads the player directory of the PGA Tour's GraphQL
// orchestrator, which also serves the Korn Ferry, Champions and Americas
// tours.
package pga

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/benashkar/golf-tracker/internal/fetcher"
	"github.com/benashkar/golf-tracker/internal/player"
)

// DefaultURL is the GraphQL orchestrator endpoint.
const DefaultURL = "https://orchestrator.pgatour.com/graphql"

const siteOrigin = "https://www.pgatour.com"

// Tour is one tour served by the orchestrator.
type Tour struct {
	// Code is the orchestrator's TourCode enum value.
	Code string
	// League is the league code run records are scoped to.
	League string
	// System is the identity system directory ids are recorded under.
	System string
	// ProfileURL is the public players page, used as the source URL.
	ProfileURL string
}

var tours = map[string]Tour{
	"R": {Code: "R", League: "PGA", System: player.SystemPGATour, ProfileURL: siteOrigin + "/players"},
	"H": {Code: "H", League: "KORNFERRY", System: player.SystemKornFerry, ProfileURL: siteOrigin + "/korn-ferry-tour/players"},
	"S": {Code: "S", League: "CHAMPIONS", System: player.SystemChampions, ProfileURL: siteOrigin + "/pgatour-champions/players"},
	"Y": {Code: "Y", League: "PGAAMERICAS", System: player.SystemPGATour, ProfileURL: siteOrigin + "/pga-tour-americas/players"},
	"C": {Code: "C", League: "PGACANADA", System: player.SystemPGATour, ProfileURL: siteOrigin + "/canada/players"},
}

// LookupTour returns the tour for an orchestrator code, case-insensitively.
func LookupTour(code string) (Tour, error) {
	t, ok := tours[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return Tour{}, eris.Errorf("pga: unknown tour code %q", code)
	}
	return t, nil
}

// TourCodes returns the supported codes, sorted.
func TourCodes() []string {
	codes := make([]string, 0, len(tours))
	for c := range tours {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// Fetcher is the part of *fetcher.Client the directory needs.
type Fetcher interface {
	Fetch(ctx context.Context, req fetcher.Request) *fetcher.Outcome
}

// Client queries the orchestrator.
type Client struct {
	f      Fetcher
	url    string
	apiKey string
	now    func() time.Time
}

// New creates a Client. An empty endpoint selects DefaultURL.
func New(f Fetcher, endpoint, apiKey string) *Client {
	if endpoint == "" {
		endpoint = DefaultURL
	}
	return &Client{f: f, url: endpoint, apiKey: apiKey, now: time.Now}
}

// Entry is one row of the player directory.
type Entry struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Country   string `json:"country"`
	IsActive  bool   `json:"isActive"`
}

type graphqlRequest struct {
	Query string `json:"query"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type directoryResponse struct {
	Data *struct {
		PlayerDirectory *struct {
			Players []Entry `json:"players"`
		} `json:"playerDirectory"`
	} `json:"data"`
	Errors []graphqlError `json:"errors"`
}

// The orchestrator takes the tour as an enum literal rather than a
// variable.
func directoryQuery(code string) string {
	return `query { playerDirectory(tourCode: ` + code + `) { players { id firstName lastName country isActive } } }`
}

// Directory returns the active players of tour. Rows without a full name
// are dropped.
func (c *Client) Directory(ctx context.Context, tour Tour) ([]Entry, error) {
	body, err := json.Marshal(graphqlRequest{Query: directoryQuery(tour.Code)})
	if err != nil {
		return nil, eris.Wrap(err, "pga: encode query")
	}

	h := http.Header{}
	h.Set("x-api-key", c.apiKey)
	h.Set("Origin", siteOrigin)
	h.Set("Referer", siteOrigin+"/")
	out := c.f.Fetch(ctx, fetcher.Request{
		URL:    c.url,
		Kind:   fetcher.KindJSON,
		Method: http.MethodPost,
		Header: h,
		Body:   body,
	})
	res, err := fetcher.DecodeJSON[directoryResponse](out)
	if err != nil {
		return nil, eris.Wrapf(err, "pga: directory %s", tour.Code)
	}
	if len(res.Errors) > 0 {
		msgs := make([]string, 0, len(res.Errors))
		for _, e := range res.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, eris.Errorf("pga: directory %s: graphql errors: %s", tour.Code, strings.Join(msgs, "; "))
	}
	if res.Data == nil || res.Data.PlayerDirectory == nil {
		return nil, eris.Errorf("pga: directory %s: response has no playerDirectory", tour.Code)
	}

	var active []Entry
	for _, e := range res.Data.PlayerDirectory.Players {
		if !e.IsActive {
			continue
		}
		e.FirstName, e.LastName = strings.TrimSpace(e.FirstName), strings.TrimSpace(e.LastName)
		if e.FirstName == "" || e.LastName == "" {
			zap.L().Debug("pga: skipping directory row without name", zap.String("id", e.ID))
			continue
		}
		active = append(active, e)
	}
	zap.L().Info("pga: directory fetched",
		zap.String("tour", tour.Code),
		zap.Int("players", len(res.Data.PlayerDirectory.Players)),
		zap.Int("active", len(active)),
	)
	return active, nil
}

// Observation turns a directory row into an observation for tour.
func (c *Client) Observation(tour Tour, e Entry) player.Observation {
	obs := player.Observation{
		Source:     tour.System,
		SourceURL:  tour.ProfileURL,
		FirstName:  e.FirstName,
		LastName:   e.LastName,
		ObservedAt: c.now().UTC(),
	}
	if id := strings.TrimSpace(e.ID); id != "" {
		obs.ExternalIDs = map[string]string{tour.System: id}
	}
	if country := strings.TrimSpace(e.Country); country != "" {
		obs.Bio.Country = player.Str(country)
	}
	return obs
}
