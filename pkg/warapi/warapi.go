// Package warapi reads the current war from the Foxhole war service.
package warapi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"github.com/regiment-logi/quartermaster/pkg/whttp"
)

const DefaultURL = "https://war-service-live.foxholeservices.com/api/worldconquest/war"

// ErrUnavailable is returned when the war cannot be fetched and no cached value exists.
var ErrUnavailable = errors.New("war service unavailable")

// War is one global war epoch. Times are nil while unknown.
type War struct {
	WarID                string     `json:"warId"`
	WarNumber            int        `json:"warNumber"`
	Winner               string     `json:"winner"`
	ConquestStartTime    *time.Time `json:"conquestStartTime"`
	ConquestEndTime      *time.Time `json:"conquestEndTime"`
	ResistanceStartTime  *time.Time `json:"resistanceStartTime"`
	RequiredVictoryTowns int        `json:"requiredVictoryTowns"`
}

// Fetcher returns the current war.
type Fetcher interface {
	Fetch(ctx context.Context) (*War, error)
}

// Client fetches the war document over HTTP.
type Client struct {
	URL  string
	HTTP *retryablehttp.Client // nil = whttp default client
}

func (c *Client) Fetch(ctx context.Context) (*War, error) {
	u := c.URL
	if u == "" {
		u = DefaultURL
	}
	res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{Method: "GET", URL: u}, c.HTTP)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != 200 {
		return nil, fmt.Errorf("war service returned status %d", res.StatusCode)
	}
	return Parse(res.BodyString)
}

// Parse decodes a war document. Timestamps are milliseconds since the epoch.
func Parse(body string) (*War, error) {
	if !gjson.Valid(body) {
		return nil, errors.New("war service returned invalid JSON")
	}
	num := gjson.Get(body, "warNumber")
	if !num.Exists() || num.Int() <= 0 {
		return nil, errors.New("war document has no warNumber")
	}
	winner := gjson.Get(body, "winner").Str
	if winner == "" {
		winner = "NONE"
	}
	return &War{
		WarID:                gjson.Get(body, "warId").Str,
		WarNumber:            int(num.Int()),
		Winner:               winner,
		ConquestStartTime:    millis(gjson.Get(body, "conquestStartTime")),
		ConquestEndTime:      millis(gjson.Get(body, "conquestEndTime")),
		ResistanceStartTime:  millis(gjson.Get(body, "resistanceStartTime")),
		RequiredVictoryTowns: int(gjson.Get(body, "requiredVictoryTowns").Int()),
	}, nil
}

func millis(r gjson.Result) *time.Time {
	if r.Type != gjson.Number || r.Int() <= 0 {
		return nil
	}
	t := time.UnixMilli(r.Int()).UTC()
	return &t
}
