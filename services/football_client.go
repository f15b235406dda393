package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// FootballClient is a thin client for the football-data.org v4 API, used to
// pull Premier League fixtures and results. It is the only place that talks
// to the sports-data collaborator, and it is never called from inside a
// database transaction.
type FootballClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func NewFootballClient(apiToken string) *FootballClient {
	return &FootballClient{
		BaseURL: "https://api.football-data.org/v4",
		Token:   apiToken,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// APIMatch is the subset of the v4 match payload we care about.
type APIMatch struct {
	ID       int64  `json:"id"`
	UTCDate  string `json:"utcDate"`
	Status   string `json:"status"`
	Matchday int    `json:"matchday"`
	HomeTeam struct {
		Name string `json:"name"`
	} `json:"homeTeam"`
	AwayTeam struct {
		Name string `json:"name"`
	} `json:"awayTeam"`
	Score struct {
		FullTime struct {
			Home *int `json:"home"`
			Away *int `json:"away"`
		} `json:"fullTime"`
	} `json:"score"`
}

type matchesResponse struct {
	Matches []APIMatch `json:"matches"`
}

func (c *FootballClient) getMatches(ctx context.Context, query url.Values) ([]APIMatch, error) {
	u := fmt.Sprintf("%s/competitions/PL/matches", c.BaseURL)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Auth-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call football-data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("football-data returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed matchesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode football-data response: %w", err)
	}
	return parsed.Matches, nil
}

// SeasonMatches lists every PL match of a season.
func (c *FootballClient) SeasonMatches(ctx context.Context, seasonYear int) ([]APIMatch, error) {
	q := url.Values{}
	q.Set("season", strconv.Itoa(seasonYear))
	return c.getMatches(ctx, q)
}

// MatchesBetween lists PL matches inside a date window.
func (c *FootballClient) MatchesBetween(ctx context.Context, from, to time.Time) ([]APIMatch, error) {
	q := url.Values{}
	q.Set("dateFrom", from.Format("2006-01-02"))
	q.Set("dateTo", to.Format("2006-01-02"))
	return c.getMatches(ctx, q)
}

// KickoffTime parses the match's utcDate.
func (m *APIMatch) KickoffTime() time.Time {
	t, err := time.Parse(time.RFC3339, m.UTCDate)
	if err != nil {
		return time.Time{}
	}
	return t
}

// StatusCode maps the v4 status vocabulary onto the short codes stored on
// fixtures, so the outcome evaluator sees a single vocabulary.
func (m *APIMatch) StatusCode() string {
	switch m.Status {
	case "FINISHED":
		return "FT"
	case "POSTPONED":
		return "PST"
	case "CANCELLED":
		return "cancelled"
	default:
		return "scheduled"
	}
}
