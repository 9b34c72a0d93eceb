// Package github is the GitHub Tracker: issues over the REST API and the
// Projects v2 board, used as the grouping container, over GraphQL.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	gh "github.com/google/go-github/v66/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/mesh-intelligence/storysync/pkg/types"
)

// perPage is the page size for REST and GraphQL listings.
const perPage = 100

// Client implements types.Tracker against one repository.
type Client struct {
	gh            *gh.Client
	owner         string
	repo          string
	projectNumber int
	graphqlURL    string
	logger        *zap.Logger

	mu        sync.Mutex
	projectID string
}

// New creates a client authenticated with cfg.Token. cfg.BaseURL overrides
// the API root (GitHub Enterprise or tests).
func New(ctx context.Context, cfg types.GitHubConfig, logger *zap.Logger) (*Client, error) {
	if cfg.Token == "" {
		return nil, types.ErrMissingToken
	}
	if cfg.Owner == "" || cfg.Repo == "" {
		return nil, types.ErrMissingRepo
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}))
	client := gh.NewClient(httpClient)
	if cfg.BaseURL != "" {
		base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("%w: github base_url: %w", types.ErrFatalConfig, err)
		}
		client.BaseURL = base
	}
	graphqlURL, err := graphqlEndpoint(client.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: github base_url: %w", types.ErrFatalConfig, err)
	}
	number := cfg.ProjectNumber
	if number <= 0 {
		number = types.DefaultProjectNumber
	}
	return &Client{
		gh:            client,
		owner:         cfg.Owner,
		repo:          cfg.Repo,
		projectNumber: number,
		graphqlURL:    graphqlURL,
		logger:        logger,
	}, nil
}

// graphqlEndpoint returns the GraphQL URL for a REST base URL. GitHub
// Enterprise serves REST under /api/v3/ and GraphQL at /api/graphql; any
// other base serves GraphQL at <base>graphql.
func graphqlEndpoint(base *url.URL) (string, error) {
	rel := "graphql"
	if strings.HasSuffix(base.Path, "/api/v3/") {
		rel = "../graphql"
	}
	u, err := base.Parse(rel)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// classify maps a go-github error onto the error taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var rle *gh.RateLimitError
	var abuse *gh.AbuseRateLimitError
	if errors.As(err, &rle) || errors.As(err, &abuse) {
		return fmt.Errorf("%w: %s: %w", types.ErrTransient, op, err)
	}
	var er *gh.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		switch er.Response.StatusCode {
		case http.StatusNotFound, http.StatusGone:
			return fmt.Errorf("%s: %w", op, types.ErrNotFound)
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s: %w", types.ErrFatalConfig, op, err)
		}
	}
	return fmt.Errorf("%w: %s: %w", types.ErrTransient, op, err)
}

func convert(is *gh.Issue) types.TrackerIssue {
	state, err := types.NormalizeState(is.GetState())
	if err != nil {
		state = types.StateOpen
	}
	return types.TrackerIssue{
		Number:   is.GetNumber(),
		Title:    is.GetTitle(),
		Body:     is.GetBody(),
		State:    state,
		URL:      is.GetHTMLURL(),
		StableID: is.GetNodeID(),
	}
}
