package github

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/storysync/pkg/types"
)

const projectIDQuery = `query($login:String!,$n:Int!){
  repositoryOwner(login:$login){
    ... on User { projectV2(number:$n){ id } }
    ... on Organization { projectV2(number:$n){ id } }
  }
}`

const projectItemsQuery = `query($login:String!,$n:Int!,$cursor:String){
  repositoryOwner(login:$login){
    ... on User { projectV2(number:$n){ ...items } }
    ... on Organization { projectV2(number:$n){ ...items } }
  }
}
fragment items on ProjectV2 {
  items(first:100, after:$cursor){
    pageInfo{ hasNextPage endCursor }
    nodes{ content{ __typename ... on Issue { id number title body url state repository{ nameWithOwner } } } }
  }
}`

const addItemMutation = `mutation($pid:ID!,$cid:ID!){
  addProjectV2ItemById(input:{projectId:$pid, contentId:$cid}){ item{ id } }
}`

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// graphql posts a query through the REST client's transport and decodes data
// into out.
func (c *Client) graphql(ctx context.Context, query string, vars map[string]any, out any) error {
	req, err := c.gh.NewRequest("POST", c.graphqlURL, graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("build graphql request: %w", err)
	}
	var resp graphQLResponse
	if _, err := c.gh.Do(ctx, req, &resp); err != nil {
		return classify("graphql", err)
	}
	if len(resp.Errors) > 0 {
		msgs := make([]string, len(resp.Errors))
		for i, e := range resp.Errors {
			msgs[i] = e.Message
		}
		return fmt.Errorf("%w: graphql: %s", types.ErrTransient, strings.Join(msgs, "; "))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("%w: decode graphql data: %w", types.ErrMalformedInput, err)
	}
	return nil
}

type projectOwner struct {
	RepositoryOwner *struct {
		ProjectV2 *struct {
			ID    string `json:"id"`
			Items struct {
				PageInfo struct {
					HasNextPage bool   `json:"hasNextPage"`
					EndCursor   string `json:"endCursor"`
				} `json:"pageInfo"`
				Nodes []struct {
					Content *projectIssue `json:"content"`
				} `json:"nodes"`
			} `json:"items"`
		} `json:"projectV2"`
	} `json:"repositoryOwner"`
}

type projectIssue struct {
	Typename   string `json:"__typename"`
	ID         string `json:"id"`
	Number     int    `json:"number"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	URL        string `json:"url"`
	State      string `json:"state"`
	Repository struct {
		NameWithOwner string `json:"nameWithOwner"`
	} `json:"repository"`
}

// GroupID implements types.Tracker: the node id of the configured project.
// The id is resolved once and reused.
func (c *Client) GroupID(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.projectID != "" {
		return c.projectID, nil
	}
	var out projectOwner
	vars := map[string]any{"login": c.owner, "n": c.projectNumber}
	if err := c.graphql(ctx, projectIDQuery, vars, &out); err != nil {
		return "", err
	}
	if out.RepositoryOwner == nil || out.RepositoryOwner.ProjectV2 == nil || out.RepositoryOwner.ProjectV2.ID == "" {
		return "", fmt.Errorf("%w: project %d of %s not found", types.ErrFatalConfig, c.projectNumber, c.owner)
	}
	c.projectID = out.RepositoryOwner.ProjectV2.ID
	return c.projectID, nil
}

// AddToGroup implements types.Tracker. Adding an existing item is accepted by
// the API and returns the existing item.
func (c *Client) AddToGroup(ctx context.Context, groupID, stableID string) error {
	vars := map[string]any{"pid": groupID, "cid": stableID}
	if err := c.graphql(ctx, addItemMutation, vars, nil); err != nil {
		return fmt.Errorf("add %s to project: %w", stableID, err)
	}
	return nil
}

// listProjectIssues pages through the project's items and keeps the issues
// that belong to this repository and pass the state filter.
func (c *Client) listProjectIssues(ctx context.Context, filter types.IssueFilter) ([]types.TrackerIssue, error) {
	repo := c.owner + "/" + c.repo
	var out []types.TrackerIssue
	var cursor *string
	for {
		var page projectOwner
		vars := map[string]any{"login": c.owner, "n": c.projectNumber, "cursor": cursor}
		if err := c.graphql(ctx, projectItemsQuery, vars, &page); err != nil {
			return nil, err
		}
		if page.RepositoryOwner == nil || page.RepositoryOwner.ProjectV2 == nil {
			return nil, fmt.Errorf("%w: project %d of %s not found", types.ErrFatalConfig, c.projectNumber, c.owner)
		}
		items := page.RepositoryOwner.ProjectV2.Items
		for _, n := range items.Nodes {
			is := n.Content
			if is == nil || is.Typename != "Issue" {
				continue
			}
			if !strings.EqualFold(is.Repository.NameWithOwner, repo) {
				continue
			}
			state, err := types.NormalizeState(is.State)
			if err != nil {
				c.logger.Warn("project item with unknown state", zap.Int("number", is.Number), zap.String("state", is.State))
				continue
			}
			ti := types.TrackerIssue{
				Number:   is.Number,
				Title:    is.Title,
				Body:     is.Body,
				State:    state,
				URL:      is.URL,
				StableID: is.ID,
			}
			if filter.Matches(ti) {
				out = append(out, ti)
			}
		}
		if !items.PageInfo.HasNextPage {
			break
		}
		end := items.PageInfo.EndCursor
		cursor = &end
	}
	return out, nil
}
