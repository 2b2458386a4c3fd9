package github

import (
	"context"
	"fmt"

	gh "github.com/google/go-github/v82/github"

	"github.com/dshills/revbot/internal/lifecycle"
)

// ListComments returns every issue comment on a pull request, following
// pagination until the last page.
func (c *Client) ListComments(ctx context.Context, repoFullName string, number int) ([]lifecycle.Comment, error) {
	owner, repo, err := SplitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	opts := &gh.IssueListCommentsOptions{
		ListOptions: gh.ListOptions{PerPage: c.perPage},
	}
	var all []lifecycle.Comment

	for {
		comments, resp, err := c.gh.Issues.ListComments(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("listing issue comments for %s#%d (page %d): %w", repoFullName, number, opts.Page, err)
		}
		c.logRateLimit(resp, repoFullName+"/comments", opts.Page, len(comments))

		for _, comment := range comments {
			all = append(all, lifecycle.Comment{ID: comment.GetID(), Body: comment.GetBody()})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// DeleteComment deletes an issue comment by ID.
func (c *Client) DeleteComment(ctx context.Context, repoFullName string, id int64) error {
	owner, repo, err := SplitRepo(repoFullName)
	if err != nil {
		return err
	}
	resp, err := c.gh.Issues.DeleteComment(ctx, owner, repo, id)
	if err != nil {
		return fmt.Errorf("deleting comment %d on %s: %w", id, repoFullName, err)
	}
	c.logRateLimit(resp, repoFullName+"/delete-comment", 0, 1)
	return nil
}

// CreateComment adds a PR-level comment via the Issues API.
func (c *Client) CreateComment(ctx context.Context, repoFullName string, number int, body string) (lifecycle.Comment, error) {
	owner, repo, err := SplitRepo(repoFullName)
	if err != nil {
		return lifecycle.Comment{}, err
	}

	created, resp, err := c.gh.Issues.CreateComment(ctx, owner, repo, number, &gh.IssueComment{Body: gh.Ptr(body)})
	if err != nil {
		return lifecycle.Comment{}, fmt.Errorf("creating comment on %s#%d: %w", repoFullName, number, err)
	}
	c.logRateLimit(resp, repoFullName+"/create-comment", 0, 1)
	return lifecycle.Comment{ID: created.GetID(), Body: created.GetBody()}, nil
}
