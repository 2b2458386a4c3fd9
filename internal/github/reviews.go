package github

import (
	"context"
	"fmt"

	gh "github.com/google/go-github/v82/github"

	"github.com/dshills/revbot/internal/payload"
)

// SubmitReview submits p as a pull request review, inline comments included.
// It returns the ID of the created review.
func (c *Client) SubmitReview(ctx context.Context, repoFullName string, number int, p payload.ReviewPayload) (int64, error) {
	owner, repo, err := SplitRepo(repoFullName)
	if err != nil {
		return 0, err
	}

	req := &gh.PullRequestReviewRequest{
		Event: gh.Ptr(string(p.Event)),
		Body:  gh.Ptr(p.Body),
	}
	for _, ic := range p.Comments {
		req.Comments = append(req.Comments, &gh.DraftReviewComment{
			Path: gh.Ptr(ic.Path),
			Line: gh.Ptr(ic.Line),
			Side: gh.Ptr(ic.Side),
			Body: gh.Ptr(ic.Body),
		})
	}

	created, resp, err := c.gh.PullRequests.CreateReview(ctx, owner, repo, number, req)
	if err != nil {
		return 0, fmt.Errorf("creating review for %s#%d: %w", repoFullName, number, err)
	}
	c.logRateLimit(resp, repoFullName+"/create-review", 0, len(p.Comments))
	return created.GetID(), nil
}
